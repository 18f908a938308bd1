package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageGenerations(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(0)

	static, err := storage.Open(ctx, "static-v1")
	require.NoError(t, err)
	again, err := storage.Open(ctx, "static-v1")
	require.NoError(t, err)
	assert.Same(t, static, again)

	_, err = storage.Open(ctx, "dynamic-v1")
	require.NoError(t, err)

	names, err := storage.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic-v1", "static-v1"}, names)

	deleted, err := storage.Delete(ctx, "static-v1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = storage.Delete(ctx, "static-v1")
	require.NoError(t, err)
	assert.False(t, deleted)

	names, err = storage.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic-v1"}, names)
}

func TestMemoryGenerationPutOverwrites(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(0)
	gen, err := storage.Open(ctx, "static-v1")
	require.NoError(t, err)

	require.NoError(t, gen.Put(ctx, "k", Entry{Status: http.StatusOK, Body: []byte("one")}))
	require.NoError(t, gen.Put(ctx, "k", Entry{Status: http.StatusOK, Body: []byte("two")}))

	entry, ok, err := gen.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", string(entry.Body))

	keys, err := gen.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestMemoryGenerationRejectsOversizedEntry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(4)
	gen, err := storage.Open(ctx, "static-v1")
	require.NoError(t, err)

	err = gen.Put(ctx, "k", Entry{Body: []byte("too large")})
	assert.ErrorIs(t, err, ErrEntryTooLarge)
}

func TestMemoryGenerationHandleAfterDelete(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(0)
	gen, err := storage.Open(ctx, "static-v1")
	require.NoError(t, err)
	require.NoError(t, gen.Put(ctx, "k", Entry{Body: []byte("x")}))

	_, err = storage.Delete(ctx, "static-v1")
	require.NoError(t, err)

	_, ok, err := gen.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, gen.Put(ctx, "k", Entry{}), ErrStorageClosed)
}

func TestMemoryGenerationConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(0)
	gen, err := storage.Open(ctx, "static-v1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = gen.Put(ctx, "same", Entry{Status: http.StatusOK, Body: []byte(fmt.Sprintf("body-%d", i))})
			_, _, _ = gen.Get(ctx, "same")
		}(i)
	}
	wg.Wait()

	keys, err := gen.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestEntryResponseRoundTrip(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "image/png")
	resp := &http.Response{StatusCode: http.StatusOK, Header: header}
	entry := NewEntry(resp, []byte("png-bytes"))

	first := entry.Response(nil)
	second := entry.Response(nil)
	firstBody, err := io.ReadAll(first.Body)
	require.NoError(t, err)
	secondBody, err := io.ReadAll(second.Body)
	require.NoError(t, err)

	assert.Equal(t, "png-bytes", string(firstBody))
	assert.Equal(t, "png-bytes", string(secondBody))
	assert.Equal(t, "image/png", first.Header.Get("Content-Type"))
	assert.Equal(t, "9", first.Header.Get("Content-Length"))
}
