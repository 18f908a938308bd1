package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrEntryTooLarge = errors.New("cache entry exceeds max object bytes")
	ErrStorageClosed = errors.New("cache storage closed")
	ErrInvalidName   = errors.New("cache generation name is empty")
	ErrUnknownDriver = errors.New("unknown cache storage driver")
	errNilGeneration = errors.New("cache generation not initialized")
)

// Entry is a stored response snapshot. Entries are replaced whole, never patched.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	URL      string      `json:"url,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

// Generation is one named, versioned bucket of key to entry mappings.
// Implementations must be safe for concurrent use.
type Generation interface {
	Name() string
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Storage is the substrate that owns every generation.
type Storage interface {
	Open(ctx context.Context, name string) (Generation, error)
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	Close() error
}

func GenerationName(role string, version string) string {
	return role + "-" + version
}

// NewEntry snapshots resp with the already drained body.
func NewEntry(resp *http.Response, body []byte) Entry {
	entry := Entry{StoredAt: time.Now().UTC()}
	if resp == nil {
		return entry
	}
	entry.Status = resp.StatusCode
	entry.Header = resp.Header.Clone()
	entry.Body = append([]byte(nil), body...)
	if resp.Request != nil && resp.Request.URL != nil {
		entry.URL = resp.Request.URL.String()
	}
	return entry
}

// Response rebuilds an http.Response from the snapshot. Every call returns an
// independent body reader.
func (e Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
