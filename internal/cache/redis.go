package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "offline-worker"

// RedisStorage keeps the set of generation names in one redis set and each
// generation in its own hash keyed by the normalized request.
type RedisStorage struct {
	client         *redis.Client
	prefix         string
	maxObjectBytes int64
}

type RedisOptions struct {
	Addr           string
	Password       string
	DB             int
	Prefix         string
	MaxObjectBytes int64
}

func NewRedisStorage(opts RedisOptions) *RedisStorage {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStorageWithClient(client, opts.Prefix, opts.MaxObjectBytes)
}

func NewRedisStorageWithClient(client *redis.Client, prefix string, maxObjectBytes int64) *RedisStorage {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if maxObjectBytes <= 0 {
		maxObjectBytes = DefaultMaxObjectBytes
	}
	return &RedisStorage{client: client, prefix: prefix, maxObjectBytes: maxObjectBytes}
}

func (s *RedisStorage) namesKey() string {
	return s.prefix + ":generations"
}

func (s *RedisStorage) hashKey(name string) string {
	return s.prefix + ":gen:" + name
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return ErrStorageClosed
	}
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) Open(ctx context.Context, name string) (Generation, error) {
	if s == nil || s.client == nil {
		return nil, ErrStorageClosed
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := s.client.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("open generation %q: %w", name, err)
	}
	return &redisGeneration{storage: s, name: name}, nil
}

func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, ErrStorageClosed
	}
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	if s == nil || s.client == nil {
		return false, ErrStorageClosed
	}
	removed, err := s.client.SRem(ctx, s.namesKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("delete generation %q: %w", name, err)
	}
	if err := s.client.Del(ctx, s.hashKey(name)).Err(); err != nil {
		return removed > 0, fmt.Errorf("drop entries of %q: %w", name, err)
	}
	return removed > 0, nil
}

func (s *RedisStorage) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

type redisGeneration struct {
	storage *RedisStorage
	name    string
}

func (g *redisGeneration) Name() string {
	return g.name
}

func (g *redisGeneration) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := g.storage.client.HGet(ctx, g.storage.hashKey(g.name), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %q from %q: %w", key, g.name, err)
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// putScript writes a field only while the generation is still listed, so a
// write racing a Delete cannot recreate a hash outside the names set.
var putScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
  return redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
end
return -1
`)

func (g *redisGeneration) Put(ctx context.Context, key string, entry Entry) error {
	if g.storage.maxObjectBytes > 0 && int64(len(entry.Body)) > g.storage.maxObjectBytes {
		return ErrEntryTooLarge
	}
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	keys := []string{g.storage.namesKey(), g.storage.hashKey(g.name)}
	result, err := putScript.Run(ctx, g.storage.client, keys, g.name, key, data).Int64()
	if err != nil {
		return fmt.Errorf("put %q into %q: %w", key, g.name, err)
	}
	if result < 0 {
		return fmt.Errorf("put %q into %q: %w", key, g.name, ErrStorageClosed)
	}
	return nil
}

func (g *redisGeneration) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := g.storage.client.HDel(ctx, g.storage.hashKey(g.name), key).Result()
	if err != nil {
		return false, fmt.Errorf("delete %q from %q: %w", key, g.name, err)
	}
	return removed > 0, nil
}

func (g *redisGeneration) Keys(ctx context.Context) ([]string, error) {
	keys, err := g.storage.client.HKeys(ctx, g.storage.hashKey(g.name)).Result()
	if err != nil {
		return nil, fmt.Errorf("list keys of %q: %w", g.name, err)
	}
	sort.Strings(keys)
	return keys, nil
}
