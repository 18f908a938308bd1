package cache

import (
	"fmt"
	"strings"
)

const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverRedis  = "redis"
)

type Options struct {
	Driver         string
	MaxObjectBytes int64
	Badger         BadgerOptions
	Redis          RedisOptions
}

// OpenStorage builds the storage substrate named by opts.Driver.
func OpenStorage(opts Options) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMemory:
		return NewMemoryStorage(opts.MaxObjectBytes), nil
	case DriverBadger:
		badgerOpts := opts.Badger
		if badgerOpts.MaxObjectBytes == 0 {
			badgerOpts.MaxObjectBytes = opts.MaxObjectBytes
		}
		return OpenBadgerStorage(badgerOpts)
	case DriverRedis:
		redisOpts := opts.Redis
		if redisOpts.MaxObjectBytes == 0 {
			redisOpts.MaxObjectBytes = opts.MaxObjectBytes
		}
		return NewRedisStorage(redisOpts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
