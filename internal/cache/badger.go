package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
)

const (
	prefixGeneration = "gen/"
	prefixEntry      = "entry/"
	keySeparator     = "\x00"
)

// BadgerStorage keeps generations in a badger KV store. A marker key records
// each generation; entries live under a per-generation prefix so a whole
// generation can be dropped at once.
type BadgerStorage struct {
	db             *badgerdb.DB
	maxObjectBytes int64
}

type BadgerOptions struct {
	Path           string
	InMemory       bool
	MaxObjectBytes int64
}

func OpenBadgerStorage(opts BadgerOptions) (*BadgerStorage, error) {
	var dbOpts badgerdb.Options
	if opts.InMemory {
		dbOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("badger storage path is required")
		}
		dbOpts = badgerdb.DefaultOptions(opts.Path)
	}
	dbOpts = dbOpts.WithLogger(nil)

	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger storage: %w", err)
	}
	maxObjectBytes := opts.MaxObjectBytes
	if maxObjectBytes <= 0 {
		maxObjectBytes = DefaultMaxObjectBytes
	}
	return &BadgerStorage{db: db, maxObjectBytes: maxObjectBytes}, nil
}

func generationKey(name string) []byte {
	return []byte(prefixGeneration + name)
}

func entryPrefix(name string) []byte {
	return []byte(prefixEntry + name + keySeparator)
}

func entryKey(name string, key string) []byte {
	return []byte(prefixEntry + name + keySeparator + key)
}

func (s *BadgerStorage) Open(ctx context.Context, name string) (Generation, error) {
	if s == nil || s.db == nil {
		return nil, ErrStorageClosed
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(generationKey(name))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(generationKey(name), []byte{1})
	})
	if err != nil {
		return nil, fmt.Errorf("open generation %q: %w", name, err)
	}
	return &badgerGeneration{storage: s, name: name}, nil
}

func (s *BadgerStorage) Names(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := []string{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixGeneration)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			names = append(names, strings.TrimPrefix(key, prefixGeneration))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *BadgerStorage) Delete(ctx context.Context, name string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	existed := false
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(generationKey(name))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete(generationKey(name))
	})
	if err != nil {
		return false, fmt.Errorf("delete generation %q: %w", name, err)
	}
	if !existed {
		return false, nil
	}
	if err := s.dropEntries(name); err != nil {
		return true, fmt.Errorf("drop entries of %q: %w", name, err)
	}
	return true, nil
}

func (s *BadgerStorage) dropEntries(name string) error {
	prefix := entryPrefix(name)
	keys := [][]byte{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}

func (s *BadgerStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type badgerGeneration struct {
	storage *BadgerStorage
	name    string
}

func (g *badgerGeneration) Name() string {
	return g.name
}

func (g *badgerGeneration) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	found := false
	err := g.storage.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(entryKey(g.name, key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeEntry(val)
			if err != nil {
				return err
			}
			entry = decoded
			found = true
			return nil
		})
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %q from %q: %w", key, g.name, err)
	}
	return entry, found, nil
}

func (g *badgerGeneration) Put(ctx context.Context, key string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.storage.maxObjectBytes > 0 && int64(len(entry.Body)) > g.storage.maxObjectBytes {
		return ErrEntryTooLarge
	}
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	err = g.storage.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(generationKey(g.name)); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return ErrStorageClosed
			}
			return err
		}
		return txn.Set(entryKey(g.name, key), data)
	})
	if err != nil {
		return fmt.Errorf("put %q into %q: %w", key, g.name, err)
	}
	return nil
}

func (g *badgerGeneration) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	existed := false
	err := g.storage.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(entryKey(g.name, key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete(entryKey(g.name, key))
	})
	if err != nil {
		return false, fmt.Errorf("delete %q from %q: %w", key, g.name, err)
	}
	return existed, nil
}

func (g *badgerGeneration) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := entryPrefix(g.name)
	keys := []string{}
	err := g.storage.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys of %q: %w", g.name, err)
	}
	return keys, nil
}
