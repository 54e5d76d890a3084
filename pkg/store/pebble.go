package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/praekelt/helpdesk/pkg/logger"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store not opened")
)

// Store persists every helpdesk entity in a single pebble database. All
// repositories are scoped by org id through their key prefixes.
type Store struct {
	db   *pebble.DB
	path string

	seqMu sync.Mutex
}

// Open opens (or creates) the pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// OpenInMemory opens a store backed by pebble's in-memory filesystem.
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: ":memory:"}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	return nil
}

// Flush forces memtables to disk before shutdown.
func (s *Store) Flush() error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Flush()
}

// DiskUsage reports the bytes pebble currently holds on disk.
func (s *Store) DiskUsage() uint64 {
	if s.db == nil {
		return 0
	}
	return s.db.Metrics().DiskSpaceUsage()
}

func (s *Store) getRaw(key string) ([]byte, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
			return nil, ErrNotFound
		}
		logger.Error("get_key_failed", "key", key, "error", err)
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) getJSON(key string, dst any) error {
	b, err := s.getRaw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(key string, v any) error {
	if s.db == nil {
		return ErrClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.db.Set([]byte(key), b, pebble.Sync); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("save_key_ok", "key", key, "len", len(b))
	return nil
}

// batch collects writes that must land together.
type batch struct {
	b   *pebble.Batch
	err error
}

func (s *Store) newBatch() *batch {
	return &batch{b: s.db.NewBatch()}
}

func (b *batch) putJSON(key string, v any) {
	if b.err != nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("encode %s: %w", key, err)
		return
	}
	b.err = b.b.Set([]byte(key), raw, nil)
}

func (b *batch) putRaw(key string, v []byte) {
	if b.err != nil {
		return
	}
	b.err = b.b.Set([]byte(key), v, nil)
}

func (b *batch) commit() error {
	defer b.b.Close()
	if b.err != nil {
		return b.err
	}
	if err := b.b.Commit(pebble.Sync); err != nil {
		logger.Error("batch_commit_failed", "error", err)
		return err
	}
	return nil
}

// scan calls fn for every key with the given prefix, in key order.
func (s *Store) scan(prefix string, fn func(key string, value []byte) error) error {
	if s.db == nil {
		return ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func scanJSON[T any](s *Store, prefix string) ([]*T, error) {
	out := []*T{}
	err := s.scan(prefix, func(key string, value []byte) error {
		v := new(T)
		if err := json.Unmarshal(value, v); err != nil {
			logger.Error("invalid_record_json", "key", key, "error", err)
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// nextID hands out monotonically increasing ids per sequence name.
func (s *Store) nextID(name string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	key := fmt.Sprintf(SequenceKey, name)
	var cur int64
	raw, err := s.getRaw(key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return 0, err
	default:
		cur, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt sequence %s: %w", name, err)
		}
	}
	cur++
	if err := s.db.Set([]byte(key), []byte(strconv.FormatInt(cur, 10)), pebble.Sync); err != nil {
		return 0, err
	}
	return cur, nil
}
