package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	ErrNotFound   = errors.New("storage: key not found")
	ErrClosed     = errors.New("storage: store closed")
	ErrTxnDone    = errors.New("storage: transaction already finished")
	ErrEmptyPath  = errors.New("storage: path required")
	ErrNilReader  = errors.New("storage: reader not configured")
	ErrNilWriter  = errors.New("storage: writer not configured")
	ErrNilPayload = errors.New("storage: value must not be nil")
)

// Reader exposes point lookups against a consistent view of the store.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// KV is a Reader that can also stage writes.
type KV interface {
	Reader
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Store is the durable ledger store. All mutations go through a transaction
// so that a unit of work is committed as a whole or not at all. LevelDB
// serialises open transactions, so two units of work never interleave.
type Store struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	closed bool
}

// OpenLevelDB creates or opens a persistent store at the specified path.
func OpenLevelDB(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrEmptyPath
	}
	db, err := leveldb.OpenFile(trimmed, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

// NewMemStore returns a store backed by LevelDB's in-memory storage. It has
// the same transactional semantics as the persistent store.
func NewMemStore() (*Store, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

// Begin opens a write transaction. Callers must Commit or Discard it.
func (s *Store) Begin() (*Txn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("open transaction: %w", err)
	}
	return &Txn{tr: tr}, nil
}

// Update runs fn inside a transaction, committing when fn succeeds and
// discarding every staged write when it fails.
func (s *Store) Update(fn func(KV) error) error {
	txn, err := s.Begin()
	if err != nil {
		return err
	}
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// View runs fn against a point-in-time snapshot.
func (s *Store) View(fn func(Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Release()
	return fn(&snapshotReader{snap: snap})
}

// Close releases the underlying LevelDB resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Txn is a LevelDB transaction. Writes are invisible to other readers until
// Commit returns.
type Txn struct {
	tr   *leveldb.Transaction
	done bool
}

func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, ErrTxnDone
	}
	value, err := t.tr.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (t *Txn) Has(key []byte) (bool, error) {
	if t.done {
		return false, ErrTxnDone
	}
	return t.tr.Has(key, nil)
}

func (t *Txn) Put(key []byte, value []byte) error {
	if t.done {
		return ErrTxnDone
	}
	if value == nil {
		return ErrNilPayload
	}
	return t.tr.Put(key, value, nil)
}

func (t *Txn) Delete(key []byte) error {
	if t.done {
		return ErrTxnDone
	}
	return t.tr.Delete(key, nil)
}

// Commit makes every staged write durable.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	if err := t.tr.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Discard drops staged writes. It is safe to call after Commit.
func (t *Txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.tr.Discard()
}

type snapshotReader struct {
	snap *leveldb.Snapshot
}

func (r *snapshotReader) Get(key []byte) ([]byte, error) {
	value, err := r.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (r *snapshotReader) Has(key []byte) (bool, error) {
	return r.snap.Has(key, nil)
}
