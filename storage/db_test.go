package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Value string
}

func TestUpdateCommitsAllOrNothing(t *testing.T) {
	store, err := NewMemStore()
	require.NoError(t, err)
	defer store.Close()

	boom := errors.New("boom")
	err = store.Update(func(kv KV) error {
		require.NoError(t, kv.Put([]byte("a"), []byte("1")))
		require.NoError(t, kv.Put([]byte("b"), []byte("2")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.View(func(r Reader) error {
		_, err := r.Get([]byte("a"))
		require.ErrorIs(t, err, ErrNotFound)
		ok, err := r.Has([]byte("b"))
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))

	require.NoError(t, store.Update(func(kv KV) error {
		return kv.Put([]byte("a"), []byte("1"))
	}))
	require.NoError(t, store.View(func(r Reader) error {
		value, err := r.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), value)
		return nil
	}))
}

func TestTxnReadsOwnWrites(t *testing.T) {
	store, err := NewMemStore()
	require.NoError(t, err)
	defer store.Close()

	txn, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, KVPut(txn, []byte("rec"), record{Name: "pool", Value: "200"}))

	var got record
	ok, err := KVGet(txn, []byte("rec"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "200", got.Value)

	require.NoError(t, txn.Commit())
	require.ErrorIs(t, txn.Commit(), ErrTxnDone)
	txn.Discard()
}

func TestKVGetMissingKey(t *testing.T) {
	store, err := NewMemStore()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.View(func(r Reader) error {
		var got record
		ok, err := KVGet(r, []byte("missing"), &got)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, first.Update(func(kv KV) error {
		return KVPut(kv, []byte("rec"), record{Name: "lender", Value: "15"})
	}))
	require.NoError(t, first.Close())

	second, err := OpenLevelDB(dir)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.View(func(r Reader) error {
		var got record
		ok, err := KVGet(r, []byte("rec"), &got)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, record{Name: "lender", Value: "15"}, got)
		return nil
	}))
}
