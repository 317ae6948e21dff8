package storage

import (
	"testing"

	"github.com/luxfi/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := New()

	_, err := db.Get([]byte("missing"))
	assert.Equal(t, database.ErrNotFound, err)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, has)

	val, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	assert.Equal(t, database.ErrNotFound, err)
}

func TestMemDBIteratorSnapshot(t *testing.T) {
	db := New()
	require.NoError(t, db.Put([]byte("a/1"), []byte("1")))
	require.NoError(t, db.Put([]byte("a/2"), []byte("2")))
	require.NoError(t, db.Put([]byte("b/1"), []byte("3")))

	it := db.NewIteratorWithPrefix([]byte("a/"))
	defer it.Release()

	// Writes after snapshot creation are invisible.
	require.NoError(t, db.Put([]byte("a/3"), []byte("4")))

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"a/1", "a/2"}, keys)
}

func TestMemDBBatch(t *testing.T) {
	db := New()
	require.NoError(t, db.Put([]byte("stale"), []byte("x")))

	batch := db.NewBatch()
	require.NoError(t, batch.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, batch.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, batch.Delete([]byte("stale")))

	// Nothing lands before Write.
	_, err := db.Get([]byte("k1"))
	assert.Equal(t, database.ErrNotFound, err)

	require.NoError(t, batch.Write())

	val, err := db.Get([]byte("k2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), val)
	_, err = db.Get([]byte("stale"))
	assert.Equal(t, database.ErrNotFound, err)

	batch.Reset()
	assert.Equal(t, 0, batch.Size())
}
