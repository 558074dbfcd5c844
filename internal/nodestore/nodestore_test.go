package nodestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendStoreFetch(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Open(true))
	defer b.Close()

	var h Hash256
	h[0] = 0xAB
	n := &Node{Hash: h, Type: NodeAccountState, Data: []byte("hello")}
	require.NoError(t, b.Store(n))

	got, status := b.Fetch(h)
	require.Equal(t, OK, status)
	assert.Equal(t, []byte("hello"), got.Data)

	// Fetch returns a defensive copy.
	got.Data[0] = 'X'
	got2, _ := b.Fetch(h)
	assert.Equal(t, []byte("hello"), got2.Data)
}

func TestMemoryBackendNotFound(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Open(true))
	defer b.Close()

	var h Hash256
	h[0] = 0x01
	_, status := b.Fetch(h)
	assert.Equal(t, NotFound, status)
}

func TestDatabaseCachesAcrossFetches(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Open(true))
	db := NewDatabase(b, 16, time.Hour)
	defer db.Close()

	var h Hash256
	h[0] = 0x02
	require.NoError(t, db.Store(context.Background(), &Node{Hash: h, Data: []byte("v")}))

	_, err := db.Fetch(context.Background(), h)
	require.NoError(t, err)
	_, err = db.Fetch(context.Background(), h)
	require.NoError(t, err)

	stats := db.Stats()
	assert.GreaterOrEqual(t, stats.CacheHits, uint64(1))
}

func TestDatabaseNegativeCacheAvoidsRepeatedBackendReads(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Open(true))
	db := NewDatabase(b, 16, time.Hour)
	defer db.Close()

	var h Hash256
	h[0] = 0x03
	n, err := db.Fetch(context.Background(), h)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = db.Fetch(context.Background(), h)
	require.NoError(t, err)
	assert.Nil(t, n)

	stats := db.Stats()
	assert.Equal(t, uint64(1), stats.BackendReads)
	assert.GreaterOrEqual(t, stats.NegativeHits, uint64(1))
}

func TestMemoryNodeStoreFamilyRoundTrip(t *testing.T) {
	fam, err := NewMemoryNodeStoreFamily()
	require.NoError(t, err)
	defer fam.Close()

	var h Hash256
	h[0] = 0x10
	require.NoError(t, fam.StoreBatch([]FlushEntry{{Hash: h, Data: []byte("payload"), Type: NodeAccountState}}))

	data, err := fam.Fetch(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	var missing Hash256
	missing[0] = 0x11
	data, err = fam.Fetch(missing)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, fam.Sweep())
	stats := fam.Stats()
	assert.Equal(t, 1, stats.CacheSize)
}

func TestDatabaseStoreBatch(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Open(true))
	db := NewDatabase(b, 16, time.Hour)
	defer db.Close()

	nodes := make([]*Node, 4)
	for i := range nodes {
		var h Hash256
		h[0] = byte(i + 1)
		nodes[i] = &Node{Hash: h, Data: []byte{byte(i)}}
	}
	require.NoError(t, db.StoreBatch(context.Background(), nodes))

	hashes := make([]Hash256, len(nodes))
	for i, n := range nodes {
		hashes[i] = n.Hash
	}
	got, err := db.FetchBatch(context.Background(), hashes)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, n := range got {
		require.NotNil(t, n)
		assert.Equal(t, []byte{byte(i)}, n.Data)
	}
}
