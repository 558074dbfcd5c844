package hybridmap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

func TestAddUpdateRemoveRoundTrip(t *testing.T) {
	m := New(shamap.NodeTypeAccountState)
	k := keyFromByte(0x44)

	res, err := m.AddItem(k, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultAdd, res)

	data, ok, err := m.GetItem(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	res, err = m.UpdateItem(k, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultUpdate, res)

	data, ok, err = m.GetItem(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("world"), data)

	removed, err := m.RemoveItem(k)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err = m.GetItem(k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddOnlyFailsOnExistingKey(t *testing.T) {
	m := New(shamap.NodeTypeAccountState)
	k := keyFromByte(0x55)
	_, err := m.AddItem(k, []byte("v1"))
	require.NoError(t, err)

	res, err := m.AddItem(k, []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultFailed, res)
}

func TestUpdateOnlyFailsOnMissingKey(t *testing.T) {
	m := New(shamap.NodeTypeAccountState)
	k := keyFromByte(0x66)
	res, err := m.UpdateItem(k, []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultFailed, res)
}

func TestLeafCollisionSplicesNewInner(t *testing.T) {
	m := New(shamap.NodeTypeAccountState)
	k1 := keyFromByte(0x10)
	k2 := keyFromByte(0x10)
	k2[31] = 0x01 // same prefix through most nibbles, diverges at the tail

	_, err := m.AddItem(k1, []byte("v1"))
	require.NoError(t, err)
	_, err = m.AddItem(k2, []byte("v2"))
	require.NoError(t, err)

	assert.Equal(t, KindHeapInner, m.Root().Kind())

	d1, ok, err := m.GetItem(k1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), d1)

	d2, ok, err := m.GetItem(k2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), d2)
}

func TestManyItemsHashStable(t *testing.T) {
	m := New(shamap.NodeTypeAccountState)
	for i := 0; i < 64; i++ {
		var k shamap.Key
		k[0] = 0xAB
		k[31] = byte(i)
		_, err := m.AddItem(k, []byte{byte(i)})
		require.NoError(t, err)
	}
	h1, err := m.RootHash()
	require.NoError(t, err)

	removed, err := m.RemoveItem(func() shamap.Key {
		var k shamap.Key
		k[0] = 0xAB
		k[31] = 5
		return k
	}())
	require.NoError(t, err)
	assert.True(t, removed)

	var k shamap.Key
	k[0] = 0xAB
	k[31] = 5
	_, err = m.AddItem(k, []byte{5})
	require.NoError(t, err)

	h2, err := m.RootHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func buildMmapLedger(t *testing.T, seed byte, count int) (*catl2.Reader, int64, int64) {
	t.Helper()
	sm := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	for i := 0; i < count; i++ {
		var k shamap.Key
		k[0] = seed
		k[31] = byte(i)
		_, err := sm.AddItem(shamap.NewItem(k, []byte{seed, byte(i)}))
		require.NoError(t, err)
	}

	f, err := os.CreateTemp(t.TempDir(), "hybridmap-*.dat")
	require.NoError(t, err)
	defer f.Close()

	w, err := catl2.NewWriter(f, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteLedger(catl2.LedgerHeader{Seq: 1, Drops: 1}, sm.Root(), nil))
	require.NoError(t, w.Finalize())
	require.NoError(t, f.Close())

	r, err := catl2.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.True(t, r.SeekToLedger(1))
	stateAbs, _, err := r.StateAndTxRoots()
	require.NoError(t, err)
	return r, stateAbs, 0
}

func TestGetItemAgainstMmapRoot(t *testing.T) {
	r, stateAbs, _ := buildMmapLedger(t, 0xCC, 5)

	m, err := NewFromMmap(r, stateAbs, shamap.NodeTypeAccountState)
	require.NoError(t, err)
	assert.True(t, m.Root().IsMmap())

	var k shamap.Key
	k[0] = 0xCC
	k[31] = 2
	data, ok, err := m.GetItem(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0xCC, 2}, data)

	var missing shamap.Key
	missing[0] = 0xCC
	missing[31] = 99
	_, ok, err = m.GetItem(missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetItemMaterializesMmapPath(t *testing.T) {
	r, stateAbs, _ := buildMmapLedger(t, 0xDD, 5)

	m, err := NewFromMmap(r, stateAbs, shamap.NodeTypeAccountState)
	require.NoError(t, err)

	var existing shamap.Key
	existing[0] = 0xDD
	existing[31] = 3

	res, err := m.UpdateItem(existing, []byte("updated"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultUpdate, res)

	// The touched path is now heap-backed; untouched branches may still
	// be mmap-backed.
	assert.True(t, m.Root().IsHeap())

	data, ok, err := m.GetItem(existing)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), data)

	var other shamap.Key
	other[0] = 0xDD
	other[31] = 4
	data, ok, err = m.GetItem(other)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0xDD, 4}, data)

	var fresh shamap.Key
	fresh[0] = 0xDD
	fresh[31] = 200
	res, err = m.AddItem(fresh, []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultAdd, res)
}
