package shamap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyFromByte(b byte) Key {
	var k Key
	for i := range k {
		k[i] = b
	}
	return k
}

func itemWithKey(k Key, data []byte) Item {
	return NewItem(k, data)
}

// TestHashDeterminismS1 reproduces scenario S1: an empty
// NodeTypeAccountState map with a single all-zero key/data item has a
// fixed, known root hash.
func TestHashDeterminismS1(t *testing.T) {
	m := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	var zeroKey Key
	res, err := m.AddItem(itemWithKey(zeroKey, zeroKey[:]))
	require.NoError(t, err)
	assert.Equal(t, ResultAdd, res)

	h, err := m.GetHash()
	require.NoError(t, err)
	assert.Equal(t, "b992a0c0480b32a2f32308ea2d64e85586a3daf663f7b383806b5c4cea84d8bf", h.Hex())
}

func TestAddUpdateRemoveRoundTrip(t *testing.T) {
	m := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	k := keyFromByte(0x11)
	item := itemWithKey(k, []byte("hello"))

	res, err := m.AddItem(item)
	require.NoError(t, err)
	assert.Equal(t, ResultAdd, res)

	before, err := m.GetHash()
	require.NoError(t, err)

	removed, err := m.RemoveItem(k)
	require.NoError(t, err)
	assert.True(t, removed)

	res, err = m.AddItem(item)
	require.NoError(t, err)
	assert.Equal(t, ResultAdd, res)

	after, err := m.GetHash()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAddOrUpdateIdempotence(t *testing.T) {
	m := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	k := keyFromByte(0x22)
	item := itemWithKey(k, []byte("v1"))

	res, err := m.SetItem(item, ModeAddOrUpdate)
	require.NoError(t, err)
	assert.Equal(t, ResultAdd, res)
	h1, err := m.GetHash()
	require.NoError(t, err)

	res, err = m.SetItem(item, ModeAddOrUpdate)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdate, res)
	h2, err := m.GetHash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestAddOnlyFailsOnExistingKey(t *testing.T) {
	m := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	k := keyFromByte(0x33)
	item := itemWithKey(k, []byte("v1"))

	_, err := m.AddItem(item)
	require.NoError(t, err)

	res, err := m.AddItem(item)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, res)
}

func TestUpdateOnlyFailsOnMissingKey(t *testing.T) {
	m := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	k := keyFromByte(0x44)
	item := itemWithKey(k, []byte("v1"))

	res, err := m.UpdateItem(item)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, res)
}

// TestCollapseEquivalence verifies invariant 1: building the same key set
// with leafs_only and leafs_and_inners collapsing produces identical root
// hashes.
func TestCollapseEquivalence(t *testing.T) {
	keys := [][]byte{
		{0x00, 0x11},
		{0x00, 0x12},
		{0x01, 0x00},
		{0xFF},
	}

	build := func(collapse CollapseImpl) Hash {
		m := New(NodeTypeAccountState, Options{Collapse: collapse})
		for i, prefix := range keys {
			var k Key
			copy(k[:], prefix)
			k[31] = byte(i)
			_, err := m.AddItem(itemWithKey(k, []byte{byte(i)}))
			require.NoError(t, err)
		}
		h, err := m.GetHash()
		require.NoError(t, err)
		return h
	}

	hLeafsOnly := build(CollapseLeafsOnly)
	hLeafsAndInners := build(CollapseLeafsAndInners)
	hNone := build(CollapseNone)

	assert.Equal(t, hLeafsOnly, hLeafsAndInners)
	assert.Equal(t, hLeafsOnly, hNone)
}

// TestSnapshotIndependenceS4 reproduces scenario S4: a snapshot's hash and
// size are unaffected by subsequent mutation of the parent.
func TestSnapshotIndependenceS4(t *testing.T) {
	m1 := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	for i := 1; i <= 10; i++ {
		k := keyFromByte(byte(i))
		_, err := m1.AddItem(itemWithKey(k, []byte{byte(i)}))
		require.NoError(t, err)
	}

	snap := m1.Snapshot()
	snapHashBefore, err := snap.GetHash()
	require.NoError(t, err)

	for i := 11; i <= 20; i++ {
		k := keyFromByte(byte(i))
		_, err := m1.AddItem(itemWithKey(k, []byte{byte(i)}))
		require.NoError(t, err)
	}

	assert.Equal(t, 10, snap.Size())
	assert.Equal(t, 20, m1.Size())

	snapHashAfter, err := snap.GetHash()
	require.NoError(t, err)
	assert.Equal(t, snapHashBefore, snapHashAfter)

	m1Hash, err := m1.GetHash()
	require.NoError(t, err)
	assert.NotEqual(t, snapHashAfter, m1Hash)

	fresh := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	for i := 1; i <= 10; i++ {
		k := keyFromByte(byte(i))
		_, err := fresh.AddItem(itemWithKey(k, []byte{byte(i)}))
		require.NoError(t, err)
	}
	freshHash, err := fresh.GetHash()
	require.NoError(t, err)
	assert.Equal(t, freshHash, snapHashAfter)
}

func TestGetItemNotFound(t *testing.T) {
	m := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	_, err := m.GetItem(keyFromByte(0x01))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
