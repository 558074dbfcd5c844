package shamap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDiffBasicS3 reproduces scenario S3: a={k1:v1,k2:v2}, b={k1:v1',k3:v3}
// yields added={k3}, deleted={k2}, modified={k1}.
func TestDiffBasicS3(t *testing.T) {
	k1 := keyFromByte(0x01)
	k2 := keyFromByte(0x02)
	k3 := keyFromByte(0x03)

	a := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	_, err := a.AddItem(itemWithKey(k1, []byte("v1")))
	require.NoError(t, err)
	_, err = a.AddItem(itemWithKey(k2, []byte("v2")))
	require.NoError(t, err)

	b := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	_, err = b.AddItem(itemWithKey(k1, []byte("v1-prime")))
	require.NoError(t, err)
	_, err = b.AddItem(itemWithKey(k3, []byte("v3")))
	require.NoError(t, err)

	d, err := DiffMaps(a, b)
	require.NoError(t, err)

	var added, deleted, modified []Key
	for _, e := range d.Entries {
		switch e.Op {
		case DiffAdded:
			added = append(added, e.Key)
		case DiffDeleted:
			deleted = append(deleted, e.Key)
		case DiffModified:
			modified = append(modified, e.Key)
		}
	}

	assert.ElementsMatch(t, []Key{k3}, added)
	assert.ElementsMatch(t, []Key{k2}, deleted)
	assert.ElementsMatch(t, []Key{k1}, modified)
}

// TestDiffApplyInvert reproduces invariant 5: applying a diff to a clone of
// a reproduces b's hash, and inverting then applying to b reproduces a's
// hash.
func TestDiffApplyInvert(t *testing.T) {
	k1 := keyFromByte(0x01)
	k2 := keyFromByte(0x02)
	k3 := keyFromByte(0x03)

	a := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	_, err := a.AddItem(itemWithKey(k1, []byte("v1")))
	require.NoError(t, err)
	_, err = a.AddItem(itemWithKey(k2, []byte("v2")))
	require.NoError(t, err)

	b := New(NodeTypeAccountState, Options{Collapse: CollapseLeafsOnly})
	_, err = b.AddItem(itemWithKey(k1, []byte("v1-prime")))
	require.NoError(t, err)
	_, err = b.AddItem(itemWithKey(k3, []byte("v3")))
	require.NoError(t, err)

	hashA, err := a.GetHash()
	require.NoError(t, err)
	hashB, err := b.GetHash()
	require.NoError(t, err)

	d, err := DiffMaps(a, b)
	require.NoError(t, err)

	aPrime := a.Snapshot()
	require.NoError(t, d.Apply(aPrime))
	aPrimeHash, err := aPrime.GetHash()
	require.NoError(t, err)
	assert.Equal(t, hashB, aPrimeHash)

	inverted := d.Invert()
	bPrime := b.Snapshot()
	require.NoError(t, inverted.Apply(bPrime))
	bPrimeHash, err := bPrime.GetHash()
	require.NoError(t, err)
	assert.Equal(t, hashA, bPrimeHash)
}
