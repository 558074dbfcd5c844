package catl2

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

func buildMap(t *testing.T, seed byte, count int) *shamap.SHAMap {
	t.Helper()
	m := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	for i := 0; i < count; i++ {
		var k shamap.Key
		k[0] = seed
		k[31] = byte(i)
		_, err := m.AddItem(shamap.NewItem(k, []byte{seed, byte(i)}))
		require.NoError(t, err)
	}
	return m
}

func rootOf(t *testing.T, m *shamap.SHAMap) *shamap.InnerNode {
	t.Helper()
	return m.Root()
}

// TestV2RoundTripS5 reproduces scenario S5: writing a run of ledgers and
// then seeking to each by sequence number in shuffled order.
func TestV2RoundTripS5(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "catl2-*.dat")
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, 21337)
	require.NoError(t, err)

	const ledgerCount = 20
	stateMap := buildMap(t, 0xAA, 3)
	txMap := buildMap(t, 0xBB, 2)

	for seq := uint32(100); seq < 100+ledgerCount; seq++ {
		hdr := LedgerHeader{Seq: seq, Drops: 1000}
		require.NoError(t, w.WriteLedger(hdr, rootOf(t, stateMap), rootOf(t, txMap)))
	}
	require.NoError(t, w.Finalize())
	require.NoError(t, f.Close())

	r, err := Open(f.Name())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(100), r.Header().FirstLedger)
	assert.Equal(t, uint32(100+ledgerCount-1), r.Header().LastLedger)
	assert.True(t, r.Header().HasIndex())

	order := []uint32{115, 100, 119, 108, 103}
	for _, seq := range order {
		ok := r.SeekToLedger(seq)
		require.True(t, ok, "seq %d", seq)
		info, err := r.ReadLedgerInfo()
		require.NoError(t, err)
		assert.Equal(t, seq, info.Seq)
	}

	assert.False(t, r.SeekToLedger(99999))
}

func TestV2StateLookupAndWalk(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "catl2-*.dat")
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, 0)
	require.NoError(t, err)

	stateMap := buildMap(t, 0xCC, 5)
	hdr := LedgerHeader{Seq: 1}
	require.NoError(t, w.WriteLedger(hdr, rootOf(t, stateMap), nil))
	require.NoError(t, w.Finalize())
	require.NoError(t, f.Close())

	r, err := Open(f.Name())
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.SeekToLedger(1))

	var k shamap.Key
	k[0] = 0xCC
	k[31] = 2
	data, err := r.LookupKeyInState([32]byte(k))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCC, 2}, data)

	var missing shamap.Key
	missing[0] = 0xDD
	_, err = r.LookupKeyInState([32]byte(missing))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	seen := map[[32]byte][]byte{}
	err = r.WalkStateItems(WalkOptions{}, func(rec LeafRecord) bool {
		seen[rec.Key] = rec.Data
		return true
	})
	require.NoError(t, err)
	assert.Len(t, seen, 5)
}
