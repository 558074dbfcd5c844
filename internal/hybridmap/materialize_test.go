package hybridmap

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
	"github.com/sublimator/catalogue-tools-sub001/internal/logging"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

func writeLedgerFile(t *testing.T, sm *shamap.SHAMap) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "hybridmap-*.dat")
	require.NoError(t, err)
	defer f.Close()
	w, err := catl2.NewWriter(f, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteLedger(catl2.LedgerHeader{Seq: 1}, sm.Root(), nil))
	require.NoError(t, w.Finalize())
	require.NoError(t, f.Close())
	return f.Name()
}

// TestMaterializePathWarnsOnHashMismatch corrupts the on-disk key bytes
// of a leaf (leaving its stored Hash field untouched) so that the
// materialized heap copy's freshly computed hash disagrees with the
// hash the parent inner trusted, then checks the mismatch is only
// logged — not treated as a hard failure of the walk.
func TestMaterializePathWarnsOnHashMismatch(t *testing.T) {
	sm := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	var k1, k2 shamap.Key
	k1[0] = 0x00
	k2[0] = 0x10 // diverges from k1 at nibble 0, so root is a depth-0
	// inner with both keys as direct depth-1 leaf children.
	_, err := sm.AddItem(shamap.NewItem(k1, []byte("left")))
	require.NoError(t, err)
	_, err = sm.AddItem(shamap.NewItem(k2, []byte("right")))
	require.NoError(t, err)

	path := writeLedgerFile(t, sm)

	r, err := catl2.Open(path)
	require.NoError(t, err)
	require.True(t, r.SeekToLedger(1))
	stateAbs, _, err := r.StateAndTxRoots()
	require.NoError(t, err)
	hdr, err := r.ReadInnerHeader(stateAbs)
	require.NoError(t, err)
	leafAbs, err := r.ResolveChildOffset(stateAbs, hdr, 0)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	keyOff := leafAbs + 32 // LeafHeader.Hash(32) precedes Key(32)
	raw[keyOff] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	r, err = catl2.Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.True(t, r.SeekToLedger(1))
	stateAbs, _, err = r.StateAndTxRoots()
	require.NoError(t, err)

	logFile, err := os.CreateTemp(t.TempDir(), "materialize-*.log")
	require.NoError(t, err)
	defer logFile.Close()
	logging.SetOutput(logFile)
	defer logging.SetOutput(os.Stderr)
	logging.SetLevel(slog.LevelWarn)
	defer logging.SetLevel(slog.LevelInfo)

	root, err := MmapRoot(r, stateAbs, catl2.ChildInner)
	require.NoError(t, err)
	_, err = MaterializePath(root, k1, shamap.NodeTypeAccountState)
	require.NoError(t, err)

	data, err := os.ReadFile(logFile.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hash mismatch")
	assert.Contains(t, string(data), "partition=hybridmap")
}

func TestMaterializePathNoWarningOnCleanFile(t *testing.T) {
	sm := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	var k shamap.Key
	k[0] = 0xAA
	_, err := sm.AddItem(shamap.NewItem(k, []byte("v")))
	require.NoError(t, err)

	path := writeLedgerFile(t, sm)
	r, err := catl2.Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.True(t, r.SeekToLedger(1))
	stateAbs, _, err := r.StateAndTxRoots()
	require.NoError(t, err)

	logFile, err := os.CreateTemp(t.TempDir(), "materialize-clean-*.log")
	require.NoError(t, err)
	defer logFile.Close()
	logging.SetOutput(logFile)
	defer logging.SetOutput(os.Stderr)
	logging.SetLevel(slog.LevelWarn)
	defer logging.SetLevel(slog.LevelInfo)

	root, err := MmapRoot(r, stateAbs, catl2.ChildInner)
	require.NoError(t, err)
	_, err = MaterializePath(root, k, shamap.NodeTypeAccountState)
	require.NoError(t, err)

	data, err := os.ReadFile(logFile.Name())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hash mismatch")
}

func TestMmapRootedAddKeepsSiblingsReadable(t *testing.T) {
	sm := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	var k1, k2 shamap.Key
	k1[0] = 0x01
	k2[0] = 0x02
	_, err := sm.AddItem(shamap.NewItem(k1, []byte("a")))
	require.NoError(t, err)
	_, err = sm.AddItem(shamap.NewItem(k2, []byte("b")))
	require.NoError(t, err)

	path := writeLedgerFile(t, sm)
	r, err := catl2.Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.True(t, r.SeekToLedger(1))
	stateAbs, _, err := r.StateAndTxRoots()
	require.NoError(t, err)

	m, err := NewFromMmap(r, stateAbs, shamap.NodeTypeAccountState)
	require.NoError(t, err)

	data, ok, err := m.GetItem(k1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), data)

	var missing shamap.Key
	missing[0] = 0x03
	_, ok, err = m.GetItem(missing)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := m.AddItem(missing, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, shamap.ResultAdd, res)

	data, ok, err = m.GetItem(k1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), data)
	data, ok, err = m.GetItem(k2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), data)
}
