package catl2

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

func TestLZ4CompressorRoundTrip(t *testing.T) {
	c := NewLZ4Compressor()
	data := bytes.Repeat([]byte("abcdefgh"), 256)

	out, err := c.Compress(data)
	require.NoError(t, err)
	require.Less(t, len(out), len(data))

	back, err := c.Decompress(out, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestLZ4CompressorIncompressibleReturnsUnchanged(t *testing.T) {
	c := NewLZ4Compressor()
	data := []byte("x")
	out, err := c.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestWriterReaderLeafCompressionRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "catl2-lz4-*.dat")
	require.NoError(t, err)
	defer f.Close()

	sm := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	big := bytes.Repeat([]byte("ledger-state-payload-"), 64)
	var k shamap.Key
	k[0] = 0x77
	_, err = sm.AddItem(shamap.NewItem(k, big))
	require.NoError(t, err)

	w, err := NewWriter(f, 0)
	require.NoError(t, err)
	w.SetCompressor(NewLZ4Compressor(), 16)
	require.NoError(t, w.WriteLedger(LedgerHeader{Seq: 1}, sm.Root(), nil))
	require.NoError(t, w.Finalize())
	require.Greater(t, w.Stats.CompressionRatio(), 0.0)
	require.Less(t, w.Stats.CompressionRatio(), 1.0)
	require.NoError(t, f.Close())

	r, err := Open(f.Name())
	require.NoError(t, err)
	defer r.Close()
	r.SetCompressor(NewLZ4Compressor())
	require.True(t, r.SeekToLedger(1))

	got, err := r.LookupKeyInState(k)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestReaderRejectsCompressedLeafWithoutCompressor(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "catl2-lz4-nocomp-*.dat")
	require.NoError(t, err)
	defer f.Close()

	sm := shamap.New(shamap.NodeTypeAccountState, shamap.Options{Collapse: shamap.CollapseLeafsOnly})
	big := bytes.Repeat([]byte("payload-"), 64)
	var k shamap.Key
	k[0] = 0x88
	_, err = sm.AddItem(shamap.NewItem(k, big))
	require.NoError(t, err)

	w, err := NewWriter(f, 0)
	require.NoError(t, err)
	w.SetCompressor(NewLZ4Compressor(), 16)
	require.NoError(t, w.WriteLedger(LedgerHeader{Seq: 1}, sm.Root(), nil))
	require.NoError(t, w.Finalize())
	require.NoError(t, f.Close())

	r, err := Open(f.Name())
	require.NoError(t, err)
	defer r.Close()
	require.True(t, r.SeekToLedger(1))

	_, err = r.LookupKeyInState(k)
	assert.Error(t, err)
}
