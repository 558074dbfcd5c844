package catl2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{
		Magic:       Magic,
		Version:     Version,
		NetworkID:   21337,
		Flags:       FlagHasIndex,
		FirstLedger: 100,
		LastLedger:  199,
		LedgerCount: 100,
		IndexOffset: 4096,
	}
	buf := h.Marshal()
	assert.Len(t, buf, FileHeaderSize)

	got, err := UnmarshalFileHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestFileHeaderRejectsBadMagic(t *testing.T) {
	h := FileHeader{Magic: 0xdeadbeef, Version: Version}
	_, err := UnmarshalFileHeader(h.Marshal())
	assert.ErrorIs(t, err, ErrCorruptFile)
}

func TestLedgerHeaderRoundTrip(t *testing.T) {
	var h LedgerHeader
	h.Seq = 81920
	h.Drops = 99999999999
	h.ParentHash[0] = 0xAA
	h.TxHash[1] = 0xBB
	h.AccountHash[2] = 0xCC
	h.ParentClose = 700000000
	h.Close = 700000010
	h.CloseResolution = 10
	h.CloseFlags = 1
	h.Hash[31] = 0xFF

	got, err := UnmarshalLedgerHeader(h.Marshal())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestInnerNodeHeaderChildTags(t *testing.T) {
	var h InnerNodeHeader
	h = h.WithChildTag(0, ChildLeaf)
	h = h.WithChildTag(5, ChildInner)
	h = h.WithChildTag(15, ChildPlaceholder)

	assert.Equal(t, ChildLeaf, h.ChildTag(0))
	assert.Equal(t, ChildInner, h.ChildTag(5))
	assert.Equal(t, ChildPlaceholder, h.ChildTag(15))
	assert.Equal(t, ChildEmpty, h.ChildTag(1))
	assert.Equal(t, []int{0, 5, 15}, h.NonEmptyBranches())

	got, err := UnmarshalInnerNodeHeader(h.Marshal())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestLeafHeaderRoundTrip(t *testing.T) {
	h := LeafHeader{DataSize: 1234, Compressed: true}
	h.Key[0] = 0x42

	got, err := UnmarshalLeafHeader(h.Marshal())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestRelOffsetRoundTrip(t *testing.T) {
	slot := int64(1000)
	target := int64(850)
	rel := relFromAbs(target, slot)
	assert.Equal(t, target, absFromRel(slot, rel))

	target2 := int64(5000)
	rel2 := relFromAbs(target2, slot)
	assert.Equal(t, target2, absFromRel(slot, rel2))
}
