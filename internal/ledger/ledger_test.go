package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderV1RoundTrip(t *testing.T) {
	var h HeaderV1
	h.Sequence = 81920
	h.Drops = 99999999999
	h.Hash[0] = 0x11
	h.TxHash[1] = 0x22
	h.AccountHash[2] = 0x33
	h.ParentHash[3] = 0x44
	h.CloseFlags = 1
	h.CloseTimeResolution = 10
	h.CloseTime = 700000000
	h.ParentCloseTime = 699999990

	buf := h.Marshal()
	assert.Len(t, buf, HeaderV1Size)

	got, err := UnmarshalHeaderV1(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestUnmarshalHeaderV1RejectsShortBuffer(t *testing.T) {
	_, err := UnmarshalHeaderV1(make([]byte, HeaderV1Size-1))
	assert.Error(t, err)
}

func TestToCanonicalReordersFields(t *testing.T) {
	v1 := HeaderV1{
		Sequence:            81920,
		Drops:               123,
		CloseFlags:          1,
		CloseTimeResolution: 10,
		CloseTime:           700000000,
		ParentCloseTime:     699999990,
	}
	v1.Hash[0] = 0xAA
	v1.TxHash[0] = 0xBB
	v1.AccountHash[0] = 0xCC
	v1.ParentHash[0] = 0xDD

	v2 := ToCanonical(v1)
	assert.Equal(t, v1.Sequence, v2.Seq)
	assert.Equal(t, v1.Drops, v2.Drops)
	assert.Equal(t, v1.ParentHash, v2.ParentHash)
	assert.Equal(t, v1.TxHash, v2.TxHash)
	assert.Equal(t, v1.AccountHash, v2.AccountHash)
	assert.Equal(t, v1.Hash, v2.Hash)
	assert.Equal(t, uint32(699999990), v2.ParentClose)
	assert.Equal(t, uint32(700000000), v2.Close)
	assert.Equal(t, uint8(10), v2.CloseResolution)
	assert.Equal(t, uint8(1), v2.CloseFlags)
}

func TestToCanonicalFromCanonicalRoundTrip(t *testing.T) {
	v1 := HeaderV1{
		Sequence:            1,
		Drops:               1,
		CloseFlags:          1,
		CloseTimeResolution: 30,
		CloseTime:           600000000,
		ParentCloseTime:     599999970,
	}
	v2 := ToCanonical(v1)
	back := FromCanonical(v2)
	assert.Equal(t, v1, back)
}
