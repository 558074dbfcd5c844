// Package ledger implements the canonical 118-byte ledger header (the
// layout internal/catl2.LedgerHeader already uses on disk) and the
// conversion from a v1 CATL stream's wider header into it.
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
)

// HeaderV1Size is the fixed size of the v1 CATL ledger header: sequence,
// four 32-byte hashes, drops, and four time/flag fields — wider and
// differently ordered than the canonical v2 layout.
const HeaderV1Size = 4 + 32*4 + 8 + 4 + 4 + 8 + 8

// HeaderV1 mirrors rippled's on-disk LedgerInfo as read from a v1 CATL
// file: note CloseFlags is a full 32-bit field here, and the hash
// fields appear in a different order than LedgerHeader's.
type HeaderV1 struct {
	Sequence            uint32
	Hash                [32]byte
	TxHash              [32]byte
	AccountHash         [32]byte
	ParentHash          [32]byte
	Drops               uint64
	CloseFlags          uint32
	CloseTimeResolution uint32
	CloseTime           uint64
	ParentCloseTime     uint64
}

// UnmarshalHeaderV1 decodes a HeaderV1 from its packed on-disk layout.
func UnmarshalHeaderV1(buf []byte) (HeaderV1, error) {
	if len(buf) < HeaderV1Size {
		return HeaderV1{}, fmt.Errorf("ledger: short v1 header (%d bytes, need %d)", len(buf), HeaderV1Size)
	}
	var h HeaderV1
	off := 0
	h.Sequence = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	copy(h.Hash[:], buf[off:])
	off += 32
	copy(h.TxHash[:], buf[off:])
	off += 32
	copy(h.AccountHash[:], buf[off:])
	off += 32
	copy(h.ParentHash[:], buf[off:])
	off += 32
	h.Drops = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.CloseFlags = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.CloseTimeResolution = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.CloseTime = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.ParentCloseTime = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	return h, nil
}

// Marshal encodes h back into its v1 on-disk layout, mostly useful for
// tests and for tools that round-trip a v1 stream unchanged.
func (h HeaderV1) Marshal() []byte {
	buf := make([]byte, HeaderV1Size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], h.Sequence)
	off += 4
	copy(buf[off:], h.Hash[:])
	off += 32
	copy(buf[off:], h.TxHash[:])
	off += 32
	copy(buf[off:], h.AccountHash[:])
	off += 32
	copy(buf[off:], h.ParentHash[:])
	off += 32
	binary.LittleEndian.PutUint64(buf[off:], h.Drops)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], h.CloseFlags)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.CloseTimeResolution)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.CloseTime)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.ParentCloseTime)
	off += 8
	return buf
}

// ToCanonical re-orders and re-packs a v1 header into the canonical
// 118-byte LedgerHeader layout (§3.5/§6.3): CloseFlags and
// CloseTimeResolution narrow from 32 bits to 8, and CloseTime /
// ParentCloseTime narrow from 64-bit rippled epoch seconds to 32 —
// both safe for any real ledger close time, which fits comfortably in
// 32 bits until the year 2136 (the Ripple epoch starts in 2000).
func ToCanonical(v1 HeaderV1) catl2.LedgerHeader {
	return catl2.LedgerHeader{
		Seq:             v1.Sequence,
		Drops:           v1.Drops,
		ParentHash:      v1.ParentHash,
		TxHash:          v1.TxHash,
		AccountHash:     v1.AccountHash,
		ParentClose:     uint32(v1.ParentCloseTime),
		Close:           uint32(v1.CloseTime),
		CloseResolution: uint8(v1.CloseTimeResolution),
		CloseFlags:      uint8(v1.CloseFlags),
		Hash:            v1.Hash,
	}
}

// FromCanonical expands a canonical LedgerHeader back into v1 shape,
// for tools that need to re-emit a v1-compatible stream from v2 data.
// The widened fields carry no information the canonical layout lost
// (CloseFlags/CloseTimeResolution are genuinely single-byte values in
// practice; close times are seconds since the Ripple epoch, well
// within 32 bits), so this is a lossless inverse of ToCanonical for
// any header ToCanonical actually produced.
func FromCanonical(v2 catl2.LedgerHeader) HeaderV1 {
	return HeaderV1{
		Sequence:            v2.Seq,
		Hash:                v2.Hash,
		TxHash:              v2.TxHash,
		AccountHash:         v2.AccountHash,
		ParentHash:          v2.ParentHash,
		Drops:               v2.Drops,
		CloseFlags:          uint32(v2.CloseFlags),
		CloseTimeResolution: uint32(v2.CloseResolution),
		CloseTime:           uint64(v2.Close),
		ParentCloseTime:     uint64(v2.ParentClose),
	}
}
