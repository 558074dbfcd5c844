// Package catl2 implements the catalogue v2 on-disk format: a
// depth-first, self-relative-offset, mmap-friendly serialization of a
// sequence of ledgers with structural sharing across ledgers.
package catl2

import (
	"encoding/binary"
	"fmt"
)

// Magic is the v2 file header's identifying tag, "ATL2" read as a
// little-endian u32.
const Magic uint32 = 0x32_4C_54_41

// Version is the only on-disk format version this package understands.
const Version uint16 = 2

// FlagHasIndex marks that a LedgerIndex trailer is present.
const FlagHasIndex uint32 = 1 << 0

const (
	FileHeaderSize    = 64
	LedgerHeaderSize  = 118
	InnerHeaderSize   = 32 + 1 + 4 + 2 // hash, depth, child_types, overlay_mask
	LeafHeaderFixed   = 32 + 32 + 4    // hash, key, data_size
	LedgerIndexSize   = 12             // seq u32 + file_offset u64
	relOffSize        = 4
)

// ChildTag is the 2-bit per-branch tag packed into InnerNodeHeader.ChildTypes.
type ChildTag uint8

const (
	ChildEmpty       ChildTag = 0b00
	ChildInner       ChildTag = 0b01
	ChildLeaf        ChildTag = 0b10
	ChildPlaceholder ChildTag = 0b11
)

// FileHeader is the 64-byte header at the start of every v2 file.
type FileHeader struct {
	Magic       uint32
	Version     uint16
	NetworkID   uint16
	Flags       uint32
	FirstLedger uint32
	LastLedger  uint32
	LedgerCount uint32
	IndexOffset uint64
}

// Marshal encodes h into a fixed 64-byte slice, zero-padded.
func (h FileHeader) Marshal() []byte {
	buf := make([]byte, FileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.NetworkID)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.FirstLedger)
	binary.LittleEndian.PutUint32(buf[16:20], h.LastLedger)
	binary.LittleEndian.PutUint32(buf[20:24], h.LedgerCount)
	binary.LittleEndian.PutUint64(buf[24:32], h.IndexOffset)
	return buf
}

// UnmarshalFileHeader decodes a 64-byte FileHeader and validates magic and
// version.
func UnmarshalFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) < FileHeaderSize {
		return FileHeader{}, fmt.Errorf("catl2: %w: short file header (%d bytes)", ErrCorruptFile, len(buf))
	}
	h := FileHeader{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		NetworkID:   binary.LittleEndian.Uint16(buf[6:8]),
		Flags:       binary.LittleEndian.Uint32(buf[8:12]),
		FirstLedger: binary.LittleEndian.Uint32(buf[12:16]),
		LastLedger:  binary.LittleEndian.Uint32(buf[16:20]),
		LedgerCount: binary.LittleEndian.Uint32(buf[20:24]),
		IndexOffset: binary.LittleEndian.Uint64(buf[24:32]),
	}
	if h.Magic != Magic {
		return FileHeader{}, fmt.Errorf("catl2: %w: bad magic %#x", ErrCorruptFile, h.Magic)
	}
	if h.Version != Version {
		return FileHeader{}, fmt.Errorf("catl2: %w: unsupported version %d", ErrCorruptFile, h.Version)
	}
	return h, nil
}

// HasIndex reports whether the file carries a LedgerIndex trailer.
func (h FileHeader) HasIndex() bool { return h.Flags&FlagHasIndex != 0 }

// LedgerHeader is the canonical, 118-byte rippled-compatible ledger
// header layout.
type LedgerHeader struct {
	Seq             uint32
	Drops           uint64
	ParentHash      [32]byte
	TxHash          [32]byte
	AccountHash     [32]byte
	ParentClose     uint32
	Close           uint32
	CloseResolution uint8
	CloseFlags      uint8
	Hash            [32]byte
}

// Marshal encodes h into a fixed 118-byte slice.
func (h LedgerHeader) Marshal() []byte {
	buf := make([]byte, LedgerHeaderSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], h.Seq)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.Drops)
	off += 8
	copy(buf[off:], h.ParentHash[:])
	off += 32
	copy(buf[off:], h.TxHash[:])
	off += 32
	copy(buf[off:], h.AccountHash[:])
	off += 32
	binary.LittleEndian.PutUint32(buf[off:], h.ParentClose)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Close)
	off += 4
	buf[off] = h.CloseResolution
	off++
	buf[off] = h.CloseFlags
	off++
	copy(buf[off:], h.Hash[:])
	off += 32
	return buf
}

// UnmarshalLedgerHeader decodes a 118-byte LedgerHeader.
func UnmarshalLedgerHeader(buf []byte) (LedgerHeader, error) {
	if len(buf) < LedgerHeaderSize {
		return LedgerHeader{}, fmt.Errorf("catl2: %w: short ledger header", ErrCorruptFile)
	}
	var h LedgerHeader
	off := 0
	h.Seq = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Drops = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(h.ParentHash[:], buf[off:])
	off += 32
	copy(h.TxHash[:], buf[off:])
	off += 32
	copy(h.AccountHash[:], buf[off:])
	off += 32
	h.ParentClose = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Close = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.CloseResolution = buf[off]
	off++
	h.CloseFlags = buf[off]
	off++
	copy(h.Hash[:], buf[off:])
	off += 32
	return h, nil
}

// InnerNodeHeader precedes a sparse rel_off array, one i32 per non-empty
// branch in branch order.
type InnerNodeHeader struct {
	Hash        [32]byte
	Depth       uint8
	ChildTypes  uint32 // 2 bits per branch
	OverlayMask uint16
}

func (h InnerNodeHeader) Marshal() []byte {
	buf := make([]byte, InnerHeaderSize)
	copy(buf[0:32], h.Hash[:])
	buf[32] = h.Depth
	binary.LittleEndian.PutUint32(buf[33:37], h.ChildTypes)
	binary.LittleEndian.PutUint16(buf[37:39], h.OverlayMask)
	return buf
}

func UnmarshalInnerNodeHeader(buf []byte) (InnerNodeHeader, error) {
	if len(buf) < InnerHeaderSize {
		return InnerNodeHeader{}, fmt.Errorf("catl2: %w: short inner node header", ErrCorruptFile)
	}
	var h InnerNodeHeader
	copy(h.Hash[:], buf[0:32])
	h.Depth = buf[32]
	h.ChildTypes = binary.LittleEndian.Uint32(buf[33:37])
	h.OverlayMask = binary.LittleEndian.Uint16(buf[37:39])
	return h, nil
}

// ChildTag returns the 2-bit tag for branch b.
func (h InnerNodeHeader) ChildTag(b int) ChildTag {
	return ChildTag((h.ChildTypes >> uint(2*b)) & 0b11)
}

// WithChildTag returns a copy of h with branch b's tag set.
func (h InnerNodeHeader) WithChildTag(b int, tag ChildTag) InnerNodeHeader {
	h.ChildTypes &^= 0b11 << uint(2*b)
	h.ChildTypes |= uint32(tag) << uint(2*b)
	return h
}

// NonEmptyBranches returns the occupied branch indices in ascending order,
// matching the order rel_off slots are stored in.
func (h InnerNodeHeader) NonEmptyBranches() []int {
	var out []int
	for b := 0; b < 16; b++ {
		if h.ChildTag(b) != ChildEmpty {
			out = append(out, b)
		}
	}
	return out
}

// LeafHeader precedes DataSize bytes of opaque, optionally compressed
// payload.
type LeafHeader struct {
	Hash       [32]byte
	Key        [32]byte
	DataSize   uint32
	Compressed bool
}

const leafCompressedBit uint32 = 1 << 31

func (h LeafHeader) Marshal() []byte {
	buf := make([]byte, LeafHeaderFixed)
	copy(buf[0:32], h.Hash[:])
	copy(buf[32:64], h.Key[:])
	size := h.DataSize
	if h.Compressed {
		size |= leafCompressedBit
	}
	binary.LittleEndian.PutUint32(buf[64:68], size)
	return buf
}

func UnmarshalLeafHeader(buf []byte) (LeafHeader, error) {
	if len(buf) < LeafHeaderFixed {
		return LeafHeader{}, fmt.Errorf("catl2: %w: short leaf header", ErrCorruptFile)
	}
	var h LeafHeader
	copy(h.Hash[:], buf[0:32])
	copy(h.Key[:], buf[32:64])
	raw := binary.LittleEndian.Uint32(buf[64:68])
	h.Compressed = raw&leafCompressedBit != 0
	h.DataSize = raw &^ leafCompressedBit
	return h, nil
}

// LedgerIndexEntry is one (seq, file_offset) pair in the trailing
// LedgerIndex.
type LedgerIndexEntry struct {
	Seq        uint32
	FileOffset uint64
}

func (e LedgerIndexEntry) Marshal() []byte {
	buf := make([]byte, LedgerIndexSize)
	binary.LittleEndian.PutUint32(buf[0:4], e.Seq)
	binary.LittleEndian.PutUint64(buf[4:12], e.FileOffset)
	return buf
}

func UnmarshalLedgerIndexEntry(buf []byte) (LedgerIndexEntry, error) {
	if len(buf) < LedgerIndexSize {
		return LedgerIndexEntry{}, fmt.Errorf("catl2: %w: short ledger index entry", ErrCorruptFile)
	}
	return LedgerIndexEntry{
		Seq:        binary.LittleEndian.Uint32(buf[0:4]),
		FileOffset: binary.LittleEndian.Uint64(buf[4:12]),
	}, nil
}

// relFromAbs computes the self-relative offset to store at slotAbs so
// that slotAbs + result == targetAbs.
func relFromAbs(targetAbs, slotAbs int64) int32 {
	return int32(targetAbs - slotAbs)
}

// absFromRel resolves a self-relative offset read from slotAbs.
func absFromRel(slotAbs int64, rel int32) int64 {
	return slotAbs + int64(rel)
}
