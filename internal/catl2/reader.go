package catl2

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
)

// Reader provides zero-copy navigation over an mmap'd v2 file.
type Reader struct {
	f    *os.File
	mm   mmap.MMap
	data []byte

	header FileHeader
	index  []LedgerIndexEntry

	current     int // position into index of the selected ledger, -1 if none
	compressor  Compressor
}

// SetCompressor installs the compressor used to expand leaves written
// with their Compressed bit set. Leaves written uncompressed are
// unaffected and readable regardless of whether a compressor is set.
func (r *Reader) SetCompressor(c Compressor) {
	r.compressor = c
}

// Open mmaps path, validates the header, and loads the ledger index.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Reader{f: f, mm: mm, data: []byte(mm), current: -1}
	if err := r.load(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) load() error {
	h, err := UnmarshalFileHeader(r.data)
	if err != nil {
		return err
	}
	r.header = h

	if !h.HasIndex() {
		return nil
	}
	base := int64(h.IndexOffset)
	idx := make([]LedgerIndexEntry, 0, h.LedgerCount)
	for i := uint32(0); i < h.LedgerCount; i++ {
		off := base + int64(i)*LedgerIndexSize
		if off+LedgerIndexSize > int64(len(r.data)) {
			return fmt.Errorf("catl2: %w: ledger index truncated", ErrCorruptFile)
		}
		e, err := UnmarshalLedgerIndexEntry(r.data[off:])
		if err != nil {
			return err
		}
		idx = append(idx, e)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].Seq < idx[j].Seq })
	r.index = idx
	return nil
}

// Close unmaps and closes the underlying file.
func (r *Reader) Close() error {
	if r.mm != nil {
		_ = r.mm.Unmap()
	}
	return r.f.Close()
}

// Header returns the parsed FileHeader.
func (r *Reader) Header() FileHeader { return r.header }

// SeekToLedger binary-searches the index for seq and, if found, makes it
// the current ledger.
func (r *Reader) SeekToLedger(seq uint32) bool {
	i := sort.Search(len(r.index), func(i int) bool { return r.index[i].Seq >= seq })
	if i >= len(r.index) || r.index[i].Seq != seq {
		return false
	}
	r.current = i
	return true
}

// ReadLedgerInfo returns the canonical header of the currently selected
// ledger.
func (r *Reader) ReadLedgerInfo() (LedgerHeader, error) {
	if r.current < 0 {
		return LedgerHeader{}, ErrNoCurrentLedger
	}
	off := int64(r.index[r.current].FileOffset)
	return r.readLedgerHeaderAt(off)
}

func (r *Reader) readLedgerHeaderAt(off int64) (LedgerHeader, error) {
	if off < 0 || off+LedgerHeaderSize > int64(len(r.data)) {
		return LedgerHeader{}, fmt.Errorf("catl2: %w: ledger header out of bounds", ErrCorruptFile)
	}
	return UnmarshalLedgerHeader(r.data[off:])
}

// stateAndTxRoots returns the absolute offsets of the current ledger's
// state and tx tree roots (0 meaning "empty tree").
func (r *Reader) stateAndTxRoots() (int64, int64, error) {
	if r.current < 0 {
		return 0, 0, ErrNoCurrentLedger
	}
	ledgerAbs := int64(r.index[r.current].FileOffset)
	stateSlot := ledgerAbs + LedgerHeaderSize
	txSlot := stateSlot + relOffSize
	if txSlot+relOffSize > int64(len(r.data)) {
		return 0, 0, fmt.Errorf("catl2: %w: ledger entry out of bounds", ErrCorruptFile)
	}
	stateRel := int32(binary.LittleEndian.Uint32(r.data[stateSlot:]))
	txRel := int32(binary.LittleEndian.Uint32(r.data[txSlot:]))
	stateAbs := absFromRel(stateSlot, stateRel)
	txAbs := absFromRel(txSlot, txRel)
	if stateRel == 0 {
		stateAbs = 0
	}
	if txRel == 0 {
		txAbs = 0
	}
	return stateAbs, txAbs, nil
}

// StateAndTxRoots exposes stateAndTxRoots for collaborators outside this
// package (the hybrid map, rooting itself at a ledger's trees directly
// instead of going through LookupKeyInState/LookupKeyInTx).
func (r *Reader) StateAndTxRoots() (int64, int64, error) {
	return r.stateAndTxRoots()
}

// LookupKeyInState looks key up in the current ledger's state tree.
func (r *Reader) LookupKeyInState(key [32]byte) ([]byte, error) {
	stateAbs, _, err := r.stateAndTxRoots()
	if err != nil {
		return nil, err
	}
	return r.lookupKey(stateAbs, key)
}

// LookupKeyInTx looks key up in the current ledger's tx tree.
func (r *Reader) LookupKeyInTx(key [32]byte) ([]byte, error) {
	_, txAbs, err := r.stateAndTxRoots()
	if err != nil {
		return nil, err
	}
	return r.lookupKey(txAbs, key)
}

// lookupKeyAt looks key up in the subtree rooted at the given absolute
// offset, returning (false, nil, nil) on a clean miss rather than
// ErrKeyNotFound, for callers (e.g. the memtree diff) that treat "absent"
// as a normal outcome rather than a failure.
func (r *Reader) lookupKeyAt(rootAbs int64, key [32]byte) (bool, []byte, error) {
	data, err := r.lookupKey(rootAbs, key)
	if err == ErrKeyNotFound {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, data, nil
}

// readLeafHeaderOnly reads a LeafHeader without its payload, for callers
// that only need the hash/key.
func (r *Reader) readLeafHeaderOnly(abs int64) (LeafHeader, error) {
	if abs < 0 || abs+LeafHeaderFixed > int64(len(r.data)) {
		return LeafHeader{}, fmt.Errorf("catl2: %w: leaf header out of bounds at %d", ErrCorruptFile, abs)
	}
	return UnmarshalLeafHeader(r.data[abs:])
}

// firstLeafKey returns the key of any leaf in the subtree rooted at abs,
// by always descending into the lowest-numbered occupied branch. Used to
// pick a representative key for skip-node branch projection.
func (r *Reader) firstLeafKey(abs int64) ([32]byte, error) {
	cur := abs
	for {
		hdr, err := r.readInnerHeader(cur)
		if err != nil {
			return [32]byte{}, err
		}
		for b := 0; b < 16; b++ {
			tag := hdr.ChildTag(b)
			if tag == ChildEmpty {
				continue
			}
			childAbs, err := r.resolveChildOffset(cur, hdr, b)
			if err != nil {
				return [32]byte{}, err
			}
			if tag == ChildLeaf {
				lh, err := r.readLeafHeaderOnly(childAbs)
				if err != nil {
					return [32]byte{}, err
				}
				return lh.Key, nil
			}
			cur = childAbs
			break
		}
	}
}

func (r *Reader) lookupKey(rootAbs int64, key [32]byte) ([]byte, error) {
	if rootAbs == 0 {
		return nil, ErrKeyNotFound
	}
	cur := rootAbs
	for {
		hdr, err := r.readInnerHeader(cur)
		if err != nil {
			return nil, err
		}
		if int(hdr.Depth) > 63 {
			return nil, fmt.Errorf("catl2: %w: depth %d out of range", ErrCorruptFile, hdr.Depth)
		}
		nib, err := nibble(key, int(hdr.Depth))
		if err != nil {
			return nil, err
		}
		tag := hdr.ChildTag(int(nib))
		switch tag {
		case ChildEmpty:
			return nil, ErrKeyNotFound
		case ChildPlaceholder:
			return nil, fmt.Errorf("catl2: %w: placeholder child encountered", ErrCorruptFile)
		case ChildLeaf:
			childAbs, err := r.resolveChildOffset(cur, hdr, int(nib))
			if err != nil {
				return nil, err
			}
			lh, data, err := r.readLeaf(childAbs)
			if err != nil {
				return nil, err
			}
			if lh.Key != key {
				return nil, ErrKeyNotFound
			}
			return data, nil
		case ChildInner:
			childAbs, err := r.resolveChildOffset(cur, hdr, int(nib))
			if err != nil {
				return nil, err
			}
			cur = childAbs
		}
	}
}

func (r *Reader) readInnerHeader(abs int64) (InnerNodeHeader, error) {
	if abs < 0 || abs+InnerHeaderSize > int64(len(r.data)) {
		return InnerNodeHeader{}, fmt.Errorf("catl2: %w: inner header out of bounds at %d", ErrCorruptFile, abs)
	}
	return UnmarshalInnerNodeHeader(r.data[abs:])
}

// ReadInnerHeader exposes readInnerHeader for collaborators outside this
// package (the hybrid map's mmap-side node materialization).
func (r *Reader) ReadInnerHeader(abs int64) (InnerNodeHeader, error) {
	return r.readInnerHeader(abs)
}

// ReadLeaf exposes readLeaf for the hybrid map.
func (r *Reader) ReadLeaf(abs int64) (LeafHeader, []byte, error) {
	return r.readLeaf(abs)
}

// ResolveChildOffset exposes resolveChildOffset for the hybrid map.
func (r *Reader) ResolveChildOffset(innerAbs int64, hdr InnerNodeHeader, branch int) (int64, error) {
	return r.resolveChildOffset(innerAbs, hdr, branch)
}

// ReadPlaceholderHash reads the bare 32-byte hash stored at a
// placeholder-tagged child offset. No writer in this package currently
// emits ChildPlaceholder (every ledger's full tree is written), but the
// format reserves it for partial trees per SPEC_FULL's design notes, and
// a placeholder's on-disk representation is nothing but its hash.
func (r *Reader) ReadPlaceholderHash(abs int64) ([32]byte, error) {
	var h [32]byte
	if abs < 0 || abs+32 > int64(len(r.data)) {
		return h, fmt.Errorf("catl2: %w: placeholder hash out of bounds at %d", ErrCorruptFile, abs)
	}
	copy(h[:], r.data[abs:abs+32])
	return h, nil
}

func (r *Reader) readLeaf(abs int64) (LeafHeader, []byte, error) {
	if abs < 0 || abs+LeafHeaderFixed > int64(len(r.data)) {
		return LeafHeader{}, nil, fmt.Errorf("catl2: %w: leaf header out of bounds at %d", ErrCorruptFile, abs)
	}
	lh, err := UnmarshalLeafHeader(r.data[abs:])
	if err != nil {
		return LeafHeader{}, nil, err
	}
	start := abs + LeafHeaderFixed
	end := start + int64(lh.DataSize)
	if end > int64(len(r.data)) {
		return LeafHeader{}, nil, fmt.Errorf("catl2: %w: leaf payload out of bounds at %d", ErrCorruptFile, abs)
	}
	raw := r.data[start:end]
	if !lh.Compressed {
		return lh, raw, nil
	}
	if r.compressor == nil {
		return LeafHeader{}, nil, fmt.Errorf("catl2: leaf at %d is compressed but no compressor is configured", abs)
	}
	if len(raw) < 4 {
		return LeafHeader{}, nil, fmt.Errorf("catl2: %w: compressed leaf payload too short at %d", ErrCorruptFile, abs)
	}
	rawSize := int(binary.LittleEndian.Uint32(raw))
	data, err := r.compressor.Decompress(raw[4:], rawSize)
	if err != nil {
		return LeafHeader{}, nil, fmt.Errorf("catl2: decompressing leaf at %d: %w", abs, err)
	}
	return lh, data, nil
}

// resolveChildOffset resolves the self-relative offset for branch b of
// the inner node whose header starts at innerAbs, via the popcount-indexed
// sparse offset array immediately following the header.
func (r *Reader) resolveChildOffset(innerAbs int64, hdr InnerNodeHeader, branch int) (int64, error) {
	idx := 0
	for b := 0; b < branch; b++ {
		if hdr.ChildTag(b) != ChildEmpty {
			idx++
		}
	}
	slotAbs := innerAbs + InnerHeaderSize + int64(idx*relOffSize)
	if slotAbs+relOffSize > int64(len(r.data)) {
		return 0, fmt.Errorf("catl2: %w: offset slot out of bounds at %d", ErrCorruptFile, slotAbs)
	}
	rel := int32(binary.LittleEndian.Uint32(r.data[slotAbs:]))
	return absFromRel(slotAbs, rel), nil
}

func nibble(key [32]byte, depth int) (uint8, error) {
	if depth < 0 || depth >= 64 {
		return 0, fmt.Errorf("catl2: %w: invalid depth %d", ErrCorruptFile, depth)
	}
	b := key[depth/2]
	if depth%2 == 0 {
		return b >> 4, nil
	}
	return b & 0x0F, nil
}

// LeafRecord is one (key, data) pair yielded by WalkStateItems/WalkTxItems.
type LeafRecord struct {
	Key  [32]byte
	Data []byte
}

// WalkOptions controls WalkStateItems/WalkTxItems's traversal strategy.
type WalkOptions struct {
	Parallel bool
	// Prefetch is carried through but read by neither walker: no
	// prefetching or madvise hinting takes place.
	Prefetch   bool
	NumThreads int
}

// WalkStateItems visits every leaf in the current ledger's state tree.
// Sequential mode delivers leaves in total depth-first order; parallel
// mode partitions by top-level branch and delivers at-least-once, with
// unspecified ordering. fn returning false stops the walk.
func (r *Reader) WalkStateItems(opts WalkOptions, fn func(LeafRecord) bool) error {
	root, _, err := r.stateAndTxRoots()
	if err != nil {
		return err
	}
	return r.walk(root, opts, fn)
}

// WalkTxItems is WalkStateItems's tx-tree counterpart.
func (r *Reader) WalkTxItems(opts WalkOptions, fn func(LeafRecord) bool) error {
	_, root, err := r.stateAndTxRoots()
	if err != nil {
		return err
	}
	return r.walk(root, opts, fn)
}

func (r *Reader) walk(root int64, opts WalkOptions, fn func(LeafRecord) bool) error {
	if root == 0 {
		return nil
	}
	if !opts.Parallel {
		_, err := r.walkSequential(root, fn)
		return err
	}
	return r.walkParallel(root, opts, fn)
}

// walkSequential performs a total depth-first, branch-ascending walk. The
// bool return reports whether the caller asked to stop.
func (r *Reader) walkSequential(abs int64, fn func(LeafRecord) bool) (bool, error) {
	hdr, err := r.readInnerHeader(abs)
	if err != nil {
		return false, err
	}
	for b := 0; b < 16; b++ {
		tag := hdr.ChildTag(b)
		if tag == ChildEmpty {
			continue
		}
		childAbs, err := r.resolveChildOffset(abs, hdr, b)
		if err != nil {
			return false, err
		}
		switch tag {
		case ChildLeaf:
			lh, data, err := r.readLeaf(childAbs)
			if err != nil {
				return false, err
			}
			if !fn(LeafRecord{Key: lh.Key, Data: data}) {
				return true, nil
			}
		case ChildInner:
			stop, err := r.walkSequential(childAbs, fn)
			if err != nil {
				return false, err
			}
			if stop {
				return true, nil
			}
		default:
			return false, fmt.Errorf("catl2: %w: unexpected child tag %v during walk", ErrCorruptFile, tag)
		}
	}
	return false, nil
}
