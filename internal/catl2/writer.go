package catl2

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/sublimator/catalogue-tools-sub001/internal/logging"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

var writerLog = logging.For("catl2")

// WriteStats carries the observability counters named in SPEC_FULL §4.8:
// total inner/leaf nodes written, bytes in each class, and the
// compression ratio when a compressor is configured.
type WriteStats struct {
	InnerNodesWritten int64
	LeafNodesWritten  int64
	InnerBytes        int64
	LeafBytes         int64
	RawLeafBytes      int64
	NodesDeduped      int64
}

// CompressionRatio returns LeafBytes/RawLeafBytes, or 1.0 if nothing was
// written yet.
func (s WriteStats) CompressionRatio() float64 {
	if s.RawLeafBytes == 0 {
		return 1.0
	}
	return float64(s.LeafBytes) / float64(s.RawLeafBytes)
}

// Compressor optionally compresses leaf payloads above a size threshold.
// nil means "store uncompressed".
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, rawSize int) ([]byte, error)
}

// Writer serializes a sequence of ledgers into the v2 format, deduping
// identical nodes across the whole run per §4.8.
type Writer struct {
	f      *os.File
	offset int64

	nodeCache map[shamap.Node]int64

	networkID   uint16
	firstLedger uint32
	lastLedger  uint32
	ledgerCount uint32
	index       []LedgerIndexEntry

	compressor         Compressor
	compressThreshold  int

	// RunID correlates every log line this Writer emits across a single
	// conversion run, surfaced to cmd/catlconv's structured logs.
	RunID uuid.UUID

	Stats WriteStats
}

// NewWriter opens f (truncating any existing content) and reserves space
// for the file header, which is rewritten with final values in Finalize.
func NewWriter(f *os.File, networkID uint16) (*Writer, error) {
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	placeholder := make([]byte, FileHeaderSize)
	if _, err := f.Write(placeholder); err != nil {
		return nil, err
	}
	return &Writer{
		f:         f,
		offset:    FileHeaderSize,
		nodeCache: make(map[shamap.Node]int64),
		networkID: networkID,
		RunID:     uuid.New(),
	}, nil
}

// SetCompressor installs a compressor applied to leaf payloads at or above
// thresholdBytes. Whether compression is per-leaf or per-ledger is left
// open by SPEC_FULL §9; this writer applies it per-leaf.
func (w *Writer) SetCompressor(c Compressor, thresholdBytes int) {
	w.compressor = c
	w.compressThreshold = thresholdBytes
}

func (w *Writer) writeAt(data []byte) (int64, error) {
	abs := w.offset
	n, err := w.f.Write(data)
	if err != nil {
		return 0, err
	}
	w.offset += int64(n)
	return abs, nil
}

// WriteLedger serializes header's state and tx trees (deduping against
// every node written so far in this file) and appends a LedgerEntry.
func (w *Writer) WriteLedger(header LedgerHeader, stateRoot, txRoot *shamap.InnerNode) error {
	stateAbs, err := w.serializeRoot(stateRoot)
	if err != nil {
		return fmt.Errorf("catl2: writing state tree for ledger %d: %w", header.Seq, err)
	}
	txAbs, err := w.serializeRoot(txRoot)
	if err != nil {
		return fmt.Errorf("catl2: writing tx tree for ledger %d: %w", header.Seq, err)
	}

	ledgerAbs := w.offset
	buf := header.Marshal()
	if _, err := w.writeAt(buf); err != nil {
		return err
	}

	stateSlot := w.offset
	var stateRel int32
	if stateAbs != 0 {
		stateRel = relFromAbs(stateAbs, stateSlot)
	}
	if _, err := w.writeAt(encodeRel(stateRel)); err != nil {
		return err
	}

	txSlot := w.offset
	var txRel int32
	if txAbs != 0 {
		txRel = relFromAbs(txAbs, txSlot)
	}
	if _, err := w.writeAt(encodeRel(txRel)); err != nil {
		return err
	}

	w.index = append(w.index, LedgerIndexEntry{Seq: header.Seq, FileOffset: ledgerAbs})
	if w.ledgerCount == 0 {
		w.firstLedger = header.Seq
	}
	w.lastLedger = header.Seq
	w.ledgerCount++
	return nil
}

// serializeRoot is WriteLedger's entry point into serializeNode: a nil
// root, or one with no children, serializes to the empty-subtree sentinel
// offset 0 rather than writing a degenerate empty inner header.
func (w *Writer) serializeRoot(root *shamap.InnerNode) (int64, error) {
	if root == nil || root.ChildMask() == 0 {
		return 0, nil
	}
	return w.serializeNode(shamap.Node(root))
}

// serializeNode emits n (and, transitively, every descendant not already
// cached) depth-first, post-order, returning its absolute file offset.
// serializeNode(nil) returns 0, the "empty subtree" sentinel: every real
// node lives past the 64-byte file header, so 0 is never a valid node
// offset.
func (w *Writer) serializeNode(n shamap.Node) (int64, error) {
	if n == nil {
		return 0, nil
	}
	if abs, ok := w.nodeCache[n]; ok {
		w.Stats.NodesDeduped++
		return abs, nil
	}

	switch v := n.(type) {
	case *shamap.LeafNode:
		return w.serializeLeaf(v)
	case *shamap.InnerNode:
		return w.serializeInner(v)
	default:
		return 0, fmt.Errorf("catl2: unknown node kind %T", n)
	}
}

func (w *Writer) serializeLeaf(leaf *shamap.LeafNode) (int64, error) {
	item := leaf.Item()
	hash, err := leaf.GetHash()
	if err != nil {
		return 0, err
	}

	payload := item.Data
	compressed := false
	if w.compressor != nil && len(payload) >= w.compressThreshold {
		out, cerr := w.compressor.Compress(payload)
		if cerr == nil && len(out) < len(payload) {
			// Prefix the compressed block with the original length so a
			// reader can size its decompression buffer without the wire
			// format needing a separate raw-size field of its own.
			prefixed := make([]byte, 4+len(out))
			binary.LittleEndian.PutUint32(prefixed, uint32(len(payload)))
			copy(prefixed[4:], out)
			payload = prefixed
			compressed = true
		}
	}

	lh := LeafHeader{
		Hash:       [32]byte(hash),
		Key:        item.Key,
		DataSize:   uint32(len(payload)),
		Compressed: compressed,
	}
	abs, err := w.writeAt(lh.Marshal())
	if err != nil {
		return 0, err
	}
	if _, err := w.writeAt(payload); err != nil {
		return 0, err
	}

	w.nodeCache[shamap.Node(leaf)] = abs
	w.Stats.LeafNodesWritten++
	w.Stats.LeafBytes += int64(len(payload))
	w.Stats.RawLeafBytes += int64(len(item.Data))
	return abs, nil
}

func (w *Writer) serializeInner(inner *shamap.InnerNode) (int64, error) {
	type childSlot struct {
		branch int
		child  shamap.Node
		abs    int64
	}
	var slots []childSlot
	inner.ForEachChild(func(b int, c shamap.Node) bool {
		slots = append(slots, childSlot{branch: b, child: c})
		return true
	})

	for i := range slots {
		abs, err := w.serializeNode(slots[i].child)
		if err != nil {
			return 0, err
		}
		slots[i].abs = abs
	}

	hash, err := inner.GetHash()
	if err != nil {
		return 0, err
	}

	var childTypes uint32
	for _, s := range slots {
		tag := ChildLeaf
		if _, ok := s.child.(*shamap.InnerNode); ok {
			tag = ChildInner
		}
		childTypes |= uint32(tag) << uint(2*s.branch)
	}

	hdr := InnerNodeHeader{
		Hash:       [32]byte(hash),
		Depth:      inner.Depth(),
		ChildTypes: childTypes,
	}
	headerAbs, err := w.writeAt(hdr.Marshal())
	if err != nil {
		return 0, err
	}

	offsetsBase := w.offset
	for i, s := range slots {
		slotAbs := offsetsBase + int64(i*relOffSize)
		rel := relFromAbs(s.abs, slotAbs)
		if _, err := w.writeAt(encodeRel(rel)); err != nil {
			return 0, err
		}
	}

	w.nodeCache[shamap.Node(inner)] = headerAbs
	w.Stats.InnerNodesWritten++
	w.Stats.InnerBytes += int64(InnerHeaderSize + len(slots)*relOffSize)
	return headerAbs, nil
}

func encodeRel(rel int32) []byte {
	buf := make([]byte, relOffSize)
	buf[0] = byte(rel)
	buf[1] = byte(rel >> 8)
	buf[2] = byte(rel >> 16)
	buf[3] = byte(rel >> 24)
	return buf
}

// Finalize writes the LedgerIndex trailer, then rewrites the file header
// with final ranges and offsets, then fsyncs.
func (w *Writer) Finalize() error {
	indexOffset := w.offset
	for _, e := range w.index {
		if _, err := w.writeAt(e.Marshal()); err != nil {
			return err
		}
	}

	flags := uint32(0)
	if len(w.index) > 0 {
		flags |= FlagHasIndex
	}
	header := FileHeader{
		Magic:       Magic,
		Version:     Version,
		NetworkID:   w.networkID,
		Flags:       flags,
		FirstLedger: w.firstLedger,
		LastLedger:  w.lastLedger,
		LedgerCount: w.ledgerCount,
		IndexOffset: uint64(indexOffset),
	}
	if _, err := w.f.WriteAt(header.Marshal(), 0); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	writerLog.Info("finalized catalogue v2 file",
		"run_id", w.RunID.String(),
		"ledgers", w.ledgerCount,
		"inner_nodes", w.Stats.InnerNodesWritten,
		"leaf_nodes", w.Stats.LeafNodesWritten,
		"deduped", w.Stats.NodesDeduped,
		"compression_ratio", w.Stats.CompressionRatio())
	return nil
}
