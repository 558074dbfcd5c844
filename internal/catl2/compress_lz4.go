package catl2

import (
	"fmt"

	"github.com/pierrec/lz4"
)

// LZ4Compressor implements Compressor using LZ4 block compression:
// fast enough to run inline on every leaf above the threshold without
// becoming the write path's bottleneck, at the cost of a worse ratio
// than a heavier codec. hashTable is reused across calls to avoid an
// allocation per leaf.
type LZ4Compressor struct {
	hashTable []int
}

// NewLZ4Compressor returns a ready-to-use LZ4Compressor.
func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{hashTable: make([]int, 1<<16)}
}

// Compress returns data's LZ4 block encoding. If data doesn't compress
// (output would be >= input), it returns data unchanged — the writer
// already checks len(out) < len(payload) before treating output as
// compressed, so this is a safe degenerate case rather than an error.
func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, c.hashTable)
	if err != nil {
		return nil, fmt.Errorf("catl2: lz4 compress: %w", err)
	}
	if n == 0 || n >= len(data) {
		// incompressible: pierrec/lz4 reports n == 0, or the output is no smaller
		return data, nil
	}
	return dst[:n], nil
}

// Decompress expands data, which must have been produced by Compress,
// into a buffer of exactly rawSize bytes (the original, uncompressed
// leaf payload length recorded in the on-disk LeafHeader).
func (c *LZ4Compressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	dst := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("catl2: lz4 decompress: %w", err)
	}
	return dst[:n], nil
}
