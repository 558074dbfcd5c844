package catl2

import "github.com/cespare/xxhash/v2"

// QuickChecksum returns a fast, non-cryptographic digest of the whole
// mmap'd file image. cmd/catlconv's --verify-and-test compares it
// across two opens of the output file as a cheap corruption smoke test;
// no tree hash is recomputed there.
func (r *Reader) QuickChecksum() uint64 {
	return xxhash.Sum64(r.data)
}

// QuickChecksumRange digests the byte range [startAbs, endAbs), used to
// checksum a single ledger's node bytes in isolation (e.g. to compare
// two files' encodings of the same ledger without caring about the
// rest of either file).
func (r *Reader) QuickChecksumRange(startAbs, endAbs int64) (uint64, error) {
	if startAbs < 0 || endAbs > int64(len(r.data)) || startAbs > endAbs {
		return 0, ErrCorruptFile
	}
	return xxhash.Sum64(r.data[startAbs:endAbs]), nil
}
