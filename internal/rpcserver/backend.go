// Package rpcserver exposes read-only ledger/key lookups over a
// catalogue v2 file, in the two surfaces the teacher itself ships for
// its own ledger service: a net/http+JSON JSON-RPC handler
// (internal/server/api/jsonrpc) and a grpc.Server lifecycle wrapper
// (internal/grpc). Both are thin glue over a single Backend; neither
// implements consensus, tx submission, or any write path.
package rpcserver

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
)

// Backend answers lookups against one open catalogue v2 file. It is
// not safe for concurrent Seek+Lookup pairs from multiple goroutines
// without external synchronization, matching catl2.Reader itself.
type Backend struct {
	reader *catl2.Reader
}

// NewBackend wraps an already-opened reader.
func NewBackend(r *catl2.Reader) *Backend {
	return &Backend{reader: r}
}

// OpenBackend opens path and wraps it in a Backend.
func OpenBackend(path string) (*Backend, error) {
	r, err := catl2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rpcserver: open %s: %w", path, err)
	}
	return NewBackend(r), nil
}

// Close releases the underlying reader.
func (b *Backend) Close() error { return b.reader.Close() }

// LedgerInfo is the wire shape returned by the ledger_info method.
type LedgerInfo struct {
	Sequence    uint32 `json:"sequence"`
	Hash        string `json:"hash"`
	ParentHash  string `json:"parent_hash"`
	TxHash      string `json:"tx_hash"`
	AccountHash string `json:"account_hash"`
	Drops       uint64 `json:"drops"`
	CloseTime   uint32 `json:"close_time"`
}

// LedgerInfo seeks to seq and returns its canonical header.
func (b *Backend) LedgerInfo(seq uint32) (LedgerInfo, error) {
	if !b.reader.SeekToLedger(seq) {
		return LedgerInfo{}, fmt.Errorf("rpcserver: ledger %d not found", seq)
	}
	h, err := b.reader.ReadLedgerInfo()
	if err != nil {
		return LedgerInfo{}, err
	}
	return LedgerInfo{
		Sequence:    h.Seq,
		Hash:        hex.EncodeToString(h.Hash[:]),
		ParentHash:  hex.EncodeToString(h.ParentHash[:]),
		TxHash:      hex.EncodeToString(h.TxHash[:]),
		AccountHash: hex.EncodeToString(h.AccountHash[:]),
		Drops:       h.Drops,
		CloseTime:   h.Close,
	}, nil
}

// ErrKeyNotFound is returned by GetKey/GetKeyTx for a missing key,
// distinct from a malformed-request or I/O error.
var ErrKeyNotFound = errors.New("rpcserver: key not found")

func (b *Backend) lookup(seq uint32, keyHex string, fn func([32]byte) ([]byte, error)) ([]byte, error) {
	if !b.reader.SeekToLedger(seq) {
		return nil, fmt.Errorf("rpcserver: ledger %d not found", seq)
	}
	raw, err := hex.DecodeString(keyHex)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("rpcserver: key must be 64 hex chars, got %q", keyHex)
	}
	var key [32]byte
	copy(key[:], raw)

	data, err := fn(key)
	if errors.Is(err, catl2.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetKey looks up a state-tree key at ledger seq.
func (b *Backend) GetKey(seq uint32, keyHex string) ([]byte, error) {
	return b.lookup(seq, keyHex, b.reader.LookupKeyInState)
}

// GetKeyTx looks up a transaction-tree key at ledger seq.
func (b *Backend) GetKeyTx(seq uint32, keyHex string) ([]byte, error) {
	return b.lookup(seq, keyHex, b.reader.LookupKeyInTx)
}
