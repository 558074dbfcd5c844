// Package v1stream provides a minimal, concrete producer for the v1
// catalogue input contract: a sequence of (ledger header, state delta,
// transaction set) tuples. A real deployment would read this from the
// legacy catalogue v1 file format; this package instead gives the
// converter and its tests something to drive against without that
// reader, modeled on the ledger/state-tree relationship described in
// the original hasher's LedgerHeaderView/Ledger types.
package v1stream

import (
	"errors"
	"io"

	"github.com/sublimator/catalogue-tools-sub001/internal/ledger"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// Record is one (node_type, key, data) entry in a state delta or
// transaction set. Type reuses shamap.NodeType's wire tags directly:
// shamap.NodeTypeRemove means "delete this key from the destination
// tree", shamap.NodeTypeTerminal never appears in a materialized
// Record (it is implicit in reaching the end of the slice) but is
// kept available for callers building a wire-level encoding of the
// stream. Any other NodeType value is an add-or-update carrying Data;
// the leaf is hashed in the destination tree's own node type, not in
// the Record's.
type Record struct {
	Type shamap.NodeType
	Key  shamap.Key
	Data []byte
}

// LedgerTuple is one (ledger_header, state_delta, tx_set) unit yielded
// by the stream.
type LedgerTuple struct {
	Header       ledger.HeaderV1
	StateDelta   []Record
	TransactionSet []Record
}

// ErrNoMoreLedgers is returned by Stream.Next once the stream is
// exhausted, mirroring io.EOF without forcing callers to import io
// for a stream-specific sentinel.
var ErrNoMoreLedgers = errors.New("v1stream: no more ledgers")

// Stream yields successive LedgerTuples. Implementations are not
// required to be safe for concurrent use.
type Stream interface {
	// Next returns the next tuple, or ErrNoMoreLedgers when exhausted.
	Next() (LedgerTuple, error)
	// Close releases any resources the stream holds.
	Close() error
}

// MemoryStream replays a fixed, in-memory sequence of LedgerTuples. It
// is the stand-in for a real v1 file reader in tests and in the CLI
// when no input reader is wired.
type MemoryStream struct {
	tuples []LedgerTuple
	pos    int
}

// NewMemoryStream builds a Stream that replays tuples in order.
func NewMemoryStream(tuples []LedgerTuple) *MemoryStream {
	return &MemoryStream{tuples: tuples}
}

func (s *MemoryStream) Next() (LedgerTuple, error) {
	if s.pos >= len(s.tuples) {
		return LedgerTuple{}, ErrNoMoreLedgers
	}
	t := s.tuples[s.pos]
	s.pos++
	return t, nil
}

func (s *MemoryStream) Close() error { return nil }

// Builder accumulates a sequence of LedgerTuples for a MemoryStream,
// letting callers (tests, the CLI's synthetic-input mode) assemble a
// stream one ledger at a time without hand-building slices.
type Builder struct {
	tuples []LedgerTuple
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// AddLedger appends a tuple with the given header and record sets.
func (b *Builder) AddLedger(header ledger.HeaderV1, stateDelta, txSet []Record) *Builder {
	b.tuples = append(b.tuples, LedgerTuple{
		Header:         header,
		StateDelta:     stateDelta,
		TransactionSet: txSet,
	})
	return b
}

// Build returns the assembled stream.
func (b *Builder) Build() *MemoryStream {
	return NewMemoryStream(b.tuples)
}

// Drain reads every remaining tuple from s, for tests and tooling that
// want the whole stream materialized at once rather than pumped via
// Next. It treats ErrNoMoreLedgers (and io.EOF, for streams built atop
// an io.Reader-backed implementation) as a clean end of input.
func Drain(s Stream) ([]LedgerTuple, error) {
	var out []LedgerTuple
	for {
		t, err := s.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreLedgers) || errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, t)
	}
}
