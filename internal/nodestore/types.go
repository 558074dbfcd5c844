// Package nodestore is a pluggable key/value store for SHAMap node
// content, addressed by node hash, as an alternative to an mmap'd
// catalogue v2 file: instead of reading nodes out of one ledger's file,
// a nodestore.Database accumulates nodes across many writes (cmd/catlconv
// stores the final state tree's leaves in one after a conversion) and
// serves them back by hash, the way
// rippled's NodeStore backs a live ledger.
package nodestore

import (
	"context"
	"time"

	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// Hash256 is the key nodes are addressed by: a SHAMap node hash.
type Hash256 = shamap.Hash

// NodeType categorizes a stored node for statistics and backend
// tuning; the nodestore otherwise treats Data as opaque bytes.
type NodeType uint8

const (
	NodeUnknown NodeType = iota
	NodeInner
	NodeAccountState
	NodeTransaction
)

func (t NodeType) String() string {
	switch t {
	case NodeInner:
		return "inner"
	case NodeAccountState:
		return "account-state"
	case NodeTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Node is one stored record: a hash, its prefix-format payload, and
// bookkeeping metadata used by sweepers and statistics.
type Node struct {
	Hash      Hash256
	Type      NodeType
	Data      []byte
	LedgerSeq uint32
	CreatedAt time.Time
}

// Size estimates the node's footprint for cache accounting.
func (n *Node) Size() int {
	return len(n.Data) + 32 + 16
}

// Status reports the outcome of a Backend lookup.
type Status int

const (
	OK Status = iota
	NotFound
	DataCorrupt
	BackendError
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case NotFound:
		return "not found"
	case DataCorrupt:
		return "data corrupt"
	default:
		return "backend error"
	}
}

// Backend is a single storage engine: memory, PebbleDB, or (in
// principle) anything else a Database can wrap with caching.
type Backend interface {
	Name() string
	Open(createIfMissing bool) error
	Close() error
	IsOpen() bool

	Fetch(hash Hash256) (*Node, Status)
	FetchBatch(hashes []Hash256) ([]*Node, Status)
	Store(node *Node) error
	StoreBatch(nodes []*Node) error

	Sync() error
	ForEach(fn func(*Node) error) error

	GetWriteLoad() int
	SetDeletePath(del bool)
	FdRequired() int
}

// Statistics summarizes a Database's cache and backend activity, as
// returned by Stats.
type Statistics struct {
	CacheHits    uint64
	CacheMisses  uint64
	CacheSize    int
	CacheBytes   int
	NegativeHits uint64
	BackendReads uint64
	BackendWrites uint64
	WriteLoad    int
}

// Database wraps a Backend with a positive LRU cache and a negative
// cache, the shape every SHAMap family-style consumer talks to.
type Database interface {
	Fetch(ctx context.Context, hash Hash256) (*Node, error)
	FetchBatch(ctx context.Context, hashes []Hash256) ([]*Node, error)
	Store(ctx context.Context, node *Node) error
	StoreBatch(ctx context.Context, nodes []*Node) error

	Sweep() int
	Stats() Statistics
	Sync() error
	Close() error
}
