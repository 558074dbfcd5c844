package nodestore

import (
	"context"
	"time"

	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// FlushEntry is one node pending a StoreBatch call: a hash already
// computed by the caller (a SHAMap walk or a v1stream replay) paired
// with its prefix-format serialized bytes.
type FlushEntry struct {
	Hash shamap.Hash
	Data []byte
	Type NodeType
}

// Family is the interface cmd/catlconv's node-store rebuild holds a
// nodestore by: a flat hash-addressed store, independent of
// any single catalogue v2 file's offsets. Adapted from the teacher's
// NodeStoreFamily/Family split in internal/core/shamap.
type Family interface {
	Fetch(hash shamap.Hash) ([]byte, error)
	StoreBatch(entries []FlushEntry) error
	Sweep() error
	Stats() Statistics
	Close() error
}

// NodeStoreFamily implements Family by delegating to a Database.
type NodeStoreFamily struct {
	db Database
}

// NewNodeStoreFamily wraps an already-opened, already-cached Database.
func NewNodeStoreFamily(db Database) *NodeStoreFamily {
	return &NodeStoreFamily{db: db}
}

// NewMemoryNodeStoreFamily returns a Family backed by an unbounded
// in-memory backend, the shape used by tests and by short-lived
// v1stream replays that never need to survive the process.
func NewMemoryNodeStoreFamily() (*NodeStoreFamily, error) {
	backend := NewMemoryBackend()
	if err := backend.Open(true); err != nil {
		return nil, err
	}
	db := NewDatabase(backend, 2000, time.Hour)
	return NewNodeStoreFamily(db), nil
}

// NewPebbleNodeStoreFamily returns a Family backed by PebbleDB at
// path, for conversions that need the node store to persist across
// process restarts.
func NewPebbleNodeStoreFamily(path string, cacheSize int) (*NodeStoreFamily, error) {
	cfg := &Config{
		Backend:              "pebble",
		Path:                 path,
		CacheSize:            cacheSize,
		CacheTTL:             time.Hour,
		NegativeCacheTTL:     5 * time.Minute,
		NegativeCacheMaxSize: 100_000,
		CreateIfMissing:      true,
	}
	backend, err := NewPebbleBackend(cfg)
	if err != nil {
		return nil, err
	}
	if err := backend.Open(true); err != nil {
		return nil, err
	}
	db, err := NewDatabaseWithConfig(backend, cfg)
	if err != nil {
		return nil, err
	}
	return NewNodeStoreFamily(db), nil
}

// Fetch retrieves a node's serialized bytes by hash. Returns nil, nil
// when the node is not present, matching the Family contract.
func (f *NodeStoreFamily) Fetch(hash shamap.Hash) ([]byte, error) {
	node, err := f.db.Fetch(context.Background(), hash)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return node.Data, nil
}

// StoreBatch persists a batch of already-hashed nodes.
func (f *NodeStoreFamily) StoreBatch(entries []FlushEntry) error {
	if len(entries) == 0 {
		return nil
	}
	nodes := make([]*Node, len(entries))
	for i, e := range entries {
		nodes[i] = &Node{Hash: e.Hash, Data: e.Data, Type: e.Type}
	}
	return f.db.StoreBatch(context.Background(), nodes)
}

// Sweep drops expired cache entries; callers run this periodically
// (e.g. once per ledger) to bound memory during a long replay.
func (f *NodeStoreFamily) Sweep() error {
	f.db.Sweep()
	return nil
}

func (f *NodeStoreFamily) Stats() Statistics {
	return f.db.Stats()
}

func (f *NodeStoreFamily) Close() error {
	return f.db.Close()
}
