package nodestore

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// PebbleBackend persists nodes to a PebbleDB LSM tree on disk, used by
// cmd/catlconv when its node_store.backend setting is "pebble", for a
// durable node store that outlives a single catalogue v2 file.
type PebbleBackend struct {
	mu sync.RWMutex

	db     *pebble.DB
	config *Config
	open   bool

	deletePath bool
	writeLoad  int64
}

// NewPebbleBackend constructs (but does not open) a PebbleBackend for
// cfg.Path, tuned the way the account-state node store is tuned:
// a 64MiB block cache, four concurrent compactions, and a bloom
// filter on every level to keep point lookups for absent hashes cheap.
func NewPebbleBackend(cfg *Config) (*PebbleBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("nodestore: pebble backend requires a path")
	}
	return &PebbleBackend{config: cfg}, nil
}

func (p *PebbleBackend) Name() string { return "pebble" }

func (p *PebbleBackend) Open(createIfMissing bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return nil
	}

	if createIfMissing {
		if err := os.MkdirAll(p.config.Path, 0755); err != nil {
			return fmt.Errorf("nodestore: creating directory %s: %w", p.config.Path, err)
		}
	}

	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20),
		MaxOpenFiles:             1000,
		MemTableSize:             32 << 20,
		MaxConcurrentCompactions: 4,
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    1000,
		LBaseMaxBytes:            64 << 20,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 << 20, FilterPolicy: bloom.FilterPolicy(10)},
		},
	}

	db, err := pebble.Open(p.config.Path, opts)
	if err != nil {
		return fmt.Errorf("nodestore: opening pebble at %s: %w", p.config.Path, err)
	}
	p.db = db
	p.open = true
	return nil
}

func (p *PebbleBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	var err error
	if p.db != nil {
		err = p.db.Close()
		p.db = nil
	}
	p.open = false
	if p.deletePath && p.config.Path != "" {
		if rmErr := os.RemoveAll(p.config.Path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

func (p *PebbleBackend) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

func (p *PebbleBackend) encodeNode(n *Node) []byte {
	// 1-byte type tag, 4-byte little-endian LedgerSeq, then raw data.
	buf := make([]byte, 5+len(n.Data))
	buf[0] = byte(n.Type)
	buf[1] = byte(n.LedgerSeq)
	buf[2] = byte(n.LedgerSeq >> 8)
	buf[3] = byte(n.LedgerSeq >> 16)
	buf[4] = byte(n.LedgerSeq >> 24)
	copy(buf[5:], n.Data)
	return buf
}

func (p *PebbleBackend) decodeNode(hash Hash256, value []byte) (*Node, error) {
	if len(value) < 5 {
		return nil, fmt.Errorf("nodestore: pebble record for %s too short", hash.Hex())
	}
	seq := uint32(value[1]) | uint32(value[2])<<8 | uint32(value[3])<<16 | uint32(value[4])<<24
	data := append([]byte(nil), value[5:]...)
	return &Node{Hash: hash, Type: NodeType(value[0]), LedgerSeq: seq, Data: data}, nil
}

func (p *PebbleBackend) Fetch(hash Hash256) (*Node, Status) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return nil, BackendError
	}
	value, closer, err := p.db.Get(hash[:])
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, NotFound
		}
		return nil, BackendError
	}
	defer closer.Close()
	node, err := p.decodeNode(hash, value)
	if err != nil {
		return nil, DataCorrupt
	}
	return node, OK
}

func (p *PebbleBackend) FetchBatch(hashes []Hash256) ([]*Node, Status) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return nil, BackendError
	}
	out := make([]*Node, len(hashes))
	for i, h := range hashes {
		value, closer, err := p.db.Get(h[:])
		if err != nil {
			if err == pebble.ErrNotFound {
				continue
			}
			return nil, BackendError
		}
		node, decErr := p.decodeNode(h, value)
		closer.Close()
		if decErr != nil {
			return nil, DataCorrupt
		}
		out[i] = node
	}
	return out, OK
}

func (p *PebbleBackend) Store(node *Node) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return fmt.Errorf("nodestore: pebble backend not open")
	}
	atomic.AddInt64(&p.writeLoad, 1)
	return p.db.Set(node.Hash[:], p.encodeNode(node), pebble.Sync)
}

func (p *PebbleBackend) StoreBatch(nodes []*Node) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return fmt.Errorf("nodestore: pebble backend not open")
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, n := range nodes {
		if err := batch.Set(n.Hash[:], p.encodeNode(n), nil); err != nil {
			return err
		}
	}
	atomic.AddInt64(&p.writeLoad, int64(len(nodes)))
	return batch.Commit(pebble.Sync)
}

func (p *PebbleBackend) Sync() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return nil
	}
	return p.db.Flush()
}

func (p *PebbleBackend) ForEach(fn func(*Node) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return fmt.Errorf("nodestore: pebble backend not open")
	}
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var hash Hash256
		copy(hash[:], iter.Key())
		node, err := p.decodeNode(hash, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleBackend) GetWriteLoad() int {
	return int(atomic.LoadInt64(&p.writeLoad))
}

func (p *PebbleBackend) SetDeletePath(del bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletePath = del
}

func (p *PebbleBackend) FdRequired() int { return 1000 }
