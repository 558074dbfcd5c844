package nodestore

import (
	"context"
	"fmt"
	"time"

	"github.com/sublimator/catalogue-tools-sub001/internal/logging"
)

var dbLog = logging.For("nodestore")

// databaseImpl is the only Database implementation: a Backend fronted
// by a positive cache and a negative cache, matching the teacher's
// DatabaseImpl/NewDatabaseWithConfig split between a quick default and
// a fully configured constructor.
type databaseImpl struct {
	backend Backend
	pos     *cache
	neg     *negativeCache

	backendReads  uint64
	backendWrites uint64
}

// NewDatabase wraps backend with a positive cache sized/ttl'd as given
// and a negative cache using its own defaults.
func NewDatabase(backend Backend, cacheSize int, cacheTTL time.Duration) Database {
	return &databaseImpl{
		backend: backend,
		pos:     newCache(cacheSize, cacheTTL),
		neg:     newNegativeCache(5*time.Minute, 100_000),
	}
}

// NewDatabaseWithConfig wraps backend using every tunable in cfg.
func NewDatabaseWithConfig(backend Backend, cfg *Config) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &databaseImpl{
		backend: backend,
		pos:     newCache(cfg.CacheSize, cfg.CacheTTL),
		neg:     newNegativeCache(cfg.NegativeCacheTTL, cfg.NegativeCacheMaxSize),
	}, nil
}

func (d *databaseImpl) Fetch(ctx context.Context, hash Hash256) (*Node, error) {
	if n, ok := d.pos.get(hash); ok {
		return n, nil
	}
	if d.neg.isMissing(hash) {
		return nil, nil
	}

	n, status := d.backend.Fetch(hash)
	d.backendReads++
	switch status {
	case OK:
		d.pos.put(n)
		return n, nil
	case NotFound:
		d.neg.markMissing(hash)
		return nil, nil
	case DataCorrupt:
		return nil, fmt.Errorf("nodestore: node %s is corrupt", hash.Hex())
	default:
		return nil, fmt.Errorf("nodestore: backend error fetching %s", hash.Hex())
	}
}

func (d *databaseImpl) FetchBatch(ctx context.Context, hashes []Hash256) ([]*Node, error) {
	out := make([]*Node, len(hashes))
	var misses []Hash256
	missIdx := make([]int, 0, len(hashes))

	for i, h := range hashes {
		if n, ok := d.pos.get(h); ok {
			out[i] = n
			continue
		}
		if d.neg.isMissing(h) {
			continue
		}
		misses = append(misses, h)
		missIdx = append(missIdx, i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	nodes, status := d.backend.FetchBatch(misses)
	d.backendReads += uint64(len(misses))
	if status != OK {
		return nil, fmt.Errorf("nodestore: backend error in batch fetch")
	}
	for j, n := range nodes {
		idx := missIdx[j]
		if n == nil {
			d.neg.markMissing(misses[j])
			continue
		}
		d.pos.put(n)
		out[idx] = n
	}
	return out, nil
}

func (d *databaseImpl) Store(ctx context.Context, node *Node) error {
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}
	if err := d.backend.Store(node); err != nil {
		return err
	}
	d.backendWrites++
	d.pos.put(node)
	d.neg.remove(node.Hash)
	return nil
}

func (d *databaseImpl) StoreBatch(ctx context.Context, nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	now := time.Now()
	for _, n := range nodes {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
	}
	if err := d.backend.StoreBatch(nodes); err != nil {
		return err
	}
	d.backendWrites += uint64(len(nodes))
	for _, n := range nodes {
		d.pos.put(n)
		d.neg.remove(n.Hash)
	}
	return nil
}

func (d *databaseImpl) Sweep() int {
	removed := d.pos.sweep() + d.neg.sweep()
	if removed > 0 {
		dbLog.Debug("swept expired cache entries", "removed", removed)
	}
	return removed
}

func (d *databaseImpl) Stats() Statistics {
	return Statistics{
		CacheHits:     d.pos.hits.Load(),
		CacheMisses:   d.pos.misses.Load(),
		CacheSize:     d.pos.len(),
		CacheBytes:    d.pos.bytes(),
		NegativeHits:  uint64(d.neg.hits.Load()),
		BackendReads:  d.backendReads,
		BackendWrites: d.backendWrites,
		WriteLoad:     d.backend.GetWriteLoad(),
	}
}

func (d *databaseImpl) Sync() error {
	return d.backend.Sync()
}

func (d *databaseImpl) Close() error {
	return d.backend.Close()
}
