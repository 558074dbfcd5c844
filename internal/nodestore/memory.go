package nodestore

import (
	"sync"

	"github.com/sublimator/catalogue-tools-sub001/internal/logging"
)

var memoryLog = logging.For("nodestore")

// MemoryBackend is an unbounded map-backed Backend, used for tests and
// for the ephemeral Family a v1stream replay builds up entirely in
// RAM. Fetch returns copies so callers can't mutate stored data.
type MemoryBackend struct {
	mu    sync.RWMutex
	nodes map[Hash256]*Node
	open  bool

	writeLoad int
}

// NewMemoryBackend returns a closed, empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{nodes: make(map[Hash256]*Node)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Open(createIfMissing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes == nil {
		m.nodes = make(map[Hash256]*Node)
	}
	m.open = true
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *MemoryBackend) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

func copyNode(n *Node) *Node {
	cp := *n
	cp.Data = append([]byte(nil), n.Data...)
	return &cp
}

func (m *MemoryBackend) Fetch(hash Hash256) (*Node, Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return nil, BackendError
	}
	n, ok := m.nodes[hash]
	if !ok {
		return nil, NotFound
	}
	return copyNode(n), OK
}

func (m *MemoryBackend) FetchBatch(hashes []Hash256) ([]*Node, Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return nil, BackendError
	}
	out := make([]*Node, len(hashes))
	for i, h := range hashes {
		if n, ok := m.nodes[h]; ok {
			out[i] = copyNode(n)
		}
	}
	return out, OK
}

func (m *MemoryBackend) Store(node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node.Hash] = copyNode(node)
	m.writeLoad++
	return nil
}

func (m *MemoryBackend) StoreBatch(nodes []*Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range nodes {
		m.nodes[n.Hash] = copyNode(n)
	}
	m.writeLoad += len(nodes)
	return nil
}

func (m *MemoryBackend) Sync() error { return nil }

func (m *MemoryBackend) ForEach(fn func(*Node) error) error {
	m.mu.RLock()
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, copyNode(n))
	}
	m.mu.RUnlock()
	for _, n := range nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) GetWriteLoad() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writeLoad
}

func (m *MemoryBackend) SetDeletePath(del bool) {}

func (m *MemoryBackend) FdRequired() int { return 0 }
