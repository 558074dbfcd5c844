package shamap

import "sync"

// Node is the sum-type contract shared by InnerNode and LeafNode: a cached
// hash, a dirty flag, and a flavor tag. PathFinder and SHAMap operate
// against concrete *InnerNode / *LeafNode once they need branch-level
// access; Node exists for the cases (child-container slots, hashing) that
// only need to know "is this a leaf or an inner".
type Node interface {
	IsLeaf() bool
	GetHash() (Hash, error)
}

// LeafNode is immutable after construction: Item and NodeType never change,
// and Hash is computed once up front rather than lazily, since nothing
// about a leaf can make its hash stale.
type LeafNode struct {
	item Item
	typ  NodeType
	hash Hash
}

// NewLeafNode builds a leaf and eagerly computes its hash.
func NewLeafNode(item Item, typ NodeType) (*LeafNode, error) {
	h, err := leafHash(item, typ)
	if err != nil {
		return nil, err
	}
	return &LeafNode{item: item, typ: typ, hash: h}, nil
}

func (l *LeafNode) IsLeaf() bool { return true }

func (l *LeafNode) GetHash() (Hash, error) { return l.hash, nil }

// Item returns the leaf's key/data pair.
func (l *LeafNode) Item() Item { return l.item }

// Type returns the leaf's hashing-domain discriminator.
func (l *LeafNode) Type() NodeType { return l.typ }

// InnerNode is the trie's mutable branch node. depth is the number of key
// nibbles consumed to reach it (0 at the root); children.mask bit b is set
// iff children.Get(b) is non-nil.
//
// CoW bookkeeping: version is the version counter value stamped on this
// node the last time it was exclusively owned by a mutator. A mutator may
// write into this node in place iff version == mutator's currentVersion;
// otherwise it must clone first (see dirtyOrCopyInners in pathfinder.go).
type InnerNode struct {
	mu sync.Mutex

	depth    uint8
	children *childContainer

	hash      Hash
	hashValid bool

	version    int64
	cowEnabled bool

	// useSynthetic selects collapsedInnerHash (which understands skip
	// nodes) over the plain referenceInnerHash. Set once, at construction,
	// from the owning SHAMap's collapse implementation: only maps that
	// allow leafs_and_inners collapsing ever produce skip nodes.
	useSynthetic bool
}

// newInnerNode returns an empty inner node at depth, stamped with version.
func newInnerNode(depth uint8, version int64, cowEnabled, useSynthetic bool) *InnerNode {
	return &InnerNode{
		depth:        depth,
		children:     newChildContainer(),
		version:      version,
		cowEnabled:   cowEnabled,
		useSynthetic: useSynthetic,
	}
}

func (n *InnerNode) IsLeaf() bool { return false }

// GetHash returns the cached hash, computing and caching it first if dirty.
func (n *InnerNode) GetHash() (Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.getHashLocked()
}

func (n *InnerNode) getHashLocked() (Hash, error) {
	if n.hashValid {
		return n.hash, nil
	}
	var h Hash
	var err error
	if n.useSynthetic {
		h, err = collapsedInnerHash(n)
	} else {
		h, err = referenceInnerHash(n)
	}
	if err != nil {
		return Hash{}, err
	}
	n.hash = h
	n.hashValid = true
	return n.hash, nil
}

// ForEachChild calls fn for every occupied branch in ascending order,
// stopping early if fn returns false. Exposed for callers outside the
// package (the v2 writer, the hybrid map) that need read-only structural
// access without reaching into unexported fields.
func (n *InnerNode) ForEachChild(fn func(branch int, child Node) bool) {
	n.children.ForEach(fn)
}

// ChildAt returns the child at branch b, or nil.
func (n *InnerNode) ChildAt(b int) Node {
	return n.children.Get(b)
}

// ChildMask returns the 16-bit branch-occupancy mask.
func (n *InnerNode) ChildMask() uint16 {
	return n.children.Mask()
}

// Depth returns the number of key nibbles consumed to reach this node.
func (n *InnerNode) Depth() uint8 { return n.depth }

// Dirty invalidates the cached hash. Called on every inner along a
// mutated path (PathFinder.dirtyPath).
func (n *InnerNode) Dirty() {
	n.mu.Lock()
	n.hashValid = false
	n.mu.Unlock()
}

// Version returns the CoW version this node was last stamped with.
func (n *InnerNode) Version() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

// clone returns a fresh InnerNode with a copy of this node's child
// container (children shared, not deep-copied) stamped at targetVersion.
// The hash is carried over unchanged: cloning alone does not invalidate it,
// only a subsequent Set/Remove on the clone does.
func (n *InnerNode) clone(targetVersion int64) *InnerNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &InnerNode{
		depth:        n.depth,
		children:     n.children.Copy(),
		hash:         n.hash,
		hashValid:    n.hashValid,
		version:      targetVersion,
		cowEnabled:   n.cowEnabled,
		useSynthetic: n.useSynthetic,
	}
}
