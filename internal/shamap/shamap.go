package shamap

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SetMode selects the add/update constraint for SetItem.
type SetMode int

const (
	ModeAddOnly SetMode = iota
	ModeUpdateOnly
	ModeAddOrUpdate
)

// SetResult reports what SetItem actually did.
type SetResult int

const (
	ResultAdd SetResult = iota
	ResultUpdate
	ResultFailed
)

func (r SetResult) String() string {
	switch r {
	case ResultAdd:
		return "ADD"
	case ResultUpdate:
		return "UPDATE"
	default:
		return "FAILED"
	}
}

// CollapseImpl selects how aggressively the trie collapses single-child
// runs of inner nodes, per §3.3.
type CollapseImpl int

const (
	// CollapseNone never hoists anything: an inner left with a single
	// child stays in place. A new leaf still goes into the first empty
	// branch on its key's path; inners are only added where two keys
	// collide.
	CollapseNone CollapseImpl = iota
	// CollapseLeafsOnly hoists a lone leaf child into its parent, but
	// never merges runs of bare inner nodes.
	CollapseLeafsOnly
	// CollapseLeafsAndInners additionally promotes a lone inner child to
	// replace its parent, producing skip nodes and requiring the
	// synthetic hash chain to reproduce the uncollapsed hash.
	CollapseLeafsAndInners
)

// Options configures a new SHAMap.
type Options struct {
	Collapse CollapseImpl
}

// SHAMap is a persistent, authenticated radix-16 trie over 256-bit keys,
// supporting copy-on-write snapshots. The zero value is not usable; build
// one with New.
type SHAMap struct {
	mu sync.RWMutex

	root     *InnerNode
	nodeType NodeType
	collapse CollapseImpl

	versionCounter *atomic.Int64
	currentVersion int64
	cowEnabled     bool
}

// New returns an empty SHAMap whose leaves are hashed under nodeType's
// domain (e.g. NodeTypeAccountState or NodeTypeTxWithMeta).
func New(nodeType NodeType, opts Options) *SHAMap {
	vc := &atomic.Int64{}
	vc.Store(1)
	useSynthetic := opts.Collapse == CollapseLeafsAndInners
	return &SHAMap{
		root:           newInnerNode(0, 1, false, useSynthetic),
		nodeType:       nodeType,
		collapse:       opts.Collapse,
		versionCounter: vc,
		currentVersion: 1,
		cowEnabled:     false,
	}
}

func (m *SHAMap) useSynthetic() bool { return m.collapse == CollapseLeafsAndInners }
func (m *SHAMap) collapseInners() bool { return m.collapse == CollapseLeafsAndInners }
func (m *SHAMap) collapseEnabled() bool { return m.collapse != CollapseNone }

// Root returns the map's current root node, for callers (the v2 writer,
// the hybrid map materializer) that need direct structural access. The
// returned node must be treated as read-only by callers that don't also
// own this SHAMap's mutex.
func (m *SHAMap) Root() *InnerNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// GetHash returns the root hash, computing and caching it if necessary.
func (m *SHAMap) GetHash() (Hash, error) {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()
	return root.GetHash()
}

// GetItem returns the item stored under key, or ErrKeyNotFound.
func (m *SHAMap) GetItem(key Key) (Item, error) {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()

	pf, err := newPathFinder(root, key)
	if err != nil {
		return Item{}, err
	}
	if pf.foundLeaf == nil || !pf.leafMatches {
		return Item{}, ErrKeyNotFound
	}
	return pf.foundLeaf.Item(), nil
}

// AddItem is SetItem(item, ModeAddOnly).
func (m *SHAMap) AddItem(item Item) (SetResult, error) {
	return m.SetItem(item, ModeAddOnly)
}

// UpdateItem is SetItem(item, ModeUpdateOnly).
func (m *SHAMap) UpdateItem(item Item) (SetResult, error) {
	return m.SetItem(item, ModeUpdateOnly)
}

// SetItem inserts or updates item under the constraint mode, implementing
// the reference set algorithm of §4.5.
func (m *SHAMap) SetItem(item Item, mode SetMode) (SetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pf, err := newPathFinder(m.root, item.Key)
	if err != nil {
		return ResultFailed, err
	}

	deepest := pf.dirtyOrCopyInners(m.currentVersion)
	m.root = pf.Root()
	_ = deepest

	switch {
	case pf.foundLeaf == nil && pf.divergenceDepth < 0:
		if mode == ModeUpdateOnly {
			return ResultFailed, nil
		}
		leaf, err := NewLeafNode(item, m.nodeType)
		if err != nil {
			return ResultFailed, err
		}
		parent := pf.Deepest()
		parent.children.Set(int(pf.terminalBranch), leaf)
		pf.dirtyPath()
		if m.collapseEnabled() {
			pf.collapsePath(m.collapseInners())
		}
		return ResultAdd, nil

	case pf.foundLeaf != nil && pf.leafMatches:
		if mode == ModeAddOnly {
			return ResultFailed, nil
		}
		leaf, err := NewLeafNode(item, m.nodeType)
		if err != nil {
			return ResultFailed, err
		}
		parent := pf.Deepest()
		parent.children.Set(int(pf.terminalBranch), leaf)
		pf.dirtyPath()
		if m.collapseEnabled() {
			pf.collapsePath(m.collapseInners())
		}
		return ResultUpdate, nil

	case pf.foundLeaf != nil && !pf.leafMatches:
		if mode == ModeUpdateOnly {
			return ResultFailed, nil
		}
		return m.resolveCollision(pf, item, pf.foundLeaf.Item().Key, pf.Deepest(), int(pf.terminalBranch))

	case pf.divergenceDepth >= 0:
		if mode == ModeUpdateOnly {
			return ResultFailed, nil
		}
		return m.resolveSkipCollision(pf, item)

	default:
		return ResultFailed, nil
	}
}

// resolveCollision handles inserting newItem when terminalBranch of
// parent already holds a leaf with a different key: both leaves are
// pushed down under a freshly created inner chain running from
// parent.Depth()+1 to div = find_divergence(newKey, existingKey,
// parent.Depth()+1), where they part; when inners collapse the chain is
// the single inner at div.
func (m *SHAMap) resolveCollision(pf *pathFinder, newItem Item, existingKey Key, parent *InnerNode, terminalBranch int) (SetResult, error) {
	div, err := newItem.Key.FindDivergence(existingKey, int(parent.Depth())+1)
	if err != nil {
		return ResultFailed, err
	}
	if div >= 64 {
		return ResultFailed, ErrMaxDepthExceeded
	}

	existingLeaf := pf.foundLeaf
	newLeaf, err := NewLeafNode(newItem, m.nodeType)
	if err != nil {
		return ResultFailed, err
	}

	chainDepth := int(parent.Depth()) + 1
	if m.collapseInners() {
		chainDepth = div
	}

	var chainRoot, chainTail *InnerNode
	for d := chainDepth; d <= div; d++ {
		in := newInnerNode(uint8(d), m.currentVersion, m.cowEnabled, m.useSynthetic())
		if chainRoot == nil {
			chainRoot = in
		} else {
			nib, err := existingKey.Nibble(int(chainTail.Depth()))
			if err != nil {
				return ResultFailed, err
			}
			chainTail.children.Set(int(nib), in)
		}
		chainTail = in
	}

	existingNib, err := existingKey.Nibble(div)
	if err != nil {
		return ResultFailed, err
	}
	newNib, err := newItem.Key.Nibble(div)
	if err != nil {
		return ResultFailed, err
	}
	chainTail.children.Set(int(existingNib), existingLeaf)
	chainTail.children.Set(int(newNib), newLeaf)

	parent.children.Set(terminalBranch, chainRoot)
	pf.dirtyPath()
	return ResultAdd, nil
}

// resolveSkipCollision handles inserting newItem when the walk stopped
// inside a collapsed (skip) inner because the key diverges from the
// subtree's keys at pf.divergenceDepth: a new inner is spliced in at that
// depth, with the skip subtree on one branch and the new leaf on the
// other.
func (m *SHAMap) resolveSkipCollision(pf *pathFinder, newItem Item) (SetResult, error) {
	parent := pf.Deepest()
	skipChild := parent.children.Get(int(pf.terminalBranch)).(*InnerNode)
	div := pf.divergenceDepth

	newLeaf, err := NewLeafNode(newItem, m.nodeType)
	if err != nil {
		return ResultFailed, err
	}

	splice := newInnerNode(uint8(div), m.currentVersion, m.cowEnabled, m.useSynthetic())
	skipNib, err := func() (uint8, error) {
		rep, err := firstLeafKey(skipChild)
		if err != nil {
			return 0, err
		}
		return rep.Nibble(div)
	}()
	if err != nil {
		return ResultFailed, err
	}
	newNib, err := newItem.Key.Nibble(div)
	if err != nil {
		return ResultFailed, err
	}
	splice.children.Set(int(skipNib), skipChild)
	splice.children.Set(int(newNib), newLeaf)

	parent.children.Set(int(pf.terminalBranch), splice)
	pf.dirtyPath()
	return ResultAdd, nil
}

// RemoveItem deletes key, returning false if it was not present.
func (m *SHAMap) RemoveItem(key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pf, err := newPathFinder(m.root, key)
	if err != nil {
		return false, err
	}
	if pf.foundLeaf == nil || !pf.leafMatches {
		return false, nil
	}

	pf.dirtyOrCopyInners(m.currentVersion)
	m.root = pf.Root()

	parent := pf.Deepest()
	parent.children.Set(int(pf.terminalBranch), nil)
	pf.dirtyPath()
	if m.collapseEnabled() {
		pf.collapsePath(m.collapseInners())
	}
	return true, nil
}

// Snapshot returns a new SHAMap sharing this map's current root. Per
// §3.4, taking a snapshot bumps the shared version counter twice (once
// for each handle going forward) and enables CoW path-copying on both the
// parent and the returned snapshot.
func (m *SHAMap) Snapshot() *SHAMap {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cowEnabled = true
	m.currentVersion = m.versionCounter.Add(1)
	m.markRootCow()

	snap := &SHAMap{
		root:           m.root,
		nodeType:       m.nodeType,
		collapse:       m.collapse,
		versionCounter: m.versionCounter,
		currentVersion: m.versionCounter.Add(1),
		cowEnabled:     true,
	}
	return snap
}

// markRootCow stamps cowEnabled onto the current root so future mutations
// know to path-copy rather than write in place. Only the root needs the
// flag flipped eagerly; descendants pick it up as dirtyOrCopyInners clones
// them (clone() carries cowEnabled forward).
func (m *SHAMap) markRootCow() {
	m.root.mu.Lock()
	m.root.cowEnabled = true
	m.root.mu.Unlock()
}

// CollapseTree rewrites the tree in place using the configured collapsing
// rule, hoisting every lone-child run it can find. It is a best-effort
// cleanup pass, not required for correctness of get/set/hash.
func (m *SHAMap) CollapseTree() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.collapseEnabled() {
		return
	}
	// The root itself is never collapsed away, only its descendants.
	m.root.children.ForEach(func(b int, c Node) bool {
		m.root.children.Set(b, m.collapseSubtree(c))
		return true
	})
	m.root.Dirty()
}

// collapseSubtree recursively collapses n's descendants bottom-up, then
// reports what n's parent should point at: n itself, or (if n now has
// exactly one hoistable child) that child directly.
func (m *SHAMap) collapseSubtree(n Node) Node {
	inner, ok := n.(*InnerNode)
	if !ok {
		return n
	}
	inner.children.ForEach(func(b int, c Node) bool {
		inner.children.Set(b, m.collapseSubtree(c))
		return true
	})
	if inner.children.Count() != 1 {
		return inner
	}
	var only Node
	inner.children.ForEach(func(_ int, c Node) bool { only = c; return false })
	if _, isInner := only.(*InnerNode); isInner && !m.collapseInners() {
		return inner
	}
	return only
}

// Size returns the number of leaves reachable from the root. O(n).
func (m *SHAMap) Size() int {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()
	return countLeaves(root)
}

func countLeaves(n *InnerNode) int {
	total := 0
	n.children.ForEach(func(_ int, c Node) bool {
		switch v := c.(type) {
		case *LeafNode:
			total++
		case *InnerNode:
			total += countLeaves(v)
		}
		return true
	})
	return total
}

// DebugJSON renders a diagnostic tree dump, mirroring the reference
// implementation's trie_json debug serialization.
func (m *SHAMap) DebugJSON() map[string]any {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()
	return debugNode(root)
}

func debugNode(n Node) map[string]any {
	h, _ := n.GetHash()
	out := map[string]any{"hash": h.Hex()}
	inner, ok := n.(*InnerNode)
	if !ok {
		leaf := n.(*LeafNode)
		out["type"] = "leaf"
		out["node_type"] = leaf.Type().String()
		out["key"] = leaf.Item().Key.Hex()
		return out
	}
	out["type"] = "inner"
	out["depth"] = inner.Depth()
	children := map[string]any{}
	inner.children.ForEach(func(b int, c Node) bool {
		children[fmt.Sprintf("%x", b)] = debugNode(c)
		return true
	})
	out["children"] = children
	return out
}
