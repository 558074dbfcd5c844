package hybridmap

import (
	"sync"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// Hmap is a trie whose root may be backed by an mmap'd catalogue v2
// file, a heap-allocated tree, or (typically) a mix of both along
// different branches. Reads walk whichever representation each node
// happens to be in; writes materialize the touched path onto the heap
// first (see MaterializePath) and then mutate heap copies in place.
type Hmap struct {
	mu   sync.Mutex
	root NodeRef
	typ  shamap.NodeType
}

// New returns an empty, fully heap-backed Hmap.
func New(typ shamap.NodeType) *Hmap {
	return &Hmap{root: Empty, typ: typ}
}

// NewFromMmap returns an Hmap rooted at an mmap'd subtree, e.g. a
// ledger's state_root or tx_root read from a catl2.Reader.
func NewFromMmap(r *catl2.Reader, rootAbs int64, typ shamap.NodeType) (*Hmap, error) {
	if rootAbs == 0 {
		return New(typ), nil
	}
	root, err := MmapRoot(r, rootAbs, catl2.ChildInner)
	if err != nil {
		return nil, err
	}
	return &Hmap{root: root, typ: typ}, nil
}

// Root returns the current root NodeRef.
func (m *Hmap) Root() NodeRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// RootHash returns the current root's hash.
func (m *Hmap) RootHash() (shamap.Hash, error) {
	return m.Root().Hash()
}

// GetItem looks key up without materializing anything: it walks
// whichever mix of mmap/heap nodes the path happens to be made of.
func (m *Hmap) GetItem(key shamap.Key) ([]byte, bool, error) {
	cur := m.Root()
	for {
		if cur.IsEmpty() {
			return nil, false, nil
		}
		if cur.IsPlaceholder() {
			return nil, false, ErrPlaceholder
		}
		if cur.IsLeaf() {
			k, data, err := cur.LeafKeyData()
			if err != nil {
				return nil, false, err
			}
			if k != key {
				return nil, false, nil
			}
			return data, true, nil
		}
		depth, err := cur.Depth()
		if err != nil {
			return nil, false, err
		}
		nib, err := key.Nibble(int(depth))
		if err != nil {
			return nil, false, err
		}
		child, err := cur.GetChild(int(nib))
		if err != nil {
			return nil, false, err
		}
		cur = child
	}
}

// AddItem is SetItem(key, data, ModeAddOnly).
func (m *Hmap) AddItem(key shamap.Key, data []byte) (shamap.SetResult, error) {
	return m.SetItem(key, data, shamap.ModeAddOnly)
}

// UpdateItem is SetItem(key, data, ModeUpdateOnly).
func (m *Hmap) UpdateItem(key shamap.Key, data []byte) (shamap.SetResult, error) {
	return m.SetItem(key, data, shamap.ModeUpdateOnly)
}

// SetItem inserts or updates key under the constraint mode, per §4.5
// adapted to NodeRef: the touched path is materialized onto the heap
// first, then mutated in place.
func (m *Hmap) SetItem(key shamap.Key, data []byte, mode shamap.SetMode) (shamap.SetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	materialized, err := MaterializePath(m.root, key, m.typ)
	if err != nil {
		return shamap.ResultFailed, err
	}
	m.root = materialized

	if m.root.IsEmpty() {
		if mode == shamap.ModeUpdateOnly {
			return shamap.ResultFailed, nil
		}
		m.root = newHeapLeafRef(key, data, m.typ)
		return shamap.ResultAdd, nil
	}

	var parent *heapInner
	var parentBranch int
	expectedDepth := uint8(0)
	cur := m.root

	for {
		switch cur.kind {
		case KindHeapPlaceholder, KindMmapPlaceholder:
			return shamap.ResultFailed, ErrPlaceholder

		case KindHeapLeaf:
			existingKey := cur.heap.leaf.key
			if existingKey == key {
				if mode == shamap.ModeAddOnly {
					return shamap.ResultFailed, nil
				}
				m.replaceSlot(parent, parentBranch, newHeapLeafRef(key, data, m.typ))
				return shamap.ResultUpdate, nil
			}
			if mode == shamap.ModeUpdateOnly {
				return shamap.ResultFailed, nil
			}
			return m.spliceLeafCollision(parent, parentBranch, expectedDepth, existingKey, cur, key, data)

		case KindMmapLeaf:
			// MaterializePath only leaves an mmap node in place at the very
			// tip of the walk (it materializes everything it steps past);
			// reaching one here means this is that tip.
			existingKey, _, err := cur.LeafKeyData()
			if err != nil {
				return shamap.ResultFailed, err
			}
			if existingKey == key {
				if mode == shamap.ModeAddOnly {
					return shamap.ResultFailed, nil
				}
				m.replaceSlot(parent, parentBranch, newHeapLeafRef(key, data, m.typ))
				return shamap.ResultUpdate, nil
			}
			if mode == shamap.ModeUpdateOnly {
				return shamap.ResultFailed, nil
			}
			return m.spliceLeafCollision(parent, parentBranch, expectedDepth, existingKey, cur, key, data)

		case KindHeapInner:
			in := cur.heap.inner
			if in.depth > expectedDepth {
				div, diverges, err := divergesInSkip(key, cur, expectedDepth, in.depth)
				if err != nil {
					return shamap.ResultFailed, err
				}
				if diverges {
					if mode == shamap.ModeUpdateOnly {
						return shamap.ResultFailed, nil
					}
					return m.spliceSkipCollision(parent, parentBranch, div, cur, key, data)
				}
			}
			nib, err := key.Nibble(int(in.depth))
			if err != nil {
				return shamap.ResultFailed, err
			}
			branch := int(nib)
			in.mu.Lock()
			child := in.children[branch]
			in.mu.Unlock()
			if child.IsEmpty() {
				if mode == shamap.ModeUpdateOnly {
					return shamap.ResultFailed, nil
				}
				m.replaceSlot(in, branch, newHeapLeafRef(key, data, m.typ))
				return shamap.ResultAdd, nil
			}
			parent = in
			parentBranch = branch
			expectedDepth = in.depth + 1
			cur = child

		default:
			return shamap.ResultFailed, ErrNotInner
		}
	}
}

// setSlot writes child into parent's slot (or the map's root, if
// parent is nil), retaining the incoming reference and releasing the
// outgoing one so heap ref-counts stay accurate regardless of whether
// the slot is a root pointer or a child array entry.
func (m *Hmap) setSlot(parent *heapInner, branch int, child NodeRef) {
	if parent == nil {
		old := m.root
		m.root = child.Retain()
		old.Release()
		return
	}
	parent.mu.Lock()
	parent.setChildLocked(branch, child)
	parent.mu.Unlock()
}

// replaceSlot installs a freshly constructed node into a slot and then
// releases the caller's own share of it. newHeapLeafRef/newHeapInnerRef
// return a node with refs == 1, representing the constructing call's
// implicit ownership; setSlot's Retain gives the slot its own share, so
// without this Release the construction-time share would never be
// given up and the node would leak one reference forever.
func (m *Hmap) replaceSlot(parent *heapInner, branch int, fresh NodeRef) {
	m.setSlot(parent, branch, fresh)
	fresh.Release()
}

// divergesInSkip reports whether key diverges from skipNode's subtree
// somewhere in [fromDepth, toDepth), and the depth at which it does.
func divergesInSkip(key shamap.Key, skipNode NodeRef, fromDepth, toDepth uint8) (int, bool, error) {
	rep, err := firstLeafKey(skipNode)
	if err != nil {
		return 0, false, err
	}
	for d := int(fromDepth); d < int(toDepth); d++ {
		kn, err := key.Nibble(d)
		if err != nil {
			return 0, false, err
		}
		rn, err := rep.Nibble(d)
		if err != nil {
			return 0, false, err
		}
		if kn != rn {
			return d, true, nil
		}
	}
	return 0, false, nil
}

// spliceLeafCollision handles inserting a new leaf when the walk
// landed on an existing leaf with a different key: both leaves move
// under a single freshly created heap inner at depth
// find_divergence(newKey, existingKey, parentDepth), with no inners
// created for the levels between parentDepth and that depth.
func (m *Hmap) spliceLeafCollision(parent *heapInner, parentBranch int, parentDepth uint8, existingKey shamap.Key, existingLeaf NodeRef, newKey shamap.Key, data []byte) (shamap.SetResult, error) {
	div, err := newKey.FindDivergence(existingKey, int(parentDepth))
	if err != nil {
		return shamap.ResultFailed, err
	}
	splice := newHeapInnerRef(uint8(div))
	in := splice.heap.inner

	existingNib, err := existingKey.Nibble(div)
	if err != nil {
		return shamap.ResultFailed, err
	}
	newNib, err := newKey.Nibble(div)
	if err != nil {
		return shamap.ResultFailed, err
	}
	in.children[existingNib] = existingLeaf.Retain()
	in.children[newNib] = newHeapLeafRef(newKey, data, m.typ)

	m.replaceSlot(parent, parentBranch, splice)
	return shamap.ResultAdd, nil
}

// spliceSkipCollision handles inserting a new leaf when the walk
// diverges from a skip (collapsed) inner's subtree at div: a new inner
// is spliced in at div, with the whole skip subtree on one branch and
// the new leaf on the other.
func (m *Hmap) spliceSkipCollision(parent *heapInner, parentBranch int, div int, skipNode NodeRef, newKey shamap.Key, data []byte) (shamap.SetResult, error) {
	rep, err := firstLeafKey(skipNode)
	if err != nil {
		return shamap.ResultFailed, err
	}
	skipNib, err := rep.Nibble(div)
	if err != nil {
		return shamap.ResultFailed, err
	}
	newNib, err := newKey.Nibble(div)
	if err != nil {
		return shamap.ResultFailed, err
	}

	splice := newHeapInnerRef(uint8(div))
	in := splice.heap.inner
	in.children[skipNib] = skipNode.Retain()
	in.children[newNib] = newHeapLeafRef(newKey, data, m.typ)

	m.replaceSlot(parent, parentBranch, splice)
	return shamap.ResultAdd, nil
}

// RemoveItem deletes key, returning false if it was not present. The
// touched path is materialized onto the heap first.
func (m *Hmap) RemoveItem(key shamap.Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	materialized, err := MaterializePath(m.root, key, m.typ)
	if err != nil {
		return false, err
	}
	m.root = materialized

	if m.root.IsEmpty() {
		return false, nil
	}

	var parent *heapInner
	var parentBranch int
	cur := m.root

	for {
		switch cur.kind {
		case KindHeapPlaceholder, KindMmapPlaceholder:
			return false, ErrPlaceholder
		case KindHeapLeaf, KindMmapLeaf:
			k, _, err := cur.LeafKeyData()
			if err != nil {
				return false, err
			}
			if k != key {
				return false, nil
			}
			m.setSlot(parent, parentBranch, Empty)
			return true, nil
		case KindHeapInner:
			in := cur.heap.inner
			nib, err := key.Nibble(int(in.depth))
			if err != nil {
				return false, err
			}
			branch := int(nib)
			in.mu.Lock()
			child := in.children[branch]
			in.mu.Unlock()
			if child.IsEmpty() {
				return false, nil
			}
			parent = in
			parentBranch = branch
			cur = child
		default:
			return false, ErrNotInner
		}
	}
}
