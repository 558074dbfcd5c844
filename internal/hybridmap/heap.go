package hybridmap

import (
	"sync"
	"sync/atomic"

	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// heapNode is the ref-counted allocation a Heap* NodeRef points at.
// Exactly one of inner/leaf/placeholder is populated, matching the
// kind recorded on every NodeRef that wraps it.
type heapNode struct {
	refs        atomic.Int32
	inner       *heapInner
	leaf        *heapLeaf
	placeholder *heapPlaceholder
}

// heapInner is a materialized inner node: up to 16 children, any mix of
// mmap and heap NodeRefs, plus a lazily computed, cached hash.
type heapInner struct {
	mu        sync.Mutex
	depth     uint8
	children  [16]NodeRef
	hashVal   shamap.Hash
	hashValid bool
}

// heapLeaf is a materialized leaf: an owned copy of its key and data.
// hashVal is computed once at construction time (leaves never need
// lazy/invalidated hashing since their content is set at creation).
type heapLeaf struct {
	key     shamap.Key
	data    []byte
	typ     shamap.NodeType
	hashVal shamap.Hash
}

// heapPlaceholder knows only a hash (and the depth it was found at);
// any operation needing its content fails with ErrPlaceholder.
type heapPlaceholder struct {
	hash  shamap.Hash
	depth uint8
}

func newHeapInnerRef(depth uint8) NodeRef {
	hn := &heapNode{inner: &heapInner{depth: depth}}
	hn.refs.Store(1)
	return NodeRef{kind: KindHeapInner, heap: hn}
}

func newHeapLeafRef(key shamap.Key, data []byte, typ shamap.NodeType) NodeRef {
	cp := make([]byte, len(data))
	copy(cp, data)
	l := &heapLeaf{key: key, data: cp, typ: typ, hashVal: leafHash(key, cp, typ)}
	hn := &heapNode{leaf: l}
	hn.refs.Store(1)
	return NodeRef{kind: KindHeapLeaf, heap: hn}
}

func newHeapPlaceholderRef(hash shamap.Hash, depth uint8) NodeRef {
	hn := &heapNode{placeholder: &heapPlaceholder{hash: hash, depth: depth}}
	hn.refs.Store(1)
	return NodeRef{kind: KindHeapPlaceholder, heap: hn}
}

func (l *heapLeaf) hash() shamap.Hash { return l.hashVal }

// leafHash computes a leaf's hash identically to the plain trie's
// algorithm (§4.6): prefix chosen by domain, then prefix/data/key.
func leafHash(key shamap.Key, data []byte, typ shamap.NodeType) shamap.Hash {
	prefix := shamap.LeafNodePrefix
	if typ == shamap.NodeTypeTxNoMeta || typ == shamap.NodeTypeTxWithMeta {
		prefix = shamap.TxNodePrefix
	}
	return shamap.HashPieces(prefix[:], data, key[:])
}

// hash returns the inner node's cached hash, computing it (and caching
// the result) on first access. Matches referenceInnerHash in the plain
// trie: no collapse-aware synthetic chaining, since a hybrid map's
// materialized inners are always adjacent to their children in depth —
// materialize_path_for_key only stops a collapsed section it cannot
// cross, it never fabricates an intermediate skip level.
func (in *heapInner) hash() (shamap.Hash, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.hashValid {
		return in.hashVal, nil
	}
	h := shamap.NewHasher()
	h.Write(shamap.InnerPrefix[:])
	for _, c := range in.children {
		ch, err := c.Hash()
		if err != nil {
			return shamap.Hash{}, err
		}
		h.Write(ch[:])
	}
	in.hashVal = h.Sum256()
	in.hashValid = true
	return in.hashVal, nil
}

func (in *heapInner) invalidate() {
	in.hashValid = false
}

// setChildLocked sets branch b to child, adjusting reference counts:
// retain the incoming heap child, release the outgoing one. Caller
// must hold in.mu.
func (in *heapInner) setChildLocked(b int, child NodeRef) {
	old := in.children[b]
	in.children[b] = child.Retain()
	old.Release()
	in.invalidate()
}
