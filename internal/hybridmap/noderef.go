// Package hybridmap implements a trie whose nodes live in either of two
// places at once: non-owning pointers into an mmap'd catalogue v2 file,
// or ref-counted nodes on the Go heap. A NodeRef is the polymorphic
// handle that hides which; reads work against either representation
// directly, and writes materialize the touched path onto the heap
// before mutating it.
package hybridmap

import (
	"errors"
	"fmt"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// Kind discriminates both what a NodeRef points at and where it lives.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindMmapInner
	KindMmapLeaf
	KindMmapPlaceholder
	KindHeapInner
	KindHeapLeaf
	KindHeapPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMmapInner:
		return "mmap_inner"
	case KindMmapLeaf:
		return "mmap_leaf"
	case KindMmapPlaceholder:
		return "mmap_placeholder"
	case KindHeapInner:
		return "heap_inner"
	case KindHeapLeaf:
		return "heap_leaf"
	case KindHeapPlaceholder:
		return "heap_placeholder"
	default:
		return "unknown"
	}
}

// IsMmap reports whether k is one of the non-owning mmap variants.
func (k Kind) IsMmap() bool {
	return k == KindMmapInner || k == KindMmapLeaf || k == KindMmapPlaceholder
}

// IsHeap reports whether k is one of the ref-counted heap variants.
func (k Kind) IsHeap() bool {
	return k == KindHeapInner || k == KindHeapLeaf || k == KindHeapPlaceholder
}

// IsLeaf reports whether k is a leaf, mmap or heap.
func (k Kind) IsLeaf() bool { return k == KindMmapLeaf || k == KindHeapLeaf }

// IsInner reports whether k is an inner node, mmap or heap.
func (k Kind) IsInner() bool { return k == KindMmapInner || k == KindHeapInner }

// IsPlaceholder reports whether k is a placeholder, mmap or heap.
func (k Kind) IsPlaceholder() bool {
	return k == KindMmapPlaceholder || k == KindHeapPlaceholder
}

// ErrPlaceholder is returned by operations that need a node's content
// (not merely its hash) when they land on a placeholder.
var ErrPlaceholder = errors.New("hybridmap: content absent (placeholder)")

// ErrNotInner is returned when an inner-only operation (GetChild, Depth)
// is attempted against a non-inner NodeRef.
var ErrNotInner = errors.New("hybridmap: not an inner node")

// ErrNotHeap names a mutation attempted against a non-heap NodeRef. No
// function in this package returns it: Hmap's mutating operations
// materialize their path onto the heap before changing anything.
var ErrNotHeap = errors.New("hybridmap: not a heap node")

// NodeRef is a 4-field polymorphic node handle: Empty, one of the three
// non-owning Mmap* variants (r, abs valid), or one of the three
// ref-counted Heap* variants (heap valid). It is deliberately a small
// value type — copy it freely; Retain/Release manage the heap side's
// reference count explicitly, matching the boost::intrusive_ptr
// discipline this package is grounded on.
type NodeRef struct {
	kind Kind
	r    *catl2.Reader
	abs  int64
	heap *heapNode
}

// Empty is the zero NodeRef: no node, no subtree.
var Empty = NodeRef{}

func (n NodeRef) Kind() Kind      { return n.kind }
func (n NodeRef) IsEmpty() bool   { return n.kind == KindEmpty }
func (n NodeRef) IsLeaf() bool    { return n.kind.IsLeaf() }
func (n NodeRef) IsInner() bool   { return n.kind.IsInner() }
func (n NodeRef) IsMmap() bool    { return n.kind.IsMmap() }
func (n NodeRef) IsHeap() bool    { return n.kind.IsHeap() }
func (n NodeRef) IsPlaceholder() bool { return n.kind.IsPlaceholder() }

// MmapRoot wraps an absolute offset in r as a NodeRef, tagged per the
// catl2 child type at that location. abs == 0 (the writer's
// empty-subtree sentinel) yields Empty regardless of tag.
func MmapRoot(r *catl2.Reader, abs int64, tag catl2.ChildTag) (NodeRef, error) {
	if abs == 0 {
		return Empty, nil
	}
	switch tag {
	case catl2.ChildInner:
		return NodeRef{kind: KindMmapInner, r: r, abs: abs}, nil
	case catl2.ChildLeaf:
		return NodeRef{kind: KindMmapLeaf, r: r, abs: abs}, nil
	case catl2.ChildPlaceholder:
		return NodeRef{kind: KindMmapPlaceholder, r: r, abs: abs}, nil
	default:
		return Empty, fmt.Errorf("hybridmap: unexpected child tag %d at mmap root", tag)
	}
}

// Retain increments the heap-side reference count (no-op for
// Empty/Mmap variants) and returns n for chaining, matching
// intrusive_ptr's copy-constructor semantics.
func (n NodeRef) Retain() NodeRef {
	if n.kind.IsHeap() && n.heap != nil {
		n.heap.refs.Add(1)
	}
	return n
}

// Release decrements the heap-side reference count. When it reaches
// zero, an inner node releases its own children in turn so the whole
// subtree's counts stay accurate; Go's GC reclaims the memory itself.
// Release is a no-op for Empty/Mmap variants.
func (n NodeRef) Release() {
	if !n.kind.IsHeap() || n.heap == nil {
		return
	}
	if n.heap.refs.Add(-1) == 0 && n.heap.inner != nil {
		n.heap.inner.mu.Lock()
		children := n.heap.inner.children
		n.heap.inner.mu.Unlock()
		for _, c := range children {
			c.Release()
		}
	}
}

// RefCount returns the heap-side reference count, or 0 for
// Empty/Mmap variants. Exposed for tests and for IsUniquelyOwned.
func (n NodeRef) RefCount() int32 {
	if n.heap == nil {
		return 0
	}
	return n.heap.refs.Load()
}

// IsUniquelyOwned reports whether n is a heap node with exactly one
// owner, the condition under which set_item/remove_item may mutate it
// in place instead of cloning — the same test the plain SHAMap's CoW
// path makes against its version counter, adapted to reference
// counting since hybrid nodes have no shared version epoch.
func (n NodeRef) IsUniquelyOwned() bool {
	return n.kind.IsHeap() && n.RefCount() == 1
}

// Equal compares two NodeRefs by identity: same mmap location, or same
// heap allocation.
func (n NodeRef) Equal(other NodeRef) bool {
	if n.kind != other.kind {
		return false
	}
	if n.kind.IsMmap() {
		return n.r == other.r && n.abs == other.abs
	}
	if n.kind.IsHeap() {
		return n.heap == other.heap
	}
	return true
}

// Hash returns n's hash: read directly from the mmap header for Mmap
// variants (trusted, committed to disk by the writer), computed lazily
// and cached for Heap variants.
func (n NodeRef) Hash() (shamap.Hash, error) {
	switch n.kind {
	case KindEmpty:
		return shamap.ZeroHash(), nil
	case KindMmapInner:
		hdr, err := n.r.ReadInnerHeader(n.abs)
		if err != nil {
			return shamap.Hash{}, err
		}
		return shamap.Hash(hdr.Hash), nil
	case KindMmapLeaf:
		lh, _, err := n.r.ReadLeaf(n.abs)
		if err != nil {
			return shamap.Hash{}, err
		}
		return shamap.Hash(lh.Hash), nil
	case KindMmapPlaceholder:
		return readPlaceholderHash(n.r, n.abs)
	case KindHeapInner:
		return n.heap.inner.hash()
	case KindHeapLeaf:
		return n.heap.leaf.hash(), nil
	case KindHeapPlaceholder:
		return n.heap.placeholder.hash, nil
	default:
		return shamap.Hash{}, fmt.Errorf("hybridmap: unknown kind %v", n.kind)
	}
}

// Depth returns the trie depth of an inner node (mmap or heap). It is
// an error to call Depth on a non-inner NodeRef.
func (n NodeRef) Depth() (uint8, error) {
	switch n.kind {
	case KindMmapInner:
		hdr, err := n.r.ReadInnerHeader(n.abs)
		if err != nil {
			return 0, err
		}
		return hdr.Depth, nil
	case KindHeapInner:
		return n.heap.inner.depth, nil
	default:
		return 0, ErrNotInner
	}
}

// GetChild returns child b of an inner NodeRef (mmap or heap).
func (n NodeRef) GetChild(b int) (NodeRef, error) {
	switch n.kind {
	case KindMmapInner:
		hdr, err := n.r.ReadInnerHeader(n.abs)
		if err != nil {
			return Empty, err
		}
		tag := hdr.ChildTag(b)
		if tag == catl2.ChildEmpty {
			return Empty, nil
		}
		childAbs, err := n.r.ResolveChildOffset(n.abs, hdr, b)
		if err != nil {
			return Empty, err
		}
		return MmapRoot(n.r, childAbs, tag)
	case KindHeapInner:
		n.heap.inner.mu.Lock()
		defer n.heap.inner.mu.Unlock()
		return n.heap.inner.children[b], nil
	default:
		return Empty, ErrNotInner
	}
}

// LeafKeyData returns a leaf NodeRef's key and data (mmap or heap).
func (n NodeRef) LeafKeyData() (shamap.Key, []byte, error) {
	switch n.kind {
	case KindMmapLeaf:
		lh, data, err := n.r.ReadLeaf(n.abs)
		if err != nil {
			return shamap.Key{}, nil, err
		}
		return shamap.Key(lh.Key), data, nil
	case KindHeapLeaf:
		return n.heap.leaf.key, n.heap.leaf.data, nil
	default:
		return shamap.Key{}, nil, fmt.Errorf("hybridmap: not a leaf (%v)", n.kind)
	}
}

func readPlaceholderHash(r *catl2.Reader, abs int64) (shamap.Hash, error) {
	raw, err := r.ReadPlaceholderHash(abs)
	if err != nil {
		return shamap.Hash{}, err
	}
	return shamap.Hash(raw), nil
}
