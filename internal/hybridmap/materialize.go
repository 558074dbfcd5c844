package hybridmap

import (
	"fmt"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
	"github.com/sublimator/catalogue-tools-sub001/internal/logging"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

var materializeLog = logging.For("hybridmap")

// materializeRaw allocates a heap node with content identical to
// the mmap node at n (one level only — its children, if any, stay as
// mmap NodeRefs until they are themselves touched). n must be a Mmap
// variant. typ selects the leaf hash prefix (catl2 leaf records carry
// no node-type byte of their own — it's a property of which tree the
// leaf lives in, state or tx, known only to the caller).
func materializeRaw(n NodeRef, typ shamap.NodeType) (NodeRef, error) {
	switch n.kind {
	case KindMmapLeaf:
		key, data, err := n.LeafKeyData()
		if err != nil {
			return Empty, err
		}
		return newHeapLeafRef(key, data, typ), nil
	case KindMmapInner:
		hdr, err := n.r.ReadInnerHeader(n.abs)
		if err != nil {
			return Empty, err
		}
		ref := newHeapInnerRef(hdr.Depth)
		in := ref.heap.inner
		for b := 0; b < 16; b++ {
			tag := hdr.ChildTag(b)
			if tag == catl2.ChildEmpty {
				continue
			}
			childAbs, err := n.r.ResolveChildOffset(n.abs, hdr, b)
			if err != nil {
				return Empty, err
			}
			child, err := MmapRoot(n.r, childAbs, tag)
			if err != nil {
				return Empty, err
			}
			in.children[b] = child
		}
		in.hashVal = shamap.Hash(hdr.Hash)
		in.hashValid = true
		return ref, nil
	case KindMmapPlaceholder:
		h, err := n.Hash()
		if err != nil {
			return Empty, err
		}
		return newHeapPlaceholderRef(h, 0), nil
	default:
		return Empty, fmt.Errorf("hybridmap: materializeRaw called on non-mmap kind %v", n.kind)
	}
}

// MaterializePath walks from root towards key, converting every mmap
// node it visits into a heap node with identical content and rewiring
// each parent's child slot to the new heap copy, stopping when the
// path reaches a leaf, runs out of children, or the key diverges
// inside a collapsed (skip) section it cannot cross. It returns the
// (possibly unchanged) new root. Every heap inner the walk passes
// through has its cached hash invalidated, since SetItem and RemoveItem
// go on to change something beneath it.
//
// After materializing each child, its heap hash is checked against the
// hash the mmap header had reported. For a leaf that hash is freshly
// computed from key and data; a materialized inner carries the header's
// hash over unchanged, so for inners the check always passes. A mismatch
// indicates a materialization bug, not a data problem the caller can
// act on, so it is only logged, matching the original's test-hook
// warning rather than treated as a hard failure.
func MaterializePath(root NodeRef, key shamap.Key, typ shamap.NodeType) (NodeRef, error) {
	if root.IsEmpty() {
		return root, nil
	}

	current := root
	if current.IsMmap() {
		materialized, err := materializeRaw(current, typ)
		if err != nil {
			return Empty, err
		}
		current = materialized
	}
	result := current

	for current.kind == KindHeapInner {
		in := current.heap.inner
		nib, err := key.Nibble(int(in.depth))
		if err != nil {
			return Empty, err
		}
		branch := int(nib)

		in.mu.Lock()
		in.invalidate()
		child := in.children[branch]
		in.mu.Unlock()
		if child.IsEmpty() {
			break
		}

		if child.IsMmap() {
			originalHash, err := child.Hash()
			if err != nil {
				return Empty, err
			}
			materializedChild, err := materializeRaw(child, typ)
			if err != nil {
				return Empty, err
			}
			materializedHash, err := materializedChild.Hash()
			if err != nil {
				return Empty, err
			}
			if originalHash != materializedHash {
				materializeLog.Warn("hash mismatch after materialization",
					"key", key.Hex(), "branch", branch, "depth", in.depth,
					"original", originalHash.Hex(), "materialized", materializedHash.Hex())
			}

			in.mu.Lock()
			in.setChildLocked(branch, materializedChild)
			in.mu.Unlock()
			materializedChild.Release()
			child = materializedChild
		}

		if child.kind == KindHeapInner {
			childDepth := child.heap.inner.depth
			if childDepth > in.depth+1 {
				repKey, err := firstLeafKey(child)
				if err != nil {
					return Empty, err
				}
				for d := int(in.depth) + 1; d < int(childDepth); d++ {
					kn, err := key.Nibble(d)
					if err != nil {
						return Empty, err
					}
					rn, err := repKey.Nibble(d)
					if err != nil {
						return Empty, err
					}
					if kn != rn {
						return result, nil
					}
				}
			}
		}

		current = child
		if current.kind == KindHeapLeaf || current.kind == KindHeapPlaceholder {
			break
		}
	}

	return result, nil
}

// firstLeafKey descends via each inner's lowest occupied branch until
// it reaches a leaf. Used to find a collapsed section's representative
// key, the same role firstLeafKey plays in the plain trie's synthetic
// hash chain.
func firstLeafKey(n NodeRef) (shamap.Key, error) {
	cur := n
	for {
		switch cur.kind {
		case KindHeapLeaf:
			return cur.heap.leaf.key, nil
		case KindMmapLeaf:
			k, _, err := cur.LeafKeyData()
			return k, err
		case KindHeapInner:
			cur.heap.inner.mu.Lock()
			next := Empty
			for _, c := range cur.heap.inner.children {
				if !c.IsEmpty() {
					next = c
					break
				}
			}
			cur.heap.inner.mu.Unlock()
			if next.IsEmpty() {
				return shamap.Key{}, fmt.Errorf("hybridmap: inner node has no children")
			}
			cur = next
		case KindMmapInner:
			hdr, err := cur.r.ReadInnerHeader(cur.abs)
			if err != nil {
				return shamap.Key{}, err
			}
			found := false
			for b := 0; b < 16; b++ {
				tag := hdr.ChildTag(b)
				if tag == catl2.ChildEmpty {
					continue
				}
				childAbs, err := cur.r.ResolveChildOffset(cur.abs, hdr, b)
				if err != nil {
					return shamap.Key{}, err
				}
				cur, err = MmapRoot(cur.r, childAbs, tag)
				if err != nil {
					return shamap.Key{}, err
				}
				found = true
				break
			}
			if !found {
				return shamap.Key{}, fmt.Errorf("hybridmap: mmap inner node has no children")
			}
		default:
			return shamap.Key{}, fmt.Errorf("hybridmap: cannot find first leaf under %v", cur.kind)
		}
	}
}
