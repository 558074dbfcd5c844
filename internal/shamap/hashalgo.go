package shamap

// leafHash computes a leaf's hash per §4.6: the prefix is chosen by
// hashing domain (transaction vs account state), and the hashed pieces are
// always prefix, data, then key, regardless of leaf type.
func leafHash(item Item, typ NodeType) (Hash, error) {
	prefix := LeafNodePrefix
	if typ.isTxType() {
		prefix = TxNodePrefix
	}
	return HashPieces(prefix[:], item.Data, item.Key[:]), nil
}

// referenceInnerHash computes an inner node's hash the uncollapsed way:
// SHA512(INNER_PREFIX || child_hash(0) || ... || child_hash(15)), where an
// absent child contributes ZeroHash. This is the implementation used when
// the tree is not path-collapsed, and is also what the collapsed-hash
// algorithm below must reduce to once no branch reaches across a skipped
// level.
func referenceInnerHash(n *InnerNode) (Hash, error) {
	if n.children.Mask() == 0 {
		return ZeroHash(), nil
	}
	h := NewHasher()
	h.Write(InnerPrefix[:])
	for b := 0; b < 16; b++ {
		child := n.children.Get(b)
		if child == nil {
			var z Hash
			h.Write(z[:])
			continue
		}
		ch, err := child.GetHash()
		if err != nil {
			return Hash{}, err
		}
		h.Write(ch[:])
	}
	return h.Sum256(), nil
}

// collapsedInnerHash computes n's hash the collapsed-tree way: identical to
// referenceInnerHash, except any child that is itself an InnerNode whose
// depth skips one or more levels past n.depth+1 is folded through a
// synthetic hash chain first, so the result is bit-identical to what the
// fully uncollapsed tree would have produced.
func collapsedInnerHash(n *InnerNode) (Hash, error) {
	if n.children.Mask() == 0 {
		return ZeroHash(), nil
	}
	h := NewHasher()
	h.Write(InnerPrefix[:])
	for b := 0; b < 16; b++ {
		child := n.children.Get(b)
		if child == nil {
			var z Hash
			h.Write(z[:])
			continue
		}
		ch, err := collapsedChildHash(n, child)
		if err != nil {
			return Hash{}, err
		}
		h.Write(ch[:])
	}
	return h.Sum256(), nil
}

// collapsedChildHash returns the hash a child contributes to its parent's
// collapsed-tree hash: the child's own hash, unless it is a skip inner
// (depth > parent.depth+1), in which case the synthetic hash chain from
// §4.6 reconstructs the hash the uncollapsed intermediate inners would
// have produced.
func collapsedChildHash(parent *InnerNode, child Node) (Hash, error) {
	childInner, ok := child.(*InnerNode)
	if !ok || childInner.Depth() <= parent.Depth()+1 {
		return child.GetHash()
	}
	return syntheticHashChain(parent.Depth(), childInner)
}

// syntheticHashChain implements §4.6's skipped-inner reconstruction. skips
// is the number of omitted intermediate inner levels between parentDepth
// and child.Depth(); repKey is any leaf key drawn from child's subtree,
// since every key in that subtree shares the nibbles from parentDepth+1
// through child.Depth()-1 (that's what made the path collapsible).
func syntheticHashChain(parentDepth uint8, child *InnerNode) (Hash, error) {
	skips := int(child.Depth()) - int(parentDepth) - 1
	repKey, err := firstLeafKey(child)
	if err != nil {
		return Hash{}, err
	}

	cur, err := child.GetHash()
	if err != nil {
		return Hash{}, err
	}
	for round := skips - 1; round >= 0; round-- {
		nib, err := repKey.Nibble(int(parentDepth) + 1 + round)
		if err != nil {
			return Hash{}, err
		}
		h := NewHasher()
		h.Write(InnerPrefix[:])
		for b := 0; b < 16; b++ {
			if b == int(nib) {
				h.Write(cur[:])
				continue
			}
			var z Hash
			h.Write(z[:])
		}
		cur = h.Sum256()
	}
	return cur, nil
}

// firstLeafKey descends via each inner's lowest occupied branch
// until it reaches a leaf, returning that leaf's key. Any leaf in the
// subtree is a valid representative for synthetic hashing purposes.
func firstLeafKey(n *InnerNode) (Key, error) {
	cur := Node(n)
	for {
		switch v := cur.(type) {
		case *LeafNode:
			return v.Item().Key, nil
		case *InnerNode:
			next := Node(nil)
			v.children.ForEach(func(_ int, child Node) bool {
				next = child
				return false
			})
			if next == nil {
				return Key{}, ErrNullNode
			}
			cur = next
		default:
			return Key{}, ErrNullNode
		}
	}
}
