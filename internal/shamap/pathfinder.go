package shamap

// pathFinder walks a single key from a SHAMap's root, recording every
// inner node visited and the branch taken at each, per §4.4. It is built
// fresh for every SHAMap operation; nothing about it survives the
// operation that constructs it.
type pathFinder struct {
	key Key

	inners   []*InnerNode
	branches []uint8

	terminalBranch uint8
	foundLeaf      *LeafNode
	leafMatches    bool

	// divergenceDepth is set (>=0) when the walk stopped at a collapsed
	// (skip) inner because key diverges from the subtree's keys before
	// reaching that inner's depth. -1 means "not applicable".
	divergenceDepth int
}

// newPathFinder walks key from root, stopping at the first nil child, the
// first leaf, or a point of divergence inside a collapsed inner.
func newPathFinder(root *InnerNode, key Key) (*pathFinder, error) {
	pf := &pathFinder{key: key, divergenceDepth: -1}

	cur := root
	for {
		nib, err := key.Nibble(int(cur.Depth()))
		if err != nil {
			return nil, err
		}
		pf.inners = append(pf.inners, cur)
		pf.branches = append(pf.branches, nib)
		pf.terminalBranch = nib

		child := cur.children.Get(int(nib))
		if child == nil {
			return pf, nil
		}

		switch c := child.(type) {
		case *LeafNode:
			pf.foundLeaf = c
			pf.leafMatches = c.Item().Key == key
			return pf, nil
		case *InnerNode:
			if c.Depth() > cur.Depth()+1 {
				rep, err := firstLeafKey(c)
				if err != nil {
					return nil, err
				}
				div, err := key.FindDivergence(rep, int(cur.Depth())+1)
				if err == nil && div < int(c.Depth()) {
					pf.divergenceDepth = div
					return pf, nil
				}
			}
			cur = c
		default:
			return nil, ErrNullNode
		}
	}
}

// Deepest returns the last inner node visited.
func (pf *pathFinder) Deepest() *InnerNode { return pf.inners[len(pf.inners)-1] }

// Root returns the (possibly replaced, after dirtyOrCopyInners) first
// inner node visited.
func (pf *pathFinder) Root() *InnerNode { return pf.inners[0] }

// dirtyPath invalidates the cached hash on every visited inner, root
// first (order doesn't matter for correctness: nothing is rehashed until
// the whole path is marked).
func (pf *pathFinder) dirtyPath() {
	for _, in := range pf.inners {
		in.Dirty()
	}
}

// collapsePath hoists a lone child up into its parent, walking from the
// deepest visited inner upward, while the single-child condition holds.
// The root (inners[0]) is never collapsed away. A lone leaf child is
// always hoisted (collapse_impl == leafs_only or leafs_and_inners); a lone
// inner child is hoisted only when collapseInners is set
// (leafs_and_inners), producing a skip node whose depth exceeds its new
// parent's depth+1.
func (pf *pathFinder) collapsePath(collapseInners bool) {
	for i := len(pf.inners) - 1; i > 0; i-- {
		in := pf.inners[i]
		if in.children.Count() != 1 {
			return
		}
		var onlyChild Node
		in.children.ForEach(func(_ int, c Node) bool {
			onlyChild = c
			return false
		})
		if _, isInner := onlyChild.(*InnerNode); isInner && !collapseInners {
			return
		}
		parent := pf.inners[i-1]
		parentBranch := pf.branches[i-1]
		parent.children.Set(int(parentBranch), onlyChild)
	}
}

// dirtyOrCopyInners implements §4.4's CoW path-copy step: any visited
// inner whose stamped version doesn't match targetVersion is cloned (once
// cowEnabled is set on it or on any inner above it on the path, since
// inners created before the first snapshot never had the flag set), and
// the parent (or, for inners[0], the caller via Root()) is rewired to
// the clone. It returns the (possibly new) deepest inner.
func (pf *pathFinder) dirtyOrCopyInners(targetVersion int64) *InnerNode {
	cow := false
	for i, in := range pf.inners {
		cow = cow || in.cowEnabled
		if !cow || in.Version() == targetVersion {
			continue
		}
		clone := in.clone(targetVersion)
		clone.cowEnabled = true
		pf.inners[i] = clone
		if i > 0 {
			parent := pf.inners[i-1]
			parent.children.Set(int(pf.branches[i-1]), clone)
		}
	}
	return pf.Deepest()
}
