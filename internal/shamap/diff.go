package shamap

// DiffOp classifies how a key's value changed between two maps.
type DiffOp int

const (
	DiffAdded DiffOp = iota
	DiffDeleted
	DiffModified
)

// DiffEntry is one key's classification in a Diff result, carrying
// whichever item(s) are needed to apply or invert it.
type DiffEntry struct {
	Op      DiffOp
	Key     Key
	OldItem Item // valid for Deleted, Modified
	NewItem Item // valid for Added, Modified
}

// Diff is the set-difference of two SHAMaps' key/value pairs, per §4.7.
type Diff struct {
	Entries []DiffEntry
}

// DiffMaps walks a and b in parallel over their 16 branches, pruning
// subtrees whose hashes already match, and returns every key that
// differs.
func DiffMaps(a, b *SHAMap) (*Diff, error) {
	a.mu.RLock()
	rootA := a.root
	a.mu.RUnlock()
	b.mu.RLock()
	rootB := b.root
	b.mu.RUnlock()

	d := &Diff{}
	if err := diffNodes(Node(rootA), Node(rootB), &d.Entries); err != nil {
		return nil, err
	}
	return d, nil
}

func diffNodes(a, b Node, out *[]DiffEntry) error {
	if a == b {
		return nil
	}
	if a != nil && b != nil {
		ha, err := a.GetHash()
		if err != nil {
			return err
		}
		hb, err := b.GetHash()
		if err != nil {
			return err
		}
		if ha == hb {
			return nil
		}
	}

	switch av := a.(type) {
	case nil:
		return addAllLeaves(b, out)
	case *LeafNode:
		switch bv := b.(type) {
		case nil:
			return deleteAllLeaves(a, out)
		case *LeafNode:
			if av.Item().Key == bv.Item().Key {
				if !av.Item().Equal(bv.Item()) {
					*out = append(*out, DiffEntry{Op: DiffModified, Key: av.Item().Key, OldItem: av.Item(), NewItem: bv.Item()})
				}
				return nil
			}
			*out = append(*out, DiffEntry{Op: DiffDeleted, Key: av.Item().Key, OldItem: av.Item()})
			*out = append(*out, DiffEntry{Op: DiffAdded, Key: bv.Item().Key, NewItem: bv.Item()})
			return nil
		case *InnerNode:
			found, err := lookupInSubtree(bv, av.Item().Key)
			if err != nil {
				return err
			}
			if found != nil {
				if !av.Item().Equal(*found) {
					*out = append(*out, DiffEntry{Op: DiffModified, Key: av.Item().Key, OldItem: av.Item(), NewItem: *found})
				}
			} else {
				*out = append(*out, DiffEntry{Op: DiffDeleted, Key: av.Item().Key, OldItem: av.Item()})
			}
			return addAllLeavesExcept(bv, av.Item().Key, out)
		}
	case *InnerNode:
		switch bv := b.(type) {
		case nil:
			return deleteAllLeaves(a, out)
		case *LeafNode:
			found, err := lookupInSubtree(av, bv.Item().Key)
			if err != nil {
				return err
			}
			if found != nil {
				if !found.Equal(bv.Item()) {
					*out = append(*out, DiffEntry{Op: DiffModified, Key: bv.Item().Key, OldItem: *found, NewItem: bv.Item()})
				}
			} else {
				*out = append(*out, DiffEntry{Op: DiffAdded, Key: bv.Item().Key, NewItem: bv.Item()})
			}
			return deleteAllLeavesExcept(av, bv.Item().Key, out)
		case *InnerNode:
			return diffInners(av, bv, out)
		}
	}
	return nil
}

// diffInners pairs branches of two inners, aligning to the shallower
// depth when one side is a skip node relative to the other (§4.11's
// alignment rule, applied here over the in-memory trie rather than mmap).
func diffInners(a, b *InnerNode, out *[]DiffEntry) error {
	depth := a.Depth()
	if b.Depth() < depth {
		depth = b.Depth()
	}
	for branch := 0; branch < 16; branch++ {
		ca, err := projectChild(Node(a), depth, branch)
		if err != nil {
			return err
		}
		cb, err := projectChild(Node(b), depth, branch)
		if err != nil {
			return err
		}
		if err := diffNodes(ca, cb, out); err != nil {
			return err
		}
	}
	return nil
}

// projectChild returns the child of n at (depth, branch): if n is exactly
// at depth, that's children.Get(branch) directly; if n is a skip node
// deeper than depth, n projects to a single branch (determined by any
// leaf's nibble at depth) and Empty elsewhere.
func projectChild(n Node, depth uint8, branch int) (Node, error) {
	inner, ok := n.(*InnerNode)
	if !ok {
		return nil, nil
	}
	if inner.Depth() == depth {
		return inner.children.Get(branch), nil
	}
	rep, err := firstLeafKey(inner)
	if err != nil {
		return nil, err
	}
	nib, err := rep.Nibble(int(depth))
	if err != nil {
		return nil, err
	}
	if int(nib) != branch {
		return nil, nil
	}
	return inner, nil
}

func lookupInSubtree(n *InnerNode, key Key) (*Item, error) {
	pf, err := newPathFinder(n, key)
	if err != nil {
		return nil, err
	}
	if pf.foundLeaf == nil || !pf.leafMatches {
		return nil, nil
	}
	item := pf.foundLeaf.Item()
	return &item, nil
}

func addAllLeaves(n Node, out *[]DiffEntry) error {
	return walkLeaves(n, func(it Item) {
		*out = append(*out, DiffEntry{Op: DiffAdded, Key: it.Key, NewItem: it})
	})
}

func deleteAllLeaves(n Node, out *[]DiffEntry) error {
	return walkLeaves(n, func(it Item) {
		*out = append(*out, DiffEntry{Op: DiffDeleted, Key: it.Key, OldItem: it})
	})
}

func addAllLeavesExcept(n Node, except Key, out *[]DiffEntry) error {
	return walkLeaves(n, func(it Item) {
		if it.Key == except {
			return
		}
		*out = append(*out, DiffEntry{Op: DiffAdded, Key: it.Key, NewItem: it})
	})
}

func deleteAllLeavesExcept(n Node, except Key, out *[]DiffEntry) error {
	return walkLeaves(n, func(it Item) {
		if it.Key == except {
			return
		}
		*out = append(*out, DiffEntry{Op: DiffDeleted, Key: it.Key, OldItem: it})
	})
}

func walkLeaves(n Node, fn func(Item)) error {
	if n == nil {
		return nil
	}
	switch v := n.(type) {
	case *LeafNode:
		fn(v.Item())
		return nil
	case *InnerNode:
		var err error
		v.children.ForEach(func(_ int, c Node) bool {
			if werr := walkLeaves(c, fn); werr != nil {
				err = werr
				return false
			}
			return true
		})
		return err
	}
	return nil
}

// Invert swaps Added and Deleted entries, leaving Modified entries with
// Old/New reversed, so that Apply(Invert(Diff(a,b))) onto b reproduces a.
func (d *Diff) Invert() *Diff {
	out := &Diff{Entries: make([]DiffEntry, len(d.Entries))}
	for i, e := range d.Entries {
		switch e.Op {
		case DiffAdded:
			out.Entries[i] = DiffEntry{Op: DiffDeleted, Key: e.Key, OldItem: e.NewItem}
		case DiffDeleted:
			out.Entries[i] = DiffEntry{Op: DiffAdded, Key: e.Key, NewItem: e.OldItem}
		case DiffModified:
			out.Entries[i] = DiffEntry{Op: DiffModified, Key: e.Key, OldItem: e.NewItem, NewItem: e.OldItem}
		}
	}
	return out
}

// Apply replays every entry in d against target: Added/Modified set the
// new item, Deleted removes the key.
func (d *Diff) Apply(target *SHAMap) error {
	for _, e := range d.Entries {
		switch e.Op {
		case DiffAdded:
			if _, err := target.SetItem(e.NewItem, ModeAddOrUpdate); err != nil {
				return err
			}
		case DiffModified:
			if _, err := target.SetItem(e.NewItem, ModeAddOrUpdate); err != nil {
				return err
			}
		case DiffDeleted:
			if _, err := target.RemoveItem(e.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
