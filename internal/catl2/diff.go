package catl2

import "fmt"

// MemDiffOp classifies a key's change between two mmap'd v2 subtrees.
type MemDiffOp int

const (
	MemDiffAdded MemDiffOp = iota
	MemDiffDeleted
	MemDiffModified
)

// MemDiffEntry is one key's classification from DiffTrees.
type MemDiffEntry struct {
	Op      MemDiffOp
	Key     [32]byte
	OldData []byte
	NewData []byte
}

// treeNode identifies a node's absolute offset within one of the two
// readers being diffed, plus the branch tag under which it was reached
// (known from the parent, since the on-disk bytes alone don't
// distinguish a leaf header from an inner header). abs == 0 means "empty
// subtree"; roots are always inner per how SHAMap roots are constructed.
type treeNode struct {
	r    *Reader
	abs  int64
	leaf bool
}

func (n treeNode) isEmpty() bool { return n.abs == 0 }

// DiffTrees diffs the subtree rooted at aAbs in reader a against the
// subtree rooted at bAbs in reader b, without materializing either side,
// per SPEC_FULL §4.11. fn returning false stops the walk early.
func DiffTrees(a *Reader, aAbs int64, b *Reader, bAbs int64, fn func(MemDiffEntry) bool) error {
	stop := false
	return diffMemNodes(treeNode{r: a, abs: aAbs}, treeNode{r: b, abs: bAbs}, 0, fn, &stop)
}

func diffMemNodes(a, b treeNode, alignDepth uint8, fn func(MemDiffEntry) bool, stop *bool) error {
	if *stop {
		return nil
	}
	if a.r == b.r && a.abs == b.abs {
		return nil
	}
	if !a.isEmpty() && !b.isEmpty() {
		ha, err := a.hash()
		if err != nil {
			return err
		}
		hb, err := b.hash()
		if err != nil {
			return err
		}
		if ha == hb {
			return nil
		}
	}

	switch {
	case a.isEmpty() && b.isEmpty():
		return nil
	case a.isEmpty():
		return walkAndEmitExcept(b, MemDiffAdded, nil, fn, stop)
	case b.isEmpty():
		return walkAndEmitExcept(a, MemDiffDeleted, nil, fn, stop)
	}

	if a.leaf && b.leaf {
		return diffLeafLeaf(a, b, fn, stop)
	}
	if a.leaf && !b.leaf {
		return diffLeafInner(a, b, fn, stop, false)
	}
	if !a.leaf && b.leaf {
		return diffLeafInner(b, a, fn, stop, true)
	}

	depthA, err := a.depth()
	if err != nil {
		return err
	}
	depthB, err := b.depth()
	if err != nil {
		return err
	}
	depth := depthA
	if depthB < depth {
		depth = depthB
	}

	for branch := 0; branch < 16; branch++ {
		ca, err := a.project(depth, branch)
		if err != nil {
			return err
		}
		cb, err := b.project(depth, branch)
		if err != nil {
			return err
		}
		if err := diffMemNodes(ca, cb, depth+1, fn, stop); err != nil {
			return err
		}
		if *stop {
			return nil
		}
	}
	return nil
}

func diffLeafLeaf(a, b treeNode, fn func(MemDiffEntry) bool, stop *bool) error {
	la, da, err := a.leafData()
	if err != nil {
		return err
	}
	lb, db, err := b.leafData()
	if err != nil {
		return err
	}
	if la.Key == lb.Key {
		if string(da) != string(db) {
			emit(fn, stop, MemDiffEntry{Op: MemDiffModified, Key: la.Key, OldData: da, NewData: db})
		}
		return nil
	}
	emit(fn, stop, MemDiffEntry{Op: MemDiffDeleted, Key: la.Key, OldData: da})
	emit(fn, stop, MemDiffEntry{Op: MemDiffAdded, Key: lb.Key, NewData: db})
	return nil
}

// diffLeafInner diffs a lone leaf against an inner subtree. swapped
// indicates the caller's logical (a, b) were reversed when calling this
// (so Added/Deleted/Old/New come out with the right polarity).
func diffLeafInner(leafSide, innerSide treeNode, fn func(MemDiffEntry) bool, stop *bool, swapped bool) error {
	lf, data, err := leafSide.leafData()
	if err != nil {
		return err
	}
	found, foundData, err := innerSide.r.lookupKeyAt(innerSide.abs, lf.Key)
	if err != nil {
		return err
	}

	if found {
		old, newD := data, foundData
		if swapped {
			old, newD = foundData, data
		}
		if string(old) != string(newD) {
			emit(fn, stop, MemDiffEntry{Op: MemDiffModified, Key: lf.Key, OldData: old, NewData: newD})
		}
	} else {
		op := MemDiffDeleted
		if swapped {
			op = MemDiffAdded
		}
		e := MemDiffEntry{Op: op, Key: lf.Key}
		if op == MemDiffAdded {
			e.NewData = data
		} else {
			e.OldData = data
		}
		emit(fn, stop, e)
	}

	addOp := MemDiffAdded
	if swapped {
		addOp = MemDiffDeleted
	}
	return walkAndEmitExcept(innerSide, addOp, &lf.Key, fn, stop)
}

// walkAndEmitExcept emits op for every leaf under n, skipping except (if
// non-nil).
func walkAndEmitExcept(n treeNode, op MemDiffOp, except *[32]byte, fn func(MemDiffEntry) bool, stop *bool) error {
	if n.isEmpty() || *stop {
		return nil
	}
	if n.leaf {
		lh, data, err := n.leafData()
		if err != nil {
			return err
		}
		if except == nil || lh.Key != *except {
			e := MemDiffEntry{Op: op, Key: lh.Key}
			if op == MemDiffAdded {
				e.NewData = data
			} else {
				e.OldData = data
			}
			emit(fn, stop, e)
		}
		return nil
	}
	_, err := n.r.walkSequential(n.abs, func(rec LeafRecord) bool {
		if except != nil && rec.Key == *except {
			return true
		}
		e := MemDiffEntry{Op: op, Key: rec.Key}
		if op == MemDiffAdded {
			e.NewData = rec.Data
		} else {
			e.OldData = rec.Data
		}
		return emit(fn, stop, e)
	})
	return err
}

func emit(fn func(MemDiffEntry) bool, stop *bool, e MemDiffEntry) bool {
	if *stop {
		return false
	}
	if !fn(e) {
		*stop = true
		return false
	}
	return true
}

func (n treeNode) hash() ([32]byte, error) {
	if n.leaf {
		lh, err := n.r.readLeafHeaderOnly(n.abs)
		if err != nil {
			return [32]byte{}, err
		}
		return lh.Hash, nil
	}
	hdr, err := n.r.readInnerHeader(n.abs)
	if err != nil {
		return [32]byte{}, err
	}
	return hdr.Hash, nil
}

func (n treeNode) depth() (uint8, error) {
	hdr, err := n.r.readInnerHeader(n.abs)
	if err != nil {
		return 0, err
	}
	return hdr.Depth, nil
}

func (n treeNode) leafData() (LeafHeader, []byte, error) {
	return n.r.readLeaf(n.abs)
}

// project returns n's child at (depth, branch): n itself if n is a skip
// node projecting onto exactly that branch, the direct child if n is
// exactly at depth, or empty otherwise.
func (n treeNode) project(depth uint8, branch int) (treeNode, error) {
	if n.isEmpty() {
		return treeNode{r: n.r}, nil
	}
	hdr, err := n.r.readInnerHeader(n.abs)
	if err != nil {
		return treeNode{}, err
	}
	if hdr.Depth == depth {
		tag := hdr.ChildTag(branch)
		if tag == ChildEmpty {
			return treeNode{r: n.r}, nil
		}
		childAbs, err := n.r.resolveChildOffset(n.abs, hdr, branch)
		if err != nil {
			return treeNode{}, err
		}
		return treeNode{r: n.r, abs: childAbs, leaf: tag == ChildLeaf}, nil
	}
	if hdr.Depth < depth {
		return treeNode{}, fmt.Errorf("catl2: %w: node depth %d shallower than alignment depth %d", ErrCorruptFile, hdr.Depth, depth)
	}
	rep, err := n.r.firstLeafKey(n.abs)
	if err != nil {
		return treeNode{}, err
	}
	nib, err := nibble(rep, int(depth))
	if err != nil {
		return treeNode{}, err
	}
	if int(nib) != branch {
		return treeNode{r: n.r}, nil
	}
	return n, nil
}
