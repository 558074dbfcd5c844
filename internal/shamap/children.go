package shamap

import "github.com/sublimator/catalogue-tools-sub001/internal/catlutil"

// childContainer is the 16-branch child table carried by every InnerNode.
// It has two storage states:
//
//   - uncanonicalized: a full 16-wide array, one slot per branch, indexed
//     directly by branch number. Cheap to mutate.
//   - canonicalized: a dense slice holding only the popcount(mask) non-nil
//     children, indexed via PopcountBelow(mask, branch). Cheap to scan and
//     hash, but must not be mutated in place.
//
// Canonicalize() is one-way; Set panics on a canonicalized container, so
// a caller that needs to mutate one works on a Copy() (Copy never
// canonicalizes).
type childContainer struct {
	wide         [16]Node
	dense        []Node
	mask         uint16
	canonicalize bool // true once Canonicalize has been called
}

// newChildContainer returns an empty, uncanonicalized container.
func newChildContainer() *childContainer {
	return &childContainer{}
}

// Mask returns the 16-bit branch-occupancy mask.
func (c *childContainer) Mask() uint16 { return c.mask }

// Count returns the number of non-nil children.
func (c *childContainer) Count() int { return catlutil.Popcount16(c.mask) }

// Has reports whether branch b is occupied.
func (c *childContainer) Has(b int) bool { return c.mask&(1<<uint(b)) != 0 }

// Get returns the child at branch b, or nil.
func (c *childContainer) Get(b int) Node {
	if !c.Has(b) {
		return nil
	}
	if c.canonicalize {
		return c.dense[catlutil.PopcountBelow(c.mask, b)]
	}
	return c.wide[b]
}

// Set installs (or clears, if child is nil) the child at branch b. Set
// panics if called on a canonicalized container; callers must Copy() (or
// otherwise uncanonicalize) before mutating, per the container's
// clone-before-mutate contract.
func (c *childContainer) Set(b int, child Node) {
	if c.canonicalize {
		panic("shamap: Set called on a canonicalized childContainer")
	}
	if child == nil {
		c.mask &^= 1 << uint(b)
		c.wide[b] = nil
		return
	}
	c.mask |= 1 << uint(b)
	c.wide[b] = child
}

// Copy returns a fresh, uncanonicalized container with the same children.
// Children themselves are shared (not deep-copied): this is the shallow
// copy the CoW path-copy step relies on.
func (c *childContainer) Copy() *childContainer {
	out := newChildContainer()
	out.mask = c.mask
	if c.canonicalize {
		for b := 0; b < 16; b++ {
			if c.mask&(1<<uint(b)) != 0 {
				out.wide[b] = c.dense[catlutil.PopcountBelow(c.mask, b)]
			}
		}
		return out
	}
	out.wide = c.wide
	return out
}

// Canonicalize compacts storage to Count() dense slots. Safe only when no
// other live handle may concurrently mutate this container (see the
// shared-state policy for snapshots); the caller is responsible for that
// guarantee.
func (c *childContainer) Canonicalize() {
	if c.canonicalize {
		return
	}
	dense := make([]Node, c.Count())
	idx := 0
	for b := 0; b < 16; b++ {
		if c.mask&(1<<uint(b)) != 0 {
			dense[idx] = c.wide[b]
			idx++
		}
	}
	c.dense = dense
	c.wide = [16]Node{}
	c.canonicalize = true
}

// ForEach calls fn for every occupied branch in ascending order. fn
// returning false stops iteration early.
func (c *childContainer) ForEach(fn func(branch int, child Node) bool) {
	for b := 0; b < 16; b++ {
		if child := c.Get(b); child != nil {
			if !fn(b, child) {
				return
			}
		}
	}
}
