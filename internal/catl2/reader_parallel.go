package catl2

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// walkParallel partitions root's top-level branches across a fixed worker
// pool and joins before returning, per SPEC_FULL §5. Delivery to fn is
// at-least-once and serialized (so callers needn't worry about
// concurrent calls), but the order across branches is unspecified.
func (r *Reader) walkParallel(abs int64, opts WalkOptions, fn func(LeafRecord) bool) error {
	hdr, err := r.readInnerHeader(abs)
	if err != nil {
		return err
	}

	threads := opts.NumThreads
	if threads <= 0 {
		threads = 4
	}

	var mu sync.Mutex
	stopped := false
	guardedFn := func(rec LeafRecord) bool {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return false
		}
		if !fn(rec) {
			stopped = true
			return false
		}
		return true
	}

	g := new(errgroup.Group)
	g.SetLimit(threads)

	for b := 0; b < 16; b++ {
		tag := hdr.ChildTag(b)
		if tag == ChildEmpty {
			continue
		}
		branch := b
		childAbs, err := r.resolveChildOffset(abs, hdr, branch)
		if err != nil {
			return err
		}
		g.Go(func() error {
			mu.Lock()
			if stopped {
				mu.Unlock()
				return nil
			}
			mu.Unlock()

			switch tag {
			case ChildLeaf:
				lh, data, err := r.readLeaf(childAbs)
				if err != nil {
					return err
				}
				guardedFn(LeafRecord{Key: lh.Key, Data: data})
				return nil
			case ChildInner:
				_, err := r.walkSequentialGuarded(childAbs, guardedFn)
				return err
			default:
				return nil
			}
		})
	}
	return g.Wait()
}

// walkSequentialGuarded is walkSequential against an already-stop-aware
// callback, used by parallel branch workers so a stop request in one
// branch halts the others promptly.
func (r *Reader) walkSequentialGuarded(abs int64, fn func(LeafRecord) bool) (bool, error) {
	return r.walkSequential(abs, fn)
}
