package shamap

import "errors"

// Sentinel errors, matching the package-level ErrXxx convention used
// throughout the rest of this codebase's ancestry (one var per failure
// mode, wrapped with fmt.Errorf at call sites that need context).
var (
	ErrInvalidDepth      = errors.New("shamap: invalid depth")
	ErrInvalidBranch     = errors.New("shamap: invalid branch")
	ErrNullNode          = errors.New("shamap: unexpected nil node")
	ErrNilItem           = errors.New("shamap: item is nil")
	ErrHashCalculation   = errors.New("shamap: hash calculation failed")
	ErrMaxDepthExceeded  = errors.New("shamap: maximum depth exceeded")
	ErrKeyNotFound       = errors.New("shamap: key not found")
	ErrVersionMismatch   = errors.New("shamap: version mismatch")
	ErrCanonicalMutation = errors.New("shamap: cannot mutate a canonicalized child container in place")
)
