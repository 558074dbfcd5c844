package shamap

import (
	"bytes"
	"encoding/hex"

	"github.com/sublimator/catalogue-tools-sub001/internal/catlutil"
)

// Hash is a 256-bit digest: a node hash, or a key when used as a lookup
// value. Fixed size, comparable, orderable.
type Hash [32]byte

// ZeroHash is the sentinel "no hash" / "empty subtree" value.
func ZeroHash() Hash { return Hash{} }

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == Hash{} }

// Hex renders h as lowercase hex.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// Less gives Hash a lexicographic total order, used for deterministic
// iteration and sorted ledger indices.
func (h Hash) Less(other Hash) bool { return bytes.Compare(h[:], other[:]) < 0 }

// Key is a 256-bit trie key, addressed nibble by nibble.
type Key [32]byte

// Nibble returns the 4-bit value of k at nibble position depth.
// depth must be in [0, catlutil.MaxDepth).
func (k Key) Nibble(depth int) (uint8, error) {
	return catlutil.Nibble([32]byte(k), depth)
}

// Hex renders k as lowercase hex.
func (k Key) Hex() string { return hex.EncodeToString(k[:]) }

// FindDivergence returns the smallest depth >= startDepth where k and
// other's nibbles differ.
func (k Key) FindDivergence(other Key, startDepth int) (int, error) {
	return catlutil.FindDivergence([32]byte(k), [32]byte(other), startDepth)
}

// Item is an opaque leaf payload: a key and an arbitrary byte blob. The
// trie never interprets Data.
type Item struct {
	Key  Key
	Data []byte
}

// NewItem copies data defensively so the trie owns a stable snapshot of
// it, matching the ancestor SHAMap's NewItem convention.
func NewItem(key Key, data []byte) Item {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Item{Key: key, Data: cp}
}

// Equal reports whether two items carry the same key and bytes.
func (it Item) Equal(other Item) bool {
	return it.Key == other.Key && bytes.Equal(it.Data, other.Data)
}

// NodeType discriminates the hashing domain of a leaf, and tags the
// SHAMap's configured leaf flavor (account state vs the two transaction
// variants). Values mirror the reference implementation's wire tags.
type NodeType uint8

const (
	NodeTypeInner         NodeType = 1
	NodeTypeTxNoMeta      NodeType = 2
	NodeTypeTxWithMeta    NodeType = 3
	NodeTypeAccountState  NodeType = 4
	NodeTypeRemove        NodeType = 254
	NodeTypeTerminal      NodeType = 255
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeInner:
		return "inner"
	case NodeTypeTxNoMeta:
		return "tx_no_meta"
	case NodeTypeTxWithMeta:
		return "tx_with_meta"
	case NodeTypeAccountState:
		return "account_state"
	case NodeTypeRemove:
		return "remove"
	case NodeTypeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// isTxType reports whether the leaf hash should use TxNodePrefix (both
// transaction variants) rather than LeafNodePrefix (account state).
func (t NodeType) isTxType() bool {
	return t == NodeTypeTxNoMeta || t == NodeTypeTxWithMeta
}
