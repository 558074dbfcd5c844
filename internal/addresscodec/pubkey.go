package addresscodec

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ErrInvalidPublicKey is returned when a purported secp256k1 public
// key doesn't parse as a valid curve point.
var ErrInvalidPublicKey = errors.New("addresscodec: invalid secp256k1 public key")

// ValidateSecp256k1PublicKey checks that pubKey is a well-formed
// compressed or uncompressed secp256k1 point, the validation this
// display-only codec can do without ever touching a private key.
func ValidateSecp256k1PublicKey(pubKey []byte) error {
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		return ErrInvalidPublicKey
	}
	return nil
}

// IsED25519PublicKey reports whether pubKey is in XRPL's ed25519
// public key encoding: a leading 0xED byte followed by 32 key bytes.
// XRPL prefixes ed25519 keys this way precisely so they can't collide
// with a valid secp256k1 point encoding (which never starts with 0xED).
func IsED25519PublicKey(pubKey []byte) bool {
	return len(pubKey) == 33 && pubKey[0] == 0xED
}
