package addresscodec

import (
	"crypto/sha256"

	"github.com/decred/dcrd/crypto/ripemd160"
)

const (
	versionAccountID        = 0x00 // classic address, starts with 'r'
	versionAccountPublicKey = 0x23 // starts with 'a'
	versionNodePublicKey    = 0x1C // starts with 'n'
	versionFamilySeed       = 0x21 // starts with 's'
)

// edSeedPrefix is the three-byte prefix rippled prepends before the
// version byte for ed25519 seeds, distinguishing them from secp256k1
// seeds that share the same 0x21 version byte otherwise.
var edSeedPrefix = []byte{0x01, 0xE1, 0x4C}

// Sha256RipeMD160 computes RIPEMD160(SHA256(data)), the hash XRPL uses
// to derive a 20-byte AccountID from a public key.
func Sha256RipeMD160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// AccountID derives the 20-byte AccountID for a public key.
func AccountID(publicKey []byte) [20]byte {
	var id [20]byte
	copy(id[:], Sha256RipeMD160(publicKey))
	return id
}

// EncodeClassicAddress renders a 20-byte AccountID as an "r..." address.
func EncodeClassicAddress(accountID [20]byte) string {
	return EncodeCheck([]byte{versionAccountID}, accountID[:])
}

// EncodeClassicAddressFromPublicKeyHex derives the AccountID from a
// hex-encoded public key and renders it as a classic address.
func EncodeClassicAddressFromPublicKeyHex(publicKeyHex string) (string, error) {
	pub, err := decodeHex(publicKeyHex)
	if err != nil {
		return "", err
	}
	return EncodeClassicAddress(AccountID(pub)), nil
}

// DecodeClassicAddress reverses EncodeClassicAddress.
func DecodeClassicAddress(addr string) ([20]byte, error) {
	var id [20]byte
	version, payload, err := DecodeCheck(1, addr)
	if err != nil {
		return id, err
	}
	if version[0] != versionAccountID {
		return id, ErrWrongVersion
	}
	if len(payload) != 20 {
		return id, ErrTooShort
	}
	copy(id[:], payload)
	return id, nil
}

// EncodeAccountPublicKey renders a public key with the account-key
// version byte (0x23, "a...").
func EncodeAccountPublicKey(pubKey []byte) (string, error) {
	return EncodeCheck([]byte{versionAccountPublicKey}, pubKey), nil
}

// DecodeAccountPublicKey reverses EncodeAccountPublicKey.
func DecodeAccountPublicKey(s string) ([]byte, error) {
	version, payload, err := DecodeCheck(1, s)
	if err != nil {
		return nil, err
	}
	if version[0] != versionAccountPublicKey {
		return nil, ErrWrongVersion
	}
	return payload, nil
}

// EncodeNodePublicKey renders a public key with the node-key version
// byte (0x1C, "n...").
func EncodeNodePublicKey(pubKey []byte) (string, error) {
	return EncodeCheck([]byte{versionNodePublicKey}, pubKey), nil
}

// DecodeNodePublicKey reverses EncodeNodePublicKey.
func DecodeNodePublicKey(s string) ([]byte, error) {
	version, payload, err := DecodeCheck(1, s)
	if err != nil {
		return nil, err
	}
	if version[0] != versionNodePublicKey {
		return nil, ErrWrongVersion
	}
	return payload, nil
}
