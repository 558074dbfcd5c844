package addresscodec

import "errors"

// Algorithm distinguishes which key type a seed or public key belongs
// to — ed25519 seeds carry a distinct multi-byte prefix from
// secp256k1 seeds so a decoder can tell which curve to derive with,
// even though this package stops short of actually deriving keys.
type Algorithm int

const (
	AlgorithmSECP256K1 Algorithm = iota
	AlgorithmED25519
)

func (a Algorithm) String() string {
	if a == AlgorithmED25519 {
		return "ed25519"
	}
	return "secp256k1"
}

// ErrInvalidSeedLength is returned when seed entropy isn't exactly 16
// bytes, the fixed width every XRPL family seed carries.
var ErrInvalidSeedLength = errors.New("addresscodec: seed must be 16 bytes")

// EncodeSeed renders 16 bytes of entropy as an "s..." family seed
// under algo's prefix convention.
func EncodeSeed(entropy []byte, algo Algorithm) (string, error) {
	if len(entropy) != 16 {
		return "", ErrInvalidSeedLength
	}
	if algo == AlgorithmED25519 {
		return EncodeCheck(edSeedPrefix, entropy), nil
	}
	return EncodeCheck([]byte{versionFamilySeed}, entropy), nil
}

// DecodeSeed reverses EncodeSeed, reporting which algorithm the seed's
// prefix indicates.
func DecodeSeed(s string) (entropy []byte, algo Algorithm, err error) {
	// ed25519 seeds use a 3-byte prefix; try that first since its
	// version bytes would otherwise be mistaken for unrelated
	// single-byte-prefix payloads.
	if version, payload, decErr := DecodeCheck(3, s); decErr == nil &&
		len(version) == 3 && version[0] == edSeedPrefix[0] && version[1] == edSeedPrefix[1] && version[2] == edSeedPrefix[2] {
		if len(payload) != 16 {
			return nil, 0, ErrInvalidSeedLength
		}
		return payload, AlgorithmED25519, nil
	}

	version, payload, decErr := DecodeCheck(1, s)
	if decErr != nil {
		return nil, 0, decErr
	}
	if version[0] != versionFamilySeed {
		return nil, 0, ErrWrongVersion
	}
	if len(payload) != 16 {
		return nil, 0, ErrInvalidSeedLength
	}
	return payload, AlgorithmSECP256K1, nil
}
