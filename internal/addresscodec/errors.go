package addresscodec

import (
	"encoding/hex"
	"errors"
)

// ErrWrongVersion is returned when a decoded base58check payload's
// version byte doesn't match what the caller expected (e.g. decoding a
// node public key with DecodeAccountPublicKey).
var ErrWrongVersion = errors.New("addresscodec: unexpected version byte")

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
