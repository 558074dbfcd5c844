// Package addresscodec implements the XRPL family's base58check variant
// for display and inspection: classic addresses, account/node public
// keys, and family seeds. It derives AccountIDs and renders them, and
// validates seed/public-key encodings — it does not sign anything or
// derive private keys, matching the out-of-scope "base58/address
// codec" collaborator named alongside this library's core trie and
// catalogue format.
package addresscodec

import (
	"crypto/sha256"
	"errors"
	"math/big"
)

// alphabet is rippled's own base58 ordering — NOT Bitcoin's. Any
// library built against the standard Bitcoin alphabet silently
// produces wrong output against real XRPL data, which is why this is
// hand-rolled rather than pulled from an existing base58 package.
const alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var (
	bigRadix  = big.NewInt(58)
	bigZero   = big.NewInt(0)
	decodeMap [256]int8
)

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i, c := range alphabet {
		decodeMap[byte(c)] = int8(i)
	}
}

// ErrInvalidBase58Char is returned when decoding hits a byte outside
// the XRPL alphabet.
var ErrInvalidBase58Char = errors.New("addresscodec: invalid base58 character")

// base58Encode renders data as base58 using rippled's alphabet,
// preserving leading-zero bytes as leading alphabet[0] characters the
// way Bitcoin-style base58 does.
func base58Encode(data []byte) string {
	x := new(big.Int).SetBytes(data)
	mod := new(big.Int)
	var out []byte
	for x.Cmp(bigZero) > 0 {
		x.DivMod(x, bigRadix, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, alphabet[0])
	}
	reverse(out)
	return string(out)
}

// base58Decode inverts base58Encode.
func base58Decode(s string) ([]byte, error) {
	x := big.NewInt(0)
	for i := 0; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v < 0 {
			return nil, ErrInvalidBase58Char
		}
		x.Mul(x, bigRadix)
		x.Add(x, big.NewInt(int64(v)))
	}
	decoded := x.Bytes()

	leadingZeros := 0
	for i := 0; i < len(s) && s[i] == alphabet[0]; i++ {
		leadingZeros++
	}
	out := make([]byte, leadingZeros+len(decoded))
	copy(out[leadingZeros:], decoded)
	return out, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func doubleSHA256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

// EncodeCheck prefixes payload with version, appends a 4-byte
// double-SHA256 checksum, and base58-encodes the result.
func EncodeCheck(version []byte, payload []byte) string {
	buf := make([]byte, 0, len(version)+len(payload)+4)
	buf = append(buf, version...)
	buf = append(buf, payload...)
	checksum := doubleSHA256(buf)
	buf = append(buf, checksum[:4]...)
	return base58Encode(buf)
}

// ErrChecksumMismatch is returned by DecodeCheck when the trailing
// 4-byte checksum doesn't match the decoded payload.
var ErrChecksumMismatch = errors.New("addresscodec: checksum mismatch")

// ErrTooShort is returned by DecodeCheck when the decoded bytes are
// too short to contain a version prefix and checksum.
var ErrTooShort = errors.New("addresscodec: decoded data too short")

// DecodeCheck reverses EncodeCheck, returning the version bytes and
// payload separately after verifying the checksum.
func DecodeCheck(versionLen int, s string) (version, payload []byte, err error) {
	raw, err := base58Decode(s)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < versionLen+4 {
		return nil, nil, ErrTooShort
	}
	body := raw[:len(raw)-4]
	checksum := raw[len(raw)-4:]
	want := doubleSHA256(body)
	if string(want[:4]) != string(checksum) {
		return nil, nil, ErrChecksumMismatch
	}
	return body[:versionLen], body[versionLen:], nil
}
