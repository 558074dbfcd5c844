package addresscodec

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha512Half matches rippled's SHA512-Half: first 16 bytes of a
// SHA-512 digest, used to turn a passphrase into seed entropy.
func sha512Half(data []byte) []byte {
	h := sha512.Sum512(data)
	return h[:16]
}

func TestEncodeSeedRippledVectors(t *testing.T) {
	cases := []struct {
		passphrase string
		want       string
	}{
		{"masterpassphrase", "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"},
		{"Non-Random Passphrase", "snMKnVku798EnBwUfxeSD8953sLYA"},
		{"cookies excitement hand public", "sspUXGrmjQhq6mgc24jiRuevZiwKT"},
	}
	for _, c := range cases {
		entropy := sha512Half([]byte(c.passphrase))
		got, err := EncodeSeed(entropy, AlgorithmSECP256K1)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestDecodeSeedRoundTrip(t *testing.T) {
	entropy := sha512Half([]byte("masterpassphrase"))
	seed, err := EncodeSeed(entropy, AlgorithmSECP256K1)
	require.NoError(t, err)

	decoded, algo, err := DecodeSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, entropy, decoded)
	assert.Equal(t, AlgorithmSECP256K1, algo)
}

func TestDecodeSeedED25519RoundTrip(t *testing.T) {
	entropy := sha512Half([]byte("masterpassphrase"))
	seed, err := EncodeSeed(entropy, AlgorithmED25519)
	require.NoError(t, err)
	assert.Equal(t, byte('s'), seed[0])

	decoded, algo, err := DecodeSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, entropy, decoded)
	assert.Equal(t, AlgorithmED25519, algo)
}

func TestDecodeSeedRejectsTruncated(t *testing.T) {
	_, _, err := DecodeSeed("sspUXGrmjQhq6mgc24jiRuevZiwK")
	assert.Error(t, err)
}

func TestEncodeSeedRejectsWrongLength(t *testing.T) {
	_, err := EncodeSeed(make([]byte, 15), AlgorithmSECP256K1)
	assert.ErrorIs(t, err, ErrInvalidSeedLength)
}

func TestAccountIDAndClassicAddressRoundTrip(t *testing.T) {
	pubKeyHex := "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020"
	pubKey, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)

	id := AccountID(pubKey)
	addr := EncodeClassicAddress(id)
	assert.Equal(t, byte('r'), addr[0])

	got, err := DecodeClassicAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestEncodeClassicAddressFromPublicKeyHexMasterpassphrase(t *testing.T) {
	// The genesis account's secp256k1 public key, derivable from
	// "masterpassphrase" — checked here as a fixed known-good vector
	// rather than deriving it live, since key derivation is out of
	// this package's scope.
	pubKeyHex := "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020"
	addr, err := EncodeClassicAddressFromPublicKeyHex(pubKeyHex)
	require.NoError(t, err)
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)
}

func TestAccountAndNodePublicKeyEncodingDiffer(t *testing.T) {
	pubKeyHex := "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020"
	pubKey, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)

	accountKey, err := EncodeAccountPublicKey(pubKey)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), accountKey[0])

	nodeKey, err := EncodeNodePublicKey(pubKey)
	require.NoError(t, err)
	assert.Equal(t, byte('n'), nodeKey[0])

	decodedAccount, err := DecodeAccountPublicKey(accountKey)
	require.NoError(t, err)
	assert.Equal(t, pubKey, decodedAccount)

	decodedNode, err := DecodeNodePublicKey(nodeKey)
	require.NoError(t, err)
	assert.Equal(t, pubKey, decodedNode)

	_, err = DecodeAccountPublicKey(nodeKey)
	assert.ErrorIs(t, err, ErrWrongVersion)
}

func TestValidateSecp256k1PublicKey(t *testing.T) {
	pubKeyHex := "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020"
	pubKey, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)
	assert.NoError(t, ValidateSecp256k1PublicKey(pubKey), "this vector is a valid compressed secp256k1 XRPL public key")
}

func TestIsED25519PublicKey(t *testing.T) {
	key := append([]byte{0xED}, make([]byte, 32)...)
	assert.True(t, IsED25519PublicKey(key))
	assert.False(t, IsED25519PublicKey(make([]byte, 33)))
}
