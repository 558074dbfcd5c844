package catlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNibble(t *testing.T) {
	var key [32]byte
	key[0] = 0xAB

	n, err := Nibble(key, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xA), n)

	n, err = Nibble(key, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xB), n)

	_, err = Nibble(key, MaxDepth)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestFindDivergence(t *testing.T) {
	var a, b [32]byte
	a[5] = 0x12
	b[5] = 0x13

	d, err := FindDivergence(a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, d) // byte 5, low nibble -> depth 5*2+1

	_, err = FindDivergence(a, a, 0)
	assert.ErrorIs(t, err, ErrNoDivergence)
}
