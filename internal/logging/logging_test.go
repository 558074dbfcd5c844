package logging

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionRespectsLevel(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log-*.txt")
	require.NoError(t, err)
	defer f.Close()

	SetOutput(f)
	defer SetOutput(os.Stderr)

	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	p := For("hybridmap")
	p.Debug("should not appear")
	p.Warn("hash mismatch", "branch", 3)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "hash mismatch")
	assert.True(t, bytes.Contains(data, []byte("partition=hybridmap")))
}
