package rpcserver

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.catl2")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := catl2.NewWriter(f, 0)
	require.NoError(t, err)

	stateMap := shamap.New(shamap.NodeTypeAccountState, shamap.Options{})
	var key shamap.Key
	key[31] = 0x01
	_, err = stateMap.SetItem(shamap.NewItem(key, []byte("hello world")), shamap.ModeAddOnly)
	require.NoError(t, err)

	txMap := shamap.New(shamap.NodeTypeTxWithMeta, shamap.Options{})

	require.NoError(t, w.WriteLedger(catl2.LedgerHeader{Seq: 1, Drops: 100}, stateMap.Root(), txMap.Root()))
	require.NoError(t, w.Finalize())
	return path
}

func TestJSONRPCGetKeyFound(t *testing.T) {
	path := writeFixture(t)
	backend, err := OpenBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	srv := NewServer(NewHandler(backend))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	keyHex := hex.EncodeToString(append(make([]byte, 31), 0x01))
	reqBody, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "get_key",
		"params":  map[string]interface{}{"ledger": 1, "key": keyHex},
		"id":      1,
	})

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Result GetKeyResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.True(t, decoded.Result.Found)

	data, err := hex.DecodeString(decoded.Result.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestJSONRPCGetKeyNotFound(t *testing.T) {
	path := writeFixture(t)
	backend, err := OpenBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	srv := NewServer(NewHandler(backend))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	missingKey := hex.EncodeToString(append(make([]byte, 31), 0xFF))
	reqBody, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "get_key",
		"params":  map[string]interface{}{"ledger": 1, "key": missingKey},
		"id":      2,
	})

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Result GetKeyResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.False(t, decoded.Result.Found)
}

func TestJSONRPCLedgerInfo(t *testing.T) {
	path := writeFixture(t)
	backend, err := OpenBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	srv := NewServer(NewHandler(backend))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	reqBody, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "ledger_info",
		"params":  map[string]interface{}{"ledger": 1},
		"id":      3,
	})

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Result LedgerInfo `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, uint32(1), decoded.Result.Sequence)
	assert.Equal(t, uint64(100), decoded.Result.Drops)
}

func TestJSONRPCUnknownMethod(t *testing.T) {
	path := writeFixture(t)
	backend, err := OpenBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	srv := NewServer(NewHandler(backend))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	reqBody, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "not_a_method",
		"id":      4,
	})

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Error *jsonrpcErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.NotNil(t, decoded.Error)
}

func TestGRPCServerConfigValidate(t *testing.T) {
	cfg := DefaultGRPCServerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Address = ""
	assert.Error(t, cfg.Validate())
}

func TestNewGRPCServerRejectsBadConfig(t *testing.T) {
	_, err := NewGRPCServer(&GRPCServerConfig{Address: "not-an-address"}, nil)
	assert.Error(t, err)
}
