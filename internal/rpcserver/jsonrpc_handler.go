package rpcserver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler dispatches JSON-RPC methods to a Backend, mirroring the
// teacher's XRPLHandler: a name -> func(params) (result, error) table
// built once at construction time.
type Handler struct {
	backend *Backend
	methods map[string]func(interface{}) (interface{}, error)
}

// NewHandler registers get_key, get_key_tx, and ledger_info against
// backend.
func NewHandler(backend *Backend) *Handler {
	h := &Handler{
		backend: backend,
		methods: make(map[string]func(interface{}) (interface{}, error)),
	}
	h.methods["get_key"] = h.handleGetKey
	h.methods["get_key_tx"] = h.handleGetKeyTx
	h.methods["ledger_info"] = h.handleLedgerInfo
	return h
}

// Handle dispatches method to its registered handler.
func (h *Handler) Handle(method string, params interface{}) (interface{}, error) {
	fn, ok := h.methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not found", method)
	}
	return fn(params)
}

// decodeParams round-trips the generically-decoded params value
// through JSON into a concrete struct, since net/http's JSON decoder
// hands methods() an interface{} (usually map[string]interface{}).
func decodeParams(raw interface{}, out interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (h *Handler) handleGetKey(raw interface{}) (interface{}, error) {
	return h.getKeyResult(raw, h.backend.GetKey)
}

func (h *Handler) handleGetKeyTx(raw interface{}) (interface{}, error) {
	return h.getKeyResult(raw, h.backend.GetKeyTx)
}

func (h *Handler) getKeyResult(raw interface{}, fn func(uint32, string) ([]byte, error)) (interface{}, error) {
	var p GetKeyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	data, err := fn(p.Ledger, p.Key)
	if errors.Is(err, ErrKeyNotFound) {
		return GetKeyResult{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return GetKeyResult{Found: true, Data: hex.EncodeToString(data)}, nil
}

func (h *Handler) handleLedgerInfo(raw interface{}) (interface{}, error) {
	var p LedgerInfoParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return h.backend.LedgerInfo(p.Ledger)
}
