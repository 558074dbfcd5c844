package rpcserver

import (
	"encoding/json"
	"net/http"
)

// Server is a JSON-RPC-over-HTTP server, matching the teacher's
// internal/server/api/jsonrpc.Server: one handler, one POST endpoint,
// no batching.
type Server struct {
	handler *Handler
}

// NewServer wraps handler for serving over HTTP.
func NewServer(handler *Handler) *Server {
	return &Server{handler: handler}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, -32700, "Parse error", nil)
		return
	}

	result, err := s.handler.Handle(req.Method, req.Params)
	if err != nil {
		writeJSONRPCError(w, req.ID, -32603, err.Error(), nil)
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

func writeJSONRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonrpcResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

func writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonrpcErrorResponse{
		JSONRPC: "2.0",
		Error:   jsonrpcErrorBody{Code: code, Message: message, Data: data},
		ID:      id,
	})
}
