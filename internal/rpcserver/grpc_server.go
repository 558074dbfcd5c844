package rpcserver

import (
	"context"
	"encoding/hex"
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCServer wraps a grpc.Server's lifecycle and exposes catalogue
// lookups as plain Go methods, matching the teacher's internal/grpc.Server
// shape (lifecycle management + domain methods defined directly on
// *Server, with no protoc-generated service registration — this repo's
// teacher does the same: GetGRPCServer() exists for registering
// additional services but server.go itself never calls
// RegisterXxxServer).
type GRPCServer struct {
	mu sync.RWMutex

	grpcServer *grpc.Server
	backend    *Backend
	config     *GRPCServerConfig
	listener   net.Listener
	running    bool
}

// NewGRPCServer creates a gRPC server bound to backend.
func NewGRPCServer(cfg *GRPCServerConfig, backend *Backend) (*GRPCServer, error) {
	if cfg == nil {
		cfg = DefaultGRPCServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
	}

	return &GRPCServer{
		grpcServer: grpc.NewServer(opts...),
		backend:    backend,
		config:     cfg,
	}, nil
}

// StartAsync starts serving in a goroutine and returns immediately.
func (s *GRPCServer) StartAsync() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	go func() {
		_ = s.grpcServer.Serve(listener)
	}()
	return nil
}

// Stop gracefully stops the server.
func (s *GRPCServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.grpcServer.GracefulStop()
	s.running = false
	s.listener = nil
}

// IsRunning reports whether the server is currently accepting connections.
func (s *GRPCServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the bound address, or "" if not running.
func (s *GRPCServer) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetGRPCServer returns the underlying grpc.Server for registering
// additional services.
func (s *GRPCServer) GetGRPCServer() *grpc.Server {
	return s.grpcServer
}

// GetLedgerInfoRequest is GetLedgerInfo's request.
type GetLedgerInfoRequest struct {
	Sequence uint32
}

// GetLedgerInfo returns the canonical header for the requested ledger.
func (s *GRPCServer) GetLedgerInfo(ctx context.Context, req *GetLedgerInfoRequest) (*LedgerInfo, error) {
	info, err := s.backend.LedgerInfo(req.Sequence)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return &info, nil
}

// GetKeyRequest is GetKey/GetKeyTx's request.
type GetKeyRequest struct {
	Sequence uint32
	Key      string
}

// GetKey looks up a state-tree key.
func (s *GRPCServer) GetKey(ctx context.Context, req *GetKeyRequest) (*GetKeyResult, error) {
	return s.getKey(req, s.backend.GetKey)
}

// GetKeyTx looks up a transaction-tree key.
func (s *GRPCServer) GetKeyTx(ctx context.Context, req *GetKeyRequest) (*GetKeyResult, error) {
	return s.getKey(req, s.backend.GetKeyTx)
}

func (s *GRPCServer) getKey(req *GetKeyRequest, fn func(uint32, string) ([]byte, error)) (*GetKeyResult, error) {
	data, err := fn(req.Sequence, req.Key)
	if errors.Is(err, ErrKeyNotFound) {
		return &GetKeyResult{Found: false}, nil
	}
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &GetKeyResult{Found: true, Data: hex.EncodeToString(data)}, nil
}
