package rpcserver

import (
	"fmt"
	"net"
)

// GRPCServerConfig configures the gRPC listener, scoped down from the
// teacher's grpc.ServerConfig to what a read-only lookup service needs
// (no SecureGateway proxy trust list — there is no write path here to
// protect).
type GRPCServerConfig struct {
	Address        string
	MaxRecvMsgSize int
	MaxSendMsgSize int
}

// DefaultGRPCServerConfig mirrors the teacher's 4MB/4MB defaults.
func DefaultGRPCServerConfig() *GRPCServerConfig {
	return &GRPCServerConfig{
		Address:        "127.0.0.1:50061",
		MaxRecvMsgSize: 4 * 1024 * 1024,
		MaxSendMsgSize: 4 * 1024 * 1024,
	}
}

// Validate checks the config's fields, matching the teacher's
// ServerConfig.Validate.
func (c *GRPCServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	host, port, err := net.SplitHostPort(c.Address)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("address must have both host and port")
	}
	if c.MaxRecvMsgSize <= 0 {
		return fmt.Errorf("max_recv_msg_size must be positive")
	}
	if c.MaxSendMsgSize <= 0 {
		return fmt.Errorf("max_send_msg_size must be positive")
	}
	return nil
}
