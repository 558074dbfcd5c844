// Package logging wraps log/slog with named partitions, one per
// subsystem, mirroring the original hasher's LogPartition/Logger
// global-level-gate concept: a single process-wide level gates every
// partition, and each partition just tags its records with a name.
package logging

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	handlerMu sync.RWMutex
	handler   slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	level     atomic.Int64
)

func init() {
	level.Store(int64(slog.LevelInfo))
}

// SetLevel gates every partition's output, set from the CLI's
// --log-level flag.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

// SetOutput redirects every partition's records (used by tests).
func SetOutput(w *os.File) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// Partition is a named logger, analogous to the original's
// LogPartition: every record it emits carries a "partition" attribute
// and is gated by the process-wide level.
type Partition struct {
	name string
}

// For returns the named partition, creating its logger lazily on each
// call (slog.Logger is cheap to construct; the handler is shared).
func For(name string) *Partition {
	return &Partition{name: name}
}

func (p *Partition) logger() *slog.Logger {
	handlerMu.RLock()
	h := handler
	handlerMu.RUnlock()
	return slog.New(h).With("partition", p.name)
}

func (p *Partition) enabled(l slog.Level) bool {
	return int64(l) >= level.Load()
}

func (p *Partition) Debug(msg string, args ...any) {
	if p.enabled(slog.LevelDebug) {
		p.logger().Debug(msg, args...)
	}
}

func (p *Partition) Info(msg string, args ...any) {
	if p.enabled(slog.LevelInfo) {
		p.logger().Info(msg, args...)
	}
}

func (p *Partition) Warn(msg string, args ...any) {
	if p.enabled(slog.LevelWarn) {
		p.logger().Warn(msg, args...)
	}
}

func (p *Partition) Error(msg string, args ...any) {
	if p.enabled(slog.LevelError) {
		p.logger().Error(msg, args...)
	}
}
