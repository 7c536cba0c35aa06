// Package server coordinates the lifecycle of the meetEasy listeners:
// signal handling, in-flight request tracking and ordered cleanup.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aabubakar17/meetEasy/internal/logging"
)

// Config holds shutdown timing.
type Config struct {
	// ShutdownTimeout bounds the whole shutdown sequence.
	ShutdownTimeout time.Duration

	// DrainTimeout bounds the wait for in-flight requests.
	DrainTimeout time.Duration
}

// DefaultConfig returns the default shutdown configuration.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: 30 * time.Second,
		DrainTimeout:    15 * time.Second,
	}
}

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Manager handles graceful shutdown of server components.
type Manager struct {
	shutdownTimeout time.Duration
	drainTimeout    time.Duration
	logger          *zap.Logger

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
	inFlight     atomic.Int64
	shuttingDown atomic.Bool

	hooks   []hook
	hooksMu sync.Mutex

	serveErrs chan error
}

// NewManager creates a shutdown manager. Zero timeouts take the defaults.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	def := DefaultConfig()
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}

	return &Manager{
		shutdownTimeout: cfg.ShutdownTimeout,
		drainTimeout:    cfg.DrainTimeout,
		logger:          logging.OrNop(logger),
		shutdownCh:      make(chan struct{}),
		serveErrs:       make(chan error, 8),
	}
}

// OnShutdown registers a cleanup step. Steps run in reverse order of
// registration once in-flight requests have drained.
func (m *Manager) OnShutdown(name string, fn func(ctx context.Context) error) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// ServeHTTP starts srv on ln in the background and registers its graceful
// stop. A listener failure initiates shutdown.
func (m *Manager) ServeHTTP(name string, srv *http.Server, ln net.Listener) {
	m.OnShutdown(name, srv.Shutdown)
	m.Go(name, func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	m.logger.Info("Listening", zap.String("server", name), zap.String("addr", ln.Addr().String()))
}

// Go runs a long-lived component. If it returns an error the process shuts
// down and Wait reports that error.
func (m *Manager) Go(name string, run func() error) {
	go func() {
		if err := run(); err != nil {
			m.logger.Error("Component failed", zap.String("component", name), zap.Error(err))
			select {
			case m.serveErrs <- fmt.Errorf("%s: %w", name, err):
			default:
			}
		}
	}()
}

// Wait blocks until SIGINT/SIGTERM, ctx cancellation or a component
// failure, then shuts down.
func (m *Manager) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return m.Shutdown(context.Background(), fmt.Sprintf("received signal: %v", sig))
	case <-ctx.Done():
		return m.Shutdown(context.Background(), "context cancelled")
	case err := <-m.serveErrs:
		if shutdownErr := m.Shutdown(context.Background(), "component failed"); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-m.shutdownCh:
		return m.shutdownErr
	}
}

// Shutdown drains in-flight requests and runs the registered hooks. Only
// the first call does any work.
func (m *Manager) Shutdown(ctx context.Context, reason string) error {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Shutting down", zap.String("reason", reason))
		m.shuttingDown.Store(true)
		close(m.shutdownCh)

		shutdownCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		defer cancel()

		if err := m.drainInFlight(shutdownCtx); err != nil {
			m.shutdownErr = fmt.Errorf("drain failed: %w", err)
		}

		m.hooksMu.Lock()
		hooks := m.hooks
		m.hooksMu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i].fn(shutdownCtx); err != nil {
				m.logger.Warn("Shutdown step failed", zap.String("step", hooks[i].name), zap.Error(err))
				if m.shutdownErr == nil {
					m.shutdownErr = fmt.Errorf("%s: %w", hooks[i].name, err)
				}
			}
		}
		m.logger.Info("Shutdown complete")
	})

	return m.shutdownErr
}

// drainInFlight waits for all in-flight requests to complete.
func (m *Manager) drainInFlight(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, m.drainTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.inFlight.Load() == 0 {
			return nil
		}

		select {
		case <-drainCtx.Done():
			if remaining := m.inFlight.Load(); remaining > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight requests", remaining)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest increments the in-flight counter. It returns false once
// shutdown has begun and the request should be rejected.
func (m *Manager) TrackRequest() bool {
	if m.shuttingDown.Load() {
		return false
	}
	m.inFlight.Add(1)
	return true
}

// UntrackRequest decrements the in-flight request counter.
func (m *Manager) UntrackRequest() {
	m.inFlight.Add(-1)
}

// IsShuttingDown returns true if shutdown has been initiated.
func (m *Manager) IsShuttingDown() bool {
	return m.shuttingDown.Load()
}

// InFlightCount returns the current number of in-flight requests.
func (m *Manager) InFlightCount() int64 {
	return m.inFlight.Load()
}

// Done returns a channel that is closed when shutdown begins.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

// Middleware tracks in-flight requests and rejects new ones during
// shutdown.
func Middleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.TrackRequest() {
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"service is shutting down"}`))
				return
			}
			defer m.UntrackRequest()

			next.ServeHTTP(w, r)
		})
	}
}
