package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bourkey/revalidate-webhook/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Manager handles graceful shutdown coordination. Handlers run one at a
// time in registration order, so the HTTP server can drain before the
// invalidation backend it calls is closed.
type Manager struct {
	logger         *logrus.Logger
	shutdownChan   chan os.Signal
	handlers       []namedHandler
	timeout        time.Duration
	mu             sync.Mutex
	isShuttingDown bool
}

// ShutdownHandler is a function that performs cleanup during shutdown
type ShutdownHandler func(ctx context.Context) error

type namedHandler struct {
	name    string
	handler ShutdownHandler
}

// NewManager creates a new shutdown manager
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		logger:       logger,
		shutdownChan: make(chan os.Signal, 1),
		timeout:      timeout,
	}
}

// RegisterHandler adds a shutdown handler to be called during shutdown
func (m *Manager) RegisterHandler(name string, handler ShutdownHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, namedHandler{name: name, handler: handler})
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is
// done, then runs the registered handlers
func (m *Manager) WaitForShutdown(ctx context.Context) error {
	signal.Notify(m.shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(m.shutdownChan)

	select {
	case sig := <-m.shutdownChan:
		logging.LogShutdownInitiated(m.logger, sig.String())
	case <-ctx.Done():
		logging.LogShutdownInitiated(m.logger, "context")
	}

	return m.Shutdown()
}

// Shutdown executes all registered shutdown handlers. Calling it more than
// once is a no-op.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.isShuttingDown = true
	handlers := append([]namedHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("Starting graceful shutdown")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for _, h := range handlers {
		if err := m.run(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	duration := time.Since(start)
	if ctx.Err() == context.DeadlineExceeded {
		m.logger.WithFields(logrus.Fields{
			"timeout": m.timeout.Seconds(),
		}).Error("Shutdown timeout exceeded")
	}

	if len(errs) > 0 {
		m.logger.WithFields(logrus.Fields{
			"duration": duration.Seconds(),
			"errors":   len(errs),
		}).Warn("Shutdown completed with errors")
		return errors.Join(errs...)
	}

	logging.LogShutdownComplete(m.logger, duration.Seconds())
	return nil
}

func (m *Manager) run(ctx context.Context, h namedHandler) error {
	m.logger.WithField("handler", h.name).Info("Executing shutdown handler")
	start := time.Now()

	err := h.handler(ctx)

	duration := time.Since(start)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"handler":  h.name,
			"duration": duration.Seconds(),
			"error":    err.Error(),
		}).Error("Shutdown handler failed")
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"handler":  h.name,
		"duration": duration.Seconds(),
	}).Info("Shutdown handler completed")
	return nil
}

// IsShuttingDown returns true if shutdown has been initiated
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isShuttingDown
}

// TriggerShutdown manually triggers a shutdown (for testing or programmatic shutdown)
func (m *Manager) TriggerShutdown() {
	m.shutdownChan <- syscall.SIGTERM
}
