// Package system manages the lifecycle of long-running components: the
// earnings rollup runner, the rate limiter cleanup, and any future workers.
package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// Service is a lifecycle-managed component. The manager starts services in
// registration order and stops them in reverse.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts and stops registered services deterministically.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  []Service
	logger   *logger.Logger
}

// NewManager creates an empty manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{logger: log}
}

// Register adds a service. Registration order determines start order.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
}

// StartAll starts every registered service. On failure it stops the services
// already started, in reverse order, and returns the original error.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			m.logger.WithError(err).WithField("service", svc.Name()).Error("service failed to start")
			m.stopStartedLocked(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.logger.WithField("service", svc.Name()).Info("service started")
		m.started = append(m.started, svc)
	}
	return nil
}

// StopAll stops the started services in reverse order. It continues past
// individual failures and returns the first error seen.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStartedLocked(ctx)
}

func (m *Manager) stopStartedLocked(ctx context.Context) error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		if err := svc.Stop(ctx); err != nil {
			m.logger.WithError(err).WithField("service", svc.Name()).Warn("service failed to stop")
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
			continue
		}
		m.logger.WithField("service", svc.Name()).Info("service stopped")
	}
	m.started = nil
	return firstErr
}
