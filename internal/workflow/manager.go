package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/notifications"
	"slidecast/internal/queue"
)

// Manager coordinates job processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service
	preflight    bool

	heartbeat *HeartbeatMonitor

	lanes     map[queue.ProcessingLane]*laneState
	laneOrder []queue.ProcessingLane

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides the configured queue poll interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithHeartbeat overrides the configured heartbeat interval and timeout.
func WithHeartbeat(interval, timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.heartbeat = NewHeartbeatMonitor(m.store, m.logger, interval, timeout)
	}
}

// WithPreflight runs the preflight checks when the manager starts.
func WithPreflight(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.preflight = enabled
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg), opts...)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		lanes: make(map[queue.ProcessingLane]*laneState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
