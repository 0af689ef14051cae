package connhandler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultSweepPeriod   = 60 * time.Second
	DefaultIdleThreshold = 5 * time.Minute
)

// Manager tracks named long-lived handlers and runs the pool-level idle
// sweeper: a fixed-period sweep closes any handle whose last_activity
// exceeds the idle timeout. Close is cooperative; the worker thread exits
// only after replying to the Close command the sweeper sends it.
type Manager struct {
	mu            sync.Mutex
	handlers      map[string]*Handler
	sweepPeriod   time.Duration
	idleThreshold time.Duration
	logger        *logrus.Entry

	stopOnce sync.Once
	stop     chan struct{}
}

func NewManager(sweepPeriod, idleThreshold time.Duration, logger *logrus.Entry) *Manager {
	if sweepPeriod <= 0 {
		sweepPeriod = DefaultSweepPeriod
	}
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		handlers:      make(map[string]*Handler),
		sweepPeriod:   sweepPeriod,
		idleThreshold: idleThreshold,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

func (m *Manager) Register(h *Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[h.ID] = h
}

func (m *Manager) Get(id string) (*Handler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handlers[id]
	return h, ok
}

// Snapshot returns every currently registered handler, for best-effort
// operations that must touch all long-lived connections (e.g. replaying a
// newly registered attachment).
func (m *Manager) Snapshot() []*Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h)
	}
	return out
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, id)
}

// Run blocks sweeping at m.sweepPeriod until Stop is called. Intended to be
// started in its own goroutine.
func (m *Manager) Run() {
	ticker := time.NewTicker(m.sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepOnce()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) sweepOnce() {
	m.mu.Lock()
	idle := make([]*Handler, 0)
	for id, h := range m.handlers {
		if time.Since(h.LastActivity()) > m.idleThreshold {
			idle = append(idle, h)
			delete(m.handlers, id)
		}
	}
	m.mu.Unlock()

	for _, h := range idle {
		m.logger.WithField("connection_id", h.ID).Info("closing idle long-lived connection")
		if err := h.Close(); err != nil {
			m.logger.WithError(err).WithField("connection_id", h.ID).Warn("error closing idle connection")
		}
	}
}
