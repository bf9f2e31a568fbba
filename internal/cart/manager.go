package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds reading a session's snapshot
const DefaultLoadTimeout = 5 * time.Second

// Manager owns the engines of all active sessions
type Manager struct {
	store       SnapshotStore
	writer      SnapshotWriter
	logger      *zap.Logger
	idleTimeout time.Duration
	loadTimeout time.Duration

	mu      sync.Mutex
	engines map[string]*Engine
	group   singleflight.Group
}

// NewManager creates a manager. A zero idleTimeout disables eviction.
func NewManager(store SnapshotStore, writer SnapshotWriter, logger *zap.Logger, idleTimeout time.Duration) *Manager {
	return &Manager{
		store:       store,
		writer:      writer,
		logger:      logger,
		idleTimeout: idleTimeout,
		loadTimeout: DefaultLoadTimeout,
		engines:     make(map[string]*Engine),
	}
}

// Engine returns the session's cart, creating and loading it on first use.
// Concurrent requests for the same session share one load. The load does not
// follow ctx cancellation, so a client hanging up cannot leave the cart empty.
// A failed load is retried on the next access; until then the cart reads as
// empty.
func (m *Manager) Engine(ctx context.Context, sessionID string) *Engine {
	if e := m.lookup(sessionID); e != nil && !e.needsLoad() {
		e.touch()
		return e
	}

	v, _, _ := m.group.Do(sessionID, func() (interface{}, error) {
		m.mu.Lock()
		e, ok := m.engines[sessionID]
		if !ok {
			e = NewEngine(sessionID, m.store, m.writer, m.logger)
			m.engines[sessionID] = e
		}
		m.mu.Unlock()

		if e.needsLoad() {
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
			defer cancel()

			if err := e.Load(loadCtx); err != nil {
				m.logger.Warn("Cart load failed, retrying on next access",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
			}
		}

		return e, nil
	})

	e := v.(*Engine)
	e.touch()
	return e
}

// Len returns the number of live engines
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}

// EvictIdle drops engines unused for longer than the idle timeout. Engines
// with unfinished writes are kept so a fresh engine never loads a snapshot
// older than what is still queued.
func (m *Manager) EvictIdle(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.engines {
		if now.Sub(e.idleSince()) < m.idleTimeout || e.Pending() {
			continue
		}
		delete(m.engines, id)
		evicted++
	}

	if evicted > 0 {
		m.logger.Debug("Evicted idle carts", zap.Int("count", evicted))
	}
	return evicted
}

// Run evicts idle engines periodically until ctx is cancelled
func (m *Manager) Run(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.EvictIdle(now)
		}
	}
}

// Flush waits for the outstanding writes of every engine
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	m.mu.Unlock()

	for _, e := range engines {
		if err := e.Flush(ctx); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) lookup(sessionID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engines[sessionID]
}
