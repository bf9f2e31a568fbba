package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"minimarket/internal/domain"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrPersisterClosed is reported for writes enqueued after Close
var ErrPersisterClosed = errors.New("cart persister closed")

// PersistResult describes the outcome of one snapshot write
type PersistResult struct {
	SessionID string
	Version   uint64
	Lines     int
	Err       error
	At        time.Time
}

// SnapshotWriter accepts snapshots for asynchronous persistence
type SnapshotWriter interface {
	Enqueue(sessionID string, version uint64, lines []domain.CartLine, done func(PersistResult))
}

type persistTask struct {
	sessionID string
	version   uint64
	lines     []domain.CartLine
	done      func(PersistResult)
}

// Persister writes cart snapshots off the request path. Snapshots for the same
// session that are still queued are coalesced so only the newest one is written.
type Persister struct {
	store        SnapshotStore
	logger       *zap.Logger
	maxRetries   uint64
	baseDelay    time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*persistTask
	queue   []string
	closed  bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// DefaultMaxAttempts bounds how often one snapshot write is tried
const DefaultMaxAttempts = 3

// PersisterOption tweaks retry behaviour
type PersisterOption func(*Persister)

// WithRetry sets how many times a failed write is retried and the initial delay
func WithRetry(maxRetries uint64, baseDelay time.Duration) PersisterOption {
	return func(p *Persister) {
		p.maxRetries = maxRetries
		p.baseDelay = baseDelay
	}
}

// WithWriteTimeout bounds a single write including its retries
func WithWriteTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		p.writeTimeout = d
	}
}

// NewPersister creates a persister; call Start to begin writing
func NewPersister(store SnapshotStore, logger *zap.Logger, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:        store,
		logger:       logger,
		maxRetries:   DefaultMaxAttempts - 1,
		baseDelay:    100 * time.Millisecond,
		writeTimeout: 10 * time.Second,
		pending:      make(map[string]*persistTask),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the background writer
func (p *Persister) Start() {
	go p.run()
}

// Enqueue schedules a snapshot. It never blocks and never calls done on the
// caller's goroutine. done runs once the snapshot, or a newer one for the same
// session, has been written or has failed for good.
func (p *Persister) Enqueue(sessionID string, version uint64, lines []domain.CartLine, done func(PersistResult)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if done != nil {
			go done(PersistResult{SessionID: sessionID, Version: version, Lines: len(lines), Err: ErrPersisterClosed, At: time.Now()})
		}
		return
	}

	if task, ok := p.pending[sessionID]; ok {
		task.version = version
		task.lines = lines
		task.done = done
	} else {
		p.pending[sessionID] = &persistTask{
			sessionID: sessionID,
			version:   version,
			lines:     lines,
			done:      done,
		}
		p.queue = append(p.queue, sessionID)
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting snapshots, drains what is queued and waits for the
// writer to exit or ctx to expire.
func (p *Persister) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
	})

	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persister) run() {
	defer close(p.stopped)

	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *Persister) drain() {
	for {
		task := p.next()
		if task == nil {
			return
		}
		p.write(task)
	}
}

func (p *Persister) next() *persistTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil
	}

	sessionID := p.queue[0]
	p.queue = p.queue[1:]
	task := p.pending[sessionID]
	delete(p.pending, sessionID)
	return task
}

func (p *Persister) write(task *persistTask) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	attempts := 0
	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := p.store.Save(ctx, task.sessionID, task.lines); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		p.logger.Error("Failed to persist cart snapshot",
			zap.String("session_id", task.sessionID),
			zap.Uint64("version", task.version),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	} else {
		p.logger.Debug("Cart snapshot persisted",
			zap.String("session_id", task.sessionID),
			zap.Uint64("version", task.version),
			zap.Int("lines", len(task.lines)),
		)
	}

	if task.done != nil {
		task.done(PersistResult{
			SessionID: task.sessionID,
			Version:   task.version,
			Lines:     len(task.lines),
			Err:       err,
			At:        time.Now(),
		})
	}
}
