package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"minimarket/internal/domain"

	"go.uber.org/zap"
)

// Engine holds one session's cart. All reads come from memory; every mutation
// is applied locally first and then handed to the writer as a full snapshot.
type Engine struct {
	sessionID string
	store     SnapshotStore
	writer    SnapshotWriter
	logger    *zap.Logger

	mu       sync.Mutex
	lines    []domain.CartLine
	loaded   bool
	mutated  bool
	lastUsed time.Time

	// version counts mutations; settled is the newest version whose write
	// has finished, successfully or not.
	version   uint64
	settled   uint64
	lastErr   error
	settledCh chan struct{}

	observers  map[int]func(PersistResult)
	observerID int
}

// NewEngine creates an empty, not yet loaded cart for a session
func NewEngine(sessionID string, store SnapshotStore, writer SnapshotWriter, logger *zap.Logger) *Engine {
	return &Engine{
		sessionID: sessionID,
		store:     store,
		writer:    writer,
		logger:    logger.With(zap.String("session_id", sessionID)),
		lines:     []domain.CartLine{},
		lastUsed:  time.Now(),
		settledCh: make(chan struct{}),
		observers: make(map[int]func(PersistResult)),
	}
}

// SessionID returns the owning session
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Load reads the previously persisted snapshot. A snapshot that arrives after
// the cart was already mutated is discarded. When the store fails the cart
// stays not loaded and reads as empty, so Load can be called again.
func (e *Engine) Load(ctx context.Context) error {
	lines, err := e.store.Load(ctx, e.sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mutated {
		e.loaded = true
		if err == nil {
			e.logger.Info("Discarding cart snapshot, cart changed before load finished",
				zap.Int("snapshot_lines", len(lines)),
			)
		}
		return nil
	}

	if errors.Is(err, ErrSnapshotNotFound) {
		e.loaded = true
		return nil
	}
	if err != nil {
		e.logger.Warn("Failed to load cart snapshot", zap.Error(err))
		return err
	}

	e.lines = normalizeLines(lines)
	e.loaded = true
	return nil
}

// Loaded reports whether Load has completed
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// needsLoad is true until a load succeeded or a mutation made it moot
func (e *Engine) needsLoad() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.loaded && !e.mutated
}

// AddToCart increments the line for (product, weightGrams) or appends a new
// line with quantity 1.
func (e *Engine) AddToCart(product domain.Product, weightGrams int) {
	key := NewKey(product.ID, weightGrams)

	e.mu.Lock()
	if i := e.indexOf(key); i >= 0 {
		e.lines[i].Quantity++
	} else {
		e.lines = append(e.lines, domain.CartLine{
			Product:     product,
			Quantity:    1,
			WeightGrams: key.WeightGrams,
		})
	}
	e.commitLocked()
}

// UpdateQuantity sets the quantity of a line. Non-positive values remove it;
// an unknown key is ignored.
func (e *Engine) UpdateQuantity(key Key, quantity int) {
	if quantity <= 0 {
		e.RemoveFromCart(key)
		return
	}

	e.mu.Lock()
	i := e.indexOf(key)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	e.lines[i].Quantity = quantity
	e.commitLocked()
}

// RemoveFromCart drops the line with the given key if present
func (e *Engine) RemoveFromCart(key Key) {
	e.mu.Lock()
	i := e.indexOf(key)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	e.commitLocked()
}

// ClearCart empties the cart and persists the empty state
func (e *Engine) ClearCart() {
	e.mu.Lock()
	e.lines = []domain.CartLine{}
	e.commitLocked()
}

// ItemQuantity returns the quantity for (productID, weightGrams), or 0
func (e *Engine) ItemQuantity(productID string, weightGrams int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexOf(NewKey(productID, weightGrams)); i >= 0 {
		return e.lines[i].Quantity
	}
	return 0
}

// ItemPrice is the total price of one line
func (e *Engine) ItemPrice(line domain.CartLine) int64 {
	return LinePrice(line)
}

// TotalItems sums quantities across all lines
func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, line := range e.lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice sums line prices across all lines
func (e *Engine) TotalPrice() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total int64
	for _, line := range e.lines {
		total += LinePrice(line)
	}
	return total
}

// Lines returns a copy of the lines in insertion order
func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

// Snapshot is a consistent view of the cart taken under one lock
type Snapshot struct {
	Lines        []domain.CartLine
	TotalItems   int
	TotalPrice   int64
	Loaded       bool
	PersistError error
}

// Snapshot returns the lines together with the totals computed from them
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Lines:        e.copyLocked(),
		Loaded:       e.loaded,
		PersistError: e.lastErr,
	}
	for _, line := range snap.Lines {
		snap.TotalItems += line.Quantity
		snap.TotalPrice += LinePrice(line)
	}
	return snap
}

// RemoveOrdered takes the given lines out of the cart in one mutation. Each
// matching line loses the ordered quantity and is dropped when nothing is
// left; lines added or raised since the order was taken stay.
func (e *Engine) RemoveOrdered(ordered []domain.CartLine) {
	e.mu.Lock()
	changed := false
	for _, o := range ordered {
		i := e.indexOf(KeyOf(o))
		if i < 0 {
			continue
		}
		changed = true
		if e.lines[i].Quantity > o.Quantity {
			e.lines[i].Quantity -= o.Quantity
			continue
		}
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
	}
	if !changed {
		e.mu.Unlock()
		return
	}
	e.commitLocked()
}

// Subscribe registers an observer for write outcomes and returns a function
// that removes it. Observers run on the writer goroutine and must not block.
func (e *Engine) Subscribe(fn func(PersistResult)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.observerID
	e.observerID++
	e.observers[id] = fn

	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// Flush waits until every mutation made so far has been written or has
// failed, and returns the error of the last write.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	target := e.version

	for e.settled < target {
		ch := e.settledCh
		e.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		e.mu.Lock()
	}

	err := e.lastErr
	e.mu.Unlock()
	return err
}

// Pending reports whether a write is still outstanding
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled < e.version
}

// LastPersistError returns the error of the most recent write, if any
func (e *Engine) LastPersistError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) touch() {
	e.mu.Lock()
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

func (e *Engine) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

func (e *Engine) indexOf(key Key) int {
	for i, line := range e.lines {
		if KeyOf(line) == key {
			return i
		}
	}
	return -1
}

func (e *Engine) copyLocked() []domain.CartLine {
	out := make([]domain.CartLine, len(e.lines))
	copy(out, e.lines)
	return out
}

// commitLocked records a mutation, enqueues the snapshot and releases the lock.
// Enqueueing under the lock keeps snapshots of one session in version order.
func (e *Engine) commitLocked() {
	e.mutated = true
	e.lastUsed = time.Now()
	e.version++
	e.writer.Enqueue(e.sessionID, e.version, e.copyLocked(), e.onPersisted)
	e.mu.Unlock()
}

func (e *Engine) onPersisted(result PersistResult) {
	e.mu.Lock()
	if result.Version > e.settled {
		e.settled = result.Version
		e.lastErr = result.Err
		close(e.settledCh)
		e.settledCh = make(chan struct{})
	}
	observers := make([]func(PersistResult), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	for _, fn := range observers {
		fn(result)
	}
}
