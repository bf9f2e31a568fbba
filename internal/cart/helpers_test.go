package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"minimarket/internal/domain"

	"go.uber.org/zap"
)

var errStoreDown = errors.New("store down")

// memoryStore is a SnapshotStore that can be told to fail or to hold loads
type memoryStore struct {
	mu       sync.Mutex
	data     map[string][]domain.CartLine
	failures int // number of upcoming Save calls that fail
	loadErrs int // number of upcoming Load calls that fail
	saves    int
	release  chan struct{} // when set, Load waits for it
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]domain.CartLine)}
}

func (s *memoryStore) Load(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	release := s.release
	if s.loadErrs > 0 {
		s.loadErrs--
		s.mu.Unlock()
		return nil, errStoreDown
	}
	s.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.data[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *memoryStore) Save(_ context.Context, sessionID string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.failures > 0 {
		s.failures--
		return errStoreDown
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	s.data[sessionID] = out
	return nil
}

func (s *memoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *memoryStore) snapshot(sessionID string) ([]domain.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.data[sessionID]
	return lines, ok
}

func (s *memoryStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newTestPersister(t *testing.T, store SnapshotStore) *Persister {
	t.Helper()

	p := NewPersister(store, zap.NewNop(), WithRetry(2, time.Millisecond), WithWriteTimeout(time.Second))
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p
}

func flush(t *testing.T, e *Engine) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return e.Flush(ctx)
}

func kgProduct(id string, price int64) domain.Product {
	return domain.Product{ID: id, Name: id, NameUz: id, Price: price, Unit: domain.UnitKilogram, InStock: true}
}

func pieceProduct(id string, price int64) domain.Product {
	return domain.Product{ID: id, Name: id, NameUz: id, Price: price, Unit: domain.UnitPiece, InStock: true}
}
