package favorites

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps each session's favorite product ids in a Redis set
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a favorites store; every write extends the set's ttl
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// List returns the favorite product ids in a stable order
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Add(ctx context.Context, sessionID, productID string) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key(sessionID), productID)
	if s.ttl > 0 {
		pipe.Expire(ctx, key(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, sessionID, productID string) error {
	if err := s.client.SRem(ctx, key(sessionID), productID).Err(); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (s *Store) Contains(ctx context.Context, sessionID, productID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key(sessionID), productID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return ok, nil
}

func key(sessionID string) string {
	return "favorites:" + sessionID
}
