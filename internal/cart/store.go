package cart

import (
	"context"
	"errors"

	"minimarket/internal/domain"
)

// ErrSnapshotNotFound is returned when a session has no persisted cart
var ErrSnapshotNotFound = errors.New("cart snapshot not found")

// SnapshotStore persists the full line set of a session's cart
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Save(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Delete(ctx context.Context, sessionID string) error
}

// normalizeLines drops non-positive quantities and merges duplicate keys so a
// snapshot written by an older client cannot break the one-line-per-key rule.
func normalizeLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	index := make(map[Key]int, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 || line.Product.ID == "" {
			continue
		}
		if line.WeightGrams < 0 {
			line.WeightGrams = 0
		}

		key := KeyOf(line)
		if i, ok := index[key]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, line)
	}

	return out
}
