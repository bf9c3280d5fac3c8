package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PostgresUserStore enumerates users with any recorded history.
type PostgresUserStore struct {
	db Querier
}

func NewPostgresUserStore(db Querier) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// ListUserIDs returns every user that has placed an order or produced a
// behavior event.
func (s *PostgresUserStore) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM orders
		UNION
		SELECT user_id FROM behavior_events
		ORDER BY user_id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}
	return ids, nil
}
