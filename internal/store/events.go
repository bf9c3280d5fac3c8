package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/temcen/shoprank/pkg/models"
)

// PostgresEventStore persists behavior events in the behavior_events table.
type PostgresEventStore struct {
	db Querier
}

func NewPostgresEventStore(db Querier) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

// Append inserts one event.
func (s *PostgresEventStore) Append(ctx context.Context, event *models.BehaviorEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO behavior_events (id, user_id, product_id, action, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.Exec(ctx, query,
		event.ID, event.UserID, event.ProductID, event.Action, metadata, event.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert behavior event: %w", err)
	}
	return nil
}

// QueryByUser returns a user's events oldest first.
func (s *PostgresEventStore) QueryByUser(ctx context.Context, userID uuid.UUID) ([]models.BehaviorEvent, error) {
	query := `
		SELECT id, user_id, product_id, action, metadata, timestamp
		FROM behavior_events
		WHERE user_id = $1
		ORDER BY timestamp, id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for user %s: %w", userID, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// QueryByActions returns every event whose action is in actions, oldest
// first.
func (s *PostgresEventStore) QueryByActions(ctx context.Context, actions []string) ([]models.BehaviorEvent, error) {
	if len(actions) == 0 {
		return []models.BehaviorEvent{}, nil
	}

	query := `
		SELECT id, user_id, product_id, action, metadata, timestamp
		FROM behavior_events
		WHERE action = ANY($1)
		ORDER BY timestamp, id`

	rows, err := s.db.Query(ctx, query, actions)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by action: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]models.BehaviorEvent, error) {
	events := []models.BehaviorEvent{}
	for rows.Next() {
		var (
			event    models.BehaviorEvent
			metadata []byte
		)
		if err := rows.Scan(&event.ID, &event.UserID, &event.ProductID, &event.Action, &metadata, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan behavior event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of event %s: %w", event.ID, err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate behavior events: %w", err)
	}
	return events, nil
}
