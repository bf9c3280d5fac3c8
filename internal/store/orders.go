package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/temcen/shoprank/pkg/models"
)

// PostgresOrderStore reads purchased line items. Cancelled orders are
// excluded.
type PostgresOrderStore struct {
	db Querier
}

func NewPostgresOrderStore(db Querier) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// QueryByUser returns every line item the user has ordered, oldest first.
func (s *PostgresOrderStore) QueryByUser(ctx context.Context, userID uuid.UUID) ([]models.OrderLineItem, error) {
	query := `
		SELECT oi.order_id, o.user_id, oi.product_id, oi.quantity, oi.unit_price, o.created_at
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1
			AND o.status <> 'cancelled'
		ORDER BY o.created_at, oi.order_id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	items := []models.OrderLineItem{}
	for rows.Next() {
		var item models.OrderLineItem
		if err := rows.Scan(&item.OrderID, &item.UserID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.OrderedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order line items: %w", err)
	}
	return items, nil
}
