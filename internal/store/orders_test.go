package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresOrderStore_QueryByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	orderID := uuid.New()
	productID := uuid.New()
	orderedAt := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"order_id", "user_id", "product_id", "quantity", "unit_price", "created_at"}).
		AddRow(orderID, userID, productID, 3, 19.5, orderedAt)

	mock.ExpectQuery("SELECT .+ FROM order_items oi\\s+JOIN orders o").
		WithArgs(userID).
		WillReturnRows(rows)

	items, err := NewPostgresOrderStore(mock).QueryByUser(context.Background(), userID)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, productID, items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 19.5, items[0].UnitPrice)
	assert.Equal(t, orderedAt, items[0].OrderedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_ListUserIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, b := uuid.New(), uuid.New()
	rows := pgxmock.NewRows([]string{"user_id"}).AddRow(a).AddRow(b)

	mock.ExpectQuery("SELECT user_id FROM orders\\s+UNION").WillReturnRows(rows)

	ids, err := NewPostgresUserStore(mock).ListUserIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
