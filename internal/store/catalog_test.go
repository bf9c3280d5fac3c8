package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shoprank/pkg/models"
)

var productRowColumns = []string{
	"id", "name", "description", "category", "subcategory", "brand",
	"price", "rating", "sales_count",
	"tags", "colors", "sizes",
	"material", "style", "occasion",
	"active", "created_at", "updated_at",
}

func addProductRow(rows *pgxmock.Rows, p models.Product) *pgxmock.Rows {
	return rows.AddRow(
		p.ID, p.Name, p.Description, p.Category, p.Subcategory, p.Brand,
		p.Price, p.Rating, p.SalesCount,
		p.Tags, p.Colors, p.Sizes,
		p.Material, p.Style, p.Occasion,
		p.Active, p.CreatedAt, p.UpdatedAt,
	)
}

func testProduct(name string) models.Product {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return models.Product{
		ID:         uuid.New(),
		Name:       name,
		Category:   "shoes",
		Brand:      "Acme",
		Price:      59.99,
		Rating:     4.2,
		SalesCount: 12,
		Tags:       []string{"running"},
		Colors:     []string{"red"},
		Sizes:      []string{"42"},
		Material:   "mesh",
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPostgresCatalog_FetchAllActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog := NewPostgresCatalog(mock)
	first := testProduct("Runner")
	second := testProduct("Walker")

	rows := pgxmock.NewRows(productRowColumns)
	addProductRow(rows, first)
	addProductRow(rows, second)

	mock.ExpectQuery("SELECT .+ FROM products\\s+WHERE active = true").WillReturnRows(rows)

	products, err := catalog.FetchAllActive(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, first, products[0])
	assert.Equal(t, second.ID, products[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_FetchAllActiveQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM products").WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresCatalog(mock).FetchAllActive(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresCatalog_FetchByIDsKeepsRequestOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := testProduct("A")
	b := testProduct("B")
	unknown := uuid.New()
	ids := []uuid.UUID{b.ID, unknown, a.ID}

	rows := pgxmock.NewRows(productRowColumns)
	addProductRow(rows, a)
	addProductRow(rows, b)

	mock.ExpectQuery("SELECT .+ FROM products\\s+WHERE id = ANY").
		WithArgs(ids).
		WillReturnRows(rows)

	products, err := NewPostgresCatalog(mock).FetchByIDs(context.Background(), ids)

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, b.ID, products[0].ID)
	assert.Equal(t, a.ID, products[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_FetchByIDsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	products, err := NewPostgresCatalog(mock).FetchByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_FetchByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	catalog := NewPostgresCatalog(mock)
	product := testProduct("Runner")

	mock.ExpectQuery("SELECT .+ FROM products\\s+WHERE id = \\$1").
		WithArgs(product.ID).
		WillReturnRows(addProductRow(pgxmock.NewRows(productRowColumns), product))

	got, err := catalog.FetchByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, got.Name)

	missing := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM products\\s+WHERE id = \\$1").
		WithArgs(missing).
		WillReturnRows(pgxmock.NewRows(productRowColumns))

	_, err = catalog.FetchByID(context.Background(), missing)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
