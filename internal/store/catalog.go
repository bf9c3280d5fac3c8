package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/temcen/shoprank/pkg/models"
)

const productColumns = `
	id, name, COALESCE(description, ''), category, COALESCE(subcategory, ''), COALESCE(brand, ''),
	price, COALESCE(rating, 0), COALESCE(sales_count, 0),
	COALESCE(tags, '{}'), COALESCE(colors, '{}'), COALESCE(sizes, '{}'),
	COALESCE(material, ''), COALESCE(style, ''), COALESCE(occasion, ''),
	active, created_at, updated_at`

// PostgresCatalog reads product records from the products table.
type PostgresCatalog struct {
	db Querier
}

func NewPostgresCatalog(db Querier) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// FetchAllActive returns every active product in catalog insertion order.
func (c *PostgresCatalog) FetchAllActive(ctx context.Context) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE active = true
		ORDER BY created_at, id`

	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// FetchByIDs returns the products for ids in the order requested. Unknown
// ids are skipped.
func (c *PostgresCatalog) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)`

	rows, err := c.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by id: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(products, ids), nil
}

// FetchByID returns a single product or ErrNotFound.
func (c *PostgresCatalog) FetchByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`

	product, err := scanProduct(c.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query product %s: %w", id, err)
	}
	return product, nil
}

func collectProducts(rows pgx.Rows) ([]models.Product, error) {
	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Subcategory, &p.Brand,
		&p.Price, &p.Rating, &p.SalesCount,
		&p.Tags, &p.Colors, &p.Sizes,
		&p.Material, &p.Style, &p.Occasion,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func orderByIDs(products []models.Product, ids []uuid.UUID) []models.Product {
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	ordered := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
