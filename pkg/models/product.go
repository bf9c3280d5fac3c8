package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog record as served by the Product Catalog Store.
type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Category    string    `json:"category" db:"category"`
	Subcategory string    `json:"subcategory,omitempty" db:"subcategory"`
	Brand       string    `json:"brand,omitempty" db:"brand"`
	Price       float64   `json:"price" db:"price"`
	Rating      float64   `json:"rating" db:"rating"`           // 0-5
	SalesCount  int       `json:"sales_count" db:"sales_count"` // units sold
	Tags        []string  `json:"tags,omitempty" db:"tags"`
	Colors      []string  `json:"colors,omitempty" db:"colors"`
	Sizes       []string  `json:"sizes,omitempty" db:"sizes"`
	Material    string    `json:"material,omitempty" db:"material"`
	Style       string    `json:"style,omitempty" db:"style"`
	Occasion    string    `json:"occasion,omitempty" db:"occasion"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// OrderLineItem is a single purchased product within an order.
type OrderLineItem struct {
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	OrderedAt time.Time `json:"ordered_at" db:"ordered_at"`
}

// Order statuses carried on order events.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusPaid      = "paid"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderEvent is the payload published on the order events topic whenever an
// order changes status.
type OrderEvent struct {
	OrderID   uuid.UUID        `json:"order_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Status    string           `json:"status"`
	OrderedAt time.Time        `json:"ordered_at"`
	Items     []OrderEventItem `json:"items"`
}

type OrderEventItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

// LineItems flattens the event into order lines.
func (e OrderEvent) LineItems() []OrderLineItem {
	items := make([]OrderLineItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = OrderLineItem{
			OrderID:   e.OrderID,
			UserID:    e.UserID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			OrderedAt: e.OrderedAt,
		}
	}
	return items
}
