package personalization

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/temcen/shoprank/pkg/models"
)

// ProductSearchStats are the search-driven counters kept per product.
// A zero LastSearched means the product was never clicked from search.
type ProductSearchStats struct {
	ClickCount    int            `json:"click_count"`
	PurchaseCount int            `json:"purchase_count"`
	LastSearched  time.Time      `json:"last_searched"`
	SearchTerms   map[string]int `json:"search_terms"`
}

// PopularityTracker aggregates search activity across all users. It is not
// safe for concurrent use; the owner serializes access.
type PopularityTracker struct {
	products map[uuid.UUID]*ProductSearchStats
	terms    map[string]int
}

func NewPopularityTracker() *PopularityTracker {
	return &PopularityTracker{
		products: make(map[uuid.UUID]*ProductSearchStats),
		terms:    make(map[string]int),
	}
}

// Seed registers an empty stats entry for every active product.
func (t *PopularityTracker) Seed(products []models.Product) {
	for _, p := range products {
		if p.Active {
			t.ensure(p.ID)
		}
	}
}

// Record applies one search event. Events with other actions are ignored.
func (t *PopularityTracker) Record(event *models.BehaviorEvent) {
	term := NormalizeTerm(event.Metadata.SearchTerm)

	switch event.Action {
	case models.ActionSearch:
		if term != "" {
			t.terms[term]++
		}
	case models.ActionSearchClick:
		if event.ProductID == nil {
			return
		}
		stats := t.ensure(*event.ProductID)
		stats.ClickCount++
		stats.LastSearched = event.Timestamp
		if term != "" {
			stats.SearchTerms[term]++
		}
	case models.ActionSearchPurchase:
		if event.ProductID == nil {
			return
		}
		t.ensure(*event.ProductID).PurchaseCount++
	}
}

// Stats returns the counters for a product, or nil when none exist.
func (t *PopularityTracker) Stats(productID uuid.UUID) *ProductSearchStats {
	return t.products[productID]
}

// Terms exposes the global search-term counts. Callers must not mutate it.
func (t *PopularityTracker) Terms() map[string]int {
	return t.terms
}

// Len is the number of products with a stats entry.
func (t *PopularityTracker) Len() int {
	return len(t.products)
}

func (t *PopularityTracker) ensure(productID uuid.UUID) *ProductSearchStats {
	stats, ok := t.products[productID]
	if !ok {
		stats = &ProductSearchStats{SearchTerms: make(map[string]int)}
		t.products[productID] = stats
	}
	return stats
}

// NormalizeTerm is the canonical key for a search term.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
