package personalization

import (
	"math"

	"github.com/temcen/shoprank/pkg/models"
)

// Diversify penalizes repeated categories. Walking the list in its incoming
// rank order, each item loses factor for every earlier item of the same
// category; scores floor at 0 and the list is re-sorted. The input slice is
// not modified.
func Diversify(ranked []models.RankedProduct, factor float64) []models.RankedProduct {
	out := make([]models.RankedProduct, len(ranked))
	copy(out, ranked)

	seen := make(map[string]int)
	for i := range out {
		category := out[i].Category
		penalty := float64(seen[category]) * factor
		out[i].Score = math.Max(0, out[i].Score-penalty)
		seen[category]++
	}

	sortRanked(out)
	return out
}
