package personalization

import (
	"sort"
	"strings"

	"github.com/temcen/shoprank/pkg/models"
)

// Suggestion sources.
const (
	SourceHistory = "history"
	SourcePopular = "popular"
	SourceCatalog = "catalog"
)

// Suggester completes partial queries from personal history, global search
// terms and the live catalog.
type Suggester struct {
	weights SuggestionWeights
}

func NewSuggester(weights Weights) *Suggester {
	return &Suggester{weights: weights.Suggestion}
}

// Suggest merges matches from every source, keeps the best score per term,
// and returns at most limit suggestions ordered by score. history and popular
// may be nil.
func (s *Suggester) Suggest(query string, history *SearchUserProfile, popular map[string]int, products []models.Product, limit int) []models.Suggestion {
	q := NormalizeTerm(query)
	if q == "" || limit <= 0 {
		return []models.Suggestion{}
	}

	best := make(map[string]models.Suggestion)
	offer := func(term string, score float64, source string) {
		if current, ok := best[term]; ok && current.Score >= score {
			return
		}
		best[term] = models.Suggestion{Term: term, Score: score, Source: source}
	}

	if history != nil {
		for term, count := range history.SearchTerms {
			if strings.Contains(term, q) {
				offer(term, s.weights.HistoryBase+float64(count), SourceHistory)
			}
		}
	}

	for term, count := range popular {
		if strings.Contains(term, q) {
			offer(term, float64(count)*s.weights.PopularScale, SourcePopular)
		}
	}

	for _, p := range products {
		if !p.Active {
			continue
		}
		if name := NormalizeTerm(p.Name); strings.Contains(name, q) {
			offer(name, s.weights.Catalog, SourceCatalog)
		}
		if category := NormalizeTerm(p.Category); strings.Contains(category, q) {
			offer(category, s.weights.Catalog, SourceCatalog)
		}
	}

	suggestions := make([]models.Suggestion, 0, len(best))
	for _, suggestion := range best {
		suggestions = append(suggestions, suggestion)
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Term < suggestions[j].Term
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}
