package personalization

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/temcen/shoprank/pkg/models"
)

var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}]`)

// RankOptions control the post-processing of a ranked list.
type RankOptions struct {
	Diversify       bool
	DiversifyFactor float64
}

// Ranker scores search candidates against a query and an optional search
// profile.
type Ranker struct {
	weights Weights
	now     func() time.Time
}

func NewRanker(weights Weights) *Ranker {
	return &Ranker{weights: weights, now: time.Now}
}

// Rank scores every candidate, sorts descending and optionally diversifies.
// profile and stats may be nil.
func (r *Ranker) Rank(query string, candidates []models.Product, profile *SearchUserProfile, stats *PopularityTracker, opts RankOptions) []models.RankedProduct {
	terms := Tokenize(query, r.weights.Text.MinTermLength)
	now := r.now()
	w := r.weights.Rank

	results := make([]models.RankedProduct, 0, len(candidates))
	for i := range candidates {
		product := &candidates[i]

		var productStats *ProductSearchStats
		if stats != nil {
			productStats = stats.Stats(product.ID)
		}

		preference := w.NeutralPreference
		if profile != nil {
			preference = r.UserPreference(product, profile)
		}

		breakdown := models.ScoreBreakdown{
			TextRelevance:  w.TextRelevance * r.TextRelevance(product, terms),
			UserPreference: w.UserPreference * preference,
			Popularity:     w.Popularity * r.Popularity(product, productStats),
			Recency:        w.Recency * r.Recency(product, productStats, now),
			Rating:         w.Rating * (product.Rating / 5),
		}
		score := breakdown.TextRelevance + breakdown.UserPreference + breakdown.Popularity +
			breakdown.Recency + breakdown.Rating

		results = append(results, models.RankedProduct{
			Product:   *product,
			Score:     clamp01(score),
			Breakdown: breakdown,
		})
	}

	sortRanked(results)

	if opts.Diversify {
		results = Diversify(results, opts.DiversifyFactor)
	}
	return results
}

// TextRelevance sums per-term field matches and clamps the total to 1.
func (r *Ranker) TextRelevance(product *models.Product, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	w := r.weights.Text

	name := strings.ToLower(product.Name)
	description := strings.ToLower(product.Description)
	category := strings.ToLower(product.Category)
	brand := strings.ToLower(product.Brand)
	tags := make([]string, len(product.Tags))
	for i, tag := range product.Tags {
		tags[i] = strings.ToLower(tag)
	}
	words := strings.Fields(strings.Join(append([]string{name, description, category, brand}, tags...), " "))

	var relevance float64
	for _, term := range terms {
		if strings.Contains(name, term) {
			relevance += w.Name
		}
		if strings.Contains(description, term) {
			relevance += w.Description
		}
		if strings.Contains(category, term) {
			relevance += w.Category
		}
		for _, tag := range tags {
			if strings.Contains(tag, term) {
				relevance += w.Tag
				break
			}
		}
		if brand != "" && strings.Contains(brand, term) {
			relevance += w.Brand
		}
		if approximateMatch(term, words, w.PrefixRatio) {
			relevance += w.Approximate
		}
	}

	return math.Min(relevance, 1)
}

// UserPreference rates how closely product matches the user's click history.
func (r *Ranker) UserPreference(product *models.Product, profile *SearchUserProfile) float64 {
	w := r.weights.Preference

	avg := profile.AvgPriceClicked
	denominator := avg
	if denominator == 0 {
		denominator = 1
	}
	priceScore := math.Max(0, 1-math.Abs(product.Price-avg)/denominator)

	return w.Category*profile.CategoryShare(product.Category) +
		w.Brand*profile.BrandShare(product.Brand) +
		w.Price*priceScore
}

// Popularity blends search clicks, search purchases and units sold.
func (r *Ranker) Popularity(product *models.Product, stats *ProductSearchStats) float64 {
	w := r.weights.Popularity

	var clicks, purchases float64
	if stats != nil {
		clicks = float64(stats.ClickCount)
		purchases = float64(stats.PurchaseCount)
	}

	return w.Clicks*capRatio(clicks, w.ClickCap) +
		w.Purchases*capRatio(purchases, w.PurchaseCap) +
		w.Sales*capRatio(float64(product.SalesCount), w.SalesCap)
}

// Recency favours new products and products recently clicked from search.
func (r *Ranker) Recency(product *models.Product, stats *ProductSearchStats, now time.Time) float64 {
	w := r.weights.Recency

	var ageScore float64
	if !product.CreatedAt.IsZero() && w.AgeHorizonDays > 0 {
		ageDays := now.Sub(product.CreatedAt).Hours() / 24
		ageScore = clamp01(1 - ageDays/w.AgeHorizonDays)
	}

	var searchScore float64
	if stats != nil && !stats.LastSearched.IsZero() && w.SearchHorizonDays > 0 {
		sinceDays := now.Sub(stats.LastSearched).Hours() / 24
		searchScore = clamp01(1 - sinceDays/w.SearchHorizonDays)
	}

	return w.Age*ageScore + w.LastSearched*searchScore
}

// Tokenize lower-cases and NFKC-normalizes query, strips punctuation from
// each whitespace-delimited token and keeps tokens of at least minLength
// runes.
func Tokenize(query string, minLength int) []string {
	fields := strings.Fields(strings.ToLower(norm.NFKC.String(query)))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		term := nonWordRegex.ReplaceAllString(field, "")
		if utf8.RuneCountInString(term) >= minLength {
			terms = append(terms, term)
		}
	}
	return terms
}

// approximateMatch reports whether the leading ceil(ratio*len) runes of term
// occur inside any of words.
func approximateMatch(term string, words []string, ratio float64) bool {
	runes := []rune(term)
	prefixLen := int(math.Ceil(ratio * float64(len(runes))))
	if prefixLen <= 0 {
		return false
	}
	if prefixLen > len(runes) {
		prefixLen = len(runes)
	}
	prefix := string(runes[:prefixLen])
	for _, word := range words {
		if strings.Contains(word, prefix) {
			return true
		}
	}
	return false
}

func sortRanked(results []models.RankedProduct) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
