package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

type fakeCatalog struct {
	mu            sync.Mutex
	products      []models.Product
	err           error
	fetchAllCalls atomic.Int32
}

func (f *fakeCatalog) FetchAllActive(ctx context.Context) ([]models.Product, error) {
	f.fetchAllCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.products), nil
}

func (f *fakeCatalog) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		for _, p := range f.products {
			if p.ID == id {
				result = append(result, p)
			}
		}
	}
	return result, nil
}

func (f *fakeCatalog) FetchByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	products, err := f.FetchByIDs(ctx, []uuid.UUID{id})
	if err != nil || len(products) == 0 {
		return nil, errors.New("not found")
	}
	return &products[0], nil
}

type fakeEvents struct {
	mu        sync.Mutex
	events    []models.BehaviorEvent
	appendErr error
}

func (f *fakeEvents) Append(ctx context.Context, event *models.BehaviorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEvents) QueryByUser(ctx context.Context, userID uuid.UUID) ([]models.BehaviorEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.BehaviorEvent
	for _, e := range f.events {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeEvents) QueryByActions(ctx context.Context, actions []string) ([]models.BehaviorEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.BehaviorEvent
	for _, e := range f.events {
		if slices.Contains(actions, e.Action) {
			result = append(result, e)
		}
	}
	return result, nil
}

type fakeOrders struct {
	items map[uuid.UUID][]models.OrderLineItem
}

func (f *fakeOrders) QueryByUser(ctx context.Context, userID uuid.UUID) ([]models.OrderLineItem, error) {
	return f.items[userID], nil
}

type fakeUsers struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (f *fakeUsers) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

func (f *fakeUsers) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.BehaviorEvent
	err       error
}

func (f *fakePublisher) PublishBehaviorEvent(ctx context.Context, event *models.BehaviorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, *event)
	return f.err
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.BehaviorEvent
}

func (f *fakeSink) Enqueue(event models.BehaviorEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type engineFixture struct {
	engine    *Engine
	catalog   *fakeCatalog
	events    *fakeEvents
	orders    *fakeOrders
	users     *fakeUsers
	publisher *fakePublisher
	sink      *fakeSink
	metrics   *Metrics

	alice uuid.UUID
	bob   uuid.UUID

	runner models.Product
	trail  models.Product
	boot   models.Product
	tote   models.Product
	dress  models.Product
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &engineFixture{
		alice: uuid.New(),
		bob:   uuid.New(),
		runner: models.Product{
			ID: uuid.New(), Name: "Stride Runner", Description: "Lightweight road shoe",
			Category: "shoes", Subcategory: "running", Brand: "Stride", Price: 80, Rating: 4.5,
			SalesCount: 50, Tags: []string{"running", "lightweight"}, Colors: []string{"blue"},
			Active: true, CreatedAt: created,
		},
		trail: models.Product{
			ID: uuid.New(), Name: "Stride Trail Runner", Description: "Grippy trail shoe",
			Category: "shoes", Subcategory: "running", Brand: "Stride", Price: 90, Rating: 4.2,
			SalesCount: 30, Tags: []string{"running", "trail"}, Colors: []string{"blue"},
			Active: true, CreatedAt: created,
		},
		boot: models.Product{
			ID: uuid.New(), Name: "Peak Hiker", Description: "Waterproof hiking boot",
			Category: "shoes", Subcategory: "hiking", Brand: "Peak", Price: 150, Rating: 4.0,
			SalesCount: 80, Tags: []string{"hiking"}, Active: true, CreatedAt: created,
		},
		tote: models.Product{
			ID: uuid.New(), Name: "Canvas Tote", Description: "Everyday carry bag",
			Category: "bags", Subcategory: "totes", Brand: "Carry", Price: 40, Rating: 4.8,
			SalesCount: 120, Tags: []string{"canvas"}, Active: true, CreatedAt: created,
		},
		dress: models.Product{
			ID: uuid.New(), Name: "Summer Dress", Description: "Linen midi dress",
			Category: "apparel", Subcategory: "dresses", Brand: "Luna", Price: 60, Rating: 3.9,
			SalesCount: 10, Tags: []string{"linen"}, Active: true, CreatedAt: created,
		},
	}

	f.catalog = &fakeCatalog{products: []models.Product{f.runner, f.trail, f.boot, f.tote, f.dress}}
	f.events = &fakeEvents{}
	f.orders = &fakeOrders{items: map[uuid.UUID][]models.OrderLineItem{
		f.alice: {{OrderID: uuid.New(), UserID: f.alice, ProductID: f.runner.ID, Quantity: 1, UnitPrice: 80}},
	}}
	f.users = &fakeUsers{ids: []uuid.UUID{f.alice}}
	f.publisher = &fakePublisher{}
	f.sink = &fakeSink{}
	f.metrics = NewMetrics(prometheus.NewRegistry())

	f.engine = NewEngine(EngineDeps{
		Catalog:   f.catalog,
		Events:    f.events,
		Orders:    f.orders,
		Users:     f.users,
		Publisher: f.publisher,
		Graph:     f.sink,
		Metrics:   f.metrics,
	}, personalization.DefaultWeights(), testLogger())

	return f
}

func productIDs(products []models.Product) []uuid.UUID {
	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func TestEngine_Initialize(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.engine.Initialize(context.Background()))

	status := f.engine.Status()
	assert.True(t, status.Initialized)
	assert.Equal(t, 5, status.Products)
	assert.Equal(t, 1, status.Profiles)
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.cacheEntries.WithLabelValues("vectors")))

	// idempotent
	require.NoError(t, f.engine.Initialize(context.Background()))
	assert.Equal(t, int32(1), f.catalog.fetchAllCalls.Load())
}

func TestEngine_InitializeConcurrentCallersShareOneBuild(t *testing.T) {
	f := newEngineFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.catalog.fetchAllCalls.Load())
}

func TestEngine_InitializeSurvivesCallerCancellation(t *testing.T) {
	f := newEngineFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.engine.Initialize(ctx))
	assert.True(t, f.engine.Initialized())

	require.NoError(t, f.engine.Refresh(ctx))
	assert.Equal(t, int32(2), f.catalog.fetchAllCalls.Load())
}

func TestEngine_InitializeFailureRetriesLazily(t *testing.T) {
	f := newEngineFixture(t)
	f.users.setErr(errors.New("connection refused"))

	err := f.engine.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, f.engine.Initialized())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.initializeFailures))

	// degraded: popularity from the live catalog
	resp, err := f.engine.Recommend(context.Background(), f.alice, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyPopularity, resp.Strategy)
	assert.False(t, f.engine.Initialized())

	f.users.setErr(nil)

	resp, err = f.engine.Recommend(context.Background(), f.alice, 2, nil)
	require.NoError(t, err)
	assert.True(t, f.engine.Initialized())
	assert.Equal(t, StrategyPersonalized, resp.Strategy)
}

func TestEngine_RecommendFallbackMatchesPopularityOrder(t *testing.T) {
	f := newEngineFixture(t)
	exclude := []uuid.UUID{f.tote.ID}

	resp, err := f.engine.Recommend(context.Background(), f.bob, 3, exclude)
	require.NoError(t, err)

	expected := personalization.PopularityOrder(f.catalog.products, map[uuid.UUID]struct{}{f.tote.ID: {}}, 3)

	assert.Equal(t, StrategyPopularity, resp.Strategy)
	require.Len(t, resp.Recommendations, 3)
	for i, rec := range resp.Recommendations {
		assert.Equal(t, expected[i].ID, rec.ID)
		assert.Equal(t, 0.0, rec.Score)
		assert.Equal(t, StrategyPopularity, rec.Algorithm)
		assert.Equal(t, i+1, rec.Position)
	}
	assert.Equal(t, f.boot.ID, resp.Recommendations[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.recommendations.WithLabelValues(StrategyPopularity)))
}

func TestEngine_RecommendPersonalized(t *testing.T) {
	f := newEngineFixture(t)

	resp, err := f.engine.Recommend(context.Background(), f.alice, 3, []uuid.UUID{f.runner.ID})
	require.NoError(t, err)

	assert.Equal(t, StrategyPersonalized, resp.Strategy)
	require.Len(t, resp.Recommendations, 3)
	assert.Equal(t, f.trail.ID, resp.Recommendations[0].ID)
	for i, rec := range resp.Recommendations {
		assert.NotEqual(t, f.runner.ID, rec.ID)
		assert.GreaterOrEqual(t, rec.Score, 0.0)
		assert.LessOrEqual(t, rec.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, rec.Score, resp.Recommendations[i-1].Score)
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.recommendations.WithLabelValues(StrategyPersonalized)))
}

func TestEngine_SimilarProducts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	similar, err := f.engine.SimilarProducts(ctx, f.runner.ID, 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, f.trail.ID, similar[0].ID)
	assert.NotContains(t, productIDs(similar), f.runner.ID)

	unknown, err := f.engine.SimilarProducts(ctx, uuid.New(), 2)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestEngine_Rank(t *testing.T) {
	f := newEngineFixture(t)

	ranked, err := f.engine.Rank(context.Background(), "trail runner",
		[]uuid.UUID{f.dress.ID, f.trail.ID, f.runner.ID, f.tote.ID}, nil, RankOptions{})
	require.NoError(t, err)

	require.Len(t, ranked, 4)
	assert.Equal(t, f.trail.ID, ranked[0].ID)
	assert.Greater(t, ranked[0].Breakdown.TextRelevance, 0.0)
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i].Score, ranked[i-1].Score)
	}
}

func TestEngine_SearchCatalog(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	results, err := f.engine.SearchCatalog(ctx, "tote", nil, 10, RankOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, f.tote.ID, results[0].ID)

	results, err = f.engine.SearchCatalog(ctx, "stride", nil, 1, RankOptions{Diversify: true})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = f.engine.SearchCatalog(ctx, "tote", nil, -1, RankOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_RecordInteraction(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Initialize(ctx))

	event, err := f.engine.RecordInteraction(ctx, f.alice, &f.tote.ID, models.ActionLike, models.EventMetadata{})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.ActionLike, event.Action)

	profile, ok := f.engine.Profile(ctx, f.alice)
	require.True(t, ok)
	assert.Greater(t, profile.Categories["bags"], 0.0)
	assert.InDelta(t, 1.0, profile.Categories["bags"]+profile.Categories["shoes"], 1e-9)

	assert.Len(t, f.events.events, 1)
	assert.Len(t, f.publisher.published, 1)
	assert.Len(t, f.sink.events, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.eventsRecorded.WithLabelValues(models.ActionLike)))
}

func TestEngine_RecordInteractionRejectsUnknownAction(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.RecordInteraction(context.Background(), f.alice, &f.tote.ID, "wishlist", models.EventMetadata{})
	assert.ErrorIs(t, err, ErrUnsupportedAction)

	_, err = f.engine.RecordSearchInteraction(context.Background(), f.alice, "tote", models.ActionView, nil, models.EventMetadata{})
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	assert.Empty(t, f.events.events)
}

func TestEngine_RecordInteractionSwallowsPersistenceFailure(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Initialize(ctx))

	f.events.appendErr = errors.New("disk full")
	f.publisher.err = errors.New("broker down")

	_, err := f.engine.RecordInteraction(ctx, f.alice, &f.dress.ID, models.ActionAddToCart, models.EventMetadata{})
	require.NoError(t, err)

	profile, ok := f.engine.Profile(ctx, f.alice)
	require.True(t, ok)
	assert.Greater(t, profile.Categories["apparel"], 0.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.persistenceFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.publishFailures))
}

func TestEngine_RecordInteractionForUnknownUserLeavesNoProfile(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.RecordInteraction(ctx, f.bob, &f.tote.ID, models.ActionView, models.EventMetadata{})
	require.NoError(t, err)

	_, ok := f.engine.Profile(ctx, f.bob)
	assert.False(t, ok)

	// picked up from the event store on the next rebuild
	f.users.ids = append(f.users.ids, f.bob)
	require.NoError(t, f.engine.Refresh(ctx))

	profile, ok := f.engine.Profile(ctx, f.bob)
	require.True(t, ok)
	assert.InDelta(t, 1.0, profile.Categories["bags"], 1e-9)
	assert.Equal(t, 1, profile.TotalViews)
}

func TestEngine_RecordSearchInteraction(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	event, err := f.engine.RecordSearchInteraction(ctx, f.bob, "running shoes", models.ActionSearch, nil, models.EventMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "running shoes", event.Metadata.SearchTerm)

	_, err = f.engine.RecordSearchInteraction(ctx, f.bob, "running shoes", models.ActionSearchClick, &f.trail.ID, models.EventMetadata{})
	require.NoError(t, err)

	profile, ok := f.engine.SearchProfile(ctx, f.bob)
	require.True(t, ok)
	assert.Equal(t, 1, profile.TotalSearches)
	assert.Equal(t, 1, profile.TotalClicks)
	assert.Equal(t, 1, profile.ClickedBrands["Stride"])
	assert.InDelta(t, 90.0, profile.AvgPriceClicked, 1e-9)

	// no product means no graph edge
	assert.Len(t, f.sink.events, 1)

	suggestions, err := f.engine.Suggestions(ctx, "run", &f.bob, 5)
	require.NoError(t, err)
	terms := make([]string, len(suggestions))
	for i, s := range suggestions {
		terms[i] = s.Term
	}
	assert.Contains(t, terms, "running shoes")
	assert.Contains(t, terms, "stride runner")
}

func TestEngine_SearchHistoryReplayedOnInitialize(t *testing.T) {
	f := newEngineFixture(t)
	f.events.events = []models.BehaviorEvent{
		{ID: uuid.New(), UserID: f.bob, Action: models.ActionSearch, Metadata: models.EventMetadata{SearchTerm: "tote"}},
		{ID: uuid.New(), UserID: f.bob, ProductID: &f.tote.ID, Action: models.ActionSearchClick, Metadata: models.EventMetadata{SearchTerm: "tote"}},
	}

	require.NoError(t, f.engine.Initialize(context.Background()))

	profile, ok := f.engine.SearchProfile(context.Background(), f.bob)
	require.True(t, ok)
	assert.Equal(t, 1, profile.SearchTerms["tote"])
	assert.Equal(t, 1, profile.ClickedCategories["bags"])
}

func TestEngine_ApplyPurchase(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.Initialize(context.Background()))

	f.engine.ApplyPurchase(models.OrderLineItem{UserID: f.alice, ProductID: f.dress.ID, Quantity: 3})

	profile, ok := f.engine.Profile(context.Background(), f.alice)
	require.True(t, ok)
	// shoes already normalized to 1, apparel adds 5 x 3
	assert.InDelta(t, 15.0/16, profile.Categories["apparel"], 1e-9)
	assert.InDelta(t, 1.0/16, profile.Categories["shoes"], 1e-9)
	assert.Equal(t, 4, profile.TotalPurchases)

	// unknown product is ignored
	f.engine.ApplyPurchase(models.OrderLineItem{UserID: f.alice, ProductID: uuid.New(), Quantity: 1})
	after, _ := f.engine.Profile(context.Background(), f.alice)
	assert.Equal(t, profile.Categories, after.Categories)
}

func TestEngine_RefreshPicksUpCatalogChanges(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Initialize(ctx))

	scarf := models.Product{ID: uuid.New(), Name: "Wool Scarf", Category: "accessories", Price: 30, Active: true}
	f.catalog.mu.Lock()
	f.catalog.products = append(f.catalog.products, scarf)
	f.catalog.mu.Unlock()

	require.NoError(t, f.engine.Refresh(ctx))
	assert.Equal(t, 6, f.engine.Status().Products)

	results, err := f.engine.SearchCatalog(ctx, "scarf", nil, 5, RankOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, scarf.ID, results[0].ID)
}

func TestEngine_RefresherStops(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.StartRefresher(5 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return f.engine.Initialized()
	}, time.Second, 5*time.Millisecond)

	f.engine.Stop()
	f.engine.Stop()
}

func TestEngine_ApplyOrder(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	order := models.OrderEvent{
		OrderID: uuid.New(),
		UserID:  f.alice,
		Status:  models.OrderStatusPlaced,
		Items:   []models.OrderEventItem{{ProductID: f.tote.ID, Quantity: 1}},
	}

	// first order only triggers the build
	require.NoError(t, f.engine.ApplyOrder(ctx, order))
	assert.True(t, f.engine.Initialized())
	profile, _ := f.engine.Profile(ctx, f.alice)
	assert.Zero(t, profile.Categories["bags"])

	require.NoError(t, f.engine.ApplyOrder(ctx, order))
	profile, _ = f.engine.Profile(ctx, f.alice)
	assert.InDelta(t, 5.0/6, profile.Categories["bags"], 1e-9)

	order.Status = models.OrderStatusCancelled
	require.NoError(t, f.engine.ApplyOrder(ctx, order))
	after, _ := f.engine.Profile(ctx, f.alice)
	assert.Equal(t, profile.Categories, after.Categories)
}

func TestEngine_ApplyOrderFailsWhileStoresAreDown(t *testing.T) {
	f := newEngineFixture(t)
	f.users.setErr(errors.New("timeout"))

	err := f.engine.ApplyOrder(context.Background(), models.OrderEvent{UserID: f.alice, Status: models.OrderStatusPlaced})
	assert.Error(t, err)
}
