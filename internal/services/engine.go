package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

// Recommendation strategies reported to callers and metrics.
const (
	StrategyPersonalized = "content_based"
	StrategyPopularity   = "popularity"
)

// ErrUnsupportedAction is returned when an event's action is not accepted by
// the recording entry point it was sent to.
var ErrUnsupportedAction = errors.New("unsupported action")

// CatalogStore is the Product Catalog Store.
type CatalogStore interface {
	FetchAllActive(ctx context.Context) ([]models.Product, error)
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FetchByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// EventStore is the Behavior Event Store.
type EventStore interface {
	Append(ctx context.Context, event *models.BehaviorEvent) error
	QueryByUser(ctx context.Context, userID uuid.UUID) ([]models.BehaviorEvent, error)
	QueryByActions(ctx context.Context, actions []string) ([]models.BehaviorEvent, error)
}

// OrderStore is the Orders Store.
type OrderStore interface {
	QueryByUser(ctx context.Context, userID uuid.UUID) ([]models.OrderLineItem, error)
}

// UserDirectory enumerates users with history.
type UserDirectory interface {
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// EventPublisher forwards recorded events downstream.
type EventPublisher interface {
	PublishBehaviorEvent(ctx context.Context, event *models.BehaviorEvent) error
}

// InteractionSink receives product interactions for mirroring elsewhere.
// Enqueue must not block.
type InteractionSink interface {
	Enqueue(event models.BehaviorEvent)
}

// EngineDeps are the collaborators of an Engine. Publisher and Graph are
// optional.
type EngineDeps struct {
	Catalog   CatalogStore
	Events    EventStore
	Orders    OrderStore
	Users     UserDirectory
	Publisher EventPublisher
	Graph     InteractionSink
	Metrics   *Metrics

	// BuildTimeout bounds a full rebuild. Zero uses defaultBuildTimeout.
	BuildTimeout time.Duration
}

const defaultBuildTimeout = 2 * time.Minute

// engineState is one consistent generation of every in-memory cache.
type engineState struct {
	products       []models.Product
	productByID    map[uuid.UUID]*models.Product
	vectors        map[uuid.UUID]*personalization.ProductVector
	vectorOrder    []*personalization.ProductVector
	profiles       map[uuid.UUID]*personalization.UserProfile
	searchProfiles map[uuid.UUID]*personalization.SearchUserProfile
	popularity     *personalization.PopularityTracker
	builtAt        time.Time
}

func (s *engineState) lookupProduct(id uuid.UUID) *models.Product {
	return s.productByID[id]
}

// EngineStatus summarizes cache state for health reporting.
type EngineStatus struct {
	Initialized    bool      `json:"initialized"`
	Products       int       `json:"products"`
	Profiles       int       `json:"profiles"`
	SearchProfiles int       `json:"search_profiles"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
}

// Engine owns the personalization caches and serves recommendations,
// search ranking and suggestions from them. Full rebuilds produce a new
// state off-lock and swap it in; incremental updates hold the write lock.
type Engine struct {
	catalog   CatalogStore
	events    EventStore
	orders    OrderStore
	users     UserDirectory
	publisher EventPublisher
	graph     InteractionSink
	metrics   *Metrics
	logger    *logrus.Logger

	weights   personalization.Weights
	builder   *personalization.ProfileBuilder
	scorer    *personalization.Scorer
	ranker    *personalization.Ranker
	suggester *personalization.Suggester

	mu          sync.RWMutex
	state       *engineState
	initialized atomic.Bool
	group       singleflight.Group

	buildTimeout time.Duration

	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEngine(deps EngineDeps, weights personalization.Weights, logger *logrus.Logger) *Engine {
	buildTimeout := deps.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = defaultBuildTimeout
	}
	return &Engine{
		catalog:   deps.Catalog,
		events:    deps.Events,
		orders:    deps.Orders,
		users:     deps.Users,
		publisher: deps.Publisher,
		graph:     deps.Graph,
		metrics:   deps.Metrics,
		logger:    logger,
		weights:   weights,
		builder:   personalization.NewProfileBuilder(weights),
		scorer:    personalization.NewScorer(weights),
		ranker:    personalization.NewRanker(weights),
		suggester: personalization.NewSuggester(weights),

		buildTimeout: buildTimeout,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Initialized reports whether the caches have been built.
func (e *Engine) Initialized() bool {
	return e.initialized.Load()
}

// Initialize builds every cache from the stores. It is idempotent and
// concurrent callers share a single rebuild. On failure the engine stays
// uninitialized and the next call retries.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized.Load() {
		return nil
	}
	_, err, _ := e.group.Do("initialize", func() (interface{}, error) {
		if e.initialized.Load() {
			return nil, nil
		}
		return nil, e.sharedRebuild(ctx)
	})
	return err
}

// Refresh forces a full rebuild even when already initialized. The current
// caches keep serving until the new generation is ready.
func (e *Engine) Refresh(ctx context.Context) error {
	_, err, _ := e.group.Do("refresh", func() (interface{}, error) {
		return nil, e.sharedRebuild(ctx)
	})
	return err
}

// sharedRebuild ignores the starting caller's cancellation; singleflight
// waiters share its result.
func (e *Engine) sharedRebuild(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.buildTimeout)
	defer cancel()
	return e.rebuild(ctx)
}

func (e *Engine) rebuild(ctx context.Context) error {
	start := time.Now()

	state, err := e.build(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.initializeFailures.Inc()
		}
		e.logger.WithError(err).Error("Failed to build personalization caches")
		return err
	}

	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	e.initialized.Store(true)

	if e.metrics != nil {
		e.metrics.initializeDuration.Observe(time.Since(start).Seconds())
		e.metrics.observeCacheSizes(state)
	}

	e.logger.WithFields(logrus.Fields{
		"products":        len(state.products),
		"profiles":        len(state.profiles),
		"search_profiles": len(state.searchProfiles),
		"duration":        time.Since(start),
	}).Info("Personalization caches built")

	return nil
}

func (e *Engine) build(ctx context.Context) (*engineState, error) {
	products, err := e.catalog.FetchAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	state := &engineState{
		products:       products,
		productByID:    make(map[uuid.UUID]*models.Product, len(products)),
		vectors:        personalization.BuildVectors(products),
		vectorOrder:    make([]*personalization.ProductVector, 0, len(products)),
		profiles:       make(map[uuid.UUID]*personalization.UserProfile),
		searchProfiles: make(map[uuid.UUID]*personalization.SearchUserProfile),
		popularity:     personalization.NewPopularityTracker(),
		builtAt:        e.now(),
	}
	for i := range products {
		state.productByID[products[i].ID] = &products[i]
		if v, ok := state.vectors[products[i].ID]; ok {
			state.vectorOrder = append(state.vectorOrder, v)
		}
	}

	state.popularity.Seed(products)
	searchEvents, err := e.events.QueryByActions(ctx, models.SearchActions)
	if err != nil {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}
	for i := range searchEvents {
		event := &searchEvents[i]
		state.popularity.Record(event)
		personalization.ApplySearchEvent(state.searchProfileFor(event.UserID), event, state.lookupProduct)
	}

	userIDs, err := e.users.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for _, userID := range userIDs {
		profile, err := e.buildProfile(ctx, state, userID)
		if err != nil {
			return nil, err
		}
		state.profiles[userID] = profile
	}

	return state, nil
}

// buildProfile replays a user's order lines and behavior events, then
// normalizes once.
func (e *Engine) buildProfile(ctx context.Context, state *engineState, userID uuid.UUID) (*personalization.UserProfile, error) {
	profile := personalization.NewUserProfile(userID)

	items, err := e.orders.QueryByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for user %s: %w", userID, err)
	}
	for _, item := range items {
		e.builder.ApplyInteraction(profile, state.vectors[item.ProductID], models.ActionPurchase, float64(item.Quantity))
	}

	events, err := e.events.QueryByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for user %s: %w", userID, err)
	}
	for _, event := range events {
		if event.ProductID == nil {
			continue
		}
		e.builder.ApplyInteraction(profile, state.vectors[*event.ProductID], event.Action, 1)
	}

	personalization.Normalize(profile)
	return profile, nil
}

func (s *engineState) searchProfileFor(userID uuid.UUID) *personalization.SearchUserProfile {
	profile, ok := s.searchProfiles[userID]
	if !ok {
		profile = personalization.NewSearchUserProfile(userID)
		s.searchProfiles[userID] = profile
	}
	return profile
}

// ensureInitialized lazily retries initialization and reports whether the
// caches are usable.
func (e *Engine) ensureInitialized(ctx context.Context) bool {
	if e.initialized.Load() {
		return true
	}
	if err := e.Initialize(ctx); err != nil {
		e.logger.WithError(err).Warn("Personalization unavailable, serving popularity fallback")
		return false
	}
	return true
}

// StartRefresher rebuilds the caches every interval until Stop is called.
// A non-positive interval disables it.
func (e *Engine) StartRefresher(interval time.Duration) {
	if interval <= 0 {
		return
	}
	e.wg.Add(1)
	go e.refreshWorker(interval)
}

func (e *Engine) refreshWorker(interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := e.Refresh(ctx); err != nil {
				e.logger.WithError(err).Warn("Scheduled refresh failed")
			}
			cancel()
		case <-e.stopChan:
			return
		}
	}
}

// Stop halts the background refresher.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
}

// Status reports cache sizes for health checks.
func (e *Engine) Status() EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := EngineStatus{Initialized: e.initialized.Load()}
	if e.state != nil {
		status.Products = len(e.state.products)
		status.Profiles = len(e.state.profiles)
		status.SearchProfiles = len(e.state.searchProfiles)
		status.BuiltAt = e.state.builtAt
	}
	return status
}
