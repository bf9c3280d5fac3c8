package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/config"
	"github.com/temcen/shoprank/internal/database"
	"github.com/temcen/shoprank/internal/graph"
	"github.com/temcen/shoprank/internal/messaging"
	"github.com/temcen/shoprank/internal/store"
	"github.com/temcen/shoprank/internal/validation"
)

// Services are the long-lived components of the process. Publisher,
// OrderConsumer and Graph are nil when their backend is disabled.
type Services struct {
	Engine        *Engine
	Health        *HealthService
	RateLimit     *RateLimitService
	Metrics       *Metrics
	Publisher     *messaging.EventPublisher
	OrderConsumer *messaging.OrderEventConsumer
	Graph         *graph.Writer
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	metrics := NewMetrics(reg)

	validator, err := validation.NewEmbeddedSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load event schemas: %w", err)
	}

	catalog := store.NewCachedCatalog(store.NewPostgresCatalog(db.PG), db.Redis, cfg.Redis.ProductTTL, logger)

	deps := EngineDeps{
		Catalog:      catalog,
		Events:       store.NewPostgresEventStore(db.PG),
		Orders:       store.NewPostgresOrderStore(db.PG),
		Users:        store.NewPostgresUserStore(db.PG),
		Metrics:      metrics,
		BuildTimeout: cfg.Personalization.BuildTimeout,
	}

	svcs := &Services{Metrics: metrics}

	if cfg.Kafka.Enabled {
		svcs.Publisher = messaging.NewEventPublisher(cfg, validator, logger)
		deps.Publisher = svcs.Publisher
	}

	if db.Neo4j != nil {
		svcs.Graph = graph.NewWriter(db.Neo4j, cfg.Neo4j, cfg.Personalization.Weights, logger)
		deps.Graph = svcs.Graph
	}

	svcs.Engine = NewEngine(deps, cfg.Personalization.Weights, logger)

	if cfg.Kafka.Enabled {
		svcs.OrderConsumer = messaging.NewOrderEventConsumer(cfg, validator, svcs.Engine, logger)
	}

	svcs.Health = NewHealthService(db, svcs.Engine, reg, logger)
	svcs.RateLimit = NewRateLimitService(cfg.Personalization.RateLimit, logger, db.Redis)

	return svcs, nil
}

// Stop halts background workers and closes Kafka clients.
func (s *Services) Stop() {
	s.Engine.Stop()
	if s.Graph != nil {
		s.Graph.Stop()
	}
	if s.OrderConsumer != nil {
		s.OrderConsumer.Close()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}
