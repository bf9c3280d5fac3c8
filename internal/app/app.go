package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/config"
	"github.com/temcen/shoprank/internal/database"
	"github.com/temcen/shoprank/internal/handlers"
	"github.com/temcen/shoprank/internal/middleware"
	"github.com/temcen/shoprank/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	svcs, err := services.New(cfg, app.logger, db, prometheus.DefaultRegisterer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svcs

	app.handlers = handlers.New(app.logger, svcs, handlers.LimitsFromConfig(cfg.Personalization))

	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches the background workers: cache warm-up and periodic
// refresh, the Neo4j edge writer and the order event consumer.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	engine := a.services.Engine

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		warmCtx, warmCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer warmCancel()
		if err := engine.Initialize(warmCtx); err != nil {
			a.logger.WithError(err).Warn("Initial cache build failed, serving popularity fallback until the next attempt")
		}
	}()

	engine.StartRefresher(a.config.Personalization.RefreshInterval)

	if a.services.Graph != nil {
		a.services.Graph.Start()
	}

	if consumer := a.services.OrderConsumer; consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).Error("Order event consumer stopped")
			}
		}()
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Timed out waiting for background workers")
	}

	a.services.Stop()

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.Metrics(a.services.Metrics))
	router.Use(middleware.CORS(a.config.Security.CORS))

	router.GET("/health", a.handlers.Health.Check)

	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	rateLimit := middleware.RateLimit(a.services.RateLimit, a.logger)
	similarCache := middleware.ResponseCache(a.db.Redis, "similar", a.config.Personalization.SimilarCacheTTL, a.logger)

	api := router.Group("/api/v1")
	{
		api.GET("/recommendations/:userId", a.handlers.Recommendation.Get)
		api.GET("/products/:productId/similar", similarCache, a.handlers.Recommendation.Similar)

		search := api.Group("/search")
		{
			search.GET("", a.handlers.Search.Search)
			search.POST("/rank", a.handlers.Search.Rank)
			search.GET("/suggestions", a.handlers.Search.Suggestions)
			search.POST("/interactions", rateLimit, a.handlers.Interaction.RecordSearch)
		}

		api.POST("/interactions", rateLimit, a.handlers.Interaction.Record)

		api.GET("/users/:userId/profile", a.handlers.User.Profile)

		admin := api.Group("/admin")
		{
			admin.POST("/refresh", a.handlers.Admin.Refresh)
		}
	}

	a.router = router
}
