package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/cache"
	"example.com/backstage/services/yard/internal/db"
	"example.com/backstage/services/yard/internal/elasticsearch"
	"example.com/backstage/services/yard/internal/messagebus"
	"example.com/backstage/services/yard/internal/repository"
	"example.com/backstage/services/yard/internal/retry"
	"example.com/backstage/services/yard/internal/service"
	"example.com/backstage/services/yard/internal/settings"
	"example.com/backstage/services/yard/internal/telemetry"
)

// components holds everything a command needs to drive the journey service
type components struct {
	cfg      *config.Config
	logger   *logrus.Logger
	db       *gorm.DB
	bus      messagebus.Client
	nrApp    *newrelic.Application
	journeys service.JourneyService
}

// bootstrap connects the store and the optional collaborators. The message
// bus, Elasticsearch and New Relic are skipped when disabled; Elasticsearch
// and New Relic failures are logged and the service runs without them.
func bootstrap(cfg *config.Config, logger *logrus.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: logger}

	var err error
	c.nrApp, err = telemetry.InitNewRelic(cfg.NewRelic)
	if err != nil {
		logger.Warnf("Failed to initialize New Relic: %v", err)
	}

	c.db, err = db.Connect(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(c.db); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	cacheClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	provider, err := settings.NewStatic(cfg.Yard)
	if err != nil {
		return nil, fmt.Errorf("failed to load yard settings: %w", err)
	}

	repo := repository.NewJourneyRepository(c.db, retry.Policy{
		MaxAttempts: cfg.Store.MaxAttempts,
		BaseBackoff: cfg.Store.BaseBackoff,
		MaxBackoff:  cfg.Store.MaxBackoff,
	})

	var opts []service.Option
	if cfg.MessageBus.Enabled {
		c.bus, err = messagebus.NewClient(&cfg.MessageBus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize message bus: %w", err)
		}
		opts = append(opts, service.WithPublisher(messagebus.NewJourneyEventPublisher(c.bus, cfg.MessageBus.EventsQueue)))
	}

	if cfg.Elasticsearch.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		esClient, err := elasticsearch.NewClient(ctx, cfg.Elasticsearch)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Elasticsearch client, TAT reports will scan the store")
		} else {
			opts = append(opts, service.WithProjector(elasticsearch.NewTATProjector(esClient)))
		}
	}

	c.journeys = service.NewJourneyService(repo, cacheClient, provider, opts...)
	return c, nil
}

// close releases the message bus and flushes New Relic
func (c *components) close(ctx context.Context) {
	if c.bus != nil {
		if err := c.bus.Close(ctx); err != nil {
			c.logger.Errorf("Message bus closure failed: %v", err)
		}
	}
	if c.nrApp != nil {
		c.nrApp.Shutdown(c.cfg.Server.ShutdownTimeout)
	}
}
