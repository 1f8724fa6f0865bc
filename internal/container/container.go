package container

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"fieldsync/internal/binder"
	"fieldsync/internal/client"
	"fieldsync/internal/config"
	"fieldsync/internal/database"
	"fieldsync/internal/handlers"
	"fieldsync/internal/logger"
	"fieldsync/internal/middleware"
	"fieldsync/internal/models"
	"fieldsync/internal/push"
	"fieldsync/internal/repositories"
	"fieldsync/internal/server"
	"fieldsync/internal/services"
	"fieldsync/internal/ui"
)

// Module provides dependency injection configuration
var Module = fx.Options(
	// Configuration
	fx.Provide(config.LoadConfig),

	// Logging
	fx.Provide(logger.NewLogger),

	// Database
	fx.Provide(database.NewConnection),
	fx.Provide(func(conn *database.Connection) *gorm.DB {
		return conn.DB
	}),
	fx.Provide(database.NewMigrator),
	fx.Provide(database.NewRedisClient),

	// Models (for validation and serialization)
	fx.Provide(models.DefaultSchema),
	fx.Provide(models.NewValidationService),

	// Repositories
	fx.Provide(repositories.NewUserRepository),
	fx.Provide(repositories.NewRecordRepository),

	// Metrics
	fx.Provide(NewRegistry),
	fx.Provide(func(registry *prometheus.Registry) prometheus.Registerer {
		return registry
	}),

	// Push channel
	fx.Provide(NewBroker),

	// Services
	fx.Provide(services.NewFieldService),
	fx.Provide(services.NewAuthenticationService),
	fx.Provide(func(fieldSvc services.FieldService) binder.RecordResolver {
		return fieldSvc
	}),

	// Binding and pages
	fx.Provide(NewClientProvider),
	fx.Provide(binder.NewBinder),
	fx.Provide(func(cfg *config.Config, logger *logger.Logger) *ui.Hub {
		return ui.NewHub(logger, time.Duration(cfg.UI.PageTimeout)*time.Second)
	}),

	// Handlers
	fx.Provide(handlers.NewLandingHandler),
	fx.Provide(handlers.NewHealthHandler),
	fx.Provide(handlers.NewFieldAPIHandler),
	fx.Provide(handlers.NewPushHandler),
	fx.Provide(handlers.NewUIHandler),
	fx.Provide(handlers.NewAuthHandler),

	// Middleware
	fx.Provide(middleware.NewAuthenticationMiddleware),

	// Server
	fx.Provide(server.NewServer),

	// Reject malformed page declarations before serving anything
	fx.Invoke(func(cfg *config.Config, validator *models.ValidationService) error {
		return validator.ValidateStruct(&cfg.UI)
	}),

	// Invoke migrations on startup
	fx.Invoke(func(migrator *database.Migrator) error {
		return migrator.Up()
	}),

	fx.Invoke(RegisterHealthChecks),
	fx.Invoke(RunHub),
)

// NewRegistry creates the metrics registry served on /metrics
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewBroker selects the Redis broker when Redis is enabled so that several
// instances share field changes, and the in-process broker otherwise
func NewBroker(lc fx.Lifecycle, cfg *config.Config, logger *logger.Logger, client *redis.Client) push.Broker {
	if cfg.Redis.Enabled {
		logger.WithField("prefix", cfg.Push.ChannelPrefix).Info("Using Redis push broker")
		return push.NewRedisBroker(client, cfg.Push.ChannelPrefix, cfg.Push.BufferSize, logger)
	}

	broker := push.NewMemoryBroker(cfg.Push.BufferSize)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return broker.Close()
		},
	})
	return broker
}

// NewClientProvider builds field API clients pointing at this server's own API
func NewClientProvider(cfg *config.Config) binder.ClientProvider {
	baseURL := cfg.API.BaseURL()
	return func(token string) binder.FieldClient {
		return client.NewClient(baseURL, client.WithToken(token))
	}
}

// RegisterHealthChecks wires the database and push broker into /health
func RegisterHealthChecks(h *handlers.HealthHandler, db *database.Connection, broker push.Broker) {
	h.RegisterHealthCheck("database", func(ctx context.Context) error {
		return db.Ping()
	})
	h.RegisterHealthCheck("push", broker.Ping)
}

// RunHub prunes abandoned pages for the lifetime of the application
func RunHub(lc fx.Lifecycle, hub *ui.Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
