package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/crm/internal/api"
	"github.com/Rrens/crm/internal/api/handler"
	"github.com/Rrens/crm/internal/config"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/Rrens/crm/internal/ratelimit"
	"github.com/Rrens/crm/internal/repository/postgres"
	"github.com/Rrens/crm/internal/repository/redis"
	"github.com/Rrens/crm/internal/repository/sqlite"
	"github.com/Rrens/crm/internal/security"
	"github.com/Rrens/crm/internal/service"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Str("environment", cfg.Environment).
		Msg("Starting CRM API server")

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sealer, err := newSealer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PII sealer")
	}

	deps := api.Dependencies{
		Metrics:  m,
		Gatherer: registry,
		Ready:    map[string]handler.Pinger{},
	}

	closeStore, err := openStore(ctx, cfg, sealer, &deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer closeStore()

	// Initialize Redis
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		publisher := redis.NewEventPublisher(redisClient, cfg.Redis.EventsChannel)
		deps.Publisher = publisher
		deps.Activity = publisher
		deps.RateLimiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
		deps.Ready["redis"] = redisClient

		// Mirror the event stream of every instance into this instance's log.
		subCtx, stopSubscription := context.WithCancel(ctx)
		defer stopSubscription()
		go func() {
			err := publisher.Subscribe(subCtx, service.LogEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Event subscription stopped")
			}
		}()
	} else {
		log.Warn().Msg("Redis disabled: events go to the log, rate limits are per instance")
		deps.Publisher = service.LogPublisher{}
		deps.RateLimiter = ratelimit.NewLocal(
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	// Initialize router
	router := api.NewRouter(cfg, deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if !cfg.IsProduction() && cfg.Logging.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// newSealer loads the PII key. Outside production a missing key falls back to
// an ephemeral one, so sealed data does not survive a restart.
func newSealer(cfg *config.Config) (*security.Sealer, error) {
	if cfg.Security.PIIKey != "" {
		return security.NewSealerFromBase64(cfg.Security.PIIKey)
	}
	key, err := security.GenerateKey()
	if err != nil {
		return nil, err
	}
	log.Warn().Msg("PII_ENCRYPTION_KEY not set, using an ephemeral key")
	return security.NewSealer(key)
}

// openStore connects the configured driver and fills the repositories of deps.
func openStore(ctx context.Context, cfg *config.Config, sealer *security.Sealer, deps *api.Dependencies) (func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := db.RunMigrations(); err != nil {
				db.Close()
				return nil, err
			}
		}
		deps.Users = sqlite.NewUserRepository(db)
		deps.Workspaces = sqlite.NewWorkspaceRepository(db)
		deps.Clients = sqlite.NewClientRepository(db, sealer)
		deps.Ready["database"] = db
		return func() { db.Close() }, nil

	default:
		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Database.DSN()); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.Users = postgres.NewUserRepository(db)
		deps.Workspaces = postgres.NewWorkspaceRepository(db)
		deps.Clients = postgres.NewClientRepository(db, sealer)
		deps.Ready["database"] = db
		return db.Close, nil
	}
}
