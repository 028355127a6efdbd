package common

import (
	"context"
	"log"
	"strings"

	"asset-settlement-go/internal/database"
	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/quotes"
	"asset-settlement-go/internal/signing"
	"asset-settlement-go/internal/userlock"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

// Services bundles the shared infrastructure every entrypoint needs. The
// settlement engines are built on top of these per command.
type Services struct {
	DbService  *database.Service
	Locks      *userlock.Registry
	Metrics    *metrics.Metrics
	Guard      *signing.Guard
	Aggregator *quotes.Aggregator
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	m := metrics.NewDefault()

	guard, err := signing.NewGuard(cfg.Mode, cfg.Signing, m)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	providers := make([]quotes.RouteProvider, 0, len(cfg.Quotes.Providers))
	for _, providerCfg := range cfg.Quotes.Providers {
		provider, err := quotes.NewHTTPProvider(providerCfg, cfg.Quotes.QuoteTTL)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		providers = append(providers, provider)
	}

	return &Services{
		DbService:  dbService,
		Locks:      userlock.NewRegistry(cfg.LockTimeout),
		Metrics:    m,
		Guard:      guard,
		Aggregator: quotes.NewAggregator(providers, cfg.Quotes.ProviderTimeout, m),
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
