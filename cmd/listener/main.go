package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/config"
	"asset-settlement-go/internal/scanner"

	"go.uber.org/zap"
)

func main() {
	assetsOverride := flag.String("assets", "", "Optional path to assets.yaml overriding ASSETS_FILE")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting deposit tracker", zap.String("mode", string(cfg.Mode)))

	assetsFile := cfg.Tracker.AssetsFile
	if *assetsOverride != "" {
		assetsFile = *assetsOverride
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	scanners, err := buildScanners(assetsFile)
	if err != nil {
		zap.L().Fatal("Failed to build chain scanners", zap.Error(err))
	}

	tracker := scanner.NewTracker(scanner.TrackerConfig{
		DbService:       services.DbService,
		Locks:           services.Locks,
		Scanners:        scanners,
		Metrics:         services.Metrics,
		LookbackWindow:  cfg.Tracker.LookbackWindow,
		PollingInterval: cfg.Tracker.PollingInterval,
		CleanupInterval: cfg.Tracker.CleanupInterval,
	})

	if err := tracker.Start(ctx, assetsFile); err != nil {
		zap.L().Fatal("Failed to start deposit tracker", zap.Error(err))
	}

	zap.L().Info("Deposit tracker running. Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping tracker...")

	done := make(chan struct{})
	go func() {
		tracker.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Tracker stopped cleanly")
	case <-time.After(30 * time.Second):
		zap.L().Warn("Tracker shutdown timed out")
	}
}

// buildScanners creates one HTTP scanner per distinct chain in the asset
// catalog.
func buildScanners(assetsFile string) (*scanner.Registry, error) {
	assets, err := common.LoadAssetConfig(assetsFile)
	if err != nil {
		return nil, err
	}

	registry := scanner.NewRegistry()
	seen := make(map[string]bool)
	for _, asset := range assets {
		if seen[asset.Chain] || asset.IndexerURL == "" {
			continue
		}
		chainScanner, err := scanner.NewHTTPScanner(asset.Chain, asset.IndexerURL)
		if err != nil {
			return nil, err
		}
		registry.Register(chainScanner)
		seen[asset.Chain] = true
	}
	return registry, nil
}
