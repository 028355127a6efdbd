package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"asset-settlement-go/internal/models"

	"gopkg.in/yaml.v2"
)

func Load() (*models.Config, error) {
	mode, err := parseMode(getEnvString("EXECUTION_MODE", string(models.ModeCustodial)))
	if err != nil {
		return nil, err
	}

	lookbackWindow, err := getEnvDuration("TRACKER_LOOKBACK_WINDOW", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("TRACKER_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := getEnvDuration("TRACKER_CLEANUP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	providerTimeout, err := getEnvDuration("QUOTE_PROVIDER_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	quoteTTL, err := getEnvDuration("QUOTE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	kmsTimeout, err := getEnvDuration("KMS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	lockTimeout, err := getEnvDuration("USER_LOCK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	providers, err := loadProviders(getEnvString("PROVIDERS_FILE", "providers.yaml"))
	if err != nil {
		return nil, err
	}

	localKeys, err := parseLocalKeys(os.Getenv("SIGNING_LOCAL_KEYS"))
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Mode:       mode,
		DryRun:     getEnvBool("DRY_RUN", false),
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "settlement.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Tracker: models.TrackerConfig{
			LookbackWindow:  lookbackWindow,
			PollingInterval: pollingInterval,
			CleanupInterval: cleanupInterval,
			AssetsFile:      getEnvString("ASSETS_FILE", "assets.yaml"),
		},
		Quotes: models.QuotesConfig{
			ProviderTimeout: providerTimeout,
			QuoteTTL:        quoteTTL,
			Providers:       providers,
		},
		Signing: models.SigningConfig{
			Backend:    getEnvString("SIGNING_BACKEND", "local"),
			KMSBaseURL: os.Getenv("KMS_BASE_URL"),
			KMSToken:   os.Getenv("KMS_TOKEN"),
			KMSTimeout: kmsTimeout,
			LocalKeys:  localKeys,
		},
		LockTimeout: lockTimeout,
	}, nil
}

func parseMode(value string) (models.ExecutionMode, error) {
	switch models.ExecutionMode(value) {
	case models.ModeCustodial:
		return models.ModeCustodial, nil
	case models.ModeNonCustodial:
		return models.ModeNonCustodial, nil
	default:
		return "", fmt.Errorf("invalid EXECUTION_MODE: %q (expected %q or %q)",
			value, models.ModeCustodial, models.ModeNonCustodial)
	}
}

type providersFile struct {
	Providers []models.ProviderConfig `yaml:"providers"`
}

// loadProviders reads the route provider catalog. A missing file is not an
// error; swaps are simply unavailable until providers are configured.
func loadProviders(path string) ([]models.ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}

	for i, p := range file.Providers {
		if p.Name == "" || p.BaseURL == "" {
			return nil, fmt.Errorf("provider at index %d missing name or base_url", i)
		}
	}
	return file.Providers, nil
}

// parseLocalKeys parses "keyId=privateKeyHex" pairs separated by commas.
func parseLocalKeys(value string) (map[string]string, error) {
	if value == "" {
		return nil, nil
	}

	keys := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		keyId, keyHex, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || keyId == "" || keyHex == "" {
			return nil, fmt.Errorf("invalid SIGNING_LOCAL_KEYS entry %q (expected keyId=hex)", pair)
		}
		keys[keyId] = keyHex
	}
	return keys, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
