package models

import "time"

// ExecutionMode controls whether the deployment may hold keys and sign.
type ExecutionMode string

const (
	// ModeCustodial grants full capability: signing, broadcasting, key access.
	ModeCustodial ExecutionMode = "custodial"
	// ModeNonCustodial forbids all signing-adjacent operations server-side.
	// Only read operations and unsigned-transaction preparation are allowed.
	ModeNonCustodial ExecutionMode = "non_custodial"
)

// Config represents the application configuration
type Config struct {
	Mode        ExecutionMode
	DryRun      bool
	AdminToken  string
	Database    DatabaseConfig
	Tracker     TrackerConfig
	Quotes      QuotesConfig
	Signing     SigningConfig
	LockTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// TrackerConfig holds deposit tracker settings
type TrackerConfig struct {
	PollingInterval time.Duration
	LookbackWindow  time.Duration
	CleanupInterval time.Duration
	AssetsFile      string
}

// QuotesConfig holds quote aggregation settings
type QuotesConfig struct {
	ProviderTimeout time.Duration
	QuoteTTL        time.Duration
	Providers       []ProviderConfig
}

// ProviderConfig describes one HTTP route provider endpoint.
type ProviderConfig struct {
	Name    string   `yaml:"name"`
	BaseURL string   `yaml:"base_url"`
	Assets  []string `yaml:"assets"`
}

// SigningConfig selects and configures the signing backend.
type SigningConfig struct {
	Backend    string // "local" or "kms"
	KMSBaseURL string
	KMSToken   string
	KMSTimeout time.Duration
	// LocalKeys maps key id -> secp256k1 private key hex. Only used by the
	// local backend; never logged.
	LocalKeys map[string]string
}
