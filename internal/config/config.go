package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// EVM node configuration
	EVM EVMConfig

	// Price source configuration
	Pricing PricingConfig

	// NFT provider configuration
	NFT NFTConfig

	// Refresh cycle configuration
	Refresh RefreshConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"valuator"`
	Password        string        `envconfig:"DB_PASSWORD" default:"valuator"`
	Name            string        `envconfig:"DB_NAME" default:"portfolio_valuator"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// EVMConfig holds EVM node connection settings. RPCURLs maps a chain
// identifier (e.g. "ethereum", "polygon") to its JSON-RPC endpoint.
// TokenContracts lists tracked ERC-20 contracts as "chain/0xaddress" entries.
type EVMConfig struct {
	RPCURLs        map[string]string `envconfig:"EVM_RPC_URLS" default:"ethereum:http://localhost:8545"`
	TokenContracts []string          `envconfig:"EVM_TOKEN_CONTRACTS" default:""`
	RequestTimeout time.Duration     `envconfig:"EVM_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int               `envconfig:"EVM_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration     `envconfig:"EVM_RETRY_DELAY" default:"1s"`
}

// PricingConfig holds price-tier settings shared by the source adapters
type PricingConfig struct {
	RequestTimeout  time.Duration `envconfig:"PRICE_REQUEST_TIMEOUT" default:"10s"`
	RateLimitRPS    float64       `envconfig:"PRICE_RATE_LIMIT_RPS" default:"4"`
	DEXBatchSize    int           `envconfig:"PRICE_DEX_BATCH_SIZE" default:"30"`
	MarketBatchSize int           `envconfig:"PRICE_MARKET_BATCH_SIZE" default:"100"`
	MarketAPIKey    string        `envconfig:"PRICE_MARKET_API_KEY" default:""`
}

// NFTConfig holds NFT provider settings
type NFTConfig struct {
	BaseURL        string        `envconfig:"NFT_BASE_URL" default:"https://api.simplehash.com"`
	APIKey         string        `envconfig:"NFT_API_KEY" default:""`
	RequestTimeout time.Duration `envconfig:"NFT_REQUEST_TIMEOUT" default:"15s"`
	RateLimitRPS   float64       `envconfig:"NFT_RATE_LIMIT_RPS" default:"2"`
}

// RefreshConfig holds refresh cycle settings
type RefreshConfig struct {
	Interval         time.Duration `envconfig:"REFRESH_INTERVAL" default:"15m"`
	WalletWorkers    int           `envconfig:"REFRESH_WALLET_WORKERS" default:"4"`
	HideThresholdUSD float64       `envconfig:"REFRESH_HIDE_THRESHOLD_USD" default:"2"`
	MetricsPort      int           `envconfig:"REFRESH_METRICS_PORT" default:"8080"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
