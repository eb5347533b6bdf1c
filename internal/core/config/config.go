package config

import (
	"time"

	redisclient "github.com/vietddude/coinwatch/internal/infra/redis"
	"github.com/vietddude/coinwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Telegram  TelegramConfig     `yaml:"telegram"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Providers ProvidersConfig    `yaml:"providers"`
	Retry     RetryConfig        `yaml:"retry"`
	Notify    NotifyConfig       `yaml:"notify"`
	Search    SearchConfig       `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// ProvidersConfig groups the upstream APIs.
type ProvidersConfig struct {
	Alchemy     ProviderConfig `yaml:"alchemy"`
	Solana      ProviderConfig `yaml:"solana"`
	Dexscreener ProviderConfig `yaml:"dexscreener"`
	Birdeye     ProviderConfig `yaml:"birdeye"`
}

// ProviderConfig holds settings for one upstream API.
type ProviderConfig struct {
	URL       string        `yaml:"url"`
	PricesURL string        `yaml:"prices_url"` // alchemy only
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst"`
}

// RetryConfig bounds upstream retries.
type RetryConfig struct {
	MaxAttempts         int           `yaml:"max_attempts"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries"`
	DefaultRetryAfter   time.Duration `yaml:"default_retry_after"`
	InitialDelay        time.Duration `yaml:"initial_delay"`
	MaxDelay            time.Duration `yaml:"max_delay"`
}

// NotifyConfig holds polling pipeline settings.
type NotifyConfig struct {
	CoinsInterval   time.Duration `yaml:"coins_interval"`
	WalletsInterval time.Duration `yaml:"wallets_interval"`
	SignaturesLimit int           `yaml:"signatures_limit"`
	Concurrency     int           `yaml:"concurrency"`
	SendConcurrency int           `yaml:"send_concurrency"`
	SendRetryAfter  time.Duration `yaml:"send_retry_after"`
}

// SearchConfig holds coin search settings.
type SearchConfig struct {
	PageSize  int `yaml:"page_size"`
	FetchSize int `yaml:"fetch_size"`

	// SessionTTL is how long an idle search session is kept. Negative keeps them forever.
	SessionTTL time.Duration `yaml:"session_ttl"`
}
