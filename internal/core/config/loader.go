package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Telegram.PollTimeout <= 0 {
		cfg.Telegram.PollTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	p := &cfg.Providers
	if p.Alchemy.PricesURL == "" {
		p.Alchemy.PricesURL = "https://api.g.alchemy.com/prices/v1"
	}
	if p.Alchemy.URL == "" && p.Alchemy.APIKey != "" {
		p.Alchemy.URL = "https://solana-mainnet.g.alchemy.com/v2/" + p.Alchemy.APIKey
	}
	if p.Solana.URL == "" {
		p.Solana.URL = "https://api.mainnet-beta.solana.com"
	}
	if p.Dexscreener.URL == "" {
		p.Dexscreener.URL = "https://api.dexscreener.com"
	}
	if p.Birdeye.URL == "" {
		p.Birdeye.URL = "https://public-api.birdeye.so"
	}
	for _, pc := range []*ProviderConfig{&p.Alchemy, &p.Solana, &p.Dexscreener, &p.Birdeye} {
		if pc.Timeout <= 0 {
			pc.Timeout = 15 * time.Second
		}
		if pc.RateLimit > 0 && pc.Burst == 0 {
			pc.Burst = 1
		}
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.MaxRateLimitRetries == 0 {
		cfg.Retry.MaxRateLimitRetries = 1
	}
	if cfg.Retry.DefaultRetryAfter <= 0 {
		cfg.Retry.DefaultRetryAfter = 10 * time.Second
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}

	// A non-positive interval would make a cycle spin.
	n := &cfg.Notify
	if n.CoinsInterval <= 0 {
		n.CoinsInterval = time.Minute
	}
	if n.WalletsInterval <= 0 {
		n.WalletsInterval = time.Minute
	}
	if n.SignaturesLimit <= 0 {
		n.SignaturesLimit = 10
	}
	if n.Concurrency <= 0 {
		n.Concurrency = 8
	}
	if n.SendConcurrency <= 0 {
		n.SendConcurrency = 20
	}
	if n.SendRetryAfter <= 0 {
		n.SendRetryAfter = 10 * time.Second
	}

	if cfg.Search.PageSize <= 0 {
		cfg.Search.PageSize = 5
	}
	if cfg.Search.SessionTTL == 0 {
		cfg.Search.SessionTTL = 24 * time.Hour
	}
	if cfg.Search.FetchSize <= 0 {
		cfg.Search.FetchSize = 50
	}
}
