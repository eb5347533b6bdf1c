package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSignatureTTL = 24 * time.Hour

// Client wraps Redis operations for the ingestion skip-set.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL          string        `yaml:"url"`
	Password     string        `yaml:"password"`
	SignatureTTL time.Duration `yaml:"signature_ttl"`
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewFromRedis(rdb, cfg.SignatureTTL), nil
}

// NewFromRedis wraps an existing go-redis client.
func NewFromRedis(rdb *redis.Client, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultSignatureTTL
	}
	return &Client{rdb: rdb, ttl: ttl}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func seenKey(walletID int64) string {
	return fmt.Sprintf("seen_signatures:%d", walletID)
}

// SeenSignatures returns the subset of sigs already marked for the wallet.
func (c *Client) SeenSignatures(
	ctx context.Context,
	walletID int64,
	sigs []string,
) ([]string, error) {
	if len(sigs) == 0 {
		return nil, nil
	}
	members := make([]interface{}, len(sigs))
	for i, s := range sigs {
		members[i] = s
	}
	flags, err := c.rdb.SMIsMember(ctx, seenKey(walletID), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("smismember failed: %w", err)
	}

	var seen []string
	for i, ok := range flags {
		if ok {
			seen = append(seen, sigs[i])
		}
	}
	return seen, nil
}

// MarkSeen records sigs for the wallet and refreshes the set's TTL.
func (c *Client) MarkSeen(ctx context.Context, walletID int64, sigs []string) error {
	if len(sigs) == 0 {
		return nil
	}
	key := seenKey(walletID)
	members := make([]interface{}, len(sigs))
	for i, s := range sigs {
		members[i] = s
	}

	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark seen failed: %w", err)
	}
	return nil
}

// Forget drops the skip-set for a wallet.
func (c *Client) Forget(ctx context.Context, walletID int64) error {
	return c.rdb.Del(ctx, seenKey(walletID)).Err()
}
