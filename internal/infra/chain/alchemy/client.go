// Package alchemy is a client for the Alchemy Prices API.
package alchemy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/chain"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

const (
	historyWindow   = 30 * time.Minute
	historyInterval = "5m"
)

// Client calls the prices endpoints. The executor's endpoint must already
// include the API key path segment.
type Client struct {
	exec provider.Executor
	now  func() time.Time
	log  *slog.Logger
}

func NewClient(exec provider.Executor, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{exec: exec, now: time.Now, log: log}
}

type addressRef struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

type byAddressResponse struct {
	Data []struct {
		Network string `json:"network"`
		Address string `json:"address"`
		Prices  []struct {
			Currency string      `json:"currency"`
			Value    chain.Float `json:"value"`
		} `json:"prices"`
		Error json.RawMessage `json:"error"`
	} `json:"data"`
}

// CoinPrices quotes every ref in one request. Refs on unknown networks and
// tokens Alchemy has no price for are left out.
func (c *Client) CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error) {
	addrs := make([]addressRef, 0, len(refs))
	byNetwork := make(map[string]domain.Chain)
	for _, r := range refs {
		network, ok := r.Chain.AlchemyNetwork()
		if !ok {
			continue
		}
		byNetwork[network] = r.Chain
		addrs = append(addrs, addressRef{Network: network, Address: r.Address})
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	raw, err := c.exec.Execute(ctx, provider.Operation{
		Name:       "tokens/by-address",
		IsREST:     true,
		RESTMethod: http.MethodPost,
		Path:       "tokens/by-address",
		Body:       map[string]any{"addresses": addrs},
	})
	if err != nil {
		return nil, fmt.Errorf("prices by address: %w", err)
	}

	var resp byAddressResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid prices response: %w", err)
	}

	out := make([]domain.CoinPrice, 0, len(resp.Data))
	for _, d := range resp.Data {
		if len(d.Prices) == 0 || !provider.IsEmpty(d.Error) {
			c.log.Debug("No price for token", "network", d.Network, "address", d.Address)
			continue
		}
		out = append(out, domain.CoinPrice{
			Chain:   byNetwork[d.Network],
			Address: d.Address,
			Price:   float64(d.Prices[0].Value),
		})
	}
	return out, nil
}

type historicalResponse struct {
	Data []struct {
		Value     chain.Float `json:"value"`
		Timestamp time.Time   `json:"timestamp"`
		MarketCap chain.Float `json:"marketCap"`
	} `json:"data"`
	Error json.RawMessage `json:"error"`
}

// HistoricalPrice returns the last 30 minutes at 5 minute resolution, or nil
// when Alchemy has no data.
func (c *Client) HistoricalPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PriceHistory, error) {
	network, ok := ch.AlchemyNetwork()
	if !ok {
		return nil, nil
	}
	end := c.now().UTC()
	body := map[string]any{
		"network":        network,
		"address":        address,
		"startTime":      end.Add(-historyWindow).Format(time.RFC3339),
		"endTime":        end.Format(time.RFC3339),
		"interval":       historyInterval,
		"withMarketData": true,
	}

	raw, err := c.exec.Execute(ctx, provider.Operation{
		Name:       "tokens/historical",
		IsREST:     true,
		RESTMethod: http.MethodPost,
		Path:       "tokens/historical",
		Body:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("historical prices: %w", err)
	}

	var resp historicalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid historical response: %w", err)
	}
	if !provider.IsEmpty(resp.Error) || len(resp.Data) == 0 {
		c.log.Debug("No historical price", "network", network, "address", address)
		return nil, nil
	}

	h := &domain.PriceHistory{Chain: ch, Address: address}
	for _, d := range resp.Data {
		h.Points = append(h.Points, domain.PricePoint{
			Price:     float64(d.Value),
			MarketCap: float64(d.MarketCap),
			Timestamp: d.Timestamp,
		})
	}
	return h, nil
}
