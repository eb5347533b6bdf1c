// Package dexscreener is a client for the Dexscreener token API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/chain"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

// MaxAddresses is the number of tokens the API accepts per request.
const MaxAddresses = 30

type Client struct {
	exec provider.Executor
}

func NewClient(exec provider.Executor) *Client {
	return &Client{exec: exec}
}

type pair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD      chain.Float `json:"priceUsd"`
	MarketCap     chain.Float `json:"marketCap"`
	FDV           chain.Float `json:"fdv"`
	PairCreatedAt int64       `json:"pairCreatedAt"`
	Info          *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
}

func (p *pair) toDomain(ch domain.Chain) domain.CoinInfo {
	info := domain.CoinInfo{
		Chain:       ch,
		Address:     p.BaseToken.Address,
		Symbol:      p.BaseToken.Symbol,
		Name:        p.BaseToken.Name,
		PairAddress: p.PairAddress,
		Price:       float64(p.PriceUSD),
		MarketCap:   float64(p.MarketCap),
	}
	if info.MarketCap == 0 {
		info.MarketCap = float64(p.FDV)
	}
	if p.Info != nil {
		info.Logo = p.Info.ImageURL
	}
	if p.PairCreatedAt > 0 {
		info.CreatedAt = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	return info
}

// CoinInfo returns one entry per known token, taken from its first listed
// (most liquid) pair. Requests are split into chunks of MaxAddresses.
func (c *Client) CoinInfo(ctx context.Context, ch domain.Chain, addresses []string) ([]domain.CoinInfo, error) {
	var out []domain.CoinInfo
	seen := make(map[string]bool)
	for _, chunk := range lo.Chunk(lo.Uniq(addresses), MaxAddresses) {
		pairs, err := c.tokens(ctx, ch, chunk)
		if err != nil {
			return out, err
		}
		for i := range pairs {
			addr := pairs[i].BaseToken.Address
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, pairs[i].toDomain(ch))
		}
	}
	return out, nil
}

func (c *Client) tokens(ctx context.Context, ch domain.Chain, addresses []string) ([]pair, error) {
	raw, err := c.exec.Execute(ctx, provider.Operation{
		Name:   "tokens",
		IsREST: true,
		Path:   fmt.Sprintf("tokens/v1/%s/%s", ch, strings.Join(addresses, ",")),
	})
	if err != nil {
		return nil, fmt.Errorf("dexscreener tokens: %w", err)
	}
	if provider.IsEmpty(raw) {
		return nil, nil
	}
	var pairs []pair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("invalid dexscreener response: %w", err)
	}
	return pairs, nil
}

func (c *Client) one(ctx context.Context, ch domain.Chain, address string) (*domain.CoinInfo, error) {
	infos, err := c.CoinInfo(ctx, ch, []string{address})
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if strings.EqualFold(infos[i].Address, address) {
			return &infos[i], nil
		}
	}
	return nil, nil
}

// SpotPrice returns the current price and market cap of a token, or nil.
func (c *Client) SpotPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PricePoint, error) {
	info, err := c.one(ctx, ch, address)
	if err != nil || info == nil || info.Price == 0 {
		return nil, err
	}
	return &domain.PricePoint{Price: info.Price, MarketCap: info.MarketCap, Timestamp: time.Now().UTC()}, nil
}

// PairAddress returns the token's main pool address, or "".
func (c *Client) PairAddress(ctx context.Context, ch domain.Chain, token string) (string, error) {
	info, err := c.one(ctx, ch, token)
	if err != nil || info == nil {
		return "", err
	}
	return info.PairAddress, nil
}
