// Package birdeye is a client for the BirdEye token list API.
package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/chain"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

const defaultLimit = 50

type Client struct {
	exec provider.Executor
}

// NewClient expects exec to send the X-API-KEY header.
func NewClient(exec provider.Executor) *Client {
	return &Client{exec: exec}
}

type tokenListResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Tokens []struct {
			Address   string      `json:"address"`
			Symbol    string      `json:"symbol"`
			Name      string      `json:"name"`
			LogoURI   string      `json:"logoURI"`
			MC        chain.Float `json:"mc"`
			Price     chain.Float `json:"price"`
			Liquidity chain.Float `json:"liquidity"`
		} `json:"tokens"`
	} `json:"data"`
}

// CoinList returns tokens sorted by 24h volume, filtered by liquidity.
func (c *Client) CoinList(ctx context.Context, params domain.TokenListParams) ([]domain.CoinSummary, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	ch := params.Chain
	if ch == "" {
		ch = domain.ChainSolana
	}

	q := url.Values{}
	q.Set("sort_by", "v24hUSD")
	q.Set("sort_type", "desc")
	q.Set("offset", strconv.Itoa(params.Offset))
	q.Set("limit", strconv.Itoa(limit))
	if params.MinLiquidity > 0 {
		q.Set("min_liquidity", strconv.FormatFloat(params.MinLiquidity, 'f', -1, 64))
	}

	raw, err := c.exec.Execute(ctx, provider.Operation{
		Name:    "tokenlist",
		IsREST:  true,
		Path:    "defi/tokenlist",
		Query:   q,
		Headers: map[string]string{"x-chain": string(ch)},
	})
	if err != nil {
		return nil, fmt.Errorf("birdeye tokenlist: %w", err)
	}

	var resp tokenListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid tokenlist response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("birdeye tokenlist: %s", resp.Message)
	}

	out := make([]domain.CoinSummary, 0, len(resp.Data.Tokens))
	for _, t := range resp.Data.Tokens {
		// the API still returns tokens below min_liquidity for some chains
		if float64(t.Liquidity) < params.MinLiquidity {
			continue
		}
		out = append(out, domain.CoinSummary{
			Address:   t.Address,
			Symbol:    t.Symbol,
			Name:      t.Name,
			Logo:      t.LogoURI,
			Price:     float64(t.Price),
			MarketCap: float64(t.MC),
			Liquidity: float64(t.Liquidity),
		})
	}
	return out, nil
}
