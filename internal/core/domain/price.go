package domain

import (
	"time"
)

// CoinPrice is a current USD quote for a token.
type CoinPrice struct {
	Chain   Chain
	Address string
	Price   float64
}

// PricePoint is one sample of a price series.
type PricePoint struct {
	Price     float64
	MarketCap float64
	Timestamp time.Time
}

// PriceHistory is a short price series, oldest first.
type PriceHistory struct {
	Chain   Chain
	Address string
	Points  []PricePoint
}

// Latest returns the most recent point, or false for an empty series.
func (h *PriceHistory) Latest() (PricePoint, bool) {
	if h == nil || len(h.Points) == 0 {
		return PricePoint{}, false
	}
	return h.Points[len(h.Points)-1], true
}

// CoinInfo is token metadata as reported by a market data provider.
type CoinInfo struct {
	Chain       Chain
	Address     string
	Symbol      string
	Name        string
	Logo        string
	PairAddress string
	Price       float64
	MarketCap   float64
	CreatedAt   time.Time
}

// CoinSummary is one row of a token list search.
type CoinSummary struct {
	Address   string    `json:"address"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Logo      string    `json:"logo"`
	Price     float64   `json:"price"`
	MarketCap float64   `json:"market_cap"`
	Liquidity float64   `json:"liquidity"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenListParams selects a page of the token list.
type TokenListParams struct {
	Chain        Chain
	MinLiquidity float64
	Offset       int
	Limit        int
}
