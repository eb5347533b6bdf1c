package domain

import (
	"time"
)

// ClientFilters is a client's coin search session: the criteria and the
// cached results being paged through.
type ClientFilters struct {
	ClientID     int64
	Chain        Chain
	MinLiquidity float64
	MinPrice     *float64
	MaxPrice     *float64
	MinAge       *time.Duration
	MaxAge       *time.Duration
	MinMarketCap *float64
	Results      []CoinSummary
	Offset       int
	UpdatedAt    time.Time
}

// Match reports whether a search result satisfies the session criteria.
func (f *ClientFilters) Match(c CoinSummary, now time.Time) bool {
	if f.MinPrice != nil && c.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && c.Price > *f.MaxPrice {
		return false
	}
	if f.MinMarketCap != nil && c.MarketCap < *f.MinMarketCap {
		return false
	}
	if f.MinAge == nil && f.MaxAge == nil {
		return true
	}
	if c.CreatedAt.IsZero() {
		return false
	}
	age := now.Sub(c.CreatedAt)
	if f.MinAge != nil && age < *f.MinAge {
		return false
	}
	if f.MaxAge != nil && age > *f.MaxAge {
		return false
	}
	return true
}

// Page returns up to size matching results from the current offset and the
// offset to continue from.
func (f *ClientFilters) Page(size int, now time.Time) ([]CoinSummary, int) {
	var out []CoinSummary
	i := f.Offset
	for ; i < len(f.Results) && len(out) < size; i++ {
		if f.Match(f.Results[i], now) {
			out = append(out, f.Results[i])
		}
	}
	return out, i
}
