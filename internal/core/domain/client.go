package domain

import (
	"time"
)

// Client is a Telegram user of the bot. ID is the Telegram user id.
type Client struct {
	ID            int64
	FirstName     string
	LastName      string
	Username      string
	IsPremium     bool
	AlertsEnabled bool
	Filter        AlertFilter
	CreatedAt     time.Time
}

// AlertFilter limits which wallet buys a client is told about.
// A nil field means no restriction.
type AlertFilter struct {
	MaxPrice     *float64
	MinMarketCap *float64
	MinAge       *time.Duration
	MaxAge       *time.Duration
}

// Allows applies every configured bound.
func (f AlertFilter) Allows(price, marketCap float64, age time.Duration) bool {
	if f.MaxPrice != nil && price > *f.MaxPrice {
		return false
	}
	if f.MinMarketCap != nil && marketCap < *f.MinMarketCap {
		return false
	}
	if f.MinAge != nil && age < *f.MinAge {
		return false
	}
	if f.MaxAge != nil && age > *f.MaxAge {
		return false
	}
	return true
}

// IsZero reports whether no bound is set.
func (f AlertFilter) IsZero() bool {
	return f.MaxPrice == nil && f.MinMarketCap == nil && f.MinAge == nil && f.MaxAge == nil
}
