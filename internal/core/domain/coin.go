package domain

import (
	"time"
)

// Coin is a token known to the bot. Rows are created lazily on first sight.
type Coin struct {
	ID          int64
	Address     string
	Chain       Chain
	Symbol      string
	Name        string
	Logo        string
	PairAddress string
	CreatedAt   time.Time
}

// Age returns how long ago the token was created.
func (c *Coin) Age(now time.Time) time.Duration {
	if c.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(c.CreatedAt)
}

// CoinRef addresses a token on a chain.
type CoinRef struct {
	Chain   Chain
	Address string
}

// Direction is the side of a price crossing a client waits for.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s), true
	}
	return "", false
}

// ClientCoin is a client's price alert on a coin.
type ClientCoin struct {
	ClientID         int64
	CoinID           int64
	Direction        Direction
	StartPrice       float64
	Percentage       float64
	NotificationSent bool
	CreatedAt        time.Time
}

// Tracking reports whether a threshold has been configured.
func (cc *ClientCoin) Tracking() bool {
	return cc.Direction != "" && cc.Percentage > 0 && cc.StartPrice > 0
}

// Threshold returns the price that fires the alert.
func (cc *ClientCoin) Threshold() float64 {
	switch cc.Direction {
	case DirectionUp:
		return cc.StartPrice * (1 + cc.Percentage/100)
	case DirectionDown:
		return cc.StartPrice * (1 - cc.Percentage/100)
	}
	return 0
}

// Crossed reports whether price is past the threshold in the configured direction.
func (cc *ClientCoin) Crossed(price float64) bool {
	if !cc.Tracking() {
		return false
	}
	switch cc.Direction {
	case DirectionUp:
		return price >= cc.Threshold()
	case DirectionDown:
		return price <= cc.Threshold()
	}
	return false
}

// ClientCoinKey identifies a subscription.
type ClientCoinKey struct {
	ClientID int64
	CoinID   int64
}
