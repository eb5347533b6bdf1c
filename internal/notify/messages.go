package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// WalletBuyText renders a wallet transaction alert.
func WalletBuyText(walletAddress string, coin *domain.Coin, amount float64, price domain.PricePoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet <code>%s</code>\n\n", html.EscapeString(walletAddress))
	fmt.Fprintf(&b, "Bought <b>%s</b>\n", html.EscapeString(coinLabel(coin)))
	fmt.Fprintf(&b, "Price: %s USD\n", FormatNumber(price.Price))
	if price.MarketCap > 0 {
		fmt.Fprintf(&b, "Market cap: %s USD\n", FormatNumber(price.MarketCap))
	}
	fmt.Fprintf(&b, "Amount: %s\n", FormatNumber(amount))
	fmt.Fprintf(&b, "Total: %s USD", FormatNumber(amount*price.Price))
	return b.String()
}

// PriceReachedText renders a coin threshold alert.
func PriceReachedText(coin *domain.Coin, sub *domain.ClientCoin, price float64) string {
	arrow := "▲"
	if sub.Direction == domain.DirectionDown {
		arrow = "▼"
	}
	return fmt.Sprintf(
		"%s <b>%s</b> reached %s$ (%s%s%% from %s$)",
		arrow,
		html.EscapeString(coinLabel(coin)),
		FormatNumber(price),
		directionSign(sub.Direction),
		FormatNumber(sub.Percentage),
		FormatNumber(sub.StartPrice),
	)
}

func directionSign(d domain.Direction) string {
	if d == domain.DirectionDown {
		return "-"
	}
	return "+"
}

func coinLabel(c *domain.Coin) string {
	if c == nil {
		return "unknown"
	}
	if c.Symbol != "" {
		return c.Symbol
	}
	return c.Address
}

// FormatNumber prints v without exponent and without trailing zeros.
func FormatNumber(v float64) string {
	prec := 2
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs == 0:
		return "0"
	case abs < 0.0001:
		prec = 10
	case abs < 1:
		prec = 6
	}
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
