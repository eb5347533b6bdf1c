package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:            "0",
		1.5:          "1.5",
		1234.567:     "1234.57",
		0.00123:      "0.00123",
		0.0000012345: "0.0000012345",
		-2:           "-2",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in), "%v", in)
	}
}

func TestWalletBuyText(t *testing.T) {
	coin := &domain.Coin{Symbol: "<TK>"}
	text := WalletBuyText("W1", coin, 120, domain.PricePoint{Price: 2, MarketCap: 1000})
	assert.Contains(t, text, "<code>W1</code>")
	assert.Contains(t, text, "&lt;TK&gt;")
	assert.Contains(t, text, "Total: 240 USD")
}

func TestPriceReachedText(t *testing.T) {
	sub := &domain.ClientCoin{Direction: domain.DirectionDown, StartPrice: 10, Percentage: 20}
	text := PriceReachedText(&domain.Coin{Symbol: "TK"}, sub, 8)
	assert.Equal(t, "▼ <b>TK</b> reached 8$ (-20% from 10$)", text)
}
