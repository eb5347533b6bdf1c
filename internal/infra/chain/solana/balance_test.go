package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bal(owner, mint string, amount float64) TokenBalance {
	return TokenBalance{Owner: owner, Mint: mint, UITokenAmount: TokenAmount{UIAmount: &amount}}
}

func TestTokenAddressSkipsWrappedSOL(t *testing.T) {
	meta := &TransactionMeta{
		PreTokenBalances: []TokenBalance{
			bal("pool", WrappedSOL, 100),
			bal("pool", "TKN1", 5000),
		},
	}
	assert.Equal(t, "TKN1", TokenAddress(meta))
	assert.Empty(t, TokenAddress(&TransactionMeta{}))
}

func TestBalanceChange(t *testing.T) {
	tests := []struct {
		name   string
		meta   *TransactionMeta
		owner  string
		mint   string
		want   float64
		wantOK bool
	}{
		{
			name: "buy",
			meta: &TransactionMeta{
				PreTokenBalances:  []TokenBalance{bal("W1", "TKN1", 10)},
				PostTokenBalances: []TokenBalance{bal("W1", "TKN1", 130)},
			},
			owner: "W1", mint: "TKN1", want: 120, wantOK: true,
		},
		{
			name: "sell is negative",
			meta: &TransactionMeta{
				PreTokenBalances:  []TokenBalance{bal("W1", "TKN1", 50)},
				PostTokenBalances: []TokenBalance{bal("W1", "TKN1", 20)},
			},
			owner: "W1", mint: "TKN1", want: -30, wantOK: true,
		},
		{
			name: "account opened in this transaction",
			meta: &TransactionMeta{
				PostTokenBalances: []TokenBalance{bal("W1", "TKN1", 42)},
			},
			owner: "W1", mint: "TKN1", want: 42, wantOK: true,
		},
		{
			name: "wrapped SOL ignored",
			meta: &TransactionMeta{
				PreTokenBalances:  []TokenBalance{bal("W1", WrappedSOL, 1)},
				PostTokenBalances: []TokenBalance{bal("W1", WrappedSOL, 2)},
			},
			owner: "W1", mint: WrappedSOL, wantOK: false,
		},
		{
			name: "owner absent",
			meta: &TransactionMeta{
				PreTokenBalances:  []TokenBalance{bal("X", "TKN1", 1)},
				PostTokenBalances: []TokenBalance{bal("X", "TKN1", 2)},
			},
			owner: "W1", mint: "TKN1", wantOK: false,
		},
		{
			name: "swap into a new account keeps mints apart",
			meta: &TransactionMeta{
				PreTokenBalances: []TokenBalance{bal("W1", "USDC", 100)},
				PostTokenBalances: []TokenBalance{
					bal("W1", "TKN", 50),
					bal("W1", "USDC", 90),
				},
			},
			owner: "W1", mint: "USDC", want: -10, wantOK: true,
		},
		{
			name: "new account of the bought mint",
			meta: &TransactionMeta{
				PreTokenBalances: []TokenBalance{bal("W1", "USDC", 100)},
				PostTokenBalances: []TokenBalance{
					bal("W1", "TKN", 50),
					bal("W1", "USDC", 90),
				},
			},
			owner: "W1", mint: "TKN", want: 50, wantOK: true,
		},
		{
			name: "null ui amount treated as zero",
			meta: &TransactionMeta{
				PreTokenBalances:  []TokenBalance{{Owner: "W1", Mint: "TKN1"}},
				PostTokenBalances: []TokenBalance{bal("W1", "TKN1", 7)},
			},
			owner: "W1", mint: "TKN1", want: 7, wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BalanceChange(tt.meta, tt.owner, tt.mint)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFallbackChangeAbsolute(t *testing.T) {
	meta := &TransactionMeta{
		PreTokenBalances: []TokenBalance{
			bal("A", WrappedSOL, 10),
			bal("B", "TKN1", 100),
			bal("C", "TKN1", 5),
		},
		PostTokenBalances: []TokenBalance{
			bal("A", WrappedSOL, 20),
			bal("B", "TKN1", 100),
			bal("C", "TKN1", 2),
		},
	}
	got, ok := FallbackChange(meta, "TKN1")
	assert.True(t, ok)
	assert.InDelta(t, 3, got, 1e-9)

	_, ok = FallbackChange(meta, "OTHER")
	assert.False(t, ok)

	_, ok = FallbackChange(&TransactionMeta{}, "TKN1")
	assert.False(t, ok)
}
