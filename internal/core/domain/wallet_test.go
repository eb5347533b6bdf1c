package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWalletAddress(t *testing.T) {
	tests := []struct {
		name    string
		chain   Chain
		address string
		err     error
	}{
		{"solana key", ChainSolana, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", nil},
		{"system program", ChainSolana, "11111111111111111111111111111111", nil},
		{"too short", ChainSolana, "W1", ErrInvalidAddress},
		{"not base58", ChainSolana, "0xEPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZw", ErrInvalidAddress},
		{"empty", ChainSolana, "", ErrInvalidAddress},
		{"no wallets on ethereum", ChainEthereum, "0xabc", ErrUnsupportedChain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWalletAddress(tt.chain, tt.address)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
