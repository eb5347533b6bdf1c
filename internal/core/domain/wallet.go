package domain

import (
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// solanaKeySize is the length of a decoded Solana public key.
const solanaKeySize = 32

// Wallet is an on-chain address tracked by at least one client.
type Wallet struct {
	ID        int64
	Address   string
	Chain     Chain
	CreatedAt time.Time
}

// ClientWallet links a client to a wallet it tracks.
type ClientWallet struct {
	ClientID  int64
	WalletID  int64
	CreatedAt time.Time
}

// ValidateWalletAddress checks the address format for the chain without
// touching the network.
func ValidateWalletAddress(ch Chain, address string) error {
	switch ch {
	case ChainSolana:
		key, err := base58.Decode(address)
		if err != nil || len(key) != solanaKeySize {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		return nil
	default:
		return fmt.Errorf("%w: wallets on %s", ErrUnsupportedChain, ch)
	}
}
