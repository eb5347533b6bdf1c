package domain

import "fmt"

// Chain identifies a supported network by its short name.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainBlast    Chain = "blast"
)

// Chains lists every network coins can be tracked on, in display order.
var Chains = []Chain{ChainSolana, ChainEthereum, ChainBase, ChainBlast}

// WalletChains lists the networks whose wallets can be ingested.
var WalletChains = []Chain{ChainSolana}

// chainToAlchemy maps a chain to the network name used by the Alchemy APIs.
var chainToAlchemy = map[Chain]string{
	ChainSolana:   "solana-mainnet",
	ChainEthereum: "eth-mainnet",
	ChainBase:     "base-mainnet",
	ChainBlast:    "blast-mainnet",
}

// AlchemyNetwork returns the Alchemy network name for the chain.
func (c Chain) AlchemyNetwork() (string, bool) {
	n, ok := chainToAlchemy[c]
	return n, ok
}

// ParseChain validates a user supplied chain name.
func ParseChain(s string) (Chain, error) {
	for _, c := range Chains {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
}

// SupportsWallets reports whether wallets on the chain can be tracked.
func (c Chain) SupportsWallets() bool {
	for _, w := range WalletChains {
		if w == c {
			return true
		}
	}
	return false
}
