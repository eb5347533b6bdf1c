package domain

import "errors"

var (
	// ErrWalletNotFound is returned when an address has no on-chain history.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrCoinNotFound is returned when no provider knows the token.
	ErrCoinNotFound = errors.New("coin not found")

	// ErrDuplicateSubscription is returned when a client already tracks the wallet or coin.
	ErrDuplicateSubscription = errors.New("already subscribed")

	// ErrSubscriptionNotFound is returned when removing or editing a subscription that does not exist.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrInvalidAddress is returned for an address that is malformed for its chain.
	ErrInvalidAddress = errors.New("invalid address")
)
