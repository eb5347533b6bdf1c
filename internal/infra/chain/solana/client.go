package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

// PoolResolver finds the main liquidity pool of a token.
type PoolResolver interface {
	PairAddress(ctx context.Context, chain domain.Chain, token string) (string, error)
}

// Config selects the commitment level used for reads.
type Config struct {
	Commitment string
	// FinalizedOnly drops signatures that have not reached finalized.
	FinalizedOnly bool
}

// Client reads wallet history over Solana JSON-RPC.
type Client struct {
	exec  provider.Executor
	cfg   Config
	pools PoolResolver
	log   *slog.Logger
}

// NewClient creates a client. pools may be nil.
func NewClient(exec provider.Executor, cfg Config, pools PoolResolver, log *slog.Logger) *Client {
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{exec: exec, cfg: cfg, pools: pools, log: log}
}

// Signatures returns up to limit signatures, newest first. A JSON-RPC error
// yields an empty list.
func (c *Client) Signatures(ctx context.Context, address string, limit int) ([]string, error) {
	op := provider.Operation{
		Name: "getSignaturesForAddress",
		Params: []any{address, map[string]any{
			"limit":      limit,
			"commitment": c.cfg.Commitment,
		}},
	}
	raw, err := c.exec.Execute(ctx, op)
	if err != nil {
		var rpcErr *provider.RPCError
		if errors.As(err, &rpcErr) {
			c.log.Debug("getSignaturesForAddress returned error", "address", address, "error", rpcErr)
			return nil, nil
		}
		return nil, fmt.Errorf("getSignaturesForAddress failed: %w", err)
	}
	if provider.IsEmpty(raw) {
		return nil, nil
	}

	var infos []signatureInfo
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, fmt.Errorf("invalid signatures response: %w", err)
	}

	sigs := make([]string, 0, len(infos))
	for _, info := range infos {
		if c.cfg.FinalizedOnly && info.ConfirmationStatus != "finalized" {
			continue
		}
		sigs = append(sigs, info.Signature)
	}
	return sigs, nil
}

// Transaction fetches a signature and extracts the wallet's token balance
// change. It returns nil when the transaction is unknown, failed, or carries
// no usable token balances.
func (c *Client) Transaction(ctx context.Context, walletAddress, signature string) (*domain.TransactionData, error) {
	op := provider.Operation{
		Name: "getTransaction",
		Params: []any{signature, map[string]any{
			"commitment":                     c.cfg.Commitment,
			"maxSupportedTransactionVersion": 0,
			"encoding":                       "json",
		}},
	}
	raw, err := c.exec.Execute(ctx, op)
	if err != nil {
		var rpcErr *provider.RPCError
		if errors.As(err, &rpcErr) {
			c.log.Debug("getTransaction returned error", "signature", signature, "error", rpcErr)
			return nil, nil
		}
		return nil, fmt.Errorf("getTransaction failed: %w", err)
	}
	if provider.IsEmpty(raw) {
		return nil, nil
	}

	var tx transactionResult
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("invalid transaction response: %w", err)
	}
	if tx.Meta == nil || tx.Meta.Failed() {
		return nil, nil
	}

	token := TokenAddress(tx.Meta)
	if token == "" {
		return nil, nil
	}

	amount, ok := c.extractChange(ctx, tx.Meta, walletAddress, token)
	if !ok {
		c.log.Debug("No balance change found", "signature", signature, "wallet", walletAddress)
		return nil, nil
	}

	data := &domain.TransactionData{
		WalletAddress: walletAddress,
		TokenAddress:  token,
		TokenAmount:   amount,
		Signature:     signature,
	}
	if tx.BlockTime != nil {
		data.Timestamp = time.Unix(*tx.BlockTime, 0).UTC()
	}
	return data, nil
}

func (c *Client) extractChange(ctx context.Context, meta *TransactionMeta, wallet, token string) (float64, bool) {
	if amount, ok := BalanceChange(meta, wallet, token); ok {
		return amount, true
	}
	if c.pools != nil {
		pool, err := c.pools.PairAddress(ctx, domain.ChainSolana, token)
		if err != nil {
			c.log.Debug("Pool lookup failed", "token", token, "error", err)
		}
		if amount, ok := BalanceChange(meta, pool, token); ok {
			return amount, true
		}
	}
	return FallbackChange(meta, token)
}
