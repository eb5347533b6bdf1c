package solana

import "math"

// TokenAddress returns the first non-wSOL mint among the pre balances.
func TokenAddress(meta *TransactionMeta) string {
	for _, b := range meta.PreTokenBalances {
		if b.Mint != WrappedSOL {
			return b.Mint
		}
	}
	return ""
}

func findBalance(balances []TokenBalance, owner, mint string) (TokenBalance, bool) {
	for _, b := range balances {
		if b.Owner == owner && b.Mint == mint {
			return b, true
		}
	}
	return TokenBalance{}, false
}

// BalanceChange returns post minus pre for the owner's account of mint.
// A missing pre entry counts as zero when a post entry exists, since the
// account was opened by this transaction.
func BalanceChange(meta *TransactionMeta, owner, mint string) (float64, bool) {
	if owner == "" || mint == "" || mint == WrappedSOL {
		return 0, false
	}
	post, ok := findBalance(meta.PostTokenBalances, owner, mint)
	if !ok {
		return 0, false
	}
	pre, ok := findBalance(meta.PreTokenBalances, owner, mint)
	if !ok {
		return post.UITokenAmount.value(), true
	}
	return post.UITokenAmount.value() - pre.UITokenAmount.value(), true
}

// FallbackChange scans the pre balance owners of mint and returns the
// absolute value of the first nonzero change.
func FallbackChange(meta *TransactionMeta, mint string) (float64, bool) {
	for _, b := range meta.PreTokenBalances {
		if b.Mint != mint {
			continue
		}
		change, ok := BalanceChange(meta, b.Owner, mint)
		if ok && change != 0 {
			return math.Abs(change), true
		}
	}
	return 0, false
}
