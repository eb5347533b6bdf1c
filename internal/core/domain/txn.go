package domain

import (
	"time"
)

// Transaction is a persisted wallet signature. Rows whose enrichment failed
// only carry the wallet and the signature.
type Transaction struct {
	ID           int64
	WalletID     int64
	CoinID       int64
	TokenAddress string
	Amount       float64
	Price        float64
	TotalCost    float64
	Timestamp    time.Time
	Signature    string
	Sent         bool
}

// IsPlaceholder reports whether the row was written without enrichment.
func (t *Transaction) IsPlaceholder() bool {
	return t.TokenAddress == ""
}

// TransactionData is a parsed token balance change for a tracked wallet.
type TransactionData struct {
	WalletID      int64
	WalletAddress string
	TokenAddress  string
	TokenAmount   float64
	Timestamp     time.Time
	Signature     string
}

// Record converts the parsed data into a storable row.
func (d TransactionData) Record() *Transaction {
	return &Transaction{
		WalletID:     d.WalletID,
		TokenAddress: d.TokenAddress,
		Amount:       d.TokenAmount,
		Timestamp:    d.Timestamp,
		Signature:    d.Signature,
	}
}

// TxKey identifies a transaction row.
type TxKey struct {
	WalletID  int64
	Signature string
}
