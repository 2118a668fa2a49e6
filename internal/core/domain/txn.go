package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single normalised on-chain transfer as produced by a fetcher.
// Values are immutable once fetched.
type Transaction struct {
	Hash        string          `json:"hash"`
	Chain       Chain           `json:"chain"`
	Timestamp   time.Time       `json:"timestamp"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	ValueNative decimal.Decimal `json:"value_native"`
	ValueUSD    float64         `json:"value_usd"`
	FeeUSD      float64         `json:"fee_usd"`
	Kind        TxKind          `json:"kind"`
	BlockNumber uint64          `json:"block_number"`
	TokenSymbol string          `json:"token_symbol,omitempty"`
}

type TxKind string

const (
	TxKindTransfer      TxKind = "transfer"
	TxKindTokenTransfer TxKind = "token_transfer"
	TxKindInternal      TxKind = "internal"
	TxKindPerpOpen      TxKind = "perp_open"
	TxKindPerpClose     TxKind = "perp_close"
)

// TxKey is the uniqueness key of a transaction.
type TxKey struct {
	Chain Chain
	Hash  string
}

func (t Transaction) Key() TxKey {
	return TxKey{Chain: t.Chain, Hash: t.Hash}
}
