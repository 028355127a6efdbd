package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a time-bounded price offer from a route provider. Quotes are
// never persisted; they are consumed immediately or discarded.
type Quote struct {
	Provider   string
	FromAsset  string
	ToAsset    string
	FromAmount decimal.Decimal
	ToAmount   decimal.Decimal
	FeeAsset   string
	FeeAmount  decimal.Decimal
	Slippage   decimal.Decimal
	Route      string
	CreatedAt  time.Time
	TTL        time.Duration
}

// IsExpired reports whether the quote is past its time-to-live.
func (q Quote) IsExpired(now time.Time) bool {
	return now.After(q.CreatedAt.Add(q.TTL))
}

// TransactionInfo is an inbound transaction as reported by a chain scanner.
type TransactionInfo struct {
	TxId          string
	OutputIndex   int
	Asset         string
	FromAddress   string
	ToAddress     string
	Amount        decimal.Decimal
	Confirmations int
	BlockHeight   int64
}

// AddressInfo is a derived deposit address as reported by an HD wallet
// provider.
type AddressInfo struct {
	Address        string
	DerivationPath string
	Index          uint32
	Change         bool
}

// FeeEstimate is a network fee estimate from a chain withdrawal handler.
type FeeEstimate struct {
	Asset                 string
	Amount                decimal.Decimal
	Priority              string
	EstimatedConfirmation time.Duration
}
