package models

import (
	"github.com/shopspring/decimal"
)

// UserBalance is a transport-facing view of one asset balance.
type UserBalance struct {
	Asset     string          `json:"asset"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

// QuoteResult is the result of pricing a conversion.
type QuoteResult struct {
	Success   bool   `json:"success"`
	Quote     *Quote `json:"quote,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SwapResult is the result of a swap operation.
type SwapResult struct {
	Success   bool   `json:"success"`
	Swap      *Swap  `json:"swap,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WithdrawalResult is the result of a withdrawal operation.
type WithdrawalResult struct {
	Success    bool        `json:"success"`
	Withdrawal *Withdrawal `json:"withdrawal,omitempty"`
	ErrorKind  string      `json:"error_kind,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// AddressResult is the result of creating a deposit address.
type AddressResult struct {
	Success   bool     `json:"success"`
	Address   *Address `json:"address,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Error     string   `json:"error,omitempty"`
}
