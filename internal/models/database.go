package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system. Users are created on first contact
// and never deleted.
type User struct {
	Id          string    `db:"id"`
	ChatId      string    `db:"chat_id"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Address represents a user's deposit address
type Address struct {
	Id             string    `db:"id"`
	UserId         string    `db:"user_id"`
	Asset          string    `db:"asset"`
	Network        string    `db:"network"`
	Address        string    `db:"address"`
	DerivationPath string    `db:"derivation_path"`
	AddressIndex   uint32    `db:"address_index"`
	Change         bool      `db:"change"`
	CreatedAt      time.Time `db:"created_at"`
}

// Balance represents the current balance state for a (user, asset) pair.
// The total balance is always available + locked; it is never stored
// independently.
type Balance struct {
	Id        string          `db:"id"`
	UserId    string          `db:"user_id"`
	Asset     string          `db:"asset"`
	Available decimal.Decimal `db:"available"`
	Locked    decimal.Decimal `db:"locked"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Total returns the derived total balance.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// DepositStatus enumerates the deposit lifecycle.
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
)

// Deposit represents one observed inbound transaction, unique per
// (external tx id, output index).
type Deposit struct {
	Id          string          `db:"id"`
	UserId      string          `db:"user_id"`
	Asset       string          `db:"asset"`
	Amount      decimal.Decimal `db:"amount"`
	FromAddress string          `db:"from_address"`
	ToAddress   string          `db:"to_address"`
	TxId        string          `db:"tx_id"`
	OutputIndex int             `db:"output_index"`
	Status      DepositStatus   `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	ConfirmedAt *time.Time      `db:"confirmed_at"`
}

// SwapStatus enumerates the swap lifecycle. Terminal states are reached at
// most once.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusFailed    SwapStatus = "failed"
)

// Swap represents a swap settlement. While PENDING, exactly FromAmount is
// held in the locked balance of (user, from_asset). ToAmount holds the
// expected amount until completion stores the realized amount.
type Swap struct {
	Id          string          `db:"id"`
	UserId      string          `db:"user_id"`
	FromAsset   string          `db:"from_asset"`
	ToAsset     string          `db:"to_asset"`
	FromAmount  decimal.Decimal `db:"from_amount"`
	ToAmount    decimal.Decimal `db:"to_amount"`
	FeeAsset    string          `db:"fee_asset"`
	FeeAmount   decimal.Decimal `db:"fee_amount"`
	Route       string          `db:"route"`
	Provider    string          `db:"provider"`
	Status      SwapStatus      `db:"status"`
	Error       string          `db:"error"`
	CreatedAt   time.Time       `db:"created_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// WithdrawalStatus enumerates the withdrawal lifecycle.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusBroadcast WithdrawalStatus = "broadcast"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal represents a withdrawal settlement. Amount + Fee are held in
// the locked balance until a terminal state resolves them. TxId is empty
// until the transaction has been broadcast.
type Withdrawal struct {
	Id          string           `db:"id"`
	UserId      string           `db:"user_id"`
	Asset       string           `db:"asset"`
	Amount      decimal.Decimal  `db:"amount"`
	Fee         decimal.Decimal  `db:"fee"`
	Destination string           `db:"destination"`
	TxId        string           `db:"tx_id"`
	Status      WithdrawalStatus `db:"status"`
	Error       string           `db:"error"`
	// FundsReleased records whether the reservation has been returned to the
	// available balance. A FAILED withdrawal after a signing rejection keeps
	// its funds locked until an operator releases them.
	FundsReleased bool      `db:"funds_released"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// LockedTotal returns the amount reserved for this withdrawal.
func (w Withdrawal) LockedTotal() decimal.Decimal {
	return w.Amount.Add(w.Fee)
}
