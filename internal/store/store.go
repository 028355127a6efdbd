package store

import (
	"context"
	"time"

	"asset-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

// CreateSwapParams contains the parameters for opening a swap settlement.
type CreateSwapParams struct {
	UserId           string
	FromAsset        string
	ToAsset          string
	FromAmount       decimal.Decimal
	ExpectedToAmount decimal.Decimal
	FeeAsset         string
	FeeAmount        decimal.Decimal
	Route            string
	Provider         string
}

// CreateWithdrawalParams contains the parameters for opening a withdrawal
// settlement. Amount and Fee are locked together.
type CreateWithdrawalParams struct {
	UserId      string
	Asset       string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	Destination string
}

// RecordDepositParams contains the parameters for recording an observed
// inbound transaction.
type RecordDepositParams struct {
	UserId      string
	Asset       string
	Amount      decimal.Decimal
	FromAddress string
	ToAddress   string
	TxId        string
	OutputIndex int
}

// StoreAddressParams contains the parameters for storing a derived deposit
// address.
type StoreAddressParams struct {
	UserId         string
	Asset          string
	Network        string
	Address        string
	DerivationPath string
	AddressIndex   uint32
	Change         bool
}

// Store defines the persistence contract consumed by the settlement engines
// and the deposit tracker. *database.Service is the canonical implementation.
type Store interface {
	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByChatId(ctx context.Context, chatId string) (*models.User, error)
	CreateUser(ctx context.Context, userId, chatId, displayName string) (*models.User, error)

	// --- Addresses ---
	StoreAddress(ctx context.Context, params StoreAddressParams) (*models.Address, error)
	GetUserAddresses(ctx context.Context, userId string) ([]models.Address, error)
	FindUserByAddress(ctx context.Context, address string) (*models.User, *models.Address, error)

	// --- Balance ledger ---
	GetBalance(ctx context.Context, userId, asset string) (*models.Balance, error)
	GetAllBalances(ctx context.Context, userId string) ([]models.Balance, error)
	Credit(ctx context.Context, userId, asset string, amount decimal.Decimal) error
	Debit(ctx context.Context, userId, asset string, amount decimal.Decimal) error
	Lock(ctx context.Context, userId, asset string, amount decimal.Decimal) error
	Unlock(ctx context.Context, userId, asset string, amount decimal.Decimal) error

	// --- Deposits ---
	RecordDeposit(ctx context.Context, params RecordDepositParams) (*models.Deposit, error)
	ConfirmDeposit(ctx context.Context, depositId string) (*models.Deposit, error)
	GetDepositByTx(ctx context.Context, txId string, outputIndex int) (*models.Deposit, error)

	// --- Swaps ---
	CreateSwap(ctx context.Context, params CreateSwapParams) (*models.Swap, error)
	CompleteSwap(ctx context.Context, swapId string, realizedToAmount decimal.Decimal) (*models.Swap, error)
	FailSwap(ctx context.Context, swapId, reason string) (*models.Swap, error)
	GetSwap(ctx context.Context, swapId string) (*models.Swap, error)

	// --- Withdrawals ---
	CreateWithdrawal(ctx context.Context, params CreateWithdrawalParams) (*models.Withdrawal, error)
	MarkWithdrawalBroadcast(ctx context.Context, withdrawalId, txId string) (*models.Withdrawal, error)
	CompleteWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error)
	FailWithdrawal(ctx context.Context, withdrawalId, reason string, releaseFunds bool) (*models.Withdrawal, error)
	ReleaseWithdrawalFunds(ctx context.Context, withdrawalId string) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error)

	// --- Misc ---
	GetMostRecentDepositTime(ctx context.Context) (time.Time, error)

	// --- Lifecycle ---
	Close()
}
