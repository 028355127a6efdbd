// Package api is the transport-facing facade over the settlement engines.
// Expected domain failures come back as structured results with a
// machine-readable error kind; only infrastructure problems surface as Go
// errors.
package api

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"
	"asset-settlement-go/internal/swap"
	"asset-settlement-go/internal/wallet"
	"asset-settlement-go/internal/withdraw"

	"github.com/shopspring/decimal"
)

type SettlementService struct {
	db          store.Store
	swaps       *swap.Engine
	withdrawals *withdraw.Engine
	wallets     *wallet.Service
}

func NewSettlementService(db store.Store, swaps *swap.Engine, withdrawals *withdraw.Engine, wallets *wallet.Service) *SettlementService {
	return &SettlementService{
		db:          db,
		swaps:       swaps,
		withdrawals: withdrawals,
		wallets:     wallets,
	}
}

func (s *SettlementService) HealthCheck(ctx context.Context) error {
	_, err := s.db.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// GetBalances returns every asset balance for the user, including zero
// entries created by earlier activity.
func (s *SettlementService) GetBalances(ctx context.Context, userId string) ([]models.UserBalance, error) {
	balances, err := s.db.GetAllBalances(ctx, userId)
	if err != nil {
		return nil, err
	}

	result := make([]models.UserBalance, len(balances))
	for i, b := range balances {
		result[i] = models.UserBalance{
			Asset:     b.Asset,
			Available: b.Available,
			Locked:    b.Locked,
			Total:     b.Total(),
		}
	}
	return result, nil
}

// RequestQuote prices a conversion without touching the ledger.
func (s *SettlementService) RequestQuote(ctx context.Context, fromAsset, toAsset string, fromAmount decimal.Decimal) *models.QuoteResult {
	quote, err := s.swaps.BestQuote(ctx, fromAsset, toAsset, fromAmount)
	if err != nil {
		return &models.QuoteResult{
			ErrorKind: string(store.KindOf(err)),
			Error:     err.Error(),
		}
	}
	return &models.QuoteResult{Success: true, Quote: quote}
}

// CreateSwap opens a swap from a previously obtained quote.
func (s *SettlementService) CreateSwap(ctx context.Context, userId string, quote *models.Quote) *models.SwapResult {
	created, err := s.swaps.Create(ctx, userId, quote)
	if err != nil {
		return &models.SwapResult{
			ErrorKind: string(store.KindOf(err)),
			Error:     err.Error(),
		}
	}
	return &models.SwapResult{Success: true, Swap: created}
}

// ExecuteSwap runs a pending swap against its provider.
func (s *SettlementService) ExecuteSwap(ctx context.Context, swapId string, quote *models.Quote) *models.SwapResult {
	executed, err := s.swaps.Execute(ctx, swapId, quote)
	if err != nil {
		return &models.SwapResult{
			ErrorKind: string(store.KindOf(err)),
			Error:     err.Error(),
		}
	}
	return &models.SwapResult{
		Success: executed.Status == models.SwapStatusCompleted,
		Swap:    executed,
	}
}

// CreateWithdrawal opens a withdrawal with amount plus estimated fee
// locked.
func (s *SettlementService) CreateWithdrawal(ctx context.Context, userId, asset, destination string, amount decimal.Decimal) *models.WithdrawalResult {
	created, err := s.withdrawals.Create(ctx, userId, asset, destination, amount)
	if err != nil {
		return &models.WithdrawalResult{
			ErrorKind: string(store.KindOf(err)),
			Error:     err.Error(),
		}
	}
	return &models.WithdrawalResult{Success: true, Withdrawal: created}
}

// ExecuteWithdrawal signs and broadcasts a pending withdrawal.
func (s *SettlementService) ExecuteWithdrawal(ctx context.Context, withdrawalId, keyId string) *models.WithdrawalResult {
	executed, err := s.withdrawals.Execute(ctx, withdrawalId, keyId)
	if err != nil {
		return &models.WithdrawalResult{
			ErrorKind: string(store.KindOf(err)),
			Error:     err.Error(),
		}
	}
	return &models.WithdrawalResult{
		Success:    executed.Status != models.WithdrawalStatusFailed,
		Withdrawal: executed,
	}
}

// CreateDepositAddress derives and stores the next deposit address for the
// user and asset.
func (s *SettlementService) CreateDepositAddress(ctx context.Context, userId, asset string) *models.AddressResult {
	address, err := s.wallets.CreateAddress(ctx, userId, asset)
	if err != nil {
		return &models.AddressResult{
			ErrorKind: string(store.KindOf(err)),
			Error:     err.Error(),
		}
	}
	return &models.AddressResult{Success: true, Address: address}
}
