// Package swap settles asset conversions against the balance ledger. A
// swap debits the input asset when it is created, then either credits the
// realized output on completion or refunds the input on failure. Balances
// never go negative at any point in between.
package swap

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/quotes"
	"asset-settlement-go/internal/store"
	"asset-settlement-go/internal/userlock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Engine struct {
	store      store.Store
	locks      *userlock.Registry
	aggregator *quotes.Aggregator
	metrics    *metrics.Metrics
}

func NewEngine(st store.Store, locks *userlock.Registry, aggregator *quotes.Aggregator, m *metrics.Metrics) *Engine {
	return &Engine{
		store:      st,
		locks:      locks,
		aggregator: aggregator,
		metrics:    m,
	}
}

// BestQuote prices a conversion without touching the ledger.
func (e *Engine) BestQuote(ctx context.Context, fromAsset, toAsset string, fromAmount decimal.Decimal) (*models.Quote, error) {
	return e.aggregator.BestQuote(ctx, fromAsset, toAsset, fromAmount)
}

// Create opens a swap from a quote. The input amount moves from available
// to locked and the debit happens in the same storage transaction as the
// swap insert, under the user's exclusive lock.
func (e *Engine) Create(ctx context.Context, userId string, quote *models.Quote) (*models.Swap, error) {
	release, err := e.locks.Acquire(ctx, userId)
	if err != nil {
		return nil, err
	}
	defer release()

	swap, err := e.store.CreateSwap(ctx, store.CreateSwapParams{
		UserId:           userId,
		FromAsset:        quote.FromAsset,
		ToAsset:          quote.ToAsset,
		FromAmount:       quote.FromAmount,
		ExpectedToAmount: quote.ToAmount,
		FeeAsset:         quote.FeeAsset,
		FeeAmount:        quote.FeeAmount,
		Route:            quote.Route,
		Provider:         quote.Provider,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Swap created",
		zap.String("swap_id", swap.Id),
		zap.String("user_id", userId),
		zap.String("provider", quote.Provider),
		zap.String("from", fmt.Sprintf("%s %s", quote.FromAmount, quote.FromAsset)),
		zap.String("expected_to", fmt.Sprintf("%s %s", quote.ToAmount, quote.ToAsset)))
	return swap, nil
}

// Execute runs a pending swap against its provider and settles the result.
// Provider failure fails the swap and refunds the locked input.
func (e *Engine) Execute(ctx context.Context, swapId string, quote *models.Quote) (*models.Swap, error) {
	pending, err := e.store.GetSwap(ctx, swapId)
	if err != nil {
		return nil, err
	}
	if pending.Status != models.SwapStatusPending {
		return nil, fmt.Errorf("swap %s is %s: %w", swapId, string(pending.Status), store.ErrNotPending)
	}

	provider, err := e.aggregator.Provider(pending.Provider)
	if err != nil {
		return nil, err
	}

	realized, err := provider.ExecuteSwap(ctx, quote)
	if err != nil {
		zap.L().Error("Swap execution failed, refunding",
			zap.String("swap_id", swapId),
			zap.String("provider", pending.Provider),
			zap.Error(err))
		failed, failErr := e.Fail(ctx, swapId, err.Error())
		if failErr != nil {
			return nil, fmt.Errorf("swap %s failed and could not be refunded: %w", swapId, failErr)
		}
		return failed, nil
	}

	return e.Complete(ctx, swapId, realized)
}

// Complete settles a pending swap: the locked input is consumed and the
// realized output amount is credited, atomically.
func (e *Engine) Complete(ctx context.Context, swapId string, realizedToAmount decimal.Decimal) (*models.Swap, error) {
	swap, err := e.store.GetSwap(ctx, swapId)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.Acquire(ctx, swap.UserId)
	if err != nil {
		return nil, err
	}
	defer release()

	completed, err := e.store.CompleteSwap(ctx, swapId, realizedToAmount)
	if err != nil {
		return nil, err
	}
	e.recordSettled(models.SwapStatusCompleted)

	zap.L().Info("Swap completed",
		zap.String("swap_id", swapId),
		zap.String("user_id", swap.UserId),
		zap.String("realized", fmt.Sprintf("%s %s", realizedToAmount, swap.ToAsset)))
	return completed, nil
}

// Fail refunds a pending swap: the locked input returns to available.
func (e *Engine) Fail(ctx context.Context, swapId, reason string) (*models.Swap, error) {
	swap, err := e.store.GetSwap(ctx, swapId)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.Acquire(ctx, swap.UserId)
	if err != nil {
		return nil, err
	}
	defer release()

	failed, err := e.store.FailSwap(ctx, swapId, reason)
	if err != nil {
		return nil, err
	}
	e.recordSettled(models.SwapStatusFailed)

	zap.L().Warn("Swap failed",
		zap.String("swap_id", swapId),
		zap.String("user_id", swap.UserId),
		zap.String("reason", reason))
	return failed, nil
}

func (e *Engine) recordSettled(status models.SwapStatus) {
	if e.metrics != nil {
		e.metrics.SwapsSettled.WithLabelValues(string(status)).Inc()
	}
}
