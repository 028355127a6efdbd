package withdraw

import (
	"context"
	"errors"
	"fmt"

	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/signing"
	"asset-settlement-go/internal/store"
	"asset-settlement-go/internal/userlock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine drives withdrawals through their lifecycle. Ledger effects follow
// a fixed shape: create locks amount plus fee, completion consumes the
// locked total, and failure before broadcast refunds it. After a signing
// rejection the funds stay locked until an operator releases them, because
// the signed transaction may still exist somewhere.
type Engine struct {
	store    store.Store
	locks    *userlock.Registry
	handlers *Registry
	gateway  signing.Gateway
	metrics  *metrics.Metrics
	dryRun   bool
}

func NewEngine(st store.Store, locks *userlock.Registry, handlers *Registry, gateway signing.Gateway, m *metrics.Metrics, dryRun bool) *Engine {
	return &Engine{
		store:    st,
		locks:    locks,
		handlers: handlers,
		gateway:  gateway,
		metrics:  m,
		dryRun:   dryRun,
	}
}

// EstimateFee prices a prospective withdrawal without touching the ledger.
func (e *Engine) EstimateFee(ctx context.Context, asset, destination string, amount decimal.Decimal) (*models.FeeEstimate, error) {
	handler, err := e.handlers.Handler(asset)
	if err != nil {
		return nil, err
	}
	if !handler.ValidateAddress(destination) {
		return nil, fmt.Errorf("destination %s is not a valid %s address: %w", destination, handler.Chain(), store.ErrInvalidAddress)
	}
	return handler.EstimateFee(ctx, asset, destination, amount)
}

// Create validates the destination, estimates the network fee and opens a
// pending withdrawal with amount plus fee locked, under the user's
// exclusive lock.
func (e *Engine) Create(ctx context.Context, userId, asset, destination string, amount decimal.Decimal) (*models.Withdrawal, error) {
	handler, err := e.handlers.Handler(asset)
	if err != nil {
		return nil, err
	}
	if !handler.ValidateAddress(destination) {
		return nil, fmt.Errorf("destination %s is not a valid %s address: %w", destination, handler.Chain(), store.ErrInvalidAddress)
	}

	estimate, err := handler.EstimateFee(ctx, asset, destination, amount)
	if err != nil {
		return nil, fmt.Errorf("unable to estimate fee: %w", err)
	}

	release, err := e.locks.Acquire(ctx, userId)
	if err != nil {
		return nil, err
	}
	defer release()

	withdrawal, err := e.store.CreateWithdrawal(ctx, store.CreateWithdrawalParams{
		UserId:      userId,
		Asset:       asset,
		Amount:      amount,
		Fee:         estimate.Amount,
		Destination: destination,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal created",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.String("amount", amount.String()),
		zap.String("fee", estimate.Amount.String()),
		zap.String("destination", destination))
	return withdrawal, nil
}

// Execute builds, signs and broadcasts a pending withdrawal.
//
// A signing failure fails the withdrawal with funds still locked; whether
// a signed transaction escaped cannot be known, so releasing is an
// explicit operator action (ReleaseFunds). A broadcast failure refunds
// immediately since nothing signed left the process. Handled failures
// return the failed withdrawal with a nil error; callers branch on
// Status. In dry-run mode execution stops after signing and the
// withdrawal stays pending.
func (e *Engine) Execute(ctx context.Context, withdrawalId, keyId string) (*models.Withdrawal, error) {
	withdrawal, err := e.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("withdrawal %s is %s: %w", withdrawalId, string(withdrawal.Status), store.ErrNotPending)
	}

	handler, err := e.handlers.Handler(withdrawal.Asset)
	if err != nil {
		return nil, err
	}

	unsigned, err := handler.BuildTransaction(ctx, withdrawal, keyId)
	if err != nil {
		return nil, fmt.Errorf("unable to build transaction for withdrawal %s: %w", withdrawalId, err)
	}

	sig, err := e.gateway.Sign(ctx, unsigned.SigningRequest)
	if err != nil {
		if errors.Is(err, store.ErrNonCustodialMode) {
			return nil, err
		}
		zap.L().Error("Signing failed, keeping withdrawal funds locked",
			zap.String("withdrawal_id", withdrawalId),
			zap.Error(err))
		failed, failErr := e.fail(ctx, withdrawal, fmt.Sprintf("signing failed: %v", err), false)
		if failErr != nil {
			return nil, failErr
		}
		return failed, nil
	}

	signed, err := handler.ApplySignature(unsigned, sig)
	if err != nil {
		failed, failErr := e.fail(ctx, withdrawal, fmt.Sprintf("signature application failed: %v", err), false)
		if failErr != nil {
			return nil, failErr
		}
		return failed, nil
	}

	if e.dryRun {
		zap.L().Info("Dry run: withdrawal signed, skipping broadcast",
			zap.String("withdrawal_id", withdrawalId),
			zap.String("tx_id", signed.TxId))
		return withdrawal, nil
	}

	if err := handler.BroadcastTransaction(ctx, signed); err != nil {
		zap.L().Error("Broadcast failed, refunding withdrawal",
			zap.String("withdrawal_id", withdrawalId),
			zap.Error(err))
		failed, failErr := e.fail(ctx, withdrawal, fmt.Sprintf("broadcast failed: %v", err), true)
		if failErr != nil {
			return nil, failErr
		}
		return failed, nil
	}

	broadcast, err := e.store.MarkWithdrawalBroadcast(ctx, withdrawalId, signed.TxId)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal broadcast",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("tx_id", signed.TxId))
	return broadcast, nil
}

// ResolveConfirmed completes a broadcast withdrawal, consuming the locked
// amount and fee.
func (e *Engine) ResolveConfirmed(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	withdrawal, err := e.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.Acquire(ctx, withdrawal.UserId)
	if err != nil {
		return nil, err
	}
	defer release()

	completed, err := e.store.CompleteWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	e.recordSettled(models.WithdrawalStatusCompleted)

	zap.L().Info("Withdrawal completed",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("user_id", withdrawal.UserId),
		zap.String("consumed", withdrawal.LockedTotal().String()))
	return completed, nil
}

// ResolveFailed fails a pending or broadcast withdrawal and refunds the
// locked funds. Use for failures where no signed transaction can reach the
// network, such as a rejected or dropped broadcast.
func (e *Engine) ResolveFailed(ctx context.Context, withdrawalId, reason string) (*models.Withdrawal, error) {
	withdrawal, err := e.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	return e.fail(ctx, withdrawal, reason, true)
}

// ReleaseFunds unlocks the funds of an already-failed withdrawal. This is
// the operator follow-up to a signing failure, once it is established that
// no transaction reached the network.
func (e *Engine) ReleaseFunds(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	withdrawal, err := e.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.Acquire(ctx, withdrawal.UserId)
	if err != nil {
		return nil, err
	}
	defer release()

	released, err := e.store.ReleaseWithdrawalFunds(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal funds released",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("user_id", withdrawal.UserId),
		zap.String("released", withdrawal.LockedTotal().String()))
	return released, nil
}

func (e *Engine) fail(ctx context.Context, withdrawal *models.Withdrawal, reason string, releaseFunds bool) (*models.Withdrawal, error) {
	release, err := e.locks.Acquire(ctx, withdrawal.UserId)
	if err != nil {
		return nil, err
	}
	defer release()

	failed, err := e.store.FailWithdrawal(ctx, withdrawal.Id, reason, releaseFunds)
	if err != nil {
		return nil, err
	}
	e.recordSettled(models.WithdrawalStatusFailed)
	return failed, nil
}

func (e *Engine) recordSettled(status models.WithdrawalStatus) {
	if e.metrics != nil {
		e.metrics.WithdrawalsSettled.WithLabelValues(string(status)).Inc()
	}
}
