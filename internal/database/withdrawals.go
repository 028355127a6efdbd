package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateWithdrawal locks amount + fee and inserts a PENDING withdrawal row
// in one transaction. If the lock fails no row is created.
func (s *Service) CreateWithdrawal(ctx context.Context, params store.CreateWithdrawalParams) (*models.Withdrawal, error) {
	if err := requirePositive(params.Amount); err != nil {
		return nil, err
	}
	if params.Fee.IsNegative() {
		return nil, fmt.Errorf("fee cannot be negative, got %s", params.Fee.String())
	}

	reserved := params.Amount.Add(params.Fee)
	id := uuid.New().String()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := applyBalanceDelta(ctx, tx, params.UserId, params.Asset,
			reserved.Neg(), reserved); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, queryInsertWithdrawal,
			id, params.UserId, params.Asset, params.Amount.String(), params.Fee.String(),
			params.Destination, models.WithdrawalStatusPending)
		if err != nil {
			return fmt.Errorf("failed to insert withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal created",
		zap.String("withdrawal_id", id),
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("amount", params.Amount.String()),
		zap.String("fee", params.Fee.String()),
		zap.String("destination", params.Destination))

	return s.GetWithdrawal(ctx, id)
}

// MarkWithdrawalBroadcast transitions PENDING -> BROADCAST and records the
// external transaction id. Balances are not touched; the reservation stays.
func (s *Service) MarkWithdrawalBroadcast(ctx context.Context, withdrawalId, txId string) (*models.Withdrawal, error) {
	result, err := s.db.ExecContext(ctx, queryMarkWithdrawalBroadcast,
		models.WithdrawalStatusBroadcast, txId, withdrawalId, models.WithdrawalStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to mark withdrawal broadcast: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("withdrawal %s: %w", withdrawalId, store.ErrNotPending)
	}

	zap.L().Info("Withdrawal broadcast",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("tx_id", txId))
	return s.GetWithdrawal(ctx, withdrawalId)
}

// CompleteWithdrawal resolves a BROADCAST withdrawal after on-chain
// confirmation: the locked reservation leaves the ledger entirely and the
// withdrawal becomes COMPLETED.
func (s *Service) CompleteWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawalById, withdrawalId))
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusBroadcast {
			return fmt.Errorf("withdrawal %s is %s: %w", withdrawalId, w.Status, store.ErrNotPending)
		}

		// Funds leave the ledger to the external chain: locked decreases,
		// available unchanged.
		if err := applyBalanceDelta(ctx, tx, w.UserId, w.Asset,
			decimal.Zero, w.LockedTotal().Neg()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, queryResolveWithdrawal,
			models.WithdrawalStatusCompleted, "", true, withdrawalId)
		if err != nil {
			return fmt.Errorf("failed to resolve withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal completed", zap.String("withdrawal_id", withdrawalId))
	return s.GetWithdrawal(ctx, withdrawalId)
}

// FailWithdrawal marks a withdrawal FAILED. When releaseFunds is true the
// full reservation is returned to the available balance; when false (signing
// rejections) the funds stay locked for operator follow-up and can be
// returned later with ReleaseWithdrawalFunds.
func (s *Service) FailWithdrawal(ctx context.Context, withdrawalId, reason string, releaseFunds bool) (*models.Withdrawal, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawalById, withdrawalId))
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusPending && w.Status != models.WithdrawalStatusBroadcast {
			return fmt.Errorf("withdrawal %s is %s: %w", withdrawalId, w.Status, store.ErrNotPending)
		}

		if releaseFunds {
			if err := applyBalanceDelta(ctx, tx, w.UserId, w.Asset,
				w.LockedTotal(), w.LockedTotal().Neg()); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, queryResolveWithdrawal,
			models.WithdrawalStatusFailed, reason, releaseFunds, withdrawalId)
		if err != nil {
			return fmt.Errorf("failed to resolve withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Withdrawal failed",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("reason", reason),
		zap.Bool("funds_released", releaseFunds))
	return s.GetWithdrawal(ctx, withdrawalId)
}

// ReleaseWithdrawalFunds returns the reservation of a FAILED withdrawal
// whose funds were kept locked (signing rejection follow-up). Releasing an
// already-released withdrawal is an error.
func (s *Service) ReleaseWithdrawalFunds(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawalById, withdrawalId))
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusFailed || w.FundsReleased {
			return fmt.Errorf("withdrawal %s is %s (funds released: %v): %w",
				withdrawalId, w.Status, w.FundsReleased, store.ErrNotPending)
		}

		if err := applyBalanceDelta(ctx, tx, w.UserId, w.Asset,
			w.LockedTotal(), w.LockedTotal().Neg()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, queryResolveWithdrawal,
			models.WithdrawalStatusFailed, w.Error, true, withdrawalId)
		if err != nil {
			return fmt.Errorf("failed to release withdrawal funds: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal funds released", zap.String("withdrawal_id", withdrawalId))
	return s.GetWithdrawal(ctx, withdrawalId)
}

// GetWithdrawal returns a withdrawal by id.
func (s *Service) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	return s.getWithdrawal(s.db.QueryRowContext(ctx, queryGetWithdrawalById, withdrawalId))
}

func (s *Service) getWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var amountStr, feeStr string
	err := row.Scan(&w.Id, &w.UserId, &w.Asset, &amountStr, &feeStr,
		&w.Destination, &w.TxId, &w.Status, &w.Error, &w.FundsReleased,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("withdrawal not found: %w", err)
		}
		return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
	}
	if w.Amount, err = parseAmount(amountStr); err != nil {
		return nil, err
	}
	if w.Fee, err = parseAmount(feeStr); err != nil {
		return nil, err
	}
	return &w, nil
}
