package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordDeposit inserts a PENDING deposit row for an observed inbound
// transaction. Re-observation of the same (tx id, output index) returns
// store.ErrDuplicateDeposit; callers treat it as already-processed, not as a
// failure.
func (s *Service) RecordDeposit(ctx context.Context, params store.RecordDepositParams) (*models.Deposit, error) {
	if err := requirePositive(params.Amount); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertDeposit,
		id, params.UserId, params.Asset, params.Amount.String(),
		params.FromAddress, params.ToAddress, params.TxId, params.OutputIndex,
		models.DepositStatusPending)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			zap.L().Debug("Deposit already recorded",
				zap.String("tx_id", params.TxId),
				zap.Int("output_index", params.OutputIndex))
			return nil, fmt.Errorf("%w: tx %s output %d",
				store.ErrDuplicateDeposit, params.TxId, params.OutputIndex)
		}
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	zap.L().Info("Deposit recorded",
		zap.String("deposit_id", id),
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("amount", params.Amount.String()),
		zap.String("tx_id", params.TxId),
		zap.Int("output_index", params.OutputIndex))

	return s.getDeposit(ctx, s.db.QueryRowContext(ctx, queryGetDepositById, id))
}

// ConfirmDeposit credits the deposit amount to the user's available balance
// and marks the deposit CONFIRMED, in one transaction. Confirming an
// already-confirmed deposit is a no-op returning the row unchanged.
func (s *Service) ConfirmDeposit(ctx context.Context, depositId string) (*models.Deposit, error) {
	var confirmed *models.Deposit
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		deposit, err := s.getDeposit(ctx, tx.QueryRowContext(ctx, queryGetDepositById, depositId))
		if err != nil {
			return err
		}
		if deposit.Status == models.DepositStatusConfirmed {
			// Idempotent: the balance was credited exactly once already.
			confirmed = deposit
			return nil
		}

		if err := applyBalanceDelta(ctx, tx, deposit.UserId, deposit.Asset, deposit.Amount, decimal.Zero); err != nil {
			return err
		}

		now := time.Now().UTC()
		result, err := tx.ExecContext(ctx, queryConfirmDeposit,
			models.DepositStatusConfirmed, now, depositId, models.DepositStatusPending)
		if err != nil {
			return fmt.Errorf("failed to confirm deposit: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			// Raced with another confirmation inside the same process; the
			// per-user lock should prevent this.
			return fmt.Errorf("deposit %s: %w", depositId, store.ErrConcurrentModification)
		}

		deposit.Status = models.DepositStatusConfirmed
		deposit.ConfirmedAt = &now
		confirmed = deposit
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit confirmed",
		zap.String("deposit_id", confirmed.Id),
		zap.String("user_id", confirmed.UserId),
		zap.String("asset", confirmed.Asset),
		zap.String("amount", confirmed.Amount.String()))
	return confirmed, nil
}

// GetDepositByTx looks a deposit up by its (tx id, output index) key.
func (s *Service) GetDepositByTx(ctx context.Context, txId string, outputIndex int) (*models.Deposit, error) {
	return s.getDeposit(ctx, s.db.QueryRowContext(ctx, queryGetDepositByTx, txId, outputIndex))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Service) getDeposit(_ context.Context, row rowScanner) (*models.Deposit, error) {
	var d models.Deposit
	var amountStr string
	var confirmedAt sql.NullTime
	err := row.Scan(&d.Id, &d.UserId, &d.Asset, &amountStr, &d.FromAddress, &d.ToAddress,
		&d.TxId, &d.OutputIndex, &d.Status, &d.CreatedAt, &confirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deposit not found: %w", err)
		}
		return nil, fmt.Errorf("failed to scan deposit: %w", err)
	}
	if d.Amount, err = parseAmount(amountStr); err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		d.ConfirmedAt = &confirmedAt.Time
	}
	return &d, nil
}
