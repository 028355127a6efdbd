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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateSwap locks the source amount and inserts a PENDING swap row in one
// transaction. If the lock fails (insufficient available funds) no row is
// created.
func (s *Service) CreateSwap(ctx context.Context, params store.CreateSwapParams) (*models.Swap, error) {
	if err := requirePositive(params.FromAmount); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := applyBalanceDelta(ctx, tx, params.UserId, params.FromAsset,
			params.FromAmount.Neg(), params.FromAmount); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, queryInsertSwap,
			id, params.UserId, params.FromAsset, params.ToAsset,
			params.FromAmount.String(), params.ExpectedToAmount.String(),
			params.FeeAsset, params.FeeAmount.String(),
			params.Route, params.Provider, models.SwapStatusPending)
		if err != nil {
			return fmt.Errorf("failed to insert swap: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Swap created",
		zap.String("swap_id", id),
		zap.String("user_id", params.UserId),
		zap.String("from_asset", params.FromAsset),
		zap.String("to_asset", params.ToAsset),
		zap.String("from_amount", params.FromAmount.String()),
		zap.String("expected_to_amount", params.ExpectedToAmount.String()),
		zap.String("provider", params.Provider))

	return s.GetSwap(ctx, id)
}

// CompleteSwap resolves a PENDING swap: the locked source amount is released
// without returning to available, the destination asset is credited with the
// realized amount, and the swap becomes COMPLETED. All in one transaction so
// no concurrent reader observes funds that are neither locked nor credited.
func (s *Service) CompleteSwap(ctx context.Context, swapId string, realizedToAmount decimal.Decimal) (*models.Swap, error) {
	if err := requirePositive(realizedToAmount); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		swap, err := s.getSwap(tx.QueryRowContext(ctx, queryGetSwapById, swapId))
		if err != nil {
			return err
		}
		if swap.Status != models.SwapStatusPending {
			return fmt.Errorf("swap %s is %s: %w", swapId, swap.Status, store.ErrNotPending)
		}

		// Release the reservation: locked decreases, available unchanged.
		if err := applyBalanceDelta(ctx, tx, swap.UserId, swap.FromAsset,
			decimal.Zero, swap.FromAmount.Neg()); err != nil {
			return err
		}
		// Pay out the realized amount on the destination asset.
		if err := applyBalanceDelta(ctx, tx, swap.UserId, swap.ToAsset,
			realizedToAmount, decimal.Zero); err != nil {
			return err
		}
		return s.resolveSwap(ctx, tx, swapId, models.SwapStatusCompleted, realizedToAmount, "")
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Swap completed",
		zap.String("swap_id", swapId),
		zap.String("realized_to_amount", realizedToAmount.String()))
	return s.GetSwap(ctx, swapId)
}

// FailSwap resolves a PENDING swap by returning the full locked source
// amount to the available balance and marking the swap FAILED.
func (s *Service) FailSwap(ctx context.Context, swapId, reason string) (*models.Swap, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		swap, err := s.getSwap(tx.QueryRowContext(ctx, queryGetSwapById, swapId))
		if err != nil {
			return err
		}
		if swap.Status != models.SwapStatusPending {
			return fmt.Errorf("swap %s is %s: %w", swapId, swap.Status, store.ErrNotPending)
		}

		// Full refund: locked -> available.
		if err := applyBalanceDelta(ctx, tx, swap.UserId, swap.FromAsset,
			swap.FromAmount, swap.FromAmount.Neg()); err != nil {
			return err
		}
		return s.resolveSwap(ctx, tx, swapId, models.SwapStatusFailed, swap.ToAmount, reason)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Swap failed",
		zap.String("swap_id", swapId),
		zap.String("reason", reason))
	return s.GetSwap(ctx, swapId)
}

func (s *Service) resolveSwap(ctx context.Context, tx *sql.Tx, swapId string, status models.SwapStatus, toAmount decimal.Decimal, reason string) error {
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryResolveSwap,
		status, toAmount.String(), reason, now, swapId, models.SwapStatusPending)
	if err != nil {
		return fmt.Errorf("failed to resolve swap: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("swap %s: %w", swapId, store.ErrNotPending)
	}
	return nil
}

// GetSwap returns a swap by id.
func (s *Service) GetSwap(ctx context.Context, swapId string) (*models.Swap, error) {
	return s.getSwap(s.db.QueryRowContext(ctx, queryGetSwapById, swapId))
}

func (s *Service) getSwap(row rowScanner) (*models.Swap, error) {
	var sw models.Swap
	var fromAmountStr, toAmountStr, feeAmountStr string
	var completedAt sql.NullTime
	err := row.Scan(&sw.Id, &sw.UserId, &sw.FromAsset, &sw.ToAsset,
		&fromAmountStr, &toAmountStr, &sw.FeeAsset, &feeAmountStr,
		&sw.Route, &sw.Provider, &sw.Status, &sw.Error, &sw.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("swap not found: %w", err)
		}
		return nil, fmt.Errorf("failed to scan swap: %w", err)
	}
	if sw.FromAmount, err = parseAmount(fromAmountStr); err != nil {
		return nil, err
	}
	if sw.ToAmount, err = parseAmount(toAmountStr); err != nil {
		return nil, err
	}
	if sw.FeeAmount, err = parseAmount(feeAmountStr); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		sw.CompletedAt = &completedAt.Time
	}
	return &sw, nil
}
