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

// GetBalance returns the current balance for a (user, asset) pair. A missing
// row is a zero balance, not an error.
func (s *Service) GetBalance(ctx context.Context, userId, asset string) (*models.Balance, error) {
	var b models.Balance
	var availableStr, lockedStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, userId, asset).Scan(
		&b.Id, &b.UserId, &b.Asset, &availableStr, &lockedStr, &b.Version, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Balance{
			UserId:    userId,
			Asset:     asset,
			Available: decimal.Zero,
			Locked:    decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if b.Available, err = decimal.NewFromString(availableStr); err != nil {
		return nil, fmt.Errorf("failed to parse available balance %q: %w", availableStr, err)
	}
	if b.Locked, err = decimal.NewFromString(lockedStr); err != nil {
		return nil, fmt.Errorf("failed to parse locked balance %q: %w", lockedStr, err)
	}
	return &b, nil
}

// GetAllBalances returns all non-zero balances for a user.
func (s *Service) GetAllBalances(ctx context.Context, userId string) ([]models.Balance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.Balance
	for rows.Next() {
		var b models.Balance
		var availableStr, lockedStr string
		err := rows.Scan(&b.Id, &b.UserId, &b.Asset, &availableStr, &lockedStr, &b.Version, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		if b.Available, err = decimal.NewFromString(availableStr); err != nil {
			return nil, fmt.Errorf("failed to parse available balance %q: %w", availableStr, err)
		}
		if b.Locked, err = decimal.NewFromString(lockedStr); err != nil {
			return nil, fmt.Errorf("failed to parse locked balance %q: %w", lockedStr, err)
		}
		balances = append(balances, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

// Credit increases the available balance unconditionally (deposits, swap
// payout, refunds).
func (s *Service) Credit(ctx context.Context, userId, asset string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return applyBalanceDelta(ctx, tx, userId, asset, amount, decimal.Zero)
	})
}

// Debit decreases the available balance. Fails with
// store.ErrInsufficientBalance when available < amount; no partial effect.
func (s *Service) Debit(ctx context.Context, userId, asset string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return applyBalanceDelta(ctx, tx, userId, asset, amount.Neg(), decimal.Zero)
	})
}

// Lock moves amount from available to locked. Fails with
// store.ErrInsufficientBalance when available < amount.
func (s *Service) Lock(ctx context.Context, userId, asset string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return applyBalanceDelta(ctx, tx, userId, asset, amount.Neg(), amount)
	})
}

// Unlock moves amount from locked back to available. Fails with
// store.ErrInsufficientLocked when locked < amount.
func (s *Service) Unlock(ctx context.Context, userId, asset string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return applyBalanceDelta(ctx, tx, userId, asset, amount, amount.Neg())
	})
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", value, err)
	}
	return amount, nil
}

func requirePositive(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive, got %s", amount.String())
	}
	return nil
}

// applyBalanceDelta adjusts a balance row inside an open transaction. The
// row is created lazily on first use. The resulting available and locked
// values must both stay non-negative; a violation returns the matching
// sentinel error and the enclosing transaction rolls back. The optimistic
// version column is the second protection layer beyond the per-user lock.
func applyBalanceDelta(ctx context.Context, tx *sql.Tx, userId, asset string, dAvailable, dLocked decimal.Decimal) error {
	var rowId, availableStr, lockedStr string
	var version int64

	err := tx.QueryRowContext(ctx, queryGetBalanceRow, userId, asset).Scan(&rowId, &availableStr, &lockedStr, &version)

	available := decimal.Zero
	locked := decimal.Zero
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	} else {
		if available, err = decimal.NewFromString(availableStr); err != nil {
			return fmt.Errorf("failed to parse available balance %q: %w", availableStr, err)
		}
		if locked, err = decimal.NewFromString(lockedStr); err != nil {
			return fmt.Errorf("failed to parse locked balance %q: %w", lockedStr, err)
		}
	}

	newAvailable := available.Add(dAvailable)
	newLocked := locked.Add(dLocked)

	if newAvailable.IsNegative() {
		return fmt.Errorf("%w: available=%s, requested=%s",
			store.ErrInsufficientBalance, available.String(), dAvailable.Abs().String())
	}
	if newLocked.IsNegative() {
		return fmt.Errorf("%w: locked=%s, requested=%s",
			store.ErrInsufficientLocked, locked.String(), dLocked.Abs().String())
	}

	if !exists {
		rowId = uuid.New().String()
		_, err := tx.ExecContext(ctx, queryInsertBalance,
			rowId, userId, asset, newAvailable.String(), newLocked.String())
		if err != nil {
			return fmt.Errorf("failed to create balance row: %w", err)
		}
		return nil
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalance,
		newAvailable.String(), newLocked.String(), userId, asset, version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

// GetMostRecentDepositTime returns the most recent deposit timestamp, used
// by the tracker's startup recovery pass.
func (s *Service) GetMostRecentDepositTime(ctx context.Context) (time.Time, error) {
	var timestampStr sql.NullString
	err := s.db.QueryRowContext(ctx, queryGetMostRecentDepositTime).Scan(&timestampStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get most recent deposit time: %w", err)
	}

	if !timestampStr.Valid || timestampStr.String == "" {
		// No deposits yet, start from 2 hours ago
		return time.Now().Add(-2 * time.Hour), nil
	}

	return parseSQLiteTime(timestampStr.String)
}

// parseSQLiteTime parses a SQLite TIMESTAMP string, which uses a space
// instead of T and may omit microseconds.
func parseSQLiteTime(value string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
	} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", value)
}
