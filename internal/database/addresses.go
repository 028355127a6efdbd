package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoreAddress persists a derived deposit address for a user.
func (s *Service) StoreAddress(ctx context.Context, params store.StoreAddressParams) (*models.Address, error) {
	id := uuid.New().String()

	var addr models.Address
	err := s.db.QueryRowContext(ctx, queryInsertAddress,
		id, params.UserId, params.Asset, params.Network, params.Address,
		params.DerivationPath, params.AddressIndex, params.Change).Scan(
		&addr.Id, &addr.UserId, &addr.Asset, &addr.Network, &addr.Address,
		&addr.DerivationPath, &addr.AddressIndex, &addr.Change, &addr.CreatedAt)
	if err != nil {
		zap.L().Error("Failed to store address",
			zap.String("user_id", params.UserId),
			zap.String("asset", params.Asset),
			zap.Error(err))
		return nil, fmt.Errorf("unable to store address: %w", err)
	}

	zap.L().Info("Stored deposit address",
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("network", params.Network),
		zap.String("address", params.Address))
	return &addr, nil
}

// GetUserAddresses returns all deposit addresses for a user.
func (s *Service) GetUserAddresses(ctx context.Context, userId string) ([]models.Address, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserAddresses, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query addresses: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var addresses []models.Address
	for rows.Next() {
		var addr models.Address
		err := rows.Scan(&addr.Id, &addr.UserId, &addr.Asset, &addr.Network, &addr.Address,
			&addr.DerivationPath, &addr.AddressIndex, &addr.Change, &addr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan address row: %w", err)
		}
		addresses = append(addresses, addr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating address rows: %w", err)
	}
	return addresses, nil
}

// FindUserByAddress resolves a deposit address to its owner. Address
// comparison is case-insensitive.
func (s *Service) FindUserByAddress(ctx context.Context, address string) (*models.User, *models.Address, error) {
	var user models.User
	var addr models.Address
	err := s.db.QueryRowContext(ctx, queryFindUserByAddress, address).Scan(
		&user.Id, &user.ChatId, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt,
		&addr.Id, &addr.UserId, &addr.Asset, &addr.Network, &addr.Address,
		&addr.DerivationPath, &addr.AddressIndex, &addr.Change, &addr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: address %s", store.ErrUserNotFound, address)
		}
		return nil, nil, fmt.Errorf("unable to find user by address: %w", err)
	}
	return &user, &addr, nil
}
