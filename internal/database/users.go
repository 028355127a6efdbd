package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.Id, &user.ChatId, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserById, userId).Scan(
		&user.Id, &user.ChatId, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("unable to query user by id: %w", err)
	}
	return &user, nil
}

func (s *Service) GetUserByChatId(ctx context.Context, chatId string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserByChatId, chatId).Scan(
		&user.Id, &user.ChatId, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: chat id %s", store.ErrUserNotFound, chatId)
		}
		return nil, fmt.Errorf("unable to query user by chat id: %w", err)
	}
	return &user, nil
}

// CreateUser registers a user keyed by their external chat id. Creating an
// already-registered chat id returns the existing user unchanged.
func (s *Service) CreateUser(ctx context.Context, userId, chatId, displayName string) (*models.User, error) {
	zap.L().Info("Creating user",
		zap.String("id", userId),
		zap.String("chat_id", chatId),
		zap.String("display_name", displayName))

	_, err := s.db.ExecContext(ctx, queryInsertUser, userId, chatId, displayName)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("chat_id", chatId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	return s.GetUserByChatId(ctx, chatId)
}
