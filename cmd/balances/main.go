package main

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/config"
	"asset-settlement-go/internal/database"
	"asset-settlement-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	totalBalances     int
	usersWithBalances int
}

func printBalance(balance models.Balance) {
	fmt.Printf("   %-10s available: %20s  locked: %20s  total: %20s (v%d)\n",
		balance.Asset,
		balance.Available.String(),
		balance.Locked.String(),
		balance.Total().String(),
		balance.Version)
}

func processUser(ctx context.Context, user models.User, dbService *database.Service) (int, error) {
	balances, err := dbService.GetAllBalances(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return 0, nil
	}

	fmt.Printf("\nUser: %s (%s)\n", user.DisplayName, user.ChatId)
	for _, balance := range balances {
		printBalance(balance)
	}

	return len(balances), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := dbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to get users", zap.Error(err))
	}

	common.PrintHeader("User Balances", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++

		balanceCount, err := processUser(ctx, user, dbService)
		if err != nil {
			zap.L().Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		if balanceCount > 0 {
			stats.usersWithBalances++
			stats.totalBalances += balanceCount
		}
	}

	common.PrintFooter(fmt.Sprintf("Users: %d  With balances: %d  Balance rows: %d",
		stats.totalUsers, stats.usersWithBalances, stats.totalBalances), common.DefaultWidth)
}
