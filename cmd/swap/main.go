package main

import (
	"context"
	"flag"
	"fmt"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/config"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/swap"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type swapRequest struct {
	chatId  string
	from    string
	to      string
	amount  decimal.Decimal
	execute bool
}

func parseAndValidateFlags() (*swapRequest, error) {
	chatIdFlag := flag.String("user", "", "User chat id (required)")
	fromFlag := flag.String("from", "", "Asset to convert from (required)")
	toFlag := flag.String("to", "", "Asset to convert to (required)")
	amountFlag := flag.String("amount", "", "Amount to convert (required)")
	executeFlag := flag.Bool("execute", false, "Execute the swap against the provider after creating it")
	flag.Parse()

	if *chatIdFlag == "" || *fromFlag == "" || *toFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("required flags: --user, --from, --to, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &swapRequest{
		chatId:  *chatIdFlag,
		from:    *fromFlag,
		to:      *toFlag,
		amount:  amount,
		execute: *executeFlag,
	}, nil
}

func main() {
	request, err := parseAndValidateFlags()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := services.DbService.GetUserByChatId(ctx, request.chatId)
	if err != nil {
		zap.L().Fatal("Failed to find user", zap.String("chat_id", request.chatId), zap.Error(err))
	}

	engine := swap.NewEngine(services.DbService, services.Locks, services.Aggregator, services.Metrics)

	quote, err := engine.BestQuote(ctx, request.from, request.to, request.amount)
	if err != nil {
		zap.L().Fatal("Failed to get quote", zap.Error(err))
	}

	common.PrintHeader("Swap Quote", common.DefaultWidth)
	fmt.Printf("Provider:  %s\n", quote.Provider)
	fmt.Printf("From:      %s %s\n", quote.FromAmount, quote.FromAsset)
	fmt.Printf("To:        %s %s\n", quote.ToAmount, quote.ToAsset)
	if !quote.FeeAmount.IsZero() {
		fmt.Printf("Fee:       %s %s\n", quote.FeeAmount, quote.FeeAsset)
	}

	created, err := engine.Create(ctx, user.Id, quote)
	if err != nil {
		zap.L().Fatal("Failed to create swap", zap.Error(err))
	}
	fmt.Printf("\nSwap created: %s (status: %s)\n", created.Id, created.Status)

	if !request.execute {
		common.PrintFooter("Swap is pending. Re-run with --execute to settle it.", common.DefaultWidth)
		return
	}

	settled, err := engine.Execute(ctx, created.Id, quote)
	if err != nil {
		zap.L().Fatal("Failed to execute swap", zap.String("swap_id", created.Id), zap.Error(err))
	}

	switch settled.Status {
	case models.SwapStatusCompleted:
		common.PrintFooter(fmt.Sprintf("Swap completed: received %s %s", settled.ToAmount, settled.ToAsset), common.DefaultWidth)
	default:
		common.PrintFooter(fmt.Sprintf("Swap %s: %s", settled.Status, settled.Error), common.DefaultWidth)
	}
}
