package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/config"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/withdraw"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	chatId      string
	asset       string
	amount      decimal.Decimal
	destination string
	keyId       string
	execute     bool
}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	chatIdFlag := flag.String("user", "", "User chat id (required)")
	assetFlag := flag.String("asset", "", "Asset symbol (e.g., ETH) (required)")
	amountFlag := flag.String("amount", "", "Amount to withdraw (required)")
	destinationFlag := flag.String("destination", "", "Destination address (required)")
	keyFlag := flag.String("key", "treasury", "Signing key id")
	executeFlag := flag.Bool("execute", false, "Sign and broadcast after creating the withdrawal")
	flag.Parse()

	if *chatIdFlag == "" || *assetFlag == "" || *amountFlag == "" || *destinationFlag == "" {
		return nil, fmt.Errorf("required flags: --user, --asset, --amount, --destination")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &withdrawalRequest{
		chatId:      *chatIdFlag,
		asset:       *assetFlag,
		amount:      amount,
		destination: *destinationFlag,
		keyId:       *keyFlag,
		execute:     *executeFlag,
	}, nil
}

func buildHandlers(ctx context.Context, asset string) (*withdraw.Registry, error) {
	rpcURL := os.Getenv("EVM_RPC_URL")
	fromAddress := os.Getenv("EVM_FROM_ADDRESS")
	if rpcURL == "" || fromAddress == "" {
		return nil, fmt.Errorf("EVM_RPC_URL and EVM_FROM_ADDRESS must be set")
	}

	chainId := int64(1)
	if value := os.Getenv("EVM_CHAIN_ID"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid EVM_CHAIN_ID: %w", err)
		}
		chainId = parsed
	}

	chain := os.Getenv("EVM_CHAIN")
	if chain == "" {
		chain = "ethereum"
	}

	handler, err := withdraw.NewEVMHandler(ctx, chain, asset, rpcURL, fromAddress, chainId)
	if err != nil {
		return nil, err
	}

	registry := withdraw.NewRegistry()
	registry.Register(asset, handler)
	return registry, nil
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

	handlers, err := buildHandlers(ctx, request.asset)
	if err != nil {
		zap.L().Fatal("Failed to build chain handlers", zap.Error(err))
	}

	engine := withdraw.NewEngine(
		services.DbService,
		services.Locks,
		handlers,
		services.Guard.Gateway("withdrawal"),
		services.Metrics,
		cfg.DryRun,
	)

	created, err := engine.Create(ctx, user.Id, request.asset, request.destination, request.amount)
	if err != nil {
		zap.L().Fatal("Failed to create withdrawal", zap.Error(err))
	}

	common.PrintHeader("Withdrawal", common.DefaultWidth)
	fmt.Printf("Id:          %s\n", created.Id)
	fmt.Printf("Amount:      %s %s\n", created.Amount, created.Asset)
	fmt.Printf("Fee:         %s %s\n", created.Fee, created.Asset)
	fmt.Printf("Reserved:    %s %s\n", created.LockedTotal(), created.Asset)
	fmt.Printf("Destination: %s\n", created.Destination)

	if !request.execute {
		common.PrintFooter("Withdrawal is pending. Re-run with --execute to sign and broadcast.", common.DefaultWidth)
		return
	}

	executed, err := engine.Execute(ctx, created.Id, request.keyId)
	if err != nil {
		zap.L().Fatal("Failed to execute withdrawal", zap.String("withdrawal_id", created.Id), zap.Error(err))
	}

	switch executed.Status {
	case models.WithdrawalStatusBroadcast:
		common.PrintFooter(fmt.Sprintf("Withdrawal broadcast: tx %s", executed.TxId), common.DefaultWidth)
	case models.WithdrawalStatusPending:
		common.PrintFooter("Dry run: withdrawal signed but not broadcast.", common.DefaultWidth)
	default:
		common.PrintFooter(fmt.Sprintf("Withdrawal %s: %s", executed.Status, executed.Error), common.DefaultWidth)
	}
}
