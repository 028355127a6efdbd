package main

import (
	"context"
	"flag"
	"fmt"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/config"
	"asset-settlement-go/internal/wallet"

	"go.uber.org/zap"
)

func main() {
	chatIdFlag := flag.String("user", "", "User chat id (required)")
	assetFlag := flag.String("asset", "", "Asset symbol to create an address for; omit to list existing addresses")
	keyPrefixFlag := flag.String("key-prefix", "deposit", "Signing key id prefix for derived addresses")
	flag.Parse()

	if *chatIdFlag == "" {
		fmt.Println("Error: --user is required")
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

	user, err := services.DbService.GetUserByChatId(ctx, *chatIdFlag)
	if err != nil {
		zap.L().Fatal("Failed to find user", zap.String("chat_id", *chatIdFlag), zap.Error(err))
	}

	walletService := wallet.NewService(services.DbService)

	assets, err := common.LoadAssetConfig(cfg.Tracker.AssetsFile)
	if err != nil {
		zap.L().Fatal("Failed to load asset catalog", zap.Error(err))
	}
	for _, asset := range assets {
		provider := wallet.NewGatewayProvider(
			services.Guard.Gateway("wallet"),
			asset.Chain,
			asset.Network,
			*keyPrefixFlag,
		)
		walletService.Register(asset.Symbol, provider)
	}

	if *assetFlag != "" {
		address, err := walletService.CreateAddress(ctx, user.Id, *assetFlag)
		if err != nil {
			zap.L().Fatal("Failed to create address",
				zap.String("asset", *assetFlag),
				zap.Error(err))
		}

		common.PrintHeader("Deposit Address", common.DefaultWidth)
		fmt.Printf("Asset:   %s (%s)\n", address.Asset, address.Network)
		fmt.Printf("Address: %s\n", address.Address)
		fmt.Printf("Path:    %s\n", address.DerivationPath)
		common.PrintFooter("Address stored. The deposit tracker will monitor it.", common.DefaultWidth)
		return
	}

	addresses, err := walletService.Addresses(ctx, user.Id, "")
	if err != nil {
		zap.L().Fatal("Failed to list addresses", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Addresses for %s", user.DisplayName), common.DefaultWidth)
	if len(addresses) == 0 {
		fmt.Println("No addresses. Create one with --asset.")
	}
	for _, address := range addresses {
		fmt.Printf("%-10s %-12s %s (index %d)\n",
			address.Asset, address.Network, address.Address, address.AddressIndex)
	}
	common.PrintFooter(fmt.Sprintf("Total: %d", len(addresses)), common.DefaultWidth)
}
