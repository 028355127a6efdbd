package main

import (
	"context"
	"flag"
	"fmt"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func validateChatId(chatId string) error {
	if chatId == "" {
		return fmt.Errorf("chat id cannot be empty")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func main() {
	chatIdFlag := flag.String("chat-id", "", "External chat id (required)")
	nameFlag := flag.String("name", "", "Display name (required)")
	flag.Parse()

	if err := validateChatId(*chatIdFlag); err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		return
	}
	if err := validateName(*nameFlag); err != nil {
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

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	user, err := dbService.CreateUser(ctx, uuid.New().String(), *chatIdFlag, *nameFlag)
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	common.PrintHeader("User", common.DefaultWidth)
	fmt.Printf("Id:      %s\n", user.Id)
	fmt.Printf("Chat id: %s\n", user.ChatId)
	fmt.Printf("Name:    %s\n", user.DisplayName)
	common.PrintFooter("User ready. Create deposit addresses with the addresses command.", common.DefaultWidth)
}
