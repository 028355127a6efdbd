package database

import (
	"context"
	"errors"
	"testing"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/shopspring/decimal"
)

func createTestSwap(t *testing.T, service *Service) *models.Swap {
	t.Helper()

	swap, err := service.CreateSwap(context.Background(), store.CreateSwapParams{
		UserId:           "user1",
		FromAsset:        "ETH",
		ToAsset:          "USDC",
		FromAmount:       decimal.NewFromInt(2),
		ExpectedToAmount: decimal.NewFromInt(6000),
		Provider:         "dex-router",
	})
	if err != nil {
		t.Fatalf("CreateSwap failed: %v", err)
	}
	return swap
}

func TestCreateSwap_LocksInput(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	swap := createTestSwap(t, service)
	if swap.Status != models.SwapStatusPending {
		t.Errorf("Expected status pending, got %s", swap.Status)
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected available 3, got %s", balance.Available)
	}
	if !balance.Locked.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected locked 2, got %s", balance.Locked)
	}
}

func TestCreateSwap_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err := service.CreateSwap(ctx, store.CreateSwapParams{
		UserId:     "user1",
		FromAsset:  "ETH",
		ToAsset:    "USDC",
		FromAmount: decimal.NewFromInt(2),
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	// No swap row and no lock may survive the failed create.
	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(1)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Failed create mutated the balance: available=%s locked=%s",
			balance.Available, balance.Locked)
	}
}

func TestCompleteSwap(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	swap := createTestSwap(t, service)

	realized := decimal.NewFromInt(5990)
	completed, err := service.CompleteSwap(ctx, swap.Id, realized)
	if err != nil {
		t.Fatalf("CompleteSwap failed: %v", err)
	}
	if completed.Status != models.SwapStatusCompleted {
		t.Errorf("Expected status completed, got %s", completed.Status)
	}
	if !completed.ToAmount.Equal(realized) {
		t.Errorf("Expected realized amount %s, got %s", realized, completed.ToAmount)
	}

	eth, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !eth.Available.Equal(decimal.NewFromInt(3)) || !eth.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected ETH available=3 locked=0, got available=%s locked=%s",
			eth.Available, eth.Locked)
	}

	usdc, err := service.GetBalance(ctx, "user1", "USDC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !usdc.Available.Equal(realized) {
		t.Errorf("Expected USDC available %s, got %s", realized, usdc.Available)
	}
}

func TestFailSwap_Refunds(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	swap := createTestSwap(t, service)

	failed, err := service.FailSwap(ctx, swap.Id, "provider timeout")
	if err != nil {
		t.Fatalf("FailSwap failed: %v", err)
	}
	if failed.Status != models.SwapStatusFailed {
		t.Errorf("Expected status failed, got %s", failed.Status)
	}
	if failed.Error != "provider timeout" {
		t.Errorf("Expected failure reason recorded, got %q", failed.Error)
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(5)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected full refund, got available=%s locked=%s",
			balance.Available, balance.Locked)
	}

	usdc, err := service.GetBalance(ctx, "user1", "USDC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !usdc.Available.Equal(decimal.Zero) {
		t.Errorf("Failed swap credited output asset: %s", usdc.Available)
	}
}

func TestCompleteSwap_NotPending(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	swap := createTestSwap(t, service)

	if _, err := service.CompleteSwap(ctx, swap.Id, decimal.NewFromInt(6000)); err != nil {
		t.Fatalf("CompleteSwap failed: %v", err)
	}

	_, err := service.CompleteSwap(ctx, swap.Id, decimal.NewFromInt(6000))
	if !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("Expected ErrNotPending on second completion, got %v", err)
	}

	_, err = service.FailSwap(ctx, swap.Id, "late failure")
	if !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("Expected ErrNotPending failing a completed swap, got %v", err)
	}

	// The double settlement attempts must not have changed balances.
	usdc, err := service.GetBalance(ctx, "user1", "USDC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !usdc.Available.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("Expected USDC 6000 exactly once, got %s", usdc.Available)
	}
}
