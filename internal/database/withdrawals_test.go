package database

import (
	"context"
	"errors"
	"testing"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/shopspring/decimal"
)

func createTestWithdrawal(t *testing.T, service *Service) *models.Withdrawal {
	t.Helper()

	withdrawal, err := service.CreateWithdrawal(context.Background(), store.CreateWithdrawalParams{
		UserId:      "user1",
		Asset:       "ETH",
		Amount:      decimal.NewFromInt(3),
		Fee:         decimal.NewFromFloat(0.01),
		Destination: "0xdest",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}
	return withdrawal
}

func TestCreateWithdrawal_LocksAmountPlusFee(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	withdrawal := createTestWithdrawal(t, service)
	if withdrawal.Status != models.WithdrawalStatusPending {
		t.Errorf("Expected status pending, got %s", withdrawal.Status)
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	expectedLocked := decimal.NewFromFloat(3.01)
	if !balance.Locked.Equal(expectedLocked) {
		t.Errorf("Expected locked %s, got %s", expectedLocked, balance.Locked)
	}
	if !balance.Available.Equal(decimal.NewFromFloat(1.99)) {
		t.Errorf("Expected available 1.99, got %s", balance.Available)
	}
}

func TestCreateWithdrawal_InsufficientForFee(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	// Exactly the amount but not the fee.
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(3)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err := service.CreateWithdrawal(ctx, store.CreateWithdrawalParams{
		UserId:      "user1",
		Asset:       "ETH",
		Amount:      decimal.NewFromInt(3),
		Fee:         decimal.NewFromFloat(0.01),
		Destination: "0xdest",
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
}

func TestWithdrawalLifecycle_Completed(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	withdrawal := createTestWithdrawal(t, service)

	broadcast, err := service.MarkWithdrawalBroadcast(ctx, withdrawal.Id, "0xtxhash")
	if err != nil {
		t.Fatalf("MarkWithdrawalBroadcast failed: %v", err)
	}
	if broadcast.Status != models.WithdrawalStatusBroadcast || broadcast.TxId != "0xtxhash" {
		t.Errorf("Expected broadcast with tx id, got status=%s tx=%s", broadcast.Status, broadcast.TxId)
	}

	completed, err := service.CompleteWithdrawal(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("CompleteWithdrawal failed: %v", err)
	}
	if completed.Status != models.WithdrawalStatusCompleted {
		t.Errorf("Expected status completed, got %s", completed.Status)
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromFloat(1.99)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected available=1.99 locked=0, got available=%s locked=%s",
			balance.Available, balance.Locked)
	}
}

func TestCompleteWithdrawal_RequiresBroadcast(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	withdrawal := createTestWithdrawal(t, service)

	_, err := service.CompleteWithdrawal(ctx, withdrawal.Id)
	if !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("Expected ErrNotPending completing a pending withdrawal, got %v", err)
	}
}

func TestFailWithdrawal_WithRelease(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	withdrawal := createTestWithdrawal(t, service)

	failed, err := service.FailWithdrawal(ctx, withdrawal.Id, "broadcast failed", true)
	if err != nil {
		t.Fatalf("FailWithdrawal failed: %v", err)
	}
	if failed.Status != models.WithdrawalStatusFailed || !failed.FundsReleased {
		t.Errorf("Expected failed with funds released, got status=%s released=%v",
			failed.Status, failed.FundsReleased)
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(5)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected full refund, got available=%s locked=%s",
			balance.Available, balance.Locked)
	}
}

func TestFailWithdrawal_SigningFailureKeepsFundsLocked(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	withdrawal := createTestWithdrawal(t, service)

	failed, err := service.FailWithdrawal(ctx, withdrawal.Id, "signing failed", false)
	if err != nil {
		t.Fatalf("FailWithdrawal failed: %v", err)
	}
	if failed.FundsReleased {
		t.Error("Expected funds to stay locked after signing failure")
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Locked.Equal(decimal.NewFromFloat(3.01)) {
		t.Errorf("Expected locked 3.01 after signing failure, got %s", balance.Locked)
	}

	// Operator follow-up releases exactly once.
	released, err := service.ReleaseWithdrawalFunds(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("ReleaseWithdrawalFunds failed: %v", err)
	}
	if !released.FundsReleased {
		t.Error("Expected FundsReleased after operator release")
	}

	if _, err := service.ReleaseWithdrawalFunds(ctx, withdrawal.Id); err == nil {
		t.Error("Expected second release to fail")
	}

	balance, err = service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(5)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected available=5 locked=0 after release, got available=%s locked=%s",
			balance.Available, balance.Locked)
	}
}

func TestConcurrentWithdrawals_OnlyOneSucceeds(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.Credit(ctx, "user1", "ETH", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// Two withdrawals of 60% each: the second must fail on funds.
	params := store.CreateWithdrawalParams{
		UserId:      "user1",
		Asset:       "ETH",
		Amount:      decimal.NewFromInt(6),
		Fee:         decimal.Zero,
		Destination: "0xdest",
	}

	_, firstErr := service.CreateWithdrawal(ctx, params)
	_, secondErr := service.CreateWithdrawal(ctx, params)

	if firstErr != nil {
		t.Fatalf("First withdrawal failed: %v", firstErr)
	}
	if !errors.Is(secondErr, store.ErrInsufficientBalance) {
		t.Fatalf("Expected second withdrawal to fail on funds, got %v", secondErr)
	}

	balance, err := service.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(4)) || !balance.Locked.Equal(decimal.NewFromInt(6)) {
		t.Errorf("Expected available=4 locked=6, got available=%s locked=%s",
			balance.Available, balance.Locked)
	}
}
