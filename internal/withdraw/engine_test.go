package withdraw

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"asset-settlement-go/internal/database"
	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/signing"
	"asset-settlement-go/internal/store"
	"asset-settlement-go/internal/userlock"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

type fakeHandler struct {
	fee          decimal.Decimal
	buildErr     error
	applyErr     error
	broadcastErr error
	broadcasts   int
}

func (h *fakeHandler) Chain() string { return "testchain" }

func (h *fakeHandler) ValidateAddress(address string) bool {
	return len(address) > 4 && address[:2] == "0x"
}

func (h *fakeHandler) EstimateFee(_ context.Context, asset, _ string, _ decimal.Decimal) (*models.FeeEstimate, error) {
	return &models.FeeEstimate{Asset: asset, Amount: h.fee, Priority: "standard"}, nil
}

func (h *fakeHandler) BuildTransaction(_ context.Context, w *models.Withdrawal, keyId string) (*UnsignedTransaction, error) {
	if h.buildErr != nil {
		return nil, h.buildErr
	}
	return &UnsignedTransaction{
		Chain:   h.Chain(),
		Payload: []byte("raw:" + w.Id),
		SigningRequest: signing.Request{
			Chain:       h.Chain(),
			KeyId:       keyId,
			MessageHash: make([]byte, 32),
		},
	}, nil
}

func (h *fakeHandler) ApplySignature(unsigned *UnsignedTransaction, _ *signing.Result) (*SignedTransaction, error) {
	if h.applyErr != nil {
		return nil, h.applyErr
	}
	return &SignedTransaction{
		Chain:   unsigned.Chain,
		Payload: unsigned.Payload,
		TxId:    "0xtx-" + string(unsigned.Payload),
	}, nil
}

func (h *fakeHandler) BroadcastTransaction(_ context.Context, _ *SignedTransaction) error {
	if h.broadcastErr != nil {
		return h.broadcastErr
	}
	h.broadcasts++
	return nil
}

func (h *fakeHandler) Confirmations(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type fakeGateway struct {
	signErr error
}

func (g *fakeGateway) Sign(_ context.Context, _ signing.Request) (*signing.Result, error) {
	if g.signErr != nil {
		return nil, g.signErr
	}
	return &signing.Result{Signature: make([]byte, 64), RecoveryParam: 0}, nil
}

func (g *fakeGateway) Address(_ context.Context, _, _ string) (string, error) {
	return "0xfeedface", nil
}

func setupEngine(t *testing.T, handler *fakeHandler, gateway *fakeGateway, dryRun bool) (*Engine, *database.Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	dbService := database.NewServiceWithDB(db)
	if err := dbService.InitSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if _, err := db.Exec("INSERT INTO users (id, chat_id, display_name) VALUES (?, ?, ?)",
		"user1", "chat1", "Test User"); err != nil {
		t.Fatalf("Failed to insert test user: %v", err)
	}

	handlers := NewRegistry()
	handlers.Register("ETH", handler)

	engine := NewEngine(dbService, userlock.NewRegistry(time.Second), handlers, gateway,
		metrics.New(prometheus.NewRegistry()), dryRun)

	return engine, dbService, func() { db.Close() }
}

func fundUser(t *testing.T, dbService *database.Service, amount int64) {
	t.Helper()
	if err := dbService.Credit(context.Background(), "user1", "ETH", decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
}

func TestEngine_CreateRejectsInvalidAddress(t *testing.T) {
	engine, dbService, cleanup := setupEngine(t, &fakeHandler{fee: decimal.RequireFromString("0.01")}, &fakeGateway{}, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	_, err := engine.Create(context.Background(), "user1", "ETH", "not-an-address", decimal.NewFromInt(1))
	if !errors.Is(err, store.ErrInvalidAddress) {
		t.Fatalf("Expected ErrInvalidAddress, got %v", err)
	}
}

func TestEngine_CreateLocksAmountPlusFee(t *testing.T) {
	engine, dbService, cleanup := setupEngine(t, &fakeHandler{fee: decimal.RequireFromString("0.01")}, &fakeGateway{}, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !withdrawal.Fee.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("Expected fee 0.01, got %s", withdrawal.Fee)
	}

	balance, err := dbService.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Locked.Equal(decimal.RequireFromString("3.01")) {
		t.Errorf("Expected locked 3.01, got %s", balance.Locked)
	}
	if !balance.Available.Equal(decimal.RequireFromString("1.99")) {
		t.Errorf("Expected available 1.99, got %s", balance.Available)
	}
}

func TestEngine_ExecuteBroadcasts(t *testing.T) {
	handler := &fakeHandler{fee: decimal.RequireFromString("0.01")}
	engine, dbService, cleanup := setupEngine(t, handler, &fakeGateway{}, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	broadcast, err := engine.Execute(ctx, withdrawal.Id, "treasury")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if broadcast.Status != models.WithdrawalStatusBroadcast {
		t.Errorf("Expected broadcast, got %s", broadcast.Status)
	}
	if broadcast.TxId == "" {
		t.Error("Expected transaction id recorded")
	}
	if handler.broadcasts != 1 {
		t.Errorf("Expected one broadcast, got %d", handler.broadcasts)
	}

	completed, err := engine.ResolveConfirmed(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("ResolveConfirmed failed: %v", err)
	}
	if completed.Status != models.WithdrawalStatusCompleted {
		t.Errorf("Expected completed, got %s", completed.Status)
	}

	balance, err := dbService.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.RequireFromString("1.99")) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected available=1.99 locked=0, got available=%s locked=%s", balance.Available, balance.Locked)
	}
}

func TestEngine_SigningFailureKeepsFundsLocked(t *testing.T) {
	handler := &fakeHandler{fee: decimal.RequireFromString("0.01")}
	gateway := &fakeGateway{signErr: errors.New("backend unavailable")}
	engine, dbService, cleanup := setupEngine(t, handler, gateway, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	failed, err := engine.Execute(ctx, withdrawal.Id, "treasury")
	if err != nil {
		t.Fatalf("Execute should settle the failure, got error: %v", err)
	}
	if failed.Status != models.WithdrawalStatusFailed {
		t.Errorf("Expected failed, got %s", failed.Status)
	}
	if failed.FundsReleased {
		t.Error("Funds must stay locked after a signing failure")
	}
	if handler.broadcasts != 0 {
		t.Error("Nothing may be broadcast after a signing failure")
	}

	balance, err := dbService.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Locked.Equal(decimal.RequireFromString("3.01")) {
		t.Errorf("Expected locked 3.01, got %s", balance.Locked)
	}

	released, err := engine.ReleaseFunds(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("ReleaseFunds failed: %v", err)
	}
	if !released.FundsReleased {
		t.Error("Expected funds released after operator action")
	}

	balance, err = dbService.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(5)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected available=5 locked=0, got available=%s locked=%s", balance.Available, balance.Locked)
	}
}

func TestEngine_NonCustodialSigningPassesThrough(t *testing.T) {
	handler := &fakeHandler{fee: decimal.RequireFromString("0.01")}
	gateway := &fakeGateway{signErr: store.ErrNonCustodialMode}
	engine, dbService, cleanup := setupEngine(t, handler, gateway, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = engine.Execute(ctx, withdrawal.Id, "treasury")
	if !errors.Is(err, store.ErrNonCustodialMode) {
		t.Fatalf("Expected ErrNonCustodialMode, got %v", err)
	}

	// The mode rejection is not a settlement outcome: the withdrawal stays
	// pending and the reservation is untouched.
	current, err := dbService.GetWithdrawal(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("GetWithdrawal failed: %v", err)
	}
	if current.Status != models.WithdrawalStatusPending {
		t.Errorf("Expected pending, got %s", current.Status)
	}
}

func TestEngine_BroadcastFailureRefunds(t *testing.T) {
	handler := &fakeHandler{
		fee:          decimal.RequireFromString("0.01"),
		broadcastErr: errors.New("mempool rejected transaction"),
	}
	engine, dbService, cleanup := setupEngine(t, handler, &fakeGateway{}, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	failed, err := engine.Execute(ctx, withdrawal.Id, "treasury")
	if err != nil {
		t.Fatalf("Execute should settle the failure, got error: %v", err)
	}
	if failed.Status != models.WithdrawalStatusFailed {
		t.Errorf("Expected failed, got %s", failed.Status)
	}
	if !failed.FundsReleased {
		t.Error("Broadcast failure must release the reservation")
	}

	balance, err := dbService.GetBalance(ctx, "user1", "ETH")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(5)) || !balance.Locked.Equal(decimal.Zero) {
		t.Errorf("Expected full refund, got available=%s locked=%s", balance.Available, balance.Locked)
	}
}

func TestEngine_DryRunStopsAfterSigning(t *testing.T) {
	handler := &fakeHandler{fee: decimal.RequireFromString("0.01")}
	engine, dbService, cleanup := setupEngine(t, handler, &fakeGateway{}, true)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := engine.Execute(ctx, withdrawal.Id, "treasury")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Status != models.WithdrawalStatusPending {
		t.Errorf("Expected pending after dry run, got %s", result.Status)
	}
	if handler.broadcasts != 0 {
		t.Error("Dry run must not broadcast")
	}
}

func TestEngine_ExecuteNotPending(t *testing.T) {
	handler := &fakeHandler{fee: decimal.RequireFromString("0.01")}
	engine, dbService, cleanup := setupEngine(t, handler, &fakeGateway{}, false)
	defer cleanup()
	fundUser(t, dbService, 5)

	ctx := context.Background()
	withdrawal, err := engine.Create(ctx, "user1", "ETH", "0xdeadbeef", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := engine.Execute(ctx, withdrawal.Id, "treasury"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	_, err = engine.Execute(ctx, withdrawal.Id, "treasury")
	if !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("Expected ErrNotPending on re-execution, got %v", err)
	}
}
