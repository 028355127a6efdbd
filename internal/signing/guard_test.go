package signing

import (
	"context"
	"errors"
	"testing"

	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestGuard_NonCustodialBlocksSigning(t *testing.T) {
	m := testMetrics()

	// The backend config is deliberately broken: in non-custodial mode it
	// must never be instantiated, so construction still succeeds.
	guard, err := NewGuard(models.ModeNonCustodial, models.SigningConfig{Backend: "nonexistent"}, m)
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}

	gateway := guard.Gateway("withdrawal")

	_, err = gateway.Sign(context.Background(), Request{
		Chain:       "ethereum",
		KeyId:       "treasury",
		MessageHash: make([]byte, 32),
	})
	if !errors.Is(err, store.ErrNonCustodialMode) {
		t.Fatalf("Expected ErrNonCustodialMode, got %v", err)
	}

	_, err = gateway.Address(context.Background(), "treasury", "ethereum")
	if !errors.Is(err, store.ErrNonCustodialMode) {
		t.Fatalf("Expected ErrNonCustodialMode from Address, got %v", err)
	}

	blocked := testutil.ToFloat64(m.SigningBlocked.WithLabelValues("withdrawal"))
	if blocked != 2 {
		t.Errorf("Expected 2 blocked attempts recorded, got %v", blocked)
	}
}

func TestGuard_BlockedCounterLabelledPerModule(t *testing.T) {
	m := testMetrics()

	guard, err := NewGuard(models.ModeNonCustodial, models.SigningConfig{}, m)
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}

	_, _ = guard.Gateway("withdrawal").Sign(context.Background(), Request{MessageHash: make([]byte, 32)})
	_, _ = guard.Gateway("wallet").Address(context.Background(), "k", "ethereum")

	if got := testutil.ToFloat64(m.SigningBlocked.WithLabelValues("withdrawal")); got != 1 {
		t.Errorf("Expected 1 blocked withdrawal attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.SigningBlocked.WithLabelValues("wallet")); got != 1 {
		t.Errorf("Expected 1 blocked wallet attempt, got %v", got)
	}
}

func TestGuard_CustodialLocalBackend(t *testing.T) {
	guard, err := NewGuard(models.ModeCustodial, models.SigningConfig{
		Backend:   "local",
		LocalKeys: map[string]string{"treasury": testKeyHex},
	}, testMetrics())
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}

	gateway := guard.Gateway("withdrawal")

	result, err := gateway.Sign(context.Background(), Request{
		Chain:       "ethereum",
		KeyId:       "treasury",
		MessageHash: make([]byte, 32),
	})
	if err != nil {
		t.Fatalf("Sign failed under custodial mode: %v", err)
	}
	if len(result.Signature) != 64 {
		t.Errorf("Expected 64-byte signature, got %d bytes", len(result.Signature))
	}
}

func TestGuard_CustodialUnknownBackend(t *testing.T) {
	_, err := NewGuard(models.ModeCustodial, models.SigningConfig{Backend: "hsm"}, testMetrics())
	if err == nil {
		t.Fatal("Expected error for unsupported backend")
	}
}

func TestGuard_UnknownMode(t *testing.T) {
	_, err := NewGuard("hybrid", models.SigningConfig{}, testMetrics())
	if err == nil {
		t.Fatal("Expected error for unknown execution mode")
	}
}
