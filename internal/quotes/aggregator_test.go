package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/shopspring/decimal"
)

type fakeProvider struct {
	name     string
	assets   map[string]bool
	toAmount decimal.Decimal
	ttl      time.Duration
	err      error
	delay    time.Duration

	executed       bool
	executeErr     error
	realizedAmount decimal.Decimal
}

func newFakeProvider(name string, toAmount decimal.Decimal, assets ...string) *fakeProvider {
	supported := make(map[string]bool)
	for _, a := range assets {
		supported[a] = true
	}
	return &fakeProvider{
		name:     name,
		assets:   supported,
		toAmount: toAmount,
		ttl:      time.Minute,
	}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(fromAsset, toAsset string) bool {
	return f.assets[fromAsset] && f.assets[toAsset]
}

func (f *fakeProvider) GetQuote(ctx context.Context, fromAsset, toAsset string, fromAmount decimal.Decimal) (*models.Quote, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Quote{
		Provider:   f.name,
		FromAsset:  fromAsset,
		ToAsset:    toAsset,
		FromAmount: fromAmount,
		ToAmount:   f.toAmount,
		CreatedAt:  time.Now(),
		TTL:        f.ttl,
	}, nil
}

func (f *fakeProvider) ExecuteSwap(ctx context.Context, quote *models.Quote) (decimal.Decimal, error) {
	f.executed = true
	if f.executeErr != nil {
		return decimal.Zero, f.executeErr
	}
	if !f.realizedAmount.IsZero() {
		return f.realizedAmount, nil
	}
	return quote.ToAmount, nil
}

func TestBestQuote_PicksHighestOutput(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(100), "ETH", "USDC")
	b := newFakeProvider("b", decimal.NewFromInt(105), "ETH", "USDC")
	c := newFakeProvider("c", decimal.NewFromInt(95), "ETH", "USDC")

	agg := NewAggregator([]RouteProvider{a, b, c}, time.Second, nil)

	quote, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("BestQuote failed: %v", err)
	}
	if quote.Provider != "b" {
		t.Errorf("Expected provider b, got %s", quote.Provider)
	}
	if !quote.ToAmount.Equal(decimal.NewFromInt(105)) {
		t.Errorf("Expected 105, got %s", quote.ToAmount)
	}
}

func TestBestQuote_TieGoesToRegistrationOrder(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(100), "ETH", "USDC")
	b := newFakeProvider("b", decimal.NewFromInt(100), "ETH", "USDC")

	agg := NewAggregator([]RouteProvider{a, b}, time.Second, nil)

	quote, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("BestQuote failed: %v", err)
	}
	if quote.Provider != "a" {
		t.Errorf("Expected first-registered provider on tie, got %s", quote.Provider)
	}
}

func TestBestQuote_SkipsUnsupportedPairs(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(100), "BTC", "USDC")
	b := newFakeProvider("b", decimal.NewFromInt(90), "ETH", "USDC")

	agg := NewAggregator([]RouteProvider{a, b}, time.Second, nil)

	quote, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("BestQuote failed: %v", err)
	}
	if quote.Provider != "b" {
		t.Errorf("Provider without the pair must be skipped, got %s", quote.Provider)
	}
}

func TestBestQuote_ExcludesFailingProviders(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(200), "ETH", "USDC")
	a.err = errors.New("upstream 500")
	b := newFakeProvider("b", decimal.NewFromInt(90), "ETH", "USDC")

	agg := NewAggregator([]RouteProvider{a, b}, time.Second, nil)

	quote, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("One healthy provider should be enough: %v", err)
	}
	if quote.Provider != "b" {
		t.Errorf("Expected provider b, got %s", quote.Provider)
	}
}

func TestBestQuote_ExcludesSlowProviders(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(200), "ETH", "USDC")
	a.delay = 500 * time.Millisecond
	b := newFakeProvider("b", decimal.NewFromInt(90), "ETH", "USDC")

	agg := NewAggregator([]RouteProvider{a, b}, 50*time.Millisecond, nil)

	quote, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("BestQuote failed: %v", err)
	}
	if quote.Provider != "b" {
		t.Errorf("Slow provider must be excluded by the timeout, got %s", quote.Provider)
	}
}

func TestBestQuote_DiscardsExpiredQuotes(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(200), "ETH", "USDC")
	a.ttl = -time.Second // already expired on arrival
	b := newFakeProvider("b", decimal.NewFromInt(90), "ETH", "USDC")

	agg := NewAggregator([]RouteProvider{a, b}, time.Second, nil)

	quote, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("BestQuote failed: %v", err)
	}
	if quote.Provider != "b" {
		t.Errorf("Expired quote must be discarded, got %s", quote.Provider)
	}
}

func TestBestQuote_NoRoute(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(100), "BTC", "USDC")

	agg := NewAggregator([]RouteProvider{a}, time.Second, nil)

	_, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(1))
	if !errors.Is(err, store.ErrNoRoute) {
		t.Fatalf("Expected ErrNoRoute, got %v", err)
	}
}

func TestBestQuote_RejectsNonPositiveAmount(t *testing.T) {
	agg := NewAggregator(nil, time.Second, nil)

	if _, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.Zero); err == nil {
		t.Error("Expected error for zero amount")
	}
	if _, err := agg.BestQuote(context.Background(), "ETH", "USDC", decimal.NewFromInt(-1)); err == nil {
		t.Error("Expected error for negative amount")
	}
}

func TestProviderLookup(t *testing.T) {
	a := newFakeProvider("a", decimal.NewFromInt(100), "ETH", "USDC")
	agg := NewAggregator([]RouteProvider{a}, time.Second, nil)

	provider, err := agg.Provider("a")
	if err != nil {
		t.Fatalf("Provider lookup failed: %v", err)
	}
	if provider.Name() != "a" {
		t.Errorf("Wrong provider returned: %s", provider.Name())
	}

	if _, err := agg.Provider("missing"); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
