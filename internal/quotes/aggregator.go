package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Aggregator fans a quote request out to every registered provider that
// supports the pair and picks the best result. Provider order is fixed at
// construction and is the tie-break between equal quotes.
type Aggregator struct {
	providers []RouteProvider
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewAggregator(providers []RouteProvider, timeout time.Duration, m *metrics.Metrics) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		providers: providers,
		timeout:   timeout,
		metrics:   m,
		now:       time.Now,
	}
}

// Provider returns the registered provider with the given name.
func (a *Aggregator) Provider(name string) (RouteProvider, error) {
	for _, p := range a.providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("provider %q is not registered", name)
}

// BestQuote queries all providers supporting the pair concurrently and
// returns the quote with the highest output amount. Provider failures and
// expired quotes are logged and skipped; if no usable quote remains the
// call fails with store.ErrNoRoute.
func (a *Aggregator) BestQuote(ctx context.Context, fromAsset, toAsset string, fromAmount decimal.Decimal) (*models.Quote, error) {
	if fromAmount.IsZero() || fromAmount.IsNegative() {
		return nil, fmt.Errorf("quote amount must be positive, got %s", fromAmount)
	}

	results := make([]*models.Quote, len(a.providers))

	var wg sync.WaitGroup
	for i, provider := range a.providers {
		if !provider.Supports(fromAsset, toAsset) {
			continue
		}
		wg.Add(1)
		go func(i int, provider RouteProvider) {
			defer wg.Done()

			quoteCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			quote, err := provider.GetQuote(quoteCtx, fromAsset, toAsset, fromAmount)
			if err != nil {
				a.recordProviderError(provider.Name())
				zap.L().Warn("Quote provider failed",
					zap.String("provider", provider.Name()),
					zap.String("from_asset", fromAsset),
					zap.String("to_asset", toAsset),
					zap.Error(err))
				return
			}
			results[i] = quote
		}(i, provider)
	}
	wg.Wait()

	var best *models.Quote
	now := a.now()
	for _, quote := range results {
		if quote == nil {
			continue
		}
		if quote.IsExpired(now) {
			zap.L().Warn("Discarding expired quote",
				zap.String("provider", quote.Provider),
				zap.Time("created_at", quote.CreatedAt))
			continue
		}
		if best == nil || quote.ToAmount.GreaterThan(best.ToAmount) {
			best = quote
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no quote for %s -> %s: %w", fromAsset, toAsset, store.ErrNoRoute)
	}

	zap.L().Info("Selected best quote",
		zap.String("provider", best.Provider),
		zap.String("from_asset", fromAsset),
		zap.String("to_asset", toAsset),
		zap.String("from_amount", fromAmount.String()),
		zap.String("to_amount", best.ToAmount.String()))
	return best, nil
}

func (a *Aggregator) recordProviderError(provider string) {
	if a.metrics != nil {
		a.metrics.QuoteProviderErrors.WithLabelValues(provider).Inc()
	}
}
