package quotes

import (
	"context"

	"asset-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

// RouteProvider is a source of swap quotes and the venue that executes
// them. Implementations must be safe for concurrent use.
type RouteProvider interface {
	// Name identifies the provider in quotes, logs and metrics.
	Name() string

	// Supports reports whether the provider can route the given pair.
	Supports(fromAsset, toAsset string) bool

	// GetQuote returns a quote for swapping fromAmount of fromAsset into
	// toAsset. The quote carries its own TTL.
	GetQuote(ctx context.Context, fromAsset, toAsset string, fromAmount decimal.Decimal) (*models.Quote, error)

	// ExecuteSwap executes a previously obtained quote and returns the
	// realized output amount, which may differ from the quoted amount
	// within the quote's slippage bound.
	ExecuteSwap(ctx context.Context, quote *models.Quote) (decimal.Decimal, error)
}
