package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the settlement counters. Constructed once at startup and
// passed to the components that record into it; tests build their own with
// a private registry.
type Metrics struct {
	// SigningBlocked counts signing-adjacent calls rejected by the mode
	// guard, labelled by the consuming module, for audit.
	SigningBlocked *prometheus.CounterVec

	DepositsConfirmed   prometheus.Counter
	SwapsSettled        *prometheus.CounterVec
	WithdrawalsSettled  *prometheus.CounterVec
	QuoteProviderErrors *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SigningBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_signing_blocked_attempts_total",
			Help: "Signing-adjacent calls rejected because the deployment runs non-custodial.",
		}, []string{"module"}),
		DepositsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlement_deposits_confirmed_total",
			Help: "Deposits credited to the ledger.",
		}),
		SwapsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_swaps_settled_total",
			Help: "Swap settlements by terminal status.",
		}, []string{"status"}),
		WithdrawalsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_withdrawals_settled_total",
			Help: "Withdrawal settlements by terminal status.",
		}, []string{"status"}),
		QuoteProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_quote_provider_errors_total",
			Help: "Route providers excluded from a quote pool due to errors or timeouts.",
		}, []string{"provider"}),
	}
}

// NewDefault registers against the global prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
