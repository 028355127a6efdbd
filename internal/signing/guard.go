package signing

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"go.uber.org/zap"
)

// Guard is the single chokepoint through which every component obtains a
// signing gateway. Under non-custodial mode no backend is ever
// instantiated; consumers receive a gateway whose every call fails with
// store.ErrNonCustodialMode and is counted for audit. Because the check
// lives at construction rather than at call sites, adding a new caller
// cannot bypass it.
type Guard struct {
	mode    models.ExecutionMode
	backend Gateway
	metrics *metrics.Metrics
}

// NewGuard instantiates the configured backend when and only when the mode
// is custodial.
func NewGuard(mode models.ExecutionMode, cfg models.SigningConfig, m *metrics.Metrics) (*Guard, error) {
	g := &Guard{mode: mode, metrics: m}

	if mode == models.ModeNonCustodial {
		zap.L().Info("Running non-custodial: signing backends disabled")
		return g, nil
	}
	if mode != models.ModeCustodial {
		return nil, fmt.Errorf("unknown execution mode %q", mode)
	}

	var err error
	switch cfg.Backend {
	case "local":
		g.backend, err = NewLocalSigner(cfg.LocalKeys)
	case "kms":
		g.backend, err = NewKMSSigner(cfg)
	default:
		err = fmt.Errorf("unsupported signing backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Mode reports the active execution mode.
func (g *Guard) Mode() models.ExecutionMode {
	return g.mode
}

// Gateway returns the signing gateway for a consuming module. The module
// name labels the blocked-attempt counter; it carries no authority.
func (g *Guard) Gateway(module string) Gateway {
	if g.mode == models.ModeNonCustodial {
		return &blockedGateway{module: module, metrics: g.metrics}
	}
	return g.backend
}

// blockedGateway rejects everything. One instance per consuming module.
type blockedGateway struct {
	module  string
	metrics *metrics.Metrics
}

func (b *blockedGateway) Sign(_ context.Context, req Request) (*Result, error) {
	b.reject("sign", req.KeyId, req.Chain)
	return nil, fmt.Errorf("sign: %w", store.ErrNonCustodialMode)
}

func (b *blockedGateway) Address(_ context.Context, keyId, chain string) (string, error) {
	b.reject("address", keyId, chain)
	return "", fmt.Errorf("address: %w", store.ErrNonCustodialMode)
}

func (b *blockedGateway) reject(op, keyId, chain string) {
	if b.metrics != nil {
		b.metrics.SigningBlocked.WithLabelValues(b.module).Inc()
	}
	zap.L().Error("Blocked signing-adjacent call in non-custodial mode",
		zap.String("module", b.module),
		zap.String("operation", op),
		zap.String("key_id", keyId),
		zap.String("chain", chain))
}
