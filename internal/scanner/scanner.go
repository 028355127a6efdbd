// Package scanner watches deposit addresses for inbound transactions and
// settles them into the balance ledger: first observation records a
// pending deposit, and the available balance is credited exactly once the
// chain's confirmation threshold is reached.
package scanner

import (
	"context"
	"fmt"
	"time"

	"asset-settlement-go/internal/models"
)

// ChainScanner reads inbound transactions for one chain. Implementations
// wrap a node RPC or indexer API and must be safe for concurrent use.
type ChainScanner interface {
	// Chain names the network this scanner reads.
	Chain() string

	// AddressTransactions returns inbound transactions to the address seen
	// at or after since, including still-unconfirmed ones. Confirmation
	// counts reflect the chain tip at call time.
	AddressTransactions(ctx context.Context, address string, since time.Time) ([]models.TransactionInfo, error)
}

// Registry maps chain names to their scanners.
type Registry struct {
	scanners map[string]ChainScanner
}

func NewRegistry() *Registry {
	return &Registry{scanners: make(map[string]ChainScanner)}
}

func (r *Registry) Register(s ChainScanner) {
	r.scanners[s.Chain()] = s
}

func (r *Registry) Scanner(chain string) (ChainScanner, error) {
	s, ok := r.scanners[chain]
	if !ok {
		return nil, fmt.Errorf("no scanner registered for chain %s", chain)
	}
	return s, nil
}
