// Package withdraw settles outbound transfers. A withdrawal locks amount
// plus fee up front, is signed through the gateway and broadcast by a
// chain handler, and the locked funds are consumed only once the network
// confirms the transaction.
package withdraw

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/signing"

	"github.com/shopspring/decimal"
)

// UnsignedTransaction is a chain transaction prepared by a handler and not
// yet signed. SigningRequest carries the hash the gateway must sign.
type UnsignedTransaction struct {
	Chain          string
	Payload        []byte
	SigningRequest signing.Request
}

// SignedTransaction is an unsigned transaction with its signature applied,
// ready to broadcast.
type SignedTransaction struct {
	Chain   string
	Payload []byte
	TxId    string
}

// Handler abstracts one chain's withdrawal mechanics. Implementations are
// registered per asset symbol.
type Handler interface {
	// Chain names the network this handler serves.
	Chain() string

	// ValidateAddress reports whether the destination is well-formed for
	// this chain. A false result never touches the network.
	ValidateAddress(address string) bool

	// EstimateFee returns the network fee for sending amount to the
	// destination, denominated in the chain's fee asset.
	EstimateFee(ctx context.Context, asset, destination string, amount decimal.Decimal) (*models.FeeEstimate, error)

	// BuildTransaction prepares an unsigned transaction for the
	// withdrawal.
	BuildTransaction(ctx context.Context, w *models.Withdrawal, keyId string) (*UnsignedTransaction, error)

	// ApplySignature combines the unsigned transaction with a signature
	// from the gateway and returns the broadcastable form, including the
	// transaction id.
	ApplySignature(unsigned *UnsignedTransaction, sig *signing.Result) (*SignedTransaction, error)

	// BroadcastTransaction submits the signed transaction to the network.
	BroadcastTransaction(ctx context.Context, tx *SignedTransaction) error

	// Confirmations reports how many confirmations the transaction has, or
	// zero if unseen.
	Confirmations(ctx context.Context, txId string) (int, error)
}

// Registry maps asset symbols to their chain handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds an asset symbol to a handler, replacing any previous
// binding.
func (r *Registry) Register(asset string, h Handler) {
	r.handlers[asset] = h
}

// Handler returns the handler for an asset symbol.
func (r *Registry) Handler(asset string) (Handler, error) {
	h, ok := r.handlers[asset]
	if !ok {
		return nil, fmt.Errorf("no withdrawal handler registered for asset %s", asset)
	}
	return h, nil
}
