// Package signing provides a uniform sign/get-address contract over
// interchangeable key-custody backends, and the mode guard that forbids all
// of it in non-custodial deployments.
package signing

import (
	"context"
)

// Request describes one signing operation. The message hash is the only
// payload; raw key material never appears in a Request, a Result, or a log
// line.
type Request struct {
	Chain          string
	KeyId          string
	MessageHash    []byte
	DerivationPath string
}

// Result carries the produced signature components.
type Result struct {
	// Signature is the 64-byte r || s encoding.
	Signature []byte
	// RecoveryParam is the recovery id for chains that use it; -1 when the
	// backend does not produce one.
	RecoveryParam int
	// PublicKey is the uncompressed public key of the signing key.
	PublicKey []byte
}

// Gateway is the uniform contract every key-custody backend satisfies.
// Callers never see backend-specific types.
type Gateway interface {
	// Sign produces a signature over the message hash with the identified
	// key.
	Sign(ctx context.Context, req Request) (*Result, error)
	// Address returns the chain address controlled by the identified key,
	// or an empty string when the backend cannot resolve it.
	Address(ctx context.Context, keyId, chain string) (string, error)
}
