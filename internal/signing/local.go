package signing

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"asset-settlement-go/internal/store"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// LocalSigner holds secp256k1 key material in process memory, keyed by key
// id. Intended for development and single-operator deployments; production
// custodial deployments use the KMS backend.
type LocalSigner struct {
	keys map[string]*ecdsa.PrivateKey
}

// NewLocalSigner parses hex-encoded private keys. The map values are key
// material and must never be logged.
func NewLocalSigner(keyHex map[string]string) (*LocalSigner, error) {
	if len(keyHex) == 0 {
		return nil, fmt.Errorf("local signing backend requires at least one key")
	}

	keys := make(map[string]*ecdsa.PrivateKey, len(keyHex))
	for keyId, hexKey := range keyHex {
		priv, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key for %q: %w", keyId, err)
		}
		keys[keyId] = priv
	}

	zap.L().Info("Local signing backend initialized", zap.Int("keys", len(keys)))
	return &LocalSigner{keys: keys}, nil
}

func (l *LocalSigner) Sign(_ context.Context, req Request) (*Result, error) {
	priv, ok := l.keys[req.KeyId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrKeyNotFound, req.KeyId)
	}
	if len(req.MessageHash) != 32 {
		return nil, fmt.Errorf("message hash must be 32 bytes, got %d", len(req.MessageHash))
	}

	// crypto.Sign returns r || s || v with v in {0, 1}.
	sig, err := crypto.Sign(req.MessageHash, priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrSigningRejected, err)
	}

	return &Result{
		Signature:     sig[:64],
		RecoveryParam: int(sig[64]),
		PublicKey:     crypto.FromECDSAPub(&priv.PublicKey),
	}, nil
}

func (l *LocalSigner) Address(_ context.Context, keyId, chain string) (string, error) {
	priv, ok := l.keys[keyId]
	if !ok {
		return "", fmt.Errorf("%w: %s", store.ErrKeyNotFound, keyId)
	}

	switch chain {
	case "ethereum", "bsc", "polygon", "base", "arbitrum":
		return crypto.PubkeyToAddress(priv.PublicKey).Hex(), nil
	default:
		// Non-EVM address encodings live behind the chain's wallet
		// provider, not here.
		return "", nil
	}
}
