package wallet

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/signing"
)

// GatewayProvider derives deposit addresses through the signing gateway.
// Key ids follow the pattern "<prefix>/<index>", so the backend decides
// the actual derivation: a KMS resolves them against its HD tree, a local
// signer maps them to configured keys.
type GatewayProvider struct {
	gateway   signing.Gateway
	chain     string
	network   string
	keyPrefix string
}

func NewGatewayProvider(gateway signing.Gateway, chain, network, keyPrefix string) *GatewayProvider {
	return &GatewayProvider{
		gateway:   gateway,
		chain:     chain,
		network:   network,
		keyPrefix: keyPrefix,
	}
}

func (p *GatewayProvider) Network() string {
	return p.network
}

func (p *GatewayProvider) DeriveAddress(ctx context.Context, index uint32, change bool) (*models.AddressInfo, error) {
	branch := 0
	if change {
		branch = 1
	}

	keyId := fmt.Sprintf("%s/%d", p.keyPrefix, index)
	address, err := p.gateway.Address(ctx, keyId, p.chain)
	if err != nil {
		return nil, err
	}
	if address == "" {
		return nil, fmt.Errorf("backend returned no address for key %s on chain %s", keyId, p.chain)
	}

	return &models.AddressInfo{
		Address:        address,
		DerivationPath: fmt.Sprintf("m/44'/60'/0'/%d/%d", branch, index),
		Index:          index,
		Change:         change,
	}, nil
}
