// Package wallet issues deposit addresses. Derivation is delegated to
// per-asset providers (HD wallet, custodian API); this package assigns
// indexes and persists the resulting addresses.
package wallet

import (
	"context"
	"fmt"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"go.uber.org/zap"
)

// AddressProvider derives deposit addresses for one asset.
type AddressProvider interface {
	// Network names the network the derived addresses live on.
	Network() string

	// DeriveAddress derives the address at the given index on the external
	// (change=false) or internal (change=true) branch.
	DeriveAddress(ctx context.Context, index uint32, change bool) (*models.AddressInfo, error)
}

// Service assigns derivation indexes and persists derived addresses.
type Service struct {
	dbService store.Store
	providers map[string]AddressProvider
}

func NewService(dbService store.Store) *Service {
	return &Service{
		dbService: dbService,
		providers: make(map[string]AddressProvider),
	}
}

// Register binds an asset symbol to an address provider.
func (s *Service) Register(asset string, p AddressProvider) {
	s.providers[asset] = p
}

// CreateAddress derives the next unused receive address for the user and
// asset and stores it. The index is the count of the user's existing
// addresses for the asset, so repeated calls walk the derivation path
// forward.
func (s *Service) CreateAddress(ctx context.Context, userId, asset string) (*models.Address, error) {
	provider, ok := s.providers[asset]
	if !ok {
		return nil, fmt.Errorf("no address provider registered for asset %s: %w", asset, store.ErrUnsupportedAsset)
	}

	existing, err := s.dbService.GetUserAddresses(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing addresses: %w", err)
	}
	var index uint32
	for _, addr := range existing {
		if addr.Asset == asset {
			index++
		}
	}

	info, err := provider.DeriveAddress(ctx, index, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address for %s at index %d: %w", asset, index, err)
	}

	address, err := s.dbService.StoreAddress(ctx, store.StoreAddressParams{
		UserId:         userId,
		Asset:          asset,
		Network:        provider.Network(),
		Address:        info.Address,
		DerivationPath: info.DerivationPath,
		AddressIndex:   info.Index,
		Change:         info.Change,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit address created",
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.String("address", info.Address),
		zap.Uint32("index", info.Index))
	return address, nil
}

// Addresses returns the user's stored deposit addresses, optionally
// filtered by asset.
func (s *Service) Addresses(ctx context.Context, userId, asset string) ([]models.Address, error) {
	addresses, err := s.dbService.GetUserAddresses(ctx, userId)
	if err != nil {
		return nil, err
	}
	if asset == "" {
		return addresses, nil
	}
	filtered := addresses[:0]
	for _, addr := range addresses {
		if addr.Asset == asset {
			filtered = append(filtered, addr)
		}
	}
	return filtered, nil
}
