package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"asset-settlement-go/internal/common"
	"asset-settlement-go/internal/metrics"
	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"
	"asset-settlement-go/internal/userlock"

	"go.uber.org/zap"
)

// TrackerConfig contains configuration for Tracker.
type TrackerConfig struct {
	DbService       store.Store
	Locks           *userlock.Registry
	Scanners        *Registry
	Metrics         *metrics.Metrics
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// monitoredAddress is one deposit address under watch, with the asset and
// chain it belongs to.
type monitoredAddress struct {
	UserId           string
	Asset            string
	Chain            string
	Address          string
	MinConfirmations int
}

// Tracker polls chain scanners for new deposits and settles them.
type Tracker struct {
	dbService store.Store
	locks     *userlock.Registry
	scanners  *Registry
	metrics   *metrics.Metrics

	// State management for settled transactions
	settledTxIds    map[string]time.Time
	mutex           sync.RWMutex
	lookbackWindow  time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration

	monitoredAddresses []monitoredAddress

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewTracker creates a new deposit tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Hour
	}
	return &Tracker{
		dbService:       cfg.DbService,
		locks:           cfg.Locks,
		scanners:        cfg.Scanners,
		metrics:         cfg.Metrics,
		settledTxIds:    make(map[string]time.Time),
		lookbackWindow:  cfg.LookbackWindow,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cleanup,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the deposit monitoring process.
func (t *Tracker) Start(ctx context.Context, assetsFile string) error {
	zap.L().Info("Starting deposit tracker")

	if err := t.LoadMonitoredAddresses(ctx, assetsFile); err != nil {
		return fmt.Errorf("failed to load monitored addresses: %w", err)
	}

	if len(t.monitoredAddresses) == 0 {
		zap.L().Warn("No addresses to monitor - make sure addresses have been created")
		return fmt.Errorf("no addresses to monitor")
	}

	if err := t.performStartupRecovery(ctx); err != nil {
		zap.L().Error("Startup recovery failed", zap.Error(err))
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	go t.pollLoop(ctx)
	go t.cleanupLoop(ctx)

	zap.L().Info("Deposit tracker started successfully",
		zap.Duration("polling_interval", t.pollingInterval),
		zap.Duration("lookback_window", t.lookbackWindow),
		zap.Int("addresses", len(t.monitoredAddresses)))

	return nil
}

// Stop gracefully stops the deposit tracker.
func (t *Tracker) Stop() {
	zap.L().Info("Stopping deposit tracker")
	close(t.stopChan)
	<-t.doneChan
	zap.L().Info("Deposit tracker stopped")
}

// LoadMonitoredAddresses collects every stored deposit address for assets
// present in the catalog.
func (t *Tracker) LoadMonitoredAddresses(ctx context.Context, assetsFile string) error {
	assets, err := common.LoadAssetConfig(assetsFile)
	if err != nil {
		return err
	}

	chainBySymbol := make(map[string]string, len(assets))
	for _, asset := range assets {
		chainBySymbol[asset.Symbol] = asset.Chain
	}
	thresholds := common.MinConfirmationsBySymbol(assets)

	users, err := t.dbService.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}

	var monitored []monitoredAddress
	for _, user := range users {
		addresses, err := t.dbService.GetUserAddresses(ctx, user.Id)
		if err != nil {
			zap.L().Error("Failed to get addresses for user",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		for _, addr := range addresses {
			chain, ok := chainBySymbol[addr.Asset]
			if !ok {
				continue
			}
			monitored = append(monitored, monitoredAddress{
				UserId:           user.Id,
				Asset:            addr.Asset,
				Chain:            chain,
				Address:          addr.Address,
				MinConfirmations: thresholds[addr.Asset],
			})
		}
	}

	t.monitoredAddresses = monitored
	return nil
}

// pollLoop runs the main polling loop.
func (t *Tracker) pollLoop(ctx context.Context) {
	defer close(t.doneChan)

	ticker := time.NewTicker(t.pollingInterval)
	defer ticker.Stop()

	t.pollAddresses(ctx, time.Now().UTC().Add(-t.lookbackWindow))

	for {
		select {
		case <-ticker.C:
			t.pollAddresses(ctx, time.Now().UTC().Add(-t.lookbackWindow))
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollAddresses polls all monitored addresses for new transactions.
func (t *Tracker) pollAddresses(ctx context.Context, since time.Time) {
	var wg sync.WaitGroup

	for _, addr := range t.monitoredAddresses {
		wg.Add(1)

		go func(a monitoredAddress) {
			defer wg.Done()

			if err := t.pollAddress(ctx, a, since); err != nil {
				zap.L().Error("Failed to poll address",
					zap.String("address", a.Address),
					zap.String("asset", a.Asset),
					zap.Error(err))
			}
		}(addr)
	}

	wg.Wait()
}

// pollAddress fetches an address's recent transactions and settles each.
func (t *Tracker) pollAddress(ctx context.Context, addr monitoredAddress, since time.Time) error {
	chainScanner, err := t.scanners.Scanner(addr.Chain)
	if err != nil {
		return err
	}

	transactions, err := chainScanner.AddressTransactions(ctx, addr.Address, since)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	for _, tx := range transactions {
		if t.isSettled(tx.TxId, tx.OutputIndex) {
			continue
		}
		if err := t.processTransaction(ctx, tx, addr); err != nil {
			zap.L().Error("Failed to process transaction",
				zap.String("tx_id", tx.TxId),
				zap.Int("output_index", tx.OutputIndex),
				zap.String("address", addr.Address),
				zap.Error(err))
		}
	}

	return nil
}

// processTransaction records a newly observed deposit and confirms it once
// the confirmation threshold is met. Both steps run under the user's
// exclusive lock; the record step is idempotent across polls and
// processes.
func (t *Tracker) processTransaction(ctx context.Context, tx models.TransactionInfo, addr monitoredAddress) error {
	release, err := t.locks.Acquire(ctx, addr.UserId)
	if err != nil {
		return err
	}
	defer release()

	deposit, err := t.dbService.RecordDeposit(ctx, store.RecordDepositParams{
		UserId:      addr.UserId,
		Asset:       addr.Asset,
		Amount:      tx.Amount,
		FromAddress: tx.FromAddress,
		ToAddress:   addr.Address,
		TxId:        tx.TxId,
		OutputIndex: tx.OutputIndex,
	})
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateDeposit) {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		deposit, err = t.dbService.GetDepositByTx(ctx, tx.TxId, tx.OutputIndex)
		if err != nil {
			return fmt.Errorf("failed to load recorded deposit: %w", err)
		}
	} else {
		zap.L().Info("Deposit observed",
			zap.String("deposit_id", deposit.Id),
			zap.String("user_id", addr.UserId),
			zap.String("asset", addr.Asset),
			zap.String("amount", tx.Amount.String()),
			zap.String("tx_id", tx.TxId),
			zap.Int("confirmations", tx.Confirmations))
	}

	if deposit.Status == models.DepositStatusConfirmed {
		t.markSettled(tx.TxId, tx.OutputIndex)
		return nil
	}

	if tx.Confirmations < addr.MinConfirmations {
		zap.L().Debug("Deposit below confirmation threshold",
			zap.String("deposit_id", deposit.Id),
			zap.Int("confirmations", tx.Confirmations),
			zap.Int("required", addr.MinConfirmations))
		return nil
	}

	confirmed, err := t.dbService.ConfirmDeposit(ctx, deposit.Id)
	if err != nil {
		return fmt.Errorf("failed to confirm deposit: %w", err)
	}
	t.markSettled(tx.TxId, tx.OutputIndex)
	if t.metrics != nil {
		t.metrics.DepositsConfirmed.Inc()
	}

	zap.L().Info("Deposit confirmed",
		zap.String("deposit_id", confirmed.Id),
		zap.String("user_id", addr.UserId),
		zap.String("asset", addr.Asset),
		zap.String("amount", confirmed.Amount.String()))
	return nil
}

// performStartupRecovery checks for deposits missed during downtime.
func (t *Tracker) performStartupRecovery(ctx context.Context) error {
	zap.L().Info("Starting startup recovery process")

	mostRecentTime, err := t.dbService.GetMostRecentDepositTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to get most recent deposit time: %w", err)
	}

	now := time.Now().UTC()
	recoveryStart := now.Add(-t.lookbackWindow)
	if !mostRecentTime.IsZero() && mostRecentTime.Before(recoveryStart) {
		recoveryStart = mostRecentTime
	}

	zap.L().Info("Recovery window calculated",
		zap.Time("most_recent_deposit", mostRecentTime),
		zap.Time("recovery_start", recoveryStart),
		zap.Duration("lookback_window", t.lookbackWindow))

	t.pollAddresses(ctx, recoveryStart)

	zap.L().Info("Startup recovery completed")
	return nil
}

func txKey(txId string, outputIndex int) string {
	return fmt.Sprintf("%s:%d", txId, outputIndex)
}

func (t *Tracker) isSettled(txId string, outputIndex int) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	_, exists := t.settledTxIds[txKey(txId, outputIndex)]
	return exists
}

func (t *Tracker) markSettled(txId string, outputIndex int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.settledTxIds[txKey(txId, outputIndex)] = time.Now()
}

// cleanupLoop periodically evicts settled-transaction memo entries older
// than the lookback window; the database remains the source of truth for
// duplicate rejection.
func (t *Tracker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanupSettledTxIds()
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) cleanupSettledTxIds() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	cutoff := time.Now().Add(-t.lookbackWindow * 2)
	removed := 0
	for key, settledAt := range t.settledTxIds {
		if settledAt.Before(cutoff) {
			delete(t.settledTxIds, key)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Debug("Cleaned up settled transaction cache",
			zap.Int("removed", removed),
			zap.Int("remaining", len(t.settledTxIds)))
	}
}
