package main

import (
	"context"
	"time"

	"github.com/ghost-labs/tradenode/pkg/custody"
	"github.com/ghost-labs/tradenode/pkg/stacks"
)

// defaultSyncInterval is how often the cache reconciles with the custody
// service when nothing triggers an early refresh.
const defaultSyncInterval = 5 * time.Minute

// CustodyReader is the read-only slice of the custody API the cache
// mirrors from.
type CustodyReader interface {
	GetSubOrgIDs(ctx context.Context, organizationID string) ([]string, error)
	GetOrganization(ctx context.Context, organizationID string) (*custody.Organization, error)
	GetWallets(ctx context.Context, organizationID string) ([]custody.Wallet, error)
	GetWalletAccounts(ctx context.Context, organizationID, walletID string) ([]custody.WalletAccount, error)
}

// CacheWorker keeps the local mirror of custody metadata fresh: every
// sub-organization under the parent, its wallets, and their accounts with
// locally derived chain addresses. It runs on a timer and accepts
// non-blocking refresh triggers.
type CacheWorker struct {
	reader      CustodyReader
	store       *Store
	parentOrgID string
	network     stacks.Network
	interval    time.Duration
	refreshCh   chan struct{}
	metrics     *Metrics
	logger      Logger
}

// NewCacheWorker builds the worker. A non-positive interval falls back to
// the default.
func NewCacheWorker(reader CustodyReader, store *Store, parentOrgID string, network stacks.Network, interval time.Duration, metrics *Metrics, logger Logger) *CacheWorker {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &CacheWorker{
		reader:      reader,
		store:       store,
		parentOrgID: parentOrgID,
		network:     network,
		interval:    interval,
		refreshCh:   make(chan struct{}, 1),
		metrics:     metrics,
		logger:      logger.NewSystem("cache-worker"),
	}
}

// Refresh requests an early reconciliation. It never blocks; if a refresh
// is already queued the request coalesces into it.
func (w *CacheWorker) Refresh() {
	select {
	case w.refreshCh <- struct{}{}:
	default:
	}
}

// Start runs the reconciliation loop until the context is cancelled. An
// initial sync runs immediately.
func (w *CacheWorker) Start(ctx context.Context) {
	w.logger.Info("cache worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.syncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cache worker stopped")
			return
		case <-ticker.C:
			w.syncOnce(ctx)
		case <-w.refreshCh:
			w.syncOnce(ctx)
		}
	}
}

// syncOnce mirrors the full sub-organization tree. Per-organization
// failures are logged and skipped so one broken organization cannot stall
// the rest of the sweep.
func (w *CacheWorker) syncOnce(ctx context.Context) {
	started := time.Now()
	subOrgIDs, err := w.reader.GetSubOrgIDs(ctx, w.parentOrgID)
	if err != nil {
		w.logger.Error("failed to list sub-organizations", "error", err)
		if w.metrics != nil {
			w.metrics.CacheSyncTotal.WithLabelValues("error").Inc()
		}
		return
	}

	var synced int
	for _, subOrgID := range subOrgIDs {
		if ctx.Err() != nil {
			return
		}
		if err := w.syncOrganization(ctx, subOrgID); err != nil {
			w.logger.Warn("failed to sync organization", "org", subOrgID, "error", err)
			continue
		}
		synced++
	}

	if w.metrics != nil {
		w.metrics.CacheSyncTotal.WithLabelValues("ok").Inc()
		w.metrics.CachedOrganizations.Set(float64(synced))
	}
	w.logger.Info("cache sync complete", "organizations", synced, "elapsed", time.Since(started))
}

func (w *CacheWorker) syncOrganization(ctx context.Context, orgID string) error {
	org, err := w.reader.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if err := w.store.UpsertOrganization(TradingOrganization{
		ID:   org.OrganizationID,
		Name: org.OrganizationName,
	}); err != nil {
		return err
	}

	wallets, err := w.reader.GetWallets(ctx, orgID)
	if err != nil {
		return err
	}
	for _, wallet := range wallets {
		if err := w.store.UpsertWallet(TradingWallet{
			ID:             wallet.WalletID,
			OrganizationID: orgID,
			Name:           wallet.WalletName,
		}); err != nil {
			return err
		}

		accounts, err := w.reader.GetWalletAccounts(ctx, orgID, wallet.WalletID)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			row := TradingWalletAccount{
				ID:             account.WalletAccountID,
				WalletID:       wallet.WalletID,
				OrganizationID: orgID,
				Curve:          account.Curve,
				AddressFormat:  account.AddressFormat,
				Path:           account.Path,
				PublicKey:      account.PublicKey,
			}
			if address, err := stacks.AddressFromPublicKey(account.PublicKey, w.network); err == nil {
				row.StacksAddress = address
			} else {
				// Keys on other curves or formats stay cached without a
				// chain address and are refused by the signing paths.
				w.logger.Debug("account has no derivable address", "account", account.WalletAccountID, "curve", account.Curve)
			}
			if err := w.store.UpsertWalletAccount(row); err != nil {
				return err
			}
		}
	}
	return nil
}
