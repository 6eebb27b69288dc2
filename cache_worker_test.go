package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghost-labs/tradenode/pkg/custody"
	"github.com/ghost-labs/tradenode/pkg/stacks"
)

type fakeCustodyReader struct {
	subOrgIDs []string
	orgs      map[string]*custody.Organization
	wallets   map[string][]custody.Wallet
	accounts  map[string][]custody.WalletAccount
	orgErrs   map[string]error
	listErr   error
}

func (f *fakeCustodyReader) GetSubOrgIDs(ctx context.Context, organizationID string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subOrgIDs, nil
}

func (f *fakeCustodyReader) GetOrganization(ctx context.Context, organizationID string) (*custody.Organization, error) {
	if err := f.orgErrs[organizationID]; err != nil {
		return nil, err
	}
	return f.orgs[organizationID], nil
}

func (f *fakeCustodyReader) GetWallets(ctx context.Context, organizationID string) ([]custody.Wallet, error) {
	return f.wallets[organizationID], nil
}

func (f *fakeCustodyReader) GetWalletAccounts(ctx context.Context, organizationID, walletID string) ([]custody.WalletAccount, error) {
	return f.accounts[walletID], nil
}

func newPopulatedReader() *fakeCustodyReader {
	return &fakeCustodyReader{
		subOrgIDs: []string{"sub-1"},
		orgs: map[string]*custody.Organization{
			"sub-1": {OrganizationID: "sub-1", OrganizationName: "trading-org-alice"},
		},
		wallets: map[string][]custody.Wallet{
			"sub-1": {{WalletID: "wallet-1", WalletName: "Trading Wallet"}},
		},
		accounts: map[string][]custody.WalletAccount{
			"wallet-1": {
				{
					WalletAccountID: "account-1",
					WalletID:        "wallet-1",
					Curve:           custody.CurveSecp256k1,
					AddressFormat:   custody.AddressFormatCompressed,
					Path:            signingAccountPath,
					PublicKey:       testAccountPublicKey,
				},
				{
					WalletAccountID: "account-ed",
					WalletID:        "wallet-1",
					Curve:           "CURVE_ED25519",
					PublicKey:       "not-a-secp-key",
				},
			},
		},
	}
}

func newTestCacheWorker(t *testing.T, reader CustodyReader) (*CacheWorker, *Store) {
	t.Helper()
	store := NewStore(setupTestDB(t))
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	worker := NewCacheWorker(reader, store, "parent-1", stacks.NetworkMainnet, time.Minute, metrics, NewLoggerIPFS("test"))
	return worker, store
}

func TestCacheWorkerMirrorsCustodyTree(t *testing.T) {
	worker, store := newTestCacheWorker(t, newPopulatedReader())

	worker.syncOnce(context.Background())

	orgs, err := store.ListOrganizations()
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "trading-org-alice", orgs[0].Name)

	wallets, err := store.ListWallets("sub-1")
	require.NoError(t, err)
	require.Len(t, wallets, 1)

	accounts, err := store.ListWalletAccounts("wallet-1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byID := map[string]TradingWalletAccount{}
	for _, account := range accounts {
		byID[account.ID] = account
	}

	// The signing-capable account gets a locally derived chain address.
	derived, err := stacks.AddressFromPublicKey(testAccountPublicKey, stacks.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, derived, byID["account-1"].StacksAddress)

	// Keys the chain cannot use stay cached without an address.
	edAccount := byID["account-ed"]
	assert.Empty(t, edAccount.StacksAddress)
	assert.False(t, edAccount.EligibleForSigning())
}

func TestCacheWorkerSyncIsIdempotent(t *testing.T) {
	worker, store := newTestCacheWorker(t, newPopulatedReader())

	worker.syncOnce(context.Background())
	worker.syncOnce(context.Background())

	accounts, err := store.ListWalletAccounts("wallet-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestCacheWorkerSkipsBrokenOrganizations(t *testing.T) {
	reader := newPopulatedReader()
	reader.subOrgIDs = []string{"broken", "sub-1"}
	reader.orgErrs = map[string]error{"broken": errors.New("forbidden")}
	worker, store := newTestCacheWorker(t, reader)

	worker.syncOnce(context.Background())

	orgs, err := store.ListOrganizations()
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}

func TestCacheWorkerRefreshCoalesces(t *testing.T) {
	worker, _ := newTestCacheWorker(t, newPopulatedReader())

	// Repeated triggers collapse into the single buffered slot; none block.
	for i := 0; i < 5; i++ {
		worker.Refresh()
	}
	assert.Len(t, worker.refreshCh, 1)
}
