package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kelsos/securevault-tui/internal/config"
	"github.com/kelsos/securevault-tui/internal/models"
)

func newTestDashboard(t *testing.T, vault *fakeVault, provider *fakeProvider) *Dashboard {
	t.Helper()
	cfg := config.NewConfig()
	cfg.PollInterval = time.Hour
	deps := Dependencies{
		Vault:    vault,
		Head:     &fakeHead{},
		Receipts: minedReceipts(),
	}
	if provider != nil {
		deps.Provider = provider
	}
	return NewDashboardWithDependencies(cfg, deps)
}

func waitForRecords(t *testing.T, d *Dashboard, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.listed && len(d.list.Records) == n
	}, time.Second, 5*time.Millisecond)
}

func TestDashboardRefreshesOnceAfterConfirmation(t *testing.T) {
	vault := newFakeVault()
	vault.addTx(3, false, false)
	vault.addTx(0, false, false)
	vault.addTx(1, false, false)
	d := newTestDashboard(t, vault, newFakeProvider(config.SepoliaChainID, ownerA))

	_, err := d.Reader.Fetch(context.Background())
	require.NoError(t, err)
	_, err = d.Session.Connect(context.Background())
	require.NoError(t, err)
	waitForRecords(t, d, 3)

	countsBefore := vault.count("transactionCount")
	recordsBefore := vault.count("getTransaction")

	_, err = d.Submitter.Approve(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, countsBefore+1, vault.count("transactionCount"))
	require.Equal(t, recordsBefore+3, vault.count("getTransaction"))
}

func TestDashboardRetriesFailedListOnNextPoll(t *testing.T) {
	vault := newFakeVault()
	vault.addTx(1, false, false)
	vault.setTxErr(errBoom)
	d := newTestDashboard(t, vault, newFakeProvider(config.SepoliaChainID, ownerA))

	_, err := d.Reader.Fetch(context.Background())
	require.NoError(t, err)
	_, err = d.Session.Connect(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.TransactionList().Err != nil
	}, time.Second, 5*time.Millisecond)
	d.mu.Lock()
	require.False(t, d.listed)
	d.mu.Unlock()

	vault.setTxErr(nil)
	d.pollOnce(context.Background())

	list := d.TransactionList()
	require.NoError(t, list.Err)
	require.Len(t, list.Records, 1)

	fetches := vault.count("getTransaction")
	d.pollOnce(context.Background())
	require.Equal(t, fetches, vault.count("getTransaction"))
}

func TestDashboardProposalExtendsList(t *testing.T) {
	vault := newFakeVault()
	d := newTestDashboard(t, vault, newFakeProvider(config.SepoliaChainID, ownerA))

	_, err := d.Session.Connect(context.Background())
	require.NoError(t, err)
	waitForRecords(t, d, 0)

	updates := make(chan TransactionList, 8)
	d.OnTransactions(func(l TransactionList) {
		select {
		case updates <- l:
		default:
		}
	})

	_, err = d.Submitter.Propose(context.Background(), "0x00000000000000000000000000000000000000CC", "1.5")
	require.NoError(t, err)

	list := d.TransactionList()
	require.Len(t, list.Records, 1)
	require.Equal(t, uint64(0), list.Records[0].ID)
	require.Equal(t, uint64(1), d.Reader.Snapshot().TransactionCount)
	require.NotEmpty(t, updates)
}

func TestDashboardDisconnectClearsList(t *testing.T) {
	vault := newFakeVault()
	vault.addTx(1, false, false)
	d := newTestDashboard(t, vault, newFakeProvider(config.SepoliaChainID, ownerA))

	_, err := d.Reader.Fetch(context.Background())
	require.NoError(t, err)
	_, err = d.Session.Connect(context.Background())
	require.NoError(t, err)
	waitForRecords(t, d, 1)

	d.Session.Disconnect()
	require.Empty(t, d.TransactionList().Records)
}

func TestDashboardChainResetReloads(t *testing.T) {
	vault := newFakeVault()
	vault.addTx(1, false, false)
	d := newTestDashboard(t, vault, newFakeProvider(config.SepoliaChainID, ownerA))

	_, err := d.Reader.Fetch(context.Background())
	require.NoError(t, err)
	fetches := vault.count("paused")

	d.handleSessionEvent(models.SessionEvent{Kind: models.SessionChainReset})
	require.Empty(t, d.TransactionList().Records)

	require.Eventually(t, func() bool {
		return vault.count("paused") > fetches && !d.Reader.Snapshot().Loading
	}, time.Second, 5*time.Millisecond)
}

func TestDashboardReadOnlyWithoutWallet(t *testing.T) {
	vault := newFakeVault()
	d := newTestDashboard(t, vault, nil)
	require.False(t, d.HasWallet())

	_, err := d.Session.Connect(context.Background())
	require.Error(t, err)

	d.pollOnce(context.Background())
	require.False(t, d.Reader.Snapshot().Loading)
}
