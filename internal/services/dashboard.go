package services

import (
	"context"
	"sync"
	"time"

	"github.com/kelsos/securevault-tui/internal/async"
	"github.com/kelsos/securevault-tui/internal/client"
	"github.com/kelsos/securevault-tui/internal/config"
	"github.com/kelsos/securevault-tui/internal/contracts"
	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/wallet"
)

// VaultContract is everything the dashboard needs from the deployed vault.
type VaultContract interface {
	VaultState
	TransactionSource
	VaultWriter
	EventSource
}

// Dependencies are the external pieces a Dashboard is built from.
type Dependencies struct {
	Vault    VaultContract
	Head     BlockNumberReader
	Receipts ReceiptWaiter
	// Provider may be nil when no wallet is available.
	Provider wallet.Provider
}

// TransactionList is the current state of the recent transactions view.
type TransactionList struct {
	Records []models.TransactionRecord
	Loading bool
	Err     error
}

// Dashboard orchestrates the session, the vault reader, the transaction list,
// the submitter and the activity feed.
type Dashboard struct {
	config       *config.Config
	Session      *SessionManager
	Reader       *VaultReader
	Transactions *TransactionService
	Submitter    *Submitter
	Activity     *ActivityService

	keystore *wallet.KeystoreProvider
	receipts *async.ReceiptManager
	rpc      *client.RPCClient

	mu          sync.Mutex
	ctx         context.Context
	list        TransactionList
	listSeq     uint64
	listedCount uint64
	listed      bool
	listeners   []func(TransactionList)
}

// NewDashboard dials the RPC endpoint and wires every service to it. A missing
// keystore leaves the dashboard usable read-only.
func NewDashboard(ctx context.Context, cfg *config.Config, prompt wallet.PromptFunc) (*Dashboard, error) {
	rpc, err := client.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eth := rpc.Eth()
	vault := contracts.NewVault(cfg.Contract(), eth)
	receipts := async.NewReceiptManager(eth, cfg.ReceiptInterval)

	deps := Dependencies{
		Vault:    vault,
		Head:     eth,
		Receipts: receipts,
	}

	var keystoreProvider *wallet.KeystoreProvider
	if ks, err := wallet.OpenKeystore(cfg.KeystoreDir); err != nil {
		logger.Warn("Wallet unavailable: %v", err)
	} else if keystoreProvider, err = wallet.NewKeystoreProvider(ks, eth, prompt); err != nil {
		logger.Warn("Wallet unavailable: %v", err)
	} else {
		deps.Provider = keystoreProvider
	}

	d := NewDashboardWithDependencies(cfg, deps)
	d.keystore = keystoreProvider
	d.receipts = receipts
	d.rpc = rpc
	return d, nil
}

// NewDashboardWithDependencies wires the services around already built dependencies.
func NewDashboardWithDependencies(cfg *config.Config, deps Dependencies) *Dashboard {
	session := NewSessionManager(deps.Provider, cfg.NetworkName, cfg.ExpectedChainID())

	var signer Signer
	if deps.Provider != nil {
		signer = deps.Provider
	}

	d := &Dashboard{
		config:       cfg,
		Session:      session,
		Reader:       NewVaultReader(deps.Vault),
		Transactions: NewTransactionService(deps.Vault),
		Submitter:    NewSubmitter(deps.Vault, signer, session, deps.Receipts),
		Activity:     NewActivityService(deps.Vault, deps.Head, DefaultActivityLookback),
		ctx:          context.Background(),
	}

	d.Submitter.OnConfirmed(func(SubmitResult) {
		d.Invalidate(d.context())
	})
	session.OnChange(d.handleSessionEvent)

	return d
}

// GetConfig returns the current configuration
func (d *Dashboard) GetConfig() *config.Config {
	return d.config
}

// WaitForRPCReady waits for the node to answer
func (d *Dashboard) WaitForRPCReady(ctx context.Context) bool {
	if d.rpc == nil {
		return true
	}
	return d.rpc.WaitForRPCReady(ctx)
}

// HasWallet reports whether a wallet provider is available.
func (d *Dashboard) HasWallet() bool {
	return d.Submitter.signer != nil
}

func (d *Dashboard) context() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// OnTransactions registers a listener for transaction list changes.
func (d *Dashboard) OnTransactions(listener func(TransactionList)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// TransactionList returns the current transaction list state.
func (d *Dashboard) TransactionList() TransactionList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.list
}

// Start restores a previous wallet authorization and launches the background
// loops. They all stop when ctx ends.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	if d.keystore != nil {
		go d.keystore.Watch(ctx, d.config.PollInterval)
	}
	go d.Session.Watch(ctx)

	if err := d.Session.Restore(ctx); err != nil {
		logger.Debug("No wallet session restored: %v", err)
	}

	go d.poll(ctx)
	go d.Activity.Run(ctx, d.config.PollInterval)
}

func (d *Dashboard) poll(ctx context.Context) {
	d.pollOnce(ctx)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

// pollOnce refreshes the vault snapshot and refetches the transaction list
// only when the transaction count moved.
func (d *Dashboard) pollOnce(ctx context.Context) {
	snapshot, err := d.Reader.Fetch(ctx)
	if err != nil {
		return
	}

	d.mu.Lock()
	changed := !d.listed || d.listedCount != snapshot.TransactionCount
	d.mu.Unlock()

	if changed {
		d.RefreshTransactions(ctx)
	}
}

// Invalidate refetches the vault snapshot and the transaction list, once each.
func (d *Dashboard) Invalidate(ctx context.Context) {
	d.Reader.Refresh(ctx)
	d.RefreshTransactions(ctx)
}

// RefreshTransactions reloads the recent transaction list for the connected
// account using the latest known transaction count.
func (d *Dashboard) RefreshTransactions(ctx context.Context) {
	session := d.Session.Session()
	if session.Address == nil {
		d.setList(0, TransactionList{}, 0)
		return
	}

	count := d.Reader.Snapshot().TransactionCount

	d.mu.Lock()
	d.listSeq++
	seq := d.listSeq
	list := d.list
	list.Loading = true
	d.mu.Unlock()
	d.setList(seq, list, count)

	records, err := d.Transactions.FetchRecent(ctx, count, *session.Address)
	if err != nil {
		list.Loading = false
		list.Err = err
		d.setList(seq, list, count)
		return
	}
	d.setList(seq, TransactionList{Records: records}, count)
}

// setList stores list unless a newer refresh started. seq 0 always applies.
// Only a successful load counts as listed, so a failed one is retried on the
// next poll.
func (d *Dashboard) setList(seq uint64, list TransactionList, count uint64) {
	d.mu.Lock()
	if seq != 0 && seq != d.listSeq {
		d.mu.Unlock()
		return
	}
	if seq == 0 {
		d.listSeq++
	}
	d.list = list
	d.listedCount = count
	d.listed = seq != 0 && !list.Loading && list.Err == nil
	listeners := append([]func(TransactionList){}, d.listeners...)
	d.mu.Unlock()

	for _, listener := range listeners {
		listener(list)
	}
}

func (d *Dashboard) handleSessionEvent(event models.SessionEvent) {
	ctx := d.context()
	switch event.Kind {
	case models.SessionConnected, models.SessionAccount:
		go d.RefreshTransactions(ctx)
	case models.SessionDisconnected:
		d.setList(0, TransactionList{}, 0)
	case models.SessionChainReset:
		d.Reader.Reset()
		d.Activity.Reset()
		d.setList(0, TransactionList{}, 0)
		go d.pollOnce(ctx)
	}
}

// Cleanup stops the receipt poller and closes the RPC connection
func (d *Dashboard) Cleanup() {
	if d.receipts != nil {
		d.receipts.Stop()
	}
	if d.rpc != nil {
		d.rpc.Close()
	}
}
