package services

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/kelsos/securevault-tui/internal/contracts"
	"github.com/kelsos/securevault-tui/internal/models"
)

var errBoom = errors.New("boom")

// fakeVault is an in-memory vault contract that counts every call.
type fakeVault struct {
	mu sync.Mutex

	balance  *big.Int
	owners   []common.Address
	required uint64
	minDelay uint64
	paused   bool
	txs      []contracts.VaultTransaction
	approved map[uint64]bool
	ready    map[uint64]bool
	events   []models.VaultEvent

	readErr  error
	writeErr error
	// txErr fails getTransaction only.
	txErr error

	calls map[string]int
	// block, when set, is waited on by the next Balance call only.
	block chan struct{}
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		balance:  big.NewInt(1e18),
		owners:   []common.Address{common.HexToAddress("0xAA"), common.HexToAddress("0xBB")},
		required: 2,
		minDelay: 60,
		approved: make(map[uint64]bool),
		ready:    make(map[uint64]bool),
		calls:    make(map[string]int),
	}
}

func (f *fakeVault) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.readErr
}

func (f *fakeVault) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeVault) setRequired(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.required = n
}

func (f *fakeVault) setTxErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txErr = err
}

func (f *fakeVault) addTx(approvals uint64, queued, executed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, contracts.VaultTransaction{
		Recipient:     common.HexToAddress("0xCC"),
		Amount:        big.NewInt(5e17),
		ApprovalCount: new(big.Int).SetUint64(approvals),
		Executed:      executed,
		Queued:        queued,
		QueuedAt:      new(big.Int),
	})
}

func (f *fakeVault) Balance(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	gate := f.block
	f.block = nil
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.record("balance"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeVault) Owners(context.Context) ([]common.Address, error) {
	if err := f.record("owners"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Address{}, f.owners...), nil
}

func (f *fakeVault) RequiredApprovals(context.Context) (*big.Int, error) {
	if err := f.record("requiredApprovals"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).SetUint64(f.required), nil
}

func (f *fakeVault) MinDelay(context.Context) (*big.Int, error) {
	if err := f.record("minDelay"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).SetUint64(f.minDelay), nil
}

func (f *fakeVault) TransactionCount(context.Context) (*big.Int, error) {
	if err := f.record("transactionCount"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(int64(len(f.txs))), nil
}

func (f *fakeVault) Paused(context.Context) (bool, error) {
	if err := f.record("paused"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused, nil
}

func (f *fakeVault) Transaction(_ context.Context, id *big.Int) (contracts.VaultTransaction, error) {
	if err := f.record("getTransaction"); err != nil {
		return contracts.VaultTransaction{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return contracts.VaultTransaction{}, f.txErr
	}
	return f.txs[id.Uint64()], nil
}

func (f *fakeVault) HasApproved(_ context.Context, id *big.Int, _ common.Address) (bool, error) {
	if err := f.record("hasApproved"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approved[id.Uint64()], nil
}

func (f *fakeVault) IsReadyForExecution(_ context.Context, id *big.Int) (bool, error) {
	if err := f.record("isReadyForExecution"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready[id.Uint64()], nil
}

func (f *fakeVault) FilterEvents(_ context.Context, from, to *big.Int) ([]models.VaultEvent, error) {
	if err := f.record("filterEvents"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VaultEvent
	for _, ev := range f.events {
		if ev.BlockNumber >= from.Uint64() && ev.BlockNumber <= to.Uint64() {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeVault) write(name string) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return types.NewTx(&types.LegacyTx{Nonce: uint64(f.calls[name])}), nil
}

func (f *fakeVault) ProposeTransaction(_ *bind.TransactOpts, recipient common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := f.write("proposeTransaction")
	if err == nil {
		f.mu.Lock()
		f.txs = append(f.txs, contracts.VaultTransaction{
			Recipient:     recipient,
			Amount:        amount,
			ApprovalCount: new(big.Int),
			QueuedAt:      new(big.Int),
		})
		f.mu.Unlock()
	}
	return tx, err
}

func (f *fakeVault) ApproveTransaction(*bind.TransactOpts, *big.Int) (*types.Transaction, error) {
	return f.write("approveTransaction")
}

func (f *fakeVault) RevokeApproval(*bind.TransactOpts, *big.Int) (*types.Transaction, error) {
	return f.write("revokeApproval")
}

func (f *fakeVault) QueueTransaction(*bind.TransactOpts, *big.Int) (*types.Transaction, error) {
	return f.write("queueTransaction")
}

func (f *fakeVault) ExecuteTransaction(*bind.TransactOpts, *big.Int) (*types.Transaction, error) {
	return f.write("executeTransaction")
}

func (f *fakeVault) Pause(*bind.TransactOpts) (*types.Transaction, error) {
	return f.write("pause")
}

func (f *fakeVault) Unpause(*bind.TransactOpts) (*types.Transaction, error) {
	return f.write("unpause")
}

type fakeHead struct {
	mu     sync.Mutex
	number uint64
}

func (h *fakeHead) BlockNumber(context.Context) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.number, nil
}

func (h *fakeHead) set(n uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.number = n
}

// fakeReceipts mines every transaction immediately unless told otherwise.
type fakeReceipts struct {
	status uint64
	err    error
	// gate, when set, is waited on before returning.
	gate chan struct{}
}

func (r *fakeReceipts) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &types.Receipt{Status: r.status, TxHash: tx.Hash(), BlockNumber: big.NewInt(1)}, nil
}

func minedReceipts() *fakeReceipts {
	return &fakeReceipts{status: types.ReceiptStatusSuccessful}
}

// fakeProvider is a scripted wallet.
type fakeProvider struct {
	mu sync.Mutex

	accounts   []common.Address
	authorized []common.Address
	chainID    *big.Int
	requestErr error
	// gate, when set, is waited on by RequestAccounts.
	gate chan struct{}

	requests   int
	transactor int

	accountsFeed event.Feed
	chainFeed    event.Feed
}

func newFakeProvider(chainID int64, accounts ...common.Address) *fakeProvider {
	return &fakeProvider{accounts: accounts, chainID: big.NewInt(chainID)}
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	p.requests++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	p.authorized = append([]common.Address{}, p.accounts...)
	return p.authorized, nil
}

func (p *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]common.Address{}, p.authorized...), nil
}

func (p *fakeProvider) ChainID(context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.chainID), nil
}

func (p *fakeProvider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

func (p *fakeProvider) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

func (p *fakeProvider) Transactor(_ context.Context, account common.Address) (*bind.TransactOpts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactor++
	return &bind.TransactOpts{From: account}, nil
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *fakeProvider) transactorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transactor
}
