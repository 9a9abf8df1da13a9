package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/kelsos/securevault-tui/internal/logger"
)

// ChainIDReader reports the chain the RPC node serves.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ Provider = (*KeystoreProvider)(nil)

// KeystoreProvider is a Provider backed by a go-ethereum keystore directory.
// Accounts are authorized by unlocking them with a password obtained from
// the prompt; chain changes are detected by polling the node.
type KeystoreProvider struct {
	ks      *keystore.KeyStore
	chain   ChainIDReader
	prompt  PromptFunc
	account *common.Address // preferred account, first keystore account otherwise

	mu         sync.Mutex
	requesting bool
	authorized []common.Address
	lastChain  *big.Int

	accountsFeed event.Feed
	chainFeed    event.Feed
}

// OpenKeystore opens dir as a keystore. A missing directory means there is no
// provider at all.
func OpenKeystore(dir string) (*keystore.KeyStore, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w (looked in %q)", ErrProviderMissing, dir)
	}
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), nil
}

func NewKeystoreProvider(ks *keystore.KeyStore, chain ChainIDReader, prompt PromptFunc) (*KeystoreProvider, error) {
	if ks == nil || chain == nil {
		return nil, ErrProviderMissing
	}
	if prompt == nil {
		prompt = StaticPassword("")
	}
	return &KeystoreProvider{
		ks:     ks,
		chain:  chain,
		prompt: prompt,
	}, nil
}

// PreferAccount makes RequestAccounts unlock address instead of the first account.
func (p *KeystoreProvider) PreferAccount(address common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account = &address
}

func (p *KeystoreProvider) selectAccount() (accounts.Account, error) {
	available := p.ks.Accounts()
	if len(available) == 0 {
		return accounts.Account{}, errors.New("keystore has no accounts")
	}

	p.mu.Lock()
	preferred := p.account
	p.mu.Unlock()

	if preferred == nil {
		return available[0], nil
	}
	for _, account := range available {
		if account.Address == *preferred {
			return account, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("account %s not found in keystore", preferred.Hex())
}

func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	if p.requesting {
		p.mu.Unlock()
		return nil, ErrRequestPending
	}
	p.requesting = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.requesting = false
		p.mu.Unlock()
	}()

	account, err := p.selectAccount()
	if err != nil {
		return nil, err
	}

	password, err := p.prompt(ctx, account)
	if errors.Is(err, ErrPromptDeclined) {
		return nil, ErrUserRejected
	}
	if err != nil {
		return nil, fmt.Errorf("password prompt failed: %w", err)
	}

	if err := p.ks.Unlock(account, password); err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			logger.Warn("Wrong password for %s", account.Address.Hex())
			return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return nil, fmt.Errorf("failed to unlock %s: %w", account.Address.Hex(), err)
	}

	p.mu.Lock()
	p.authorized = []common.Address{account.Address}
	authorized := p.copyAuthorized()
	p.mu.Unlock()

	logger.Info("Unlocked account %s", account.Address.Hex())
	p.accountsFeed.Send(authorized)
	return authorized, nil
}

func (p *KeystoreProvider) copyAuthorized() []common.Address {
	out := make([]common.Address, len(p.authorized))
	copy(out, p.authorized)
	return out
}

func (p *KeystoreProvider) Accounts(_ context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyAuthorized(), nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.chain.ChainID(ctx)
}

func (p *KeystoreProvider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

func (p *KeystoreProvider) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

func (p *KeystoreProvider) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	chainID, err := p.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	opts, err := bind.NewKeyStoreTransactorWithChainID(p.ks, accounts.Account{Address: account}, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor for %s: %w", account.Hex(), err)
	}
	opts.Context = ctx
	return opts, nil
}

// Watch turns keystore wallet events and chain id changes into notifications
// until ctx ends. The keystore subscription is released on return.
func (p *KeystoreProvider) Watch(ctx context.Context, chainPollInterval time.Duration) {
	walletEvents := make(chan accounts.WalletEvent, 16)
	sub := p.ks.Subscribe(walletEvents)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(chainPollInterval)
	defer ticker.Stop()

	p.checkChain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				logger.Error("Keystore subscription failed: %v", err)
			}
			return
		case ev := <-walletEvents:
			if ev.Kind == accounts.WalletDropped {
				p.dropWallet(ev.Wallet)
			}
		case <-ticker.C:
			p.checkChain(ctx)
		}
	}
}

func (p *KeystoreProvider) dropWallet(wallet accounts.Wallet) {
	dropped := make(map[common.Address]bool)
	for _, account := range wallet.Accounts() {
		dropped[account.Address] = true
	}

	p.mu.Lock()
	remaining := p.authorized[:0]
	changed := false
	for _, address := range p.authorized {
		if dropped[address] {
			changed = true
			continue
		}
		remaining = append(remaining, address)
	}
	p.authorized = remaining
	authorized := p.copyAuthorized()
	p.mu.Unlock()

	if changed {
		logger.Info("Authorized account removed from keystore")
		p.accountsFeed.Send(authorized)
	}
}

func (p *KeystoreProvider) checkChain(ctx context.Context) {
	chainID, err := p.chain.ChainID(ctx)
	if err != nil {
		logger.Warn("Failed to poll chain id: %v", err)
		return
	}

	p.mu.Lock()
	previous := p.lastChain
	p.lastChain = chainID
	p.mu.Unlock()

	if previous != nil && previous.Cmp(chainID) != 0 {
		logger.Info("Chain changed from %s to %s", previous, chainID)
		p.chainFeed.Send(chainID)
	}
}

// NewAccount creates dir if needed and stores a fresh key encrypted with password.
func NewAccount(dir, password string) (accounts.Account, error) {
	if password == "" {
		return accounts.Account{}, errors.New("password must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return accounts.Account{}, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.NewAccount(password)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	logger.Info("Created account %s in %s", account.Address.Hex(), dir)
	return account, nil
}

// ListAccounts returns the accounts stored in ks.
func ListAccounts(ks *keystore.KeyStore) []common.Address {
	var out []common.Address
	for _, account := range ks.Accounts() {
		out = append(out, account.Address)
	}
	return out
}
