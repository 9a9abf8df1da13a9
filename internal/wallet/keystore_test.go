package wallet

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	mu sync.Mutex
	id *big.Int
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.id), nil
}

func (f *fakeChain) set(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id = big.NewInt(id)
}

func newTestKeystore(t *testing.T) (*keystore.KeyStore, accounts.Account) {
	t.Helper()
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.NewAccount("secret")
	require.NoError(t, err)
	return ks, account
}

func TestOpenKeystoreMissingDir(t *testing.T) {
	_, err := OpenKeystore(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrProviderMissing)
}

func TestNewKeystoreProviderRequiresChain(t *testing.T) {
	ks, _ := newTestKeystore(t)
	_, err := NewKeystoreProvider(ks, nil, nil)
	require.ErrorIs(t, err, ErrProviderMissing)

	_, err = NewKeystoreProvider(nil, &fakeChain{id: big.NewInt(1)}, nil)
	require.ErrorIs(t, err, ErrProviderMissing)
}

func TestRequestAccountsUnlocks(t *testing.T) {
	ks, account := newTestKeystore(t)
	p, err := NewKeystoreProvider(ks, &fakeChain{id: big.NewInt(11155111)}, StaticPassword("secret"))
	require.NoError(t, err)

	before, err := p.Accounts(context.Background())
	require.NoError(t, err)
	require.Empty(t, before)

	changes := make(chan []common.Address, 1)
	sub := p.SubscribeAccountsChanged(changes)
	defer sub.Unsubscribe()

	got, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{account.Address}, got)

	select {
	case notified := <-changes:
		require.Equal(t, got, notified)
	case <-time.After(time.Second):
		t.Fatal("accounts change not published")
	}

	after, err := p.Accounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, got, after)
}

func TestRequestAccountsRejections(t *testing.T) {
	ks, _ := newTestKeystore(t)

	t.Run("wrong password", func(t *testing.T) {
		p, err := NewKeystoreProvider(ks, &fakeChain{id: big.NewInt(1)}, StaticPassword("wrong"))
		require.NoError(t, err)
		_, err = p.RequestAccounts(context.Background())
		require.ErrorIs(t, err, ErrUserRejected)
	})

	t.Run("declined prompt", func(t *testing.T) {
		p, err := NewKeystoreProvider(ks, &fakeChain{id: big.NewInt(1)}, StaticPassword(""))
		require.NoError(t, err)
		_, err = p.RequestAccounts(context.Background())
		require.ErrorIs(t, err, ErrUserRejected)

		var providerErr *ProviderError
		require.True(t, errors.As(err, &providerErr))
		require.Equal(t, CodeUserRejected, providerErr.Code)
	})
}

func TestRequestAccountsPending(t *testing.T) {
	ks, _ := newTestKeystore(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	prompt := func(ctx context.Context, _ accounts.Account) (string, error) {
		close(entered)
		<-release
		return "secret", nil
	}

	p, err := NewKeystoreProvider(ks, &fakeChain{id: big.NewInt(1)}, prompt)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.RequestAccounts(context.Background())
		done <- err
	}()
	<-entered

	_, err = p.RequestAccounts(context.Background())
	require.ErrorIs(t, err, ErrRequestPending)

	close(release)
	require.NoError(t, <-done)
}

func TestPreferAccountUnknown(t *testing.T) {
	ks, _ := newTestKeystore(t)
	p, err := NewKeystoreProvider(ks, &fakeChain{id: big.NewInt(1)}, StaticPassword("secret"))
	require.NoError(t, err)

	p.PreferAccount(common.HexToAddress("0x00000000000000000000000000000000000000AA"))
	_, err = p.RequestAccounts(context.Background())
	require.ErrorContains(t, err, "not found in keystore")
}

func TestTransactorUsesChainID(t *testing.T) {
	ks, account := newTestKeystore(t)
	p, err := NewKeystoreProvider(ks, &fakeChain{id: big.NewInt(11155111)}, StaticPassword("secret"))
	require.NoError(t, err)

	_, err = p.RequestAccounts(context.Background())
	require.NoError(t, err)

	opts, err := p.Transactor(context.Background(), account.Address)
	require.NoError(t, err)
	require.Equal(t, account.Address, opts.From)
	require.NotNil(t, opts.Signer)
}

func TestCheckChainPublishesChanges(t *testing.T) {
	ks, _ := newTestKeystore(t)
	chain := &fakeChain{id: big.NewInt(11155111)}
	p, err := NewKeystoreProvider(ks, chain, nil)
	require.NoError(t, err)

	changes := make(chan *big.Int, 2)
	sub := p.SubscribeChainChanged(changes)
	defer sub.Unsubscribe()

	p.checkChain(context.Background())
	p.checkChain(context.Background())
	require.Empty(t, changes)

	chain.set(1)
	p.checkChain(context.Background())

	select {
	case id := <-changes:
		require.Equal(t, int64(1), id.Int64())
	case <-time.After(time.Second):
		t.Fatal("chain change not published")
	}
}

func TestPromptHelpers(t *testing.T) {
	pw, err := StaticPassword("x")(context.Background(), accounts.Account{})
	require.NoError(t, err)
	require.Equal(t, "x", pw)

	var out strings.Builder
	prompt := ReaderPrompt(strings.NewReader("hunter2\n"), &out)
	pw, err = prompt(context.Background(), accounts.Account{})
	require.NoError(t, err)
	require.Equal(t, "hunter2", pw)
	require.Contains(t, out.String(), "Password for")

	_, err = ReaderPrompt(strings.NewReader(""), &out)(context.Background(), accounts.Account{})
	require.ErrorIs(t, err, ErrPromptDeclined)
}
