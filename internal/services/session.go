package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/wallet"
)

const (
	pendingRequestMessage = "Please check your wallet - there is a pending connection request waiting for your approval."
	rejectedMessage       = "Connection rejected. Please approve the connection in your wallet."
)

// ErrAlreadyConnecting is returned when Connect is called while another
// connect is still waiting on the wallet.
var ErrAlreadyConnecting = errors.New("a connection request is already in progress")

// WrongNetworkError means the wallet is on a different chain than the vault.
type WrongNetworkError struct {
	Network  string
	Expected *big.Int
	Current  *big.Int
}

func (e *WrongNetworkError) Error() string {
	return fmt.Sprintf("Please switch to %s (Chain ID: %s), wallet is on chain %s", e.Network, e.Expected, e.Current)
}

// ConnectError carries the message shown to the user for a failed wallet
// request together with the provider error behind it.
type ConnectError struct {
	Message string
	Err     error
}

func (e *ConnectError) Error() string { return e.Message }
func (e *ConnectError) Unwrap() error { return e.Err }

func connectError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrRequestPending), strings.Contains(err.Error(), "already pending"):
		return &ConnectError{Message: pendingRequestMessage, Err: err}
	case errors.Is(err, wallet.ErrUserRejected):
		return &ConnectError{Message: rejectedMessage, Err: err}
	default:
		return &ConnectError{Message: err.Error(), Err: err}
	}
}

// SessionManager owns the wallet connection state.
type SessionManager struct {
	provider wallet.Provider
	network  string
	expected *big.Int

	mu        sync.Mutex
	session   models.Session
	listeners []func(models.SessionEvent)
}

// NewSessionManager creates a session manager. A nil provider is allowed and
// makes every connect attempt fail with wallet.ErrProviderMissing.
func NewSessionManager(provider wallet.Provider, network string, expectedChainID *big.Int) *SessionManager {
	return &SessionManager{
		provider: provider,
		network:  network,
		expected: expectedChainID,
	}
}

// OnChange registers a listener for every session state change.
func (m *SessionManager) OnChange(listener func(models.SessionEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Session returns a copy of the current state.
func (m *SessionManager) Session() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copySession()
}

func (m *SessionManager) copySession() models.Session {
	s := m.session
	if s.Address != nil {
		address := *s.Address
		s.Address = &address
	}
	if s.ChainID != nil {
		s.ChainID = new(big.Int).Set(s.ChainID)
	}
	return s
}

// update applies fn under the lock and publishes the result.
func (m *SessionManager) update(kind models.SessionEventKind, fn func(s *models.Session)) models.Session {
	m.mu.Lock()
	fn(&m.session)
	snapshot := m.copySession()
	listeners := append([]func(models.SessionEvent){}, m.listeners...)
	m.mu.Unlock()

	event := models.SessionEvent{Kind: kind, Session: snapshot}
	for _, listener := range listeners {
		listener(event)
	}
	return snapshot
}

// Connect asks the wallet for an account and checks it is on the expected
// chain. The account stays unset on any failure.
func (m *SessionManager) Connect(ctx context.Context) (common.Address, error) {
	if m.provider == nil {
		return common.Address{}, wallet.ErrProviderMissing
	}

	m.mu.Lock()
	if m.session.Connecting {
		m.mu.Unlock()
		logger.Debug("Connect ignored, a request is already in progress")
		return common.Address{}, ErrAlreadyConnecting
	}
	m.session.Connecting = true
	m.mu.Unlock()

	m.update(models.SessionConnecting, func(s *models.Session) { s.Err = nil })

	address, chainID, err := m.requestAccount(ctx)
	if err != nil {
		logger.Warn("Wallet connection failed: %v", err)
		m.update(models.SessionFailed, func(s *models.Session) {
			s.Connecting = false
			s.Address = nil
			s.Err = err
		})
		return common.Address{}, err
	}

	m.update(models.SessionConnected, func(s *models.Session) {
		s.Connecting = false
		s.Address = &address
		s.ChainID = chainID
		s.Err = nil
	})
	logger.Info("Connected %s on chain %s", address.Hex(), chainID)
	return address, nil
}

func (m *SessionManager) requestAccount(ctx context.Context) (common.Address, *big.Int, error) {
	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, nil, connectError(err)
	}
	if len(accounts) == 0 {
		return common.Address{}, nil, &ConnectError{Message: "No accounts returned by the wallet"}
	}

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return common.Address{}, nil, connectError(err)
	}
	if m.expected != nil && chainID.Cmp(m.expected) != 0 {
		return common.Address{}, nil, &WrongNetworkError{
			Network:  m.network,
			Expected: new(big.Int).Set(m.expected),
			Current:  chainID,
		}
	}

	return accounts[0], chainID, nil
}

// Disconnect forgets the connected account. The wallet itself is untouched.
func (m *SessionManager) Disconnect() {
	m.update(models.SessionDisconnected, func(s *models.Session) {
		s.Address = nil
		s.ChainID = nil
		s.Err = nil
	})
	logger.Info("Disconnected")
}

// Restore adopts an account the wallet has already authorized, without prompting.
func (m *SessionManager) Restore(ctx context.Context) error {
	if m.provider == nil {
		return wallet.ErrProviderMissing
	}

	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to check wallet connection: %w", err)
	}
	if len(accounts) == 0 {
		return nil
	}

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}

	address := accounts[0]
	m.update(models.SessionConnected, func(s *models.Session) {
		s.Address = &address
		s.ChainID = chainID
		s.Err = nil
	})
	return nil
}

// Watch follows account and chain changes reported by the wallet until ctx
// ends. Both subscriptions are released before Watch returns.
func (m *SessionManager) Watch(ctx context.Context) {
	if m.provider == nil {
		return
	}

	accountsCh := make(chan []common.Address, 4)
	chainCh := make(chan *big.Int, 4)

	accountsSub := m.provider.SubscribeAccountsChanged(accountsCh)
	defer accountsSub.Unsubscribe()
	chainSub := m.provider.SubscribeChainChanged(chainCh)
	defer chainSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-accountsSub.Err():
			if err != nil {
				logger.Error("Account subscription failed: %v", err)
			}
			return
		case err := <-chainSub.Err():
			if err != nil {
				logger.Error("Chain subscription failed: %v", err)
			}
			return
		case accounts := <-accountsCh:
			m.handleAccountsChanged(accounts)
		case chainID := <-chainCh:
			m.handleChainChanged(chainID)
		}
	}
}

func (m *SessionManager) handleAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		m.Disconnect()
		return
	}

	current := m.Session()
	if current.Address != nil && *current.Address == accounts[0] {
		return
	}
	if current.Connecting {
		// Connect publishes the result itself.
		return
	}

	address := accounts[0]
	m.update(models.SessionAccount, func(s *models.Session) {
		s.Address = &address
	})
	logger.Info("Account changed to %s", address.Hex())
}

// handleChainChanged publishes a reset: every view reloads from scratch.
func (m *SessionManager) handleChainChanged(chainID *big.Int) {
	m.update(models.SessionChainReset, func(s *models.Session) {
		s.ChainID = chainID
		if m.expected != nil && chainID.Cmp(m.expected) != 0 && s.Address != nil {
			s.Address = nil
			s.Err = &WrongNetworkError{
				Network:  m.network,
				Expected: new(big.Int).Set(m.expected),
				Current:  chainID,
			}
		}
	})
	logger.Info("Chain changed to %s, reloading", chainID)
}
