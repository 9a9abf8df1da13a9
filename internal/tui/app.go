package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/accounts"

	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/services"
	"github.com/kelsos/securevault-tui/internal/wallet"
)

// PasswordBroker turns wallet unlock prompts into TUI password dialogs.
type PasswordBroker struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending chan passwordAnswer
}

type passwordAnswer struct {
	password string
	ok       bool
}

func NewPasswordBroker() *PasswordBroker {
	return &PasswordBroker{}
}

// Attach sets the function used to deliver PasswordRequest messages.
func (b *PasswordBroker) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Prompt is a wallet.PromptFunc that waits for the user to answer in the TUI.
func (b *PasswordBroker) Prompt(ctx context.Context, account accounts.Account) (string, error) {
	b.mu.Lock()
	send := b.send
	if send == nil || b.pending != nil {
		b.mu.Unlock()
		return "", wallet.ErrPromptDeclined
	}
	reply := make(chan passwordAnswer, 1)
	b.pending = reply
	b.mu.Unlock()

	send(PasswordRequest{Account: account.Address})

	select {
	case <-ctx.Done():
		b.mu.Lock()
		b.pending = nil
		b.mu.Unlock()
		return "", ctx.Err()
	case answer := <-reply:
		if !answer.ok {
			return "", wallet.ErrPromptDeclined
		}
		return answer.password, nil
	}
}

// Answer resolves the pending prompt, if any.
func (b *PasswordBroker) Answer(password string, ok bool) {
	b.mu.Lock()
	reply := b.pending
	b.pending = nil
	b.mu.Unlock()

	if reply != nil {
		reply <- passwordAnswer{password: password, ok: ok}
	}
}

// dashboardBackend runs model commands against the dashboard services.
type dashboardBackend struct {
	ctx       context.Context
	dashboard *services.Dashboard
}

func (b dashboardBackend) Connect() error {
	_, err := b.dashboard.Session.Connect(b.ctx)
	return err
}

func (b dashboardBackend) Disconnect() {
	b.dashboard.Session.Disconnect()
}

func (b dashboardBackend) Refresh() {
	b.dashboard.Invalidate(b.ctx)
}

func (b dashboardBackend) Propose(recipient, amount string) error {
	_, err := b.dashboard.Submitter.Propose(b.ctx, recipient, amount)
	return err
}

func (b dashboardBackend) Act(action models.Action, id uint64) error {
	_, err := b.dashboard.Submitter.Act(b.ctx, action, id)
	return err
}

func (b dashboardBackend) SetPaused(paused bool) error {
	var err error
	if paused {
		_, err = b.dashboard.Submitter.Pause(b.ctx)
	} else {
		_, err = b.dashboard.Submitter.Unpause(b.ctx)
	}
	return err
}

// Monitor runs the dashboard TUI and forwards service updates into it.
type Monitor struct {
	dashboard *services.Dashboard
	broker    *PasswordBroker
	program   *tea.Program
}

func NewMonitor(dashboard *services.Dashboard, broker *PasswordBroker) *Monitor {
	return &Monitor{
		dashboard: dashboard,
		broker:    broker,
	}
}

func (m *Monitor) send(msg tea.Msg) {
	if m.program != nil {
		m.program.Send(msg)
	}
}

// Start builds the program and subscribes it to the dashboard services.
func (m *Monitor) Start(ctx context.Context) error {
	cfg := m.dashboard.GetConfig()
	model := NewModel(dashboardBackend{ctx: ctx, dashboard: m.dashboard}, m.broker, Info{
		NetworkName: cfg.NetworkName,
		Contract:    cfg.Contract(),
		ContractURL: cfg.ContractURL(),
		HasWallet:   m.dashboard.HasWallet(),
	})
	m.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	m.broker.Attach(m.send)

	m.dashboard.Session.OnChange(func(event models.SessionEvent) {
		m.send(SessionUpdate{Event: event})
	})
	m.dashboard.Reader.OnUpdate(func(snapshot models.VaultSnapshot) {
		m.send(SnapshotUpdate{Snapshot: snapshot})
	})
	m.dashboard.OnTransactions(func(list services.TransactionList) {
		m.send(TransactionsUpdate{List: list})
	})
	m.dashboard.Activity.OnUpdate(func(events []models.VaultEvent) {
		lines := make([]string, 0, len(events))
		for _, event := range events {
			lines = append(lines, services.FormatEvent(event))
		}
		m.send(ActivityUpdate{Lines: lines})
	})

	return nil
}

func (m *Monitor) Stop() {
	if m.program != nil {
		m.program.Quit()
	}
}

// Run starts the dashboard loops and blocks until the user quits.
func (m *Monitor) Run(ctx context.Context) error {
	go func() {
		if !m.dashboard.WaitForRPCReady(ctx) {
			m.send(LogMessage{Message: "RPC endpoint is not responding"})
			logger.Error("RPC endpoint is not responding")
		}
		m.dashboard.Start(ctx)
	}()

	if _, err := m.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}
