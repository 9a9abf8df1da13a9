package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/services"
)

type Tab int

const (
	TabDashboard Tab = iota
	TabPropose
	TabTransactions
)

var tabNames = []string{"Dashboard", "Propose", "Transactions"}

const maxLogLines = 5

// Backend runs the blocking operations the model triggers. Every method is
// called from a tea.Cmd, never from Update.
type Backend interface {
	Connect() error
	Disconnect()
	Refresh()
	Propose(recipient, amount string) error
	Act(action models.Action, id uint64) error
	SetPaused(paused bool) error
}

// Info is static data shown in the header and footer.
type Info struct {
	NetworkName string
	Contract    common.Address
	ContractURL string
	HasWallet   bool
}

type SessionUpdate struct {
	Event models.SessionEvent
}

type SnapshotUpdate struct {
	Snapshot models.VaultSnapshot
}

type TransactionsUpdate struct {
	List services.TransactionList
}

type ActivityUpdate struct {
	Lines []string
}

type LogMessage struct {
	Message string
}

// PasswordRequest asks the user to unlock Account.
type PasswordRequest struct {
	Account common.Address
}

type connectDone struct {
	err error
}

type proposeDone struct {
	err error
}

type actionDone struct {
	key   string
	label string
	err   error
}

type Model struct {
	backend Backend
	broker  *PasswordBroker
	info    Info

	session  models.Session
	snapshot models.VaultSnapshot
	txList   services.TransactionList
	cursor   int
	busy     map[string]string
	activity []string
	logs     []string

	tab       Tab
	recipient textinput.Model
	amount    textinput.Model
	proposing bool

	password    textinput.Model
	passwordFor *common.Address

	spinner  spinner.Model
	progress progress.Model
	width    int
	height   int
	quit     bool
	now      func() time.Time
}

func NewModel(backend Backend, broker *PasswordBroker, info Info) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	pr := progress.New(progress.WithDefaultGradient())
	pr.Width = 30

	recipient := textinput.New()
	recipient.Placeholder = "0x..."
	recipient.CharLimit = 42
	recipient.Width = 44
	recipient.Prompt = "Recipient: "

	amount := textinput.New()
	amount.Placeholder = "0.0"
	amount.CharLimit = 40
	amount.Width = 20
	amount.Prompt = "Amount (ETH): "

	password := textinput.New()
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.Prompt = "Password: "

	return Model{
		backend:   backend,
		broker:    broker,
		info:      info,
		snapshot:  models.NewLoadingSnapshot(),
		busy:      make(map[string]string),
		recipient: recipient,
		amount:    amount,
		password:  password,
		spinner:   sp,
		progress:  pr,
		width:     80,
		height:    24,
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKeyMsg(msg)
		if m.quit {
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case SessionUpdate:
		m = m.handleSessionUpdate(msg)

	case SnapshotUpdate:
		m.snapshot = msg.Snapshot

	case TransactionsUpdate:
		m = m.handleTransactionsUpdate(msg)

	case ActivityUpdate:
		m.activity = msg.Lines

	case LogMessage:
		m = m.addLog(msg.Message)

	case PasswordRequest:
		account := msg.Account
		m.passwordFor = &account
		m.password.Reset()
		cmds = append(cmds, m.password.Focus())

	case connectDone:
		m.session.Connecting = false
		if msg.err != nil {
			m.session.Err = msg.err
			m = m.addLog("Connect failed: " + msg.err.Error())
		}

	case proposeDone:
		m = m.handleProposeDone(msg)

	case actionDone:
		delete(m.busy, msg.key)
		if msg.err != nil {
			m = m.addLog(fmt.Sprintf("%s failed: %v", msg.label, msg.err))
		} else {
			m = m.addLog(msg.label + " confirmed")
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quit = true
		return m, nil
	}

	if m.passwordFor != nil {
		return m.handlePasswordKey(msg)
	}

	if !m.session.IsConnected() {
		switch msg.String() {
		case "q":
			m.quit = true
		case "c":
			return m.connect()
		}
		return m, nil
	}

	if m.tab == TabPropose {
		return m.handleProposeKey(msg)
	}

	switch msg.String() {
	case "q":
		m.quit = true
	case "1":
		m.tab = TabDashboard
	case "2":
		return m.switchTab(TabPropose)
	case "3":
		m.tab = TabTransactions
	case "tab":
		return m.switchTab((m.tab + 1) % Tab(len(tabNames)))
	case "R":
		backend := m.backend
		return m, func() tea.Msg {
			backend.Refresh()
			return nil
		}
	case "d":
		backend := m.backend
		return m, func() tea.Msg {
			backend.Disconnect()
			return nil
		}
	case "p":
		if m.tab == TabDashboard && m.snapshot.IsOwner(m.session.Address) {
			return m.togglePause()
		}
	}

	if m.tab == TabTransactions {
		return m.handleTransactionsKey(msg)
	}
	return m, nil
}

func (m Model) switchTab(tab Tab) (Model, tea.Cmd) {
	m.tab = tab
	if tab == TabPropose {
		m.amount.Blur()
		return m, m.recipient.Focus()
	}
	m.recipient.Blur()
	m.amount.Blur()
	return m, nil
}

func (m Model) connect() (Model, tea.Cmd) {
	if m.session.Connecting {
		return m, nil
	}
	m.session.Connecting = true
	m.session.Err = nil
	backend := m.backend
	return m, func() tea.Msg {
		return connectDone{err: backend.Connect()}
	}
}

func (m Model) handlePasswordKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.broker.Answer(m.password.Value(), true)
		m.passwordFor = nil
		m.password.Reset()
		m.password.Blur()
		return m, nil
	case tea.KeyEsc:
		m.broker.Answer("", false)
		m.passwordFor = nil
		m.password.Reset()
		m.password.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m Model) handleProposeKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab:
		return m.switchTab(TabTransactions)
	case tea.KeyEsc:
		return m.switchTab(TabDashboard)
	case tea.KeyUp, tea.KeyDown:
		return m.toggleProposeFocus()
	case tea.KeyEnter:
		if m.recipient.Focused() {
			return m.toggleProposeFocus()
		}
		return m.submitProposal()
	}

	var cmd tea.Cmd
	if m.recipient.Focused() {
		m.recipient, cmd = m.recipient.Update(msg)
	} else {
		m.amount, cmd = m.amount.Update(msg)
	}
	return m, cmd
}

func (m Model) toggleProposeFocus() (Model, tea.Cmd) {
	if m.recipient.Focused() {
		m.recipient.Blur()
		return m, m.amount.Focus()
	}
	m.amount.Blur()
	return m, m.recipient.Focus()
}

func (m Model) submitProposal() (Model, tea.Cmd) {
	if m.proposing {
		return m, nil
	}
	m.proposing = true
	recipient := strings.TrimSpace(m.recipient.Value())
	amount := strings.TrimSpace(m.amount.Value())
	backend := m.backend
	return m, func() tea.Msg {
		return proposeDone{err: backend.Propose(recipient, amount)}
	}
}

func (m Model) handleProposeDone(msg proposeDone) Model {
	m.proposing = false
	if msg.err != nil {
		return m.addLog("Proposal failed: " + msg.err.Error())
	}
	m.recipient.Reset()
	m.amount.Reset()
	m.recipient.Blur()
	m.amount.Blur()
	m.tab = TabTransactions
	m.cursor = 0
	return m.addLog("Transaction proposed")
}

func (m Model) handleTransactionsKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.txList.Records)-1 {
			m.cursor++
		}
		return m, nil
	case "a":
		return m.act(models.ActionApprove)
	case "u":
		return m.act(models.ActionQueue)
	case "e":
		return m.act(models.ActionExecute)
	case "r":
		return m.act(models.ActionRevoke)
	}
	return m, nil
}

func (m Model) selected() (models.TransactionRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.txList.Records) {
		return models.TransactionRecord{}, false
	}
	return m.txList.Records[m.cursor], true
}

func (m Model) act(action models.Action) (Model, tea.Cmd) {
	record, ok := m.selected()
	if !ok {
		return m, nil
	}
	if !models.AvailableActions(record).Has(action) {
		return m, nil
	}

	key := services.TxKey(record.ID)
	if _, busy := m.busy[key]; busy {
		return m, nil
	}

	label := fmt.Sprintf("%s #%d", capitalize(string(action)), record.ID)
	m.busy[key] = actionProgressLabel(action)
	backend := m.backend
	id := record.ID
	return m, func() tea.Msg {
		return actionDone{key: key, label: label, err: backend.Act(action, id)}
	}
}

func (m Model) togglePause() (Model, tea.Cmd) {
	const key = "pause"
	if _, busy := m.busy[key]; busy {
		return m, nil
	}
	pause := !m.snapshot.Paused
	label := "Unpause"
	m.busy[key] = "Unpausing..."
	if pause {
		label = "Pause"
		m.busy[key] = "Pausing..."
	}
	backend := m.backend
	return m, func() tea.Msg {
		return actionDone{key: key, label: label, err: backend.SetPaused(pause)}
	}
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	if msg.Width > 60 {
		m.progress.Width = msg.Width - 50
	}
	return m
}

func (m Model) handleSessionUpdate(msg SessionUpdate) Model {
	m.session = msg.Event.Session
	switch msg.Event.Kind {
	case models.SessionDisconnected:
		m.txList = services.TransactionList{}
		m.cursor = 0
		m.tab = TabDashboard
	case models.SessionChainReset:
		m.snapshot = models.NewLoadingSnapshot()
		m.txList = services.TransactionList{}
		m.activity = nil
		m.cursor = 0
		m = m.addLog("Network changed, reloading")
	}
	return m
}

func (m Model) handleTransactionsUpdate(msg TransactionsUpdate) Model {
	m.txList = msg.List
	if m.cursor >= len(m.txList.Records) {
		m.cursor = len(m.txList.Records) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

func (m Model) addLog(message string) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", m.now().Format("15:04:05"), message))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	return m
}

func actionProgressLabel(action models.Action) string {
	switch action {
	case models.ActionApprove:
		return "Approving..."
	case models.ActionRevoke:
		return "Revoking..."
	case models.ActionQueue:
		return "Queueing..."
	case models.ActionExecute:
		return "Executing..."
	default:
		return "Processing..."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
