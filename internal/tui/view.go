package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/services"
	"github.com/kelsos/securevault-tui/internal/utils"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badgeStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("82")).
			Padding(0, 1)
	pausedBadgeStyle = badgeStyle.Background(lipgloss.Color("196"))
	activeTabStyle   = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Underline(true)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

func (m Model) sectionStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(m.width - 2)
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(m.viewHeader())
	s.WriteString("\n\n")

	switch {
	case m.passwordFor != nil:
		s.WriteString(m.viewPassword())
	case !m.session.IsConnected():
		s.WriteString(m.viewConnect())
	default:
		s.WriteString(m.viewTabs())
		s.WriteString("\n\n")
		switch m.tab {
		case TabDashboard:
			s.WriteString(m.viewDashboard())
		case TabPropose:
			s.WriteString(m.viewPropose())
		case TabTransactions:
			s.WriteString(m.viewTransactions())
		}
		s.WriteString("\n")
		s.WriteString(m.viewActivity())
	}

	if len(m.logs) > 0 {
		s.WriteString("\n")
		for _, line := range m.logs {
			s.WriteString(mutedStyle.Render(line) + "\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(m.viewFooter())
	return s.String()
}

func (m Model) viewHeader() string {
	title := headerStyle.Render("🔐 SecureVault")

	var status string
	switch {
	case m.session.Connecting:
		status = m.spinner.View() + " Connecting..."
	case m.session.IsConnected():
		status = successStyle.Render("● " + utils.ShortAddress(*m.session.Address))
	default:
		status = mutedStyle.Render("○ Not connected")
	}

	header := title + "  " + mutedStyle.Render(m.info.NetworkName) + "  " + status
	if m.session.Err != nil {
		header += "\n" + errorStyle.Render(m.session.Err.Error())
	}
	return header
}

func (m Model) viewConnect() string {
	var b strings.Builder
	b.WriteString("Connect your wallet to manage the vault.\n\n")
	if !m.info.HasWallet {
		b.WriteString(warnStyle.Render("No keystore found. Create one with 'vaultdash account new' or set VAULT_KEYSTORE_DIR."))
		b.WriteString("\n\n")
	}
	b.WriteString("Press 'c' to connect, 'q' to quit")
	return m.sectionStyle().Render(b.String())
}

func (m Model) viewPassword() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Unlock %s\n\n", m.passwordFor.Hex()))
	b.WriteString(m.password.View())
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("enter to unlock, esc to reject"))
	return m.sectionStyle().Render(b.String())
}

func (m Model) viewTabs() string {
	var parts []string
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == m.tab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return strings.Join(parts, "   ")
}

func (m Model) viewDashboard() string {
	snap := m.snapshot
	var b strings.Builder

	if snap.Loading {
		b.WriteString(m.spinner.View() + " Loading vault data...")
		return m.sectionStyle().Render(b.String())
	}

	b.WriteString("📊 Vault Overview")
	if snap.IsOwner(m.session.Address) {
		b.WriteString("  " + badgeStyle.Render("OWNER"))
	}
	if snap.Paused {
		b.WriteString("  " + pausedBadgeStyle.Render("PAUSED"))
	}
	b.WriteString("\n" + strings.Repeat("─", 50) + "\n")

	b.WriteString(fmt.Sprintf("Balance:            %s ETH\n", utils.FormatEth(snap.Balance)))
	b.WriteString(fmt.Sprintf("Required approvals: %d of %d owners\n", snap.RequiredApprovals, len(snap.Owners)))
	b.WriteString(fmt.Sprintf("Timelock delay:     %d seconds\n", snap.MinDelay))
	b.WriteString(fmt.Sprintf("Total transactions: %d\n", snap.TransactionCount))

	b.WriteString("\nOwners\n")
	for _, owner := range snap.Owners {
		line := owner.Hex()
		if m.session.Address != nil && strings.EqualFold(owner.Hex(), m.session.Address.Hex()) {
			line += " " + successStyle.Render("(YOU)")
		}
		b.WriteString("  " + line + "\n")
	}

	if snap.Err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+snap.Err.Error()))
	}
	if label, busy := m.busy["pause"]; busy {
		b.WriteString("\n" + m.spinner.View() + " " + label)
	}

	return m.sectionStyle().Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewPropose() string {
	var b strings.Builder
	b.WriteString("📝 Propose Transaction\n\n")
	b.WriteString(m.recipient.View() + "\n")
	b.WriteString(m.amount.View() + "\n\n")
	if m.proposing {
		b.WriteString(m.spinner.View() + " Proposing...")
	} else {
		b.WriteString(mutedStyle.Render("enter to submit, esc to go back"))
	}
	return m.sectionStyle().Render(b.String())
}

func (m Model) viewTransactions() string {
	var b strings.Builder
	b.WriteString("📋 Recent Transactions\n")
	b.WriteString(strings.Repeat("─", 50) + "\n")

	switch {
	case m.txList.Loading && len(m.txList.Records) == 0:
		b.WriteString(m.spinner.View() + " Loading transactions...")
		return m.sectionStyle().Render(b.String())
	case m.txList.Err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.txList.Err.Error()))
		return m.sectionStyle().Render(b.String())
	case len(m.txList.Records) == 0:
		b.WriteString(mutedStyle.Render("No transactions yet"))
		return m.sectionStyle().Render(b.String())
	}

	for i, record := range m.txList.Records {
		b.WriteString(m.viewRecord(i, record))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("↑/↓ select  a approve  u queue  e execute  r revoke"))
	return m.sectionStyle().Render(b.String())
}

func (m Model) viewRecord(i int, record models.TransactionRecord) string {
	cursor := "  "
	if i == m.cursor {
		cursor = selectedStyle.Render("> ")
	}

	line := fmt.Sprintf("#%-3d %-13s %s ETH → %s  approvals: %d",
		record.ID,
		statusLabel(record.Status()),
		utils.FormatEth(record.Amount),
		utils.ShortAddress(record.Recipient),
		record.ApprovalCount)

	actions := models.AvailableActions(record)
	var extras []string
	if actions.YouApproved {
		extras = append(extras, successStyle.Render("✓ you approved"))
	}
	if label, busy := m.busy[services.TxKey(record.ID)]; busy {
		extras = append(extras, m.spinner.View()+" "+label)
	} else if len(actions.Actions) > 0 {
		var names []string
		for _, action := range actions.Actions {
			names = append(names, string(action))
		}
		extras = append(extras, mutedStyle.Render("["+strings.Join(names, ", ")+"]"))
	}
	if len(extras) > 0 {
		line += "  " + strings.Join(extras, " ")
	}

	if actions.WaitingTimelock {
		remaining := utils.TimelockRemaining(record.QueuedAt, m.snapshot.MinDelay, m.now())
		ratio := utils.TimelockProgress(record.QueuedAt, m.snapshot.MinDelay, m.now())
		line += "\n      " + m.progress.ViewAs(ratio) + " " + warnStyle.Render(fmt.Sprintf("waiting for timelock (%s)", remaining))
	}

	return cursor + line
}

func (m Model) viewActivity() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2)

	var b strings.Builder
	b.WriteString("📡 Recent Activity\n")
	if len(m.activity) == 0 {
		b.WriteString(mutedStyle.Render("No recent events"))
	}
	for _, line := range m.activity {
		b.WriteString(line + "\n")
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewFooter() string {
	footer := fmt.Sprintf("Contract: %s | %s", utils.ShortAddress(m.info.Contract), m.info.ContractURL)
	if m.session.IsConnected() {
		footer += " | R refresh  d disconnect  q quit"
		if m.tab == TabDashboard && m.snapshot.IsOwner(m.session.Address) {
			footer += "  p pause/unpause"
		}
	}
	return footerStyle.Render(footer)
}

func statusLabel(status models.TxStatus) string {
	switch status {
	case models.TxStatusExecuted:
		return "✅ executed"
	case models.TxStatusQueued:
		return "⏳ queued"
	default:
		return "🕐 pending"
	}
}
