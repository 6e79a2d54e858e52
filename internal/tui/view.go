package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/state"
)

const version = "drydock v0.1.0"

func (m model) View() string {
	if m.quitting {
		return ""
	}

	ids := m.manager.IDs()

	title := version
	project := quipStyle.Render(m.cfg.Project)
	gap := max(1, m.width-lipgloss.Width(title)-lipgloss.Width(project)-4)
	header := headerStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + project)

	if len(ids) == 0 {
		return m.renderEmptyState(header)
	}
	return m.renderSplitView(header, ids)
}

func (m model) renderEmptyState(header string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	b.WriteString(emptyStyle.Render("No deployments registered. Run `drydock init` or add some to " + config.Dir + "/" + config.ConfigFile + "."))
	b.WriteString("\n\n")
	b.WriteString(hotkeysStyle.Render("[?] help  [q] quit"))
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	m.renderStatusAndInput(&b)

	if m.showHelp {
		return m.renderHelpOverlay(b.String())
	}
	return b.String()
}

func (m model) renderSplitView(header string, ids []string) string {
	var b strings.Builder

	b.WriteString(header)
	b.WriteString("\n")

	for i, id := range ids {
		b.WriteString(m.renderDeployment(i, id))
		b.WriteString("\n")
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	// header, list, two dividers, hotkeys, status, input
	footerLines := 4
	if m.commanding {
		footerLines++
	}
	detailHeight := max(3, m.height-1-len(ids)-1-1-footerLines)
	b.WriteString(m.renderDetail(ids, detailHeight))

	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	if m.commanding {
		b.WriteString(hotkeysStyle.Render("[enter] execute  [esc] cancel"))
	} else if m.confirmRemove {
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Take %s down? Press d again to confirm, any other key to cancel", m.confirmRemoveID)))
	} else {
		b.WriteString(hotkeysStyle.Render("[↑↓] select  [s]tart  [x] stop  [r]estart  [d]own  [/] command  [?] help"))
	}
	b.WriteString("\n")

	m.renderStatusAndInput(&b)

	if m.showHelp {
		return m.renderHelpOverlay(b.String())
	}
	return b.String()
}

// renderDetail shows live progress for the selected deployment while a verb
// runs, otherwise its members and last errors.
func (m model) renderDetail(ids []string, height int) string {
	var lines []string

	if m.cursor >= len(ids) {
		lines = append(lines, detailEmptyStyle.Render("No deployment selected"))
		return padLines(lines, height)
	}
	id := ids[m.cursor]

	if verb, busy := m.busy[id]; busy {
		events, _, _ := m.progress.get(id)
		lines = append(lines, detailEmptyStyle.Render(fmt.Sprintf("[%s] %s...", id, verbLabel(verb))))
		for _, ev := range events {
			lines = append(lines, detailStyle.Render(fmt.Sprintf("%s  %s", ev.Member, ev.Status)))
		}
		return padLines(tail(lines, height), height)
	}

	s, ok := m.manager.State(id)
	if !ok {
		lines = append(lines, detailEmptyStyle.Render("No state yet"))
	} else {
		members := s.Members()
		if len(members) == 0 {
			lines = append(lines, detailEmptyStyle.Render("No containers"))
		}
		for _, name := range sortedKeys(members) {
			lines = append(lines, detailStyle.Render(name+"  ")+memberStyle(members[name]).Render(members[name]))
		}
	}
	for _, e := range m.manager.Errors([]string{id})[id] {
		if lipgloss.Width(e) > m.width-4 && m.width > 4 {
			e = e[:m.width-4]
		}
		lines = append(lines, errorStyle.Render(e))
	}
	return padLines(tail(lines, height), height)
}

func tail(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

func padLines(lines []string, height int) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	for i := len(lines); i < height; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderDeployment(index int, id string) string {
	cursor := "  "
	nStyle := nameStyle
	if index == m.cursor {
		cursor = "▸ "
		nStyle = selectedNameStyle
	}

	s, known := m.manager.State(id)
	_, busy := m.busy[id]
	icon, iStyle := stateIcon(s, known, busy)

	parts := []string{fmt.Sprintf("  %s%s %s", cursor, iStyle.Render(icon), nStyle.Render(id))}
	if def, err := m.manager.Definition(id); err == nil {
		parts = append(parts, kindStyle.Render(string(def.Kind())))
		if !def.Startable() {
			parts = append(parts, kindStyle.Render("read-only"))
		}
	}
	if known {
		parts = append(parts, healthStyle(s).Render(label(s)))
	}
	if n := len(m.manager.Errors([]string{id})[id]); n > 0 {
		parts = append(parts, errorCountStyle.Render(fmt.Sprintf("%d error(s)", n)))
	}
	return strings.Join(parts, "  ")
}

// label is "running/healthy", "stopped", etc.
func label(s state.DeploymentState) string {
	if s.Status() == state.StatusRunning {
		return fmt.Sprintf("%s/%s", s.Status(), s.Health())
	}
	return string(s.Status())
}

func stateIcon(s state.DeploymentState, known, busy bool) (string, lipgloss.Style) {
	switch {
	case busy:
		return "◍", statusOther
	case !known || s.Status() == state.StatusUnknown:
		return "◌", statusOther
	case s.IsRunning() && s.IsHealthy():
		return "●", statusRunning
	case s.IsRunning():
		return "◎", statusOther
	default:
		return "○", statusStopped
	}
}

func healthStyle(s state.DeploymentState) lipgloss.Style {
	switch {
	case s.IsRunning() && s.IsHealthy():
		return statusRunning
	case s.Health() == state.HealthUnhealthy:
		return statusStopped
	default:
		return statusOther
	}
}

func memberStyle(status string) lipgloss.Style {
	switch status {
	case "running", "healthy":
		return statusRunning
	case "exited", "dead", "unhealthy":
		return statusStopped
	default:
		return statusOther
	}
}

func (m model) renderStatusAndInput(b *strings.Builder) {
	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(messageStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	if m.commanding {
		b.WriteString("  ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
}

func (m model) renderHelpOverlay(base string) string {
	help := strings.Join([]string{
		helpHeaderStyle.Render("Navigation"),
		helpKeyStyle.Render("  ↑/k  ↓/j") + helpDescStyle.Render("   Select deployment"),
		"",
		helpHeaderStyle.Render("Actions"),
		helpKeyStyle.Render("  s") + helpDescStyle.Render("           Start selected"),
		helpKeyStyle.Render("  x") + helpDescStyle.Render("           Stop selected"),
		helpKeyStyle.Render("  r") + helpDescStyle.Render("           Restart selected"),
		helpKeyStyle.Render("  d d") + helpDescStyle.Render("         Take selected down"),
		"",
		helpHeaderStyle.Render("Commands"),
		helpKeyStyle.Render("  /") + helpDescStyle.Render("           Open command bar"),
		helpDescStyle.Render("  /start <id…|all>"),
		helpDescStyle.Render("  /stop <id…|all>"),
		helpDescStyle.Render("  /restart <id…|all>"),
		helpDescStyle.Render("  /down <id…|all>"),
		helpDescStyle.Render("  /refresh"),
		"",
		helpKeyStyle.Render("  q") + helpDescStyle.Render("  quit") + "     " + helpKeyStyle.Render("?") + helpDescStyle.Render("  close this help"),
	}, "\n")

	modal := helpStyle.Render(help)
	modalWidth := lipgloss.Width(modal)
	modalHeight := lipgloss.Height(modal)

	baseLines := strings.Split(base, "\n")
	xOffset := max(0, (m.width-modalWidth)/2)
	yOffset := max(0, (m.height-modalHeight)/2)

	for i, mLine := range strings.Split(modal, "\n") {
		row := yOffset + i
		if row >= len(baseLines) {
			break
		}
		padding := strings.Repeat(" ", xOffset)
		baseLines[row] = padding + mLine + strings.Repeat(" ", max(0, m.width-xOffset-lipgloss.Width(mLine)))
	}
	return strings.Join(baseLines, "\n")
}
