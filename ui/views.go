package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// defaultWidth is used until the first WindowSizeMsg arrives.
const defaultWidth = 100

func listColumns(width int) []table.Column {
	name := width - 62
	if name < 14 {
		name = 14
	}
	return []table.Column{
		{Title: "Profile", Width: name},
		{Title: "Alias", Width: 10},
		{Title: "Category", Width: 12},
		{Title: "Status", Width: 13},
		{Title: "Up", Width: 8},
		{Title: "IP", Width: 15},
	}
}

// layout resizes the table for the current terminal and the logs
// split. Chrome around the table: title, panel border, status line and
// help line.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	tw := m.width
	if m.showLogs {
		tw = m.width * 3 / 5
	}
	inner := tw - 4
	if inner < 40 {
		inner = 40
	}
	m.table.SetColumns(listColumns(inner))
	m.table.SetWidth(inner)
	th := m.height - 7
	if th < 3 {
		th = 3
	}
	m.table.SetHeight(th)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.mode {
	case modeForm:
		return m.formView()
	case modeImport:
		return m.importView()
	case modeHelp:
		return m.helpView()
	}
	return m.mainView()
}

func (m Model) mainView() string {
	var b strings.Builder
	b.WriteString(m.titleView())
	b.WriteString("\n")

	content := panelStyle.Render(m.table.View())
	if m.showLogs {
		logw := m.width - lipgloss.Width(content) - 4
		if logw > 20 {
			logs := panelStyle.Width(logw).Render(m.logsView())
			content = lipgloss.JoinHorizontal(lipgloss.Top, content, logs)
		}
	}
	b.WriteString(content)
	b.WriteString("\n")

	switch m.mode {
	case modeSearch:
		b.WriteString(statusBarStyle.Render(m.search.View()))
	case modeAlias:
		prompt := formLabelStyle.Render("Alias for "+m.aliasTarget+": ") + m.alias.View()
		b.WriteString(statusBarStyle.Render(prompt))
	case modeConfirmDelete:
		warn := badStyle.Render(fmt.Sprintf("Delete profile %s? (y/n)", m.deleteTarget))
		b.WriteString(statusBarStyle.Render(warn))
	default:
		b.WriteString(m.statusLine())
	}
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) titleView() string {
	title := titleStyle.Render("vpnswitch")
	info := fmt.Sprintf("%d profiles | sort: %s", len(m.profiles), m.sortKey)
	if m.query != "" {
		info = fmt.Sprintf("%d matches for %q | sort: %s", len(m.profiles), m.query, m.sortKey)
	}
	right := hintStyle.Render(info)
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 1
	if gap < 1 {
		return title
	}
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) statusLine() string {
	st := m.state
	phase := phaseStyle(st.Phase).Render(st.String())
	if st.IsTransitioning() {
		phase = m.spinner.View() + " " + phase
	}
	msg := m.transientStatus()
	if msg == "" {
		msg = "Ready"
	}
	return statusBarStyle.Render(phase + hintStyle.Render(" | ") + msg)
}

// logsView renders the newest events first, as many as fit next to the
// table.
func (m Model) logsView() string {
	limit := m.table.Height()
	var lines []string
	for i := len(m.events) - 1; i >= 0 && len(lines) < limit; i-- {
		ev := m.events[i]
		stamp := hintStyle.Render(ev.Timestamp.Format("15:04:05"))
		lines = append(lines, stamp+" "+eventStyle(ev.Level).Render(ev.Message))
	}
	if len(lines) == 0 {
		return hintStyle.Render("no events yet")
	}
	return strings.Join(lines, "\n")
}

func (m Model) formView() string {
	title := "New profile"
	if m.form.editing {
		title = "Edit " + m.form.name
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	for i := 0; i < fieldCount; i++ {
		label := formLabelStyle
		if i == m.form.focus {
			label = formFocusedStyle
		}
		b.WriteString(label.Render(fmt.Sprintf("%-12s", fieldLabels[i])))
		b.WriteString(" " + m.form.inputs[i].View() + "\n")
	}
	if m.form.errMsg != "" {
		b.WriteString("\n" + badStyle.Render(m.form.errMsg) + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("tab: next field | enter: save | esc: cancel"))
	return m.centered(modalStyle.Render(b.String()))
}

func (m Model) importView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Import profiles"))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.picker.dir))
	b.WriteString("\n\n")
	names := m.picker.names()
	if len(names) == 0 {
		b.WriteString(hintStyle.Render("no .xml, .azvpn or .ovpn files found"))
		b.WriteString("\n")
	}
	for i, name := range names {
		if i == m.picker.cursor {
			b.WriteString(formFocusedStyle.Render("> "+name) + "\n")
		} else {
			b.WriteString("  " + name + "\n")
		}
	}
	b.WriteString("\n" + hintStyle.Render("enter: import selected | a: import all | esc: cancel"))
	return m.centered(modalStyle.Render(b.String()))
}

func (m Model) helpView() string {
	all := m.help
	all.ShowAll = true
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	b.WriteString("\n\n")
	b.WriteString(all.View(m.keys))
	b.WriteString("\n\n" + hintStyle.Render("esc: back"))
	return m.centered(modalStyle.Render(b.String()))
}

func (m Model) centered(s string) string {
	if m.width <= 0 || m.height <= 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mi := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, mi)
	case mi > 0:
		return fmt.Sprintf("%dm%02ds", mi, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
