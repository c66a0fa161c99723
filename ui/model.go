package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"vpnswitch/vpn"
)

const (
	// refreshInterval is how often the active-tunnel listing is polled.
	refreshInterval = 5 * time.Second
	// statusTTL is how long a transient status message stays on screen.
	statusTTL = 10 * time.Second
	// maxLogLines bounds the event panel, newest first.
	maxLogLines = 100
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeForm
	modeAlias
	modeConfirmDelete
	modeImport
	modeHelp
)

// Model is the Bubble Tea root. All backend work happens in commands;
// Update only moves state around.
type Model struct {
	ctx     context.Context
	manager *vpn.Manager

	mode mode
	keys keyMap

	table   table.Model
	search  textinput.Model
	alias   textinput.Model
	form    profileForm
	picker  importPicker
	help    help.Model
	spinner spinner.Model

	state    vpn.ConnectionState
	actives  map[string]string
	profiles []*vpn.Profile
	events   []vpn.Event
	showLogs bool
	sortKey  vpn.SortKey
	query    string

	stateFeed chan vpn.ConnectionState
	eventFeed chan vpn.Event

	status   string
	statusAt time.Time

	aliasTarget  string
	deleteTarget string

	width    int
	height   int
	quitting bool
}

// New builds the model and subscribes to the manager's feeds. Call
// release when the program is done.
func New(ctx context.Context, mgr *vpn.Manager, sort vpn.SortKey) Model {
	search := textinput.New()
	search.Placeholder = "name, alias or category"
	search.Prompt = "/ "
	search.CharLimit = 64

	alias := textinput.New()
	alias.Placeholder = "alias (empty clears)"
	alias.CharLimit = 32
	alias.Width = 32

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warnStyle

	tbl := table.New(
		table.WithColumns(listColumns(defaultWidth)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).Foreground(colorAccent)
	st.Selected = st.Selected.Foreground(colorAccent).Bold(true)
	tbl.SetStyles(st)

	m := Model{
		ctx:     ctx,
		manager: mgr,
		keys:    defaultKeyMap(),
		table:   tbl,
		search:  search,
		alias:   alias,
		help:    help.New(),
		spinner: sp,
		actives: map[string]string{},
		sortKey: vpn.ParseSortKey(string(sort)),
		state:   mgr.State(),
		events:  mgr.Events(),
	}
	m.stateFeed = mgr.SubscribeState()
	m.eventFeed = mgr.SubscribeEvents()
	m.reloadProfiles()
	return m
}

func (m *Model) release() {
	m.manager.UnsubscribeState(m.stateFeed)
	m.manager.UnsubscribeEvents(m.eventFeed)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForState(m.stateFeed),
		waitForEvent(m.eventFeed),
		refreshActives(m.ctx, m.manager),
		tickEvery(refreshInterval),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case stateMsg:
		m.state = vpn.ConnectionState(msg)
		m.refreshRows()
		return m, waitForState(m.stateFeed)

	case eventMsg:
		m.appendEvent(vpn.Event(msg))
		return m, waitForEvent(m.eventFeed)

	case feedClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case activesMsg:
		m.actives = msg
		m.refreshRows()
		return m, nil

	case tickMsg:
		m.refreshRows()
		return m, tea.Batch(refreshActives(m.ctx, m.manager), tickEvery(refreshInterval))

	case opDoneMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("%s %s failed: %v", msg.op, msg.name, msg.err))
		} else {
			switch msg.op {
			case opConnect:
				m.setStatus("Connected to " + msg.name)
			case opDisconnect:
				m.setStatus("Disconnected from " + msg.name)
			case opRemove:
				m.setStatus("Deleted profile " + msg.name)
			}
		}
		m.reloadProfiles()
		return m, refreshActives(m.ctx, m.manager)

	case importedMsg:
		if msg.err != nil && msg.accepted == 0 {
			m.setStatus(fmt.Sprintf("Import failed: %v", msg.err))
		} else {
			m.setStatus(fmt.Sprintf("Imported %d of %d profiles", msg.accepted, msg.total))
		}
		m.reloadProfiles()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	switch m.mode {
	case modeSearch:
		return m.updateSearch(msg)
	case modeForm:
		return m.updateForm(msg)
	case modeAlias:
		return m.updateAlias(msg)
	case modeConfirmDelete:
		return m.updateConfirmDelete(msg)
	case modeImport:
		return m.updateImport(msg)
	case modeHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Quit) || msg.String() == "esc" {
			m.mode = modeList
		}
		return m, nil
	}
	return m.updateList(msg)
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		return m.toggleSelected()

	case key.Matches(msg, m.keys.New):
		m.form = newProfileForm(nil)
		m.mode = modeForm
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Edit):
		if p := m.selected(); p != nil {
			m.form = newProfileForm(p)
			m.mode = modeForm
			return m, textinput.Blink
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if p := m.selected(); p != nil {
			m.deleteTarget = p.Name
			m.mode = modeConfirmDelete
		}
		return m, nil

	case key.Matches(msg, m.keys.Alias):
		if p := m.selected(); p != nil {
			m.aliasTarget = p.Name
			m.alias.SetValue(p.Alias)
			m.alias.CursorEnd()
			m.alias.Focus()
			m.mode = modeAlias
			return m, textinput.Blink
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.search.Focus()
		m.mode = modeSearch
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Import):
		picker, err := newImportPicker()
		if err != nil {
			m.setStatus(fmt.Sprintf("Import unavailable: %v", err))
			return m, nil
		}
		m.picker = picker
		m.mode = modeImport
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.reloadProfiles()
		return m, refreshActives(m.ctx, m.manager)

	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Sort):
		m.sortKey = m.sortKey.Next()
		m.setStatus("Sorted by " + string(m.sortKey))
		m.reloadProfiles()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.mode = modeHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

const (
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opRemove     = "remove"
)

// toggleSelected connects the highlighted profile, or disconnects it
// when it is already up or on its way up. The manager serializes and
// supersedes rapid toggles, so firing commands freely is safe.
func (m Model) toggleSelected() (tea.Model, tea.Cmd) {
	p := m.selected()
	if p == nil {
		return m, nil
	}
	name := p.Name
	ctx, mgr := m.ctx, m.manager
	if m.state.IsBusy() && m.state.Profile == name {
		m.setStatus("Disconnecting from " + name + "...")
		return m, func() tea.Msg {
			_, err := mgr.Disconnect(ctx, name)
			return opDoneMsg{op: opDisconnect, name: name, err: err}
		}
	}
	m.setStatus("Connecting to " + name + "...")
	return m, func() tea.Msg {
		_, err := mgr.Connect(ctx, name)
		return opDoneMsg{op: opConnect, name: name, err: err}
	}
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.search.SetValue("")
		m.search.Blur()
		m.query = ""
		m.mode = modeList
		m.reloadProfiles()
		return m, nil
	case "enter":
		m.search.Blur()
		m.mode = modeList
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if q := m.search.Value(); q != m.query {
		m.query = q
		m.reloadProfiles()
	}
	return m, cmd
}

func (m Model) updateAlias(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.alias.Blur()
		m.mode = modeList
		return m, nil
	case "enter":
		alias := strings.TrimSpace(m.alias.Value())
		if err := m.manager.Update(m.aliasTarget, vpn.Patch{Alias: &alias}); err != nil {
			m.setStatus(fmt.Sprintf("Alias not saved: %v", err))
		} else if alias == "" {
			m.setStatus("Alias cleared for " + m.aliasTarget)
		} else {
			m.setStatus(fmt.Sprintf("Alias %q set for %s", alias, m.aliasTarget))
		}
		m.alias.Blur()
		m.mode = modeList
		m.reloadProfiles()
		return m, nil
	}
	var cmd tea.Cmd
	m.alias, cmd = m.alias.Update(msg)
	return m, cmd
}

func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		name := m.deleteTarget
		m.deleteTarget = ""
		m.mode = modeList
		ctx, mgr := m.ctx, m.manager
		return m, func() tea.Msg {
			err := mgr.Remove(ctx, name)
			return opDoneMsg{op: opRemove, name: name, err: err}
		}
	case "n", "N", "esc":
		m.deleteTarget = ""
		m.mode = modeList
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil
	case "tab", "down":
		m.form.next()
		return m, textinput.Blink
	case "shift+tab", "up":
		m.form.prev()
		return m, textinput.Blink
	case "enter":
		if err := m.saveForm(); err != nil {
			m.form.errMsg = err.Error()
			return m, nil
		}
		if m.form.editing {
			m.setStatus("Saved profile " + m.form.name)
		} else {
			m.setStatus("Added profile " + strings.TrimSpace(m.form.inputs[fieldName].Value()))
		}
		m.mode = modeList
		m.reloadProfiles()
		return m, nil
	}
	cmd := m.form.update(msg)
	return m, cmd
}

func (m *Model) saveForm() error {
	if m.form.editing {
		return m.manager.Update(m.form.name, m.form.patch())
	}
	return m.manager.Add(m.form.profile())
}

func (m Model) updateImport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil
	case "up", "k":
		m.picker.prev()
		return m, nil
	case "down", "j":
		m.picker.next()
		return m, nil
	case "enter":
		if path := m.picker.selectedPath(); path != "" {
			m.mode = modeList
			m.setStatus("Importing...")
			return m, importFiles(m.manager, []string{path})
		}
		return m, nil
	case "a":
		if len(m.picker.paths) > 0 {
			paths := m.picker.paths
			m.mode = modeList
			m.setStatus("Importing...")
			return m, importFiles(m.manager, paths)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) reloadProfiles() {
	m.profiles = m.manager.Search(m.query, m.sortKey)
	m.refreshRows()
	if m.table.Cursor() >= len(m.profiles) {
		m.table.GotoTop()
	}
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.profiles))
	for _, p := range m.profiles {
		status := "-"
		duration := "-"
		if m.state.Profile == p.Name && m.state.Phase != vpn.PhaseIdle {
			status = m.state.Phase.String()
			if m.state.Phase == vpn.PhaseConnected {
				duration = formatDuration(time.Since(m.state.Since))
			}
		}
		ip := m.actives[p.Name]
		if ip == "" {
			ip = "-"
		}
		alias := p.Alias
		if alias == "" {
			alias = "-"
		}
		rows = append(rows, table.Row{p.Name, alias, p.Category, status, duration, ip})
	}
	m.table.SetRows(rows)
}

func (m *Model) selected() *vpn.Profile {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.profiles) {
		return nil
	}
	return m.profiles[i]
}

func (m *Model) appendEvent(ev vpn.Event) {
	m.events = append(m.events, ev)
	if len(m.events) > maxLogLines {
		m.events = m.events[len(m.events)-maxLogLines:]
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusAt = time.Now()
}

func (m *Model) transientStatus() string {
	if m.status != "" && time.Since(m.statusAt) < statusTTL {
		return m.status
	}
	return ""
}
