package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"vpnswitch/vpn"
)

// Supervisor broadcasts are adapted into tea.Msg values by channel-wait
// commands: each command blocks on the subscription channel, delivers
// one message, and is re-issued by Update. The model never calls the
// backend directly.

type stateMsg vpn.ConnectionState

type eventMsg vpn.Event

// feedClosedMsg arrives when a subscription channel closes, which means
// the manager is shutting down.
type feedClosedMsg struct{}

// opDoneMsg reports a finished connect, disconnect, or remove issued
// from the UI.
type opDoneMsg struct {
	op   string
	name string
	err  error
}

// activesMsg carries the backend's active-tunnel listing for the IP and
// duration columns.
type activesMsg map[string]string

// importedMsg reports the outcome of an import batch.
type importedMsg struct {
	accepted int
	total    int
	err      error
}

// tickMsg drives the periodic active-listing refresh.
type tickMsg time.Time

func waitForState(ch chan vpn.ConnectionState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return stateMsg(st)
	}
}

func waitForEvent(ch chan vpn.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refreshActives asks the backend which tunnels are up. Errors are
// swallowed; the listing is cosmetic and the next tick retries.
func refreshActives(ctx context.Context, mgr *vpn.Manager) tea.Cmd {
	return func() tea.Msg {
		out := make(map[string]string)
		actives, err := mgr.ActiveDetails(ctx)
		if err != nil {
			return activesMsg(out)
		}
		for _, ac := range actives {
			out[ac.Name] = ac.IP
		}
		return activesMsg(out)
	}
}
