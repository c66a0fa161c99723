package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vpnswitch/common"
	"vpnswitch/vpn"
)

// Options configures the interactive session.
type Options struct {
	// Sort is the initial listing order.
	Sort vpn.SortKey
	// Theme forces light or dark styling; auto keeps terminal detection.
	Theme string
}

// Run starts the interactive interface and blocks until the user quits
// or ctx is cancelled. Cancellation is a clean exit, not an error.
func Run(ctx context.Context, mgr *vpn.Manager, opts Options) error {
	applyTheme(opts.Theme)
	m := New(ctx, mgr, opts.Sort)
	defer m.release()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func applyTheme(theme string) {
	switch theme {
	case common.ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	case common.ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	}
}
