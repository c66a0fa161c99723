package ui

import (
	"github.com/charmbracelet/lipgloss"

	"vpnswitch/common"
	"vpnswitch/vpn"
)

// Adaptive colors keep the interface readable on both light and dark
// terminals.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#E5C44A"}
	colorOK     = lipgloss.AdaptiveColor{Light: "#1F7A33", Dark: "#2EC27E"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#A66B00", Dark: "#E5A50A"}
	colorBad    = lipgloss.AdaptiveColor{Light: "#B02A1F", Dark: "#ED5353"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#767676", Dark: "#8A8A8A"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	statusBarStyle = lipgloss.NewStyle().Padding(0, 1)

	hintStyle = lipgloss.NewStyle().Foreground(colorMuted)

	okStyle   = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle = lipgloss.NewStyle().Foreground(colorWarn)
	badStyle  = lipgloss.NewStyle().Foreground(colorBad)

	formLabelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	formFocusedStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
)

// phaseStyle picks the color used for a connection phase wherever it is
// rendered.
func phaseStyle(p vpn.Phase) lipgloss.Style {
	switch p {
	case vpn.PhaseConnected:
		return okStyle
	case vpn.PhaseConnecting, vpn.PhaseDisconnecting:
		return warnStyle
	case vpn.PhaseFailed:
		return badStyle
	default:
		return hintStyle
	}
}

// eventStyle colors a log line by its level.
func eventStyle(level common.LogLevel) lipgloss.Style {
	switch level {
	case common.LevelError:
		return badStyle
	case common.LevelWarn:
		return warnStyle
	default:
		return hintStyle
	}
}
