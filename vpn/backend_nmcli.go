package vpn

import (
	"context"
	"strings"
	"time"

	"vpnswitch/common"
)

const nmcliTool = "nmcli"

// nmcliBackend drives NetworkManager connections on Linux.
type nmcliBackend struct {
	toolRunner
}

func newNmcliBackend(timeout time.Duration) *nmcliBackend {
	return &nmcliBackend{toolRunner: newToolRunner(timeout)}
}

func (b *nmcliBackend) Name() string {
	return nmcliTool
}

func (b *nmcliBackend) Connect(ctx context.Context, profile *Profile) error {
	_, err := b.command(ctx, opConnect, nmcliTool, "connection", "up", profile.Name)
	return err
}

func (b *nmcliBackend) Disconnect(ctx context.Context, name string) error {
	out, err := b.command(ctx, opDisconnect, nmcliTool, "connection", "down", name)
	if err != nil && exitReports(err, out, "not an active connection") {
		common.LogDebug("disconnect: %s is already down", name)
		return nil
	}
	return err
}

func (b *nmcliBackend) Status(ctx context.Context, name string) (BackendStatus, error) {
	out, err := b.command(ctx, opStatus, nmcliTool,
		"-t", "-f", "NAME,STATE", "connection", "show", "--active")
	if err != nil {
		return BackendStatus{State: TunnelUnknown}, err
	}
	return parseNmcliStatus(out, name), nil
}

func (b *nmcliBackend) Active(ctx context.Context) ([]ActiveConnection, error) {
	out, err := b.command(ctx, opList, nmcliTool,
		"-t", "-f", "NAME,TYPE,STATE,IP4.ADDRESS", "connection", "show", "--active")
	if err != nil {
		return nil, err
	}
	return parseNmcliActive(out), nil
}

// parseNmcliStatus reads terse NAME:STATE lines. A profile absent from
// the --active listing is down; transition states resolve on a later
// poll so they map to unknown.
func parseNmcliStatus(out, name string) BackendStatus {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, ":", 2)
		if len(parts) < 2 || parts[0] != name {
			continue
		}
		switch strings.ToLower(parts[1]) {
		case "activated":
			return BackendStatus{State: TunnelConnected, Raw: line}
		case "deactivated":
			return BackendStatus{State: TunnelDisconnected, Raw: line}
		case "activating", "deactivating":
			return BackendStatus{State: TunnelUnknown, Raw: line}
		default:
			return BackendStatus{State: TunnelUnknown, Raw: line}
		}
	}
	return BackendStatus{State: TunnelDisconnected}
}

// parseNmcliActive reads terse NAME:TYPE:STATE:IP4.ADDRESS lines and
// keeps the VPN-typed entries.
func parseNmcliActive(out string) []ActiveConnection {
	var active []ActiveConnection
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 4)
		if len(parts) < 3 || !strings.Contains(strings.ToLower(parts[1]), "vpn") {
			continue
		}
		conn := ActiveConnection{Name: parts[0]}
		if len(parts) == 4 {
			conn.IP = strings.TrimSpace(parts[3])
		}
		active = append(active, conn)
	}
	return active
}
