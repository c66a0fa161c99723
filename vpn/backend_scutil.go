package vpn

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const scutilTool = "scutil"

// scutilBackend drives the system VPN services on macOS. Azure
// profiles must be imported into the Azure VPN Client before scutil
// can see them.
type scutilBackend struct {
	toolRunner
}

func newScutilBackend(timeout time.Duration) *scutilBackend {
	return &scutilBackend{toolRunner: newToolRunner(timeout)}
}

func (b *scutilBackend) Name() string {
	return scutilTool
}

func (b *scutilBackend) Connect(ctx context.Context, profile *Profile) error {
	out, err := b.command(ctx, opConnect, scutilTool, "--nc", "start", profile.Name)
	if err != nil && exitReports(err, out, "no service") {
		return fmt.Errorf("no system VPN service named %q, import the profile into the Azure VPN Client first: %w",
			profile.Name, err)
	}
	return err
}

func (b *scutilBackend) Disconnect(ctx context.Context, name string) error {
	out, err := b.command(ctx, opDisconnect, scutilTool, "--nc", "stop", name)
	if err != nil && exitReports(err, out, "not connected") {
		return nil
	}
	return err
}

func (b *scutilBackend) Status(ctx context.Context, name string) (BackendStatus, error) {
	out, err := b.command(ctx, opStatus, scutilTool, "--nc", "status", name)
	if err != nil {
		return BackendStatus{State: TunnelUnknown}, err
	}
	return parseScutilStatus(out), nil
}

func (b *scutilBackend) Active(ctx context.Context) ([]ActiveConnection, error) {
	out, err := b.command(ctx, opList, scutilTool, "--nc", "list")
	if err != nil {
		return nil, err
	}
	active := parseScutilList(out)
	if len(active) == 0 {
		return active, nil
	}
	// scutil does not report tunnel addresses. Fall back to the first
	// utun interface carrying an IPv4 address.
	if ip := b.tunnelIP(ctx); ip != "" {
		for i := range active {
			active[i].IP = ip
		}
	}
	return active, nil
}

// parseScutilStatus reads the first line of scutil --nc status output.
// Transition states resolve on a later poll so they map to unknown, as
// does anything unrecognized.
func parseScutilStatus(out string) BackendStatus {
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	first = strings.TrimSpace(first)
	switch {
	case strings.EqualFold(first, "Connected"):
		return BackendStatus{State: TunnelConnected, Raw: first}
	case strings.EqualFold(first, "Disconnected"):
		return BackendStatus{State: TunnelDisconnected, Raw: first}
	case strings.EqualFold(first, "Connecting"), strings.EqualFold(first, "Disconnecting"):
		return BackendStatus{State: TunnelUnknown, Raw: first}
	case strings.HasPrefix(strings.ToLower(first), "no service"):
		// The service is not registered, so no tunnel exists.
		return BackendStatus{State: TunnelDisconnected, Raw: first}
	default:
		return BackendStatus{State: TunnelUnknown, Raw: first}
	}
}

// parseScutilList extracts the quoted service name from each
// (Connected) line of scutil --nc list output.
func parseScutilList(out string) []ActiveConnection {
	var active []ActiveConnection
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "(Connected)") {
			continue
		}
		parts := strings.Split(line, `"`)
		if len(parts) < 2 {
			continue
		}
		active = append(active, ActiveConnection{Name: parts[1]})
	}
	return active
}

func (b *scutilBackend) tunnelIP(ctx context.Context) string {
	out, err := b.command(ctx, opList, "ifconfig")
	if err != nil {
		return ""
	}
	return parseUtunAddress(out)
}

// parseUtunAddress finds the first utun interface with an IPv4
// address. VPN tunnels on macOS surface as utun devices, so this is a
// heuristic rather than an exact mapping.
func parseUtunAddress(out string) string {
	iface := ""
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if line[0] != '\t' && line[0] != ' ' {
			iface, _, _ = strings.Cut(line, ":")
			continue
		}
		if strings.HasPrefix(iface, "utun") && strings.Contains(line, "inet ") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				return fields[1]
			}
		}
	}
	return ""
}
