package vpn

import (
	"context"
	"errors"
	"strings"
	"time"

	"vpnswitch/common"
)

const rasdialTool = "rasdial"

// rasdialBackend drives RAS phonebook entries on Windows. Credentials
// come from the secret store when present; otherwise rasdial falls
// back to whatever the phonebook entry has saved.
type rasdialBackend struct {
	toolRunner
	secrets SecretSource
}

func newRasdialBackend(secrets SecretSource, timeout time.Duration) *rasdialBackend {
	return &rasdialBackend{toolRunner: newToolRunner(timeout), secrets: secrets}
}

func (b *rasdialBackend) Name() string {
	return rasdialTool
}

func (b *rasdialBackend) Connect(ctx context.Context, profile *Profile) error {
	args := []string{profile.Name}
	if profile.Username != "" && b.secrets != nil {
		secret, err := b.secrets.Get(profile.ID)
		switch {
		case err == nil:
			args = append(args, profile.Username, secret)
		case errors.Is(err, common.ErrCredentialsNotFound):
			common.LogDebug("connect: no stored secret for %s, using phonebook credentials", profile.Name)
		default:
			common.LogWarn("connect: secret lookup for %s failed: %v", profile.Name, err)
		}
	}
	// The argument list may carry a password, never log it.
	_, err := b.commandQuiet(ctx, opConnect, rasdialTool, args...)
	return err
}

func (b *rasdialBackend) Disconnect(ctx context.Context, name string) error {
	out, err := b.command(ctx, opDisconnect, rasdialTool, name, "/disconnect")
	if err != nil && exitReports(err, out, "not connected") {
		common.LogDebug("disconnect: %s is already down", name)
		return nil
	}
	return err
}

func (b *rasdialBackend) Status(ctx context.Context, name string) (BackendStatus, error) {
	out, err := b.command(ctx, opStatus, rasdialTool)
	if err != nil {
		return BackendStatus{State: TunnelUnknown}, err
	}
	for _, conn := range parseRasdialList(out) {
		if strings.EqualFold(conn.Name, name) {
			return BackendStatus{State: TunnelConnected, Raw: conn.Name}, nil
		}
	}
	return BackendStatus{State: TunnelDisconnected, Raw: strings.TrimSpace(out)}, nil
}

func (b *rasdialBackend) Active(ctx context.Context) ([]ActiveConnection, error) {
	out, err := b.command(ctx, opList, rasdialTool)
	if err != nil {
		return nil, err
	}
	return parseRasdialList(out), nil
}

// parseRasdialList reads bare rasdial output. Entry names sit between
// the "Connected to" header and the "Command completed" footer, one
// per line. rasdial does not report addresses.
func parseRasdialList(out string) []ActiveConnection {
	var active []ActiveConnection
	listing := false
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		lower := strings.ToLower(line)
		switch {
		case line == "":
		case strings.HasPrefix(lower, "connected to"):
			listing = true
		case strings.HasPrefix(lower, "command completed"):
			listing = false
		case strings.HasPrefix(lower, "no connections"):
			return nil
		case listing:
			active = append(active, ActiveConnection{Name: line})
		}
	}
	return active
}
