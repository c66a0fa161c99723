package vpn

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnswitch/common"
)

// staticRunner returns the same result for every invocation.
func staticRunner(stdout, stderr string, exitCode int, err error) runFunc {
	return func(ctx context.Context, name string, args ...string) (string, string, int, error) {
		return stdout, stderr, exitCode, err
	}
}

func testRunner(run runFunc) toolRunner {
	return toolRunner{run: run, timeout: time.Second}
}

func TestParseNmcliStatus(t *testing.T) {
	listing := strings.Join([]string{
		"Wired connection 1:activated",
		"VPN-A:activated",
		"VPN-B:activating",
		"VPN-C:deactivating",
		"VPN-D:deactivated",
		"VPN-E:something-new",
	}, "\n")

	tests := []struct {
		name string
		want TunnelState
	}{
		{"VPN-A", TunnelConnected},
		{"VPN-B", TunnelUnknown},
		{"VPN-C", TunnelUnknown},
		{"VPN-D", TunnelDisconnected},
		{"VPN-E", TunnelUnknown},
		{"VPN-absent", TunnelDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseNmcliStatus(listing, tt.name)
			assert.Equal(t, tt.want, got.State)
		})
	}
}

func TestParseNmcliStatus_ExactNameOnly(t *testing.T) {
	got := parseNmcliStatus("VPN-A-backup:activated\n", "VPN-A")
	assert.Equal(t, TunnelDisconnected, got.State, "prefix matches must not count")
}

func TestParseNmcliActive(t *testing.T) {
	out := strings.Join([]string{
		"Wired connection 1:802-3-ethernet:activated:192.168.1.5/24",
		"VPN-A:vpn:activated:10.8.0.2/32",
		"docker0:bridge:activated:",
		"VPN-B:vpn:activated",
	}, "\n")

	active := parseNmcliActive(out)
	require.Len(t, active, 2)
	assert.Equal(t, "VPN-A", active[0].Name)
	assert.Equal(t, "10.8.0.2/32", active[0].IP)
	assert.Equal(t, "VPN-B", active[1].Name)
	assert.Empty(t, active[1].IP)
}

func TestNmcliDisconnect_AlreadyDown(t *testing.T) {
	b := &nmcliBackend{toolRunner: testRunner(
		staticRunner("", "Error: 'VPN-A' is not an active connection.", 10, nil))}

	err := b.Disconnect(context.Background(), "VPN-A")
	assert.NoError(t, err, "downing an inactive connection is not a failure")
}

func TestNmcliConnect_ExitFailure(t *testing.T) {
	b := &nmcliBackend{toolRunner: testRunner(
		staticRunner("", "Error: Connection activation failed.", 4, nil))}

	err := b.Connect(context.Background(), NewProfile("VPN-A", "gw"))
	require.Error(t, err)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 4, be.ExitCode)
	assert.Contains(t, be.Stderr, "activation failed")
	assert.False(t, be.Timeout)
	assert.NotErrorIs(t, err, common.ErrTimeout)
}

func TestBackend_TimeoutKillsAndReports(t *testing.T) {
	hang := func(ctx context.Context, name string, args ...string) (string, string, int, error) {
		<-ctx.Done()
		return "", "", -1, ctx.Err()
	}
	b := &nmcliBackend{toolRunner: toolRunner{run: hang, timeout: 25 * time.Millisecond}}

	start := time.Now()
	err := b.Connect(context.Background(), NewProfile("VPN-A", "gw"))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTimeout)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.Timeout)
	assert.Less(t, elapsed, time.Second, "the call must not outlive the timeout by much")
}

func TestBackend_CancellationPropagates(t *testing.T) {
	hang := func(ctx context.Context, name string, args ...string) (string, string, int, error) {
		<-ctx.Done()
		return "", "", -1, ctx.Err()
	}
	b := &nmcliBackend{toolRunner: toolRunner{run: hang, timeout: time.Minute}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Connect(ctx, NewProfile("VPN-A", "gw"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrTimeout, "cancellation is not a timeout")
}

func TestBackend_LaunchFailure(t *testing.T) {
	b := &nmcliBackend{toolRunner: testRunner(
		staticRunner("", "", -1, context.DeadlineExceeded))}

	// The runner reporting a deadline means the tool was killed.
	err := b.Disconnect(context.Background(), "VPN-A")
	assert.ErrorIs(t, err, common.ErrTimeout)
}

func TestParseScutilStatus(t *testing.T) {
	tests := []struct {
		out  string
		want TunnelState
	}{
		{"Connected\nExtended Status <dictionary> {...}", TunnelConnected},
		{"Disconnected", TunnelDisconnected},
		{"Connecting", TunnelUnknown},
		{"Disconnecting", TunnelUnknown},
		{"No service", TunnelDisconnected},
		{"something unexpected", TunnelUnknown},
		{"", TunnelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			got := parseScutilStatus(tt.out)
			assert.Equal(t, tt.want, got.State)
		})
	}
}

func TestParseScutilList(t *testing.T) {
	out := strings.Join([]string{
		"Available network connection services in the current set (*=enabled):",
		`*        (Disconnected)   0A1B2C3D PPP --> "Office VPN"       [PPP:L2TP]`,
		`*        (Connected)      4E5F6A7B IPSec --> "VPN-A"          [IPSec]`,
	}, "\n")

	active := parseScutilList(out)
	require.Len(t, active, 1, `"(Disconnected)" lines must not match`)
	assert.Equal(t, "VPN-A", active[0].Name)
}

func TestParseUtunAddress(t *testing.T) {
	out := strings.Join([]string{
		"lo0: flags=8049<UP,LOOPBACK,RUNNING,MULTICAST> mtu 16384",
		"\tinet 127.0.0.1 netmask 0xff000000",
		"en0: flags=8863<UP,BROADCAST,SMART,RUNNING,SIMPLEX,MULTICAST> mtu 1500",
		"\tinet 192.168.1.20 netmask 0xffffff00 broadcast 192.168.1.255",
		"utun4: flags=8051<UP,POINTOPOINT,RUNNING,MULTICAST> mtu 1380",
		"\tinet6 fe80::a1b2%utun4 prefixlen 64 scopeid 0x10",
		"\tinet 172.16.0.2 --> 172.16.0.1 netmask 0xffffffff",
	}, "\n")

	assert.Equal(t, "172.16.0.2", parseUtunAddress(out))
	assert.Empty(t, parseUtunAddress("en0: flags=8863 mtu 1500\n\tinet 192.168.1.20"))
}

func TestParseRasdialList(t *testing.T) {
	out := "Connected to\r\nVPN-A\r\n\r\nCommand completed successfully.\r\n"
	active := parseRasdialList(out)
	require.Len(t, active, 1)
	assert.Equal(t, "VPN-A", active[0].Name)

	assert.Empty(t, parseRasdialList("No connections\r\nCommand completed successfully.\r\n"))
}

func TestRasdialStatus(t *testing.T) {
	b := &rasdialBackend{toolRunner: testRunner(
		staticRunner("Connected to\r\nVPN-A\r\n\r\nCommand completed successfully.\r\n", "", 0, nil))}

	status, err := b.Status(context.Background(), "vpn-a")
	require.NoError(t, err)
	assert.Equal(t, TunnelConnected, status.State, "entry names compare case-insensitively")

	status, err = b.Status(context.Background(), "VPN-B")
	require.NoError(t, err)
	assert.Equal(t, TunnelDisconnected, status.State)
}

type fakeSecrets struct {
	secrets map[string]string
}

func (f *fakeSecrets) Get(id string) (string, error) {
	s, ok := f.secrets[id]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return s, nil
}

func TestRasdialConnect_CredentialHandling(t *testing.T) {
	var gotArgs []string
	record := func(ctx context.Context, name string, args ...string) (string, string, int, error) {
		gotArgs = append([]string{}, args...)
		return "Command completed successfully.", "", 0, nil
	}

	profile := NewProfile("VPN-A", "gw")
	profile.Username = "alice"

	withSecret := &rasdialBackend{
		toolRunner: testRunner(record),
		secrets:    &fakeSecrets{secrets: map[string]string{profile.ID: "s3cret"}},
	}
	require.NoError(t, withSecret.Connect(context.Background(), profile))
	assert.Equal(t, []string{"VPN-A", "alice", "s3cret"}, gotArgs)

	withoutSecret := &rasdialBackend{
		toolRunner: testRunner(record),
		secrets:    &fakeSecrets{},
	}
	require.NoError(t, withoutSecret.Connect(context.Background(), profile))
	assert.Equal(t, []string{"VPN-A"}, gotArgs,
		"a missing secret falls back to phonebook credentials")
}

func TestRasdialDisconnect_AlreadyDown(t *testing.T) {
	// rasdial reports this condition on stdout, not stderr.
	b := &rasdialBackend{toolRunner: testRunner(
		staticRunner("You are not connected to VPN-A.\r\n", "", 1, nil))}

	err := b.Disconnect(context.Background(), "VPN-A")
	assert.NoError(t, err)
}

func TestNewBackend(t *testing.T) {
	b := NewBackend(nil, time.Second)
	require.NotNil(t, b)
	assert.NotEmpty(t, b.Name())
}

func TestTunnelStateString(t *testing.T) {
	assert.Equal(t, "connected", TunnelConnected.String())
	assert.Equal(t, "disconnected", TunnelDisconnected.String())
	assert.Equal(t, "unknown", TunnelUnknown.String())
}
