package vpn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"vpnswitch/common"
)

// TunnelState is the platform tool's view of one tunnel.
type TunnelState int

const (
	// TunnelUnknown means the tool's answer could not be interpreted.
	TunnelUnknown TunnelState = iota
	// TunnelDisconnected means the tunnel is down.
	TunnelDisconnected
	// TunnelConnected means the tunnel is established.
	TunnelConnected
)

func (s TunnelState) String() string {
	switch s {
	case TunnelConnected:
		return "connected"
	case TunnelDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// BackendStatus is the answer to a single status query. Raw preserves
// the tool output that produced the state, for logs and diagnostics.
type BackendStatus struct {
	State TunnelState
	Raw   string
}

// ActiveConnection is one established tunnel as reported by the
// platform tool. IP is empty when the tool does not expose it.
type ActiveConnection struct {
	Name string
	IP   string
}

// SecretSource supplies stored credentials to backends that need them
// on the command line. Implemented by the keyring package.
type SecretSource interface {
	Get(profileID string) (string, error)
}

// Backend drives the platform's native VPN tooling. Implementations
// exist for nmcli (Linux), scutil (macOS), and rasdial (Windows); all
// calls are subprocess invocations bounded by the configured timeout.
type Backend interface {
	// Name identifies the underlying tool, for logs and errors.
	Name() string

	// Connect asks the platform to bring the profile's tunnel up.
	// A nil error means the request was accepted, not that the tunnel
	// is established; callers confirm by polling Status.
	Connect(ctx context.Context, profile *Profile) error

	// Disconnect asks the platform to tear the named tunnel down.
	// Disconnecting a tunnel that is already down is not an error.
	Disconnect(ctx context.Context, name string) error

	// Status reports the current state of the named tunnel.
	Status(ctx context.Context, name string) (BackendStatus, error)

	// Active lists the tunnels the platform reports as established.
	Active(ctx context.Context) ([]ActiveConnection, error)
}

// NewBackend picks the backend for the running platform.
func NewBackend(secrets SecretSource, timeout time.Duration) Backend {
	switch runtime.GOOS {
	case "windows":
		return newRasdialBackend(secrets, timeout)
	case "darwin":
		return newScutilBackend(timeout)
	default:
		return newNmcliBackend(timeout)
	}
}

// Backend operation names used in errors and logs.
const (
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opStatus     = "status"
	opList       = "list"
)

// BackendError reports a failed tool invocation. Timeout errors unwrap
// to common.ErrTimeout; exit-status failures carry the code and the
// tool's stderr.
type BackendError struct {
	Op       string
	Tool     string
	ExitCode int
	Stderr   string
	Timeout  bool
	Err      error
}

func (e *BackendError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: %s timed out", e.Op, e.Tool)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Tool, e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("%s: %s exited with code %d: %s", e.Op, e.Tool, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("%s: %s exited with code %d", e.Op, e.Tool, e.ExitCode)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// runFunc executes one external command. A non-zero exit status is
// reported through exitCode, not err; err is reserved for failures to
// run at all (missing binary, killed by context).
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

// execRunner is the real runFunc. The context kills the process when
// it expires.
func execRunner(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.String(), stderr.String(), -1, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}
		return stdout.String(), stderr.String(), -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}

// toolRunner runs platform tools under the backend timeout and folds
// failures into BackendError. The platform backends embed it.
type toolRunner struct {
	run     runFunc
	timeout time.Duration
}

func newToolRunner(timeout time.Duration) toolRunner {
	if timeout <= 0 {
		timeout = common.DefaultBackendTimeout
	}
	return toolRunner{run: execRunner, timeout: timeout}
}

// command runs a tool, logging its full argument list.
func (t toolRunner) command(ctx context.Context, op, tool string, args ...string) (string, error) {
	common.LogDebug("%s: running %s %s", op, tool, strings.Join(args, " "))
	return t.execute(ctx, op, tool, args)
}

// commandQuiet runs a tool without logging its arguments. Used for
// invocations that carry credentials.
func (t toolRunner) commandQuiet(ctx context.Context, op, tool string, args ...string) (string, error) {
	common.LogDebug("%s: running %s (arguments withheld)", op, tool)
	return t.execute(ctx, op, tool, args)
}

func (t toolRunner) execute(ctx context.Context, op, tool string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	stdout, stderr, exitCode, err := t.run(ctx, tool, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			common.LogWarn("%s: %s did not finish within %s, killed", op, tool, t.timeout)
			return stdout, &BackendError{Op: op, Tool: tool, Timeout: true, Err: common.ErrTimeout}
		}
		if errors.Is(err, context.Canceled) {
			return stdout, err
		}
		return stdout, &BackendError{Op: op, Tool: tool, Err: err}
	}
	if exitCode != 0 {
		return stdout, &BackendError{Op: op, Tool: tool, ExitCode: exitCode, Stderr: strings.TrimSpace(stderr)}
	}
	return stdout, nil
}

// exitReports reports whether err is a tool exit failure whose output
// contains the given fragment, case-insensitively. rasdial writes its
// diagnostics to stdout, so the captured stdout is checked alongside
// stderr. Backends use this to recognize benign failures such as
// disconnecting a tunnel that is already down.
func exitReports(err error, stdout, fragment string) bool {
	var be *BackendError
	if !errors.As(err, &be) || be.Timeout || be.Err != nil {
		return false
	}
	combined := strings.ToLower(be.Stderr + "\n" + stdout)
	return strings.Contains(combined, strings.ToLower(fragment))
}
