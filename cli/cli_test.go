package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vpnswitch/common"
	"vpnswitch/vpn"
)

// stubBackend keeps an in-memory set of up tunnels so commands can run
// against a real Manager without touching platform tools.
type stubBackend struct {
	mu sync.Mutex
	up map[string]bool
}

func newStubBackend() *stubBackend {
	return &stubBackend{up: make(map[string]bool)}
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Connect(ctx context.Context, p *vpn.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.up[p.Name] = true
	return nil
}

func (b *stubBackend) Disconnect(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.up, name)
	return nil
}

func (b *stubBackend) Status(ctx context.Context, name string) (vpn.BackendStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.up[name] {
		return vpn.BackendStatus{State: vpn.TunnelConnected}, nil
	}
	return vpn.BackendStatus{State: vpn.TunnelDisconnected}, nil
}

func (b *stubBackend) Active(ctx context.Context) ([]vpn.ActiveConnection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []vpn.ActiveConnection
	for name := range b.up {
		out = append(out, vpn.ActiveConnection{Name: name, IP: "10.8.0.2"})
	}
	return out, nil
}

type stubVault struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newStubVault() *stubVault {
	return &stubVault{secrets: make(map[string]string)}
}

func (v *stubVault) Store(id, secret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[id] = secret
	return nil
}

func (v *stubVault) Get(id string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.secrets[id]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return s, nil
}

func (v *stubVault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.secrets[id]; !ok {
		return common.ErrCredentialsNotFound
	}
	delete(v.secrets, id)
	return nil
}

func (v *stubVault) Exists(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.secrets[id]
	return ok
}

type fixture struct {
	app     *app
	manager *vpn.Manager
	backend *stubBackend
	vault   *stubVault
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := vpn.NewStore(filepath.Join(t.TempDir(), "profiles.yaml"), nil)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	work := vpn.NewProfile("VPN-A", "a.example.org")
	work.Alias = "work"
	work.Category = "Office"
	if err := store.Add(work); err != nil {
		t.Fatalf("seeding VPN-A: %v", err)
	}
	lab := vpn.NewProfile("VPN-B", "b.example.org")
	lab.Category = "Lab"
	if err := store.Add(lab); err != nil {
		t.Fatalf("seeding VPN-B: %v", err)
	}

	backend := newStubBackend()
	vault := newStubVault()
	manager := vpn.NewManager(vpn.ManagerOptions{
		Store:   store,
		Backend: backend,
		Secrets: vault,
		Tuning: vpn.Tuning{
			ConnectAttempts:     1,
			PollInterval:        2 * time.Millisecond,
			PollAttempts:        10,
			StatusCheckInterval: time.Hour,
			QueueCapacity:       8,
		},
	})
	manager.Start(context.Background())
	t.Cleanup(manager.Stop)

	out := &bytes.Buffer{}
	return &fixture{
		app: &app{
			manager: manager,
			out:     out,
			errOut:  out,
			in:      strings.NewReader(""),
		},
		manager: manager,
		backend: backend,
		vault:   vault,
		out:     out,
	}
}

// run executes one command line against the fixture's command tree.
func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	root := f.app.rootCommand("test")
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"not found", fmt.Errorf("resolve: %w", common.ErrProfileNotFound), ExitNotFound},
		{"timeout", common.WrapError(common.ErrTimeout, "connection to X not confirmed"), ExitTimeout},
		{"backend timeout", &vpn.BackendError{Op: "connect", Tool: "nmcli", Timeout: true}, ExitTimeout},
		{"backend failure", &vpn.BackendError{Op: "connect", Tool: "nmcli", ExitCode: 4}, ExitBackend},
		{"invalid input", fmt.Errorf("%w: bad args", common.ErrInvalidInput), ExitInvalidInput},
		{"invalid profile", fmt.Errorf("%w: name is required", common.ErrInvalidProfile), ExitInvalidInput},
		{"generic", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestConnectCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "connect", "work"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !strings.Contains(f.out.String(), "Connected to VPN-A.") {
		t.Errorf("output %q missing connect confirmation", f.out.String())
	}
	if st := f.manager.State(); st.Phase != vpn.PhaseConnected || st.Profile != "VPN-A" {
		t.Errorf("state = %v, want Connected VPN-A", st)
	}
}

func TestConnectCommand_UnknownProfile(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "connect", "nope")
	if !errors.Is(err, common.ErrProfileNotFound) {
		t.Fatalf("connect error = %v, want ErrProfileNotFound", err)
	}
	if got := ExitCode(err); got != ExitNotFound {
		t.Errorf("ExitCode = %d, want %d", got, ExitNotFound)
	}
}

func TestConnectCommand_MissingArg(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "connect")
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("connect error = %v, want ErrInvalidInput", err)
	}
}

func TestDisconnectCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "connect", "VPN-A"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	f.out.Reset()

	if err := f.run(t, "disconnect"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !strings.Contains(f.out.String(), "Disconnected from VPN-A.") {
		t.Errorf("output %q missing disconnect confirmation", f.out.String())
	}
}

func TestDisconnectCommand_Idle(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "disconnect"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !strings.Contains(f.out.String(), "No active connection.") {
		t.Errorf("output %q missing idle message", f.out.String())
	}
}

func TestDisconnectCommand_OtherProfile(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "connect", "VPN-A"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	f.out.Reset()

	if err := f.run(t, "disconnect", "VPN-B"); err != nil {
		t.Fatalf("disconnect VPN-B: %v", err)
	}
	if !strings.Contains(f.out.String(), "not the active connection") {
		t.Errorf("output %q missing no-op message", f.out.String())
	}
	if st := f.manager.State(); st.Phase != vpn.PhaseConnected {
		t.Errorf("VPN-A should still be connected, state = %v", st)
	}
}

func TestStatusCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(f.out.String(), "Idle") {
		t.Errorf("output %q missing Idle state", f.out.String())
	}

	if err := f.run(t, "connect", "VPN-A"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	f.out.Reset()

	if err := f.run(t, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	got := f.out.String()
	if !strings.Contains(got, "Connected to VPN-A") {
		t.Errorf("output %q missing connected state", got)
	}
	if !strings.Contains(got, "10.8.0.2") {
		t.Errorf("output %q missing tunnel IP", got)
	}
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	got := f.out.String()
	for _, want := range []string{"NAME", "VPN-A", "work", "Office", "VPN-B", "never"} {
		if !strings.Contains(got, want) {
			t.Errorf("list output missing %q:\n%s", want, got)
		}
	}
}

func TestListCommand_Query(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "list", "lab"); err != nil {
		t.Fatalf("list: %v", err)
	}
	got := f.out.String()
	if !strings.Contains(got, "VPN-B") {
		t.Errorf("list output missing VPN-B:\n%s", got)
	}
	if strings.Contains(got, "VPN-A") {
		t.Errorf("list output should not contain VPN-A:\n%s", got)
	}
}

func TestListCommand_NoMatches(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "list", "zzz"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(f.out.String(), `No profiles match "zzz".`) {
		t.Errorf("output %q missing no-match message", f.out.String())
	}
}

func TestAddEditRemoveCommands(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "add", "VPN-C", "--gateway", "c.example.org", "--category", "Test"); err != nil {
		t.Fatalf("add: %v", err)
	}
	p, err := f.manager.Get("VPN-C")
	if err != nil {
		t.Fatalf("VPN-C not stored: %v", err)
	}
	if p.Category != "Test" {
		t.Errorf("Category = %q, want Test", p.Category)
	}

	if err := f.run(t, "edit", "VPN-C", "--category", "Prod"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	p, _ = f.manager.Get("VPN-C")
	if p.Category != "Prod" {
		t.Errorf("Category after edit = %q, want Prod", p.Category)
	}
	if p.Gateway != "c.example.org" {
		t.Errorf("Gateway should be untouched, got %q", p.Gateway)
	}

	if err := f.run(t, "remove", "VPN-C", "--yes"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.manager.Get("VPN-C"); !errors.Is(err, common.ErrProfileNotFound) {
		t.Errorf("VPN-C should be gone, got %v", err)
	}
}

func TestAddCommand_MissingGateway(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "add", "VPN-X")
	if !errors.Is(err, common.ErrInvalidProfile) {
		t.Fatalf("add error = %v, want ErrInvalidProfile", err)
	}
}

func TestRemoveCommand_ConfirmationDeclined(t *testing.T) {
	f := newFixture(t)
	f.app.in = strings.NewReader("n\n")

	if err := f.run(t, "remove", "VPN-B"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(f.out.String(), "Aborted.") {
		t.Errorf("output %q missing abort message", f.out.String())
	}
	if _, err := f.manager.Get("VPN-B"); err != nil {
		t.Errorf("VPN-B should survive a declined confirmation: %v", err)
	}
}

func TestAliasCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "alias", "VPN-B", "lab"); err != nil {
		t.Fatalf("alias: %v", err)
	}
	p, err := f.manager.Resolve("lab")
	if err != nil || p.Name != "VPN-B" {
		t.Fatalf("Resolve(lab) = %v, %v, want VPN-B", p, err)
	}

	if err := f.run(t, "alias", "VPN-B", "--clear"); err != nil {
		t.Fatalf("alias --clear: %v", err)
	}
	if _, err := f.manager.Resolve("lab"); !errors.Is(err, common.ErrProfileNotFound) {
		t.Errorf("cleared alias should not resolve, got %v", err)
	}
}

func TestImportCommand(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "corp.xml")
	content := `<VpnSettings><VpnProfile><Name>Imported</Name><Server>i.example.org</Server></VpnProfile></VpnSettings>`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing corp.xml: %v", err)
	}

	if err := f.run(t, "import", path); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(f.out.String(), "1 of 1 profiles imported.") {
		t.Errorf("output %q missing import summary", f.out.String())
	}
	p, err := f.manager.Get("Imported")
	if err != nil {
		t.Fatalf("imported profile missing: %v", err)
	}
	if p.Source != vpn.SourceImported || p.OriginPath != path {
		t.Errorf("imported profile tagged %s/%s, want imported/%s", p.Source, p.OriginPath, path)
	}

	// Importing again must reject the duplicate and leave it intact.
	f.out.Reset()
	if err := f.run(t, "import", path); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if !strings.Contains(f.out.String(), "0 of 1 profiles imported.") {
		t.Errorf("output %q missing duplicate summary", f.out.String())
	}
}

func TestImportCommand_UnparsableFile(t *testing.T) {
	f := newFixture(t)

	path := filepath.Join(t.TempDir(), "junk.xml")
	if err := os.WriteFile(path, []byte("not xml at all"), 0600); err != nil {
		t.Fatalf("writing junk.xml: %v", err)
	}

	err := f.run(t, "import", path)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("import error = %v, want ErrInvalidInput", err)
	}
}

func TestSecretCommands(t *testing.T) {
	f := newFixture(t)
	f.app.in = strings.NewReader("hunter2\n")

	if err := f.run(t, "secret", "set", "work"); err != nil {
		t.Fatalf("secret set: %v", err)
	}
	p, _ := f.manager.Get("VPN-A")
	if got, err := f.vault.Get(p.ID); err != nil || got != "hunter2" {
		t.Fatalf("vault.Get = %q, %v, want hunter2", got, err)
	}

	f.out.Reset()
	if err := f.run(t, "secret", "show", "work"); err != nil {
		t.Fatalf("secret show: %v", err)
	}
	if !strings.Contains(f.out.String(), "has a stored secret") {
		t.Errorf("output %q missing stored-secret report", f.out.String())
	}

	if err := f.run(t, "secret", "clear", "work"); err != nil {
		t.Fatalf("secret clear: %v", err)
	}
	if f.vault.Exists(p.ID) {
		t.Error("secret should be cleared from the vault")
	}
}
