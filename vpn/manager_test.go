package vpn

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnswitch/common"
)

type fakeVault struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newFakeVault() *fakeVault {
	return &fakeVault{secrets: make(map[string]string)}
}

func (f *fakeVault) Store(id, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[id] = secret
	return nil
}

func (f *fakeVault) Get(id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.secrets[id]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return s, nil
}

func (f *fakeVault) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, id)
	return nil
}

func (f *fakeVault) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.secrets[id]
	return ok
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []string
	alerts  []string
}

func (f *fakeNotifier) Notify(title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, title+": "+message)
	return nil
}

func (f *fakeNotifier) NotifyError(title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title+": "+message)
	return nil
}

func (f *fakeNotifier) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(append(append([]string{}, f.notices...), f.alerts...), "\n")
}

func startManager(t *testing.T, f *fakeBackend, mutate func(*ManagerOptions)) (*Manager, *Store, *fakeUsage) {
	t.Helper()
	store, usage := newTestStore(t)
	opts := ManagerOptions{Store: store, Backend: f, Tuning: fastTuning()}
	if mutate != nil {
		mutate(&opts)
	}
	m := NewManager(opts)
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m, store, usage
}

func TestManager_ConnectByAlias(t *testing.T) {
	f := newFakeBackend()
	m, store, usage := startManager(t, f, nil)

	p := NewProfile("VPN-A", "gw")
	p.Alias = "a"
	require.NoError(t, store.Add(p))

	got, err := m.Connect(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "VPN-A", got.Name)
	assert.Equal(t, "VPN-A", m.State().Profile)

	_, marked := usage.LastUsed("VPN-A")
	assert.True(t, marked, "a successful connect is recorded as usage")
}

func TestManager_ConnectUnknownProfile(t *testing.T) {
	f := newFakeBackend()
	m, _, _ := startManager(t, f, nil)

	_, err := m.Connect(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrProfileNotFound)
	assert.Equal(t, 0, len(f.connects))
}

func TestManager_FailedConnectNotMarkedUsed(t *testing.T) {
	f := newFakeBackend()
	f.acceptOnly["VPN-A"] = true
	m, store, usage := startManager(t, f, func(o *ManagerOptions) {
		tune := fastTuning()
		tune.PollAttempts = 2
		o.Tuning = tune
	})
	require.NoError(t, store.Add(NewProfile("VPN-A", "gw")))

	_, err := m.Connect(context.Background(), "VPN-A")
	require.Error(t, err)
	_, marked := usage.LastUsed("VPN-A")
	assert.False(t, marked)
}

func TestManager_DisconnectByAlias(t *testing.T) {
	f := newFakeBackend()
	m, store, _ := startManager(t, f, nil)

	p := NewProfile("VPN-A", "gw")
	p.Alias = "a"
	require.NoError(t, store.Add(p))
	_, err := m.Connect(context.Background(), "VPN-A")
	require.NoError(t, err)

	target, err := m.Disconnect(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "VPN-A", target)
	assert.Equal(t, PhaseIdle, m.State().Phase)
}

func TestManager_DisconnectUnknownName(t *testing.T) {
	f := newFakeBackend()
	m, _, _ := startManager(t, f, nil)

	_, err := m.Disconnect(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrProfileNotFound)
}

func TestManager_RemoveActiveProfileDisconnectsFirst(t *testing.T) {
	f := newFakeBackend()
	vault := newFakeVault()
	m, store, _ := startManager(t, f, func(o *ManagerOptions) {
		o.Secrets = vault
	})

	p := NewProfile("VPN-A", "gw")
	require.NoError(t, store.Add(p))
	require.NoError(t, vault.Store(p.ID, "s3cret"))

	_, err := m.Connect(context.Background(), "VPN-A")
	require.NoError(t, err)

	require.NoError(t, m.Remove(context.Background(), "VPN-A"))
	assert.Equal(t, 1, f.disconnectCount("VPN-A"), "removing the active profile tears its tunnel down")
	assert.Equal(t, PhaseIdle, m.State().Phase)
	assert.Equal(t, 0, store.Len())
	assert.False(t, vault.Exists(p.ID), "stored credentials go with the profile")
}

func TestManager_RemoveInactiveProfile(t *testing.T) {
	f := newFakeBackend()
	m, store, _ := startManager(t, f, nil)
	require.NoError(t, store.Add(NewProfile("VPN-A", "gw")))

	require.NoError(t, m.Remove(context.Background(), "VPN-A"))
	assert.Equal(t, 0, f.totalDisconnects())
	assert.Equal(t, 0, store.Len())
}

func TestManager_SecretRoundTrip(t *testing.T) {
	f := newFakeBackend()
	vault := newFakeVault()
	m, store, _ := startManager(t, f, func(o *ManagerOptions) {
		o.Secrets = vault
	})
	p := NewProfile("VPN-A", "gw")
	p.Alias = "a"
	require.NoError(t, store.Add(p))

	assert.False(t, m.HasSecret("a"))
	require.NoError(t, m.SetSecret("a", "hunter2"))
	assert.True(t, m.HasSecret("VPN-A"))

	require.NoError(t, m.ClearSecret("a"))
	assert.False(t, m.HasSecret("VPN-A"))

	err := m.SetSecret("ghost", "x")
	assert.ErrorIs(t, err, common.ErrProfileNotFound)
}

func TestManager_SecretsDisabled(t *testing.T) {
	f := newFakeBackend()
	m, store, _ := startManager(t, f, nil)
	require.NoError(t, store.Add(NewProfile("VPN-A", "gw")))

	err := m.SetSecret("VPN-A", "x")
	assert.ErrorIs(t, err, common.ErrCredentialStorage)
	assert.False(t, m.HasSecret("VPN-A"))
}

func TestManager_AdoptsExistingTunnel(t *testing.T) {
	f := newFakeBackend()
	f.up["VPN-A"] = true

	store, _ := newTestStore(t)
	require.NoError(t, store.Add(NewProfile("VPN-A", "gw")))

	m := NewManager(ManagerOptions{
		Store: store, Backend: f, Tuning: fastTuning(), AdoptActive: true,
	})
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	state := m.State()
	assert.Equal(t, PhaseConnected, state.Phase)
	assert.Equal(t, "VPN-A", state.Profile)
}

func TestManager_AdoptionIgnoresUnknownTunnels(t *testing.T) {
	f := newFakeBackend()
	f.up["Corporate Wifi Portal"] = true

	store, _ := newTestStore(t)
	m := NewManager(ManagerOptions{
		Store: store, Backend: f, Tuning: fastTuning(), AdoptActive: true,
	})
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	assert.Equal(t, PhaseIdle, m.State().Phase)
}

func TestManager_Notifications(t *testing.T) {
	f := newFakeBackend()
	notifier := &fakeNotifier{}
	tune := fastTuning()
	tune.StatusCheckInterval = 3 * time.Millisecond
	m, store, _ := startManager(t, f, func(o *ManagerOptions) {
		o.Notifier = notifier
		o.Notify = true
		o.Tuning = tune
	})
	require.NoError(t, store.Add(NewProfile("VPN-A", "gw")))

	_, err := m.Connect(context.Background(), "VPN-A")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(notifier.all(), "Connected to VPN-A")
	}, time.Second, time.Millisecond)

	f.dropTunnel("VPN-A")
	require.Eventually(t, func() bool {
		return strings.Contains(notifier.all(), "dropped")
	}, time.Second, time.Millisecond, "a detected drop raises an urgent notification")
}

func TestManager_SearchAndList(t *testing.T) {
	f := newFakeBackend()
	m, store, _ := startManager(t, f, nil)

	work := NewProfile("Office", "gw1")
	work.Category = "Work"
	require.NoError(t, store.Add(work))
	home := NewProfile("Home", "gw2")
	require.NoError(t, store.Add(home))

	all := m.List(SortByName)
	require.Len(t, all, 2)
	assert.Equal(t, "Home", all[0].Name)

	hits := m.Search("work", SortByName)
	require.Len(t, hits, 1)
	assert.Equal(t, "Office", hits[0].Name)
}

// The acceptance scenario end to end: alias connect, switch, disconnect.
func TestManager_SwitchScenario(t *testing.T) {
	f := newFakeBackend()
	m, store, _ := startManager(t, f, nil)
	ctx := context.Background()

	a := NewProfile("VPN-A", "gw-a")
	a.Alias = "a"
	require.NoError(t, store.Add(a))
	require.NoError(t, store.Add(NewProfile("VPN-B", "gw-b")))

	p, err := m.Connect(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "VPN-A", p.Name)
	assert.Equal(t, "VPN-A", m.State().Profile)

	_, err = m.Connect(ctx, "VPN-B")
	require.NoError(t, err)
	assert.Equal(t, "VPN-B", m.State().Profile)
	assert.Equal(t, 1, f.disconnectCount("VPN-A"))
	assert.Equal(t, 1, f.connectCount("VPN-B"))

	target, err := m.Disconnect(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, target)
	assert.Equal(t, PhaseIdle, m.State().Phase)
	assert.Empty(t, f.invariantViolations())
}
