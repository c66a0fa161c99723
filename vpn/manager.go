package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vpnswitch/common"
)

// ManagerOptions wires a Manager together. Store and Backend are
// required; the rest degrade gracefully when absent.
type ManagerOptions struct {
	Store   *Store
	Backend Backend
	Tuning  Tuning
	// Secrets stores per-profile credentials. Nil disables secret
	// management commands.
	Secrets common.CredentialStore
	// Notifier receives desktop notifications when Notify is set.
	Notifier common.Notifier
	Notify   bool
	// AdoptActive seeds the connection state from tunnels that were
	// already established when the process started.
	AdoptActive bool
}

// Manager is the front door for both front ends. It resolves names and
// aliases against the registry, forwards connection work to the
// supervisor, and keeps profile mutations consistent with connection
// state (an active profile is disconnected before removal).
type Manager struct {
	store    *Store
	backend  Backend
	sup      *Supervisor
	secrets  common.CredentialStore
	notifier common.Notifier
	notify   bool
	adopt    bool
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		store:    opts.Store,
		backend:  opts.Backend,
		sup:      NewSupervisor(opts.Backend, opts.Tuning),
		secrets:  opts.Secrets,
		notifier: opts.Notifier,
		notify:   opts.Notify && opts.Notifier != nil,
		adopt:    opts.AdoptActive,
	}
}

// Start adopts any pre-existing tunnel, then launches the supervisor.
func (m *Manager) Start(ctx context.Context) {
	if m.adopt {
		m.adoptActive(ctx)
	}
	m.sup.Start()
	if m.notify {
		go m.watchForNotifications()
	}
}

// Stop shuts the supervisor down. Queued requests are cancelled.
func (m *Manager) Stop() {
	m.sup.Stop()
}

func (m *Manager) adoptActive(ctx context.Context) {
	active, err := m.backend.Active(ctx)
	if err != nil {
		common.LogWarn("could not check for existing connections: %v", err)
		return
	}
	for _, a := range active {
		p, err := m.store.Resolve(a.Name)
		if err != nil {
			common.LogInfo("ignoring active tunnel %q: no matching profile", a.Name)
			continue
		}
		m.sup.Adopt(p.Name)
		return
	}
}

// Connect resolves a name or alias and brings its tunnel up, tearing
// down any other active profile first. The resolved profile is
// returned for display.
func (m *Manager) Connect(ctx context.Context, nameOrAlias string) (*Profile, error) {
	p, err := m.store.Resolve(nameOrAlias)
	if err != nil {
		return nil, err
	}
	if err := m.sup.Connect(ctx, p); err != nil {
		return p, err
	}
	m.store.MarkUsed(p.Name)
	return p, nil
}

// Disconnect tears down the active tunnel. A non-empty name or alias
// restricts the request to that profile; disconnecting a profile that
// is not active is a no-op success. The resolved target name is
// returned ("" when none was given).
func (m *Manager) Disconnect(ctx context.Context, nameOrAlias string) (string, error) {
	target := ""
	if strings.TrimSpace(nameOrAlias) != "" {
		p, err := m.store.Resolve(nameOrAlias)
		if err != nil {
			return "", err
		}
		target = p.Name
	}
	return target, m.sup.Disconnect(ctx, target)
}

// State returns the current connection state snapshot.
func (m *Manager) State() ConnectionState {
	return m.sup.State()
}

// Events returns the bounded activity log, oldest first.
func (m *Manager) Events() []Event {
	return m.sup.Events()
}

func (m *Manager) SubscribeState() chan ConnectionState {
	return m.sup.SubscribeState()
}

func (m *Manager) UnsubscribeState(ch chan ConnectionState) {
	m.sup.UnsubscribeState(ch)
}

func (m *Manager) SubscribeEvents() chan Event {
	return m.sup.SubscribeEvents()
}

func (m *Manager) UnsubscribeEvents(ch chan Event) {
	m.sup.UnsubscribeEvents(ch)
}

// ActiveDetails asks the backend which tunnels are up right now. Used
// by status displays for the tunnel address.
func (m *Manager) ActiveDetails(ctx context.Context) ([]ActiveConnection, error) {
	return m.backend.Active(ctx)
}

// List returns all profiles in the given order.
func (m *Manager) List(key SortKey) []*Profile {
	return m.Search("", key)
}

// Search returns the profiles matching a case-insensitive substring
// query over name, alias, and category.
func (m *Manager) Search(query string, key SortKey) []*Profile {
	var out []*Profile
	for p := range m.store.Find(query, key) {
		out = append(out, p)
	}
	return out
}

// Get returns one profile by exact name.
func (m *Manager) Get(name string) (*Profile, error) {
	return m.store.Get(name)
}

// Resolve returns one profile by name or alias.
func (m *Manager) Resolve(nameOrAlias string) (*Profile, error) {
	return m.store.Resolve(nameOrAlias)
}

// Add registers a new profile.
func (m *Manager) Add(p *Profile) error {
	return m.store.Add(p)
}

// Update applies a partial edit to the named profile.
func (m *Manager) Update(name string, patch Patch) error {
	return m.store.Update(name, patch)
}

// Remove deletes a profile. If its tunnel is up it is disconnected
// first; a failed disconnect aborts the removal so the registry never
// loses track of a live tunnel. Stored credentials are dropped
// alongside the profile.
func (m *Manager) Remove(ctx context.Context, nameOrAlias string) error {
	p, err := m.store.Resolve(nameOrAlias)
	if err != nil {
		return err
	}

	if st := m.sup.State(); st.IsBusy() && st.Profile == p.Name {
		if err := m.sup.Disconnect(ctx, p.Name); err != nil {
			return common.WrapError(err, fmt.Sprintf("cannot remove %s while its tunnel is up", p.Name))
		}
	}

	if err := m.store.Remove(p.Name); err != nil {
		return err
	}
	if m.secrets != nil {
		if err := m.secrets.Delete(p.ID); err != nil && !errors.Is(err, common.ErrCredentialsNotFound) {
			common.LogWarn("could not drop credentials for %s: %v", p.Name, err)
		}
	}
	return nil
}

// ImportProfiles registers import candidates, one result per
// candidate. Existing profiles are never overwritten.
func (m *Manager) ImportProfiles(candidates []*Profile) ([]ImportResult, error) {
	results, err := m.store.ImportMany(candidates)
	accepted := 0
	for _, r := range results {
		if r.Accepted() {
			accepted++
		}
	}
	common.LogInfo("import: %d of %d candidates accepted", accepted, len(candidates))
	return results, err
}

// SetSecret stores a credential for a profile.
func (m *Manager) SetSecret(nameOrAlias, secret string) error {
	if m.secrets == nil {
		return common.WrapError(common.ErrCredentialStorage, "no credential store available")
	}
	p, err := m.store.Resolve(nameOrAlias)
	if err != nil {
		return err
	}
	return m.secrets.Store(p.ID, secret)
}

// ClearSecret removes a stored credential.
func (m *Manager) ClearSecret(nameOrAlias string) error {
	if m.secrets == nil {
		return common.WrapError(common.ErrCredentialStorage, "no credential store available")
	}
	p, err := m.store.Resolve(nameOrAlias)
	if err != nil {
		return err
	}
	return m.secrets.Delete(p.ID)
}

// HasSecret reports whether a credential is stored for a profile.
func (m *Manager) HasSecret(nameOrAlias string) bool {
	if m.secrets == nil {
		return false
	}
	p, err := m.store.Resolve(nameOrAlias)
	if err != nil {
		return false
	}
	return m.secrets.Exists(p.ID)
}

// watchForNotifications mirrors state transitions into desktop
// notifications. Exits when the supervisor closes its feed.
func (m *Manager) watchForNotifications() {
	ch := m.sup.SubscribeState()
	defer m.sup.UnsubscribeState(ch)

	prev := m.sup.State()
	for st := range ch {
		switch {
		case st.Phase == PhaseConnected && prev.Phase != PhaseConnected:
			m.notifier.Notify("VPN connected", fmt.Sprintf("Connected to %s", st.Profile))
		case st.Phase == PhaseFailed && prev.Phase != PhaseFailed:
			m.notifier.NotifyError("VPN connection failed", st.Reason)
		case st.Phase == PhaseIdle && prev.Phase == PhaseDisconnecting:
			m.notifier.Notify("VPN disconnected", fmt.Sprintf("Disconnected from %s", prev.Profile))
		}
		prev = st
	}
}
