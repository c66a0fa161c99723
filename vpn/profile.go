// Package vpn provides profile management and connection supervision.
// This file contains the Profile type and its validation rules.
package vpn

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vpnswitch/common"
)

// ProfileSource records where a profile came from.
type ProfileSource string

const (
	SourceManual   ProfileSource = "manual"
	SourceImported ProfileSource = "imported"
)

// Profile describes one VPN endpoint. Name is the stable, case-sensitive
// key: it is what the OS tooling dials and it never changes after
// creation. Everything else is editable.
type Profile struct {
	// ID is a stable internal handle (UUID). Credentials are keyed by it
	// so profiles can be re-imported without losing stored secrets.
	ID string `json:"id" yaml:"id"`
	// Name is the unique profile name, matching the OS-side VPN entry.
	Name string `json:"name" yaml:"name"`
	// Alias is an optional short name, unique across profiles when set.
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
	// Category groups profiles in listings.
	Category string `json:"category" yaml:"category"`
	// Gateway is the VPN server address (host or FQDN).
	Gateway string `json:"gateway" yaml:"gateway"`
	// Protocol is informational: IKEv2, OpenVPN, WireGuard...
	Protocol string `json:"protocol" yaml:"protocol"`
	// Username is the optional authentication user.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	// CertPath is the optional client certificate location.
	CertPath string `json:"cert_path,omitempty" yaml:"cert_path,omitempty"`
	// Source records whether the profile was typed in or imported.
	Source ProfileSource `json:"source" yaml:"source"`
	// OriginPath is the file an imported profile came from.
	OriginPath string `json:"origin_path,omitempty" yaml:"origin_path,omitempty"`
	// AutoConnect marks the profile for connection at startup.
	AutoConnect bool `json:"auto_connect" yaml:"auto_connect"`
	// CreatedAt is when the profile was added.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// LastUsed is joined in from the usage tracker; never persisted here.
	LastUsed time.Time `json:"-" yaml:"-"`
}

// NewProfile creates a manual profile with defaults applied.
func NewProfile(name, gateway string) *Profile {
	p := &Profile{
		ID:        uuid.NewString(),
		Name:      name,
		Gateway:   gateway,
		Source:    SourceManual,
		CreatedAt: time.Now(),
	}
	p.normalize()
	return p
}

// normalize trims fields and fills defaults.
func (p *Profile) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Alias = strings.TrimSpace(p.Alias)
	p.Category = strings.TrimSpace(p.Category)
	p.Gateway = strings.TrimSpace(p.Gateway)
	p.Protocol = strings.TrimSpace(p.Protocol)
	p.Username = strings.TrimSpace(p.Username)

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = common.DefaultCategory
	}
	if p.Protocol == "" {
		p.Protocol = common.DefaultProtocol
	}
	if p.Source == "" {
		p.Source = SourceManual
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
}

// Validate checks the profile invariants that do not depend on the
// rest of the registry. Uniqueness is the store's job.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidProfile)
	}
	if p.Gateway == "" {
		return fmt.Errorf("%w: gateway is required", common.ErrInvalidProfile)
	}
	if p.Alias != "" && strings.EqualFold(p.Alias, p.Name) {
		return fmt.Errorf("%w: alias must differ from the profile name", common.ErrInvalidProfile)
	}
	return nil
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate registry state behind its back.
func (p *Profile) Clone() *Profile {
	cp := *p
	return &cp
}

// MatchesQuery reports whether the profile matches a case-insensitive
// substring query over name, alias, and category.
func (p *Profile) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Alias), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

// ToJSON converts the profile to a JSON string.
// Useful for debugging and logging.
func (p *Profile) ToJSON() string {
	data, _ := json.MarshalIndent(p, "", "  ")
	return string(data)
}

// Patch is a partial profile update. Nil fields are left unchanged.
// Name is deliberately absent: it is the stable key.
type Patch struct {
	Alias       *string
	Category    *string
	Gateway     *string
	Protocol    *string
	Username    *string
	CertPath    *string
	AutoConnect *bool
}

// apply copies the set fields onto the profile.
func (patch Patch) apply(p *Profile) {
	if patch.Alias != nil {
		p.Alias = strings.TrimSpace(*patch.Alias)
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Gateway != nil {
		p.Gateway = strings.TrimSpace(*patch.Gateway)
	}
	if patch.Protocol != nil {
		p.Protocol = strings.TrimSpace(*patch.Protocol)
	}
	if patch.Username != nil {
		p.Username = strings.TrimSpace(*patch.Username)
	}
	if patch.CertPath != nil {
		p.CertPath = *patch.CertPath
	}
	if patch.AutoConnect != nil {
		p.AutoConnect = *patch.AutoConnect
	}
}
