// Package vpn provides profile management and connection supervision.
// This file contains the profile registry and its persistence.
package vpn

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"vpnswitch/common"
)

// SortKey orders profile listings.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByCategory SortKey = "category"
	SortByLastUsed SortKey = "last-used"
)

// ParseSortKey maps a settings string to a SortKey, defaulting to name.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByCategory:
		return SortByCategory
	case SortByLastUsed:
		return SortByLastUsed
	default:
		return SortByName
	}
}

// Next cycles through the sort keys, for the TUI sort toggle.
func (k SortKey) Next() SortKey {
	switch k {
	case SortByName:
		return SortByCategory
	case SortByCategory:
		return SortByLastUsed
	default:
		return SortByName
	}
}

// ImportResult reports the outcome for one import candidate.
type ImportResult struct {
	// Name is the candidate profile name ("" when the file had none).
	Name string
	// Path is the origin file.
	Path string
	// Err is nil when the candidate was accepted.
	Err error
}

// Accepted reports whether the candidate made it into the registry.
func (r ImportResult) Accepted() bool {
	return r.Err == nil
}

// Store is the profile registry. It owns the profile collection,
// persists mutations to a YAML file, and knows nothing about
// connection state: the Manager coordinates disconnect-before-remove.
type Store struct {
	mu       sync.RWMutex
	profiles []*Profile
	path     string
	usage    common.UsageRecorder
}

// NewStore loads the registry persisted at path. A missing file is an
// empty registry. The usage recorder feeds the last-used sort order and
// may be nil.
func NewStore(path string, usage common.UsageRecorder) (*Store, error) {
	s := &Store{
		profiles: make([]*Profile, 0),
		path:     path,
		usage:    usage,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads profiles from the registry file.
// Returns nil if the file doesn't exist (no profiles yet).
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return common.WrapError(err, "failed to read profiles file")
	}

	var loaded []*Profile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return common.WrapError(err, "failed to parse profiles file")
	}

	// Drop records a hand-edited file corrupted: empty or duplicate names.
	seen := make(map[string]bool, len(loaded))
	for _, p := range loaded {
		p.normalize()
		if p.Name == "" {
			common.LogWarn("profiles: skipping unnamed entry")
			continue
		}
		if seen[p.Name] {
			common.LogWarn("profiles: skipping duplicate entry %q", p.Name)
			continue
		}
		seen[p.Name] = true
		s.profiles = append(s.profiles, p)
	}

	return nil
}

// save persists profiles to the registry file. Callers hold the lock.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return common.WrapError(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(s.profiles)
	if err != nil {
		return common.WrapError(err, "failed to serialize profiles")
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return common.WrapError(err, "failed to write profiles file")
	}

	return nil
}

// Add registers a new profile. The name and any non-empty alias must be
// unique across the registry.
func (s *Store) Add(p *Profile) error {
	p.normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.profiles {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %q", common.ErrDuplicateName, p.Name)
		}
		if p.Alias != "" && strings.EqualFold(existing.Alias, p.Alias) {
			return fmt.Errorf("%w: %q (held by %q)", common.ErrDuplicateAlias, p.Alias, existing.Name)
		}
	}

	s.profiles = append(s.profiles, p.Clone())
	return s.save()
}

// Update applies a partial edit to the named profile. The name itself
// is immutable; a changed alias is revalidated against all other
// profiles.
func (s *Store) Update(name string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.byName(name)
	if target == nil {
		return fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
	}

	if patch.Alias != nil {
		alias := strings.TrimSpace(*patch.Alias)
		if alias != "" {
			for _, other := range s.profiles {
				if other.Name != name && strings.EqualFold(other.Alias, alias) {
					return fmt.Errorf("%w: %q (held by %q)", common.ErrDuplicateAlias, alias, other.Name)
				}
			}
		}
	}

	updated := target.Clone()
	patch.apply(updated)
	updated.normalize()
	if err := updated.Validate(); err != nil {
		return err
	}

	*target = *updated
	return s.save()
}

// Remove deletes the named profile and forgets its usage data.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.profiles {
		if p.Name == name {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			if s.usage != nil {
				s.usage.Forget(name)
			}
			return s.save()
		}
	}
	return fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
}

// Get returns a copy of the named profile.
func (s *Store) Get(name string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.byName(name); p != nil {
		return s.withUsage(p), nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
}

// Resolve finds a profile by exact name or, failing that, by alias.
// Names win over aliases so an alias can never shadow a profile.
func (s *Store) Resolve(nameOrAlias string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.byName(nameOrAlias); p != nil {
		return s.withUsage(p), nil
	}
	for _, p := range s.profiles {
		if p.Alias != "" && strings.EqualFold(p.Alias, nameOrAlias) {
			return s.withUsage(p), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", common.ErrProfileNotFound, nameOrAlias)
}

// All returns copies of every profile, sorted by name.
func (s *Store) All() []*Profile {
	var out []*Profile
	for p := range s.Find("", SortByName) {
		out = append(out, p)
	}
	return out
}

// Len reports the number of registered profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Find returns a restartable sequence of profile copies matching a
// case-insensitive substring query over name, alias, and category,
// ordered by the given sort key with ties broken by name. Each range
// over the sequence re-reads the registry, so a retained Find result
// reflects later mutations.
func (s *Store) Find(query string, key SortKey) iter.Seq[*Profile] {
	return func(yield func(*Profile) bool) {
		s.mu.RLock()
		matches := make([]*Profile, 0, len(s.profiles))
		for _, p := range s.profiles {
			if p.MatchesQuery(query) {
				matches = append(matches, s.withUsage(p))
			}
		}
		s.mu.RUnlock()

		sortProfiles(matches, key)

		for _, p := range matches {
			if !yield(p) {
				return
			}
		}
	}
}

// ImportMany validates candidates independently and registers the ones
// that pass. Name collisions with existing profiles (or earlier
// candidates in the same batch) are rejected, never overwritten, so a
// re-import cannot clobber manual edits. The returned slice has one
// entry per candidate in input order.
func (s *Store) ImportMany(candidates []*Profile) ([]ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]ImportResult, 0, len(candidates))
	accepted := 0

	for _, c := range candidates {
		result := ImportResult{Path: c.OriginPath}
		c.normalize()
		result.Name = c.Name

		if err := c.Validate(); err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}
		if p := s.byName(c.Name); p != nil {
			result.Err = fmt.Errorf("%w: %q", common.ErrDuplicateName, c.Name)
			results = append(results, result)
			continue
		}
		if c.Alias != "" {
			if holder := s.byAlias(c.Alias); holder != nil {
				result.Err = fmt.Errorf("%w: %q (held by %q)", common.ErrDuplicateAlias, c.Alias, holder.Name)
				results = append(results, result)
				continue
			}
		}

		c.Source = SourceImported
		s.profiles = append(s.profiles, c.Clone())
		accepted++
		results = append(results, result)
	}

	if accepted == 0 {
		return results, nil
	}
	return results, s.save()
}

// MarkUsed records a successful connect for the named profile.
func (s *Store) MarkUsed(name string) {
	if s.usage == nil {
		return
	}
	if err := s.usage.Touch(name); err != nil {
		common.LogWarn("failed to record usage for %s: %v", name, err)
	}
}

// byName returns the registry's own record. Callers hold the lock.
func (s *Store) byName(name string) *Profile {
	for _, p := range s.profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// byAlias returns the profile holding an alias. Callers hold the lock.
func (s *Store) byAlias(alias string) *Profile {
	for _, p := range s.profiles {
		if p.Alias != "" && strings.EqualFold(p.Alias, alias) {
			return p
		}
	}
	return nil
}

// withUsage clones a profile and joins in the last-used timestamp.
func (s *Store) withUsage(p *Profile) *Profile {
	cp := p.Clone()
	if s.usage != nil {
		if t, ok := s.usage.LastUsed(p.Name); ok {
			cp.LastUsed = t
		}
	}
	return cp
}

// sortProfiles orders a listing by the sort key, ties broken by name.
func sortProfiles(profiles []*Profile, key SortKey) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i], profiles[j]
		switch key {
		case SortByCategory:
			ca := strings.ToLower(a.Category)
			cb := strings.ToLower(b.Category)
			if ca != cb {
				return ca < cb
			}
		case SortByLastUsed:
			// Most recently used first; never-used profiles sink.
			if !a.LastUsed.Equal(b.LastUsed) {
				return a.LastUsed.After(b.LastUsed)
			}
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
