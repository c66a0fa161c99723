// Package usage tracks per-profile connection usage in a small SQLite
// database. The profile registry reads it for the last-used sort order;
// everything here is advisory, so failures degrade to no-ops instead of
// failing connects.
package usage

import (
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vpnswitch/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS profile_usage (
	name      TEXT PRIMARY KEY,
	last_used INTEGER NOT NULL,
	use_count INTEGER NOT NULL DEFAULT 0
);`

// Record is one profile's usage row.
type Record struct {
	Name     string
	LastUsed time.Time
	UseCount int
}

// Tracker persists last-used timestamps and connect counts.
// The zero value is unusable; construct with Open. A Tracker whose
// database failed to open behaves as an empty, write-discarding store.
type Tracker struct {
	mu sync.Mutex
	db *sql.DB
}

var _ common.UsageRecorder = (*Tracker)(nil)

// Open opens (creating if necessary) the usage database at path.
// On failure a disabled tracker and the error are both returned so
// callers can log and continue.
func Open(path string) (*Tracker, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &Tracker{}, common.WrapError(err, "failed to open usage database")
	}
	// modernc sqlite allows one writer; serialize through a single conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return &Tracker{}, common.WrapError(err, "failed to prepare usage schema")
	}

	return &Tracker{db: db}, nil
}

// Touch records a successful connect for the named profile.
func (t *Tracker) Touch(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil || name == "" {
		return nil
	}

	_, err := t.db.Exec(`
		INSERT INTO profile_usage (name, last_used, use_count)
		VALUES (?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			last_used = excluded.last_used,
			use_count = profile_usage.use_count + 1`,
		name, time.Now().Unix())
	if err != nil {
		common.LogWarn("usage: failed to record connect for %s: %v", name, err)
	}
	return err
}

// LastUsed returns the recorded last-use time for a profile.
func (t *Tracker) LastUsed(name string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return time.Time{}, false
	}

	var unix int64
	err := t.db.QueryRow(`SELECT last_used FROM profile_usage WHERE name = ?`, name).Scan(&unix)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// UseCount returns how many successful connects were recorded.
func (t *Tracker) UseCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return 0
	}

	var count int
	if err := t.db.QueryRow(`SELECT use_count FROM profile_usage WHERE name = ?`, name).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Snapshot returns all usage rows, most recent first.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}

	rows, err := t.db.Query(`SELECT name, last_used, use_count FROM profile_usage ORDER BY last_used DESC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var unix int64
		if err := rows.Scan(&r.Name, &unix, &r.UseCount); err != nil {
			continue
		}
		r.LastUsed = time.Unix(unix, 0)
		records = append(records, r)
	}
	return records
}

// Forget drops usage data for a removed profile.
func (t *Tracker) Forget(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}

	_, err := t.db.Exec(`DELETE FROM profile_usage WHERE name = ?`, name)
	return err
}

// Close releases the database handle.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}
