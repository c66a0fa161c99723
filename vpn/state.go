// Package vpn provides profile management and connection supervision.
// This file contains the process-wide connection state and the bounded
// event log shown in the logs panel.
package vpn

import (
	"fmt"
	"sync"
	"time"

	"vpnswitch/common"
)

// Phase is the lifecycle stage of the single process-wide connection.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseDisconnecting
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseConnecting:
		return "Connecting"
	case PhaseConnected:
		return "Connected"
	case PhaseDisconnecting:
		return "Disconnecting"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ConnectionState is the single source of truth for what the VPN
// subsystem is doing. At most one profile name is referenced by a
// non-Idle state; that is the single-active-connection guarantee.
// Only the supervisor loop writes it; everyone else reads snapshots.
type ConnectionState struct {
	Phase   Phase
	Profile string
	// Since is when the connection was established (Connected only).
	Since time.Time
	// Reason explains a Failed state.
	Reason string
	// Attempt and MaxAttempts describe connect retries (Connecting only).
	Attempt     int
	MaxAttempts int
}

// IsTransitioning reports whether a connect or disconnect is in flight.
func (s ConnectionState) IsTransitioning() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseDisconnecting
}

// IsBusy reports whether the state references an active or in-flight
// profile. Failed does not count: it is recoverable and holds no tunnel.
func (s ConnectionState) IsBusy() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseConnected || s.Phase == PhaseDisconnecting
}

// String renders the state for status lines.
func (s ConnectionState) String() string {
	switch s.Phase {
	case PhaseIdle:
		return "Idle"
	case PhaseConnecting:
		if s.MaxAttempts > 1 {
			return fmt.Sprintf("Connecting to %s (attempt %d/%d)", s.Profile, s.Attempt, s.MaxAttempts)
		}
		return fmt.Sprintf("Connecting to %s", s.Profile)
	case PhaseConnected:
		return fmt.Sprintf("Connected to %s since %s", s.Profile, s.Since.Format("15:04:05"))
	case PhaseDisconnecting:
		return fmt.Sprintf("Disconnecting from %s", s.Profile)
	case PhaseFailed:
		return fmt.Sprintf("Failed (%s): %s", s.Profile, s.Reason)
	default:
		return "Unknown"
	}
}

func idleState() ConnectionState {
	return ConnectionState{Phase: PhaseIdle}
}

func connectingState(profile string, attempt, maxAttempts int) ConnectionState {
	return ConnectionState{Phase: PhaseConnecting, Profile: profile, Attempt: attempt, MaxAttempts: maxAttempts}
}

func connectedState(profile string, since time.Time) ConnectionState {
	return ConnectionState{Phase: PhaseConnected, Profile: profile, Since: since}
}

func disconnectingState(profile string) ConnectionState {
	return ConnectionState{Phase: PhaseDisconnecting, Profile: profile}
}

func failedState(profile, reason string) ConnectionState {
	return ConnectionState{Phase: PhaseFailed, Profile: profile, Reason: reason}
}

// Event is one entry of the in-memory activity log.
type Event struct {
	Timestamp time.Time
	Level     common.LogLevel
	Message   string
}

// eventLog is a bounded append-only ring. When full, the oldest entry
// is discarded.
type eventLog struct {
	mu      sync.Mutex
	entries []Event
	size    int
}

func newEventLog(size int) *eventLog {
	if size <= 0 {
		size = common.EventLogCapacity
	}
	return &eventLog{
		entries: make([]Event, 0, size),
		size:    size,
	}
}

func (l *eventLog) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.size {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, e)
}

// snapshot returns a copy of the log, oldest first.
func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}
