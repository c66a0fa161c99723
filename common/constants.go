// Package common provides shared constants, errors, and utilities
// used across the vpnswitch application.
package common

import "time"

// Application metadata.
const (
	// AppName is the binary and service name.
	AppName = "vpnswitch"
	// AppDisplayName is the name shown in notifications and the TUI header.
	AppDisplayName = "VPN Switch"
	// ConfigDirName is the name of the configuration directory under ~/.config.
	ConfigDirName = "vpnswitch"
)

// File and directory names used by the application.
const (
	ProfilesFileName    = "profiles.yaml"
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	LogFileName         = "vpnswitch.log"
	UsageDBFileName     = "usage.db"
	ImportsDirName      = "imports"
)

// Default timeouts and intervals for the connection supervisor.
// All of these are overridable through the settings file; the constants
// are the fallback values.
const (
	// DefaultBackendTimeout bounds every subprocess invocation.
	DefaultBackendTimeout = 10 * time.Second
	// DefaultPollInterval is the pause between status queries while
	// confirming a connect or disconnect.
	DefaultPollInterval = 1 * time.Second
	// DefaultPollAttempts is how many status queries are made before a
	// pending connect is declared not confirmed.
	DefaultPollAttempts = 20
	// DefaultDisconnectPollAttempts bounds disconnect confirmation.
	DefaultDisconnectPollAttempts = 20
	// DefaultConnectAttempts is how many times a connect is retried
	// end to end before giving up.
	DefaultConnectAttempts = 3
	// DefaultRetryDelay is the pause between connect attempts.
	DefaultRetryDelay = 2 * time.Second
	// DefaultStatusCheckInterval is how often an established connection
	// is re-checked for external drops.
	DefaultStatusCheckInterval = 5 * time.Second
)

// Bounds for supervisor-owned collections.
const (
	// DefaultQueueCapacity is the request queue size; callers get an
	// immediate error when it is full rather than blocking.
	DefaultQueueCapacity = 16
	// EventLogCapacity is the size of the in-memory event ring shown in
	// the logs panel. Older entries are discarded.
	EventLogCapacity = 100
	// BroadcastBuffer is the per-subscriber channel buffer; slow
	// subscribers lose messages instead of blocking the supervisor.
	BroadcastBuffer = 100
)

// Profile defaults.
const (
	DefaultCategory = "Uncategorized"
	DefaultProtocol = "IKEv2"
)

// Theme values.
const (
	ThemeAuto  = "auto"
	ThemeLight = "light"
	ThemeDark  = "dark"
)
