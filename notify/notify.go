// Package notify sends desktop notifications for connection events over
// the D-Bus session bus. Construction is best effort: when no session
// bus is reachable (headless host, plain SSH session) the notifier
// degrades to a no-op so connection handling never depends on it.
package notify

import (
	"github.com/godbus/dbus/v5"

	"vpnswitch/common"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications.Notify"

	iconConnected = "network-vpn"
	iconError     = "dialog-error"

	urgencyLow      = byte(0)
	urgencyCritical = byte(2)

	// expireDefault lets the notification daemon pick the timeout.
	expireDefault = int32(-1)
)

// Notifier delivers desktop notifications. Safe for concurrent use;
// D-Bus connections serialize calls internally.
type Notifier struct {
	conn    *dbus.Conn
	enabled bool
}

var _ common.Notifier = (*Notifier)(nil)

// New connects to the session bus. The returned notifier is always
// usable; when the bus is unreachable it is disabled and Send calls
// succeed silently.
func New() *Notifier {
	conn, err := dbus.SessionBus()
	if err != nil {
		common.LogDebug("notifications disabled: no session bus: %v", err)
		return &Notifier{}
	}
	return &Notifier{conn: conn, enabled: true}
}

// Disabled returns a notifier that drops everything. Used when the user
// turned notifications off in the settings.
func Disabled() *Notifier {
	return &Notifier{}
}

// Enabled reports whether notifications will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.enabled
}

// Notify sends a low-urgency notification with the VPN icon.
func (n *Notifier) Notify(title, message string) error {
	return n.send(title, message, iconConnected, urgencyLow)
}

// NotifyError sends a critical-urgency notification with the error icon.
func (n *Notifier) NotifyError(title, message string) error {
	return n.send(title, message, iconError, urgencyCritical)
}

func (n *Notifier) send(title, message, icon string, urgency byte) error {
	if !n.enabled || n.conn == nil {
		return nil
	}

	obj := n.conn.Object(notifyService, dbus.ObjectPath(notifyPath))
	call := obj.Call(notifyInterface, 0,
		common.AppDisplayName, // app name
		uint32(0),             // replaces id
		icon,
		title,
		message,
		[]string{}, // actions
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgency)},
		expireDefault,
	)
	if call.Err != nil {
		common.LogDebug("notification delivery failed: %v", call.Err)
		return call.Err
	}
	return nil
}
