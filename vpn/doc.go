// Package vpn implements the connection orchestrator at the heart of
// vpnswitch.
//
// This package covers:
//
//   - Profile registry: named profiles with aliases, categories, and
//     YAML persistence
//   - Connection supervision: the single-active-connection guarantee,
//     smart profile switching, and the status polling that confirms
//     what the OS tools actually did
//   - Backend abstraction: one interface over nmcli, scutil, and
//     rasdial, selected by host platform at startup
//
// # Architecture
//
// The package is organized around four main types:
//
//   - Manager: the front door for the CLI and the TUI; resolves names
//     and aliases and keeps profile mutations consistent with
//     connection state
//   - Store: owns the profile collection and its profiles.yaml file
//   - Supervisor: owns ConnectionState and the activity log; processes
//     connect/disconnect requests one at a time from a bounded queue
//   - Backend: a stateless adapter that runs the platform VPN tool as
//     a subprocess with a hard timeout
//
// # Connection Flow
//
// A typical connect:
//
//  1. A front end calls Manager.Connect with a name or alias
//  2. Manager resolves the profile and queues a request with the
//     Supervisor
//  3. The Supervisor disconnects whatever else is up, invokes
//     Backend.Connect, and polls Backend.Status until the tunnel is
//     confirmed or the attempt budget runs out
//  4. State transitions stream to subscribers; the caller gets the
//     final result as the request's reply
//
// Connecting while another profile is active switches automatically:
// the previous profile is torn down and confirmed disconnected before
// the new connect is issued. A newer request for a different profile
// supersedes an in-flight transition rather than waiting behind it.
//
// # Platform Tools
//
// Tunnels are never established by this process. The backends shell
// out to the OS tooling (NetworkManager on Linux, the system
// configuration daemon on macOS, RAS on Windows) and parse its textual
// output; anything unrecognized is reported as Unknown rather than
// guessed at.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Only the supervisor
// loop mutates ConnectionState; everything else sees snapshots.
package vpn
