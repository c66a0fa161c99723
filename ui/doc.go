// Package ui is the interactive terminal frontend. It renders the
// profile table, a live event panel and modal dialogs for editing,
// importing and deleting profiles, all driven by the vpn.Manager's
// state and event feeds. The model issues backend work as asynchronous
// commands and never blocks the render loop.
package ui
