// Package common provides shared constants, errors, and utilities
// used across the vpnswitch application.
package common

import "sync"

// Broadcaster fans a stream of values out to any number of subscribers.
// The supervisor publishes connection states and events through one of
// these per stream; the TUI and CLI watch them without ever touching
// supervisor internals.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	name      string
	closed    bool
	listeners map[chan T]bool
}

// NewBroadcaster creates a new Broadcaster for the given type T.
// The name identifies the stream in debug logs.
func NewBroadcaster[T any](name string) *Broadcaster[T] {
	return &Broadcaster[T]{
		name:      name,
		listeners: make(map[chan T]bool),
	}
}

// Subscribe adds a new listener and returns its receive channel.
// The channel is buffered so sends never block the publisher.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, BroadcastBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners[ch] = true
	return ch
}

// Unsubscribe removes a listener channel and closes it.
// Unsubscribing a channel that was never subscribed does nothing.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[ch]; ok {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Broadcast sends msg to all subscribers. A subscriber whose buffer is
// full is skipped; losing a display update is acceptable, blocking the
// supervisor is not.
func (b *Broadcaster[T]) Broadcast(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- msg:
		default:
			LogDebug("broadcaster %s: dropping message for slow subscriber", b.name)
		}
	}
}

// Close closes every listener channel and rejects future subscriptions.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.listeners {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Len reports the current number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
