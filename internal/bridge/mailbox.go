// Package bridge carries host signals (the video the viewer is watching)
// into the app. A signal is retained until the receiver acknowledges it, so
// one that arrives before the TUI is ready is not lost.
package bridge

import (
	"context"
	"sync"
)

// Signal announces the active video. An empty VideoID means none.
type Signal struct {
	VideoID string `json:"video_id"`
	Seq     uint64 `json:"seq"`
}

// Mailbox keeps the latest unacknowledged signal. A newer signal replaces
// an older one. It is safe for concurrent use.
type Mailbox struct {
	mu      sync.Mutex
	seq     uint64
	pending *Signal
	notify  chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Post stores a signal for videoID and returns it.
func (m *Mailbox) Post(videoID string) Signal {
	m.mu.Lock()
	m.seq++
	s := Signal{VideoID: videoID, Seq: m.seq}
	m.pending = &s
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return s
}

// Pending returns the unacknowledged signal, if any.
func (m *Mailbox) Pending() (Signal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Signal{}, false
	}
	return *m.pending, true
}

// Ack marks the signal with seq as handled. Acking a replaced signal does
// nothing.
func (m *Mailbox) Ack(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil && m.pending.Seq == seq {
		m.pending = nil
	}
}

// Wait blocks until a signal is pending and returns it without removing it.
func (m *Mailbox) Wait(ctx context.Context) (Signal, error) {
	for {
		if s, ok := m.Pending(); ok {
			return s, nil
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return Signal{}, ctx.Err()
		}
	}
}
