// Package roster delivers live check-in lists to connected viewers. Each
// subscription is its own polling loop: a full snapshot immediately, then on
// every tick until the viewer disconnects or the session disappears. Viewers
// always get whole snapshots, never diffs, so a reconnect needs no replay.
package roster

import (
	"context"
	"errors"
	"time"

	"rollcall/internal/checkin"
	"rollcall/internal/session"
)

// EventInit marks the first snapshot of a subscription; every later one is
// EventUpdate.
const (
	EventInit   = "init"
	EventUpdate = "update"
)

// Event is one delivered snapshot: the full current check-in list for the
// session, newest first.
type Event struct {
	Type      string             `json:"type"`
	Attendees []*checkin.Checkin `json:"attendees"`
}

// Notifier produces roster subscriptions.
type Notifier struct {
	sessions session.Store
	checkins checkin.Store
	interval time.Duration
}

// NewNotifier creates a notifier polling at the given interval.
func NewNotifier(sessions session.Store, checkins checkin.Store, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Notifier{sessions: sessions, checkins: checkins, interval: interval}
}

// Subscribe starts a polling loop for the session and returns its event
// channel. The channel closes when ctx is cancelled or the session no longer
// exists; a missing session is end-of-stream, not an error. Transient fetch
// failures skip the tick and retry on the next one.
func (n *Notifier) Subscribe(ctx context.Context, sessionID string) <-chan Event {
	out := make(chan Event, 1)
	go func() {
		defer close(out)

		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		eventType := EventInit
		for {
			attendees, err := n.snapshot(ctx, sessionID)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) || ctx.Err() != nil {
					return
				}
				// transient; retry next tick
			} else {
				select {
				case out <- Event{Type: eventType, Attendees: attendees}:
					eventType = EventUpdate
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (n *Notifier) snapshot(ctx context.Context, sessionID string) ([]*checkin.Checkin, error) {
	if _, err := n.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	attendees, err := n.checkins.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if attendees == nil {
		attendees = []*checkin.Checkin{}
	}
	return attendees, nil
}
