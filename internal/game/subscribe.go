// internal/game/subscribe.go
package game

import (
	"context"
	"errors"
	"sync"

	"github.com/AngelGarcia/Mistery/internal/store"
	"github.com/sirupsen/logrus"
)

// Subscribe delivers the current state of the session and then every later
// commit, in commit order, to onChange. Deleting the session produces one
// final update with Cancelled set; a session missing at subscribe time is
// reported the same way. Failures go to onError, already classified, and end
// the subscription.
//
// Callbacks run on one goroutine owned by the subscription. The returned
// function stops delivery; it may be called more than once, including from
// inside a callback.
func (s *Service) Subscribe(ctx context.Context, sessionID string, onChange func(Update), onError func(error)) (unsubscribe func(), err error) {
	const op = "subscribe"
	// Subscribe before reading so no commit falls between the read and the
	// first change received.
	sub, err := s.feed.Subscribe(ctx, sessionID)
	if err != nil {
		return nil, s.fail(op, sessionID, err)
	}

	done := make(chan struct{})
	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			close(done)
			sub.Close()
		})
	}

	log := s.log.WithField("session", sessionID)
	go func() {
		defer unsubscribe()

		stopped := func() bool {
			select {
			case <-done:
				return true
			case <-ctx.Done():
				return true
			default:
				return false
			}
		}

		initial, err := s.docs.Get(ctx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			if !stopped() {
				onChange(Update{SessionID: sessionID, Cancelled: true, Events: diffEvents(nil, nil)})
			}
			return
		}
		if err != nil {
			if !stopped() {
				onError(s.fail(op, sessionID, err))
			}
			return
		}

		last := initial.Revision
		prev := initial.Game
		if stopped() {
			return
		}
		onChange(Update{SessionID: sessionID, Revision: last, Game: prev})

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case c, ok := <-sub.Changes():
				if !ok {
					if !stopped() {
						onError(s.fail(op, sessionID, ErrUnavailable))
					}
					return
				}
				if c.Revision <= last {
					continue
				}
				last = c.Revision
				u := Update{
					SessionID: sessionID,
					Revision:  c.Revision,
					Game:      c.Game,
					Cancelled: c.Deleted(),
					Events:    diffEvents(prev, c.Game),
				}
				if stopped() {
					return
				}
				onChange(u)
				if u.Cancelled {
					log.Debug("subscription ended by cancellation")
					return
				}
				prev = c.Game
			}
		}
	}()
	return unsubscribe, nil
}

// eventFields flattens an update for logging.
func eventFields(u Update) logrus.Fields {
	types := make([]GameEventType, len(u.Events))
	for i, e := range u.Events {
		types[i] = e.Type
	}
	f := logrus.Fields{"session": u.SessionID, "revision": u.Revision, "events": types}
	if u.Game != nil {
		f["phase"] = u.Game.Phase
	}
	return f
}
