// internal/game/client.go
package game

import (
	"context"
	"sync"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/AngelGarcia/Mistery/internal/identity"
	"github.com/AngelGarcia/Mistery/internal/notify"
	"github.com/sirupsen/logrus"
)

// Client is one device's live binding to a session. It remembers which
// player the device is, follows the session's committed state and nudges
// due phase transitions. It never applies local changes optimistically:
// the view only changes when a commit is observed.
type Client struct {
	svc       *Service
	ids       *identity.Manager
	sink      notify.Sink
	log       logrus.FieldLogger
	clientID  string
	sessionID string

	mu          sync.Mutex
	player      engine.Player
	bound       bool
	view        SessionView
	hasView     bool
	lastErr     error
	onView      func(SessionView)
	attached    bool
	unsubscribe func()
}

// NewClient binds clientID to sessionID. Nothing happens until Join or Attach.
func NewClient(svc *Service, ids *identity.Manager, clientID, sessionID string) *Client {
	return &Client{
		svc:       svc,
		ids:       ids,
		sink:      svc.sink,
		log:       svc.log.WithFields(logrus.Fields{"session": sessionID, "client": clientID}),
		clientID:  clientID,
		sessionID: sessionID,
	}
}

// Join enters the session as name, or resumes as the player this client
// joined as before. A rejected join clears any binding so the caller can
// prompt for another name.
func (c *Client) Join(ctx context.Context, name string, mode engine.GameMode) (engine.Player, error) {
	if p, ok, err := c.resume(ctx); err != nil {
		return engine.Player{}, err
	} else if ok {
		return p, nil
	}

	p, err := c.svc.CreateOrJoin(ctx, c.sessionID, name, mode)
	if err != nil {
		if Classify(err) == KindConflict || Classify(err) == KindInvalid {
			if ferr := c.ids.Forget(ctx, c.clientID, c.sessionID); ferr != nil {
				c.log.WithError(ferr).Warn("forget binding")
			}
		}
		return engine.Player{}, err
	}
	if err := c.ids.Bind(ctx, c.clientID, c.sessionID, p.ID); err != nil {
		return engine.Player{}, err
	}

	c.mu.Lock()
	c.player, c.bound = p, true
	c.mu.Unlock()
	return p, nil
}

// resume looks for a prior binding that still names a player of the session.
func (c *Client) resume(ctx context.Context) (engine.Player, bool, error) {
	g, _, err := c.svc.Get(ctx, c.sessionID)
	if IsCancelled(err) {
		if err := c.ids.Forget(ctx, c.clientID, c.sessionID); err != nil {
			return engine.Player{}, false, err
		}
		return engine.Player{}, false, nil
	}
	if err != nil {
		return engine.Player{}, false, err
	}
	p, ok, err := c.ids.Resolve(ctx, c.clientID, g)
	if err != nil || !ok {
		return engine.Player{}, false, err
	}
	c.mu.Lock()
	c.player, c.bound = p, true
	c.mu.Unlock()
	c.log.WithField("player", p.ID).Info("resumed player")
	return p, true, nil
}

// Attach starts following the session. onView, which may be nil, runs on
// every observed commit with the refreshed view. Calls on an attached
// client are no-ops.
func (c *Client) Attach(ctx context.Context, onView func(SessionView)) error {
	c.mu.Lock()
	if c.attached {
		c.mu.Unlock()
		return nil
	}
	c.attached = true
	c.onView = onView
	c.mu.Unlock()

	unsub, err := c.svc.Subscribe(ctx, c.sessionID,
		func(u Update) { c.apply(ctx, u) },
		func(err error) { c.fail(err) },
	)
	if err != nil {
		c.mu.Lock()
		c.attached = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if !c.attached {
		// Detached while subscribing.
		c.mu.Unlock()
		unsub()
		return nil
	}
	c.unsubscribe = unsub
	c.mu.Unlock()
	return nil
}

func (c *Client) apply(ctx context.Context, u Update) {
	c.log.WithFields(eventFields(u)).Debug("update")

	if u.Cancelled {
		c.mu.Lock()
		c.view = SessionView{SessionID: c.sessionID, Revision: u.Revision, Cancelled: true}
		c.hasView = true
		c.bound = false
		view, onView := c.view, c.onView
		c.mu.Unlock()

		if err := c.ids.Forget(ctx, c.clientID, c.sessionID); err != nil {
			c.log.WithError(err).Warn("forget binding")
		}
		c.sink.Notify(notify.Notice{
			Level:   notify.LevelInfo,
			Title:   "Session cancelled",
			Message: "The host ended this session.",
		})
		if onView != nil {
			onView(view)
		}
		return
	}

	c.mu.Lock()
	playerID := ""
	if c.bound {
		if c.player.ID != "" && u.Game.PlayerByID(c.player.ID) < 0 {
			c.bound = false
		} else {
			playerID = c.player.ID
		}
	}
	c.view = BuildView(u.Game, u.Revision, playerID)
	c.hasView = true
	view, onView := c.view, c.onView
	c.mu.Unlock()

	if onView != nil {
		onView(view)
	}

	if u.Game.AdvanceDue() {
		if _, err := c.svc.AdvancePhase(ctx, c.sessionID); err != nil && !IsCancelled(err) {
			c.log.WithError(err).Warn("advance phase")
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.log.WithError(err).WithField("kind", Classify(err)).Warn("subscription failed")
}

// Player returns the player this client controls, if any.
func (c *Client) Player() (engine.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player, c.bound
}

// View returns the latest observed view.
func (c *Client) View() (SessionView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view, c.hasView
}

// Err returns the error that ended the subscription, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Detach stops following the session. The binding survives, so a later
// Join resumes the same player.
func (c *Client) Detach() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe, c.attached = nil, false
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
