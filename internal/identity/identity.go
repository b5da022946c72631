// Package identity mints player identities and remembers which player a
// client is in each session, so a reconnecting client resumes as the same
// player instead of joining again.
package identity

import (
	"context"
	"errors"
	"strings"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewPlayer returns a fresh player with a unique "player-" prefixed id.
func NewPlayer(name string) engine.Player {
	return engine.Player{
		ID:   "player-" + uuid.NewString(),
		Name: strings.TrimSpace(name),
	}
}

// Bindings persists the player a client controls in a session.
type Bindings interface {
	// Get returns the bound player id; ok is false when there is none.
	Get(ctx context.Context, clientID, sessionID string) (playerID string, ok bool, err error)
	Set(ctx context.Context, clientID, sessionID, playerID string) error
	Clear(ctx context.Context, clientID, sessionID string) error
}

// Manager resolves clients to players on top of a Bindings store.
type Manager struct {
	bindings Bindings
	log      logrus.FieldLogger
}

func NewManager(bindings Bindings, log logrus.FieldLogger) *Manager {
	return &Manager{bindings: bindings, log: log}
}

// Bind records that clientID plays as playerID in sessionID.
func (m *Manager) Bind(ctx context.Context, clientID, sessionID, playerID string) error {
	return m.bindings.Set(ctx, clientID, sessionID, playerID)
}

// Forget drops the client's binding for sessionID, e.g. after a cancelled
// session or a rejected join.
func (m *Manager) Forget(ctx context.Context, clientID, sessionID string) error {
	return m.bindings.Clear(ctx, clientID, sessionID)
}

// Resolve returns the player clientID controls in g. A binding naming a
// player the document no longer contains is stale: it is cleared and ok is
// false, so the client prompts for a name again.
func (m *Manager) Resolve(ctx context.Context, clientID string, g *engine.Game) (engine.Player, bool, error) {
	if g == nil {
		return engine.Player{}, false, errors.New("resolve: nil session")
	}
	playerID, ok, err := m.bindings.Get(ctx, clientID, g.ID)
	if err != nil || !ok {
		return engine.Player{}, false, err
	}
	if i := g.PlayerByID(playerID); i >= 0 {
		return g.Players[i], true, nil
	}

	m.log.WithFields(logrus.Fields{
		"session": g.ID,
		"client":  clientID,
		"player":  playerID,
	}).Info("clearing stale player binding")
	if err := m.bindings.Clear(ctx, clientID, g.ID); err != nil {
		return engine.Player{}, false, err
	}
	return engine.Player{}, false, nil
}
