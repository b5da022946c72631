// internal/game/game.go

// Package game runs party-game sessions on top of a shared document store.
// Every mutation is a store transaction that applies engine rules to the
// latest committed document, so concurrent players never overwrite each
// other and every process reaches the same phase transitions.
package game

import (
	"context"
	"errors"
	"strings"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/AngelGarcia/Mistery/internal/anonymize"
	"github.com/AngelGarcia/Mistery/internal/identity"
	"github.com/AngelGarcia/Mistery/internal/notify"
	"github.com/AngelGarcia/Mistery/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service owns the session documents.
type Service struct {
	docs store.Documents
	feed store.Feed
	anon anonymize.Anonymizer
	sink notify.Sink
	log  logrus.FieldLogger
}

// NewService wires a service. anon is wrapped so a failing anonymizer never
// blocks a submission.
func NewService(docs store.Documents, feed store.Feed, anon anonymize.Anonymizer, sink notify.Sink, log logrus.FieldLogger) *Service {
	return &Service{
		docs: docs,
		feed: feed,
		anon: anonymize.Fallback{Next: anon, Log: log},
		sink: sink,
		log:  log,
	}
}

// fail classifies err and reports store permission failures to the sink.
func (s *Service) fail(op, sessionID string, err error) error {
	err = wrap(op, sessionID, err)
	if errors.Is(err, store.ErrPermissionDenied) {
		s.sink.Notify(notify.Notice{
			Level:   notify.LevelError,
			Title:   "Permission denied",
			Message: "You do not have access to this session.",
			Err:     err,
		})
	}
	s.log.WithFields(logrus.Fields{"op": op, "session": sessionID, "kind": Classify(err)}).WithError(err).Debug("operation failed")
	return err
}

// mutate runs fn on the current document and writes the result, applying
// any phase transition the change made due. A missing document is
// store.ErrNotFound.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(g *engine.Game) error) (store.Change, error) {
	c, _, err := s.docs.RunTransaction(ctx, sessionID, func(tx store.Tx) error {
		g, ok := tx.Get()
		if !ok {
			return store.ErrNotFound
		}
		if err := fn(g); err != nil {
			return err
		}
		g.Advance()
		tx.Set(g)
		return nil
	})
	return c, err
}

// CreateOrJoin adds a player called name to the session, creating it with
// that player as host when it does not exist yet. mode is required to create
// a session; when joining it must be empty or match the session's mode.
func (s *Service) CreateOrJoin(ctx context.Context, sessionID, name string, mode engine.GameMode) (engine.Player, error) {
	const op = "create_or_join"
	if sessionID == "" {
		return engine.Player{}, s.fail(op, sessionID, errNoSession)
	}
	player := identity.NewPlayer(name)

	var created bool
	_, _, err := s.docs.RunTransaction(ctx, sessionID, func(tx store.Tx) error {
		g, ok := tx.Get()
		if !ok {
			ng, err := engine.NewGame(sessionID, mode, player)
			if err != nil {
				return err
			}
			created = true
			tx.Set(ng)
			return nil
		}
		created = false
		if mode != "" && mode != g.GameMode {
			return engine.ErrModeMismatch
		}
		if err := g.AddPlayer(player); err != nil {
			return err
		}
		tx.Set(g)
		return nil
	})
	if err != nil {
		return engine.Player{}, s.fail(op, sessionID, err)
	}

	s.log.WithFields(logrus.Fields{
		"session": sessionID,
		"player":  player.ID,
		"created": created,
	}).Info("player joined")
	return player, nil
}

// IsHost reports whether playerID is the host of the session.
func (s *Service) IsHost(ctx context.Context, sessionID, playerID string) (bool, error) {
	c, err := s.docs.Get(ctx, sessionID)
	if err != nil {
		return false, s.fail("is_host", sessionID, err)
	}
	return c.Game.IsHost(playerID), nil
}

// StartSession moves the lobby to submission. Only the host may start, and
// only with at least engine.MinPlayers players.
func (s *Service) StartSession(ctx context.Context, sessionID, byPlayerID string) error {
	_, err := s.mutate(ctx, sessionID, func(g *engine.Game) error {
		return g.Start(byPlayerID)
	})
	if err != nil {
		return s.fail("start", sessionID, err)
	}
	s.log.WithFields(logrus.Fields{"session": sessionID, "player": byPlayerID}).Info("session started")
	return nil
}

// CancelSession deletes the session. Subscribers see a cancelled update.
func (s *Service) CancelSession(ctx context.Context, sessionID, byPlayerID string) error {
	_, _, err := s.docs.RunTransaction(ctx, sessionID, func(tx store.Tx) error {
		g, ok := tx.Get()
		if !ok {
			return store.ErrNotFound
		}
		if !g.IsHost(byPlayerID) {
			return engine.ErrNotHost
		}
		tx.Delete()
		return nil
	})
	if err != nil {
		return s.fail("cancel", sessionID, err)
	}
	s.log.WithFields(logrus.Fields{"session": sessionID, "player": byPlayerID}).Info("session cancelled")
	return nil
}

// SubmitPhrase anonymizes rawText and stores it as playerID's phrase. The
// anonymizer runs outside the transaction; when it fails the phrase is
// stored degraded rather than rejected.
func (s *Service) SubmitPhrase(ctx context.Context, sessionID, playerID, rawText string) error {
	const op = "submit_phrase"
	rawText = strings.TrimSpace(rawText)

	// Reject early so a doomed submission does not cost an anonymizer call.
	c, err := s.docs.Get(ctx, sessionID)
	if err != nil {
		return s.fail(op, sessionID, err)
	}
	if err := c.Game.AddPhrase(engine.Phrase{AuthorID: playerID, AnonymizedText: rawText}); err != nil {
		return s.fail(op, sessionID, err)
	}

	texts, err := s.anon.Anonymize(ctx, []string{rawText})
	if err != nil {
		return s.fail(op, sessionID, err)
	}
	phrase := engine.Phrase{
		ID:             "phrase-" + uuid.NewString(),
		AnonymizedText: texts[0],
		AuthorID:       playerID,
	}

	if _, err := s.mutate(ctx, sessionID, func(g *engine.Game) error {
		return g.AddPhrase(phrase)
	}); err != nil {
		return s.fail(op, sessionID, err)
	}
	s.log.WithFields(logrus.Fields{"session": sessionID, "player": playerID, "phrase": phrase.ID}).Info("phrase submitted")
	return nil
}

// SubmitStatements stores playerID's two truths and a lie. The last
// statement is the lie.
func (s *Service) SubmitStatements(ctx context.Context, sessionID, playerID string, statements [engine.StatementsPerPlayer]string) error {
	if _, err := s.mutate(ctx, sessionID, func(g *engine.Game) error {
		return g.AddStatement(playerID, statements)
	}); err != nil {
		return s.fail("submit_statements", sessionID, err)
	}
	s.log.WithFields(logrus.Fields{"session": sessionID, "player": playerID}).Info("statements submitted")
	return nil
}

// SubmitGuesses stores playerID's attributions, one for every phrase they
// did not write.
func (s *Service) SubmitGuesses(ctx context.Context, sessionID, playerID string, guesses []engine.Guess) error {
	if _, err := s.mutate(ctx, sessionID, func(g *engine.Game) error {
		return g.RecordGuesses(playerID, guesses)
	}); err != nil {
		return s.fail("submit_guesses", sessionID, err)
	}
	s.log.WithFields(logrus.Fields{"session": sessionID, "player": playerID}).Info("guesses submitted")
	return nil
}

// SubmitLieVote records guesserID's pick for the lie among authorID's
// statements. Only the first vote counts: repeating it succeeds without
// changing anything, and recorded reports which case happened.
func (s *Service) SubmitLieVote(ctx context.Context, sessionID, guesserID, authorID string, index int) (recorded bool, err error) {
	_, _, err = s.docs.RunTransaction(ctx, sessionID, func(tx store.Tx) error {
		g, ok := tx.Get()
		if !ok {
			return store.ErrNotFound
		}
		var err error
		recorded, err = g.RecordLieVote(guesserID, authorID, index)
		if err != nil || !recorded {
			return err
		}
		g.Advance()
		tx.Set(g)
		return nil
	})
	if err != nil {
		return false, s.fail("submit_lie_vote", sessionID, err)
	}
	s.log.WithFields(logrus.Fields{
		"session":  sessionID,
		"player":   guesserID,
		"author":   authorID,
		"recorded": recorded,
	}).Info("lie vote")
	return recorded, nil
}

// AdvancePhase applies any transition the current document makes due. It
// is safe to call from every client on every change: once the document has
// settled nothing is written.
func (s *Service) AdvancePhase(ctx context.Context, sessionID string) (advanced bool, err error) {
	_, advanced, err = s.docs.RunTransaction(ctx, sessionID, func(tx store.Tx) error {
		g, ok := tx.Get()
		if !ok {
			return store.ErrNotFound
		}
		if g.Advance() {
			tx.Set(g)
		}
		return nil
	})
	if err != nil {
		return false, s.fail("advance", sessionID, err)
	}
	if advanced {
		s.log.WithField("session", sessionID).Debug("phase advanced")
	}
	return advanced, nil
}

// Get returns the latest committed document and its revision.
func (s *Service) Get(ctx context.Context, sessionID string) (*engine.Game, int64, error) {
	c, err := s.docs.Get(ctx, sessionID)
	if err != nil {
		return nil, 0, s.fail("get", sessionID, err)
	}
	return c.Game, c.Revision, nil
}

// View returns the session as playerID sees it.
func (s *Service) View(ctx context.Context, sessionID, playerID string) (SessionView, error) {
	g, rev, err := s.Get(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return BuildView(g, rev, playerID), nil
}
