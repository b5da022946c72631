// internal/game/events.go
package game

import (
	engine "github.com/AngelGarcia/Mistery/engine"
)

// GameEventType names a change between two committed states of a session.
type GameEventType string

const (
	EventPlayerJoined      GameEventType = "player_joined"      // A player entered the lobby.
	EventSessionStarted    GameEventType = "session_started"    // Host moved the lobby to submission.
	EventPlayerSubmitted   GameEventType = "player_submitted"   // A player's phrase or statements landed.
	EventGuessingStarted   GameEventType = "guessing_started"   // Every submission is in.
	EventPlayerGuessed     GameEventType = "player_guessed"     // A player attributed every phrase.
	EventLieVoted          GameEventType = "lie_voted"          // A player voted on the statement on turn.
	EventStatementAdvanced GameEventType = "statement_advanced" // The next author's statements are on turn.
	EventGameResults       GameEventType = "game_results"       // Final leaderboard is available.
	EventSessionCancelled  GameEventType = "session_cancelled"  // Host deleted the session.
)

// EventUser identifies the player an event is about.
type EventUser struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// GameEvent describes one change observed between two updates.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Update is one committed state delivered to a subscriber.
type Update struct {
	SessionID string
	Revision  int64
	Game      *engine.Game // nil when Cancelled
	Cancelled bool
	Events    []GameEvent // changes since the previous update; empty for the first one
}

// diffEvents lists what happened between prev and next. prev is nil for the
// first update a subscriber sees, which carries no events.
func diffEvents(prev, next *engine.Game) []GameEvent {
	if next == nil {
		return []GameEvent{{Type: EventSessionCancelled}}
	}
	if prev == nil {
		return nil
	}

	var events []GameEvent
	for _, p := range next.Players {
		i := prev.PlayerByID(p.ID)
		user := &EventUser{ID: p.ID, Name: p.Name}
		if i < 0 {
			events = append(events, GameEvent{Type: EventPlayerJoined, User: user})
			continue
		}
		if p.HasSubmitted && !prev.Players[i].HasSubmitted {
			events = append(events, GameEvent{Type: EventPlayerSubmitted, User: user})
		}
		if p.HasGuessed && !prev.Players[i].HasGuessed {
			events = append(events, GameEvent{Type: EventPlayerGuessed, User: user})
		}
	}

	for _, st := range next.Statements {
		for guesser := range next.TwoTruthsGuesses[st.AuthorID] {
			if _, seen := prev.TwoTruthsGuesses[st.AuthorID][guesser]; seen {
				continue
			}
			events = append(events, GameEvent{
				Type:    EventLieVoted,
				User:    &EventUser{ID: guesser},
				Payload: map[string]interface{}{"authorId": st.AuthorID},
			})
		}
	}

	if next.Phase == engine.PhaseGuessing && prev.Phase == engine.PhaseGuessing &&
		next.CurrentStatementIndex != prev.CurrentStatementIndex {
		events = append(events, GameEvent{
			Type:    EventStatementAdvanced,
			Payload: map[string]interface{}{"index": next.CurrentStatementIndex},
		})
	}

	if next.Phase != prev.Phase {
		switch next.Phase {
		case engine.PhaseSubmission:
			events = append(events, GameEvent{Type: EventSessionStarted})
		case engine.PhaseGuessing:
			events = append(events, GameEvent{Type: EventGuessingStarted})
		case engine.PhaseResults:
			events = append(events, GameEvent{
				Type:    EventGameResults,
				Payload: map[string]interface{}{"standings": next.Results()},
			})
		}
	}
	return events
}
