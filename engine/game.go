// Package engine implements the rules of the "Who Wrote It?" and
// "Two Truths One Lie" party games.
//
// The package is pure: every function operates on a Game document value and
// never touches storage, clocks or the network. The session service applies
// these rules inside store transactions, and every client can evaluate them
// independently on the snapshots it observes.
package engine

import "strings"

// Phase is a stage of the session lifecycle.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseSubmission Phase = "submission"
	PhaseGuessing   Phase = "guessing"
	PhaseResults    Phase = "results"
)

// GameMode selects which sub-schema of the Game document is active.
type GameMode string

const (
	ModeWhoIsWho        GameMode = "who-is-who"
	ModeTwoTruthsOneLie GameMode = "two-truths-one-lie"
)

// Valid reports whether m is a known game mode.
func (m GameMode) Valid() bool {
	return m == ModeWhoIsWho || m == ModeTwoTruthsOneLie
}

// MinPlayers is the number of players required to start a session.
const MinPlayers = 2

// StatementsPerPlayer is the number of statements submitted in two-truths mode.
const StatementsPerPlayer = 3

// LieIndex is the fixed position of the false statement: the last one submitted.
const LieIndex = StatementsPerPlayer - 1

// Player is one participant of a session.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HasSubmitted bool   `json:"hasSubmitted"`
	HasGuessed   bool   `json:"hasGuessed"`
}

// Phrase is an anonymized submission in who-is-who mode.
type Phrase struct {
	ID             string `json:"id"`
	AnonymizedText string `json:"anonymizedText"`
	AuthorID       string `json:"authorId"`
}

// Guess attributes one phrase to one player.
type Guess struct {
	PhraseID        string `json:"phraseId"`
	GuessedPlayerID string `json:"guessedPlayerId"`
}

// Statement is one author's two truths and a lie.
type Statement struct {
	AuthorID   string                      `json:"authorId"`
	Statements [StatementsPerPlayer]string `json:"statements"`
	LieIndex   int                         `json:"lieIndex"`
}

// Game is the authoritative session document.
type Game struct {
	ID       string   `json:"id"`
	Phase    Phase    `json:"phase"`
	GameMode GameMode `json:"gameMode"`
	Players  []Player `json:"players"`
	HostID   string   `json:"hostId"`

	// who-is-who
	Phrases []Phrase           `json:"phrases,omitempty"`
	Guesses map[string][]Guess `json:"guesses,omitempty"` // guesser ID -> guesses

	// two-truths-one-lie
	Statements            []Statement               `json:"statements,omitempty"`
	CurrentStatementIndex int                       `json:"currentStatementIndex"`
	TwoTruthsGuesses      map[string]map[string]int `json:"twoTruthsGuesses,omitempty"` // author ID -> guesser ID -> guessed index
}

// NewGame creates a session document in the lobby with host as its only player.
func NewGame(id string, mode GameMode, host Player) (*Game, error) {
	if mode == "" {
		return nil, ErrMissingGameMode
	}
	if !mode.Valid() {
		return nil, ErrUnknownGameMode
	}
	host.Name = strings.TrimSpace(host.Name)
	if host.Name == "" {
		return nil, ErrInvalidName
	}
	host.HasSubmitted = false
	host.HasGuessed = false
	return &Game{
		ID:       id,
		Phase:    PhaseLobby,
		GameMode: mode,
		Players:  []Player{host},
		HostID:   host.ID,
	}, nil
}

// Clone returns a deep copy of g, safe to mutate independently.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = append([]Player(nil), g.Players...)
	c.Phrases = append([]Phrase(nil), g.Phrases...)
	c.Statements = append([]Statement(nil), g.Statements...)
	if g.Guesses != nil {
		c.Guesses = make(map[string][]Guess, len(g.Guesses))
		for k, v := range g.Guesses {
			c.Guesses[k] = append([]Guess(nil), v...)
		}
	}
	if g.TwoTruthsGuesses != nil {
		c.TwoTruthsGuesses = make(map[string]map[string]int, len(g.TwoTruthsGuesses))
		for author, votes := range g.TwoTruthsGuesses {
			m := make(map[string]int, len(votes))
			for guesser, idx := range votes {
				m[guesser] = idx
			}
			c.TwoTruthsGuesses[author] = m
		}
	}
	return &c
}

// PlayerByID returns the index of the player with the given ID, or -1.
func (g *Game) PlayerByID(id string) int {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// PlayerByName returns the index of the player with the given name, or -1.
// Names compare case-sensitively.
func (g *Game) PlayerByName(name string) int {
	for i := range g.Players {
		if g.Players[i].Name == name {
			return i
		}
	}
	return -1
}

// IsHost reports whether playerID is the session host.
func (g *Game) IsHost(playerID string) bool {
	return playerID != "" && g.HostID == playerID
}

// SubmittedCount returns the number of submitted items for the active mode.
func (g *Game) SubmittedCount() int {
	if g.GameMode == ModeTwoTruthsOneLie {
		return len(g.Statements)
	}
	return len(g.Phrases)
}

// PhraseByID returns the phrase with the given ID.
func (g *Game) PhraseByID(id string) (Phrase, bool) {
	for _, p := range g.Phrases {
		if p.ID == id {
			return p, true
		}
	}
	return Phrase{}, false
}
