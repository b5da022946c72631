// internal/game/view.go
package game

import (
	engine "github.com/AngelGarcia/Mistery/engine"
)

// PlayerView is one player as shown to an observer.
type PlayerView struct {
	PlayerID     string `json:"playerId"`
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	IsSelf       bool   `json:"isSelf"`
	HasSubmitted bool   `json:"hasSubmitted"`
	HasGuessed   bool   `json:"hasGuessed"`
}

// PhraseView is a phrase as shown to an observer. AuthorID stays empty until
// results, except on the observer's own phrases.
type PhraseView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"authorId,omitempty"`
}

// StatementView is the statement on turn, in its seeded display order.
// Order[i] is the stored index of the statement displayed at position i;
// votes are cast with stored indexes.
type StatementView struct {
	AuthorID   string                             `json:"authorId"`
	AuthorName string                             `json:"authorName"`
	Statements [engine.StatementsPerPlayer]string `json:"statements"`
	Order      [engine.StatementsPerPlayer]int    `json:"order"`
	IsOwn      bool                               `json:"isOwn"`
	MyVote     *int                               `json:"myVote,omitempty"`
	Position   int                                `json:"position"` // 1-based
	Total      int                                `json:"total"`
}

// SessionView is the state of a session tailored to one player. Nothing in
// it reveals an author before results.
type SessionView struct {
	SessionID string          `json:"sessionId"`
	Revision  int64           `json:"revision"`
	Phase     engine.Phase    `json:"phase"`
	GameMode  engine.GameMode `json:"gameMode"`
	HostID    string          `json:"hostId"`
	Cancelled bool            `json:"cancelled"`

	Self    *PlayerView  `json:"self,omitempty"`
	IsHost  bool         `json:"isHost"`
	Players []PlayerView `json:"players"`

	SubmittedCount int  `json:"submittedCount"`
	CanStart       bool `json:"canStart"`
	CanSubmit      bool `json:"canSubmit"`
	CanGuess       bool `json:"canGuess"`

	GuessTargets     []PhraseView      `json:"guessTargets,omitempty"`
	CurrentStatement *StatementView    `json:"currentStatement,omitempty"`
	PendingVoters    []string          `json:"pendingVoters,omitempty"`
	Phrases          []PhraseView      `json:"phrases,omitempty"`
	Results          []engine.Standing `json:"results,omitempty"`
}

// BuildView projects g for forPlayer, who may be empty for a spectator.
func BuildView(g *engine.Game, revision int64, forPlayer string) SessionView {
	v := SessionView{
		SessionID:      g.ID,
		Revision:       revision,
		Phase:          g.Phase,
		GameMode:       g.GameMode,
		HostID:         g.HostID,
		IsHost:         g.IsHost(forPlayer),
		SubmittedCount: g.SubmittedCount(),
		CanSubmit:      g.CanSubmit(forPlayer),
		CanGuess:       g.CanGuess(forPlayer),
	}
	v.CanStart = v.IsHost && g.Phase == engine.PhaseLobby && len(g.Players) >= engine.MinPlayers

	v.Players = make([]PlayerView, len(g.Players))
	for i, p := range g.Players {
		v.Players[i] = PlayerView{
			PlayerID:     p.ID,
			Name:         p.Name,
			IsHost:       g.IsHost(p.ID),
			IsSelf:       p.ID == forPlayer && forPlayer != "",
			HasSubmitted: p.HasSubmitted,
			HasGuessed:   p.HasGuessed,
		}
		if v.Players[i].IsSelf {
			self := v.Players[i]
			v.Self = &self
		}
	}

	switch g.Phase {
	case engine.PhaseGuessing:
		if g.GameMode == engine.ModeTwoTruthsOneLie {
			v.CurrentStatement = statementView(g, forPlayer)
			v.PendingVoters = g.PendingVoters()
		} else if v.CanGuess {
			for _, ph := range g.GuessTargets(forPlayer) {
				v.GuessTargets = append(v.GuessTargets, PhraseView{ID: ph.ID, Text: ph.AnonymizedText})
			}
		}
	case engine.PhaseResults:
		for _, ph := range g.ShuffledPhrases() {
			v.Phrases = append(v.Phrases, PhraseView{ID: ph.ID, Text: ph.AnonymizedText, AuthorID: ph.AuthorID})
		}
		v.Results = g.Results()
	}

	if g.Phase != engine.PhaseResults && forPlayer != "" {
		for _, ph := range g.Phrases {
			if ph.AuthorID == forPlayer {
				v.Phrases = append(v.Phrases, PhraseView{ID: ph.ID, Text: ph.AnonymizedText, AuthorID: ph.AuthorID})
			}
		}
	}
	return v
}

func statementView(g *engine.Game, forPlayer string) *StatementView {
	st, ok := g.CurrentStatement()
	if !ok {
		return nil
	}
	sv := &StatementView{
		AuthorID: st.AuthorID,
		Order:    g.StatementOrder(st.AuthorID),
		IsOwn:    st.AuthorID == forPlayer,
		Position: g.CurrentStatementIndex + 1,
		Total:    len(g.Statements),
	}
	if i := g.PlayerByID(st.AuthorID); i >= 0 {
		sv.AuthorName = g.Players[i].Name
	}
	for pos, idx := range sv.Order {
		sv.Statements[pos] = st.Statements[idx]
	}
	if vote, ok := g.TwoTruthsGuesses[st.AuthorID][forPlayer]; ok {
		sv.MyVote = &vote
	}
	return sv
}
