package engine

import (
	"fmt"
	"slices"
)

var transitions = map[Phase][]Phase{
	PhaseLobby:      {PhaseSubmission},
	PhaseSubmission: {PhaseGuessing},
	PhaseGuessing:   {PhaseResults},
}

// CanTransitionTo reports whether the lifecycle allows moving from p to target.
// Results is terminal; a finished session ends by deletion.
func (p Phase) CanTransitionTo(target Phase) bool {
	return slices.Contains(transitions[p], target)
}

func (g *Game) transition(to Phase) error {
	if !g.Phase.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, g.Phase, to)
	}
	g.Phase = to
	return nil
}

// SubmissionComplete reports whether every player has submitted. The flags
// alone are not enough: the number of stored submissions must also equal the
// number of players.
func (g *Game) SubmissionComplete() bool {
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if !p.HasSubmitted {
			return false
		}
	}
	return g.SubmittedCount() == len(g.Players)
}

// CurrentStatement returns the statement on turn in two-truths mode.
func (g *Game) CurrentStatement() (Statement, bool) {
	if g.GameMode != ModeTwoTruthsOneLie {
		return Statement{}, false
	}
	i := g.CurrentStatementIndex
	if i < 0 || i >= len(g.Statements) {
		return Statement{}, false
	}
	return g.Statements[i], true
}

// PendingVoters lists, in join order, the players who still have to vote on
// the statement on turn.
func (g *Game) PendingVoters() []string {
	current, ok := g.CurrentStatement()
	if !ok {
		return nil
	}
	votes := g.TwoTruthsGuesses[current.AuthorID]
	var pending []string
	for _, p := range g.Players {
		if p.ID == current.AuthorID {
			continue
		}
		if _, voted := votes[p.ID]; !voted {
			pending = append(pending, p.ID)
		}
	}
	return pending
}

// GuessingComplete reports whether the guessing phase is over.
func (g *Game) GuessingComplete() bool {
	if g.GameMode == ModeTwoTruthsOneLie {
		return g.CurrentStatementIndex >= len(g.Statements)
	}
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if !p.HasGuessed {
			return false
		}
	}
	return true
}

// AdvanceDue reports whether Advance would change the document.
func (g *Game) AdvanceDue() bool {
	return g.Clone().Advance()
}

// Advance applies every automatic transition the document currently
// satisfies and reports whether anything changed. It is safe to call any
// number of times: once the document has settled it is a no-op.
func (g *Game) Advance() bool {
	changed := false
	for {
		switch {
		case g.Phase == PhaseSubmission && g.SubmissionComplete():
			g.Phase = PhaseGuessing
			g.CurrentStatementIndex = 0
		case g.Phase == PhaseGuessing && g.GameMode == ModeTwoTruthsOneLie && g.currentVotesComplete():
			g.CurrentStatementIndex++
		case g.Phase == PhaseGuessing && g.GuessingComplete():
			g.Phase = PhaseResults
		default:
			return changed
		}
		changed = true
	}
}

func (g *Game) currentVotesComplete() bool {
	if _, ok := g.CurrentStatement(); !ok {
		return false
	}
	return len(g.PendingVoters()) == 0
}
