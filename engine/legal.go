package engine

// GuessTargets returns, in display order, the phrases playerID has to
// attribute: every phrase written by someone else.
func (g *Game) GuessTargets(playerID string) []Phrase {
	var out []Phrase
	for _, ph := range g.ShuffledPhrases() {
		if ph.AuthorID != playerID {
			out = append(out, ph)
		}
	}
	return out
}

// CanSubmit reports whether playerID may submit in the current phase.
func (g *Game) CanSubmit(playerID string) bool {
	idx := g.PlayerByID(playerID)
	return g.Phase == PhaseSubmission && idx >= 0 && !g.Players[idx].HasSubmitted
}

// CanGuess reports whether playerID still owes guesses or a vote.
func (g *Game) CanGuess(playerID string) bool {
	idx := g.PlayerByID(playerID)
	if g.Phase != PhaseGuessing || idx < 0 {
		return false
	}
	if g.GameMode == ModeTwoTruthsOneLie {
		for _, id := range g.PendingVoters() {
			if id == playerID {
				return true
			}
		}
		return false
	}
	return !g.Players[idx].HasGuessed
}
