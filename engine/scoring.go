package engine

import "sort"

// ComputeScores returns the number of correct author attributions made by
// each player. Every player is present in the result, starting at zero.
// The result does not depend on the iteration order of guesses.
func ComputeScores(players []Player, phrases []Phrase, guesses map[string][]Guess) map[string]int {
	authors := make(map[string]string, len(phrases))
	for _, ph := range phrases {
		authors[ph.ID] = ph.AuthorID
	}

	scores := make(map[string]int, len(players))
	for _, p := range players {
		scores[p.ID] = 0
	}
	for guesser, list := range guesses {
		for _, gs := range list {
			if author, ok := authors[gs.PhraseID]; ok && author == gs.GuessedPlayerID {
				scores[guesser]++
			}
		}
	}
	return scores
}

// ComputeLieScores scores two-truths mode: a guesser earns a point for every
// lie spotted, an author earns a point for every guesser fooled.
func ComputeLieScores(g *Game) map[string]int {
	scores := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		scores[p.ID] = 0
	}
	for _, st := range g.Statements {
		for guesser, picked := range g.TwoTruthsGuesses[st.AuthorID] {
			if picked == st.LieIndex {
				scores[guesser]++
			} else {
				scores[st.AuthorID]++
			}
		}
	}
	return scores
}

// Standing is one row of the final leaderboard.
type Standing struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
	Winner   bool   `json:"winner"`
}

// Leaderboard orders players by descending score. The sort is stable, so
// tied players keep join order; they also share a rank. Winners are the
// players holding the top score, provided it is above zero.
func Leaderboard(players []Player, scores map[string]int) []Standing {
	out := make([]Standing, len(players))
	for i, p := range players {
		out[i] = Standing{PlayerID: p.ID, Name: p.Name, Score: scores[p.ID]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	if len(out) > 0 && out[0].Score > 0 {
		top := out[0].Score
		for i := range out {
			out[i].Winner = out[i].Score == top
		}
	}
	return out
}

// Results returns the leaderboard for the session's game mode.
func (g *Game) Results() []Standing {
	if g.GameMode == ModeTwoTruthsOneLie {
		return Leaderboard(g.Players, ComputeLieScores(g))
	}
	return Leaderboard(g.Players, ComputeScores(g.Players, g.Phrases, g.Guesses))
}
