package engine

import "strings"

// AddPlayer appends p to the lobby. Names are trimmed and must be unique
// within the session.
func (g *Game) AddPlayer(p Player) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrInvalidName
	}
	if g.PlayerByName(p.Name) >= 0 {
		return ErrDuplicateName
	}
	if g.PlayerByID(p.ID) >= 0 {
		return ErrDuplicatePlayer
	}
	if g.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	p.HasSubmitted = false
	p.HasGuessed = false
	g.Players = append(g.Players, p)
	return nil
}

// Start moves the session from the lobby to the submission phase.
func (g *Game) Start(byPlayerID string) error {
	if !g.IsHost(byPlayerID) {
		return ErrNotHost
	}
	if g.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	if len(g.Players) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	return g.transition(PhaseSubmission)
}

// AddPhrase appends an anonymized phrase and marks its author as submitted.
// Both changes belong to the same document write.
func (g *Game) AddPhrase(ph Phrase) error {
	idx, err := g.submitter(ModeWhoIsWho, ph.AuthorID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(ph.AnonymizedText) == "" {
		return ErrInvalidPhrase
	}
	g.Phrases = append(g.Phrases, ph)
	g.Players[idx].HasSubmitted = true
	return nil
}

// AddStatement appends an author's three statements. The last statement is
// always the lie.
func (g *Game) AddStatement(authorID string, statements [StatementsPerPlayer]string) error {
	idx, err := g.submitter(ModeTwoTruthsOneLie, authorID)
	if err != nil {
		return err
	}
	for i := range statements {
		statements[i] = strings.TrimSpace(statements[i])
		if statements[i] == "" {
			return ErrInvalidStatements
		}
	}
	g.Statements = append(g.Statements, Statement{
		AuthorID:   authorID,
		Statements: statements,
		LieIndex:   LieIndex,
	})
	g.Players[idx].HasSubmitted = true
	return nil
}

func (g *Game) submitter(mode GameMode, playerID string) (int, error) {
	if g.GameMode != mode {
		return -1, ErrWrongMode
	}
	if g.Phase != PhaseSubmission {
		return -1, ErrWrongPhase
	}
	idx := g.PlayerByID(playerID)
	if idx < 0 {
		return -1, ErrUnknownPlayer
	}
	if g.Players[idx].HasSubmitted {
		return -1, ErrAlreadySubmitted
	}
	return idx, nil
}

// RecordGuesses stores a player's full set of author attributions.
// Exactly one guess is required for every phrase the player did not write.
func (g *Game) RecordGuesses(playerID string, guesses []Guess) error {
	if g.GameMode != ModeWhoIsWho {
		return ErrWrongMode
	}
	if g.Phase != PhaseGuessing {
		return ErrWrongPhase
	}
	idx := g.PlayerByID(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	if g.Players[idx].HasGuessed {
		return ErrAlreadyGuessed
	}

	pending := make(map[string]bool)
	for _, ph := range g.Phrases {
		if ph.AuthorID != playerID {
			pending[ph.ID] = true
		}
	}
	if len(guesses) != len(pending) {
		return ErrIncompleteGuess
	}
	for _, gs := range guesses {
		if !pending[gs.PhraseID] {
			return ErrIncompleteGuess
		}
		if g.PlayerByID(gs.GuessedPlayerID) < 0 {
			return ErrUnknownPlayer
		}
		delete(pending, gs.PhraseID)
	}

	if g.Guesses == nil {
		g.Guesses = make(map[string][]Guess)
	}
	g.Guesses[playerID] = append([]Guess(nil), guesses...)
	g.Players[idx].HasGuessed = true
	return nil
}

// RecordLieVote stores guesserID's pick for the lie in authorID's statements.
// The first vote is final: repeating a vote reports recorded=false and leaves
// the document untouched.
func (g *Game) RecordLieVote(guesserID, authorID string, index int) (recorded bool, err error) {
	if g.GameMode != ModeTwoTruthsOneLie {
		return false, ErrWrongMode
	}
	if g.PlayerByID(guesserID) < 0 || g.PlayerByID(authorID) < 0 {
		return false, ErrUnknownPlayer
	}
	if _, voted := g.TwoTruthsGuesses[authorID][guesserID]; voted {
		return false, nil
	}
	if g.Phase != PhaseGuessing {
		return false, ErrWrongPhase
	}
	if index < 0 || index >= StatementsPerPlayer {
		return false, ErrInvalidVote
	}
	if guesserID == authorID {
		return false, ErrSelfVote
	}
	current, ok := g.CurrentStatement()
	if !ok || current.AuthorID != authorID {
		return false, ErrNotCurrentStatement
	}

	if g.TwoTruthsGuesses == nil {
		g.TwoTruthsGuesses = make(map[string]map[string]int)
	}
	votes := g.TwoTruthsGuesses[authorID]
	if votes == nil {
		votes = make(map[string]int)
		g.TwoTruthsGuesses[authorID] = votes
	}
	votes[guesserID] = index
	return true, nil
}
