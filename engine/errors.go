package engine

import "errors"

// Configuration errors.
var (
	ErrMissingGameMode = errors.New("game mode not specified")
	ErrUnknownGameMode = errors.New("unknown game mode")
)

// Conflict errors: the request is well formed but the document state forbids it.
var (
	ErrDuplicateName       = errors.New("player name already in use")
	ErrDuplicatePlayer     = errors.New("player has already joined")
	ErrAlreadyStarted      = errors.New("session has already started")
	ErrAlreadySubmitted    = errors.New("player has already submitted")
	ErrAlreadyGuessed      = errors.New("player has already guessed")
	ErrModeMismatch        = errors.New("session uses a different game mode")
	ErrWrongPhase          = errors.New("action not allowed in the current phase")
	ErrWrongMode           = errors.New("action not allowed in this game mode")
	ErrNotCurrentStatement = errors.New("statement is not on turn")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrIllegalTransition   = errors.New("illegal phase transition")
)

// Authorization errors.
var ErrNotHost = errors.New("only the host can do that")

// Input errors.
var (
	ErrInvalidName       = errors.New("player name must not be empty")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrInvalidPhrase     = errors.New("phrase must not be empty")
	ErrInvalidStatements = errors.New("all three statements are required")
	ErrIncompleteGuess   = errors.New("exactly one guess per phrase is required")
	ErrInvalidVote       = errors.New("vote must name statement 0, 1 or 2")
	ErrSelfVote          = errors.New("authors cannot vote on their own statements")
)
