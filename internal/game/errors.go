// internal/game/errors.go
package game

import (
	"context"
	"errors"
	"fmt"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/AngelGarcia/Mistery/internal/store"
)

// Kind groups failures by how a client should react to them.
type Kind int

const (
	KindUnavailable   Kind = iota // transient; retrying later may succeed
	KindConfiguration             // the request can never succeed as written
	KindConflict                  // the session state forbids the action
	KindNotFound                  // the session is gone; treat as cancelled
	KindPermission                // the caller lacks the rights for the action
	KindInvalid                   // malformed input
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindInvalid:
		return "invalid"
	default:
		return "unavailable"
	}
}

// ErrConfiguration marks configuration errors, e.g. a session created
// without a game mode.
var ErrConfiguration = errors.New("configuration error")

// ErrUnavailable is what callers see when the store gave up retrying.
var ErrUnavailable = errors.New("service unavailable, try again")

var errNoSession = errors.New("session id must not be empty")

// Error is returned by every Service operation.
type Error struct {
	Kind      Kind
	Op        string
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindConfiguration, []error{ErrConfiguration, engine.ErrMissingGameMode, engine.ErrUnknownGameMode}},
	{KindNotFound, []error{store.ErrNotFound}},
	{KindPermission, []error{store.ErrPermissionDenied, engine.ErrNotHost}},
	{KindConflict, []error{
		engine.ErrDuplicateName, engine.ErrDuplicatePlayer, engine.ErrAlreadyStarted,
		engine.ErrAlreadySubmitted, engine.ErrAlreadyGuessed, engine.ErrModeMismatch,
		engine.ErrWrongPhase, engine.ErrWrongMode, engine.ErrNotCurrentStatement,
		engine.ErrNotEnoughPlayers, engine.ErrIllegalTransition,
	}},
	{KindInvalid, []error{
		engine.ErrInvalidName, engine.ErrUnknownPlayer, engine.ErrInvalidPhrase,
		engine.ErrInvalidStatements, engine.ErrIncompleteGuess, engine.ErrInvalidVote,
		engine.ErrSelfVote, errNoSession,
	}},
	{KindUnavailable, []error{ErrUnavailable, store.ErrRetriesExhausted, store.ErrClosed, context.DeadlineExceeded, context.Canceled}},
}

// Classify returns the Kind of err. Unknown errors are KindUnavailable.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindUnavailable
}

// IsCancelled reports whether err means the session no longer exists.
func IsCancelled(err error) bool {
	return Classify(err) == KindNotFound
}

// wrap builds the Error returned for a failed operation. Configuration and
// retry exhaustion get their own sentinels so callers can match on them.
func wrap(op, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind := Classify(err)
	switch {
	case kind == KindConfiguration && !errors.Is(err, ErrConfiguration):
		err = fmt.Errorf("%w: %w", ErrConfiguration, err)
	case errors.Is(err, store.ErrRetriesExhausted):
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Error{Kind: kind, Op: op, SessionID: sessionID, Err: err}
}
