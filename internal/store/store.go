// Package store keeps session documents and broadcasts their committed
// changes.
//
// Documents are read and written only through transactions: a transaction
// reads the current document, lets the caller decide what to write, and
// commits only if no other writer got there first. Conflicting attempts are
// retried transparently; application errors returned by the callback abort
// the transaction without writing anything.
package store

import (
	"context"
	"errors"

	engine "github.com/AngelGarcia/Mistery/engine"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrConflict         = errors.New("concurrent modification")
	ErrRetriesExhausted = errors.New("too much contention, try again")
	ErrPermissionDenied = errors.New("missing or insufficient permissions")
	ErrClosed           = errors.New("store closed")
)

// Change is one committed state of a session document. Game is nil when the
// document was deleted. Revisions grow monotonically across all commits, so
// a higher revision always describes a later state.
type Change struct {
	SessionID string       `json:"sessionId"`
	Revision  int64        `json:"revision"`
	Game      *engine.Game `json:"game,omitempty"`
}

// Deleted reports whether the change removed the document.
func (c Change) Deleted() bool { return c.Game == nil }

// Tx is the view a transaction callback has of one document.
type Tx interface {
	// Get returns a private copy of the document as read by this attempt.
	Get() (*engine.Game, bool)
	// Set replaces the document when the transaction commits.
	Set(g *engine.Game)
	// Delete removes the document when the transaction commits.
	Delete()
}

// TxFunc decides what a transaction writes. It may run several times when
// the store retries, so it must not have side effects outside tx.
type TxFunc func(tx Tx) error

// Documents is a keyed document store with read-modify-write transactions.
type Documents interface {
	// Get returns the latest committed state, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Change, error)
	// RunTransaction applies fn atomically. written reports whether fn asked
	// for a write; when it did not, the returned change is the state read.
	RunTransaction(ctx context.Context, sessionID string, fn TxFunc) (c Change, written bool, err error)
}

// Feed fans committed changes out to subscribers.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(ctx context.Context, sessionID string) (Subscription, error)
}

// Subscription delivers changes of one session in revision order. Changes
// older than one already delivered are dropped.
type Subscription interface {
	Changes() <-chan Change
	// Close stops delivery and closes the Changes channel. It may be called
	// more than once.
	Close() error
}

// txn is the Tx handed to callbacks by every Documents implementation.
type txn struct {
	game    *engine.Game
	exists  bool
	dirty   bool
	deleted bool
}

func newTxn(current *engine.Game) *txn {
	return &txn{game: current.Clone(), exists: current != nil}
}

func (t *txn) Get() (*engine.Game, bool) {
	if !t.exists || t.deleted {
		return nil, false
	}
	return t.game.Clone(), true
}

func (t *txn) Set(g *engine.Game) {
	t.game = g.Clone()
	t.dirty = true
	t.deleted = false
}

func (t *txn) Delete() {
	t.game = nil
	t.dirty = true
	t.deleted = true
}
