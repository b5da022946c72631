package store

import (
	"context"
	"sync"

	engine "github.com/AngelGarcia/Mistery/engine"
)

// Op names the kind of access checked by an access rule.
type Op string

const (
	OpGet    Op = "get"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// AccessRule decides whether an operation on a session is allowed. Returning
// an error wrapping ErrPermissionDenied rejects it.
type AccessRule func(op Op, sessionID string) error

type memDoc struct {
	game     *engine.Game
	revision int64
}

// MemoryDocuments is an in-process Documents implementation with optimistic
// concurrency: callbacks run without holding the lock and the commit fails
// with ErrConflict when another writer committed in between.
type MemoryDocuments struct {
	mu       sync.Mutex
	docs     map[string]memDoc
	revision int64

	feed   *MemoryFeed
	retry  RetryPolicy
	access AccessRule

	// beforeCommit runs between the callback and the commit check.
	beforeCommit func(sessionID string)
}

// NewMemoryDocuments returns an empty store publishing to feed, which may be nil.
func NewMemoryDocuments(feed *MemoryFeed, retry RetryPolicy) *MemoryDocuments {
	return &MemoryDocuments{
		docs:  make(map[string]memDoc),
		feed:  feed,
		retry: retry,
	}
}

// SetAccessRule installs rule; nil allows everything.
func (m *MemoryDocuments) SetAccessRule(rule AccessRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = rule
}

func (m *MemoryDocuments) check(op Op, sessionID string) error {
	if m.access == nil {
		return nil
	}
	return m.access(op, sessionID)
}

func (m *MemoryDocuments) Get(ctx context.Context, sessionID string) (Change, error) {
	if err := ctx.Err(); err != nil {
		return Change{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpGet, sessionID); err != nil {
		return Change{}, err
	}
	d := m.docs[sessionID]
	if d.game == nil {
		return Change{}, ErrNotFound
	}
	return Change{SessionID: sessionID, Revision: d.revision, Game: d.game.Clone()}, nil
}

func (m *MemoryDocuments) RunTransaction(ctx context.Context, sessionID string, fn TxFunc) (Change, bool, error) {
	var (
		result  Change
		written bool
	)
	err := m.retry.run(ctx, func() error {
		var err error
		result, written, err = m.attempt(ctx, sessionID, fn)
		return err
	})
	return result, written, err
}

func (m *MemoryDocuments) attempt(ctx context.Context, sessionID string, fn TxFunc) (Change, bool, error) {
	if err := ctx.Err(); err != nil {
		return Change{}, false, err
	}

	m.mu.Lock()
	if err := m.check(OpGet, sessionID); err != nil {
		m.mu.Unlock()
		return Change{}, false, err
	}
	read := m.docs[sessionID]
	hook := m.beforeCommit
	m.mu.Unlock()

	tx := newTxn(read.game)
	if err := fn(tx); err != nil {
		return Change{}, false, err
	}
	if !tx.dirty {
		return Change{SessionID: sessionID, Revision: read.revision, Game: read.game.Clone()}, false, nil
	}
	if hook != nil {
		hook(sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	op := OpWrite
	if tx.deleted {
		op = OpDelete
	}
	if err := m.check(op, sessionID); err != nil {
		return Change{}, false, err
	}
	if m.docs[sessionID].revision != read.revision {
		return Change{}, false, ErrConflict
	}

	m.revision++
	c := Change{SessionID: sessionID, Revision: m.revision}
	if tx.deleted {
		// Keep the revision as a tombstone so a stale writer still conflicts.
		m.docs[sessionID] = memDoc{revision: m.revision}
	} else {
		m.docs[sessionID] = memDoc{game: tx.game.Clone(), revision: m.revision}
		c.Game = tx.game.Clone()
	}
	if m.feed != nil {
		m.feed.publish(c)
	}
	return c, true, nil
}

// MemoryFeed is an in-process Feed.
type MemoryFeed struct {
	mu     sync.Mutex
	subs   map[string]map[*queue]struct{}
	closed bool
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[*queue]struct{})}
}

func (f *MemoryFeed) Publish(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.publish(c)
	return nil
}

func (f *MemoryFeed) publish(c Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for q := range f.subs[c.SessionID] {
		q.push(cloneChange(c))
	}
}

func (f *MemoryFeed) Subscribe(ctx context.Context, sessionID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	var q *queue
	q = newQueue(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[sessionID], q)
		if len(f.subs[sessionID]) == 0 {
			delete(f.subs, sessionID)
		}
	})
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[*queue]struct{})
	}
	f.subs[sessionID][q] = struct{}{}
	return q, nil
}

// Subscribers returns the number of open subscriptions for sessionID.
func (f *MemoryFeed) Subscribers(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[sessionID])
}

// Close ends every subscription and rejects new ones.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	var all []*queue
	for _, set := range f.subs {
		for q := range set {
			all = append(all, q)
		}
	}
	f.closed = true
	f.mu.Unlock()

	for _, q := range all {
		q.Close()
	}
	return nil
}

func cloneChange(c Change) Change {
	c.Game = c.Game.Clone()
	return c
}
