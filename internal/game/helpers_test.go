package game

import (
	"context"
	"testing"
	"time"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/AngelGarcia/Mistery/internal/anonymize"
	"github.com/AngelGarcia/Mistery/internal/notify"
	"github.com/AngelGarcia/Mistery/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Anonymizer ---

type MockAnonymizer struct {
	mock.Mock
}

func (m *MockAnonymizer) Anonymize(ctx context.Context, phrases []string) ([]string, error) {
	args := m.Called(ctx, phrases)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

type fixture struct {
	svc  *Service
	docs *store.MemoryDocuments
	feed *store.MemoryFeed
	sink *notify.Recorder
	hook *test.Hook
}

var fastRetry = store.RetryPolicy{MaxAttempts: 50, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newFixture(t *testing.T, anon anonymize.Anonymizer) *fixture {
	t.Helper()
	if anon == nil {
		anon = anonymize.Identity
	}
	feed := store.NewMemoryFeed()
	t.Cleanup(func() { feed.Close() })
	docs := store.NewMemoryDocuments(feed, fastRetry)
	log, hook := test.NewNullLogger()
	sink := &notify.Recorder{}
	return &fixture{
		svc:  NewService(docs, feed, anon, sink, log),
		docs: docs,
		feed: feed,
		sink: sink,
		hook: hook,
	}
}

func (f *fixture) join(t *testing.T, sessionID, name string, mode engine.GameMode) engine.Player {
	t.Helper()
	p, err := f.svc.CreateOrJoin(context.Background(), sessionID, name, mode)
	require.NoError(t, err)
	return p
}

func (f *fixture) game(t *testing.T, sessionID string) *engine.Game {
	t.Helper()
	g, _, err := f.svc.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return g
}

// put writes g directly, bypassing the service rules.
func (f *fixture) put(t *testing.T, g *engine.Game) {
	t.Helper()
	_, _, err := f.docs.RunTransaction(context.Background(), g.ID, func(tx store.Tx) error {
		tx.Set(g)
		return nil
	})
	require.NoError(t, err)
}

type updates struct {
	ch   chan Update
	errs chan error
	stop func()
}

func (f *fixture) subscribe(t *testing.T, sessionID string) *updates {
	t.Helper()
	u := &updates{ch: make(chan Update, 64), errs: make(chan error, 4)}
	stop, err := f.svc.Subscribe(context.Background(), sessionID,
		func(up Update) { u.ch <- up },
		func(err error) { u.errs <- err },
	)
	require.NoError(t, err)
	u.stop = stop
	t.Cleanup(stop)
	return u
}

func (u *updates) next(t *testing.T) Update {
	t.Helper()
	select {
	case up := <-u.ch:
		return up
	case err := <-u.errs:
		t.Fatalf("subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

// until skips updates until one satisfies ok.
func (u *updates) until(t *testing.T, ok func(Update) bool) Update {
	t.Helper()
	for {
		up := u.next(t)
		if ok(up) {
			return up
		}
	}
}

func inPhase(p engine.Phase) func(Update) bool {
	return func(u Update) bool { return u.Game != nil && u.Game.Phase == p }
}
