package game

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/AngelGarcia/Mistery/internal/anonymize"
	"github.com/AngelGarcia/Mistery/internal/notify"
	"github.com/AngelGarcia/Mistery/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCreateOrJoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	t.Run("MissingMode", func(t *testing.T) {
		_, err := f.svc.CreateOrJoin(ctx, "nomode", "Ana", "")
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.ErrorIs(t, err, engine.ErrMissingGameMode)
		assert.Equal(t, KindConfiguration, Classify(err))

		_, _, err = f.svc.Get(ctx, "nomode")
		assert.True(t, IsCancelled(err), "nothing was created")
	})

	t.Run("EmptySessionID", func(t *testing.T) {
		_, err := f.svc.CreateOrJoin(ctx, "", "Ana", engine.ModeWhoIsWho)
		assert.Equal(t, KindInvalid, Classify(err))
	})

	host := f.join(t, "abc", " Ana ", engine.ModeWhoIsWho)
	assert.Equal(t, "Ana", host.Name)

	t.Run("FirstJoinerIsHost", func(t *testing.T) {
		g := f.game(t, "abc")
		assert.Equal(t, host.ID, g.HostID)
		assert.Equal(t, engine.PhaseLobby, g.Phase)
		assert.Equal(t, engine.ModeWhoIsWho, g.GameMode)
	})

	t.Run("JoinWithoutMode", func(t *testing.T) {
		ben := f.join(t, "abc", "Ben", "")
		g := f.game(t, "abc")
		assert.Equal(t, host.ID, g.HostID, "host never changes")
		assert.Equal(t, []string{host.ID, ben.ID}, []string{g.Players[0].ID, g.Players[1].ID})
	})

	t.Run("ModeMismatch", func(t *testing.T) {
		_, err := f.svc.CreateOrJoin(ctx, "abc", "Cleo", engine.ModeTwoTruthsOneLie)
		assert.ErrorIs(t, err, engine.ErrModeMismatch)
		assert.Equal(t, KindConflict, Classify(err))
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := f.svc.CreateOrJoin(ctx, "abc", "   ", "")
		assert.ErrorIs(t, err, engine.ErrInvalidName)
		assert.Equal(t, KindInvalid, Classify(err))
	})
}

// Scenario B: a duplicate name is a conflict and leaves players unchanged.
func TestDuplicateNameRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "abc", "Ana", engine.ModeWhoIsWho)
	f.join(t, "abc", "Ben", "")
	before := f.game(t, "abc")

	_, err := f.svc.CreateOrJoin(ctx, "abc", "Ben", "")
	require.ErrorIs(t, err, engine.ErrDuplicateName)
	assert.Equal(t, KindConflict, Classify(err))

	after := f.game(t, "abc")
	if diff := cmp.Diff(before.Players, after.Players); diff != "" {
		t.Errorf("players changed (-before +after):\n%s", diff)
	}
}

func TestConcurrentJoinsKeepNamesUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "abc", "Host", engine.ModeWhoIsWho)

	var ok, dup atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("player-%d", i%5)
		eg.Go(func() error {
			_, err := f.svc.CreateOrJoin(ctx, "abc", name, "")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, engine.ErrDuplicateName):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(5), dup.Load())

	g := f.game(t, "abc")
	require.Len(t, g.Players, 6)
	seen := map[string]bool{}
	for _, p := range g.Players {
		assert.False(t, seen[p.Name], "duplicate name %q", p.Name)
		seen[p.Name] = true
	}
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	host := f.join(t, "abc", "Ana", engine.ModeWhoIsWho)

	err := f.svc.StartSession(ctx, "abc", host.ID)
	assert.ErrorIs(t, err, engine.ErrNotEnoughPlayers)

	ben := f.join(t, "abc", "Ben", "")

	isHost, err := f.svc.IsHost(ctx, "abc", ben.ID)
	require.NoError(t, err)
	assert.False(t, isHost)

	err = f.svc.StartSession(ctx, "abc", ben.ID)
	assert.ErrorIs(t, err, engine.ErrNotHost)
	assert.Equal(t, KindPermission, Classify(err))
	assert.Empty(t, f.sink.Notices(), "host checks are not store permission failures")

	require.NoError(t, f.svc.StartSession(ctx, "abc", host.ID))
	assert.Equal(t, engine.PhaseSubmission, f.game(t, "abc").Phase)

	_, err = f.svc.CreateOrJoin(ctx, "abc", "Late", "")
	assert.ErrorIs(t, err, engine.ErrAlreadyStarted)

	err = f.svc.StartSession(ctx, "abc", host.ID)
	assert.ErrorIs(t, err, engine.ErrAlreadyStarted)
}

// Scenario A.
func TestWhoIsWhoEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	p1 := f.join(t, "abc", "P1", engine.ModeWhoIsWho)
	p2 := f.join(t, "abc", "P2", "")
	require.NoError(t, f.svc.StartSession(ctx, "abc", p1.ID))

	require.NoError(t, f.svc.SubmitPhrase(ctx, "abc", p1.ID, "I love hiking"))
	assert.Equal(t, engine.PhaseSubmission, f.game(t, "abc").Phase)

	err := f.svc.SubmitPhrase(ctx, "abc", p1.ID, "again")
	assert.ErrorIs(t, err, engine.ErrAlreadySubmitted)

	require.NoError(t, f.svc.SubmitPhrase(ctx, "abc", p2.ID, "My cat is orange"))
	g := f.game(t, "abc")
	require.Equal(t, engine.PhaseGuessing, g.Phase)
	require.Len(t, g.Phrases, 2)

	byAuthor := map[string]string{}
	for _, ph := range g.Phrases {
		byAuthor[ph.AuthorID] = ph.ID
	}

	err = f.svc.SubmitGuesses(ctx, "abc", p1.ID, nil)
	assert.ErrorIs(t, err, engine.ErrIncompleteGuess)

	require.NoError(t, f.svc.SubmitGuesses(ctx, "abc", p1.ID, []engine.Guess{
		{PhraseID: byAuthor[p2.ID], GuessedPlayerID: p2.ID},
	}))
	require.NoError(t, f.svc.SubmitGuesses(ctx, "abc", p2.ID, []engine.Guess{
		{PhraseID: byAuthor[p1.ID], GuessedPlayerID: p2.ID},
	}))

	g = f.game(t, "abc")
	assert.Equal(t, engine.PhaseResults, g.Phase)
	scores := engine.ComputeScores(g.Players, g.Phrases, g.Guesses)
	assert.Equal(t, map[string]int{p1.ID: 1, p2.ID: 0}, scores)

	results := g.Results()
	require.Len(t, results, 2)
	assert.Equal(t, p1.ID, results[0].PlayerID)
	assert.True(t, results[0].Winner)
	assert.False(t, results[1].Winner)
}

func TestSubmitPhraseAnonymizes(t *testing.T) {
	ctx := context.Background()

	t.Run("Anonymized", func(t *testing.T) {
		anon := new(MockAnonymizer)
		anon.On("Anonymize", mock.Anything, []string{"I love hiking"}).Return([]string{"Someone enjoys trails"}, nil).Once()
		f := newFixture(t, anon)
		p1 := f.join(t, "abc", "P1", engine.ModeWhoIsWho)
		f.join(t, "abc", "P2", "")
		require.NoError(t, f.svc.StartSession(ctx, "abc", p1.ID))

		require.NoError(t, f.svc.SubmitPhrase(ctx, "abc", p1.ID, "  I love hiking "))
		g := f.game(t, "abc")
		require.Len(t, g.Phrases, 1)
		assert.Equal(t, "Someone enjoys trails", g.Phrases[0].AnonymizedText)
		assert.Equal(t, p1.ID, g.Phrases[0].AuthorID)
		assert.True(t, g.Players[0].HasSubmitted)
		anon.AssertExpectations(t)
	})

	t.Run("FallbackOnFailure", func(t *testing.T) {
		anon := new(MockAnonymizer)
		anon.On("Anonymize", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))
		f := newFixture(t, anon)
		p1 := f.join(t, "abc", "P1", engine.ModeWhoIsWho)
		f.join(t, "abc", "P2", "")
		require.NoError(t, f.svc.StartSession(ctx, "abc", p1.ID))

		require.NoError(t, f.svc.SubmitPhrase(ctx, "abc", p1.ID, "I love hiking"))
		assert.Equal(t, "I love hiking", f.game(t, "abc").Phrases[0].AnonymizedText)
	})

	t.Run("BlankAnonymizerOutput", func(t *testing.T) {
		anon := new(MockAnonymizer)
		anon.On("Anonymize", mock.Anything, []string{"I love hiking"}).Return([]string{"   "}, nil)
		f := newFixture(t, anon)
		p1 := f.join(t, "abc", "P1", engine.ModeWhoIsWho)
		f.join(t, "abc", "P2", "")
		require.NoError(t, f.svc.StartSession(ctx, "abc", p1.ID))

		require.NoError(t, f.svc.SubmitPhrase(ctx, "abc", p1.ID, "I love hiking"))
		g := f.game(t, "abc")
		require.Len(t, g.Phrases, 1)
		assert.Equal(t, "I love hiking", g.Phrases[0].AnonymizedText)
		assert.True(t, g.Players[0].HasSubmitted)
	})

	t.Run("RejectedBeforeAnonymizing", func(t *testing.T) {
		anon := new(MockAnonymizer)
		f := newFixture(t, anon)
		p1 := f.join(t, "abc", "P1", engine.ModeWhoIsWho)
		f.join(t, "abc", "P2", "")

		err := f.svc.SubmitPhrase(ctx, "abc", p1.ID, "too early")
		assert.ErrorIs(t, err, engine.ErrWrongPhase)
		anon.AssertNotCalled(t, "Anonymize", mock.Anything, mock.Anything)
	})
}

// Scenario D.
func TestTwoTruthsEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	author := f.join(t, "ttl", "Ana", engine.ModeTwoTruthsOneLie)
	ben := f.join(t, "ttl", "Ben", "")
	cleo := f.join(t, "ttl", "Cleo", "")
	require.NoError(t, f.svc.StartSession(ctx, "ttl", author.ID))

	err := f.svc.SubmitStatements(ctx, "ttl", author.ID, [3]string{"I surf", "", "I flew a plane"})
	assert.ErrorIs(t, err, engine.ErrInvalidStatements)

	require.NoError(t, f.svc.SubmitStatements(ctx, "ttl", author.ID, [3]string{"I surf", "I knit", "I flew a plane"}))
	require.NoError(t, f.svc.SubmitStatements(ctx, "ttl", ben.ID, [3]string{"a", "b", "c"}))
	require.NoError(t, f.svc.SubmitStatements(ctx, "ttl", cleo.ID, [3]string{"d", "e", "f"}))

	g := f.game(t, "ttl")
	require.Equal(t, engine.PhaseGuessing, g.Phase)
	assert.Equal(t, engine.LieIndex, g.Statements[0].LieIndex)
	assert.Equal(t, author.ID, g.Statements[0].AuthorID)

	_, err = f.svc.SubmitLieVote(ctx, "ttl", author.ID, author.ID, 1)
	assert.ErrorIs(t, err, engine.ErrSelfVote)
	_, err = f.svc.SubmitLieVote(ctx, "ttl", ben.ID, cleo.ID, 1)
	assert.ErrorIs(t, err, engine.ErrNotCurrentStatement)
	_, err = f.svc.SubmitLieVote(ctx, "ttl", ben.ID, author.ID, 3)
	assert.ErrorIs(t, err, engine.ErrInvalidVote)

	recorded, err := f.svc.SubmitLieVote(ctx, "ttl", ben.ID, author.ID, 2)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = f.svc.SubmitLieVote(ctx, "ttl", ben.ID, author.ID, 0)
	require.NoError(t, err, "repeat votes are accepted")
	assert.False(t, recorded)

	recorded, err = f.svc.SubmitLieVote(ctx, "ttl", cleo.ID, author.ID, 1)
	require.NoError(t, err)
	assert.True(t, recorded)

	g = f.game(t, "ttl")
	votes := g.TwoTruthsGuesses[author.ID]
	assert.Equal(t, map[string]int{ben.ID: 2, cleo.ID: 1}, votes, "first vote is final")
	assert.Equal(t, 1, g.CurrentStatementIndex)

	for _, v := range []struct{ guesser, author string }{
		{author.ID, ben.ID}, {cleo.ID, ben.ID},
		{author.ID, cleo.ID}, {ben.ID, cleo.ID},
	} {
		_, err := f.svc.SubmitLieVote(ctx, "ttl", v.guesser, v.author, 2)
		require.NoError(t, err)
	}

	g = f.game(t, "ttl")
	assert.Equal(t, engine.PhaseResults, g.Phase)
	assert.Equal(t, map[string]int{author.ID: 3, ben.ID: 2, cleo.ID: 1}, engine.ComputeLieScores(g))
}

func TestSubmissionNeedsCountAndFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	g, err := engine.NewGame("race", engine.ModeWhoIsWho, engine.Player{ID: "p1", Name: "A"})
	require.NoError(t, err)
	g.Players = append(g.Players, engine.Player{ID: "p2", Name: "B"}, engine.Player{ID: "p3", Name: "C"})
	g.Phase = engine.PhaseSubmission
	for i := range g.Players {
		g.Players[i].HasSubmitted = true
	}
	g.Phrases = []engine.Phrase{{ID: "ph1", AnonymizedText: "x", AuthorID: "p1"}, {ID: "ph2", AnonymizedText: "y", AuthorID: "p2"}}
	f.put(t, g)

	advanced, err := f.svc.AdvancePhase(ctx, "race")
	require.NoError(t, err)
	assert.False(t, advanced, "three flags but two phrases must not advance")
	assert.Equal(t, engine.PhaseSubmission, f.game(t, "race").Phase)
}

func TestConcurrentAdvanceSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	g, err := engine.NewGame("abc", engine.ModeWhoIsWho, engine.Player{ID: "p1", Name: "A"})
	require.NoError(t, err)
	g.Players = append(g.Players, engine.Player{ID: "p2", Name: "B"})
	g.Phase = engine.PhaseSubmission
	g.Players[0].HasSubmitted = true
	g.Players[1].HasSubmitted = true
	g.Phrases = []engine.Phrase{{ID: "ph1", AnonymizedText: "x", AuthorID: "p1"}, {ID: "ph2", AnonymizedText: "y", AuthorID: "p2"}}
	f.put(t, g)
	sub := f.subscribe(t, "abc")
	sub.until(t, inPhase(engine.PhaseSubmission))

	var advanced atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			ok, err := f.svc.AdvancePhase(ctx, "abc")
			if ok {
				advanced.Add(1)
			}
			return err
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(1), advanced.Load())

	up := sub.next(t)
	assert.Equal(t, engine.PhaseGuessing, up.Game.Phase)
	assert.Len(t, up.Game.Phrases, 2)
	assert.Contains(t, eventTypes(up), EventGuessingStarted)

	select {
	case extra := <-sub.ch:
		t.Fatalf("unexpected second transition at revision %d", extra.Revision)
	default:
	}
}

// Scenario C.
func TestCancelSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	host := f.join(t, "abc", "Ana", engine.ModeWhoIsWho)
	ben := f.join(t, "abc", "Ben", "")

	sub := f.subscribe(t, "abc")
	first := sub.next(t)
	require.False(t, first.Cancelled)
	assert.Empty(t, first.Events)

	err := f.svc.CancelSession(ctx, "abc", ben.ID)
	assert.ErrorIs(t, err, engine.ErrNotHost)

	require.NoError(t, f.svc.CancelSession(ctx, "abc", host.ID))
	up := sub.next(t)
	assert.True(t, up.Cancelled)
	assert.Nil(t, up.Game)
	assert.Equal(t, []GameEventType{EventSessionCancelled}, eventTypes(up))

	_, _, err = f.svc.Get(ctx, "abc")
	assert.True(t, IsCancelled(err))
	err = f.svc.CancelSession(ctx, "abc", host.ID)
	assert.Equal(t, KindNotFound, Classify(err))
}

func TestSubscribeMissingSessionIsCancellation(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.subscribe(t, "ghost")
	up := sub.next(t)
	assert.True(t, up.Cancelled)
}

func TestSubscribeDeliversInRevisionOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "abc", "Host", engine.ModeWhoIsWho)
	sub := f.subscribe(t, "abc")
	first := sub.next(t)

	var eg errgroup.Group
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("p%d", i)
		eg.Go(func() error {
			_, err := f.svc.CreateOrJoin(ctx, "abc", name, "")
			return err
		})
	}
	require.NoError(t, eg.Wait())

	last := first.Revision
	for {
		up := sub.next(t)
		assert.Greater(t, up.Revision, last)
		last = up.Revision
		assert.Contains(t, eventTypes(up), EventPlayerJoined)
		if len(up.Game.Players) == 7 {
			break
		}
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, "abc", "Host", engine.ModeWhoIsWho)
	sub := f.subscribe(t, "abc")
	sub.next(t)
	require.Equal(t, 1, f.feed.Subscribers("abc"))

	sub.stop()
	sub.stop()
	assert.Eventually(t, func() bool { return f.feed.Subscribers("abc") == 0 }, time.Second, 5*time.Millisecond)
}

func TestPermissionDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "abc", "Host", engine.ModeWhoIsWho)
	f.docs.SetAccessRule(func(op store.Op, sessionID string) error {
		if sessionID == "abc" {
			return fmt.Errorf("%w: %s on %s", store.ErrPermissionDenied, op, sessionID)
		}
		return nil
	})

	t.Run("Operation", func(t *testing.T) {
		_, err := f.svc.CreateOrJoin(ctx, "abc", "Ben", "")
		assert.ErrorIs(t, err, store.ErrPermissionDenied)
		assert.Equal(t, KindPermission, Classify(err))
		assert.False(t, IsCancelled(err))

		notices := f.sink.Notices()
		require.Len(t, notices, 1)
		assert.Equal(t, notify.LevelError, notices[0].Level)
	})

	t.Run("Subscription", func(t *testing.T) {
		errs := make(chan error, 1)
		stop, err := f.svc.Subscribe(ctx, "abc",
			func(u Update) { t.Errorf("unexpected update %+v", u) },
			func(err error) { errs <- err },
		)
		require.NoError(t, err)
		defer stop()

		select {
		case err := <-errs:
			assert.Equal(t, KindPermission, Classify(err))
		case <-time.After(2 * time.Second):
			t.Fatal("no error delivered")
		}
	})

	t.Run("StrictSinkPanics", func(t *testing.T) {
		log, _ := test.NewNullLogger()
		svc := NewService(f.docs, f.feed, anonymize.Identity, notify.Strict{}, log)
		assert.Panics(t, func() { _, _ = svc.IsHost(ctx, "abc", "x") })
	})
}

func TestRetriesExhaustedIsUnavailable(t *testing.T) {
	feed := store.NewMemoryFeed()
	defer feed.Close()
	docs := store.NewMemoryDocuments(feed, store.RetryPolicy{MaxAttempts: 1})
	log, _ := test.NewNullLogger()
	svc := NewService(conflicting{docs}, feed, anonymize.Identity, &notify.Recorder{}, log)

	_, err := svc.CreateOrJoin(context.Background(), "abc", "Ana", engine.ModeWhoIsWho)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, store.ErrRetriesExhausted)
	assert.Equal(t, KindUnavailable, Classify(err))
}

// conflicting fails every transaction as if another writer always won.
type conflicting struct {
	store.Documents
}

func (conflicting) RunTransaction(context.Context, string, store.TxFunc) (store.Change, bool, error) {
	return store.Change{}, false, fmt.Errorf("%w: %w", store.ErrRetriesExhausted, store.ErrConflict)
}

func eventTypes(u Update) []GameEventType {
	out := make([]GameEventType, len(u.Events))
	for i, e := range u.Events {
		out[i] = e.Type
	}
	return out
}
