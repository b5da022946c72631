package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// PostgresDocuments stores each session as a JSONB row. Transactions lock the
// row with SELECT ... FOR UPDATE under serializable isolation, so concurrent
// writers either queue behind the lock or fail with a serialization error
// that is retried. A per-session advisory lock additionally orders commits
// with their feed publications.
type PostgresDocuments struct {
	pool  *pgxpool.Pool
	feed  Feed
	retry RetryPolicy
	log   logrus.FieldLogger
}

// NewPostgresDocuments connects to url. Committed changes are published to
// feed, which may be nil.
func NewPostgresDocuments(ctx context.Context, url string, feed Feed, retry RetryPolicy, log logrus.FieldLogger) (*PostgresDocuments, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresDocuments{pool: pool, feed: feed, retry: retry, log: log}, nil
}

// Close releases the connection pool.
func (p *PostgresDocuments) Close() {
	p.pool.Close()
}

func (p *PostgresDocuments) Get(ctx context.Context, sessionID string) (Change, error) {
	var (
		raw []byte
		rev int64
	)
	err := p.pool.QueryRow(ctx, `SELECT doc, revision FROM games WHERE id = $1`, sessionID).Scan(&raw, &rev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Change{}, ErrNotFound
		}
		return Change{}, classifyPgError(err)
	}
	g, err := decodeGame(raw)
	if err != nil {
		return Change{}, err
	}
	return Change{SessionID: sessionID, Revision: rev, Game: g}, nil
}

// sessionLockClass namespaces the per-session advisory locks.
const sessionLockClass int32 = 0x4d59

// RunTransaction holds a per-session advisory lock from before the read
// until the committed change has been published. Writers of one session,
// in this process or any other, therefore publish in commit order.
func (p *PostgresDocuments) RunTransaction(ctx context.Context, sessionID string, fn TxFunc) (Change, bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return Change{}, false, classifyPgError(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1, hashtext($2))`, sessionLockClass, sessionID); err != nil {
		return Change{}, false, classifyPgError(err)
	}
	defer func() {
		_, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1, hashtext($2))`, sessionLockClass, sessionID)
		if err != nil {
			// The lock belongs to the connection; dropping it frees the lock.
			p.log.WithError(err).WithField("session", sessionID).Warn("release session lock")
			conn.Conn().Close(context.Background())
		}
	}()

	var (
		result  Change
		written bool
	)
	err = p.retry.run(ctx, func() error {
		var err error
		result, written, err = p.attempt(ctx, conn, sessionID, fn)
		return err
	})
	if err != nil {
		return Change{}, false, err
	}

	if written && p.feed != nil {
		if err := p.feed.Publish(ctx, result); err != nil {
			p.log.WithError(err).WithField("session", sessionID).Warn("publish committed change")
		}
	}
	return result, written, nil
}

func (p *PostgresDocuments) attempt(ctx context.Context, conn *pgxpool.Conn, sessionID string, fn TxFunc) (Change, bool, error) {
	var (
		result  Change
		written bool
	)
	err := pgx.BeginTxFunc(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var (
			raw     []byte
			rev     int64
			current *engine.Game
		)
		err := tx.QueryRow(ctx, `SELECT doc, revision FROM games WHERE id = $1 FOR UPDATE`, sessionID).Scan(&raw, &rev)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			if current, err = decodeGame(raw); err != nil {
				return err
			}
		}

		t := newTxn(current)
		if err := fn(t); err != nil {
			return err
		}
		if !t.dirty {
			result = Change{SessionID: sessionID, Revision: rev, Game: current}
			return nil
		}

		var next int64
		if err := tx.QueryRow(ctx, `SELECT nextval('game_revisions')`).Scan(&next); err != nil {
			return err
		}
		result = Change{SessionID: sessionID, Revision: next}
		written = true

		switch {
		case t.deleted:
			if current != nil {
				_, err = tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, sessionID)
			}
			return err
		case current == nil:
			doc, err := json.Marshal(t.game)
			if err != nil {
				return err
			}
			// A concurrent creator makes this fail with unique_violation,
			// which is retried against the now existing row.
			_, err = tx.Exec(ctx, `INSERT INTO games (id, doc, revision) VALUES ($1, $2, $3)`, sessionID, doc, next)
			result.Game = t.game
			return err
		default:
			doc, err := json.Marshal(t.game)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `UPDATE games SET doc = $2, revision = $3, updated_at = now() WHERE id = $1`, sessionID, doc, next)
			result.Game = t.game
			return err
		}
	})
	if err != nil {
		return Change{}, false, classifyPgError(err)
	}
	return result, written, nil
}

// classifyPgError maps retryable and permission SQLSTATEs onto the store's
// sentinel errors. Anything else, including callback errors, passes through.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505": // serialization_failure, deadlock_detected, unique_violation
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case "42501": // insufficient_privilege
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}

func decodeGame(raw []byte) (*engine.Game, error) {
	var g engine.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode game document: %w", err)
	}
	return &g, nil
}
