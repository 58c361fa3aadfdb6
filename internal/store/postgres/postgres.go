// Package postgres implements docgate.Store on PostgreSQL with pgx.
//
// Every mutation the engine relies on for concurrency safety is a single
// statement or a transaction with a row lock:
//
//   - ConsumeCredit decrements only while credits > 0.
//   - ResetDailyCredits compares last_credit_reset before writing.
//   - ConsumeBackupCode deletes the code row and checks the affected count.
//   - ReviewCreditRequest locks the request row and credits the user in the
//     same transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/internal/store/postgres/migrations"
)

// Store is a docgate.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ docgate.Store = (*Store)(nil)

// New connects to databaseURL and pings it.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	const op = "postgres.New"

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse database url: %w", op, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgres.Migrate"

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// mapPgErr translates constraint violations. notFound is returned for a
// missing row, a foreign key miss or a malformed id.
func mapPgErr(op string, err error, notFound error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return docgate.ErrAccountExists
		case "23503", "22P02":
			if notFound != nil {
				return notFound
			}
		}
		return fmt.Errorf("%s: db_error %s: %s", op, pgErr.Code, pgErr.Message)
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne maps a zero-row update to ErrUserNotFound.
func expectOne(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	if tag.RowsAffected() == 0 {
		return docgate.ErrUserNotFound
	}
	return nil
}
