package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/docgate"
)

const userColumns = `id::text, email, username, password_hash, role, credits, last_credit_reset, total_scans,
	verified, verification_token_hash, verification_token_expiry, reset_token_hash, reset_token_expiry,
	failed_login_count, last_failed_login, locked_until, two_factor_enabled, two_factor_secret, created_at`

func scanUser(row pgx.Row) (*docgate.User, error) {
	var (
		u                       docgate.User
		verifyExp, resetExp     *time.Time
		lastFailed, lockedUntil *time.Time
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.Credits, &u.LastCreditReset, &u.TotalScans,
		&u.Verified, &u.VerificationTokenHash, &verifyExp, &u.ResetTokenHash, &resetExp,
		&u.Lockout.FailedCount, &lastFailed, &lockedUntil, &u.TwoFactorEnabled, &u.TwoFactorSecret, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.VerificationTokenExpiry = deref(verifyExp)
	u.ResetTokenExpiry = deref(resetExp)
	u.Lockout.LastAttemptAt = deref(lastFailed)
	u.Lockout.LockedUntil = deref(lockedUntil)
	return &u, nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Store) CreateUser(ctx context.Context, u *docgate.User) error {
	const op = "postgres.CreateUser"

	_, err := s.pool.Exec(ctx, `
		insert into users (id, email, username, password_hash, role, credits, last_credit_reset, verified, created_at)
		values ($1::uuid, lower($2), $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), u.Credits, u.LastCreditReset, u.Verified, u.CreatedAt)
	if err != nil {
		return mapPgErr(op, err, nil)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*docgate.User, error) {
	const op = "postgres.GetUserByID"

	u, err := scanUser(s.pool.QueryRow(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return nil, mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*docgate.User, error) {
	const op = "postgres.GetUserByEmail"

	u, err := scanUser(s.pool.QueryRow(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`, email))
	if err != nil {
		return nil, mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]docgate.User, error) {
	const op = "postgres.ListUsers"

	rows, err := s.pool.Query(ctx, `select `+userColumns+` from users order by created_at`)
	if err != nil {
		return nil, mapPgErr(op, err, nil)
	}
	defer rows.Close()

	var out []docgate.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapPgErr(op, err, nil)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(op, err, nil)
	}
	return out, nil
}

func (s *Store) SetVerificationToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		update users set verification_token_hash = $2, verification_token_expiry = $3 where id = $1
	`, userID, tokenHash, expires)
	return expectOne("postgres.SetVerificationToken", tag, err)
}

func (s *Store) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	const op = "postgres.ConsumeVerificationToken"
	if tokenHash == "" {
		return "", docgate.ErrVerificationInvalid
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		update users
		set verified = true, verification_token_hash = '', verification_token_expiry = null
		where verification_token_hash = $1 and verification_token_expiry > $2
		returning id::text
	`, tokenHash, now).Scan(&id)
	if err != nil {
		return "", mapPgErr(op, err, docgate.ErrVerificationInvalid)
	}
	return id, nil
}

func (s *Store) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		update users set reset_token_hash = $2, reset_token_expiry = $3 where id = $1
	`, userID, tokenHash, expires)
	return expectOne("postgres.SetResetToken", tag, err)
}

func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	const op = "postgres.ConsumeResetToken"
	if tokenHash == "" {
		return "", docgate.ErrResetInvalid
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		update users
		set password_hash = $3, reset_token_hash = '', reset_token_expiry = null,
		    failed_login_count = 0, last_failed_login = null, locked_until = null
		where reset_token_hash = $1 and reset_token_expiry > $2
		returning id::text
	`, tokenHash, now, passwordHash).Scan(&id)
	if err != nil {
		return "", mapPgErr(op, err, docgate.ErrResetInvalid)
	}
	return id, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		update users set password_hash = $2, reset_token_hash = '', reset_token_expiry = null where id = $1
	`, userID, passwordHash)
	return expectOne("postgres.UpdatePassword", tag, err)
}

func (s *Store) RecordLoginFailure(ctx context.Context, userID string, now time.Time, threshold int, lockFor time.Duration) (docgate.Lockout, error) {
	const op = "postgres.RecordLoginFailure"

	var (
		l                       docgate.Lockout
		lastFailed, lockedUntil *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		update users
		set failed_login_count = failed_login_count + 1,
		    last_failed_login = $2,
		    locked_until = case when failed_login_count + 1 >= $3 then $4 else locked_until end
		where id = $1
		returning failed_login_count, last_failed_login, locked_until
	`, userID, now, threshold, now.Add(lockFor)).Scan(&l.FailedCount, &lastFailed, &lockedUntil)
	if err != nil {
		return docgate.Lockout{}, mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	l.LastAttemptAt = deref(lastFailed)
	l.LockedUntil = deref(lockedUntil)
	return l, nil
}

func (s *Store) ResetLoginFailures(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		update users set failed_login_count = 0, last_failed_login = null, locked_until = null where id = $1
	`, userID)
	return expectOne("postgres.ResetLoginFailures", tag, err)
}

func (s *Store) ResetDailyCredits(ctx context.Context, userID string, limit int, seen, now time.Time) (bool, error) {
	const op = "postgres.ResetDailyCredits"

	tag, err := s.pool.Exec(ctx, `
		update users set credits = $2, last_credit_reset = $4
		where id = $1 and last_credit_reset = $3
	`, userID, limit, seen, now)
	if err != nil {
		return false, mapPgErr(op, err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ConsumeCredit(ctx context.Context, userID string) (int, error) {
	const op = "postgres.ConsumeCredit"

	var left int
	err := s.pool.QueryRow(ctx, `
		update users set credits = credits - 1 where id = $1 and credits > 0 returning credits
	`, userID).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapPgErr(op, err, nil)
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return 0, err
	}
	return 0, docgate.ErrInsufficientCredits
}

func (s *Store) SetCredits(ctx context.Context, userID string, credits int) error {
	tag, err := s.pool.Exec(ctx, `update users set credits = $2 where id = $1`, userID, credits)
	return expectOne("postgres.SetCredits", tag, err)
}

func (s *Store) IncrementScans(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `update users set total_scans = total_scans + 1 where id = $1`, userID)
	return expectOne("postgres.IncrementScans", tag, err)
}

func (s *Store) SetTwoFactorSecret(ctx context.Context, userID, secret string) error {
	tag, err := s.pool.Exec(ctx, `update users set two_factor_secret = $2 where id = $1`, userID, secret)
	return expectOne("postgres.SetTwoFactorSecret", tag, err)
}

func (s *Store) EnableTwoFactor(ctx context.Context, userID string, backupCodes [][32]byte) error {
	const op = "postgres.EnableTwoFactor"

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `update users set two_factor_enabled = true where id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return docgate.ErrUserNotFound
		}
		if _, err := tx.Exec(ctx, `delete from backup_codes where user_id = $1`, userID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, h := range backupCodes {
			batch.Queue(`insert into backup_codes (user_id, code_hash) values ($1::uuid, $2)`, userID, h[:])
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if errors.Is(err, docgate.ErrUserNotFound) {
		return err
	}
	if err != nil {
		return mapPgErr(op, err, nil)
	}
	return nil
}

func (s *Store) DisableTwoFactor(ctx context.Context, userID string) error {
	const op = "postgres.DisableTwoFactor"

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			update users set two_factor_enabled = false, two_factor_secret = '' where id = $1
		`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return docgate.ErrUserNotFound
		}
		_, err = tx.Exec(ctx, `delete from backup_codes where user_id = $1`, userID)
		return err
	})
	if errors.Is(err, docgate.ErrUserNotFound) {
		return err
	}
	if err != nil {
		return mapPgErr(op, err, nil)
	}
	return nil
}

func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	const op = "postgres.ConsumeBackupCode"

	tag, err := s.pool.Exec(ctx, `
		delete from backup_codes where user_id = $1 and code_hash = $2
	`, userID, hash[:])
	if err != nil {
		return false, mapPgErr(op, err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Analytics(ctx context.Context) (docgate.Analytics, error) {
	const op = "postgres.Analytics"

	var a docgate.Analytics
	err := s.pool.QueryRow(ctx, `
		select
			(select count(*) from users),
			(select count(*) from users where verified),
			(select coalesce(sum(credits), 0) from users),
			(select count(*) from credit_requests where status = 'pending'),
			(select count(*) from documents)
	`).Scan(&a.Users, &a.VerifiedUsers, &a.OutstandingCredits, &a.PendingCreditRequests, &a.Documents)
	if err != nil {
		return docgate.Analytics{}, mapPgErr(op, err, nil)
	}
	return a, nil
}
