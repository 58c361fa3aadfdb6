package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/docgate"
)

const creditRequestColumns = `id::text, user_id::text, amount, reason, status, reviewed_by, admin_note, created_at, processed_at`

func scanCreditRequest(row pgx.Row) (*docgate.CreditRequest, error) {
	var (
		r         docgate.CreditRequest
		processed *time.Time
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Amount, &r.Reason, &r.Status, &r.ReviewedBy, &r.AdminNote, &r.CreatedAt, &processed); err != nil {
		return nil, err
	}
	r.ProcessedAt = deref(processed)
	return &r, nil
}

func (s *Store) CreateCreditRequest(ctx context.Context, r *docgate.CreditRequest) error {
	const op = "postgres.CreateCreditRequest"

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = docgate.CreditRequestPending
	}
	_, err := s.pool.Exec(ctx, `
		insert into credit_requests (id, user_id, amount, reason, status, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.UserID, r.Amount, r.Reason, string(r.Status), r.CreatedAt)
	if err != nil {
		return mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	return nil
}

func (s *Store) ListCreditRequests(ctx context.Context, userID string) ([]docgate.CreditRequest, error) {
	const op = "postgres.ListCreditRequests"

	var (
		rows pgx.Rows
		err  error
	)
	if userID == "" {
		rows, err = s.pool.Query(ctx, `select `+creditRequestColumns+` from credit_requests order by created_at desc, id desc`)
	} else {
		rows, err = s.pool.Query(ctx, `
			select `+creditRequestColumns+` from credit_requests where user_id = $1 order by created_at desc, id desc
		`, userID)
	}
	if err != nil {
		return nil, mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	defer rows.Close()

	var out []docgate.CreditRequest
	for rows.Next() {
		r, err := scanCreditRequest(rows)
		if err != nil {
			return nil, mapPgErr(op, err, nil)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(op, err, nil)
	}
	return out, nil
}

func (s *Store) ReviewCreditRequest(ctx context.Context, id string, approve bool, adminID, note string, now time.Time) (*docgate.CreditRequest, error) {
	const op = "postgres.ReviewCreditRequest"

	status := docgate.CreditRequestRejected
	if approve {
		status = docgate.CreditRequestApproved
	}

	var out *docgate.CreditRequest
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		r, err := scanCreditRequest(tx.QueryRow(ctx, `
			select `+creditRequestColumns+` from credit_requests where id = $1 for update
		`, id))
		if err != nil {
			return err
		}
		if r.Status != docgate.CreditRequestPending {
			return docgate.ErrCreditRequestProcessed
		}

		if approve {
			tag, err := tx.Exec(ctx, `update users set credits = credits + $2 where id = $1`, r.UserID, r.Amount)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return docgate.ErrUserNotFound
			}
		}

		out, err = scanCreditRequest(tx.QueryRow(ctx, `
			update credit_requests
			set status = $2, reviewed_by = $3, admin_note = $4, processed_at = $5
			where id = $1
			returning `+creditRequestColumns,
			id, string(status), adminID, note, now))
		return err
	})
	if err == nil {
		return out, nil
	}
	switch {
	case errors.Is(err, docgate.ErrCreditRequestNotFound),
		errors.Is(err, docgate.ErrCreditRequestProcessed),
		errors.Is(err, docgate.ErrUserNotFound):
		return nil, err
	}
	return nil, mapPgErr(op, err, docgate.ErrCreditRequestNotFound)
}

func (s *Store) RecordActivity(ctx context.Context, a *docgate.Activity) error {
	const op = "postgres.RecordActivity"

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	details := a.Details
	if details == nil {
		details = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `
		insert into activities (id, user_id, action, details, ip, user_agent, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.UserID, string(a.Action), details, a.IP, a.UserAgent, a.CreatedAt)
	if err != nil {
		return mapPgErr(op, err, nil)
	}
	return nil
}

func (s *Store) ListActivities(ctx context.Context, userID string, limit int, actions ...docgate.ActivityAction) ([]docgate.Activity, error) {
	const op = "postgres.ListActivities"

	var filter []string
	for _, a := range actions {
		filter = append(filter, string(a))
	}

	rows, err := s.pool.Query(ctx, `
		select id::text, user_id::text, action, details, ip, user_agent, created_at
		from activities
		where user_id = $1 and ($3::text[] is null or action = any($3))
		order by created_at desc, seq desc
		limit nullif($2, 0)
	`, userID, limit, filter)
	if err != nil {
		return nil, mapPgErr(op, err, nil)
	}
	defer rows.Close()

	var out []docgate.Activity
	for rows.Next() {
		var a docgate.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Details, &a.IP, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, mapPgErr(op, err, nil)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(op, err, nil)
	}
	return out, nil
}

func (s *Store) SaveDocument(ctx context.Context, d *docgate.Document) error {
	const op = "postgres.SaveDocument"

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		insert into documents (id, user_id, filename, content_type, size, content, analysis, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.UserID, d.Filename, d.ContentType, d.Size, d.Content, d.Analysis, d.CreatedAt)
	if err != nil {
		return mapPgErr(op, err, docgate.ErrUserNotFound)
	}
	return nil
}
