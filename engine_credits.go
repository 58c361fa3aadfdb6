package docgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditBalance is a user's balance after the daily reset has been applied.
type CreditBalance struct {
	Credits         int
	DailyLimit      int
	LastCreditReset time.Time
	NextReset       time.Time
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// refreshCredits loads userID and applies the lazy daily reset when the last
// reset happened on an earlier calendar day. Concurrent callers race on a
// compare-and-set; the loser reloads.
func (e *Engine) refreshCredits(ctx context.Context, userID string) (*User, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if sameDay(user.LastCreditReset, now, e.config.Credits.Location) {
		return user, nil
	}

	applied, err := e.store.ResetDailyCredits(ctx, userID, e.config.Credits.DailyLimit, user.LastCreditReset, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if applied {
		e.metrics.Inc(MetricCreditReset)
		user.Credits = e.config.Credits.DailyLimit
		user.LastCreditReset = now
		return user, nil
	}
	return e.store.GetUserByID(ctx, userID)
}

// CheckCredits is the credit gate: it applies the daily reset and rejects an
// empty balance with ErrInsufficientCredits. It does not consume.
func (e *Engine) CheckCredits(ctx context.Context, userID string) (int, error) {
	user, err := e.refreshCredits(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.Credits <= 0 {
		e.metrics.Inc(MetricRejectedCredits)
		return 0, ErrInsufficientCredits
	}
	return user.Credits, nil
}

// ConsumeCredit takes one credit and returns the remaining balance. The store
// decrements only a positive balance, so concurrent consumers cannot drive it
// below zero.
func (e *Engine) ConsumeCredit(ctx context.Context, userID string) (int, error) {
	left, err := e.store.ConsumeCredit(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricCreditConsumed)
	return left, nil
}

// Balance returns the current balance of userID.
func (e *Engine) Balance(ctx context.Context, userID string) (*CreditBalance, error) {
	user, err := e.refreshCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := e.config.Credits.Location
	y, m, d := e.now().In(loc).Date()
	return &CreditBalance{
		Credits:         user.Credits,
		DailyLimit:      e.config.Credits.DailyLimit,
		LastCreditReset: user.LastCreditReset,
		NextReset:       time.Date(y, m, d+1, 0, 0, 0, 0, loc),
	}, nil
}

// CreditHistory lists the credit-related activity of userID.
func (e *Engine) CreditHistory(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return e.store.ListActivities(ctx, userID, limit, ActionCreditUse, ActionCreditRequest)
}

// RequestCredits files a pending request for amount credits.
func (e *Engine) RequestCredits(ctx context.Context, userID string, amount int, reason string) (*CreditRequest, error) {
	reason = strings.TrimSpace(reason)
	if amount < 1 {
		return nil, fmt.Errorf("%w: amount must be at least 1", ErrInvalidInput)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	req := &CreditRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Status:    CreditRequestPending,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateCreditRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.record(ctx, userID, ActionCreditRequest, map[string]string{"request_id": req.ID, "amount": fmt.Sprint(amount)})
	return req, nil
}

// CreditRequests lists requests of userID, or all requests when userID is "".
func (e *Engine) CreditRequests(ctx context.Context, userID string) ([]CreditRequest, error) {
	return e.store.ListCreditRequests(ctx, userID)
}

// ReviewCreditRequest approves or rejects a pending request. Approval credits
// the requester atomically with the status change.
func (e *Engine) ReviewCreditRequest(ctx context.Context, admin *Identity, requestID string, approve bool, note string) (*CreditRequest, error) {
	req, err := e.store.ReviewCreditRequest(ctx, requestID, approve, admin.User.ID, strings.TrimSpace(note), e.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrCreditRequestNotFound), errors.Is(err, ErrCreditRequestProcessed):
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.log.Info("credit request reviewed",
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("admin_id", admin.User.ID))
	return req, nil
}

// SetCredits overwrites the balance of userID.
func (e *Engine) SetCredits(ctx context.Context, userID string, credits int) error {
	if credits < 0 {
		return fmt.Errorf("%w: credits must not be negative", ErrInvalidInput)
	}
	if err := e.store.SetCredits(ctx, userID, credits); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) ListUsers(ctx context.Context) ([]User, error) {
	return e.store.ListUsers(ctx)
}

func (e *Engine) Analytics(ctx context.Context) (Analytics, error) {
	return e.store.Analytics(ctx)
}
