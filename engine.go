package docgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/docgate/internal/audit"
	"github.com/MrEthical07/docgate/internal/rate"
	"github.com/MrEthical07/docgate/internal/reputation"
	"github.com/MrEthical07/docgate/jwt"
	"github.com/MrEthical07/docgate/password"
	"github.com/MrEthical07/docgate/session"
)

// Verdict is the outcome of an abuse check.
type Verdict = reputation.Verdict

const (
	Admit          = reputation.Admit
	Reject         = reputation.Reject
	AdmitWithError = reputation.AdmitWithError
)

// Decision pairs a [Verdict] with its cause. For Reject, Err is one of
// ErrIPBlocked, ErrBurstLimited or ErrSuspiciousActivity. For AdmitWithError
// it is the counter store failure.
type Decision = reputation.Decision

// RateClass selects a rate-limit window.
type RateClass = rate.Class

const (
	RateAPI   = rate.ClassAPI
	RateAuth  = rate.ClassAuth
	RateEmail = rate.ClassEmail
)

// Identity is an authenticated request principal.
type Identity struct {
	User    *User
	Session *session.Session
	Claims  *jwt.Claims
	Token   string
}

// SessionGrant is a freshly issued token and its session.
type SessionGrant struct {
	Token     string
	ExpiresAt time.Time
	Session   *session.Session
}

// Engine is the admission and account engine. Build one with [New].
type Engine struct {
	config     Config
	store      Store
	sessions   *session.Store
	tokens     *jwt.Manager
	passwords  *password.Hasher
	reputation *reputation.Tracker
	limiter    *rate.Limiter
	mailer     Mailer
	analyzer   Analyzer
	audit      *audit.Dispatcher
	metrics    *Metrics
	log        *zap.Logger
	now        func() time.Time
}

// Close drains the activity dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Config returns the validated configuration the engine runs with.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics().Snapshot()
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Ping checks Redis reachability.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.sessions.Ping(ctx)
	return err
}

// Authenticate admits token or explains why not. The checks run in order:
// presence, signature and expiry, session, user, verification, lockout. Every
// backend failure rejects. A failed activity heartbeat does not.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	start := time.Now()
	id, err := e.authenticate(ctx, token)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))

	if err != nil {
		if m, ok := rejectionMetric(err); ok {
			e.metrics.Inc(m)
		}
		return nil, err
	}
	e.metrics.Inc(MetricAdmitted)
	return id, nil
}

func (e *Engine) authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		e.log.Debug("token rejected", zap.Error(err))
		return nil, ErrTokenInvalid
	}

	now := e.now()
	sess, err := e.sessions.Lookup(ctx, token, claims.UID, now)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		e.log.Error("session lookup failed", zap.String("user_id", claims.UID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := e.store.GetUserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		e.log.Error("user lookup failed", zap.String("user_id", claims.UID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if e.config.Verification.RequireVerified && !user.Verified {
		return nil, ErrAccountUnverified
	}
	if user.Lockout.Active(now) {
		return nil, ErrAccountLocked
	}

	if ok, err := e.sessions.Touch(ctx, token, now); err != nil || !ok {
		e.metrics.Inc(MetricSessionTouchFailed)
		e.log.Warn("session activity update failed", zap.String("session_id", sess.ID), zap.Error(err))
	} else {
		sess.LastActivity = now
	}

	return &Identity{User: user, Session: sess, Claims: claims, Token: token}, nil
}

// RequireRole rejects id unless its stored role is one of roles.
func (e *Engine) RequireRole(id *Identity, roles ...Role) error {
	if id == nil || id.User == nil {
		return ErrUnauthorized
	}
	for _, r := range roles {
		if id.User.Role == r {
			return nil
		}
	}
	e.metrics.Inc(MetricRejectedRole)
	return ErrForbidden
}

// CreateSession issues a token of class for user and persists its session.
// The session expires together with the token.
func (e *Engine) CreateSession(ctx context.Context, user *User, class jwt.Class, device session.Device) (*SessionGrant, error) {
	if class != jwt.ClassLongLived {
		class = jwt.ClassSession
	}
	token, expiresAt, err := e.tokens.Issue(user.ID, string(user.Role), class)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	now := e.now()
	sess := &session.Session{
		UserID:    user.ID,
		Class:     string(class),
		Device:    device,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := e.sessions.Create(ctx, token, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	e.metrics.Inc(MetricSessionCreated)
	return &SessionGrant{Token: token, ExpiresAt: expiresAt, Session: sess}, nil
}

// InvalidateSession deactivates the session bound to token. Unknown and
// already inactive tokens are not an error.
func (e *Engine) InvalidateSession(ctx context.Context, token string) error {
	if err := e.sessions.Invalidate(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricSessionInvalidated)
	return nil
}

// InvalidateAllSessions deactivates every active session of userID.
func (e *Engine) InvalidateAllSessions(ctx context.Context, userID string) (int, error) {
	n, err := e.sessions.InvalidateAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i := 0; i < n; i++ {
		e.metrics.Inc(MetricSessionInvalidated)
	}
	return n, nil
}

func (e *Engine) ListSessions(ctx context.Context, userID string) ([]session.Session, error) {
	out, err := e.sessions.ListActive(ctx, userID, e.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// CheckRequest runs the IP reputation pipeline for r. Counter store failures
// come back as AdmitWithError and are logged here.
func (e *Engine) CheckRequest(ctx context.Context, r *http.Request, ip string) Decision {
	d := e.reputation.Check(ctx, reputation.RequestFromHTTP(r, ip))

	switch d.Verdict {
	case Reject:
		switch {
		case errors.Is(d.Err, reputation.ErrBurst):
			e.metrics.Inc(MetricBurstTrip)
			d.Err = ErrBurstLimited
		case errors.Is(d.Err, reputation.ErrSuspicious):
			e.metrics.Inc(MetricSuspiciousTrip)
			d.Err = ErrSuspiciousActivity
		default:
			e.metrics.Inc(MetricIPBlocked)
			d.Err = ErrIPBlocked
		}
		e.log.Info("request rejected by ip reputation", zap.String("ip", ip), zap.Error(d.Err))
	case AdmitWithError:
		e.metrics.Inc(MetricFailOpen)
		e.log.Warn("ip reputation check failed open", zap.String("ip", ip), zap.Error(d.Err))
	}
	return d
}

// AllowRate counts one request of class from ip. It returns ErrRateLimited
// and the time left in the window once the cap is exceeded. Counter store
// failures admit the request.
func (e *Engine) AllowRate(ctx context.Context, class RateClass, ip string) (time.Duration, error) {
	res, err := e.limiter.Allow(ctx, class, ip)
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metrics.Inc(MetricRateLimitHit)
		return res.RetryAfter, ErrRateLimited
	case errors.Is(err, rate.ErrUnknownClass):
		return 0, err
	default:
		e.metrics.Inc(MetricFailOpen)
		e.log.Warn("rate limit check failed open", zap.String("ip", ip), zap.String("class", string(class)), zap.Error(err))
		return 0, nil
	}
}

// IsIPBlocked reports whether ip carries the block flag. Store errors report
// false.
func (e *Engine) IsIPBlocked(ctx context.Context, ip string) bool {
	blocked, err := e.reputation.IsBlocked(ctx, ip)
	if err != nil {
		e.log.Warn("ip block lookup failed", zap.String("ip", ip), zap.Error(err))
		return false
	}
	return blocked
}

func (e *Engine) record(ctx context.Context, userID string, action ActivityAction, details map[string]string) {
	e.audit.Emit(ctx, audit.Event{
		Timestamp: e.now().UTC(),
		Action:    string(action),
		UserID:    userID,
		IP:        ClientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Details:   details,
	})
}
