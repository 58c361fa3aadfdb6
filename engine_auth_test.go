package docgate_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/internal/store/memory"
	"github.com/MrEthical07/docgate/session"
)

type countingStore struct {
	*memory.Store
	lookups atomic.Int64
}

func (s *countingStore) GetUserByID(ctx context.Context, id string) (*docgate.User, error) {
	s.lookups.Add(1)
	return s.Store.GetUserByID(ctx, id)
}

func TestAuthenticateWithoutTokenTouchesNothing(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()

	before := env.redis.CommandCount()
	_, err := env.engine.Authenticate(context.Background(), "")
	if !errors.Is(err, docgate.ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if got := docgate.StatusCode(err); got != 401 {
		t.Fatalf("expected 401, got %d", got)
	}
	if after := env.redis.CommandCount(); after != before {
		t.Fatalf("expected no redis commands, got %d", after-before)
	}
	if env.engine.MetricsSnapshot().Counters[docgate.MetricRejectedNoToken] != 1 {
		t.Fatalf("expected rejected_no_token to be counted")
	}
}

func TestAuthenticateRejectsBadTokenBeforeUserLookup(t *testing.T) {
	mr, rdb, cleanupRedis := startRedis(t)
	defer cleanupRedis()

	store := &countingStore{Store: memory.New()}
	engine, err := docgate.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithStore(store).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	before := mr.CommandCount()
	_, err = engine.Authenticate(context.Background(), "not.a.jwt")
	if !errors.Is(err, docgate.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if mr.CommandCount() != before || store.lookups.Load() != 0 {
		t.Fatalf("invalid token must be rejected before any lookup")
	}
}

func TestAuthenticateAdmitsAndTouchesSession(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	res := env.login(t, "ada@example.com", "correct horse")

	env.clock.Advance(time.Minute)
	id, err := env.engine.Authenticate(ctx, res.Grant.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.User.ID != u.ID || id.Claims.UID != u.ID {
		t.Fatalf("expected identity of %s, got %s", u.ID, id.User.ID)
	}
	if !id.Session.LastActivity.Equal(env.clock.Now()) {
		t.Fatalf("expected last activity %v, got %v", env.clock.Now(), id.Session.LastActivity)
	}
	if got := res.Grant.ExpiresAt.Sub(res.Grant.Session.CreatedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h session, got %v", got)
	}
}

func TestRememberIssuesLongLivedSession(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()

	env.registerVerified(t, "ada@example.com", "correct horse")
	res, err := env.engine.Login(context.Background(), docgate.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
		Remember: true,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := res.Grant.ExpiresAt.Sub(env.clock.Now()); got != 7*24*time.Hour {
		t.Fatalf("expected 7d token, got %v", got)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()

	env.registerVerified(t, "ada@example.com", "correct horse")
	res := env.login(t, "ada@example.com", "correct horse")

	env.clock.Advance(25 * time.Hour)
	if _, err := env.engine.Authenticate(context.Background(), res.Grant.Token); !errors.Is(err, docgate.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestInvalidatedSessionIsRejected(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	env.registerVerified(t, "ada@example.com", "correct horse")
	res := env.login(t, "ada@example.com", "correct horse")

	id, err := env.engine.Authenticate(ctx, res.Grant.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := env.engine.Logout(ctx, id); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := env.engine.InvalidateSession(ctx, res.Grant.Token); err != nil {
		t.Fatalf("second invalidate should be a no-op, got %v", err)
	}

	_, err = env.engine.Authenticate(ctx, res.Grant.Token)
	if !errors.Is(err, docgate.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if docgate.StatusCode(err) != 401 {
		t.Fatalf("expected 401")
	}
}

func TestLogoutAllInvalidatesEverySession(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	env.registerVerified(t, "ada@example.com", "correct horse")
	a := env.login(t, "ada@example.com", "correct horse")
	b := env.login(t, "ada@example.com", "correct horse")

	id, err := env.engine.Authenticate(ctx, a.Grant.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	sessions, err := env.engine.ListSessions(ctx, id.User.ID)
	if err != nil || len(sessions) != 2 {
		t.Fatalf("expected 2 active sessions, got %d (%v)", len(sessions), err)
	}

	n, err := env.engine.LogoutAll(ctx, id)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 invalidated, got %d (%v)", n, err)
	}
	if _, err := env.engine.Authenticate(ctx, b.Grant.Token); !errors.Is(err, docgate.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestUnverifiedAccountIsRejected(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	u, err := env.engine.Register(ctx, docgate.RegisterRequest{Email: "bob@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := env.engine.Login(ctx, docgate.LoginRequest{Email: "bob@example.com", Password: "correct horse"}); !errors.Is(err, docgate.ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified on login, got %v", err)
	}

	grant, err := env.engine.CreateSession(ctx, u, "", session.Device{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, grant.Token); !errors.Is(err, docgate.ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestAccountLocksAfterRepeatedFailures(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	env.registerVerified(t, "ada@example.com", "correct horse")
	existing := env.login(t, "ada@example.com", "correct horse")

	for i := 1; i <= 5; i++ {
		_, err := env.engine.Login(ctx, docgate.LoginRequest{Email: "ada@example.com", Password: "wrong password"})
		if i < 5 && !errors.Is(err, docgate.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
		if i == 5 && !errors.Is(err, docgate.ErrAccountLocked) {
			t.Fatalf("attempt 5: expected ErrAccountLocked, got %v", err)
		}
	}

	if _, err := env.engine.Login(ctx, docgate.LoginRequest{Email: "ada@example.com", Password: "correct horse"}); !errors.Is(err, docgate.ErrAccountLocked) {
		t.Fatalf("expected correct password to be rejected while locked, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, existing.Grant.Token); !errors.Is(err, docgate.ErrAccountLocked) {
		t.Fatalf("expected existing session to be rejected while locked, got %v", err)
	}

	env.clock.Advance(31 * time.Minute)
	res := env.login(t, "ada@example.com", "correct horse")
	if res.User.Lockout.FailedCount != 0 {
		t.Fatalf("expected lockout to be cleared, got %+v", res.User.Lockout)
	}
}

func TestIPBlockedAfterFailedLoginsAcrossAccounts(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()

	env.registerVerified(t, "ada@example.com", "correct horse")
	attacker := withIP("203.0.113.7")

	emails := []string{"x1@example.com", "x2@example.com", "ada@example.com", "x3@example.com", "x4@example.com"}
	var err error
	for _, email := range emails {
		_, err = env.engine.Login(attacker, docgate.LoginRequest{Email: email, Password: "wrong password"})
	}
	if !errors.Is(err, docgate.ErrIPBlocked) {
		t.Fatalf("expected ErrIPBlocked after 5 failures, got %v", err)
	}
	if !env.engine.IsIPBlocked(context.Background(), "203.0.113.7") {
		t.Fatalf("expected IP to carry the block flag")
	}

	req := httptest.NewRequest("GET", "/api/user/profile", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Accept", "application/json")
	d := env.engine.CheckRequest(attacker, req, "203.0.113.7")
	if d.Verdict != docgate.Reject || !errors.Is(d.Err, docgate.ErrIPBlocked) {
		t.Fatalf("expected Reject/ErrIPBlocked, got %v/%v", d.Verdict, d.Err)
	}

	other := withIP("198.51.100.4")
	if d := env.engine.CheckRequest(other, req, "198.51.100.4"); d.Verdict != docgate.Admit {
		t.Fatalf("expected other IP to be admitted, got %v", d.Verdict)
	}
	if _, err := env.engine.Login(other, docgate.LoginRequest{Email: "ada@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("login from unblocked IP: %v", err)
	}
}

func TestAuthRateLimitRejectsEleventhRequest(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		if _, err := env.engine.AllowRate(ctx, docgate.RateAuth, "203.0.113.8"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	retry, err := env.engine.AllowRate(ctx, docgate.RateAuth, "203.0.113.8")
	if !errors.Is(err, docgate.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if retry <= 0 || retry > time.Hour {
		t.Fatalf("expected retry within the window, got %v", retry)
	}
	if docgate.StatusCode(err) != 429 {
		t.Fatalf("expected 429")
	}

	if _, err := env.engine.AllowRate(ctx, docgate.RateAuth, "203.0.113.9"); err != nil {
		t.Fatalf("other IP must have its own window: %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()

	user := &docgate.Identity{User: &docgate.User{Role: docgate.RoleUser}}
	admin := &docgate.Identity{User: &docgate.User{Role: docgate.RoleAdmin}}

	if err := env.engine.RequireRole(user, docgate.RoleAdmin); !errors.Is(err, docgate.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := env.engine.RequireRole(admin, docgate.RoleAdmin); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
	if err := env.engine.RequireRole(nil, docgate.RoleUser); !errors.Is(err, docgate.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
