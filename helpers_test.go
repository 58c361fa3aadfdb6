package docgate_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/internal/store/memory"
	"github.com/MrEthical07/docgate/password"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// outbox records every link the engine mails.
type outbox struct {
	mu     sync.Mutex
	verify map[string]string
	reset  map[string]string
}

func newOutbox() *outbox {
	return &outbox{verify: map[string]string{}, reset: map[string]string{}}
}

func (o *outbox) SendVerification(_ context.Context, to, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verify[to] = link
	return nil
}

func (o *outbox) SendPasswordReset(_ context.Context, to, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset[to] = link
	return nil
}

func (o *outbox) verifyToken(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return lastSegment(o.verify[to])
}

func (o *outbox) resetToken(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return lastSegment(o.reset[to])
}

func lastSegment(link string) string {
	if i := strings.LastIndex(link, "/"); i >= 0 {
		return link[i+1:]
	}
	return link
}

type stubAnalyzer struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
}

func (a *stubAnalyzer) Analyze(context.Context, string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.out, a.err
}

type testEnv struct {
	engine   *docgate.Engine
	store    *memory.Store
	redis    *miniredis.Miniredis
	clock    *testClock
	mail     *outbox
	analyzer *stubAnalyzer
}

func testConfig() docgate.Config {
	cfg := docgate.DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
		MinLength:   8,
	}
	cfg.Audit.DropIfFull = false
	return cfg
}

func newTestEnv(t testing.TB, mutate func(*docgate.Config)) (*testEnv, func()) {
	t.Helper()

	mr, rdb, cleanupRedis := startRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		store:    memory.New(),
		redis:    mr,
		clock:    newTestClock(),
		mail:     newOutbox(),
		analyzer: &stubAnalyzer{out: "looks fine"},
	}
	engine, err := docgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(env.store).
		WithMailer(env.mail).
		WithAnalyzer(env.analyzer).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	env.engine = engine

	return env, func() {
		engine.Close()
		cleanupRedis()
	}
}

func startRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

// registerVerified signs up email and completes verification.
func (env *testEnv) registerVerified(t testing.TB, email, pw string) *docgate.User {
	t.Helper()
	ctx := context.Background()
	u, err := env.engine.Register(ctx, docgate.RegisterRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if err := env.engine.VerifyEmail(ctx, env.mail.verifyToken(u.Email)); err != nil {
		t.Fatalf("verify %s: %v", email, err)
	}
	return u
}

func (env *testEnv) login(t testing.TB, email, pw string) *docgate.LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), docgate.LoginRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

func withIP(ip string) context.Context {
	return docgate.WithClientIP(context.Background(), ip)
}
