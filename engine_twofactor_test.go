package docgate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pquerna/otp/totp"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/internal/store/memory"
	"github.com/MrEthical07/docgate/session"
)

func enrollTwoFactor(t *testing.T, env *testEnv, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.BeginTwoFactorSetup(ctx, userID)
	if err != nil {
		t.Fatalf("BeginTwoFactorSetup: %v", err)
	}
	if _, err := env.engine.ConfirmTwoFactor(ctx, userID, "000000x"); !errors.Is(err, docgate.ErrTwoFactorInvalid) {
		t.Fatalf("expected ErrTwoFactorInvalid, got %v", err)
	}
	code, err := totp.GenerateCode(setup.Secret, env.clock.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	backup, err := env.engine.ConfirmTwoFactor(ctx, userID, code)
	if err != nil {
		t.Fatalf("ConfirmTwoFactor: %v", err)
	}
	return setup.Secret, backup
}

func startTwoFactorLogin(t *testing.T, env *testEnv) string {
	t.Helper()
	res := env.login(t, "ada@example.com", "correct horse")
	if !res.TwoFactorRequired || res.ChallengeID == "" || res.Grant != nil {
		t.Fatalf("expected a challenge and no session, got %+v", res)
	}
	return res.ChallengeID
}

func TestTwoFactorLoginWithTOTP(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	secret, backup := enrollTwoFactor(t, env, u.ID)
	if len(backup) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(backup))
	}
	if _, err := env.engine.BeginTwoFactorSetup(ctx, u.ID); !errors.Is(err, docgate.ErrTwoFactorAlreadyEnabled) {
		t.Fatalf("expected ErrTwoFactorAlreadyEnabled, got %v", err)
	}

	challenge := startTwoFactorLogin(t, env)
	code, _ := totp.GenerateCode(secret, env.clock.Now())
	res, err := env.engine.CompleteTwoFactorLogin(ctx, challenge, code, session.Device{})
	if err != nil {
		t.Fatalf("CompleteTwoFactorLogin: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, res.Grant.Token); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if _, err := env.engine.CompleteTwoFactorLogin(ctx, challenge, code, session.Device{}); !errors.Is(err, docgate.ErrTwoFactorChallengeInvalid) {
		t.Fatalf("expected used challenge to be invalid, got %v", err)
	}
}

func TestBackupCodeWorksOnce(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	_, backup := enrollTwoFactor(t, env, u.ID)

	first := startTwoFactorLogin(t, env)
	if _, err := env.engine.CompleteTwoFactorLogin(ctx, first, backup[0], session.Device{}); err != nil {
		t.Fatalf("first use of backup code: %v", err)
	}

	second := startTwoFactorLogin(t, env)
	if _, err := env.engine.CompleteTwoFactorLogin(ctx, second, backup[0], session.Device{}); !errors.Is(err, docgate.ErrTwoFactorInvalid) {
		t.Fatalf("expected reused backup code to fail, got %v", err)
	}
	if env.store.BackupCodesRemaining(u.ID) != 9 {
		t.Fatalf("expected 9 unused codes, got %d", env.store.BackupCodesRemaining(u.ID))
	}
}

func TestTwoFactorChallengeExhausts(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	secret, _ := enrollTwoFactor(t, env, u.ID)
	challenge := startTwoFactorLogin(t, env)

	for i := 1; i < 5; i++ {
		if _, err := env.engine.CompleteTwoFactorLogin(ctx, challenge, "12345", session.Device{}); !errors.Is(err, docgate.ErrTwoFactorInvalid) {
			t.Fatalf("attempt %d: expected ErrTwoFactorInvalid, got %v", i, err)
		}
	}
	if _, err := env.engine.CompleteTwoFactorLogin(ctx, challenge, "12345", session.Device{}); !errors.Is(err, docgate.ErrTwoFactorChallengeInvalid) {
		t.Fatalf("expected exhausted challenge, got %v", err)
	}

	code, _ := totp.GenerateCode(secret, env.clock.Now())
	if _, err := env.engine.CompleteTwoFactorLogin(ctx, challenge, code, session.Device{}); !errors.Is(err, docgate.ErrTwoFactorChallengeInvalid) {
		t.Fatalf("expected exhausted challenge to stay dead, got %v", err)
	}
}

func TestDisableTwoFactor(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	secret, _ := enrollTwoFactor(t, env, u.ID)

	if err := env.engine.DisableTwoFactor(ctx, u.ID, "abcdef"); !errors.Is(err, docgate.ErrTwoFactorInvalid) {
		t.Fatalf("expected ErrTwoFactorInvalid, got %v", err)
	}
	code, _ := totp.GenerateCode(secret, env.clock.Now())
	if err := env.engine.DisableTwoFactor(ctx, u.ID, code); err != nil {
		t.Fatalf("DisableTwoFactor: %v", err)
	}
	res := env.login(t, "ada@example.com", "correct horse")
	if res.TwoFactorRequired || res.Grant == nil {
		t.Fatalf("expected a direct session after disabling two-factor")
	}
}

type hookedStore struct {
	*memory.Store
	beforeUserLookup func()
}

func (s *hookedStore) GetUserByID(ctx context.Context, id string) (*docgate.User, error) {
	if s.beforeUserLookup != nil {
		s.beforeUserLookup()
	}
	return s.Store.GetUserByID(ctx, id)
}

func TestBackupCodeSurvivesVanishedChallenge(t *testing.T) {
	mr, rdb, cleanupRedis := startRedis(t)
	defer cleanupRedis()
	ctx := context.Background()

	store := &hookedStore{Store: memory.New()}
	env := &testEnv{
		store:    store.Store,
		redis:    mr,
		clock:    newTestClock(),
		mail:     newOutbox(),
		analyzer: &stubAnalyzer{},
	}
	engine, err := docgate.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(env.mail).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	env.engine = engine

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	_, backup := enrollTwoFactor(t, env, u.ID)

	// The challenge expires after it was read but before it is consumed.
	challenge := startTwoFactorLogin(t, env)
	store.beforeUserLookup = func() {
		for _, k := range mr.Keys() {
			if strings.Contains(k, ":mfa:") {
				mr.Del(k)
			}
		}
	}
	if _, err := engine.CompleteTwoFactorLogin(ctx, challenge, backup[0], session.Device{}); !errors.Is(err, docgate.ErrTwoFactorChallengeInvalid) {
		t.Fatalf("expected ErrTwoFactorChallengeInvalid, got %v", err)
	}
	if n := store.BackupCodesRemaining(u.ID); n != 10 {
		t.Fatalf("expected no backup code spent, got %d left", n)
	}
	store.beforeUserLookup = nil

	// A wrong backup code leaves the challenge usable.
	challenge = startTwoFactorLogin(t, env)
	if _, err := engine.CompleteTwoFactorLogin(ctx, challenge, "ABCD-EFGH", session.Device{}); !errors.Is(err, docgate.ErrTwoFactorInvalid) {
		t.Fatalf("expected ErrTwoFactorInvalid, got %v", err)
	}
	if _, err := engine.CompleteTwoFactorLogin(ctx, challenge, backup[0], session.Device{}); err != nil {
		t.Fatalf("backup code after a miss: %v", err)
	}
	if n := store.BackupCodesRemaining(u.ID); n != 9 {
		t.Fatalf("expected 9 unused codes, got %d", n)
	}
}
