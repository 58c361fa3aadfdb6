package docgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/docgate"
)

func TestRegisterValidatesInput(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name string
		req  docgate.RegisterRequest
		want error
	}{
		{"bad email", docgate.RegisterRequest{Email: "not-an-email", Password: "correct horse"}, docgate.ErrInvalidInput},
		{"short password", docgate.RegisterRequest{Email: "a@example.com", Password: "short"}, docgate.ErrPasswordPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.engine.Register(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	u, err := env.engine.Register(ctx, docgate.RegisterRequest{Email: " Ada@Example.com ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "ada@example.com" || u.Username != "ada" || u.Verified || u.Credits != 20 {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := env.engine.Register(ctx, docgate.RegisterRequest{Email: "ADA@example.com", Password: "correct horse"}); !errors.Is(err, docgate.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestVerificationTokenIsSingleUse(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, docgate.RegisterRequest{Email: "ada@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token := env.mail.verifyToken("ada@example.com")
	if token == "" {
		t.Fatalf("expected a verification link to be mailed")
	}
	if err := env.engine.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, token); !errors.Is(err, docgate.ErrVerificationInvalid) {
		t.Fatalf("expected ErrVerificationInvalid on reuse, got %v", err)
	}
	env.login(t, "ada@example.com", "correct horse")
}

func TestVerificationTokenExpires(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, docgate.RegisterRequest{Email: "ada@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	env.clock.Advance(25 * time.Hour)
	if err := env.engine.VerifyEmail(ctx, env.mail.verifyToken("ada@example.com")); !errors.Is(err, docgate.ErrVerificationInvalid) {
		t.Fatalf("expected ErrVerificationInvalid, got %v", err)
	}

	if err := env.engine.ResendVerification(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, env.mail.verifyToken("ada@example.com")); err != nil {
		t.Fatalf("VerifyEmail after resend: %v", err)
	}
}

func TestPasswordResetInvalidatesSessions(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	env.registerVerified(t, "ada@example.com", "correct horse")
	before := env.login(t, "ada@example.com", "correct horse")

	if err := env.engine.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown address must not be revealed, got %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, "ada@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := env.mail.resetToken("ada@example.com")

	if err := env.engine.ResetPassword(ctx, token, "short"); !errors.Is(err, docgate.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, token, "battery staple"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, token, "battery staple"); !errors.Is(err, docgate.ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid on reuse, got %v", err)
	}

	if _, err := env.engine.Authenticate(ctx, before.Grant.Token); !errors.Is(err, docgate.ErrSessionInvalid) {
		t.Fatalf("expected old session to be invalid, got %v", err)
	}
	if _, err := env.engine.Login(ctx, docgate.LoginRequest{Email: "ada@example.com", Password: "correct horse"}); !errors.Is(err, docgate.ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	env.login(t, "ada@example.com", "battery staple")
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := context.Background()

	env.registerVerified(t, "ada@example.com", "correct horse")
	current := env.login(t, "ada@example.com", "correct horse")
	other := env.login(t, "ada@example.com", "correct horse")

	id, err := env.engine.Authenticate(ctx, current.Grant.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := env.engine.ChangePassword(ctx, id, "wrong password", "battery staple"); !errors.Is(err, docgate.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, id, "correct horse", "battery staple"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := env.engine.Authenticate(ctx, current.Grant.Token); err != nil {
		t.Fatalf("current session must survive, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, other.Grant.Token); !errors.Is(err, docgate.ErrSessionInvalid) {
		t.Fatalf("expected other session to be invalid, got %v", err)
	}
}

func TestActivityIsRecorded(t *testing.T) {
	env, cleanup := newTestEnv(t, nil)
	defer cleanup()
	ctx := docgate.WithUserAgent(withIP("198.51.100.4"), "test-agent")

	u := env.registerVerified(t, "ada@example.com", "correct horse")
	if _, err := env.engine.Login(ctx, docgate.LoginRequest{Email: "ada@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	env.engine.Close()

	acts, err := env.engine.Activity(context.Background(), u.ID, 10)
	if err != nil {
		t.Fatalf("Activity: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(acts))
	}
	if acts[0].Action != docgate.ActionLogin || acts[0].IP != "198.51.100.4" || acts[0].UserAgent != "test-agent" {
		t.Fatalf("unexpected newest entry %+v", acts[0])
	}
	if acts[2].Action != docgate.ActionRegistration {
		t.Fatalf("expected registration first, got %s", acts[2].Action)
	}
}
