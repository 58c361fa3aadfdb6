package docgate

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/docgate/internal"
	"github.com/MrEthical07/docgate/jwt"
	"github.com/MrEthical07/docgate/session"
)

// RegisterRequest carries a sign-up.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// LoginRequest carries a password login. Remember selects the long-lived
// token class.
type LoginRequest struct {
	Email    string
	Password string
	Remember bool
	Device   session.Device
}

// LoginResult is either a session or, for two-factor accounts, a pending
// challenge to be completed with [Engine.CompleteTwoFactorLogin].
type LoginResult struct {
	User              *User
	Grant             *SessionGrant
	TwoFactorRequired bool
	ChallengeID       string
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) checkPassword(pw string) error {
	if len(pw) < e.passwords.MinLength() {
		return fmt.Errorf("%w: password must be at least %d characters", ErrPasswordPolicy, e.passwords.MinLength())
	}
	return nil
}

// Register creates an unverified account and mails its verification link.
// A mail failure is logged and does not undo the registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := NormalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if err := e.checkPassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := e.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := &User{
		ID:              uuid.NewString(),
		Email:           email,
		Username:        strings.TrimSpace(req.Username),
		PasswordHash:    hash,
		Role:            RoleUser,
		Credits:         e.config.Credits.DailyLimit,
		LastCreditReset: now,
		Verified:        !e.config.Verification.RequireVerified,
		CreatedAt:       now,
	}
	if user.Username == "" {
		user.Username = strings.SplitN(email, "@", 2)[0]
	}

	if err := e.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricRegistration)
	e.record(ctx, user.ID, ActionRegistration, nil)

	if !user.Verified {
		if err := e.sendVerification(ctx, user); err != nil {
			e.log.Warn("verification mail not sent", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

// Login checks credentials. Failures count against the account lockout and
// the client IP. Once the IP reaches its threshold the result is ErrIPBlocked.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ip := ClientIPFromContext(ctx)
	if ip == "" {
		ip = req.Device.IP
	}
	if req.Device.IP == "" {
		req.Device.IP = ip
	}
	now := e.now()

	user, err := e.store.GetUserByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		// Equalize timing with the wrong-password path.
		_, _ = e.passwords.Hash(req.Password)
		return nil, e.loginFailed(ctx, ip, "")
	}

	if user.Lockout.Active(now) {
		e.metrics.Inc(MetricLoginLocked)
		return nil, ErrAccountLocked
	}

	ok, err := e.passwords.Verify(req.Password, user.PasswordHash)
	if err != nil {
		e.log.Error("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
	}
	if !ok {
		lock, err := e.store.RecordLoginFailure(ctx, user.ID, now, e.config.Lockout.Threshold, e.config.Lockout.Duration)
		if err != nil {
			e.log.Error("login failure not recorded", zap.String("user_id", user.ID), zap.Error(err))
		}
		failErr := e.loginFailed(ctx, ip, user.ID)
		if errors.Is(failErr, ErrInvalidCredentials) && lock.Active(now) {
			e.log.Info("account locked", zap.String("user_id", user.ID), zap.Time("until", lock.LockedUntil))
			return nil, ErrAccountLocked
		}
		return nil, failErr
	}

	if e.config.Verification.RequireVerified && !user.Verified {
		return nil, ErrAccountUnverified
	}

	if user.Lockout.FailedCount > 0 || !user.Lockout.LockedUntil.IsZero() {
		if err := e.store.ResetLoginFailures(ctx, user.ID); err != nil {
			e.log.Warn("login failures not reset", zap.String("user_id", user.ID), zap.Error(err))
		}
		user.Lockout = Lockout{}
	}
	if ip != "" {
		if err := e.reputation.RecordSuccessfulLogin(ctx, ip); err != nil {
			e.log.Warn("ip failure counter not cleared", zap.String("ip", ip), zap.Error(err))
		}
	}
	e.upgradeHash(ctx, user, req.Password)

	class := jwt.ClassSession
	if req.Remember {
		class = jwt.ClassLongLived
	}

	if user.TwoFactorEnabled {
		id, err := e.sessions.CreateChallenge(ctx, user.ID, string(class), e.config.TwoFactor.ChallengeTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
		}
		e.metrics.Inc(MetricTwoFactorRequired)
		return &LoginResult{User: user, TwoFactorRequired: true, ChallengeID: id}, nil
	}

	grant, err := e.CreateSession(ctx, user, class, req.Device)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	e.record(ctx, user.ID, ActionLogin, map[string]string{"class": string(class)})
	return &LoginResult{User: user, Grant: grant}, nil
}

func (e *Engine) loginFailed(ctx context.Context, ip, userID string) error {
	e.metrics.Inc(MetricLoginFailure)
	if ip == "" {
		return ErrInvalidCredentials
	}
	blocked, err := e.reputation.RecordFailedLogin(ctx, ip)
	if err != nil {
		e.metrics.Inc(MetricFailOpen)
		e.log.Warn("ip failed login not recorded", zap.String("ip", ip), zap.Error(err))
		return ErrInvalidCredentials
	}
	if blocked {
		e.metrics.Inc(MetricIPBlocked)
		e.log.Info("ip blocked after failed logins", zap.String("ip", ip), zap.String("user_id", userID))
		return ErrIPBlocked
	}
	return ErrInvalidCredentials
}

// upgradeHash rewrites legacy or weaker hashes after a successful login.
func (e *Engine) upgradeHash(ctx context.Context, user *User, pw string) {
	if !e.passwords.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := e.passwords.Hash(pw)
	if err != nil {
		e.log.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := e.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		e.log.Warn("password upgrade not stored", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

// Logout invalidates the session id was admitted with.
func (e *Engine) Logout(ctx context.Context, id *Identity) error {
	if err := e.InvalidateSession(ctx, id.Token); err != nil {
		return err
	}
	e.record(ctx, id.User.ID, ActionLogout, nil)
	return nil
}

// LogoutAll invalidates every session of the identity's user.
func (e *Engine) LogoutAll(ctx context.Context, id *Identity) (int, error) {
	n, err := e.InvalidateAllSessions(ctx, id.User.ID)
	if err != nil {
		return 0, err
	}
	e.record(ctx, id.User.ID, ActionLogout, map[string]string{"scope": "all"})
	return n, nil
}

// LockoutRemaining returns how long user stays locked at the engine clock.
func (e *Engine) LockoutRemaining(user *User) time.Duration {
	now := e.now()
	if !user.Lockout.Active(now) {
		return 0
	}
	return user.Lockout.LockedUntil.Sub(now)
}

// newLinkToken mints an opaque link token and its stored digest.
func newLinkToken() (string, string, error) {
	token, err := internal.NewOpaqueToken()
	if err != nil {
		return "", "", err
	}
	return token, internal.HashOpaqueToken(token), nil
}

func hashLinkToken(token string) string {
	return internal.HashOpaqueToken(token)
}
