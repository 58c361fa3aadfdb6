package docgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/MrEthical07/docgate/internal"
	"github.com/MrEthical07/docgate/jwt"
	"github.com/MrEthical07/docgate/session"
)

// TwoFactorSetup is returned by [Engine.BeginTwoFactorSetup].
type TwoFactorSetup struct {
	Secret string
	URL    string
}

// BeginTwoFactorSetup generates and stores a TOTP secret for userID. The
// account stays single-factor until [Engine.ConfirmTwoFactor] succeeds.
func (e *Engine) BeginTwoFactorSetup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.TwoFactor.Issuer,
		AccountName: user.Email,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.SetTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &TwoFactorSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmTwoFactor enables two-factor after a valid code and returns the
// backup codes. They are shown once; only their hashes are stored.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, userID, code string) ([]string, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotConfigured
	}
	if !e.validTOTP(code, user.TwoFactorSecret) {
		e.metrics.Inc(MetricTwoFactorFailure)
		return nil, ErrTwoFactorInvalid
	}

	cfg := e.config.TwoFactor
	codes := make([]string, 0, cfg.BackupCodeCount)
	hashes := make([][32]byte, 0, cfg.BackupCodeCount)
	for i := 0; i < cfg.BackupCodeCount; i++ {
		c, err := internal.NewBackupCode(cfg.BackupCodeLength, nil)
		if err != nil {
			return nil, err
		}
		codes = append(codes, internal.FormatBackupCode(c))
		hashes = append(hashes, internal.BackupCodeHash(userID, c))
	}

	if err := e.store.EnableTwoFactor(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricTwoFactorSuccess)
	e.record(ctx, userID, ActionTwoFactorEnabled, nil)
	return codes, nil
}

// CompleteTwoFactorLogin finishes a login that returned a challenge. code is
// a TOTP code or an unused backup code. Each backup code works once.
func (e *Engine) CompleteTwoFactorLogin(ctx context.Context, challengeID, code string, device session.Device) (*LoginResult, error) {
	ch, err := e.sessions.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, session.ErrChallengeNotFound) {
			return nil, ErrTwoFactorChallengeInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user, err := e.store.GetUserByID(ctx, ch.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTwoFactorChallengeInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.Lockout.Active(e.now()) {
		return nil, ErrAccountLocked
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotConfigured
	}

	backup := false
	switch {
	case e.validTOTP(code, user.TwoFactorSecret):
		if err := e.consumeChallenge(ctx, challengeID); err != nil {
			return nil, err
		}
	case e.isBackupCode(code):
		// Take the challenge before the code: a dead challenge must not burn a code.
		if err := e.consumeChallenge(ctx, challengeID); err != nil {
			return nil, err
		}
		used, err := e.store.ConsumeBackupCode(ctx, user.ID, internal.BackupCodeHash(user.ID, internal.CanonicalizeBackupCode(code)))
		if err != nil {
			e.restoreChallenge(ctx, ch)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !used {
			e.metrics.Inc(MetricTwoFactorFailure)
			ch.Attempts++
			if ch.Attempts >= e.config.TwoFactor.ChallengeMaxAttempts {
				return nil, ErrTwoFactorChallengeInvalid
			}
			e.restoreChallenge(ctx, ch)
			return nil, ErrTwoFactorInvalid
		}
		e.metrics.Inc(MetricBackupCodeUsed)
		backup = true
	default:
		e.metrics.Inc(MetricTwoFactorFailure)
		if err := e.sessions.FailChallenge(ctx, challengeID, e.config.TwoFactor.ChallengeMaxAttempts); err != nil {
			if errors.Is(err, session.ErrChallengeExhausted) || errors.Is(err, session.ErrChallengeNotFound) {
				return nil, ErrTwoFactorChallengeInvalid
			}
			e.log.Warn("challenge failure not recorded", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, ErrTwoFactorInvalid
	}

	if device.IP == "" {
		device.IP = ClientIPFromContext(ctx)
	}
	grant, err := e.CreateSession(ctx, user, jwt.Class(ch.Class), device)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricTwoFactorSuccess)
	e.metrics.Inc(MetricLoginSuccess)
	details := map[string]string{"class": ch.Class, "second_factor": "totp"}
	if backup {
		details["second_factor"] = "backup_code"
	}
	e.record(ctx, user.ID, ActionLogin, details)
	return &LoginResult{User: user, Grant: grant}, nil
}

// DisableTwoFactor turns two-factor off after a valid TOTP code and discards
// the secret and backup codes.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return ErrTwoFactorNotConfigured
	}
	if !e.validTOTP(code, user.TwoFactorSecret) {
		e.metrics.Inc(MetricTwoFactorFailure)
		return ErrTwoFactorInvalid
	}
	if err := e.store.DisableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.record(ctx, userID, ActionTwoFactorDisabled, nil)
	return nil
}

func (e *Engine) consumeChallenge(ctx context.Context, id string) error {
	if err := e.sessions.ConsumeChallenge(ctx, id); err != nil {
		if errors.Is(err, session.ErrChallengeNotFound) {
			return ErrTwoFactorChallengeInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) restoreChallenge(ctx context.Context, ch *session.Challenge) {
	if err := e.sessions.RestoreChallenge(ctx, ch); err != nil {
		e.log.Warn("challenge not restored", zap.String("user_id", ch.UserID), zap.Error(err))
	}
}

func (e *Engine) isBackupCode(code string) bool {
	return len(internal.CanonicalizeBackupCode(code)) == e.config.TwoFactor.BackupCodeLength
}

func (e *Engine) validTOTP(code, secret string) bool {
	if len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      e.config.TwoFactor.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
