package docgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

func (e *Engine) link(path, token string) string {
	return strings.TrimRight(e.config.Verification.BaseURL, "/") + path + token
}

func (e *Engine) sendVerification(ctx context.Context, user *User) error {
	token, hash, err := newLinkToken()
	if err != nil {
		return err
	}
	expires := e.now().Add(e.config.Verification.TokenTTL)
	if err := e.store.SetVerificationToken(ctx, user.ID, hash, expires); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if e.mailer == nil {
		return ErrMailUnavailable
	}
	if err := e.mailer.SendVerification(ctx, user.Email, e.link("/verify/", token)); err != nil {
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}

// VerifyEmail consumes a verification token.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrVerificationInvalid
	}
	userID, err := e.store.ConsumeVerificationToken(ctx, hashLinkToken(token), e.now())
	if err != nil {
		if errors.Is(err, ErrVerificationInvalid) {
			return ErrVerificationInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.record(ctx, userID, ActionEmailVerification, nil)
	return nil
}

// ResendVerification mails a fresh verification link. Unknown and already
// verified addresses succeed silently.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	user, err := e.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.Verified {
		return nil
	}
	return e.sendVerification(ctx, user)
}

// RequestPasswordReset mails a reset link when email belongs to an account.
// The outcome is the same whether or not it does.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := e.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, hash, err := newLinkToken()
	if err != nil {
		return err
	}
	if err := e.store.SetResetToken(ctx, user.ID, hash, e.now().Add(e.config.Verification.ResetTTL)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.record(ctx, user.ID, ActionPasswordResetRequest, nil)

	if e.mailer == nil {
		e.log.Warn("password reset requested without a mailer", zap.String("user_id", user.ID))
		return nil
	}
	if err := e.mailer.SendPasswordReset(ctx, user.Email, e.link("/reset-password/", token)); err != nil {
		e.log.Warn("password reset mail not sent", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword sets a new password from a reset token, clears the lockout
// and invalidates every session of the account.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrResetInvalid
	}
	if err := e.checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	userID, err := e.store.ConsumeResetToken(ctx, hashLinkToken(token), hash, e.now())
	if err != nil {
		if errors.Is(err, ErrResetInvalid) {
			return ErrResetInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := e.InvalidateAllSessions(ctx, userID); err != nil {
		e.log.Error("sessions not invalidated after password reset", zap.String("user_id", userID), zap.Error(err))
	}
	e.metrics.Inc(MetricPasswordReset)
	e.record(ctx, userID, ActionPasswordResetComplete, nil)
	return nil
}

// ChangePassword replaces the password of the identity's user after checking
// the current one. Every other session of the user is invalidated.
func (e *Engine) ChangePassword(ctx context.Context, id *Identity, current, next string) error {
	ok, err := e.passwords.Verify(current, id.User.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	if err := e.checkPassword(next); err != nil {
		return err
	}
	hash, err := e.passwords.Hash(next)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePassword(ctx, id.User.ID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := e.sessions.InvalidateOthers(ctx, id.User.ID, id.Token); err != nil {
		e.log.Error("sessions not invalidated after password change", zap.String("user_id", id.User.ID), zap.Error(err))
	}
	e.record(ctx, id.User.ID, ActionPasswordChange, nil)
	return nil
}
