package docgate

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/docgate/password"
)

// Config holds every engine tunable. It is read once by [Builder.Build] and
// must not be mutated afterwards.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Password     password.Config
	Lockout      LockoutConfig
	Reputation   ReputationConfig
	RateLimit    RateLimitConfig
	Credits      CreditsConfig
	TwoFactor    TwoFactorConfig
	Verification VerificationConfig
	Documents    DocumentConfig
	Audit        AuditConfig
	Network      NetworkConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. Secret is an HS256 key of at least 32 bytes.
type JWTConfig struct {
	Secret       string
	Issuer       string
	SessionTTL   time.Duration
	LongLivedTTL time.Duration
	Leeway       time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis session store.
type SessionConfig struct {
	KeyPrefix string
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls per-account lockout after repeated bad passwords.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
REPUTATION CONFIG
====================================
*/

// ReputationConfig controls per-IP abuse tracking.
type ReputationConfig struct {
	FailedLoginThreshold int
	FailedLoginWindow    time.Duration
	BlockDuration        time.Duration
	SuspiciousWindow     time.Duration
	SuspiciousThreshold  int
	BurstWindow          time.Duration
	BurstMax             int
	MaxUserAgentLength   int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateWindow is a fixed counting window.
type RateWindow struct {
	Length time.Duration
	Max    int
}

// RateLimitConfig holds one window per route class.
type RateLimitConfig struct {
	API   RateWindow
	Auth  RateWindow
	Email RateWindow
}

/*
====================================
CREDITS CONFIG
====================================
*/

// CreditsConfig controls the daily credit quota. The day boundary is
// computed in Location.
type CreditsConfig struct {
	DailyLimit int
	Location   *time.Location
}

/*
====================================
TWO FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls TOTP enrollment and the login challenge.
type TwoFactorConfig struct {
	Issuer               string
	BackupCodeCount      int
	BackupCodeLength     int
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	// Skew is the number of 30-second periods accepted on either side of now.
	Skew uint
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls email verification and password reset links.
type VerificationConfig struct {
	TokenTTL        time.Duration
	ResetTTL        time.Duration
	BaseURL         string
	RequireVerified bool
}

// DocumentConfig bounds uploaded documents.
type DocumentConfig struct {
	MaxBytes     int64
	MaxTextChars int
}

// AuditConfig controls the asynchronous activity log.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// NetworkConfig controls client address resolution.
type NetworkConfig struct {
	// TrustForwardedFor takes the first X-Forwarded-For entry as the client IP.
	// Enable it only behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// DefaultConfig returns the production defaults. JWT.Secret is left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:       "docgate",
			SessionTTL:   24 * time.Hour,
			LongLivedTTL: 7 * 24 * time.Hour,
		},
		Session:  SessionConfig{KeyPrefix: "ds"},
		Password: password.DefaultConfig(),
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Reputation: ReputationConfig{
			FailedLoginThreshold: 5,
			FailedLoginWindow:    30 * time.Minute,
			BlockDuration:        30 * time.Minute,
			SuspiciousWindow:     30 * time.Minute,
			SuspiciousThreshold:  5,
			BurstWindow:          time.Minute,
			BurstMax:             100,
			MaxUserAgentLength:   500,
		},
		RateLimit: RateLimitConfig{
			API:   RateWindow{Length: 15 * time.Minute, Max: 100},
			Auth:  RateWindow{Length: time.Hour, Max: 10},
			Email: RateWindow{Length: 24 * time.Hour, Max: 5},
		},
		Credits: CreditsConfig{
			DailyLimit: 20,
			Location:   time.UTC,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:               "docgate",
			BackupCodeCount:      10,
			BackupCodeLength:     8,
			ChallengeTTL:         5 * time.Minute,
			ChallengeMaxAttempts: 5,
			Skew:                 1,
		},
		Verification: VerificationConfig{
			TokenTTL:        24 * time.Hour,
			ResetTTL:        time.Hour,
			BaseURL:         "http://localhost:3000",
			RequireVerified: true,
		},
		Documents: DocumentConfig{
			MaxBytes:     5 << 20,
			MaxTextChars: 4000,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Network: NetworkConfig{TrustForwardedFor: false},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT Secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.SessionTTL <= 0 || c.JWT.LongLivedTTL <= 0 {
		return errors.New("JWT TTLs must be > 0")
	}
	if c.JWT.LongLivedTTL < c.JWT.SessionTTL {
		return errors.New("JWT LongLivedTTL must be >= SessionTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > time.Minute {
		return errors.New("JWT Leeway must be within [0, 1m]")
	}

	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	r := c.Reputation
	if r.FailedLoginThreshold < 1 || r.SuspiciousThreshold < 1 || r.BurstMax < 1 {
		return errors.New("Reputation thresholds must be >= 1")
	}
	if r.FailedLoginWindow <= 0 || r.BlockDuration <= 0 || r.SuspiciousWindow <= 0 || r.BurstWindow <= 0 {
		return errors.New("Reputation windows must be > 0")
	}
	if r.MaxUserAgentLength < 1 {
		return errors.New("Reputation MaxUserAgentLength must be >= 1")
	}

	for name, w := range map[string]RateWindow{"API": c.RateLimit.API, "Auth": c.RateLimit.Auth, "Email": c.RateLimit.Email} {
		if w.Length <= 0 || w.Max < 1 {
			return fmt.Errorf("RateLimit %s window must have Length > 0 and Max >= 1", name)
		}
	}

	if c.Credits.DailyLimit < 1 {
		return errors.New("Credits DailyLimit must be >= 1")
	}

	if c.TwoFactor.BackupCodeCount < 1 || c.TwoFactor.BackupCodeLength < 8 {
		return errors.New("TwoFactor needs BackupCodeCount >= 1 and BackupCodeLength >= 8")
	}
	if c.TwoFactor.ChallengeTTL <= 0 || c.TwoFactor.ChallengeMaxAttempts < 1 {
		return errors.New("TwoFactor challenge TTL and attempts must be positive")
	}
	if c.TwoFactor.Skew > 2 {
		return errors.New("TwoFactor Skew must be <= 2")
	}

	if c.Verification.TokenTTL <= 0 || c.Verification.ResetTTL <= 0 {
		return errors.New("Verification TTLs must be > 0")
	}

	if c.Documents.MaxBytes <= 0 || c.Documents.MaxTextChars <= 0 {
		return errors.New("Documents limits must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
