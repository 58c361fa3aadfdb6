package docgate

import "errors"

// Authentication failures. All map to 401 with a generic message.
var (
	// ErrNoToken is returned when a request carries no bearer token.
	ErrNoToken = errors.New("no token")
	// ErrTokenInvalid covers bad signatures, expired and malformed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionInvalid is returned when no active, unexpired session matches the token.
	ErrSessionInvalid = errors.New("session expired or invalid")
	// ErrUnauthorized is the generic authentication failure used for backend errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountUnverified  = errors.New("email not verified")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTwoFactorInvalid is returned for a wrong TOTP or backup code.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorChallengeInvalid covers unknown, expired and exhausted login challenges.
	ErrTwoFactorChallengeInvalid = errors.New("two-factor challenge invalid")
)

// Authorization and quota failures.
var (
	ErrForbidden           = errors.New("forbidden")
	ErrIPBlocked           = errors.New("ip blocked")
	ErrSuspiciousActivity  = errors.New("suspicious activity")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRateLimited         = errors.New("rate limited")
	// ErrBurstLimited is returned when the per-IP one-minute burst cap trips.
	ErrBurstLimited = errors.New("too many requests")
)

// Request and state errors.
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrPasswordPolicy          = errors.New("password policy violation")
	ErrAccountExists           = errors.New("account already exists")
	ErrVerificationInvalid     = errors.New("verification token invalid or expired")
	ErrResetInvalid            = errors.New("reset token invalid or expired")
	ErrTwoFactorNotConfigured  = errors.New("two-factor not configured")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	ErrNotFound                = errors.New("not found")
	ErrCreditRequestNotFound   = errors.New("credit request not found")
	ErrCreditRequestProcessed  = errors.New("credit request already processed")
	ErrUnsupportedDocument     = errors.New("unsupported document type")
	ErrDocumentTooLarge        = errors.New("document too large")
)

// Backend errors.
var (
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrSessionCreation     = errors.New("session creation failed")
	ErrAnalyzerUnavailable = errors.New("analyzer not configured")
	ErrAnalysisFailed      = errors.New("document analysis failed")
	ErrMailUnavailable     = errors.New("mail delivery failed")
)
