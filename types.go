package docgate

import (
	"context"
	"time"
)

// Role is the authorization role stored on a user and carried in tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Lockout is the per-account failed-login state.
type Lockout struct {
	FailedCount   int
	LastAttemptAt time.Time
	LockedUntil   time.Time
}

// Active reports whether the account is locked at now. A zero LockedUntil is
// never active.
func (l Lockout) Active(now time.Time) bool {
	return !l.LockedUntil.IsZero() && l.LockedUntil.After(now)
}

// User is the persisted credential record.
//
// Token fields hold SHA-256 hex digests; raw tokens only ever leave the
// engine by mail.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         Role

	Credits         int
	LastCreditReset time.Time
	TotalScans      int

	Verified                bool
	VerificationTokenHash   string
	VerificationTokenExpiry time.Time
	ResetTokenHash          string
	ResetTokenExpiry        time.Time

	Lockout Lockout

	TwoFactorEnabled bool
	TwoFactorSecret  string

	CreatedAt time.Time
}

// CreditRequestStatus is the review state of a [CreditRequest]. Only
// CreditRequestPending may transition.
type CreditRequestStatus string

const (
	CreditRequestPending  CreditRequestStatus = "pending"
	CreditRequestApproved CreditRequestStatus = "approved"
	CreditRequestRejected CreditRequestStatus = "rejected"
)

// CreditRequest asks an admin for additional credits.
type CreditRequest struct {
	ID          string
	UserID      string
	Amount      int
	Reason      string
	Status      CreditRequestStatus
	ReviewedBy  string
	AdminNote   string
	CreatedAt   time.Time
	ProcessedAt time.Time
}

// ActivityAction names an entry in the per-user activity log.
type ActivityAction string

const (
	ActionRegistration          ActivityAction = "REGISTRATION"
	ActionLogin                 ActivityAction = "LOGIN"
	ActionLogout                ActivityAction = "LOGOUT"
	ActionEmailVerification     ActivityAction = "EMAIL_VERIFICATION"
	ActionPasswordResetRequest  ActivityAction = "PASSWORD_RESET_REQUEST"
	ActionPasswordResetComplete ActivityAction = "PASSWORD_RESET_COMPLETE"
	ActionPasswordChange        ActivityAction = "PASSWORD_CHANGE"
	ActionTwoFactorEnabled      ActivityAction = "TWO_FACTOR_ENABLED"
	ActionTwoFactorDisabled     ActivityAction = "TWO_FACTOR_DISABLED"
	ActionDocumentUpload        ActivityAction = "DOCUMENT_UPLOAD"
	ActionCreditUse             ActivityAction = "CREDIT_USE"
	ActionCreditRequest         ActivityAction = "CREDIT_REQUEST"
)

// Activity is one activity log entry.
type Activity struct {
	ID        string
	UserID    string
	Action    ActivityAction
	Details   map[string]string
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Document is a scanned upload and its analysis.
type Document struct {
	ID          string
	UserID      string
	Filename    string
	ContentType string
	Size        int64
	Content     string
	Analysis    string
	CreatedAt   time.Time
}

// Analytics is the admin dashboard summary.
type Analytics struct {
	Users                 int
	VerifiedUsers         int
	OutstandingCredits    int
	PendingCreditRequests int
	Documents             int
}

// UserStore persists [User] records. Implementations must apply every
// mutation as a single atomic operation; the engine never holds a lock across
// calls.
type UserStore interface {
	// CreateUser inserts u. A duplicate email (case-insensitive) is ErrAccountExists.
	CreateUser(ctx context.Context, u *User) error
	// GetUserByID and GetUserByEmail return ErrUserNotFound when absent.
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	SetVerificationToken(ctx context.Context, userID, tokenHash string, expires time.Time) error
	// ConsumeVerificationToken marks the owner of tokenHash verified and clears
	// the token. An unknown or expired token is ErrVerificationInvalid.
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error
	// ConsumeResetToken stores passwordHash for the owner of tokenHash, clears
	// the token and the lockout. An unknown or expired token is ErrResetInvalid.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// RecordLoginFailure increments the failure count, stamps the attempt and
	// locks the account for lockFor once the count reaches threshold.
	RecordLoginFailure(ctx context.Context, userID string, now time.Time, threshold int, lockFor time.Duration) (Lockout, error)
	ResetLoginFailures(ctx context.Context, userID string) error

	// ResetDailyCredits sets credits to limit and last_credit_reset to now only
	// if last_credit_reset still equals seen. It reports whether it applied.
	ResetDailyCredits(ctx context.Context, userID string, limit int, seen, now time.Time) (bool, error)
	// ConsumeCredit decrements the balance if positive and returns the new
	// balance. An empty balance is ErrInsufficientCredits.
	ConsumeCredit(ctx context.Context, userID string) (int, error)
	SetCredits(ctx context.Context, userID string, credits int) error
	IncrementScans(ctx context.Context, userID string) error

	SetTwoFactorSecret(ctx context.Context, userID, secret string) error
	// EnableTwoFactor flips two-factor on and replaces the backup code set.
	EnableTwoFactor(ctx context.Context, userID string, backupCodes [][32]byte) error
	DisableTwoFactor(ctx context.Context, userID string) error
	// ConsumeBackupCode removes hash from the user's set and reports whether
	// it was present. Concurrent calls with the same hash succeed at most once.
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error)

	Analytics(ctx context.Context) (Analytics, error)
}

// CreditStore persists credit requests.
type CreditStore interface {
	CreateCreditRequest(ctx context.Context, r *CreditRequest) error
	// ListCreditRequests returns requests newest first. An empty userID lists all.
	ListCreditRequests(ctx context.Context, userID string) ([]CreditRequest, error)
	// ReviewCreditRequest moves a pending request to a terminal status and, on
	// approval, adds its amount to the user's balance in the same transaction.
	ReviewCreditRequest(ctx context.Context, id string, approve bool, adminID, note string, now time.Time) (*CreditRequest, error)
}

// ActivityStore persists the activity log.
type ActivityStore interface {
	RecordActivity(ctx context.Context, a *Activity) error
	// ListActivities returns up to limit entries for userID, newest first.
	// Empty actions matches every action.
	ListActivities(ctx context.Context, userID string, limit int, actions ...ActivityAction) ([]Activity, error)
}

// DocumentStore persists scanned documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, d *Document) error
}

// Store is the full persistence surface the engine needs.
type Store interface {
	UserStore
	CreditStore
	ActivityStore
	DocumentStore
}

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

// Analyzer produces an analysis of normalized document text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}
