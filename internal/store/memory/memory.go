// Package memory is an in-process docgate.Store used by tests and local
// development. Every method holds a single mutex, so each call is atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/docgate"
)

// Store implements docgate.Store in memory.
type Store struct {
	mu sync.Mutex

	users    map[string]*docgate.User
	byEmail  map[string]string
	backup   map[string]map[[32]byte]struct{}
	requests map[string]*docgate.CreditRequest
	activity []docgate.Activity
	docs     map[string]*docgate.Document
}

var _ docgate.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*docgate.User),
		byEmail:  make(map[string]string),
		backup:   make(map[string]map[[32]byte]struct{}),
		requests: make(map[string]*docgate.CreditRequest),
		docs:     make(map[string]*docgate.Document),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) user(id string) (*docgate.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, docgate.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u *docgate.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return docgate.ErrAccountExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := s.users[u.ID]; ok {
		return docgate.ErrAccountExists
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[key] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*docgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*docgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, docgate.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// ListUsers returns users ordered by creation time.
func (s *Store) ListUsers(context.Context) ([]docgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]docgate.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetVerificationToken(_ context.Context, userID, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.VerificationTokenHash = tokenHash
	u.VerificationTokenExpiry = expires
	return nil
}

func (s *Store) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenHash == "" {
		return "", docgate.ErrVerificationInvalid
	}
	for _, u := range s.users {
		if u.VerificationTokenHash != tokenHash {
			continue
		}
		if !u.VerificationTokenExpiry.After(now) {
			return "", docgate.ErrVerificationInvalid
		}
		u.Verified = true
		u.VerificationTokenHash = ""
		u.VerificationTokenExpiry = time.Time{}
		return u.ID, nil
	}
	return "", docgate.ErrVerificationInvalid
}

func (s *Store) SetResetToken(_ context.Context, userID, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.ResetTokenHash = tokenHash
	u.ResetTokenExpiry = expires
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenHash == "" {
		return "", docgate.ErrResetInvalid
	}
	for _, u := range s.users {
		if u.ResetTokenHash != tokenHash {
			continue
		}
		if !u.ResetTokenExpiry.After(now) {
			return "", docgate.ErrResetInvalid
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetTokenExpiry = time.Time{}
		u.Lockout = docgate.Lockout{}
		return u.ID, nil
	}
	return "", docgate.ErrResetInvalid
}

func (s *Store) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *Store) RecordLoginFailure(_ context.Context, userID string, now time.Time, threshold int, lockFor time.Duration) (docgate.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return docgate.Lockout{}, err
	}
	u.Lockout.FailedCount++
	u.Lockout.LastAttemptAt = now
	if threshold > 0 && u.Lockout.FailedCount >= threshold {
		u.Lockout.LockedUntil = now.Add(lockFor)
	}
	return u.Lockout, nil
}

func (s *Store) ResetLoginFailures(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Lockout = docgate.Lockout{}
	return nil
}

func (s *Store) ResetDailyCredits(_ context.Context, userID string, limit int, seen, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return false, err
	}
	if !u.LastCreditReset.Equal(seen) {
		return false, nil
	}
	u.Credits = limit
	u.LastCreditReset = now
	return true, nil
}

func (s *Store) ConsumeCredit(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return 0, err
	}
	if u.Credits <= 0 {
		return 0, docgate.ErrInsufficientCredits
	}
	u.Credits--
	return u.Credits, nil
}

func (s *Store) SetCredits(_ context.Context, userID string, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Credits = credits
	return nil
}

func (s *Store) IncrementScans(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.TotalScans++
	return nil
}

func (s *Store) SetTwoFactorSecret(_ context.Context, userID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.TwoFactorSecret = secret
	return nil
}

func (s *Store) EnableTwoFactor(_ context.Context, userID string, backupCodes [][32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	set := make(map[[32]byte]struct{}, len(backupCodes))
	for _, h := range backupCodes {
		set[h] = struct{}{}
	}
	u.TwoFactorEnabled = true
	s.backup[userID] = set
	return nil
}

func (s *Store) DisableTwoFactor(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.TwoFactorEnabled = false
	u.TwoFactorSecret = ""
	delete(s.backup, userID)
	return nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.user(userID); err != nil {
		return false, err
	}
	set := s.backup[userID]
	if _, ok := set[hash]; !ok {
		return false, nil
	}
	delete(set, hash)
	return true, nil
}

// BackupCodesRemaining reports how many unused backup codes userID holds.
func (s *Store) BackupCodesRemaining(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backup[userID])
}

func (s *Store) Analytics(context.Context) (docgate.Analytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a docgate.Analytics
	for _, u := range s.users {
		a.Users++
		if u.Verified {
			a.VerifiedUsers++
		}
		a.OutstandingCredits += u.Credits
	}
	for _, r := range s.requests {
		if r.Status == docgate.CreditRequestPending {
			a.PendingCreditRequests++
		}
	}
	a.Documents = len(s.docs)
	return a, nil
}

func (s *Store) CreateCreditRequest(_ context.Context, r *docgate.CreditRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.user(r.UserID); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) ListCreditRequests(_ context.Context, userID string) ([]docgate.CreditRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []docgate.CreditRequest
	for _, r := range s.requests {
		if userID == "" || r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ReviewCreditRequest(_ context.Context, id string, approve bool, adminID, note string, now time.Time) (*docgate.CreditRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, docgate.ErrCreditRequestNotFound
	}
	if r.Status != docgate.CreditRequestPending {
		return nil, docgate.ErrCreditRequestProcessed
	}
	if approve {
		u, err := s.user(r.UserID)
		if err != nil {
			return nil, err
		}
		u.Credits += r.Amount
		r.Status = docgate.CreditRequestApproved
	} else {
		r.Status = docgate.CreditRequestRejected
	}
	r.ReviewedBy = adminID
	r.AdminNote = note
	r.ProcessedAt = now

	cp := *r
	return &cp, nil
}

func (s *Store) RecordActivity(_ context.Context, a *docgate.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	if a.Details != nil {
		cp.Details = make(map[string]string, len(a.Details))
		for k, v := range a.Details {
			cp.Details[k] = v
		}
	}
	s.activity = append(s.activity, cp)
	return nil
}

// ListActivities walks the log backwards so ties keep insertion order.
func (s *Store) ListActivities(_ context.Context, userID string, limit int, actions ...docgate.ActivityAction) ([]docgate.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[docgate.ActivityAction]bool, len(actions))
	for _, a := range actions {
		want[a] = true
	}

	var out []docgate.Activity
	for i := len(s.activity) - 1; i >= 0; i-- {
		a := s.activity[i]
		if a.UserID != userID {
			continue
		}
		if len(want) > 0 && !want[a.Action] {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) SaveDocument(_ context.Context, d *docgate.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	cp := *d
	s.docs[d.ID] = &cp
	return nil
}

// Documents returns every saved document of userID.
func (s *Store) Documents(userID string) []docgate.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []docgate.Document
	for _, d := range s.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out
}
