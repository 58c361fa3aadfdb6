package postgres

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/docgate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func createUser(t *testing.T, s *Store, credits int) *docgate.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	u := &docgate.User{
		ID:              uuid.NewString(),
		Email:           uuid.NewString() + "@example.com",
		Username:        "tester",
		PasswordHash:    "hash",
		Role:            docgate.RoleUser,
		Credits:         credits,
		LastCreditReset: now,
		CreatedAt:       now,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 20)

	dup := *u
	dup.ID = uuid.NewString()
	dup.Email = strings.ToUpper(u.Email)
	err := s.CreateUser(ctx, &dup)
	assert.ErrorIs(t, err, docgate.ErrAccountExists)

	got, err := s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, 20, got.Credits)

	_, err = s.GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, docgate.ErrUserNotFound)
}

func TestConsumeCreditConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 5)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		denied int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ConsumeCredit(ctx, u.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, docgate.ErrInsufficientCredits) {
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, denied)
}

func TestResetDailyCreditsCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 0)

	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)

	next := stored.LastCreditReset.Add(24 * time.Hour)
	applied, err := s.ResetDailyCredits(ctx, u.ID, 20, stored.LastCreditReset, next)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ResetDailyCredits(ctx, u.ID, 20, stored.LastCreditReset, next)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRecordLoginFailureLocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 0)
	now := time.Now().UTC()

	var l docgate.Lockout
	var err error
	for i := 0; i < 3; i++ {
		l, err = s.RecordLoginFailure(ctx, u.ID, now, 3, 30*time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.FailedCount)
	assert.True(t, l.Active(now))

	require.NoError(t, s.ResetLoginFailures(ctx, u.ID))
	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Lockout.Active(now))
	assert.Zero(t, got.Lockout.FailedCount)
}

func TestBackupCodeConsumedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 0)

	code := [32]byte{1, 2, 3}
	require.NoError(t, s.EnableTwoFactor(ctx, u.ID, [][32]byte{code, {4, 5, 6}}))

	ok, err := s.ConsumeBackupCode(ctx, u.ID, code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeBackupCode(ctx, u.ID, code)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DisableTwoFactor(ctx, u.ID))
	ok, err = s.ConsumeBackupCode(ctx, u.ID, [32]byte{4, 5, 6})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerificationTokenSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 0)
	now := time.Now().UTC()
	hash := uuid.NewString()

	require.NoError(t, s.SetVerificationToken(ctx, u.ID, hash, now.Add(time.Hour)))

	id, err := s.ConsumeVerificationToken(ctx, hash, now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = s.ConsumeVerificationToken(ctx, hash, now)
	assert.ErrorIs(t, err, docgate.ErrVerificationInvalid)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
}

func TestReviewCreditRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 2)
	now := time.Now().UTC()

	r := &docgate.CreditRequest{UserID: u.ID, Amount: 10, Reason: "more", CreatedAt: now}
	require.NoError(t, s.CreateCreditRequest(ctx, r))

	reviewed, err := s.ReviewCreditRequest(ctx, r.ID, true, "admin-1", "ok", now)
	require.NoError(t, err)
	assert.Equal(t, docgate.CreditRequestApproved, reviewed.Status)
	assert.Equal(t, "admin-1", reviewed.ReviewedBy)

	_, err = s.ReviewCreditRequest(ctx, r.ID, false, "admin-1", "", now)
	assert.ErrorIs(t, err, docgate.ErrCreditRequestProcessed)

	_, err = s.ReviewCreditRequest(ctx, uuid.NewString(), true, "admin-1", "", now)
	assert.ErrorIs(t, err, docgate.ErrCreditRequestNotFound)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Credits)

	list, err := s.ListCreditRequests(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListActivitiesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, 0)
	base := time.Now().UTC()

	for i, action := range []docgate.ActivityAction{docgate.ActionRegistration, docgate.ActionLogin, docgate.ActionDocumentUpload} {
		require.NoError(t, s.RecordActivity(ctx, &docgate.Activity{
			UserID:    u.ID,
			Action:    action,
			Details:   map[string]string{"n": string(rune('a' + i))},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := s.ListActivities(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, docgate.ActionDocumentUpload, all[0].Action)
	assert.Equal(t, "c", all[0].Details["n"])

	logins, err := s.ListActivities(ctx, u.ID, 10, docgate.ActionLogin)
	require.NoError(t, err)
	require.Len(t, logins, 1)

	limited, err := s.ListActivities(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
