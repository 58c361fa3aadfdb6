package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrChallengeNotFound covers unknown, expired and already used challenges.
	ErrChallengeNotFound = errors.New("login challenge not found")
	// ErrChallengeExhausted is returned once a challenge ran out of attempts.
	ErrChallengeExhausted = errors.New("login challenge attempts exceeded")
)

// Challenge is a pending second-factor login.
type Challenge struct {
	ID       string
	UserID   string
	Class    string
	Attempts int
	// ExpiresIn is the time to live left when the challenge was read.
	ExpiresIn time.Duration
}

// KEYS[1] challenge; ARGV[1] max attempts.
var failChallengeLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local n = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if n >= tonumber(ARGV[1]) then
  redis.call("DEL", KEYS[1])
end
return n
`)

// KEYS[1] challenge; ARGV uid, cls, attempts, ttl ms.
var restoreChallengeLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "uid", ARGV[1], "cls", ARGV[2], "attempts", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

func (s *Store) challengeKey(id string) string {
	return s.prefix + ":mfa:" + id
}

// CreateChallenge stores a second-factor challenge for userID that lives for ttl.
func (s *Store) CreateChallenge(ctx context.Context, userID, class string, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	key := s.challengeKey(id)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "uid", userID, "cls", class, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return id, nil
}

// GetChallenge reads a pending challenge without consuming it.
func (s *Store) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	if id == "" {
		return nil, ErrChallengeNotFound
	}
	key := s.challengeKey(id)
	var (
		get *redis.MapStringStringCmd
		ttl *redis.DurationCmd
	)
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGetAll(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	fields := get.Val()
	if len(fields) == 0 || fields["uid"] == "" {
		return nil, ErrChallengeNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &Challenge{
		ID:        id,
		UserID:    fields["uid"],
		Class:     fields["cls"],
		Attempts:  attempts,
		ExpiresIn: ttl.Val(),
	}, nil
}

// FailChallenge records a wrong code. The challenge is destroyed once
// maxAttempts failures accumulate.
func (s *Store) FailChallenge(ctx context.Context, id string, maxAttempts int) error {
	n, err := failChallengeLua.Run(ctx, s.redis, []string{s.challengeKey(id)}, maxAttempts).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch {
	case n < 0:
		return ErrChallengeNotFound
	case n >= maxAttempts:
		return ErrChallengeExhausted
	}
	return nil
}

// ConsumeChallenge deletes the challenge. Only the first caller succeeds.
func (s *Store) ConsumeChallenge(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, s.challengeKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

// RestoreChallenge puts back a consumed challenge with ch.Attempts and
// ch.ExpiresIn. A challenge that already exists again is left alone.
func (s *Store) RestoreChallenge(ctx context.Context, ch *Challenge) error {
	if ch == nil || ch.ExpiresIn < time.Millisecond {
		return ErrChallengeNotFound
	}
	err := restoreChallengeLua.Run(ctx, s.redis, []string{s.challengeKey(ch.ID)},
		ch.UserID, ch.Class, ch.Attempts, ch.ExpiresIn.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
