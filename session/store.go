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
	// ErrNotFound is returned when no admissible session matches a lookup.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	fieldID        = "id"
	fieldUserID    = "uid"
	fieldClass     = "cls"
	fieldActive    = "active"
	fieldCreated   = "created"
	fieldLast      = "last"
	fieldExpires   = "expires"
	fieldDeviceID  = "dev_id"
	fieldDevType   = "dev_type"
	fieldDevOS     = "dev_os"
	fieldUserAgent = "ua"
	fieldIP        = "ip"
)

var touchLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "last", ARGV[1])
return 1
`)

var invalidateLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "active", "0")
return 1
`)

// KEYS[1] user index; ARGV[1] session key prefix; ARGV[2] hash to keep.
var invalidateAllLua = redis.NewScript(`
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, h in ipairs(members) do
  if h ~= ARGV[2] then
    local key = ARGV[1] .. h
    if redis.call("EXISTS", key) == 1 then
      if redis.call("HGET", key, "active") == "1" then
        redis.call("HSET", key, "active", "0")
        n = n + 1
      end
    else
      redis.call("SREM", KEYS[1], h)
    end
  end
end
return n
`)

// Store persists sessions in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store]. prefix namespaces every key.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ds"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) sessionPrefix() string {
	return s.prefix + ":s:"
}

func (s *Store) key(tokenHash string) string {
	return s.sessionPrefix() + tokenHash
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create persists a new active session for token. ID and TokenHash are
// filled in on sess.
func (s *Store) Create(ctx context.Context, token string, sess *Session) error {
	if sess == nil || sess.UserID == "" {
		return errors.New("session: user id required")
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		return errors.New("session: expiry must follow creation")
	}

	sess.ID = uuid.NewString()
	sess.TokenHash = HashToken(token)
	sess.Active = true
	if sess.LastActivity.IsZero() {
		sess.LastActivity = sess.CreatedAt
	}

	key := s.key(sess.TokenHash)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encode(sess))
		pipe.ExpireAt(ctx, key, sess.ExpiresAt)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.TokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Lookup returns the session bound to token when it belongs to userID, is
// active and has not expired at now. Any other state is ErrNotFound.
func (s *Store) Lookup(ctx context.Context, token, userID string, now time.Time) (*Session, error) {
	hash := HashToken(token)
	fields, err := s.redis.HGetAll(ctx, s.key(hash)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	sess, err := decode(hash, fields)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID || !sess.Valid(now) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Touch records activity on the session bound to token. It reports false when
// the session no longer exists.
func (s *Store) Touch(ctx context.Context, token string, at time.Time) (bool, error) {
	n, err := touchLua.Run(ctx, s.redis, []string{s.key(HashToken(token))}, formatTime(at)).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Invalidate deactivates the session bound to token. Unknown or already
// inactive tokens are a no-op.
func (s *Store) Invalidate(ctx context.Context, token string) error {
	if err := invalidateLua.Run(ctx, s.redis, []string{s.key(HashToken(token))}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// InvalidateAll deactivates every active session of userID and returns how
// many were flipped.
func (s *Store) InvalidateAll(ctx context.Context, userID string) (int, error) {
	return s.invalidateAll(ctx, userID, "")
}

// InvalidateOthers is InvalidateAll except for the session bound to keepToken.
func (s *Store) InvalidateOthers(ctx context.Context, userID, keepToken string) (int, error) {
	return s.invalidateAll(ctx, userID, HashToken(keepToken))
}

func (s *Store) invalidateAll(ctx context.Context, userID, keepHash string) (int, error) {
	n, err := invalidateAllLua.Run(ctx, s.redis, []string{s.userKey(userID)}, s.sessionPrefix(), keepHash).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// ListActive returns the admissible sessions of userID at now, pruning index
// entries whose records have expired.
func (s *Store) ListActive(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	userKey := s.userKey(userID)
	hashes, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, h := range hashes {
			cmds[i] = pipe.HGetAll(ctx, s.key(h))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var (
		out   []Session
		stale []interface{}
	)
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, hashes[i])
			continue
		}
		sess, err := decode(hashes[i], fields)
		if err != nil || !sess.Valid(now) {
			continue
		}
		out = append(out, *sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return out, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return out, nil
}

// Ping reports round-trip latency to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func encode(sess *Session) map[string]interface{} {
	active := "0"
	if sess.Active {
		active = "1"
	}
	return map[string]interface{}{
		fieldID:        sess.ID,
		fieldUserID:    sess.UserID,
		fieldClass:     sess.Class,
		fieldActive:    active,
		fieldCreated:   formatTime(sess.CreatedAt),
		fieldLast:      formatTime(sess.LastActivity),
		fieldExpires:   formatTime(sess.ExpiresAt),
		fieldDeviceID:  sess.Device.ID,
		fieldDevType:   sess.Device.Type,
		fieldDevOS:     sess.Device.OS,
		fieldUserAgent: sess.Device.UserAgent,
		fieldIP:        sess.Device.IP,
	}
}

func decode(hash string, f map[string]string) (*Session, error) {
	created, err := parseTime(f[fieldCreated])
	if err != nil {
		return nil, fmt.Errorf("session: corrupt created: %w", err)
	}
	last, err := parseTime(f[fieldLast])
	if err != nil {
		return nil, fmt.Errorf("session: corrupt last activity: %w", err)
	}
	expires, err := parseTime(f[fieldExpires])
	if err != nil {
		return nil, fmt.Errorf("session: corrupt expiry: %w", err)
	}

	return &Session{
		ID:           f[fieldID],
		UserID:       f[fieldUserID],
		TokenHash:    hash,
		Class:        f[fieldClass],
		Active:       f[fieldActive] == "1",
		CreatedAt:    created,
		LastActivity: last,
		ExpiresAt:    expires,
		Device: Device{
			ID:        f[fieldDeviceID],
			Type:      f[fieldDevType],
			OS:        f[fieldDevOS],
			UserAgent: f[fieldUserAgent],
			IP:        f[fieldIP],
		},
	}, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseTime(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
