package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class selects the lifetime of an issued token.
type Class string

const (
	// ClassSession is the default browser login token.
	ClassSession Class = "session"
	// ClassLongLived is issued for "remember me" logins.
	ClassLongLived Class = "long"
)

const minSecretBytes = 32

// ErrInvalidToken is returned for every parse failure. The underlying cause
// is wrapped for logging but callers must not surface it.
var ErrInvalidToken = errors.New("invalid token")

// Config defines signing parameters.
type Config struct {
	Secret       []byte
	SessionTTL   time.Duration
	LongLivedTTL time.Duration
	Issuer       string
	Leeway       time.Duration
}

// Claims is the single payload contract for every issued token.
type Claims struct {
	UID   string `json:"uid"`
	Role  string `json:"role"`
	Class Class  `json:"cls"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.SessionTTL <= 0 || cfg.LongLivedTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// WithClock replaces the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the lifetime configured for class.
func (m *Manager) TTL(class Class) time.Duration {
	if class == ClassLongLived {
		return m.config.LongLivedTTL
	}
	return m.config.SessionTTL
}

// Issue signs a token for uid. The returned expiry is the exact exp claim.
func (m *Manager) Issue(uid, role string, class Class) (string, time.Time, error) {
	if uid == "" {
		return "", time.Time{}, errors.New("jwt: empty subject")
	}
	if class != ClassLongLived {
		class = ClassSession
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.TTL(class))

	claims := Claims{
		UID:   uid,
		Role:  role,
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, expiry and issuer.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
