package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/session"
)

var errInternal = errors.New("internal error")

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by [Authenticate].
func IdentityFromContext(ctx context.Context) (*docgate.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*docgate.Identity)
	return id, ok && id != nil
}

// Reputation rejects requests from blocked, bursting or suspicious IPs.
// Tracker failures admit the request.
func Reputation(engine *docgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := docgate.ClientIPFromContext(r.Context())
			if d := engine.CheckRequest(r.Context(), r, ip); d.Verdict == docgate.Reject {
				WriteError(w, d.Err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit counts the request against class and answers 429 with
// Retry-After once the window is full.
func RateLimit(engine *docgate.Engine, class docgate.RateClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := docgate.ClientIPFromContext(r.Context())
			retry, err := engine.AllowRate(r.Context(), class, ip)
			if err != nil {
				if retry > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				}
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate admits requests carrying a valid token bound to an active
// session of a verified, unlocked user.
func Authenticate(engine *docgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := engine.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				WriteError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after [Authenticate].
func RequireRole(engine *docgate.Engine, roles ...docgate.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			if err := engine.RequireRole(id, roles...); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCredits applies the daily top-up and rejects callers with an empty
// balance. It does not consume a credit.
func RequireCredits(engine *docgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, docgate.ErrUnauthorized)
				return
			}
			if _, err := engine.CheckCredits(r.Context(), id.User.ID); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest returns the bearer token, falling back to x-auth-token.
func TokenFromRequest(r *http.Request) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// DeviceFromRequest snapshots the optional device headers for a new session.
func DeviceFromRequest(r *http.Request) session.Device {
	return session.Device{
		ID:        headerOr(r, "X-Device-Id", "unknown"),
		Type:      headerOr(r, "X-Device-Type", "unknown"),
		OS:        headerOr(r, "X-Os", "unknown"),
		UserAgent: r.UserAgent(),
		IP:        docgate.ClientIPFromContext(r.Context()),
	}
}

func headerOr(r *http.Request, key, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get(key)); v != "" {
		return v
	}
	return fallback
}
