package reputation

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/docgate/internal/counter"
)

var (
	// ErrBlocked is the rejection cause for an IP carrying the block flag.
	ErrBlocked = errors.New("ip blocked")
	// ErrBurst is the rejection cause when the one-minute burst cap trips.
	ErrBurst = errors.New("request burst exceeded")
	// ErrSuspicious is the rejection cause when the suspicious score trips.
	ErrSuspicious = errors.New("suspicious activity")
)

// Verdict is the outcome class of a reputation check.
type Verdict uint8

const (
	Admit Verdict = iota
	Reject
	AdmitWithError
)

func (v Verdict) String() string {
	switch v {
	case Admit:
		return "admit"
	case Reject:
		return "reject"
	case AdmitWithError:
		return "admit_with_error"
	default:
		return "unknown"
	}
}

// Decision is returned by every tracker check. Err holds the rejection cause
// for Reject and the swallowed backend error for AdmitWithError.
type Decision struct {
	Verdict Verdict
	Err     error
}

func admit() Decision { return Decision{Verdict: Admit} }
func reject(cause error) Decision { return Decision{Verdict: Reject, Err: cause} }
func admitWithError(err error) Decision { return Decision{Verdict: AdmitWithError, Err: err} }

// GeoResolver returns the ISO country code for ip, or "" when unknown.
type GeoResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Config holds tracker thresholds.
type Config struct {
	FailedLoginThreshold int
	FailedLoginWindow    time.Duration
	BlockDuration        time.Duration
	SuspiciousWindow     time.Duration
	SuspiciousThreshold  int
	BurstWindow          time.Duration
	BurstMax             int
	MaxUserAgentLength   int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		FailedLoginThreshold: 5,
		FailedLoginWindow:    30 * time.Minute,
		BlockDuration:        30 * time.Minute,
		SuspiciousWindow:     30 * time.Minute,
		SuspiciousThreshold:  5,
		BurstWindow:          time.Minute,
		BurstMax:             100,
		MaxUserAgentLength:   500,
	}
}

// Request is the subset of an HTTP request the heuristics look at.
type Request struct {
	IP             string
	Method         string
	UserAgent      string
	AcceptLanguage string
	Accept         string
	ContentType    string
}

// RequestFromHTTP extracts the heuristic inputs from r for client ip.
func RequestFromHTTP(r *http.Request, ip string) Request {
	return Request{
		IP:             ip,
		Method:         r.Method,
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Accept:         r.Header.Get("Accept"),
		ContentType:    r.Header.Get("Content-Type"),
	}
}

// Tracker evaluates and records IP reputation.
type Tracker struct {
	store  counter.Store
	geo    GeoResolver
	config Config
}

// New creates a Tracker. geo may be nil, which disables geo scoring.
func New(store counter.Store, geo GeoResolver, cfg Config) *Tracker {
	return &Tracker{store: store, geo: geo, config: cfg}
}

// Check runs the admission pipeline for one request: block flag, geo scoring,
// burst counting and pattern scoring, in that order.
func (t *Tracker) Check(ctx context.Context, req Request) Decision {
	if req.IP == "" {
		return admit()
	}

	blocked, err := t.IsBlocked(ctx, req.IP)
	if err != nil {
		return admitWithError(err)
	}
	if blocked {
		return reject(ErrBlocked)
	}

	var softErr error
	if err := t.scoreGeo(ctx, req.IP); err != nil {
		softErr = err
	}

	burst, err := t.countBurst(ctx, req.IP)
	if err != nil {
		return admitWithError(err)
	}
	if burst > int64(t.config.BurstMax) {
		if err := t.block(ctx, req.IP); err != nil {
			return admitWithError(err)
		}
		return reject(ErrBurst)
	}

	if Signals(req, t.config.MaxUserAgentLength) >= 2 {
		score, err := t.bumpSuspicious(ctx, req.IP)
		if err != nil {
			return admitWithError(err)
		}
		if score > int64(t.config.SuspiciousThreshold) {
			if err := t.block(ctx, req.IP); err != nil {
				return admitWithError(err)
			}
			return reject(ErrSuspicious)
		}
	}

	if softErr != nil {
		return admitWithError(softErr)
	}
	return admit()
}

// IsBlocked reports whether ip currently carries the block flag.
func (t *Tracker) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := t.store.Get(ctx, blockedKey(ip))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordFailedLogin counts a failed login from ip. It reports true once the
// threshold is reached and the IP has been blocked.
func (t *Tracker) RecordFailedLogin(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}

	key := failedKey(ip)
	count, err := t.store.IncrSliding(ctx, key, t.config.FailedLoginWindow)
	if err != nil {
		return false, err
	}

	if count < int64(t.config.FailedLoginThreshold) {
		return false, nil
	}
	if err := t.block(ctx, ip); err != nil {
		return false, err
	}
	return true, nil
}

// RecordSuccessfulLogin clears the failed-login counter for ip.
func (t *Tracker) RecordSuccessfulLogin(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	return t.store.Del(ctx, failedKey(ip))
}

// FailedLogins returns the current failed-login count for ip.
func (t *Tracker) FailedLogins(ctx context.Context, ip string) (int, error) {
	n, err := t.store.Get(ctx, failedKey(ip))
	return int(n), err
}

// SuspiciousScore returns the current suspicious score for ip.
func (t *Tracker) SuspiciousScore(ctx context.Context, ip string) (int, error) {
	n, err := t.store.Get(ctx, suspiciousKey(ip))
	return int(n), err
}

func (t *Tracker) scoreGeo(ctx context.Context, ip string) error {
	if t.geo == nil || !publicIP(ip) {
		return nil
	}
	country, err := t.geo.Country(ctx, ip)
	if err != nil {
		return err
	}
	if country != "" {
		return nil
	}
	_, err = t.bumpSuspicious(ctx, ip)
	return err
}

func (t *Tracker) countBurst(ctx context.Context, ip string) (int64, error) {
	return t.store.IncrFixed(ctx, requestsKey(ip), t.config.BurstWindow)
}

func (t *Tracker) bumpSuspicious(ctx context.Context, ip string) (int64, error) {
	return t.store.IncrSliding(ctx, suspiciousKey(ip), t.config.SuspiciousWindow)
}

// block sets the block flag. An existing block keeps its original expiry.
func (t *Tracker) block(ctx context.Context, ip string) error {
	_, err := t.store.SetNX(ctx, blockedKey(ip), 1, t.config.BlockDuration)
	return err
}

// Signals counts how many weak abuse signals req fires.
func Signals(req Request, maxUserAgent int) int {
	n := 0
	if len(req.UserAgent) > maxUserAgent {
		n++
	}
	if req.AcceptLanguage == "" {
		n++
	}
	if strings.Contains(req.Accept, "*/*") {
		n++
	}
	if req.Method == http.MethodPost && req.ContentType == "" {
		n++
	}
	return n
}

func publicIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast())
}

func blockedKey(ip string) string { return "blocked:" + ip }
func failedKey(ip string) string { return "failed:" + ip }
func suspiciousKey(ip string) string { return "suspicious:" + ip }
func requestsKey(ip string) string { return "requests:" + ip }
