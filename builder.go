package docgate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/docgate/internal/audit"
	"github.com/MrEthical07/docgate/internal/counter"
	"github.com/MrEthical07/docgate/internal/rate"
	"github.com/MrEthical07/docgate/internal/reputation"
	"github.com/MrEthical07/docgate/jwt"
	"github.com/MrEthical07/docgate/password"
	"github.com/MrEthical07/docgate/session"
)

// GeoResolver resolves an IP to an ISO country code. An empty code means the
// address is unknown.
type GeoResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	counters counter.Store
	store    Store
	geo      GeoResolver
	mailer   Mailer
	analyzer Analyzer
	log      *zap.Logger
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing sessions, login challenges and, unless
// [Builder.WithCounterStore] overrides it, the abuse counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCounterStore replaces the Redis counter store used by the reputation
// tracker and rate limiter.
func (b *Builder) WithCounterStore(store counter.Store) *Builder {
	b.counters = store
	return b
}

func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithGeoResolver enables geographic scoring in the reputation tracker.
func (b *Builder) WithGeoResolver(geo GeoResolver) *Builder {
	b.geo = geo
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAnalyzer(a Analyzer) *Builder {
	b.analyzer = a
	return b
}

func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithClock replaces the engine time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Credits.Location == nil {
		cfg.Credits.Location = time.UTC
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		Secret:       []byte(cfg.JWT.Secret),
		SessionTTL:   cfg.JWT.SessionTTL,
		LongLivedTTL: cfg.JWT.LongLivedTTL,
		Issuer:       cfg.JWT.Issuer,
		Leeway:       cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	tokens.WithClock(now)

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	// -------- ABUSE COUNTERS --------
	counters := b.counters
	if counters == nil {
		counters = counter.NewRedis(b.redis)
	}

	var geo reputation.GeoResolver
	if b.geo != nil {
		geo = b.geo
	}
	tracker := reputation.New(counters, geo, reputation.Config{
		FailedLoginThreshold: cfg.Reputation.FailedLoginThreshold,
		FailedLoginWindow:    cfg.Reputation.FailedLoginWindow,
		BlockDuration:        cfg.Reputation.BlockDuration,
		SuspiciousWindow:     cfg.Reputation.SuspiciousWindow,
		SuspiciousThreshold:  cfg.Reputation.SuspiciousThreshold,
		BurstWindow:          cfg.Reputation.BurstWindow,
		BurstMax:             cfg.Reputation.BurstMax,
		MaxUserAgentLength:   cfg.Reputation.MaxUserAgentLength,
	})

	limiter := rate.New(counters, rate.Config{
		rate.ClassAPI:   {Length: cfg.RateLimit.API.Length, Max: cfg.RateLimit.API.Max},
		rate.ClassAuth:  {Length: cfg.RateLimit.Auth.Length, Max: cfg.RateLimit.Auth.Max},
		rate.ClassEmail: {Length: cfg.RateLimit.Email.Length, Max: cfg.RateLimit.Email.Max},
	})

	e := &Engine{
		config:     cfg,
		store:      b.store,
		sessions:   session.NewStore(b.redis, cfg.Session.KeyPrefix),
		tokens:     tokens,
		passwords:  hasher,
		reputation: tracker,
		limiter:    limiter,
		mailer:     b.mailer,
		analyzer:   b.analyzer,
		metrics:    NewMetrics(),
		log:        log,
		now:        now,
	}

	// -------- ACTIVITY LOG --------
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, activitySink{store: b.store}, func(ev audit.Event, err error) {
		log.Warn("activity record failed", zap.String("action", ev.Action), zap.String("user_id", ev.UserID), zap.Error(err))
	})

	b.built = true
	return e, nil
}
