// Package httpapi serves the docgate JSON API over net/http.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/middleware"
)

// Options tunes the HTTP surface.
type Options struct {
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	Log     *zap.Logger
}

type access uint8

const (
	public access = iota
	user
	admin
	credits
)

// Server routes API requests to the engine.
type Server struct {
	engine   *docgate.Engine
	opts     Options
	log      *zap.Logger
	validate *validator.Validate
	api      *http.ServeMux
	root     *http.ServeMux
}

func NewServer(engine *docgate.Engine, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		opts:     opts,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		api:      http.NewServeMux(),
		root:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.root
	h = middleware.Recover(s.log)(h)
	h = middleware.AccessLog(s.log)(h)
	h = middleware.RequestID(h)
	return h
}

func (s *Server) registerRoutes() {
	s.root.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		s.root.Handle("GET /metrics", s.opts.Metrics)
	}

	var api http.Handler = s.api
	api = middleware.Reputation(s.engine)(api)
	api = middleware.ClientIP(s.engine.Config().Network.TrustForwardedFor)(api)
	s.root.Handle("/api/", api)

	s.route("POST /api/users/register", docgate.RateAuth, public, s.handleRegister)
	s.route("POST /api/users/login", docgate.RateAuth, public, s.handleLogin)
	s.route("GET /api/users/verify/{token}", docgate.RateEmail, public, s.handleVerify)
	s.route("POST /api/users/resend-verification", docgate.RateEmail, public, s.handleResendVerification)
	s.route("POST /api/users/forgot-password", docgate.RateAuth, public, s.handleForgotPassword)
	s.route("POST /api/users/reset-password/{token}", docgate.RateAuth, public, s.handleResetPassword)
	s.route("POST /api/users/2fa/validate", docgate.RateAuth, public, s.handleTwoFactorValidate)

	s.route("GET /api/users/me", docgate.RateAPI, user, s.handleMe)
	s.route("GET /api/users/activity", docgate.RateAPI, user, s.handleActivity)
	s.route("GET /api/users/sessions", docgate.RateAPI, user, s.handleSessions)
	s.route("POST /api/users/logout", docgate.RateAPI, user, s.handleLogout)
	s.route("POST /api/users/logout-all", docgate.RateAPI, user, s.handleLogoutAll)
	s.route("PUT /api/users/password", docgate.RateAPI, user, s.handleChangePassword)
	s.route("POST /api/users/2fa/enable", docgate.RateAPI, user, s.handleTwoFactorEnable)
	s.route("POST /api/users/2fa/verify", docgate.RateAPI, user, s.handleTwoFactorVerify)
	s.route("POST /api/users/2fa/disable", docgate.RateAPI, user, s.handleTwoFactorDisable)

	s.route("GET /api/credits/balance", docgate.RateAPI, user, s.handleBalance)
	s.route("GET /api/credits/history", docgate.RateAPI, user, s.handleCreditHistory)
	s.route("POST /api/credits/request", docgate.RateAPI, user, s.handleCreditRequest)
	s.route("GET /api/credits/my-requests", docgate.RateAPI, user, s.handleMyCreditRequests)
	s.route("GET /api/credits/requests", docgate.RateAPI, admin, s.handleAllCreditRequests)
	s.route("PUT /api/credits/review/{id}", docgate.RateAPI, admin, s.handleReviewCreditRequest)

	s.route("PUT /api/admin/users/{id}/credits", docgate.RateAPI, admin, s.handleSetCredits)
	s.route("GET /api/admin/users", docgate.RateAPI, admin, s.handleListUsers)
	s.route("GET /api/admin/analytics", docgate.RateAPI, admin, s.handleAnalytics)

	s.route("POST /api/documents/scan", docgate.RateAPI, credits, s.handleScan)
}

// route mounts h behind the rate limit of class and the guards of a.
func (s *Server) route(pattern string, class docgate.RateClass, a access, h http.HandlerFunc) {
	var next http.Handler = h
	switch a {
	case admin:
		next = middleware.RequireRole(s.engine, docgate.RoleAdmin)(next)
	case credits:
		next = middleware.RequireCredits(s.engine)(next)
	}
	if a != public {
		next = middleware.Authenticate(s.engine)(next)
	}
	next = middleware.RateLimit(s.engine, class)(next)
	s.api.Handle(pattern, next)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.engine.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
