package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/session"
)

const maxJSONBody = 1 << 20

// decode reads a JSON body into dst and runs its validate tags.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", docgate.ErrInvalidInput, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return fmt.Errorf("%w: %s failed %s", docgate.ErrInvalidInput, fields[0].Field(), fields[0].Tag())
		}
		return fmt.Errorf("%w: %v", docgate.ErrInvalidInput, err)
	}
	return nil
}

type userView struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	Role             string    `json:"role"`
	Credits          int       `json:"credits"`
	TotalScans       int       `json:"total_scans"`
	Verified         bool      `json:"verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	LastCreditReset  time.Time `json:"last_credit_reset"`
	CreatedAt        time.Time `json:"created_at"`
}

func newUserView(u *docgate.User) userView {
	return userView{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		Role:             string(u.Role),
		Credits:          u.Credits,
		TotalScans:       u.TotalScans,
		Verified:         u.Verified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		LastCreditReset:  u.LastCreditReset,
		CreatedAt:        u.CreatedAt,
	}
}

type activityView struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func newActivityViews(in []docgate.Activity) []activityView {
	out := make([]activityView, 0, len(in))
	for _, a := range in {
		out = append(out, activityView{
			ID:        a.ID,
			Action:    string(a.Action),
			Details:   a.Details,
			IP:        a.IP,
			UserAgent: a.UserAgent,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

type creditRequestView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Amount      int        `json:"amount"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	AdminNote   string     `json:"admin_note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func newCreditRequestView(r *docgate.CreditRequest) creditRequestView {
	v := creditRequestView{
		ID:         r.ID,
		UserID:     r.UserID,
		Amount:     r.Amount,
		Reason:     r.Reason,
		Status:     string(r.Status),
		ReviewedBy: r.ReviewedBy,
		AdminNote:  r.AdminNote,
		CreatedAt:  r.CreatedAt,
	}
	if !r.ProcessedAt.IsZero() {
		at := r.ProcessedAt
		v.ProcessedAt = &at
	}
	return v
}

func newCreditRequestViews(in []docgate.CreditRequest) []creditRequestView {
	out := make([]creditRequestView, 0, len(in))
	for i := range in {
		out = append(out, newCreditRequestView(&in[i]))
	}
	return out
}

type sessionView struct {
	ID           string         `json:"id"`
	Class        string         `json:"class"`
	Device       session.Device `json:"device"`
	Current      bool           `json:"current"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

type challengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeID       string `json:"challenge_id"`
}

type messageResponse struct {
	Message string `json:"message"`
}
