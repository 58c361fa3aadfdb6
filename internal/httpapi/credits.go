package httpapi

import (
	"net/http"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/middleware"
)

type creditRequestBody struct {
	Amount int    `json:"amount" validate:"required,min=1,max=1000"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type reviewRequestBody struct {
	Status    string `json:"status" validate:"required,oneof=approved rejected"`
	AdminNote string `json:"admin_note" validate:"max=500"`
}

type setCreditsBody struct {
	Credits *int `json:"credits" validate:"required,min=0"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	b, err := s.engine.Balance(r.Context(), id.User.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"credits":           b.Credits,
		"daily_limit":       b.DailyLimit,
		"last_credit_reset": b.LastCreditReset,
		"next_reset":        b.NextReset,
	})
}

func (s *Server) handleCreditHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	list, err := s.engine.CreditHistory(r.Context(), id.User.ID, 50)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"history": newActivityViews(list)})
}

func (s *Server) handleCreditRequest(w http.ResponseWriter, r *http.Request) {
	var req creditRequestBody
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	cr, err := s.engine.RequestCredits(r.Context(), id.User.ID, req.Amount, req.Reason)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, newCreditRequestView(cr))
}

func (s *Server) handleMyCreditRequests(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	s.writeCreditRequests(w, r, id.User.ID)
}

func (s *Server) handleAllCreditRequests(w http.ResponseWriter, r *http.Request) {
	s.writeCreditRequests(w, r, "")
}

func (s *Server) writeCreditRequests(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := s.engine.CreditRequests(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"requests": newCreditRequestViews(list)})
}

func (s *Server) handleReviewCreditRequest(w http.ResponseWriter, r *http.Request) {
	var req reviewRequestBody
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	approve := req.Status == string(docgate.CreditRequestApproved)
	cr, err := s.engine.ReviewCreditRequest(r.Context(), id, r.PathValue("id"), approve, req.AdminNote)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newCreditRequestView(cr))
}

func (s *Server) handleSetCredits(w http.ResponseWriter, r *http.Request) {
	var req setCreditsBody
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.SetCredits(r.Context(), r.PathValue("id"), *req.Credits); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"user_id": r.PathValue("id"), "credits": *req.Credits})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.ListUsers(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, newUserView(&users[i]))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Analytics(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{
		"users":                   a.Users,
		"verified_users":          a.VerifiedUsers,
		"outstanding_credits":     a.OutstandingCredits,
		"pending_credit_requests": a.PendingCreditRequests,
		"documents":               a.Documents,
	})
}
