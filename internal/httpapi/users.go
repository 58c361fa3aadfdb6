package httpapi

import (
	"net/http"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/middleware"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"omitempty,max=64"`
	Password string `json:"password" validate:"required,max=1024"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=1024"`
}

type twoFactorValidateRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	Code        string `json:"code" validate:"required,max=32"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	u, err := s.engine.Register(r.Context(), docgate.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful, check your email to verify your account",
		"user":    newUserView(u),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	res, err := s.engine.Login(r.Context(), docgate.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
		Device:   middleware.DeviceFromRequest(r),
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeLoginResult(w, res)
}

func writeLoginResult(w http.ResponseWriter, res *docgate.LoginResult) {
	if res.TwoFactorRequired {
		middleware.WriteJSON(w, http.StatusOK, challengeResponse{TwoFactorRequired: true, ChallengeID: res.ChallengeID})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tokenResponse{
		Token:     res.Grant.Token,
		ExpiresAt: res.Grant.ExpiresAt,
		User:      newUserView(res.User),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.VerifyEmail(r.Context(), r.PathValue("token")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Email verified"})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.ResendVerification(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "If the account exists, a reset link has been sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.ResetPassword(r.Context(), r.PathValue("token"), req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset"})
}

func (s *Server) handleTwoFactorValidate(w http.ResponseWriter, r *http.Request) {
	var req twoFactorValidateRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	res, err := s.engine.CompleteTwoFactorLogin(r.Context(), req.ChallengeID, req.Code, middleware.DeviceFromRequest(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeLoginResult(w, res)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, newUserView(id.User))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	list, err := s.engine.Activity(r.Context(), id.User.ID, 50)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"activities": newActivityViews(list)})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	list, err := s.engine.ListSessions(r.Context(), id.User.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	out := make([]sessionView, 0, len(list))
	for _, sess := range list {
		out = append(out, sessionView{
			ID:           sess.ID,
			Class:        sess.Class,
			Device:       sess.Device,
			Current:      sess.ID == id.Session.ID,
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivity,
			ExpiresAt:    sess.ExpiresAt,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), id); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	n, err := s.engine.LogoutAll(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"message": "Logged out of all sessions", "invalidated": n})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := s.engine.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password changed"})
}

func (s *Server) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	setup, err := s.engine.BeginTwoFactorSetup(r.Context(), id.User.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"secret": setup.Secret, "otpauth_url": setup.URL})
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	codes, err := s.engine.ConfirmTwoFactor(r.Context(), id.User.ID, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"message": "Two-factor authentication enabled", "backup_codes": codes})
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := s.decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := s.engine.DisableTwoFactor(r.Context(), id.User.ID, req.Code); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Two-factor authentication disabled"})
}
