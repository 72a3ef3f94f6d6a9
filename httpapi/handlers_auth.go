package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gatekit/gatekit"
)

type userView struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(u gatekit.UserRecord) userView {
	return userView{
		UserID:    u.UserID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := s.engine.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.engine.Register(r.Context(), gatekit.RegisterInput{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthFromContext(r.Context())
	if !ok {
		writeError(w, s.log, gatekit.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res.User))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthFromContext(r.Context())
	if !ok {
		writeError(w, s.log, gatekit.ErrUnauthorized)
		return
	}

	var req struct {
		FullName *string `json:"full_name"`
		Email    *string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.engine.UpdateProfile(r.Context(), res.User.UserID, gatekit.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	// Always answers 200; whether the address matched an account is not
	// observable from this endpoint.
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if the address is registered, a reset link has been sent",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthFromContext(r.Context())
	if !ok {
		writeError(w, s.log, gatekit.ErrUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ChangePassword(r.Context(), res.User.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		// A wrong current password is bad input on this route, not an
		// authentication failure: the bearer token already proved who is
		// calling. 401 stays reserved for /token and the guard.
		if errors.Is(err, gatekit.ErrInvalidCredentials) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "current password is incorrect"})
			return
		}
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *Server) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthFromContext(r.Context())
	if !ok {
		writeError(w, s.log, gatekit.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "hello, " + res.Subject,
	})
}
