package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatekit/gatekit"
	"github.com/gatekit/gatekit/store"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine and store sentinels to status codes. Unknown
// errors are treated as upstream failures and logged; their text never
// reaches the client.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, msg := mapError(err)
	if status >= 500 {
		log.Error("request failed", "status", status, "err", err)
		msg = "service unavailable"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, gatekit.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, gatekit.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, gatekit.ErrAccountDisabled):
		return http.StatusForbidden, "account disabled"
	case errors.Is(err, gatekit.ErrAccountUnverified):
		return http.StatusForbidden, "email address not verified"
	case errors.Is(err, gatekit.ErrAccountExists):
		return http.StatusBadRequest, "username or email already registered"
	case errors.Is(err, gatekit.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, gatekit.ErrResetTokenConsumed):
		return http.StatusBadRequest, "reset token already used"
	case errors.Is(err, gatekit.ErrResetTokenInvalid):
		return http.StatusBadRequest, "invalid or expired reset token"
	case errors.Is(err, gatekit.ErrVerificationInvalid):
		return http.StatusBadRequest, "invalid or expired verification code"
	case errors.Is(err, gatekit.ErrPasswordPolicy):
		return http.StatusBadRequest, "password does not meet policy"
	case errors.Is(err, gatekit.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, store.ErrKeyNotFound):
		return http.StatusNotFound, "key not found"
	case errors.Is(err, gatekit.ErrBackendUnavailable), errors.Is(err, store.ErrRedisUnavailable):
		return http.StatusBadGateway, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body"})
		return false
	}
	return true
}
