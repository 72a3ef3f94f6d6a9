package httpapi

import (
	"net/http"
	"time"

	"github.com/gatekit/gatekit"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthFromContext(r.Context())
	if !ok {
		writeError(w, s.log, gatekit.ErrUnauthorized)
		return
	}

	var req struct {
		Data map[string]string `json:"data"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sessionID, err := s.engine.Sessions().Create(r.Context(), res.User.UserID, req.Data)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.engine.Sessions().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Sessions().Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

func (s *Server) handleCacheSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key        string `json:"key"`
		Value      string `json:"value"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, s.log, gatekit.ErrInvalidInput)
		return
	}
	// Every cache entry carries a TTL; a non-positive value would store
	// the key without expiry.
	if req.TTLSeconds <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ttl_seconds must be positive"})
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := s.engine.Store().Put(r.Context(), "cache:"+req.Key, []byte(req.Value), ttl); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "stored"})
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := s.engine.Store().Get(r.Context(), "cache:"+key)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": string(value)})
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store().Delete(r.Context(), "cache:"+r.PathValue("key")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
