package server

import (
	"net/http"
	"strings"

	"infrabondx/pkg/authn"
	"infrabondx/pkg/httpx"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "email and password required", nil)
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !authn.CheckPassword(u.PasswordHash, req.Password) {
		httpx.WriteError(w, 401, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}
	token, err := s.auth.Mint(u.UserID, u.Role)
	if err != nil {
		httpx.WriteError(w, 500, "TOKEN_ERROR", "could not issue token", nil)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"token": token,
		"user":  userJSON(u),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := authn.IdentityFrom(r.Context())
	u, err := s.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, userJSON(u))
}
