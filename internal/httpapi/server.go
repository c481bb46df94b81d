// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

// Package httpapi hosts the register, login, and logout operations over a
// small JSON surface. Status mapping stays here so the domain package never
// sees HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/restrolabs/identity/internal/auth"
)

// maxBodyBytes bounds request bodies; credential payloads are tiny.
const maxBodyBytes = 1 << 16

// Server exposes session operations over HTTP.
type Server struct {
	addr       string
	sessions   *auth.SessionService
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server over the given session service.
// addr: listen address in "host:port" format (e.g., ":8080").
func NewServer(addr string, sessions *auth.SessionService) (*Server, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("session service is required")
	}
	return &Server{addr: addr, sessions: sessions}, nil
}

// Start begins serving the session endpoints.
// It returns an error channel that will receive any errors from the HTTP
// server after it starts. The channel is closed when the server stops
// gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/logout", s.handleLogout)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

type registerRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Email       string   `json:"email,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	Username string `json:"username"`
}

type identityResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	IssuedAt  time.Time        `json:"issued_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  identityResponse `json:"identity"`
}

type logoutResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := s.sessions.Register(r.Context(), auth.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Roles:       req.Roles,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.ExpiresAt,
		Identity:  toIdentityResponse(&session.Identity),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.sessions.Logout(r.Context(), req.Username); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logoutResponse{Message: "logout acknowledged"})
}

// decodeJSON reads a bounded JSON body into v. On failure it writes a 400
// response and returns false; the body is never echoed back.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "AUTH_INVALID_INPUT",
			Message: "malformed request body",
		})
		return false
	}
	return true
}

func toIdentityResponse(identity *auth.Identity) identityResponse {
	return identityResponse{
		ID:       identity.ID.String(),
		Username: identity.Username,
		Roles:    identity.Roles,
	}
}

// writeError maps domain error codes to HTTP statuses. Internal failures get
// a generic message so storage details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	code := "AUTH_INTERNAL"
	if oopsErr, ok := oops.AsOops(err); ok {
		if c, ok := oopsErr.Code().(string); ok && c != "" {
			code = c
		}
	}

	status := http.StatusInternalServerError
	message := "internal error"
	switch code {
	case "AUTH_INVALID_INPUT", "AUTH_EMPTY_PASSWORD":
		status = http.StatusBadRequest
		message = err.Error()
	case "AUTH_INVALID_CREDENTIALS":
		status = http.StatusUnauthorized
		message = auth.InvalidCredentialsMessage
	case "AUTH_DUPLICATE_IDENTITY":
		status = http.StatusConflict
		message = "identity already exists"
	case "AUTH_NOT_FOUND":
		status = http.StatusNotFound
		message = "user not found"
	}

	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error is acceptable, client may disconnect
	_ = json.NewEncoder(w).Encode(v)
}
