package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/santokhan/authkit"
	promexport "github.com/santokhan/authkit/metrics/export/prometheus"
	"github.com/santokhan/authkit/middleware"
	"github.com/santokhan/authkit/permission"
)

const maxBodyBytes = 1 << 20

type server struct {
	engine *authkit.Engine
	logger *slog.Logger
}

func newServer(engine *authkit.Engine, logger *slog.Logger) *server {
	return &server{engine: engine, logger: logger}
}

func (s *server) routes() (http.Handler, error) {
	metrics, err := promexport.Handler(s.engine)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(s.clientIP)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", metrics)

	r.Route("/v1/users", func(r chi.Router) {
		r.Post("/signup", s.signup)
		r.Post("/signin", s.signin)
		r.Post("/token", s.token)
		r.Post("/signout", s.signout)
		r.Post("/forgot", s.forgot)
		r.Post("/forgot/resend", s.resendReset)
		r.Post("/reset", s.reset)
		r.Get("/verify", s.confirmVerify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(s.engine))
			r.Post("/verify", s.requestVerify)
			r.Patch("/online", s.online)
			r.Get("/{id}/online", s.isOnline)
			r.Get("/{id}", s.getAccount)
			r.Delete("/{id}", s.deleteAccount)
			r.Put("/{id}/role", s.updateRole)
			r.With(middleware.RequireRole(permission.Staff...)).Get("/", s.listAccounts)
		})
	})
	return r, nil
}

func (s *server) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(authkit.WithClientIP(r.Context(), ip)))
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) signup(w http.ResponseWriter, r *http.Request) {
	var req authkit.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, err := s.engine.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *server) signin(w http.ResponseWriter, r *http.Request) {
	var creds authkit.Credentials
	if !s.decode(w, r, &creds) {
		return
	}
	pair, err := s.engine.Login(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *server) token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	pair, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// signout takes either kind of token as the bearer credential.
func (s *server) signout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		s.writeError(w, r, authkit.ErrTokenInvalid)
		return
	}
	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// forgot never returns the token. A delivery failure still reports 502 so
// the client can offer a resend.
func (s *server) forgot(w http.ResponseWriter, r *http.Request) {
	var req authkit.ResetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.engine.RequestPasswordReset(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *server) resendReset(w http.ResponseWriter, r *http.Request) {
	var req authkit.ResetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.ResendPasswordReset(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyRequest struct {
	Redirect string `json:"redirect"`
}

func (s *server) requestVerify(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req verifyRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if _, err := s.engine.RequestEmailVerification(r.Context(), claims.AccountID, req.Redirect); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// confirmVerify redirects when the link carries a redirect on an allowed host.
func (s *server) confirmVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.engine.ConfirmEmailVerification(r.Context(), q.Get("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if target := q.Get("redirect"); s.engine.RedirectAllowed(target) {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (s *server) online(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := s.engine.MarkOnline(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) isOnline(w http.ResponseWriter, r *http.Request) {
	online, err := s.engine.IsOnline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"online": online})
}

func (s *server) listAccounts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	page, err := s.engine.ListAccounts(r.Context(), token, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// listOptions reads sort, order (asc, desc, 1 or -1), skip and limit.
func listOptions(q url.Values) (authkit.ListOptions, error) {
	opts := authkit.ListOptions{SortBy: authkit.SortField(q.Get("sort"))}
	switch strings.ToLower(q.Get("order")) {
	case "":
	case "asc", "1":
		opts.Order = 1
	case "desc", "-1":
		opts.Order = -1
	default:
		return opts, authkit.ErrInvalidRequest
	}
	for name, dst := range map[string]*int{"skip": &opts.Skip, "limit": &opts.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, authkit.ErrInvalidRequest
		}
		*dst = n
	}
	return opts, nil
}

func (s *server) getAccount(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	account, err := s.engine.GetAccount(r.Context(), token, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := s.engine.DeleteAccount(r.Context(), token, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *server) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := s.engine.UpdateRole(r.Context(), token, chi.URLParam(r, "id"), authkit.Role(req.Role)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps engine errors to a status. Server-side failures are logged
// and hidden from the client.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := authkit.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = http.StatusText(status)
		if errors.Is(err, authkit.ErrDelivery) {
			msg = "delivery failed"
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
