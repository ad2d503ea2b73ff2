package authapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fansite/cmd/identity"
	"fansite/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service
	auditor  Auditor
	now      func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the clock used for audit timestamps and throttling.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler. A nil auditor disables the audit
// trail and the login IP throttle.
func NewHandler(log *slog.Logger, sessions *session.Service, auditor Auditor, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		auditor:  auditor,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.Handle("/api/auth/logout-all", h.RequireAuth(http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("/api/auth/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
	mux.Handle("/api/auth/admin/purge", h.RequireAuth(RequireRole(identity.RoleAdmin, http.HandlerFunc(h.handlePurge))))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	res, err := h.sessions.Register(ctx, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, "auth.register", err)
		return
	}

	h.audit(ctx, AuditEvent{
		Action:    actionRegister,
		UserID:    res.User.ID,
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	email := identity.NormalizeEmail(req.Email)

	// IP-based throttling before any credential work.
	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ip, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.audit(ctx, AuditEvent{
			Action:    actionLoginRateLimited,
			IP:        ip,
			UserAgent: ua,
			Meta:      map[string]any{"email": email, "retry_after_s": int64(retryAfter.Seconds())},
		})
		writeRateLimited(w, retryAfter)
		return
	}

	res, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			h.audit(ctx, AuditEvent{
				Action:    actionLoginFailed,
				IP:        ip,
				UserAgent: ua,
				Meta:      map[string]any{"email": email},
			})
		}
		h.writeServiceError(w, "auth.login", err)
		return
	}

	h.audit(ctx, AuditEvent{
		Action:    actionLoginSuccess,
		UserID:    res.User.ID,
		IP:        ip,
		UserAgent: ua,
	})
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	res, err := h.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			h.audit(ctx, AuditEvent{Action: actionRefreshFailed, IP: ip, UserAgent: ua})
		}
		h.writeServiceError(w, "auth.refresh", err)
		return
	}

	h.audit(ctx, AuditEvent{
		Action:    actionRefreshSuccess,
		UserID:    res.User.ID,
		IP:        ip,
		UserAgent: ua,
	})
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// handleLogout always answers 204; an empty body or unknown token is a no-op.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// The body is optional, including chunked requests that carry nothing.
	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeDecodeError(w, err)
		return
	}

	ctx := r.Context()
	h.sessions.Logout(ctx, req.RefreshToken)

	h.audit(ctx, AuditEvent{
		Action:    actionLogout,
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	ctx := r.Context()
	n, err := h.sessions.LogoutAll(ctx, claims.UserID)
	if err != nil {
		h.writeServiceError(w, "auth.logout_all", err)
		return
	}

	h.audit(ctx, AuditEvent{
		Action:    actionLogoutAll,
		UserID:    claims.UserID,
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
		Meta:      map[string]any{"revoked": n},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	p, err := h.sessions.Profile(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, "auth.me", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(p)})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	n, err := h.sessions.PurgeExpired(r.Context(), h.cfg.PurgeRetention)
	if err != nil {
		h.writeServiceError(w, "auth.purge", err)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	h.log.Info("auth.purge.done", "user_id", claims.UserID, "purged", n)
	writeJSON(w, http.StatusOK, purgeResponse{Purged: n})
}

// ---- helpers ----

// writeServiceError maps session errors onto stable API codes. Internal
// detail is logged, never returned.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve session.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", validationMessage(ve))
	case errors.Is(err, session.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", "invalid input")
	case errors.Is(err, session.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", "email already registered")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
	default:
		h.log.Error(op+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func validationMessage(ve session.ValidationError) string {
	msg := strings.TrimSpace(ve.Msg)
	if msg == "" {
		msg = "is invalid"
	}
	if ve.Field == "" {
		return msg
	}
	return fmt.Sprintf("%s %s", ve.Field, msg)
}
