package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/service"
	"bizdash/backend/internal/sheets"
	"bizdash/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	hub           *Hub
	allowedOrigin string
	loginLimiter  *attemptLimiter

	// session is held for reading by owner-scoped requests and for writing
	// while login or logout switch the service session.
	session sync.RWMutex
}

func New(svc *service.Service, auth *AuthManager, hub *Hub, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", a.requireAuth(a.handleLogout))

	mux.HandleFunc("/api/v1/transactions", a.requireOwner(a.handleTransactions))
	mux.HandleFunc("/api/v1/transactions/", a.requireOwner(a.handleTransactionItem))
	mux.HandleFunc("/api/v1/customers", a.requireOwner(a.handleCustomers))
	mux.HandleFunc("/api/v1/customers/", a.requireOwner(a.handleCustomerItem))
	mux.HandleFunc("/api/v1/products", a.requireOwner(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireOwner(a.handleProductItem))
	mux.HandleFunc("/api/v1/suppliers", a.requireOwner(a.handleSuppliers))
	mux.HandleFunc("/api/v1/suppliers/", a.requireOwner(a.handleSupplierItem))

	mux.HandleFunc("/api/v1/summary", a.requireOwner(a.handleSummary))
	mux.HandleFunc("/api/v1/refresh", a.requireOwner(a.handleRefresh))
	mux.HandleFunc("/api/v1/sync/database", a.requireOwner(a.handleSyncDatabase))
	mux.HandleFunc("/api/v1/clear", a.requireOwner(a.handleClear))

	mux.HandleFunc("/api/v1/sheets/transport", a.requireOwner(a.handleSheetTransport))
	mux.HandleFunc("/api/v1/sheets/log", a.requireOwner(a.handleSheetLog))
	mux.HandleFunc("/api/v1/sheets/", a.requireOwner(a.handleSheetAction))

	if a.hub != nil {
		mux.HandleFunc("/api/v1/notifications/ws", a.requireOwner(a.hub.ServeHTTP))
	}

	return a.withMiddleware(mux)
}

// requireAuth accepts a bearer token, or a token query parameter for the
// websocket stream since browsers cannot set headers on an upgrade request.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ""
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			token = strings.TrimSpace(authorization[len("Bearer "):])
		} else if r.URL.Path == "/api/v1/notifications/ws" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

// requireOwner admits only the account that owns the active service
// session. The session cannot change while the request runs.
func (a *API) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		a.session.RLock()
		defer a.session.RUnlock()
		if err := a.service.CheckOwner(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		next(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"session": a.service.OwnerID() != "",
		"at":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, actor, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	// A failed initial refresh still leaves the session active; the service
	// has already reported it.
	a.session.Lock()
	err = a.service.StartSession(r.Context(), actor.OwnerID)
	a.session.Unlock()
	if err != nil {
		log.Printf("[httpapi] session start for %s: %v", actor.Username, err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	a.session.Lock()
	defer a.session.Unlock()
	switch err := a.service.CheckOwner(r.Context()); {
	case err == nil:
		a.service.EndSession()
	case errors.Is(err, service.ErrNoSession):
	default:
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": a.service.Summary()})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.RefreshData(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": a.service.Summary()})
}

func (a *API) handleSyncDatabase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.SyncWithDatabase(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := a.service.ClearAll(service.WithConfirmation(r.Context(), req.Confirm))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case errors.Is(err, service.ErrNotConfirmed):
		writeError(w, http.StatusPreconditionRequired, errors.New(`clearing all data requires {"confirm": true}`))
	default:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":         "local data cleared; removing the server copy failed",
			"local_cleared": true,
		})
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// writeServiceError maps orchestration failures. Remote and spreadsheet
// errors are user-facing, so their messages are passed through.
func writeServiceError(w http.ResponseWriter, err error) {
	var sheetErr *sheets.Error
	switch {
	case errors.Is(err, service.ErrNoSession):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrNoSheets):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrForeignOwner):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, store.ErrOwnerRequired):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, store.ErrInvalidEntity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, sheets.ErrUnknownTransport):
		writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &sheetErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": sheetErr.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies are generic so internal details stay in the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
