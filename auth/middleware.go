package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user claims
	UserContextKey contextKey = "auth_user"
)

// Middleware provides HTTP authentication middleware
type Middleware struct {
	service *Service
	logger  *zap.SugaredLogger

	// Activity update debouncing
	activityMu     sync.Mutex
	lastActivity   map[string]time.Time
	activityWindow time.Duration
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(service *Service, log *zap.SugaredLogger) *Middleware {
	if log == nil {
		log = logger.Logger
	}
	return &Middleware{
		service:        service,
		logger:         log,
		lastActivity:   make(map[string]time.Time),
		activityWindow: 5 * time.Minute, // Only update activity every 5 minutes per session
	}
}

// RequireAuth rejects requests without a valid, unrevoked, unexpired session
// token and attaches the claims to the request context
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.service.Authenticate(r.Context(), extractToken(r))
		if err != nil {
			m.logger.Debugw("Request rejected",
				logger.FieldPath, r.URL.Path,
				logger.FieldError, err)
			writeUnauthorized(w, err)
			return
		}

		m.touchSession(claims.SessionID)

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		ctx = logger.WithUserID(ctx, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized: " + err.Error()})
}

// touchSession updates session activity with debouncing
func (m *Middleware) touchSession(sessionID string) {
	m.activityMu.Lock()
	defer m.activityMu.Unlock()

	lastUpdate, ok := m.lastActivity[sessionID]
	if ok && time.Since(lastUpdate) < m.activityWindow {
		return // Skip update, too recent
	}

	m.lastActivity[sessionID] = time.Now()

	// Update in background to not block request
	go func() {
		if err := m.service.store.UpdateSessionActivity(context.Background(), sessionID); err != nil {
			m.logger.Warnw("Failed to update session activity", logger.FieldSessionID, sessionID, logger.FieldError, err)
		}
	}()
}

// extractToken extracts the JWT token from request
// Checks Authorization header first, then falls back to query param (for WebSocket)
func extractToken(r *http.Request) string {
	// Check Authorization header
	auth := r.Header.Get("Authorization")
	if auth != "" {
		// Support "Bearer <token>" format
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}

	// Fallback to query param (for WebSocket connections)
	return r.URL.Query().Get("token")
}

// UserFromContext extracts authenticated user claims from request context
func UserFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(UserContextKey).(*Claims)
	return claims
}
