package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/entitlement"
	"plantscan/internal/gate"
	"plantscan/internal/middleware"
	"plantscan/internal/quota"
	"plantscan/internal/subscription"
)

// DefaultMaxImageBytes bounds uploaded images when no limit is configured.
const DefaultMaxImageBytes = 8 << 20

// App holds the collaborators shared by every handler.
type App struct {
	Gate          *gate.Gate
	Quota         *quota.Manager
	Ledger        *subscription.Ledger
	Policy        *entitlement.Policy
	Identifier    gate.Identifier
	Clock         clock.Source
	Logger        zerolog.Logger
	WebhookSecret string
	MaxImageBytes int64
	// Ping reports backing-store health for /healthz. Optional.
	Ping func(ctx context.Context) error
	// EventsHeartbeat is the keep-alive interval of the quota event stream.
	EventsHeartbeat time.Duration
	// Draining is closed when the server begins shutting down; open event
	// streams end when it closes. Optional.
	Draining <-chan struct{}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// error writes the stable error envelope. message is a catalog key translated
// into the request locale.
func (a *App) error(w http.ResponseWriter, r *http.Request, code int, errCode, message string, args ...any) {
	a.json(w, code, map[string]any{
		"error": errorBody{Code: errCode, Message: localize(r.Context(), message, args...)},
	})
}

func (a *App) subject(w http.ResponseWriter, r *http.Request) (domain.Subject, bool) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", msgMissingCredentials)
		return domain.Subject{}, false
	}
	return subject, true
}

func (a *App) maxImageBytes() int64 {
	if a.MaxImageBytes > 0 {
		return a.MaxImageBytes
	}
	return DefaultMaxImageBytes
}
