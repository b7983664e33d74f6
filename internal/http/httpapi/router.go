package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"plantscan/internal/http/handlers"
	"plantscan/internal/infra/geoip"
	"plantscan/internal/middleware"
)

// Options configures the middleware stack around the handlers.
type Options struct {
	JWTSecret          string
	JWTIssuer          string
	DefaultLocale      string
	DefaultLocation    *time.Location
	GeoIP              geoip.LocationResolver
	CORSAllowedOrigins []string
	// RateLimitPerMinute bounds identification calls per client IP.
	RateLimitPerMinute int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/plans", app.Plans)
		// Signed by the payment collaborator, not by a user.
		r.Post("/payments/webhook", app.PaymentsWebhook)

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Subject(opts.JWTSecret, opts.JWTIssuer),
				middleware.Timezone(opts.DefaultLocation, opts.GeoIP, app.Logger),
			)

			r.Get("/quota", app.QuotaGet)
			r.Post("/quota/bonus", app.QuotaBonus)
			r.Get("/quota/events", app.QuotaEvents)

			r.With(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute)).
				Post("/identify", app.Identify)

			r.Get("/subscription", app.SubscriptionGet)
			r.Post("/subscription/cancel", app.SubscriptionCancel)

			r.Route("/garden", func(r chi.Router) {
				r.Get("/", app.GardenList)
				r.Post("/", app.GardenAdd)
				r.Post("/capacity", app.GardenCapacity)
				r.Delete("/{id}", app.GardenDelete)
			})
		})
	})

	return r
}
