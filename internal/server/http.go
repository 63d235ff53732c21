// Package server assembles the HTTP and gRPC servers.
package server

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"workflow-tracker/backend/internal/health"
	"workflow-tracker/backend/internal/httpx"
	identityhandler "workflow-tracker/backend/internal/identity/handler"
	"workflow-tracker/backend/internal/policy/engine"
	"workflow-tracker/backend/internal/server/interceptors"
	userhandler "workflow-tracker/backend/internal/user/handler"
)

// HTTPDeps are the collaborators of the HTTP router.
type HTTPDeps struct {
	Auth           *identityhandler.AuthHandler
	Users          *userhandler.Handler
	Authenticator  *interceptors.Authenticator
	Policy         *engine.RouteEvaluator
	Health         *health.Checker
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	LoginPerMinute int
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
	ServiceName    string
	Log            *zap.Logger
}

// NewHTTPHandler builds the chi router for the session API.
func NewHTTPHandler(d HTTPDeps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(interceptors.TrustedRealIP(d.TrustedProxies))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(interceptors.HTTPClientIP)
	r.Use(interceptors.HTTPAuth(d.Authenticator))
	r.Use(interceptors.HTTPLogger(log))
	if d.Policy != nil {
		r.Use(Authorize(d.Policy, log))
	}

	r.Get("/healthz", health.Live)
	if d.Health != nil {
		r.Get("/readyz", d.Health.Ready)
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		perMinute := d.LoginPerMinute
		if perMinute <= 0 {
			perMinute = 10
		}
		r.With(httprate.LimitByIP(perMinute, time.Minute)).Post("/login", d.Auth.Login)
		r.Post("/refresh", d.Auth.Refresh)
		r.Post("/logout", d.Auth.Logout)
		r.Get("/me", d.Users.Me)
	})

	name := d.ServiceName
	if name == "" {
		name = "http"
	}
	return otelhttp.NewHandler(r, name)
}

// Authorize enforces the route policy: unauthenticated callers get 401 and
// authenticated callers without the required authority get 403.
func Authorize(policy *engine.RouteEvaluator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			id := interceptors.IdentityFrom(r.Context())
			d, err := policy.Evaluate(r.Context(), engine.RouteInput{
				Method:        r.Method,
				Path:          r.URL.Path,
				Authenticated: id.Authenticated(),
				Authorities:   id.Authorities,
			})
			if err != nil {
				log.Error("route policy evaluation failed", zap.String("path", r.URL.Path), zap.Error(err))
				httpx.WriteError(w, httpx.ErrInternal, "")
				return
			}
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}
			if d.Reason == engine.ReasonUnauthenticated {
				httpx.WriteError(w, httpx.ErrUnauthorized, "")
				return
			}
			httpx.WriteError(w, httpx.ErrForbidden, "")
		})
	}
}
