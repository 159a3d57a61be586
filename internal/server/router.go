package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/GoliathLabs/applica/internal/apierr"
	"github.com/GoliathLabs/applica/internal/auth"
	"github.com/GoliathLabs/applica/internal/config"
	gwmiddleware "github.com/GoliathLabs/applica/internal/middleware"
	"github.com/GoliathLabs/applica/internal/ratelimit"
	"github.com/GoliathLabs/applica/internal/telemetry"
)

// RouterOptions controls the construction of the gateway router.
type RouterOptions struct {
	Cfg            *config.Config
	Logger         *logrus.Logger
	Login          LoginService
	LoginValidator *LoginValidator
	Issuer         *auth.TokenIssuer
	Limiter        *ratelimit.Limiter
	RateLimitRules []ratelimit.Rule
	Metrics        *telemetry.Metrics
	CORSOptions    *cors.Options
	HealthHandler  http.HandlerFunc

	// PublicRoutes mounts business endpoints under the API prefix behind the
	// request guards and rate limiter.
	PublicRoutes func(chi.Router)
	// ProtectedRoutes additionally requires a valid session token.
	ProtectedRoutes func(chi.Router)
}

// DefaultCORSOptions allows the configured browser origins. Requests without
// an Origin header are not subject to CORS.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", gwmiddleware.DefaultRequestIDHeader},
		ExposedHeaders:   []string{gwmiddleware.DefaultRequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter assembles the middleware pipeline and mounts the auth endpoints
// and the caller's business routes.
func NewRouter(opts RouterOptions) chi.Router {
	cfg := opts.Cfg
	if cfg == nil {
		cfg = &config.Config{APIPrefix: "/api"}
	}

	r := chi.NewRouter()

	r.Use(gwmiddleware.RequestID(cfg.RequestIDHeader, opts.Logger))
	r.Use(gwmiddleware.AccessLog(opts.Metrics))
	r.Use(gwmiddleware.Recover)
	r.Use(gwmiddleware.BodyLimit(cfg.BodyLimitBytes))
	r.Use(gwmiddleware.SecurityHeaders(cfg.IsProduction()))

	corsCfg := DefaultCORSOptions(cfg.CORS.AllowedOrigins)
	if cfg.RequestIDHeader != "" && cfg.RequestIDHeader != gwmiddleware.DefaultRequestIDHeader {
		corsCfg.AllowedHeaders = append(corsCfg.AllowedHeaders, cfg.RequestIDHeader)
		corsCfg.ExposedHeaders = append(corsCfg.ExposedHeaders, cfg.RequestIDHeader)
	}
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	r.Use(gwmiddleware.RateLimit(opts.Limiter, opts.RateLimitRules, opts.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierr.Write(w, r, apierr.NotFound())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierr.Write(w, r, apierr.MethodNotAllowed())
	})

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	r.Route(prefixOrRoot(cfg.APIPrefix), func(api chi.Router) {
		if opts.Login != nil && opts.LoginValidator != nil {
			api.Post("/auth/login", HandleLogin(opts.Login, opts.LoginValidator, cfg.BodyLimitBytes))
		}

		api.Group(func(protected chi.Router) {
			protected.Use(gwmiddleware.Session(opts.Issuer))
			protected.Get("/auth/verify", HandleVerify())
			if opts.ProtectedRoutes != nil {
				opts.ProtectedRoutes(protected)
			}
		})

		if opts.PublicRoutes != nil {
			opts.PublicRoutes(api)
		}
	})

	return r
}

func prefixOrRoot(prefix string) string {
	if prefix == "" {
		return "/"
	}
	return prefix
}
