/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for a dashboard
  6. Auth:       Bearer JWT (or X-Caller in dev mode) -> caller in context

ROUTE GROUPS:
  /api/periods/*       Periods, allocations, distribution, claims
  /api/panels/*        Energy production
  /api/ownership/*     Ownership table
  /api/maintenance/*   Maintenance fund
  /api/scenarios/*     Demo scenarios (demo mode only)
  /healthz             Liveness + database ping
  /metrics             Prometheus

AUTHENTICATION:
  Reads are public. Every POST/PUT requires a caller; the domain services
  then decide whether that caller may act (see credit/authz.go).

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Token parsing
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/solar-credits/auth"
	"github.com/warp/solar-credits/metrics"
	"go.uber.org/zap"
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries the router's optional collaborators.
type RouterConfig struct {
	JWTSecret      []byte
	AllowedOrigins []string
	DB             Pinger
	Logger         *zap.Logger

	// Scenarios exposes /api/scenarios. Loading may reset the database.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.DevCallerHeader},
		AllowCredentials: true,
	}))
	authn := auth.NewMiddleware(cfg.JWTSecret)
	authn.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, http.StatusUnauthorized, "Invalid token", err)
	}
	r.Use(authn.Wrap)

	r.Get("/healthz", healthz(cfg.DB))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Get("/{id}", h.GetPeriod)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/allocations", h.ListAllocations)
			r.Get("/{id}/allocations/{owner}", h.GetAllocation)

			r.Group(func(r chi.Router) {
				r.Use(requireCaller)
				r.Post("/", h.RegisterPeriod)
				r.Post("/recover", h.RecoverPeriods)
				r.Post("/{id}/allocations", h.Allocate)
				r.Post("/{id}/allocations/registry", h.AllocateAll)
				r.Post("/{id}/finalize", h.Finalize)
				r.Post("/{id}/distribute", h.Distribute)
				r.Post("/{id}/mark-distributed", h.MarkDistributed)
				r.Post("/{id}/claim", h.Claim)
			})
		})

		// Energy routes
		r.Route("/panels/{panel}", func(r chi.Router) {
			r.Get("/production/{date}", h.GetProduction)
			r.Get("/monthly/{year}/{month}", h.GetMonthlyTotal)
			r.Get("/annual/{year}", h.GetAnnualTotal)
			r.With(requireCaller).Post("/production", h.RecordProduction)
		})

		// Ownership routes
		r.Route("/ownership", func(r chi.Router) {
			r.Get("/", h.ListOwners)
			r.Get("/{owner}", h.GetOwner)
			r.With(requireCaller).Put("/", h.AssignOwnership)
			r.With(requireCaller).Post("/transfer", h.TransferOwnership)
		})

		// Scenario routes
		if cfg.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.With(requireCaller).Post("/load", h.LoadScenario)
			})
		}

		// Maintenance routes
		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/rate", h.GetRate)
			r.Get("/required", h.GetRequiredContribution)
			r.Get("/contributions/{contributor}/{year}/{month}", h.GetContribution)
			r.Get("/records/{id}", h.GetMaintenanceRecord)

			r.Group(func(r chi.Router) {
				r.Use(requireCaller)
				r.Put("/rate", h.UpdateRate)
				r.Post("/contributions", h.Contribute)
				r.Post("/records", h.ProposeMaintenance)
				r.Post("/records/{id}/approve", h.ApproveMaintenance)
				r.Post("/records/{id}/start", h.StartMaintenance)
				r.Post("/records/{id}/complete", h.CompleteMaintenance)
			})
		})
	})

	return r
}

// requireCaller rejects anonymous mutations.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.CallerFromContext(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
