package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nerdherd/push-relay/internal/api/handler"
	apimw "github.com/nerdherd/push-relay/internal/api/middleware"
	"github.com/nerdherd/push-relay/internal/repository"
	"github.com/nerdherd/push-relay/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.PushService,
	deliveries repository.DeliveryRepository,
	checks map[string]handler.Check,
	reg prometheus.Gatherer,
	requestTimeout time.Duration,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	ph := handler.NewPushHandler(svc, logger)
	dh := handler.NewDeliveryHandler(deliveries)
	hh := handler.NewHealthHandler(checks)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// The pipeline's three network round trips share one deadline.
	r.With(chimw.Timeout(requestTimeout)).Post("/push", ph.Push)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(chimw.Timeout(requestTimeout)).Post("/push", ph.Push)
		r.Get("/users/{userID}/deliveries", dh.ListByUser)
	})

	return r
}
