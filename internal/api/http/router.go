package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aabubakar17/meetEasy/internal/calendar"
	"github.com/aabubakar17/meetEasy/internal/featured"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/metrics"
	"github.com/aabubakar17/meetEasy/internal/observability"
	"github.com/aabubakar17/meetEasy/internal/payment"
	"github.com/aabubakar17/meetEasy/internal/registration"
	"github.com/aabubakar17/meetEasy/internal/search"
	"github.com/aabubakar17/meetEasy/internal/server"
	"github.com/aabubakar17/meetEasy/internal/storage"
	"github.com/aabubakar17/meetEasy/internal/store"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIDeps are the components behind the API listener.
type APIDeps struct {
	Search       *search.Service
	External     ExternalLookup
	Store        store.EventStore
	Images       *storage.Images
	MaxUploadMB  int64
	Registration *registration.Service
	Calendar     *calendar.Builder
	Google       *calendar.Google
	Featured     *featured.Carousel
	Stats        *observability.SearchStats
	Health       Pinger
	Metrics      *metrics.Metrics
	Shutdown     *server.Manager
	Logger       *zap.Logger
}

// NewAPIRouter wires the search, event, registration and metrics routes.
func NewAPIRouter(d APIDeps) http.Handler {
	logger := logging.OrNop(d.Logger)
	mux := http.NewServeMux()

	mux.Handle("GET /v1/search", NewSearchHandler(d.Search, logger))
	mux.Handle("GET /v1/search/popular", NewPopularHandler(d.Stats))
	mux.Handle("GET /v1/featured", NewFeaturedHandler(d.Featured))
	mux.Handle("GET /v1/external/events/{id}", NewExternalEventHandler(d.External, logger))

	events := NewEventsHandler(d.Store, d.Images, d.MaxUploadMB, logger)
	mux.HandleFunc("POST /v1/events", events.Create)
	mux.HandleFunc("GET /v1/events/{id}", events.Get)
	mux.HandleFunc("PUT /v1/events/{id}", events.Update)
	mux.HandleFunc("DELETE /v1/events/{id}", events.Delete)
	mux.HandleFunc("GET /v1/me/events", events.ListMine)
	mux.HandleFunc("PUT /v1/events/{id}/image", events.UploadImage)
	mux.HandleFunc("GET /images/{key...}", events.ServeImage)

	reg := NewRegistrationHandler(d.Registration, d.Store, d.Calendar, d.Google, logger)
	mux.HandleFunc("POST /v1/events/{id}/registrations", reg.Register)
	mux.HandleFunc("POST /v1/registrations/{id}/confirm", reg.Confirm)
	mux.HandleFunc("GET /v1/events/{id}/calendar.ics", reg.ICS)
	mux.HandleFunc("POST /v1/events/{id}/calendar", reg.AddToGoogle)

	mux.Handle("GET /health", NewHealthHandler(d.Health))
	mux.Handle("GET /metrics", d.Metrics.Handler())

	return wrap(mux, d.Metrics, d.Shutdown, logger)
}

// NewPaymentsRouter wires the payment-intent listener.
func NewPaymentsRouter(p *payment.Service, m *metrics.Metrics, shutdown *server.Manager, logger *zap.Logger) http.Handler {
	logger = logging.OrNop(logger)
	mux := http.NewServeMux()
	mux.Handle("POST /create-payment-intent", NewPaymentHandler(p, logger))
	mux.Handle("GET /health", NewHealthHandler(nil))
	return wrap(mux, m, shutdown, logger)
}

func wrap(mux *http.ServeMux, m *metrics.Metrics, shutdown *server.Manager, logger *zap.Logger) http.Handler {
	chain := []func(http.Handler) http.Handler{
		RecoveryMiddleware(logger),
		CORSMiddleware,
		RequestIDMiddleware,
		CorrelationIDMiddleware,
		AccessLogMiddleware(logger),
		ContentTypeMiddleware,
	}
	if shutdown != nil {
		chain = append(chain, server.Middleware(shutdown))
	}
	chain = append(chain, MetricsMiddleware(m))
	return ChainMiddleware(chain...)(mux)
}

// HealthHandler handles GET /health requests.
type HealthHandler struct {
	pinger Pinger
}

// NewHealthHandler creates a health handler. A nil pinger always reports ok.
func NewHealthHandler(p Pinger) *HealthHandler {
	return &HealthHandler{pinger: p}
}

// ServeHTTP reports service health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
