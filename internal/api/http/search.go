package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/featured"
	"github.com/aabubakar17/meetEasy/internal/observability"
	"github.com/aabubakar17/meetEasy/internal/search"
	"github.com/aabubakar17/meetEasy/internal/source"
)

// maxPageSize caps the size parameter of search requests.
const maxPageSize = 200

// SearchResponse represents the search response.
type SearchResponse struct {
	Results   []search.Result          `json:"results"`
	Sources   map[string]source.Status `json:"sources"`
	RequestID string                   `json:"request_id"`
}

// SearchHandler handles GET /v1/search requests.
type SearchHandler struct {
	service *search.Service
	logger  *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *search.Service, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: logger}
}

// ServeHTTP handles the search HTTP request.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	q, err := parseSearchQuery(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.Search(r.Context(), q)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results:   resp.Results,
		Sources:   resp.Sources,
		RequestID: requestID,
	})
}

func parseSearchQuery(r *http.Request) (search.Query, error) {
	values := r.URL.Query()
	q := search.Query{
		Keyword:  strings.TrimSpace(values.Get("keyword")),
		Location: strings.TrimSpace(values.Get("location")),
		Category: strings.TrimSpace(values.Get("category")),
	}
	if q.IsEmpty() {
		return q, apperrors.NewValidationError(apperrors.CodeEmptyQuery, "keyword, location or category is required")
	}

	if raw := values.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 || size > maxPageSize {
			return q, apperrors.NewValidationError(apperrors.CodeInvalidSize, "size must be between 1 and 200").
				WithDetails(map[string]interface{}{"size": raw})
		}
		q.PageSize = size
	}
	return q, nil
}

// FeaturedHandler handles GET /v1/featured requests.
type FeaturedHandler struct {
	carousel *featured.Carousel
}

// NewFeaturedHandler creates a new featured-events handler.
func NewFeaturedHandler(carousel *featured.Carousel) *FeaturedHandler {
	return &FeaturedHandler{carousel: carousel}
}

// ServeHTTP returns the cached carousel.
func (h *FeaturedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.carousel.Snapshot())
}

// PopularResponse lists the most used search terms.
type PopularResponse struct {
	Terms []observability.TermStats `json:"terms"`
}

// PopularHandler handles GET /v1/search/popular requests.
type PopularHandler struct {
	stats *observability.SearchStats
}

// NewPopularHandler creates a new popular-terms handler.
func NewPopularHandler(stats *observability.SearchStats) *PopularHandler {
	return &PopularHandler{stats: stats}
}

// ServeHTTP returns the top terms, optionally filtered by kind.
func (h *PopularHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", observability.KindKeyword, observability.KindLocation, observability.KindCategory:
	default:
		writeError(w, http.StatusBadRequest, "kind must be keyword, location or category", requestID)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100", requestID)
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, PopularResponse{Terms: h.stats.Top(kind, limit)})
}

// ExternalLookup fetches one external event.
type ExternalLookup interface {
	FetchByID(ctx context.Context, id string) source.Item[event.External]
}

// ExternalEventHandler handles GET /v1/external/events/{id} requests.
type ExternalEventHandler struct {
	lookup ExternalLookup
	logger *zap.Logger
}

// NewExternalEventHandler creates a new external event handler.
func NewExternalEventHandler(lookup ExternalLookup, logger *zap.Logger) *ExternalEventHandler {
	return &ExternalEventHandler{lookup: lookup, logger: logger}
}

// ServeHTTP returns the event detail or 404.
func (h *ExternalEventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	item := h.lookup.FetchByID(r.Context(), r.PathValue("id"))
	switch {
	case item.Value != nil:
		writeJSON(w, http.StatusOK, item.Value)
	case item.Status == source.StatusNotFound || item.Status == source.StatusOK:
		writeError(w, http.StatusNotFound, "event not found", requestID)
	default:
		h.logger.Warn("External event lookup degraded",
			zap.String("id", r.PathValue("id")),
			zap.String("status", string(item.Status)),
			zap.Error(item.Err),
		)
		writeError(w, http.StatusBadGateway, "ticketing service "+string(item.Status), requestID)
	}
}
