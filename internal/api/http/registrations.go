package http

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aabubakar17/meetEasy/internal/calendar"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/registration"
	"github.com/aabubakar17/meetEasy/internal/store"
)

// RegistrationHandler serves registration and calendar routes.
type RegistrationHandler struct {
	service  *registration.Service
	store    store.EventStore
	builder  *calendar.Builder
	google   *calendar.Google
	logger   *zap.Logger
	eventURL func(r *http.Request, id string) string
}

// NewRegistrationHandler creates the registration handler.
func NewRegistrationHandler(service *registration.Service, s store.EventStore, builder *calendar.Builder, google *calendar.Google, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service:  service,
		store:    s,
		builder:  builder,
		google:   google,
		logger:   logger,
		eventURL: absoluteEventURL,
	}
}

// Register handles POST /v1/events/{id}/registrations.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registration.Request
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	req.EventID = r.PathValue("id")
	req.UserID = r.Header.Get(UserIDHeader)

	out, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// Confirm handles POST /v1/registrations/{id}/confirm.
func (h *RegistrationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	att, err := h.service.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

// ICS handles GET /v1/events/{id}/calendar.ics.
func (h *RegistrationHandler) ICS(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	body, err := h.builder.ICS(ev, h.eventURL(r, ev.ID))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ev.ID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// AddToGoogle handles POST /v1/events/{id}/calendar.
func (h *RegistrationHandler) AddToGoogle(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeAppError(w, r, h.logger, apperrors.NewValidationError(apperrors.CodeUnauthenticated, "Authorization: Bearer <token> is required"))
		return
	}

	ev, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	ins, err := h.google.Insert(r.Context(), strings.TrimSpace(token), ev, h.eventURL(r, ev.ID))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	h.logger.Info("Event added to Google Calendar", zap.String("event_id", ev.ID), zap.String("calendar_event_id", ins.ID))
	writeJSON(w, http.StatusCreated, ins)
}

func absoluteEventURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/v1/events/" + id
}
