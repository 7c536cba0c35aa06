package http

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/storage"
	"github.com/aabubakar17/meetEasy/internal/store"
)

// EventInput is the owner-editable part of an event. A nil ImageURL leaves
// the current image in place.
type EventInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Venue       string             `json:"venue"`
	Category    string             `json:"category"`
	EventDate   string             `json:"eventDate"`
	EventTime   string             `json:"eventTime"`
	TicketTypes []event.TicketType `json:"ticketTypes"`
	ImageURL    *string            `json:"imageUrl,omitempty"`
}

func (in EventInput) apply(ev *event.Event) {
	ev.Title = in.Title
	ev.Description = in.Description
	ev.Location = in.Location
	ev.Venue = in.Venue
	ev.Category = in.Category
	ev.EventDate = in.EventDate
	ev.EventTime = in.EventTime
	ev.TicketTypes = in.TicketTypes
	if in.ImageURL != nil {
		ev.ImageURL = *in.ImageURL
	}
}

// EventsResponse wraps a list of events.
type EventsResponse struct {
	Events []event.Event `json:"events"`
}

// EventsHandler serves event management routes.
type EventsHandler struct {
	store       store.EventStore
	images      *storage.Images
	maxUploadMB int64
	logger      *zap.Logger
}

// NewEventsHandler creates the event management handler.
func NewEventsHandler(s store.EventStore, images *storage.Images, maxUploadMB int64, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{store: s, images: images, maxUploadMB: maxUploadMB, logger: logger}
}

// Create handles POST /v1/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var in EventInput
	if err := decodeJSON(r, &in); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	ev := &event.Event{UserID: owner}
	in.apply(ev)
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.store.Create(r.Context(), ev); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Event created", zap.String("event_id", ev.ID), zap.String("user_id", owner))
	writeJSON(w, http.StatusCreated, ev)
}

// Get handles GET /v1/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Update handles PUT /v1/events/{id}.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ev, err := h.owned(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var in EventInput
	if err := decodeJSON(r, &in); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	oldImage := ev.ImageURL
	in.apply(ev)
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.store.Update(r.Context(), ev); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if oldImage != ev.ImageURL {
		h.removeImage(r, oldImage)
	}

	writeJSON(w, http.StatusOK, ev)
}

// Delete handles DELETE /v1/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ev, err := h.owned(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.store.Delete(r.Context(), ev.ID); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	h.removeImage(r, ev.ImageURL)

	h.logger.Info("Event deleted", zap.String("event_id", ev.ID))
	w.WriteHeader(http.StatusNoContent)
}

// ListMine handles GET /v1/me/events.
func (h *EventsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	evs, err := h.store.ListByOwner(r.Context(), owner)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: evs})
}

// UploadImage handles PUT /v1/events/{id}/image with a multipart "file" part.
func (h *EventsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ev, err := h.owned(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	limit := h.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeAppError(w, r, h.logger, apperrors.NewValidationError(apperrors.CodeBadPayload, "invalid multipart upload: "+err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, r, h.logger, apperrors.NewValidationError(apperrors.CodeBadPayload, "file part is required"))
		return
	}
	defer file.Close()

	if header.Size > limit {
		writeAppError(w, r, h.logger, apperrors.NewValidationError(apperrors.CodeBadPayload, "image too large").
			WithDetails(map[string]interface{}{"maxMB": h.maxUploadMB}))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeAppError(w, r, h.logger, apperrors.NewValidationError(apperrors.CodeBadPayload, "file must be an image").
			WithDetails(map[string]interface{}{"contentType": contentType}))
		return
	}

	url, err := h.images.Upload(r.Context(), header.Filename, file, contentType)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	oldImage := ev.ImageURL
	ev.ImageURL = url
	if err := h.store.Update(r.Context(), ev); err != nil {
		h.removeImage(r, url)
		writeAppError(w, r, h.logger, err)
		return
	}
	h.removeImage(r, oldImage)

	writeJSON(w, http.StatusOK, ev)
}

// ServeImage handles GET /images/{key...} for images held in the configured
// object store.
func (h *EventsHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	rc, err := h.images.Read(r.Context(), storage.ImagePrefix+r.PathValue("key"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "image not found", GetRequestID(r.Context()))
			return
		}
		writeAppError(w, r, h.logger, apperrors.NewStorageError(apperrors.CodeUploadFailed, "failed to read image", err))
		return
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	head, _ := br.Peek(512)
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, br)
}

// owned loads the path event and checks the caller owns it.
func (h *EventsHandler) owned(r *http.Request) (*event.Event, error) {
	caller, err := userID(r)
	if err != nil {
		return nil, err
	}
	ev, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if ev.UserID != caller {
		return nil, apperrors.New(apperrors.ErrCategoryValidation, apperrors.CodeForbidden, "only the owner can change this event")
	}
	return ev, nil
}

func (h *EventsHandler) removeImage(r *http.Request, url string) {
	if err := h.images.Remove(r.Context(), url); err != nil {
		h.logger.Warn("Failed to delete replaced image", zap.String("url", url), zap.Error(err))
	}
}
