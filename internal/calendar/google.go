package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const insertPath = "/calendars/primary/events"

type eventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	Location    string       `json:"location,omitempty"`
	Start       eventTime    `json:"start"`
	End         eventTime    `json:"end"`
	Source      *eventSource `json:"source,omitempty"`
}

type eventSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Inserted describes an event created in the user's calendar.
type Inserted struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
}

// Google inserts events into a user's primary Google Calendar using the
// user's own OAuth access token.
type Google struct {
	baseURL string
	client  *http.Client
	builder *Builder
}

// NewGoogle creates a Google Calendar client. A nil client uses
// http.DefaultClient.
func NewGoogle(baseURL string, client *http.Client, builder *Builder) *Google {
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{baseURL: strings.TrimRight(baseURL, "/"), client: client, builder: builder}
}

// Insert adds ev to the primary calendar of the token's owner.
func (g *Google) Insert(ctx context.Context, token string, ev *event.Event, url string) (Inserted, error) {
	if token == "" {
		return Inserted{}, apperrors.NewValidationError(apperrors.CodeUnauthenticated, "a Google access token is required")
	}

	span, err := g.builder.Span(ev)
	if err != nil {
		return Inserted{}, err
	}

	body := googleEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    location(ev),
	}
	zone := g.builder.Location().String()
	if span.AllDay {
		body.Start = eventTime{Date: span.Start.Format(event.DateLayout)}
		body.End = eventTime{Date: span.End.Format(event.DateLayout)}
	} else {
		body.Start = eventTime{DateTime: span.Start.Format(time.RFC3339), TimeZone: zone}
		body.End = eventTime{DateTime: span.End.Format(time.RFC3339), TimeZone: zone}
	}
	if url != "" {
		body.Source = &eventSource{Title: "meetEasy", URL: url}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Inserted{}, apperrors.NewInternalError("failed to encode calendar event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+insertPath, bytes.NewReader(payload))
	if err != nil {
		return Inserted{}, apperrors.NewInternalError("failed to build calendar request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Inserted{}, apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed, "Error adding event to Google Calendar", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Inserted{}, apperrors.NewValidationError(apperrors.CodeUnauthenticated, "Google rejected the access token")
	case resp.StatusCode == http.StatusForbidden:
		return Inserted{}, apperrors.NewUpstreamError(apperrors.CodePermissionDenied, "calendar access not granted", nil)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Inserted{}, apperrors.NewUpstreamError(apperrors.CodeUpstreamFailed,
			fmt.Sprintf("Error adding event to Google Calendar: status %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(msg))))
	}

	var out Inserted
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Inserted{}, apperrors.NewUpstreamError(apperrors.CodeBadPayload, "unreadable calendar response", err)
	}
	return out, nil
}
