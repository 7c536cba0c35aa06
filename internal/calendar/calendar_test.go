package calendar

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabubakar17/meetEasy/internal/config"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(config.DefaultConfig().Calendar)
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	return b
}

func sampleEvent() *event.Event {
	return &event.Event{
		ID:          "ev-1",
		Title:       "Jazz Night",
		Description: "Live trio",
		Location:    "london",
		Venue:       "Barbican",
		EventDate:   "2025-06-01",
		EventTime:   "19:30",
	}
}

func TestBuilder_Span(t *testing.T) {
	b := newTestBuilder(t)

	span, err := b.Span(sampleEvent())
	require.NoError(t, err)
	assert.False(t, span.AllDay)
	// BST is UTC+1 in June
	assert.Equal(t, time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC), span.Start.UTC())
	assert.Equal(t, 2*time.Hour, span.End.Sub(span.Start))

	allDay := sampleEvent()
	allDay.EventTime = ""
	span, err = b.Span(allDay)
	require.NoError(t, err)
	assert.True(t, span.AllDay)
	assert.Equal(t, "2025-06-02", span.End.Format(event.DateLayout))

	bad := sampleEvent()
	bad.EventDate = ""
	_, err = b.Span(bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidEvent))
}

func TestBuilder_ICS(t *testing.T) {
	b := newTestBuilder(t)

	out, err := b.ICS(sampleEvent(), "https://meeteasy.example/v1/events/ev-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	vev := events[0]
	assert.Equal(t, "ev-1@meeteasy", vev.GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "Jazz Night", vev.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Barbican, london", vev.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Equal(t, "20250601T183000Z", vev.GetProperty(ical.ComponentPropertyDtStart).Value)
}

func TestBuilder_ICSAllDay(t *testing.T) {
	b := newTestBuilder(t)
	ev := sampleEvent()
	ev.EventTime = ""
	ev.Venue = ""

	out, err := b.ICS(ev, "")
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	vev := cal.Events()[0]
	assert.Equal(t, "20250601", vev.GetProperty(ical.ComponentPropertyDtStart).Value)
	assert.Equal(t, "london", vev.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Nil(t, vev.GetProperty(ical.ComponentPropertyUrl))
}

func TestGoogle_Insert(t *testing.T) {
	var gotBody googleEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Write([]byte(`{"id":"g-1","htmlLink":"https://calendar.google.com/event?eid=g-1"}`))
	}))
	defer srv.Close()

	g := NewGoogle(srv.URL+"/", srv.Client(), newTestBuilder(t))
	ins, err := g.Insert(context.Background(), "tok", sampleEvent(), "https://meeteasy.example/v1/events/ev-1")
	require.NoError(t, err)

	assert.Equal(t, "g-1", ins.ID)
	assert.Equal(t, "Jazz Night", gotBody.Summary)
	assert.Equal(t, "Europe/London", gotBody.Start.TimeZone)
	assert.Equal(t, "2025-06-01T19:30:00+01:00", gotBody.Start.DateTime)
	require.NotNil(t, gotBody.Source)
	assert.Equal(t, "https://meeteasy.example/v1/events/ev-1", gotBody.Source.URL)
}

func TestGoogle_InsertErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"expired token", http.StatusUnauthorized, apperrors.CodeUnauthenticated},
		{"scope missing", http.StatusForbidden, apperrors.CodePermissionDenied},
		{"server error", http.StatusInternalServerError, apperrors.CodeUpstreamFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			g := NewGoogle(srv.URL, srv.Client(), newTestBuilder(t))
			_, err := g.Insert(context.Background(), "tok", sampleEvent(), "")
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestGoogle_InsertRequiresToken(t *testing.T) {
	g := NewGoogle("http://unused", nil, newTestBuilder(t))
	_, err := g.Insert(context.Background(), "", sampleEvent(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
}
