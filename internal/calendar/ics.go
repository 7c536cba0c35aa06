// Package calendar exports events as iCalendar files and inserts them into
// Google Calendar.
package calendar

import (
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"

	"github.com/aabubakar17/meetEasy/internal/config"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
)

// uidDomain qualifies event ids into globally unique calendar UIDs.
const uidDomain = "@meeteasy"

// Span is the resolved start and end of an event.
type Span struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

// Builder renders events into calendar formats.
type Builder struct {
	productID string
	loc       *time.Location
	duration  time.Duration
	now       func() time.Time
}

// NewBuilder creates a builder from calendar configuration.
func NewBuilder(cfg config.CalendarConfig) (*Builder, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, err
	}
	return &Builder{
		productID: cfg.ProductID,
		loc:       loc,
		duration:  cfg.DefaultDuration,
		now:       time.Now,
	}, nil
}

// Location returns the zone event times are interpreted in.
func (b *Builder) Location() *time.Location {
	return b.loc
}

// Span resolves an event's date and time. Events without a time are all-day.
func (b *Builder) Span(ev *event.Event) (Span, error) {
	start, err := ev.Start(b.loc)
	if err != nil {
		return Span{}, apperrors.NewValidationError(apperrors.CodeInvalidEvent, "event has no valid date").
			WithDetails(map[string]interface{}{"eventDate": ev.EventDate, "eventTime": ev.EventTime})
	}
	if ev.EventTime == "" {
		return Span{Start: start, End: start.AddDate(0, 0, 1), AllDay: true}, nil
	}
	return Span{Start: start, End: start.Add(b.duration)}, nil
}

// ICS renders a VCALENDAR holding a single VEVENT for ev.
func (b *Builder) ICS(ev *event.Event, url string) (string, error) {
	span, err := b.Span(ev)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(b.productID)

	vev := cal.AddEvent(ev.ID + uidDomain)
	vev.SetDtStampTime(b.now().UTC())
	if !ev.CreatedAt.IsZero() {
		vev.SetCreatedTime(ev.CreatedAt.UTC())
	}
	if !ev.UpdatedAt.IsZero() {
		vev.SetModifiedAt(ev.UpdatedAt.UTC())
	}
	if span.AllDay {
		vev.SetAllDayStartAt(span.Start)
		vev.SetAllDayEndAt(span.End)
	} else {
		vev.SetStartAt(span.Start.UTC())
		vev.SetEndAt(span.End.UTC())
	}
	vev.SetSummary(ev.Title)
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	if loc := location(ev); loc != "" {
		vev.SetLocation(loc)
	}
	if url != "" {
		vev.SetURL(url)
	}

	return cal.Serialize(), nil
}

func location(ev *event.Event) string {
	switch {
	case ev.Venue != "" && ev.Location != "":
		return ev.Venue + ", " + ev.Location
	case ev.Venue != "":
		return ev.Venue
	default:
		return ev.Location
	}
}
