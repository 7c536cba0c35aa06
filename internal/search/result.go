package search

import (
	"github.com/aabubakar17/meetEasy/internal/event"
)

// DefaultImage is shown when neither source has an image.
const DefaultImage = "default-image.jpg"

// Origins of a merged result.
const (
	SourceExternal = "external"
	SourceInternal = "internal"
)

// Result is the normalized view of an event from either source.
type Result struct {
	Source   string `json:"source"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Time     string `json:"time,omitempty"`
	Venue    string `json:"venue,omitempty"`
	Image    string `json:"image"`
	URL      string `json:"url,omitempty"`
	Category string `json:"category,omitempty"`
}

// FromExternal normalizes a ticketing API event.
func FromExternal(e event.External) Result {
	venue := e.VenueName()
	if venue == "" {
		venue = e.City()
	}
	return Result{
		Source:   SourceExternal,
		ID:       e.ID,
		Name:     e.Name,
		Date:     e.Dates.Start.LocalDate,
		Time:     shortTime(e.Dates.Start.LocalTime),
		Venue:    venue,
		Image:    imageOr(e.FirstImage()),
		URL:      e.URL,
		Category: e.Segment(),
	}
}

// FromInternal normalizes a user-created event.
func FromInternal(e event.Event) Result {
	venue := e.Venue
	if venue == "" {
		venue = e.Location
	}
	return Result{
		Source:   SourceInternal,
		ID:       e.ID,
		Name:     e.Title,
		Date:     e.EventDate,
		Time:     shortTime(e.EventTime),
		Venue:    venue,
		Image:    imageOr(e.ImageURL),
		URL:      "/v1/events/" + e.ID,
		Category: e.Category,
	}
}

// shortTime trims "19:30:00" to "19:30".
func shortTime(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

func imageOr(url string) string {
	if url == "" {
		return DefaultImage
	}
	return url
}

// FromExternals normalizes a slice of ticketing API events.
func FromExternals(evs []event.External) []Result {
	out := make([]Result, 0, len(evs))
	for _, e := range evs {
		out = append(out, FromExternal(e))
	}
	return out
}

// FromInternals normalizes a slice of user-created events.
func FromInternals(evs []event.Event) []Result {
	out := make([]Result, 0, len(evs))
	for _, e := range evs {
		out = append(out, FromInternal(e))
	}
	return out
}
