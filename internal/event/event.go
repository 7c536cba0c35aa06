// Package event defines the event records shared by the search pipeline,
// the event store and the registration flow.
package event

import (
	"strings"
	"time"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
)

// CommunityCategory is the reserved category for user-created events.
// Searching it scans the internal store and skips the ticketing API.
const CommunityCategory = "Community Events"

// Categories is the fixed category catalog offered to callers.
var Categories = []string{
	CommunityCategory,
	"Arts & Theatre",
	"Sports",
	"Family",
	"Film",
	"Comedy",
	"Music",
}

// IsCategory reports whether label is in the catalog. Matching is case-sensitive.
func IsCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}

// TicketType is a named ticket tier. Price is in minor currency units; 0 means free.
type TicketType struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// IsFree reports whether the tier costs nothing.
func (t TicketType) IsFree() bool {
	return t.Price == 0
}

// Event is a user-created event held in the internal store.
type Event struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	Title         string       `json:"title"`
	TitleKeywords []string     `json:"titleKeywords"`
	Description   string       `json:"description"`
	Location      string       `json:"location"`
	Venue         string       `json:"venue"`
	Category      string       `json:"category"`
	EventDate     string       `json:"eventDate"`
	EventTime     string       `json:"eventTime"`
	TicketTypes   []TicketType `json:"ticketTypes"`
	ImageURL      string       `json:"imageUrl"`
	TicketsSold   int          `json:"ticketsSold"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Normalize lowercases the location and regenerates the keyword set from
// the title. It is applied on every create and edit.
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Location = strings.ToLower(strings.TrimSpace(e.Location))
	e.TitleKeywords = Keywords(e.Title)
	if e.TicketTypes == nil {
		e.TicketTypes = []TicketType{}
	}
}

// Validate checks the fields an owner must supply.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "title is required")
	}
	if e.EventDate == "" {
		return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "eventDate is required")
	}
	if _, err := time.Parse(DateLayout, e.EventDate); err != nil {
		return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "eventDate must be YYYY-MM-DD").
			WithDetails(map[string]interface{}{"eventDate": e.EventDate})
	}
	if e.EventTime != "" {
		if _, err := time.Parse(TimeLayout, e.EventTime); err != nil {
			return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "eventTime must be HH:MM").
				WithDetails(map[string]interface{}{"eventTime": e.EventTime})
		}
	}
	if e.Category != "" && !IsCategory(e.Category) {
		return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "unknown category").
			WithDetails(map[string]interface{}{"category": e.Category})
	}
	seen := make(map[string]struct{}, len(e.TicketTypes))
	for _, tt := range e.TicketTypes {
		if strings.TrimSpace(tt.Name) == "" {
			return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "ticket type name is required")
		}
		if tt.Price < 0 {
			return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "ticket price must not be negative").
				WithDetails(map[string]interface{}{"ticketType": tt.Name})
		}
		if _, dup := seen[tt.Name]; dup {
			return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "duplicate ticket type").
				WithDetails(map[string]interface{}{"ticketType": tt.Name})
		}
		seen[tt.Name] = struct{}{}
	}
	return nil
}

// TicketType returns the tier with the given name.
func (e *Event) TicketType(name string) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.Name == name {
			return tt, true
		}
	}
	return TicketType{}, false
}

// Start returns the event start in loc. A missing time means midnight.
func (e *Event) Start(loc *time.Location) (time.Time, error) {
	if e.EventTime == "" {
		return time.ParseInLocation(DateLayout, e.EventDate, loc)
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, e.EventDate+" "+e.EventTime, loc)
}

// Date and time layouts used by event records.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// AttendeeStatus tracks a registration through payment.
type AttendeeStatus string

const (
	AttendeePending   AttendeeStatus = "pending"
	AttendeeConfirmed AttendeeStatus = "confirmed"
)

// Attendee is a registration for an internal event.
type Attendee struct {
	ID              string         `json:"id"`
	EventID         string         `json:"eventId"`
	UserID          string         `json:"userId"`
	Email           string         `json:"email"`
	TicketType      string         `json:"ticketType"`
	Quantity        int            `json:"quantity"`
	Amount          int64          `json:"amount"`
	PaymentIntentID string         `json:"paymentIntentId,omitempty"`
	Status          AttendeeStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
}
