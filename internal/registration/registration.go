// Package registration signs attendees up for user-created events.
package registration

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/payment"
)

// Quantity bounds per registration.
const (
	MinQuantity = 1
	MaxQuantity = 5
)

// Store is the persistence the registration flow needs.
type Store interface {
	Get(ctx context.Context, id string) (*event.Event, error)
	AddAttendee(ctx context.Context, a *event.Attendee) error
	GetAttendee(ctx context.Context, id string) (*event.Attendee, error)
	ConfirmAttendee(ctx context.Context, id string) (*event.Attendee, error)
}

// Payments creates payment intents for paid tickets and reports whether
// they have been paid.
type Payments interface {
	CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (payment.Intent, error)
	IntentStatus(ctx context.Context, id string) (string, error)
}

// Mailer sends confirmation emails without blocking the caller.
type Mailer interface {
	Dispatch(to string, ev event.Event)
}

// Request is a registration for one ticket tier.
type Request struct {
	EventID    string `json:"-"`
	UserID     string `json:"-"`
	Email      string `json:"email"`
	TicketType string `json:"ticketType"`
	Quantity   int    `json:"quantity"`
}

// Outcome is the stored attendee and, for paid tickets, the client secret
// used to complete payment.
type Outcome struct {
	Attendee     event.Attendee `json:"attendee"`
	ClientSecret string         `json:"clientSecret,omitempty"`
}

// Service runs registrations.
type Service struct {
	store    Store
	payments Payments
	mailer   Mailer
	logger   *zap.Logger
}

// NewService creates a registration service. payments may be nil, in which
// case only free tickets can be registered.
func NewService(store Store, payments Payments, mailer Mailer, logger *zap.Logger) *Service {
	return &Service{store: store, payments: payments, mailer: mailer, logger: logging.OrNop(logger)}
}

// Register validates req and records the attendee. Free tickets are
// confirmed at once; paid tickets stay pending until Confirm.
func (s *Service) Register(ctx context.Context, req Request) (*Outcome, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	ev, err := s.store.Get(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	tier, err := pickTier(ev, req.TicketType)
	if err != nil {
		return nil, err
	}

	att := &event.Attendee{
		EventID:    ev.ID,
		UserID:     req.UserID,
		Email:      strings.TrimSpace(req.Email),
		TicketType: tier.Name,
		Quantity:   req.Quantity,
		Amount:     tier.Price * int64(req.Quantity),
	}

	if tier.IsFree() {
		att.Status = event.AttendeeConfirmed
		if err := s.store.AddAttendee(ctx, att); err != nil {
			return nil, err
		}
		s.logger.Info("Registered for free event",
			zap.String("event_id", ev.ID),
			zap.String("attendee_id", att.ID),
			zap.Int("quantity", att.Quantity),
		)
		s.notify(att.Email, ev)
		return &Outcome{Attendee: *att}, nil
	}

	if s.payments == nil {
		return nil, apperrors.NewPaymentError("payments are not configured", errors.New("no payment provider"))
	}
	intent, err := s.payments.CreateIntent(ctx, att.Amount, map[string]string{
		"event_id":    ev.ID,
		"ticket_type": tier.Name,
	})
	if err != nil {
		return nil, err
	}

	att.Status = event.AttendeePending
	att.PaymentIntentID = intent.ID
	if err := s.store.AddAttendee(ctx, att); err != nil {
		return nil, err
	}
	s.logger.Info("Registration awaiting payment",
		zap.String("event_id", ev.ID),
		zap.String("attendee_id", att.ID),
		zap.Int64("amount", att.Amount),
	)
	return &Outcome{Attendee: *att, ClientSecret: intent.ClientSecret}, nil
}

// Confirm marks a pending registration paid once its payment intent has
// succeeded. The confirmation email is only sent on the first transition.
func (s *Service) Confirm(ctx context.Context, attendeeID string) (*event.Attendee, error) {
	before, err := s.store.GetAttendee(ctx, attendeeID)
	if err != nil {
		return nil, err
	}
	if before.Status != event.AttendeeConfirmed && before.PaymentIntentID != "" {
		if err := s.checkPaid(ctx, before); err != nil {
			return nil, err
		}
	}
	att, err := s.store.ConfirmAttendee(ctx, attendeeID)
	if err != nil {
		return nil, err
	}
	if before.Status == event.AttendeeConfirmed {
		return att, nil
	}

	ev, err := s.store.Get(ctx, att.EventID)
	if err != nil {
		s.logger.Warn("Confirmed attendee for missing event",
			zap.String("attendee_id", att.ID),
			zap.Error(err),
		)
		return att, nil
	}
	s.notify(att.Email, ev)
	return att, nil
}

func (s *Service) checkPaid(ctx context.Context, att *event.Attendee) error {
	if s.payments == nil {
		return apperrors.NewPaymentError("payments are not configured", errors.New("no payment provider"))
	}
	status, err := s.payments.IntentStatus(ctx, att.PaymentIntentID)
	if err != nil {
		return err
	}
	if status != payment.StatusSucceeded {
		s.logger.Warn("Confirmation refused, payment incomplete",
			zap.String("attendee_id", att.ID),
			zap.String("intent_id", att.PaymentIntentID),
			zap.String("intent_status", status),
		)
		return apperrors.New(apperrors.ErrCategoryPayment, apperrors.CodePaymentIncomplete, "payment has not completed").
			WithDetails(map[string]interface{}{"status": status})
	}
	return nil
}

func (s *Service) notify(to string, ev *event.Event) {
	if s.mailer != nil {
		s.mailer.Dispatch(to, *ev)
	}
}

func validate(req Request) error {
	if req.Quantity < MinQuantity || req.Quantity > MaxQuantity {
		return apperrors.NewValidationError(apperrors.CodeInvalidQuantity, "quantity must be between 1 and 5").
			WithDetails(map[string]interface{}{"quantity": req.Quantity})
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "a valid email is required").
			WithDetails(map[string]interface{}{"email": req.Email})
	}
	return nil
}

// pickTier resolves the requested ticket tier. Events without tiers admit
// free registrations only.
func pickTier(ev *event.Event, name string) (event.TicketType, error) {
	if len(ev.TicketTypes) == 0 {
		if name != "" {
			return event.TicketType{}, unknownTier(name)
		}
		return event.TicketType{}, nil
	}
	if name == "" && len(ev.TicketTypes) == 1 {
		return ev.TicketTypes[0], nil
	}
	tier, ok := ev.TicketType(name)
	if !ok {
		return event.TicketType{}, unknownTier(name)
	}
	return tier, nil
}

func unknownTier(name string) error {
	return apperrors.NewValidationError(apperrors.CodeInvalidEvent, "unknown ticket type").
		WithDetails(map[string]interface{}{"ticketType": name})
}
