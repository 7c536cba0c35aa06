// Package payment creates card payment intents with Stripe.
package payment

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/logging"
)

// DefaultCurrency is used when none is configured.
const DefaultCurrency = "gbp"

// StatusSucceeded is the intent status of a completed payment.
const StatusSucceeded = string(stripe.PaymentIntentStatusSucceeded)

// Intent is the part of a created payment intent the client needs.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// IntentCreator creates payment intents for an amount in minor units and
// reports the status of existing ones.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error)
	IntentStatus(ctx context.Context, id string) (string, error)
}

// StripeCreator creates intents through the Stripe API.
type StripeCreator struct {
	api *client.API
}

// NewStripeCreator returns a creator authenticated with secretKey.
func NewStripeCreator(secretKey string) *StripeCreator {
	return &StripeCreator{api: client.New(secretKey, nil)}
}

// CreateIntent implements IntentCreator.
func (s *StripeCreator) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// IntentStatus implements IntentCreator.
func (s *StripeCreator) IntentStatus(ctx context.Context, id string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return "", err
	}
	return string(pi.Status), nil
}

// Service validates payment requests and forwards them to an IntentCreator.
type Service struct {
	creator  IntentCreator
	currency string
	logger   *zap.Logger
}

// NewService creates a payment service. An empty currency selects GBP.
func NewService(creator IntentCreator, currency string, logger *zap.Logger) *Service {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Service{creator: creator, currency: currency, logger: logging.OrNop(logger)}
}

// Currency returns the currency intents are created in.
func (s *Service) Currency() string {
	return s.currency
}

// CreateIntent creates an intent for amount minor units.
func (s *Service) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (Intent, error) {
	if amount <= 0 {
		return Intent{}, apperrors.NewValidationError(apperrors.CodeInvalidAmount, "amount must be a positive integer").
			WithDetails(map[string]interface{}{"amount": amount})
	}

	intent, err := s.creator.CreateIntent(ctx, amount, s.currency, metadata)
	if err != nil {
		s.logger.Error("Error creating payment intent",
			zap.Int64("amount", amount),
			zap.String("currency", s.currency),
			zap.Error(err),
		)
		return Intent{}, apperrors.NewPaymentError(err.Error(), err)
	}

	s.logger.Debug("Payment intent created", zap.String("intent_id", intent.ID), zap.Int64("amount", amount))
	return intent, nil
}

// IntentStatus returns the provider status of intent id, such as
// "succeeded" or "requires_payment_method".
func (s *Service) IntentStatus(ctx context.Context, id string) (string, error) {
	status, err := s.creator.IntentStatus(ctx, id)
	if err != nil {
		s.logger.Error("Error retrieving payment intent", zap.String("intent_id", id), zap.Error(err))
		return "", apperrors.NewPaymentError(err.Error(), err)
	}
	return status, nil
}
