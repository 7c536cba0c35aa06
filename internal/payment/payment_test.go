package payment

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
)

type fakeCreator struct {
	calls    int
	amount   int64
	currency string
	metadata map[string]string
	err      error
	statuses map[string]string
}

func (f *fakeCreator) CreateIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (Intent, error) {
	f.calls++
	f.amount, f.currency, f.metadata = amount, currency, metadata
	if f.err != nil {
		return Intent{}, f.err
	}
	return Intent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}, nil
}

func (f *fakeCreator) IntentStatus(_ context.Context, id string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.statuses[id], nil
}

func TestService_CreateIntent(t *testing.T) {
	fc := &fakeCreator{}
	svc := NewService(fc, "", nil)

	intent, err := svc.CreateIntent(context.Background(), 2500, map[string]string{"event_id": "ev-1"})
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	if intent.ClientSecret != "pi_123_secret_abc" {
		t.Errorf("unexpected client secret %q", intent.ClientSecret)
	}
	if fc.amount != 2500 || fc.currency != "gbp" {
		t.Errorf("expected 2500 gbp, got %d %s", fc.amount, fc.currency)
	}
	if fc.metadata["event_id"] != "ev-1" {
		t.Errorf("metadata not forwarded: %v", fc.metadata)
	}
}

func TestService_RejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []int64{0, -1} {
		fc := &fakeCreator{}
		svc := NewService(fc, "gbp", nil)

		_, err := svc.CreateIntent(context.Background(), amount, nil)
		if !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
			t.Errorf("amount %d: expected INVALID_AMOUNT, got %v", amount, err)
		}
		if fc.calls != 0 {
			t.Errorf("amount %d: provider must not be called", amount)
		}
	}
}

func TestService_ProviderFailure(t *testing.T) {
	fc := &fakeCreator{err: errors.New("card_declined")}
	svc := NewService(fc, "GBP", nil)

	_, err := svc.CreateIntent(context.Background(), 100, nil)
	if apperrors.GetCategory(err) != apperrors.ErrCategoryPayment {
		t.Fatalf("expected payment error, got %v", err)
	}
	if !errors.Is(err, fc.err) {
		t.Error("provider error must stay in the chain")
	}
	if fc.currency != "gbp" {
		t.Errorf("currency must be normalised, got %q", fc.currency)
	}
}

func TestService_IntentStatus(t *testing.T) {
	fc := &fakeCreator{statuses: map[string]string{
		"pi_paid":   StatusSucceeded,
		"pi_unpaid": "requires_payment_method",
	}}
	svc := NewService(fc, "gbp", nil)

	status, err := svc.IntentStatus(context.Background(), "pi_paid")
	if err != nil || status != "succeeded" {
		t.Errorf("expected succeeded, got %q %v", status, err)
	}
	status, err = svc.IntentStatus(context.Background(), "pi_unpaid")
	if err != nil || status != "requires_payment_method" {
		t.Errorf("expected requires_payment_method, got %q %v", status, err)
	}

	fc.err = errors.New("no such payment_intent")
	if _, err := svc.IntentStatus(context.Background(), "pi_gone"); apperrors.GetCategory(err) != apperrors.ErrCategoryPayment {
		t.Errorf("expected payment error, got %v", err)
	}
}
