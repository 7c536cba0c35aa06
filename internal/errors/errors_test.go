package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := New(ErrCategoryUpstream, CodeRateLimited, "ticketing api throttled")
	expected := "[UPSTREAM:RATE_LIMITED] ticketing api throttled"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStore, CodeQueryFailed, "search by location", cause)
	expected := "[STORE:QUERY_FAILED] search by location: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryPayment, CodeIntentFailed, "stripe", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestError_Is(t *testing.T) {
	err1 := New(ErrCategoryStore, CodeNotFound, "first")
	err2 := New(ErrCategoryStore, CodeNotFound, "second")
	err3 := New(ErrCategoryStore, CodePermissionDenied, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("handler: %w", err1)
	if !errors.Is(wrapped, New(ErrCategoryStore, CodeNotFound, "")) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryUpstream, CodeRateLimited, true},
		{ErrCategoryUpstream, CodeUpstreamFailed, false},
		{ErrCategoryUpstream, CodeCircuitOpen, false},
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStore, CodePermissionDenied, false},
		{ErrCategoryStore, CodeQueryFailed, false},
		{ErrCategoryValidation, CodeEmptyQuery, false},
		{ErrCategoryPayment, CodeIntentFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidAmount, "amount must be positive")
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCode(err) != CodeInvalidAmount {
		t.Errorf("got %q, want %q", GetCode(err), CodeInvalidAmount)
	}
	if !HasCode(fmt.Errorf("ctx: %w", err), CodeInvalidAmount) {
		t.Error("HasCode should match wrapped error")
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain")) != "" {
		t.Error("non-structured errors should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidEvent, "title is required")
	detailed := err.WithDetails(map[string]interface{}{"field": "title"})

	if detailed.Details["field"] != "title" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	if v := NewValidationError(CodeEmptyQuery, "no filters"); v.Category != ErrCategoryValidation || v.Code != CodeEmptyQuery {
		t.Error("NewValidationError mismatch")
	}
	if u := NewUpstreamError(CodeUpstreamFailed, "502", cause); u.Category != ErrCategoryUpstream || !errors.Is(u, cause) {
		t.Error("NewUpstreamError mismatch")
	}
	if s := NewStoreError(CodeQueryFailed, "select", cause); s.Category != ErrCategoryStore {
		t.Error("NewStoreError mismatch")
	}
	if s := NewStorageError(CodeUploadFailed, "put", cause); s.Category != ErrCategoryStorage || !s.Retryable {
		t.Error("NewStorageError mismatch")
	}
	if p := NewPaymentError("stripe down", cause); p.Category != ErrCategoryPayment || p.Code != CodeIntentFailed {
		t.Error("NewPaymentError mismatch")
	}
	if i := NewInternalError("unexpected", cause); i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
