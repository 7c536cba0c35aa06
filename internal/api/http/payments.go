package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/payment"
)

// PaymentIntentRequest is the body of POST /create-payment-intent.
type PaymentIntentRequest struct {
	Amount int64 `json:"amount"`
}

// PaymentIntentResponse carries the secret the browser uses to confirm
// the payment.
type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// PaymentHandler handles POST /create-payment-intent requests.
type PaymentHandler struct {
	service *payment.Service
	logger  *zap.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service *payment.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logging.OrNop(logger)}
}

// ServeHTTP handles the payment-intent HTTP request. Every failure,
// including an unreadable body, is a 500 with a JSON error body.
func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), req.Amount, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentIntentResponse{ClientSecret: intent.ClientSecret})
}

func (h *PaymentHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Category == apperrors.ErrCategoryPayment && appErr.Cause != nil {
			message = appErr.Cause.Error()
		}
	}

	requestID := GetRequestID(r.Context())
	h.logger.Error("Payment intent failed",
		zap.String("request_id", requestID),
		zap.String("code", apperrors.GetCode(err)),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, message, requestID)
}
