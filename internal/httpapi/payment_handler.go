package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kitchencloud/checkout-go/internal/payment"
)

// PaymentAPI is the slice of payment.Service the handlers need.
type PaymentAPI interface {
	CreateOrder(ctx context.Context, amount int64) (payment.CreateOrderResult, error)
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error
	ClaimIntent(ctx context.Context, orderID string) (payment.Intent, error)
	ListIntents(ctx context.Context) ([]payment.Intent, error)
}

type PaymentHandler struct {
	svc     PaymentAPI
	metrics *Metrics
}

func NewPaymentHandler(svc PaymentAPI, metrics *Metrics) *PaymentHandler {
	return &PaymentHandler{svc: svc, metrics: metrics}
}

func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "amount must be positive"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.svc.CreateOrder(ctx, body.Amount)
	if err != nil {
		// No intent was persisted; the caller may retry from scratch.
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.svc.VerifyPayment(ctx, body.OrderID, body.PaymentID, body.Signature)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Payment verified successfully",
		})
	case errors.Is(err, payment.ErrSignatureMismatch):
		h.metrics.VerifyMismatches.Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "failed",
			"message": "Invalid payment signature",
		})
	case errors.Is(err, payment.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
}

func (h *PaymentHandler) ClaimIntent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	in, err := h.svc.ClaimIntent(ctx, body.OrderID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "success",
			"paymentId": in.GatewayPaymentID,
			"amount":    in.Amount,
		})
	case errors.Is(err, payment.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	case errors.Is(err, payment.ErrAlreadyClaimed):
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Intent already claimed"})
	case errors.Is(err, payment.ErrNotPaid):
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Intent not paid"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
}

func (h *PaymentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	intents, err := h.svc.ListIntents(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to load intents"})
		return
	}
	if intents == nil {
		intents = []payment.Intent{}
	}

	writeJSON(w, http.StatusOK, intents)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
