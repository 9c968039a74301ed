package payment

import "time"

type Status string

const (
	// StatusCreated means a remote gateway order exists but no verified
	// capture has been recorded. A signature mismatch leaves the intent
	// here so a later correct verification is still honoured.
	StatusCreated Status = "Created"
	// StatusPaid means the gateway callback signature verified.
	StatusPaid Status = "Paid"
	// StatusClaimed means a checkout has consumed this intent for its
	// ledger commits. A Paid intent can be claimed exactly once.
	StatusClaimed Status = "Claimed"
)

// Intent is the durable record of one attempted charge, keyed by the
// gateway-issued order id. It is the single source of truth for whether
// the money behind a checkout was actually captured, independent of how
// many merchant orders it eventually funds.
type Intent struct {
	ID               int64     `json:"id"`
	GatewayOrderID   string    `json:"gatewayOrderId"`
	GatewayPaymentID string    `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string    `json:"gatewaySignature,omitempty"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}
