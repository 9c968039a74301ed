package checkout

import "context"

// Callback is the gateway's notification of a completed collection
// attempt, signed with the shared secret.
type Callback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}

// Prefill seeds the gateway's collection UI with contact details.
type Prefill struct {
	Name    string
	Email   string
	Contact string
}

// Collector is the user-in-the-loop payment step: it renders the
// external processor's collection flow and blocks until the user
// completes payment, abandons it (ErrUserCancelled), the collection
// surface fails to load (ErrGatewayUnavailable), or ctx expires. The
// orchestrator bounds the wait with its collect timeout.
type Collector interface {
	Collect(ctx context.Context, orderID, keyID string, amount int64, prefill Prefill) (Callback, error)
}
