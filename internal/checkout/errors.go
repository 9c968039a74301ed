package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGatewayUnavailable means the payment collection surface could not
// even be loaded. Terminal; the user retries the whole checkout.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrUserCancelled means the user abandoned the gateway's collection UI.
// Clean abort: the only remote residue is an unconsumed Created intent.
var ErrUserCancelled = errors.New("payment cancelled by user")

// ValidationError is caught before any remote call; the checkout never
// advances past Idle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CommitFailure is one merchant group whose ledger call failed after the
// payment was captured. MerchantName is the catalog display name when it
// could be resolved; the id is always set.
type CommitFailure struct {
	MerchantID   string
	MerchantName string
	Err          error
}

func (f CommitFailure) label() string {
	if f.MerchantName != "" {
		return f.MerchantName
	}
	return f.MerchantID
}

// PartialCommitError means money was taken but not every merchant order
// exists. This must reach the user as its own condition, with the payment
// id for support, never as a generic failure — and the cart must survive
// so the missing groups can be retried without re-charging.
type PartialCommitError struct {
	PaymentID string
	Failed    []CommitFailure
}

func (e *PartialCommitError) Error() string {
	merchants := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		merchants[i] = f.label()
	}
	return fmt.Sprintf("payment %s captured but orders failed for merchants %s; contact support with the payment id",
		e.PaymentID, strings.Join(merchants, ", "))
}
