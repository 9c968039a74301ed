package checkout

// State tracks one checkout attempt through the commit pipeline.
type State string

const (
	StateIdle                    State = "idle"
	StatePricingComputed         State = "pricing_computed"
	StateIntentCreated           State = "intent_created"
	StateAwaitingGatewayCallback State = "awaiting_gateway_callback"
	StateVerifying               State = "verifying"
	StateVerified                State = "verified"
	StateVerificationFailed      State = "verification_failed"
	StateCommittingOrders        State = "committing_orders"
	StateAllCommitted            State = "all_committed"
	StatePartiallyCommitted      State = "partially_committed"
	StateAborted                 State = "aborted"
)

// Terminal reports whether the checkout attempt is finished.
func (s State) Terminal() bool {
	switch s {
	case StateAllCommitted, StatePartiallyCommitted, StateVerificationFailed, StateAborted:
		return true
	default:
		return false
	}
}
