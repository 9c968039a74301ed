package checkout

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/kitchencloud/checkout-go/internal/clients"
	"github.com/kitchencloud/checkout-go/internal/pricing"
)

// PaymentService is the verification service surface the orchestrator
// drives. Implemented by clients.VerificationClient.
type PaymentService interface {
	CreateOrder(ctx context.Context, amount int64) (clients.CreatedOrder, error)
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error
	ClaimIntent(ctx context.Context, orderID string) (clients.ClaimedIntent, error)
}

// OrderPlacer commits one merchant group to the external order ledger.
// Implemented by clients.LedgerClient.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req clients.PlaceOrderRequest) error
}

// NGODirectory resolves donation targets. Implemented by clients.NGOClient.
type NGODirectory interface {
	ApprovedNGO(ctx context.Context, ngoID string) (clients.NGO, error)
}

// BalanceReader looks up the user's loyalty point balance. Implemented by
// clients.UsersClient.
type BalanceReader interface {
	LoyaltyBalance(ctx context.Context, userID string) (int64, error)
}

// MerchantDirectory resolves merchant display names. Implemented by
// clients.CatalogClient.
type MerchantDirectory interface {
	Merchant(ctx context.Context, merchantID string) (clients.Merchant, error)
}

// Result is the outcome of one checkout attempt. On
// StatePartiallyCommitted the cart is retained and Failed lists the
// merchants whose orders are missing.
type Result struct {
	State          State
	Totals         pricing.Totals
	Groups         []pricing.Group
	GatewayOrderID string
	PaymentID      string
	Failed         []CommitFailure
}

// Orchestrator sequences one checkout: pure pricing, the asynchronous
// user-in-the-loop payment step, verification, a one-time claim of the
// paid intent, and a concurrent fan-out of per-merchant ledger commits.
type Orchestrator struct {
	payments  PaymentService
	collector Collector
	ledger    OrderPlacer
	ngos      NGODirectory
	users     BalanceReader
	catalog   MerchantDirectory

	collectTimeout time.Duration
	logger         *log.Logger
}

func NewOrchestrator(payments PaymentService, collector Collector, ledger OrderPlacer, ngos NGODirectory, users BalanceReader, catalog MerchantDirectory, collectTimeout time.Duration, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		payments:       payments,
		collector:      collector,
		ledger:         ledger,
		ngos:           ngos,
		users:          users,
		catalog:        catalog,
		collectTimeout: collectTimeout,
		logger:         logger,
	}
}

// Run drives a checkout from Idle to a terminal state. Steps up to the
// gateway callback are safe to retry from scratch; once the payment is
// verified the flow never re-enters order creation, so the user cannot
// be charged twice. The cart is cleared only when every merchant order
// committed.
func (o *Orchestrator) Run(ctx context.Context, s *Session) (*Result, error) {
	res := &Result{State: StateIdle}

	// Step 1: validate and price. No remote side effects before this
	// passes, except the read-only NGO approval lookup.
	groups, totals, err := o.price(ctx, s)
	if err != nil {
		res.State = StateAborted
		return res, err
	}
	res.State = StatePricingComputed
	res.Totals = totals
	res.Groups = groups

	// Step 2: one intent for the whole cart; the split into merchant
	// orders happens after the money is captured.
	created, err := o.payments.CreateOrder(ctx, int64(totals.Total))
	if err != nil {
		res.State = StateAborted
		return res, err
	}
	res.State = StateIntentCreated
	res.GatewayOrderID = created.OrderID
	o.logger.Printf("checkout user=%s intent=%s amount=%d groups=%d", s.UserID, created.OrderID, created.Amount, len(groups))

	// Step 3: suspend on the gateway's collection UI, bounded by the
	// collect timeout so an abandoned checkout does not hang forever.
	res.State = StateAwaitingGatewayCallback
	collectCtx, cancel := context.WithTimeout(ctx, o.collectTimeout)
	defer cancel()

	cb, err := o.collector.Collect(collectCtx, created.OrderID, created.KeyID, created.Amount, Prefill{
		Name:    s.Name,
		Email:   s.Email,
		Contact: s.Phone,
	})
	if err != nil {
		res.State = StateAborted
		if errors.Is(err, context.DeadlineExceeded) {
			return res, ErrUserCancelled
		}
		return res, err
	}

	// Step 4: only a verified signature lets money reach the ledger.
	res.State = StateVerifying
	if err := o.payments.VerifyPayment(ctx, cb.GatewayOrderID, cb.GatewayPaymentID, cb.GatewaySignature); err != nil {
		res.State = StateVerificationFailed
		return res, err
	}
	res.State = StateVerified

	// Claim before committing: a paid intent funds exactly one set of
	// order commits.
	claimed, err := o.payments.ClaimIntent(ctx, cb.GatewayOrderID)
	if err != nil {
		res.State = StateVerificationFailed
		return res, err
	}
	res.PaymentID = claimed.PaymentID

	// Step 5: fan out the per-merchant commits.
	return o.commit(ctx, s, res, groups)
}

// RetryCommits resumes a partially committed checkout at the commit
// step, re-issuing only the failed merchant groups against the already
// claimed payment. It must never re-enter intent creation.
func (o *Orchestrator) RetryCommits(ctx context.Context, s *Session, prev *Result) (*Result, error) {
	if prev.State != StatePartiallyCommitted {
		return prev, errors.New("nothing to retry: checkout is not partially committed")
	}

	retry := make(map[string]bool, len(prev.Failed))
	for _, f := range prev.Failed {
		retry[f.MerchantID] = true
	}

	var groups []pricing.Group
	for _, g := range prev.Groups {
		if retry[g.MerchantID] {
			groups = append(groups, g)
		}
	}

	res := &Result{
		State:          StateVerified,
		Totals:         prev.Totals,
		Groups:         prev.Groups,
		GatewayOrderID: prev.GatewayOrderID,
		PaymentID:      prev.PaymentID,
	}
	return o.commit(ctx, s, res, groups)
}

func (o *Orchestrator) price(ctx context.Context, s *Session) ([]pricing.Group, pricing.Totals, error) {
	if s.UserID == "" {
		return nil, pricing.Totals{}, &ValidationError{Field: "session", Reason: "missing user, login again"}
	}
	if s.Address == "" {
		return nil, pricing.Totals{}, &ValidationError{Field: "address", Reason: "delivery address is required"}
	}
	if s.Phone == "" {
		return nil, pricing.Totals{}, &ValidationError{Field: "phone", Reason: "phone number is required"}
	}
	if s.Empty() {
		return nil, pricing.Totals{}, &ValidationError{Field: "cart", Reason: "cart is empty"}
	}

	// The balance is read fresh here rather than trusted from the client:
	// redemption caps must reflect what the user actually holds.
	if s.Adjustment.RequestedPoints > 0 {
		balance, err := o.users.LoyaltyBalance(ctx, s.UserID)
		if err != nil {
			return nil, pricing.Totals{}, &ValidationError{Field: "loyalty", Reason: err.Error()}
		}
		s.Adjustment.LoyaltyBalance = balance
	}

	groups, totals, err := pricing.Partition(s.Lines(), s.Adjustment)
	if err != nil {
		return nil, pricing.Totals{}, &ValidationError{Field: "pricing", Reason: err.Error()}
	}

	if s.Adjustment.Donation > 0 {
		if _, err := o.ngos.ApprovedNGO(ctx, s.Adjustment.NGOID); err != nil {
			return nil, pricing.Totals{}, &ValidationError{Field: "ngo", Reason: err.Error()}
		}
	}

	return groups, totals, nil
}

// commit issues one ledger call per group concurrently, waits for all of
// them, and only then decides the terminal state. There is no
// compensating transaction: a partial failure keeps the cart and reports
// the missing merchants.
func (o *Orchestrator) commit(ctx context.Context, s *Session, res *Result, groups []pricing.Group) (*Result, error) {
	res.State = StateCommittingOrders

	errs := make([]error, len(groups))
	var wg sync.WaitGroup
	for i := range groups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = o.ledger.PlaceOrder(ctx, o.placeRequest(s, groups[i], res.PaymentID))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			res.Failed = append(res.Failed, CommitFailure{
				MerchantID:   groups[i].MerchantID,
				MerchantName: o.merchantName(ctx, groups[i].MerchantID),
				Err:          err,
			})
		}
	}

	if len(res.Failed) > 0 {
		res.State = StatePartiallyCommitted
		perr := &PartialCommitError{PaymentID: res.PaymentID, Failed: res.Failed}
		o.logger.Printf("partial commit: %v", perr)
		return res, perr
	}

	res.State = StateAllCommitted
	s.ClearCart()
	o.logger.Printf("checkout committed: user=%s payment=%s orders=%d", s.UserID, res.PaymentID, len(groups))
	return res, nil
}

// merchantName is best effort: the failure report falls back to the raw
// merchant id when the catalog cannot resolve a display name.
func (o *Orchestrator) merchantName(ctx context.Context, merchantID string) string {
	m, err := o.catalog.Merchant(ctx, merchantID)
	if err != nil {
		o.logger.Printf("resolve merchant name: id=%s err=%v", merchantID, err)
		return ""
	}
	return m.Name
}

func (o *Orchestrator) placeRequest(s *Session, g pricing.Group, paymentID string) clients.PlaceOrderRequest {
	items := make([]clients.OrderItem, len(g.Lines))
	for i, ln := range g.Lines {
		items[i] = clients.OrderItem{MenuItemID: ln.ItemID, Quantity: ln.Quantity}
	}

	req := clients.PlaceOrderRequest{
		UserID:         s.UserID,
		MerchantID:     g.MerchantID,
		Items:          items,
		UserAddress:    s.Address,
		UserPhone:      s.Phone,
		Subtotal:       int64(g.Subtotal),
		Tax:            int64(g.Tax),
		DeliveryCharge: int64(g.DeliveryFee),
		Discount:       int64(g.Discount + g.PointsDiscount),
		DonationAmount: int64(g.Donation),
		Total:          int64(g.Total),
		RedeemedPoints: g.RedeemedPoints,
		PaymentID:      paymentID,
	}
	if g.Discount > 0 {
		req.CouponCode = s.Adjustment.CouponCode
	}
	if g.Donation > 0 {
		req.NGOID = s.Adjustment.NGOID
	}
	return req
}
