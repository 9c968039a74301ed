package checkout

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchencloud/checkout-go/internal/clients"
	"github.com/kitchencloud/checkout-go/internal/pricing"
)

type fakePayments struct {
	mu          sync.Mutex
	createCalls int
	createErr   error
	verifyErr   error
	claimErr    error

	createdAmount int64
	verified      bool
	claimed       bool
}

func (f *fakePayments) CreateOrder(ctx context.Context, amount int64) (clients.CreatedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return clients.CreatedOrder{}, f.createErr
	}
	f.createdAmount = amount
	return clients.CreatedOrder{OrderID: "order_1", Amount: amount, KeyID: "key_x"}, nil
}

func (f *fakePayments) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.verified = true
	return nil
}

func (f *fakePayments) ClaimIntent(ctx context.Context, orderID string) (clients.ClaimedIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return clients.ClaimedIntent{}, f.claimErr
	}
	f.claimed = true
	return clients.ClaimedIntent{PaymentID: "pay_1", Amount: f.createdAmount}, nil
}

type fakeCollector struct {
	err   error
	block bool
	calls int
}

func (f *fakeCollector) Collect(ctx context.Context, orderID, keyID string, amount int64, prefill Prefill) (Callback, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return Callback{}, ctx.Err()
	}
	if f.err != nil {
		return Callback{}, f.err
	}
	return Callback{
		GatewayOrderID:   orderID,
		GatewayPaymentID: "pay_1",
		GatewaySignature: "sig_1",
	}, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	failFor  map[string]error
	requests []clients.PlaceOrderRequest
}

func (f *fakeLedger) PlaceOrder(ctx context.Context, req clients.PlaceOrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[req.MerchantID]; ok {
		return err
	}
	f.requests = append(f.requests, req)
	return nil
}

type fakeNGOs struct {
	calls int
	err   error
}

func (f *fakeNGOs) ApprovedNGO(ctx context.Context, ngoID string) (clients.NGO, error) {
	f.calls++
	if f.err != nil {
		return clients.NGO{}, f.err
	}
	return clients.NGO{ID: ngoID, Name: "Food For All", Approved: true}, nil
}

type fakeUsers struct {
	calls   int
	balance int64
	err     error
}

func (f *fakeUsers) LoyaltyBalance(ctx context.Context, userID string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

type fakeCatalog struct {
	names map[string]string
}

func (f *fakeCatalog) Merchant(ctx context.Context, merchantID string) (clients.Merchant, error) {
	name, ok := f.names[merchantID]
	if !ok {
		return clients.Merchant{}, errors.New("merchant not found")
	}
	return clients.Merchant{ID: merchantID, Name: name}, nil
}

type fixture struct {
	payments  *fakePayments
	collector *fakeCollector
	ledger    *fakeLedger
	ngos      *fakeNGOs
	users     *fakeUsers
	catalog   *fakeCatalog
	orch      *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		payments:  &fakePayments{},
		collector: &fakeCollector{},
		ledger:    &fakeLedger{failFor: map[string]error{}},
		ngos:      &fakeNGOs{},
		users:     &fakeUsers{balance: 500},
		catalog:   &fakeCatalog{names: map[string]string{}},
	}
	f.orch = NewOrchestrator(f.payments, f.collector, f.ledger, f.ngos, f.users, f.catalog,
		time.Second, log.New(io.Discard, "", 0))
	return f
}

func newSession() *Session {
	s := NewSession("u1", []pricing.Line{
		{MerchantID: "merchantA", ItemID: "item1", UnitPrice: 100, Quantity: 2},
		{MerchantID: "merchantB", ItemID: "item2", UnitPrice: 50, Quantity: 1},
	})
	s.Address = "12 MG Road"
	s.Phone = "+91 99999 00000"
	return s
}

func TestRunCommitsAllGroups(t *testing.T) {
	f := newFixture()
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, StateAllCommitted, res.State)
	assert.Equal(t, "pay_1", res.PaymentID)

	// one charge for the whole cart, split afterwards
	assert.Equal(t, 1, f.payments.createCalls)
	assert.Equal(t, int64(302), f.payments.createdAmount)
	assert.True(t, f.payments.verified)
	assert.True(t, f.payments.claimed)

	require.Len(t, f.ledger.requests, 2)
	var sum int64
	for _, req := range f.ledger.requests {
		assert.Equal(t, "pay_1", req.PaymentID)
		assert.Equal(t, "u1", req.UserID)
		sum += req.Total
	}
	assert.Equal(t, int64(302), sum)

	// side effect of full success only
	assert.True(t, s.Empty())

	// no points requested, so the balance is never looked up
	assert.Zero(t, f.users.calls)
}

func TestRunReadsLoyaltyBalance(t *testing.T) {
	f := newFixture()
	f.users.balance = 200
	s := newSession()
	s.Adjustment.RequestedPoints = 100

	res, err := f.orch.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, StateAllCommitted, res.State)

	// 100 points at 2 per unit knock 50 off the 302 charge
	assert.Equal(t, 1, f.users.calls)
	assert.Equal(t, int64(252), f.payments.createdAmount)
	assert.Equal(t, int64(100), res.Totals.RedeemedPoints)
}

func TestRunBalanceLookupFailureAborts(t *testing.T) {
	f := newFixture()
	f.users.err = errors.New("users: unavailable (status 503)")
	s := newSession()
	s.Adjustment.RequestedPoints = 100

	res, err := f.orch.Run(context.Background(), s)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StateAborted, res.State)
	assert.Zero(t, f.payments.createCalls)
}

func TestRunValidation(t *testing.T) {
	tests := map[string]struct {
		mutate func(s *Session)
	}{
		"missing address": {mutate: func(s *Session) { s.Address = "" }},
		"missing phone":   {mutate: func(s *Session) { s.Phone = "" }},
		"missing user":    {mutate: func(s *Session) { s.UserID = "" }},
		"empty cart":      {mutate: func(s *Session) { s.ClearCart() }},
		"donation without ngo": {mutate: func(s *Session) {
			s.Adjustment.Donation = 100
		}},
		"unknown coupon": {mutate: func(s *Session) {
			s.Adjustment.CouponCode = "BOGUS"
		}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			s := newSession()
			tc.mutate(s)

			res, err := f.orch.Run(context.Background(), s)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, StateAborted, res.State)

			// validation failures never touch the gateway or the ledger
			assert.Zero(t, f.payments.createCalls)
			assert.Zero(t, f.collector.calls)
			assert.Empty(t, f.ledger.requests)
		})
	}
}

func TestRunUnapprovedNGOAborts(t *testing.T) {
	f := newFixture()
	f.ngos.err = errors.New("ngo 3 is not approved for donations")
	s := newSession()
	s.Adjustment.Donation = 100
	s.Adjustment.NGOID = "3"

	res, err := f.orch.Run(context.Background(), s)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StateAborted, res.State)
	assert.Zero(t, f.payments.createCalls)
}

func TestRunCreateOrderFailureAborts(t *testing.T) {
	f := newFixture()
	f.payments.createErr = errors.New("payments: upstream down (status 502)")
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	require.Error(t, err)

	assert.Equal(t, StateAborted, res.State)
	assert.Zero(t, f.collector.calls)
	assert.Empty(t, f.ledger.requests)
	assert.False(t, s.Empty())
}

func TestRunUserCancelled(t *testing.T) {
	f := newFixture()
	f.collector.err = ErrUserCancelled
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrUserCancelled)

	// clean abort: the Created intent is left unconsumed, nothing else
	assert.Equal(t, StateAborted, res.State)
	assert.False(t, f.payments.verified)
	assert.Empty(t, f.ledger.requests)
	assert.False(t, s.Empty())
}

func TestRunGatewayUnavailable(t *testing.T) {
	f := newFixture()
	f.collector.err = ErrGatewayUnavailable
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, StateAborted, res.State)
	assert.False(t, f.payments.verified)
}

func TestRunCollectTimeout(t *testing.T) {
	f := newFixture()
	f.collector.block = true
	f.orch.collectTimeout = 20 * time.Millisecond
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, f.ledger.requests)
}

func TestRunVerificationFailed(t *testing.T) {
	f := newFixture()
	f.payments.verifyErr = clients.ErrVerifyFailed
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	assert.ErrorIs(t, err, clients.ErrVerifyFailed)

	assert.Equal(t, StateVerificationFailed, res.State)
	assert.Empty(t, f.ledger.requests)
	assert.False(t, s.Empty())
}

func TestRunClaimConflictStopsCommit(t *testing.T) {
	f := newFixture()
	f.payments.claimErr = clients.ErrClaimConflict
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	assert.ErrorIs(t, err, clients.ErrClaimConflict)
	assert.Equal(t, StateVerificationFailed, res.State)
	assert.Empty(t, f.ledger.requests)
}

func TestRunPartialCommit(t *testing.T) {
	f := newFixture()
	f.ledger.failFor["merchantB"] = errors.New("ledger: restaurant is closed (status 422)")
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)

	var perr *PartialCommitError
	require.ErrorAs(t, err, &perr)

	assert.Equal(t, StatePartiallyCommitted, res.State)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "merchantB", res.Failed[0].MerchantID)

	// the user must be told which payment to quote to support
	assert.Equal(t, "pay_1", perr.PaymentID)
	assert.Contains(t, perr.Error(), "merchantB")
	assert.Contains(t, perr.Error(), "pay_1")

	// money was captured: cart must survive for a commit retry
	assert.False(t, s.Empty())
	require.Len(t, f.ledger.requests, 1)
	assert.Equal(t, "merchantA", f.ledger.requests[0].MerchantID)
}

func TestRunPartialCommitNamesMerchant(t *testing.T) {
	f := newFixture()
	f.catalog.names["merchantB"] = "Spice Villa"
	f.ledger.failFor["merchantB"] = errors.New("ledger: restaurant is closed (status 422)")
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)

	var perr *PartialCommitError
	require.ErrorAs(t, err, &perr)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "merchantB", res.Failed[0].MerchantID)
	assert.Equal(t, "Spice Villa", res.Failed[0].MerchantName)

	// the user sees the restaurant's name, not an internal id
	assert.Contains(t, perr.Error(), "Spice Villa")
	assert.NotContains(t, perr.Error(), "merchantB")
}

func TestRetryCommitsResumesWithoutRecharging(t *testing.T) {
	f := newFixture()
	f.ledger.failFor["merchantB"] = errors.New("temporarily unavailable")
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	require.Error(t, err)
	require.Equal(t, StatePartiallyCommitted, res.State)

	// ledger recovers
	delete(f.ledger.failFor, "merchantB")

	retried, err := f.orch.RetryCommits(context.Background(), s, res)
	require.NoError(t, err)
	assert.Equal(t, StateAllCommitted, retried.State)

	// resume must reuse the claimed intent, never re-enter create-order
	assert.Equal(t, 1, f.payments.createCalls)

	require.Len(t, f.ledger.requests, 2)
	assert.Equal(t, "merchantB", f.ledger.requests[1].MerchantID)
	assert.Equal(t, "pay_1", f.ledger.requests[1].PaymentID)
	assert.True(t, s.Empty())
}

func TestRetryCommitsRejectsNonPartialResult(t *testing.T) {
	f := newFixture()
	s := newSession()

	res, err := f.orch.Run(context.Background(), s)
	require.NoError(t, err)

	_, err = f.orch.RetryCommits(context.Background(), s, res)
	assert.Error(t, err)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateAllCommitted.Terminal())
	assert.True(t, StatePartiallyCommitted.Terminal())
	assert.True(t, StateVerificationFailed.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateCommittingOrders.Terminal())
	assert.False(t, StateVerifying.Terminal())
}
