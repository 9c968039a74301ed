package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kitchencloud/checkout-go/internal/gateway"
)

// ErrSignatureMismatch means the callback signature did not verify. The
// intent stays in Created status; a later call with a correct signature
// is still honoured.
var ErrSignatureMismatch = errors.New("invalid payment signature")

// EventPublisher emits post-payment events for downstream consumers
// (loyalty credit, donation recording). Implemented by events.Publisher.
type EventPublisher interface {
	PublishPaymentVerified(ctx context.Context, in *Intent) error
	PublishPaymentClaimed(ctx context.Context, in *Intent) error
}

const defaultCurrency = "INR"

// Service owns the payment intent lifecycle: create a remote gateway
// order, verify callback signatures, and hand out one-time claims.
type Service struct {
	repo      Repository
	processor gateway.Processor
	keyID     string
	keySecret string
	events    EventPublisher
	logger    *log.Logger
}

func NewService(repo Repository, processor gateway.Processor, keyID, keySecret string, events EventPublisher, logger *log.Logger) *Service {
	return &Service{
		repo:      repo,
		processor: processor,
		keyID:     keyID,
		keySecret: keySecret,
		events:    events,
		logger:    logger,
	}
}

// CreateOrderResult is what the collection UI needs to render.
type CreateOrderResult struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
	KeyID   string `json:"keyId"`
}

// CreateOrder registers the amount with the external processor and
// persists a Created intent. If the processor call fails no intent is
// written, so a retry starts from scratch.
func (s *Service) CreateOrder(ctx context.Context, amount int64) (CreateOrderResult, error) {
	if amount <= 0 {
		return CreateOrderResult{}, fmt.Errorf("amount must be positive, got %d", amount)
	}

	receipt := "txn_" + uuid.NewString()
	order, err := s.processor.CreateOrder(ctx, amount, defaultCurrency, receipt)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("create gateway order: %w", err)
	}

	in := &Intent{
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       defaultCurrency,
		Status:         StatusCreated,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, in); err != nil {
		return CreateOrderResult{}, err
	}

	s.logger.Printf("payment intent created: order=%s amount=%d", order.ID, amount)
	return CreateOrderResult{OrderID: order.ID, Amount: amount, KeyID: s.keyID}, nil
}

// VerifyPayment checks the callback signature and flips the intent to
// Paid. Repeating a matching verification is idempotent, including after
// the intent has been claimed.
func (s *Service) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error {
	if !VerifySignature(orderID, paymentID, s.keySecret, signature) {
		s.logger.Printf("signature mismatch: order=%s payment=%s", orderID, paymentID)
		return ErrSignatureMismatch
	}

	if err := s.repo.MarkPaid(ctx, orderID, paymentID, signature); err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			// Verified earlier and already consumed; nothing to redo.
			return nil
		}
		return err
	}

	s.logger.Printf("payment verified: order=%s payment=%s", orderID, paymentID)
	s.publish(ctx, orderID, s.eventVerified)
	return nil
}

// ClaimIntent consumes a Paid intent for one set of order commits. The
// second claim for the same intent fails with ErrAlreadyClaimed.
func (s *Service) ClaimIntent(ctx context.Context, orderID string) (Intent, error) {
	if err := s.repo.Claim(ctx, orderID); err != nil {
		return Intent{}, err
	}

	in, err := s.repo.GetByGatewayOrderID(ctx, orderID)
	if err != nil {
		return Intent{}, err
	}

	s.logger.Printf("payment intent claimed: order=%s payment=%s", orderID, in.GatewayPaymentID)
	s.publish(ctx, orderID, s.eventClaimed)
	return in, nil
}

// ListIntents returns all persisted intents, newest first.
func (s *Service) ListIntents(ctx context.Context) ([]Intent, error) {
	return s.repo.ListNewestFirst(ctx)
}

func (s *Service) eventVerified(ctx context.Context, in *Intent) error {
	return s.events.PublishPaymentVerified(ctx, in)
}

func (s *Service) eventClaimed(ctx context.Context, in *Intent) error {
	return s.events.PublishPaymentClaimed(ctx, in)
}

// publish is best effort: a broker outage must not fail a verified
// payment, so failures are only logged.
func (s *Service) publish(ctx context.Context, orderID string, emit func(context.Context, *Intent) error) {
	if s.events == nil {
		return
	}
	in, err := s.repo.GetByGatewayOrderID(ctx, orderID)
	if err != nil {
		s.logger.Printf("load intent for event: order=%s err=%v", orderID, err)
		return
	}
	if err := emit(ctx, &in); err != nil {
		s.logger.Printf("publish payment event: order=%s err=%v", orderID, err)
	}
}
