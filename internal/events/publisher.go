package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kitchencloud/checkout-go/internal/payment"
)

const (
	PaymentVerifiedQueue = "payment.verified"
	PaymentClaimedQueue  = "payment.claimed"
)

// PaymentEvent is the wire shape for both payment queues. Downstream
// consumers credit loyalty points and record donations off it.
type PaymentEvent struct {
	EventType        string    `json:"eventType"`
	GatewayOrderID   string    `json:"gatewayOrderId"`
	GatewayPaymentID string    `json:"gatewayPaymentId"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Timestamp        time.Time `json:"timestamp"`
}

// MustDial connects to RabbitMQ or exits. Used at service start where a
// missing broker is a deployment error.
func MustDial(url string) *amqp.Connection {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	return conn
}

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare queues so publish never fails due to missing infra
	for _, q := range []string{PaymentVerifiedQueue, PaymentClaimedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}

	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishPaymentVerified(ctx context.Context, in *payment.Intent) error {
	return p.publish(ctx, PaymentVerifiedQueue, "PaymentVerified", in)
}

func (p *Publisher) PublishPaymentClaimed(ctx context.Context, in *payment.Intent) error {
	return p.publish(ctx, PaymentClaimedQueue, "PaymentClaimed", in)
}

func (p *Publisher) publish(ctx context.Context, queue, eventType string, in *payment.Intent) error {
	ev := PaymentEvent{
		EventType:        eventType,
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Timestamp:        time.Now().UTC(),
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",    // default exchange
		queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
