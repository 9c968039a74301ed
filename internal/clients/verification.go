package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrOrderNotFound = errors.New("payment order not found")
	ErrVerifyFailed  = errors.New("payment verification failed")
	ErrClaimConflict = errors.New("payment intent cannot be claimed")
)

// VerificationClient talks to the payment verification service.
type VerificationClient struct{ c *Client }

func NewVerificationClient(c *Client) *VerificationClient {
	return &VerificationClient{c: c}
}

type CreatedOrder struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
	KeyID   string `json:"keyId"`
}

func (vc *VerificationClient) CreateOrder(ctx context.Context, amount int64) (CreatedOrder, error) {
	var out CreatedOrder
	err := vc.c.PostJSON(ctx, "/api/payment/create-order", map[string]int64{"amount": amount}, &out)
	if err != nil {
		return CreatedOrder{}, err
	}
	return out, nil
}

func (vc *VerificationClient) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error {
	body := map[string]string{
		"orderId":   orderID,
		"paymentId": paymentID,
		"signature": signature,
	}

	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	err := vc.c.PostJSON(ctx, "/api/payment/verify-payment", body, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			switch se.StatusCode {
			case http.StatusBadRequest:
				return fmt.Errorf("%w: %s", ErrVerifyFailed, se.Message)
			case http.StatusNotFound:
				return ErrOrderNotFound
			}
		}
		return err
	}
	if out.Status != "success" {
		return fmt.Errorf("%w: %s", ErrVerifyFailed, out.Message)
	}
	return nil
}

type ClaimedIntent struct {
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
}

func (vc *VerificationClient) ClaimIntent(ctx context.Context, orderID string) (ClaimedIntent, error) {
	var out struct {
		Status    string `json:"status"`
		PaymentID string `json:"paymentId"`
		Amount    int64  `json:"amount"`
	}
	err := vc.c.PostJSON(ctx, "/api/payment/claim-intent", map[string]string{"orderId": orderID}, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			switch se.StatusCode {
			case http.StatusNotFound:
				return ClaimedIntent{}, ErrOrderNotFound
			case http.StatusConflict:
				return ClaimedIntent{}, fmt.Errorf("%w: %s", ErrClaimConflict, se.Message)
			}
		}
		return ClaimedIntent{}, err
	}
	return ClaimedIntent{PaymentID: out.PaymentID, Amount: out.Amount}, nil
}
