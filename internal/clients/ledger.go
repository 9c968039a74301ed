package clients

import "context"

// OrderItem carries id and quantity only; the ledger re-derives prices
// from its own catalog.
type OrderItem struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

// PlaceOrderRequest is one merchant group's order, funded by an already
// claimed payment intent. PaymentID is the payment proof token.
type PlaceOrderRequest struct {
	UserID         string      `json:"userId"`
	MerchantID     string      `json:"restaurantId"`
	Items          []OrderItem `json:"items"`
	UserAddress    string      `json:"userAddress"`
	UserPhone      string      `json:"userPhone"`
	Subtotal       int64       `json:"subtotal"`
	Tax            int64       `json:"tax"`
	DeliveryCharge int64       `json:"deliveryCharge"`
	Discount       int64       `json:"discount"`
	DonationAmount int64       `json:"donationAmount"`
	NGOID          string      `json:"ngoId,omitempty"`
	Total          int64       `json:"total"`
	RedeemedPoints int64       `json:"redeemedPoints"`
	CouponCode     string      `json:"couponCode,omitempty"`
	PaymentID      string      `json:"paymentId"`
}

// LedgerClient places orders with the external order ledger. The ledger
// owns the order lifecycle from there on.
type LedgerClient struct{ c *Client }

func NewLedgerClient(c *Client) *LedgerClient { return &LedgerClient{c: c} }

func (lc *LedgerClient) PlaceOrder(ctx context.Context, req PlaceOrderRequest) error {
	return lc.c.PostJSON(ctx, "/api/orders/place", req, nil)
}
