// Package pricing computes checkout totals for a multi-merchant cart.
// Everything here is pure: the same lines and adjustment always produce
// the same totals, so the orchestrator can recompute at will before any
// money moves.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kitchencloud/checkout-go/internal/money"
)

const (
	// TaxRateBasisPoints is the flat tax applied to the cart subtotal (5%).
	TaxRateBasisPoints int64 = 500

	// DeliveryFee is the flat per-checkout delivery charge in paise.
	DeliveryFee money.Paise = 40

	// MinRedeemBalance is the loyalty balance below which redemption is
	// refused outright.
	MinRedeemBalance int64 = 100

	// PointsPerUnit is how many loyalty points convert into one paise of
	// discount (2 points = 1).
	PointsPerUnit int64 = 2
)

// coupons is the fixed allow-list of coupon codes to discount percent.
var coupons = map[string]int64{
	"WELCOME10": 10,
	"FLAT50":    50,
}

var (
	ErrCouponInvalid    = errors.New("coupon code not recognised")
	ErrNegativeDonation = errors.New("donation amount cannot be negative")
	ErrDonationNeedsNGO = errors.New("donation requires a selected NGO")
	ErrEmptyCart        = errors.New("cart has no lines")
	ErrNegativeTotal    = errors.New("computed total is negative")
)

// Line is one cart entry. UnitPrice is in paise.
type Line struct {
	MerchantID string
	ItemID     string
	UnitPrice  money.Paise
	Quantity   int
}

// Adjustment carries the user-selected discounts and the donation for one
// checkout. It is transient: recomputed from input on every render and
// never persisted on its own.
type Adjustment struct {
	CouponCode      string
	LoyaltyBalance  int64
	RequestedPoints int64
	Donation        money.Paise
	NGOID           string
}

// Totals is the cart-level price breakdown, all amounts in paise.
type Totals struct {
	Subtotal       money.Paise
	Tax            money.Paise
	DeliveryFee    money.Paise
	Discount       money.Paise
	PointsDiscount money.Paise
	RedeemedPoints int64
	Donation       money.Paise
	Total          money.Paise
}

// ValidateCoupon resolves a coupon code against the allow-list. Lookup is
// case-insensitive; unknown codes are rejected, never partially matched.
func ValidateCoupon(code string) (int64, error) {
	pct, ok := coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCouponInvalid, code)
	}
	return pct, nil
}

// Compute turns cart lines plus an adjustment into the final payable
// breakdown. An unknown coupon code yields ErrCouponInvalid rather than a
// silent zero discount; a donation without an NGO is ErrDonationNeedsNGO.
func Compute(lines []Line, adj Adjustment) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrEmptyCart
	}
	if adj.Donation < 0 {
		return Totals{}, ErrNegativeDonation
	}
	if adj.Donation > 0 && adj.NGOID == "" {
		return Totals{}, ErrDonationNeedsNGO
	}

	var t Totals
	for _, ln := range lines {
		t.Subtotal += ln.UnitPrice * money.Paise(ln.Quantity)
	}
	t.Tax = money.Basis(t.Subtotal, TaxRateBasisPoints)
	t.DeliveryFee = DeliveryFee

	if adj.CouponCode != "" {
		pct, err := ValidateCoupon(adj.CouponCode)
		if err != nil {
			return Totals{}, err
		}
		t.Discount = money.Percent(t.Subtotal, pct)
	}

	owed := t.Subtotal + t.Tax + t.DeliveryFee - t.Discount
	t.RedeemedPoints, t.PointsDiscount = redeemPoints(adj, owed)

	t.Donation = adj.Donation
	t.Total = owed - t.PointsDiscount + t.Donation

	if t.Total < 0 {
		t.Total = 0
		return t, ErrNegativeTotal
	}
	return t, nil
}

// redeemPoints caps the redemption at both the user's balance and the
// amount owed before the donation. Balances under MinRedeemBalance cannot
// redeem at all. Only whole units are redeemed, so an odd trailing point
// stays on the balance.
func redeemPoints(adj Adjustment, owed money.Paise) (int64, money.Paise) {
	if adj.RequestedPoints <= 0 || adj.LoyaltyBalance < MinRedeemBalance {
		return 0, 0
	}

	points := adj.RequestedPoints
	if points > adj.LoyaltyBalance {
		points = adj.LoyaltyBalance
	}
	if max := int64(owed) * PointsPerUnit; points > max {
		points = max
	}
	points -= points % PointsPerUnit

	return points, money.Paise(points / PointsPerUnit)
}
