package pricing

import "github.com/kitchencloud/checkout-go/internal/money"

// Group is the per-merchant slice of a multi-merchant cart. One group
// becomes exactly one ledger order. Groups are never mutated after
// Partition returns; a pricing change means a fresh Partition call.
type Group struct {
	MerchantID     string
	Lines          []Line
	Subtotal       money.Paise
	Tax            money.Paise
	DeliveryFee    money.Paise
	Discount       money.Paise
	PointsDiscount money.Paise
	RedeemedPoints int64
	Donation       money.Paise
	Total          money.Paise
}

// Partition groups cart lines by merchant, preserving first-seen merchant
// order, and reprices each group so that the group totals sum exactly to
// the cart-level total. Tax, coupon and points discounts and the delivery
// fee are all apportioned proportionally to each group's share of the
// subtotal via the largest-remainder method; the donation is attached to
// the first group only, so it is never double counted across ledger
// commits.
func Partition(lines []Line, adj Adjustment) ([]Group, Totals, error) {
	cart, err := Compute(lines, adj)
	if err != nil {
		return nil, Totals{}, err
	}

	index := make(map[string]int)
	var groups []Group
	for _, ln := range lines {
		i, ok := index[ln.MerchantID]
		if !ok {
			i = len(groups)
			index[ln.MerchantID] = i
			groups = append(groups, Group{MerchantID: ln.MerchantID})
		}
		groups[i].Lines = append(groups[i].Lines, ln)
		groups[i].Subtotal += ln.UnitPrice * money.Paise(ln.Quantity)
	}

	weights := make([]money.Paise, len(groups))
	for i := range groups {
		weights[i] = groups[i].Subtotal
	}

	// The charged amount is the cart-level total, so every component is
	// split from the cart-level figure rather than recomputed per group.
	// Recomputing tax per group rounds each share separately and lets the
	// group totals drift from what was charged.
	taxes := money.Split(cart.Tax, weights)
	fees := money.Split(cart.DeliveryFee, weights)
	discounts := money.Split(cart.Discount, weights)
	pointsDiscounts := money.Split(cart.PointsDiscount, weights)
	points := money.SplitInt(cart.RedeemedPoints, weights)

	for i := range groups {
		g := &groups[i]
		g.Tax = taxes[i]
		g.DeliveryFee = fees[i]
		g.Discount = discounts[i]
		g.PointsDiscount = pointsDiscounts[i]
		g.RedeemedPoints = points[i]
		if i == 0 {
			g.Donation = cart.Donation
		}
		g.Total = g.Subtotal + g.Tax + g.DeliveryFee - g.Discount - g.PointsDiscount + g.Donation
	}

	return groups, cart, nil
}
