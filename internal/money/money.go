// Package money holds amounts in minor currency units (paise) as integers.
// All percentage math rounds half to even so that repeated splits never
// drift by more than the final largest-remainder distribution allows.
package money

// Paise is an amount in minor currency units.
type Paise int64

// MulDiv returns a*num/den rounded half to even. den must be positive.
func MulDiv(a Paise, num, den int64) Paise {
	p := int64(a) * num
	neg := p < 0
	if neg {
		p = -p
	}

	q := p / den
	r := p % den

	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}

	if neg {
		q = -q
	}
	return Paise(q)
}

// Percent returns a*percent/100 rounded half to even.
func Percent(a Paise, percent int64) Paise {
	return MulDiv(a, percent, 100)
}

// Basis returns a*bp/10000 rounded half to even. bp is basis points,
// so a 5% tax rate is 500.
func Basis(a Paise, bp int64) Paise {
	return MulDiv(a, bp, 10000)
}

// Split apportions total across weights proportionally using the
// largest-remainder method. The parts always sum to total exactly;
// leftover units go to the entries with the largest fractional share,
// ties broken by position. A zero weight sum puts everything in the
// first part.
func Split(total Paise, weights []Paise) []Paise {
	parts := make([]Paise, len(weights))
	if len(weights) == 0 {
		return parts
	}

	var sum int64
	for _, w := range weights {
		sum += int64(w)
	}
	if sum == 0 {
		parts[0] = total
		return parts
	}

	type rem struct {
		idx int
		r   int64
	}
	rems := make([]rem, len(weights))

	var assigned int64
	for i, w := range weights {
		p := int64(total) * int64(w)
		parts[i] = Paise(p / sum)
		rems[i] = rem{idx: i, r: p % sum}
		assigned += p / sum
	}

	leftover := int64(total) - assigned
	for leftover > 0 {
		best := -1
		for i := range rems {
			if rems[i].r == -1 {
				continue
			}
			if best == -1 || rems[i].r > rems[best].r {
				best = i
			}
		}
		parts[rems[best].idx]++
		rems[best].r = -1
		leftover--
	}

	return parts
}

// SplitInt is Split for plain integer quantities such as loyalty points.
func SplitInt(total int64, weights []Paise) []int64 {
	parts := Split(Paise(total), weights)
	out := make([]int64, len(parts))
	for i, p := range parts {
		out[i] = int64(p)
	}
	return out
}
