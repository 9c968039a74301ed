package checkout

import (
	"sync"

	"github.com/kitchencloud/checkout-go/internal/pricing"
)

// Session is the explicit session state for one user's checkout: the
// cart, delivery details, and the selected adjustments. It replaces any
// ambient per-user globals so the orchestrator and the calculator stay
// deterministic and testable.
type Session struct {
	UserID string
	Name   string
	Email  string

	Address string
	Phone   string

	Adjustment pricing.Adjustment

	mu    sync.Mutex
	lines []pricing.Line
}

func NewSession(userID string, lines []pricing.Line) *Session {
	s := &Session{UserID: userID}
	s.lines = append(s.lines, lines...)
	return s
}

// Lines returns a copy of the cart; the session keeps ownership.
func (s *Session) Lines() []pricing.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pricing.Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// ClearCart empties the cart and resets the coupon, points and donation
// selections. Called only once every merchant order committed.
func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.Adjustment = pricing.Adjustment{}
}

func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}
