// Package cart holds the in-progress sale for one cashier: an ordered
// list of lines, per-line and global discounts, and the running total.
// The total is always recomputed from the lines, never patched
// incrementally.
package cart

import (
	"sync"

	"sportpos/backend/internal/domain"
)

// DefaultMaxLines caps the number of distinct products per sale. The
// limit is configurable; zero disables it.
const DefaultMaxLines = 50

// Session is safe for concurrent use; each method runs under the
// session mutex. Multi-step flows that must not interleave (checkout,
// hold, resume) are additionally serialized per terminal by the
// service that owns the session registry.
type Session struct {
	mu             sync.Mutex
	cashierName    string
	lines          []domain.CartLine
	globalDiscount float64
	maxLines       int
	total          float64
}

func NewSession(cashierName string, maxLines int) *Session {
	if maxLines < 0 {
		maxLines = DefaultMaxLines
	}
	return &Session{
		cashierName: cashierName,
		maxLines:    maxLines,
	}
}

func (s *Session) CashierName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cashierName
}

// SetCashierName re-pins the session to the cashier driving it now.
// Blank names are ignored.
func (s *Session) SetCashierName(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cashierName = name
}

// Total is the sum of line subtotals scaled by the global discount.
func (s *Session) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Session) GlobalDiscount() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalDiscount
}

// Lines returns a snapshot; mutating it does not affect the session.
func (s *Session) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]domain.CartLine, len(s.lines))
	copy(snapshot, s.lines)
	return snapshot
}

// AddItem puts quantity units of product into the cart. Stock
// sufficiency is checked here, at add time, not again at checkout. If
// the product already has a line its quantity grows; a new line is
// appended otherwise, subject to the line cap. The cart is unchanged
// on any failure.
func (s *Session) AddItem(product domain.Product, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if product.Stock < quantity {
		return domain.ErrInsufficientStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Product.ID == product.ID {
			s.lines[i].Quantity += quantity
			s.recompute()
			return nil
		}
	}

	if s.maxLines > 0 && len(s.lines) >= s.maxLines {
		return domain.ErrCartFull
	}
	s.lines = append(s.lines, domain.CartLine{Product: product, Quantity: quantity})
	s.recompute()
	return nil
}

// RemoveItem takes one unit of the product out of the cart. When the
// quantity reaches zero the line is deleted and later lines shift down,
// preserving their relative order. Unknown products are a no-op.
func (s *Session) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Product.ID != productID {
			continue
		}
		s.lines[i].Quantity--
		if s.lines[i].Quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
		s.recompute()
		return
	}
}

// SetItemDiscount applies a per-line discount fraction. An out-of-range
// index is a no-op; an out-of-range percent is rejected.
func (s *Session) SetItemDiscount(index int, percent float64) error {
	if percent < 0 || percent > 1 {
		return domain.ErrInvalidDiscount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.lines) {
		return nil
	}
	s.lines[index].ItemDiscount = percent
	s.recompute()
	return nil
}

func (s *Session) SetGlobalDiscount(percent float64) error {
	if percent < 0 || percent > 1 {
		return domain.ErrInvalidDiscount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalDiscount = percent
	s.recompute()
	return nil
}

// Clear empties the cart and resets both discounts and the total.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.globalDiscount = 0
	s.total = 0
}

// Restore replaces the session contents, used when resuming a held
// cart. Lines are copied in as-is; the total is recomputed.
func (s *Session) Restore(lines []domain.CartLine, globalDiscount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make([]domain.CartLine, len(lines))
	copy(s.lines, lines)
	if globalDiscount < 0 || globalDiscount > 1 {
		globalDiscount = 0
	}
	s.globalDiscount = globalDiscount
	s.recompute()
}

// recompute runs under the session mutex.
func (s *Session) recompute() {
	subtotal := 0.0
	for _, line := range s.lines {
		subtotal += line.Subtotal()
	}
	s.total = subtotal * (1.0 - s.globalDiscount)
}
