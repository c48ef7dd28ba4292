// Package pending tracks orders that have been submitted but have not yet
// reached a terminal status. Two disciplines exist: Book holds an unbounded
// set of concurrently pending orders, Slot holds at most one.
package pending

import (
	"errors"
	"iter"
	"time"
)

// ErrDuplicateOrder indicates an order id was registered twice. Reusing an
// id is a logic error, not a recoverable condition.
var ErrDuplicateOrder = errors.New("pending: duplicate order id")

// Book maps order ids to their submission time. It is owned by a single
// strategy instance and never accessed concurrently.
type Book struct {
	entries map[string]time.Time
}

// NewBook creates an empty pending-order book.
func NewBook() *Book {
	return &Book{entries: make(map[string]time.Time)}
}

// Register adds an order at its submission time.
func (b *Book) Register(orderID string, submittedAt time.Time) error {
	if _, ok := b.entries[orderID]; ok {
		return ErrDuplicateOrder
	}
	b.entries[orderID] = submittedAt
	return nil
}

// Resolve removes an order that reached a terminal status. Late or duplicate
// callbacks make this a no-op rather than an error.
func (b *Book) Resolve(orderID string) {
	delete(b.entries, orderID)
}

// Contains reports whether the order is still pending.
func (b *Book) Contains(orderID string) bool {
	_, ok := b.entries[orderID]
	return ok
}

// Len returns the number of pending orders.
func (b *Book) Len() int {
	return len(b.entries)
}

// Expired yields the ids of orders whose age at now is at least timeout.
// The boundary is inclusive: an order submitted exactly timeout ago expires.
// The sweep does not mutate the book; the caller issues cancels and resolves
// entries once the cancellation confirms. Collect the ids before cancelling
// so the book is never mutated mid-iteration.
func (b *Book) Expired(now time.Time, timeout time.Duration) iter.Seq[string] {
	return func(yield func(string) bool) {
		for id, submittedAt := range b.entries {
			if now.Sub(submittedAt) >= timeout {
				if !yield(id) {
					return
				}
			}
		}
	}
}

// Reset drops all entries.
func (b *Book) Reset() {
	b.entries = make(map[string]time.Time)
}

// Slot tracks a single outstanding order for strategies that never keep more
// than one order live at a time.
type Slot struct {
	orderID     string
	submittedAt time.Time
	occupied    bool
}

// Register occupies the slot. Registering while an order is outstanding
// fails with ErrDuplicateOrder.
func (s *Slot) Register(orderID string, submittedAt time.Time) error {
	if s.occupied {
		return ErrDuplicateOrder
	}
	s.orderID = orderID
	s.submittedAt = submittedAt
	s.occupied = true
	return nil
}

// Resolve clears the slot if it holds the given id; otherwise a no-op.
func (s *Slot) Resolve(orderID string) {
	if s.occupied && s.orderID == orderID {
		s.orderID = ""
		s.occupied = false
	}
}

// Occupied reports whether an order is outstanding.
func (s *Slot) Occupied() bool {
	return s.occupied
}

// ID returns the outstanding order id, or "" when empty.
func (s *Slot) ID() string {
	if !s.occupied {
		return ""
	}
	return s.orderID
}

// Expired reports whether the outstanding order has aged past timeout at
// now (inclusive boundary). An empty slot never expires.
func (s *Slot) Expired(now time.Time, timeout time.Duration) bool {
	return s.occupied && now.Sub(s.submittedAt) >= timeout
}

// Reset clears the slot unconditionally.
func (s *Slot) Reset() {
	s.orderID = ""
	s.occupied = false
}
