// Package order
package order

import (
	"time"
)

// Side is the direction of an order. Short opens or increases a borrowed
// (negative) position, cover closes one out.
type Side string

const (
	Buy   Side = "buy"
	Sell  Side = "sell"
	Short Side = "short"
	Cover Side = "cover"
)

// Opposite returns the side that reverses this one.
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	case Short:
		return Cover
	case Cover:
		return Short
	}
	return s
}

// Signed maps a fill quantity to its effect on the net position:
// positive for buy/cover, negative for sell/short.
func (s Side) Signed(qty float64) float64 {
	switch s {
	case Buy, Cover:
		return qty
	case Sell, Short:
		return -qty
	}
	return 0
}

// Status is the lifecycle state of an order. Transitions happen only via
// venue callbacks; FILLED and CANCELLED are terminal.
type Status string

const (
	StatusSubmitted       Status = "SUBMITTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
)

// Terminal reports whether the order can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Order represents a limit order submitted to a venue.
type Order struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	FilledQty   float64   `json:"filled_qty"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Trade represents a single fill reported by the venue.
type Trade struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is an order the decision engine wants submitted. Intents are
// planned first and submitted by the caller, which must register each one
// in the pending ledger at the moment of emission.
type Intent struct {
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}
