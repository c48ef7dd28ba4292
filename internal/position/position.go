// Package position
package position

import (
	"errors"
	"math"
	"time"

	"github.com/zuoky/nanotrader/internal/order"
)

// ErrInvalidTarget indicates a targeting call with a quantity on the wrong
// side of zero. This is a programming-contract violation; callers must not
// submit anything when it is returned.
var ErrInvalidTarget = errors.New("position: invalid target quantity")

// Tracker holds the signed net position and its cost basis. It is mutated
// only by the trade-fill callback path, never by decision logic, and is
// owned by a single strategy instance.
type Tracker struct {
	net        float64
	cost       float64
	lastFillAt time.Time
}

// NewTracker returns a flat tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ApplyFill folds a fill into the position. The cost basis is the price of
// the most recent fill, not a running average. now is the engine's clock
// reading for the callback, used as the last-fill timestamp.
func (t *Tracker) ApplyFill(tr order.Trade, now time.Time) {
	t.net += tr.Side.Signed(tr.Quantity)
	t.cost = tr.Price
	t.lastFillAt = now
}

// Net returns the signed net quantity (positive long, negative short).
func (t *Tracker) Net() float64 { return t.net }

// Cost returns the price of the most recent fill.
func (t *Tracker) Cost() float64 { return t.cost }

// LastFillAt returns the time of the most recent fill, zero if none.
func (t *Tracker) LastFillAt() time.Time { return t.lastFillAt }

// Reset returns the tracker to its initial flat state.
func (t *Tracker) Reset() {
	t.net = 0
	t.cost = 0
	t.lastFillAt = time.Time{}
}

// LongPlan computes the minimal intents that move current toward a positive
// target. Flipping from a short position emits Cover for the full short and
// an independent Buy for the full target, never a single signed order.
func LongPlan(target, current, bidPrice, askPrice float64) ([]order.Intent, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}

	switch {
	case current > 0:
		diff := target - current
		switch {
		case diff > 0: // need more long
			return []order.Intent{{Side: order.Buy, Price: bidPrice, Quantity: diff}}, nil
		case diff < 0: // need less long
			return []order.Intent{{Side: order.Sell, Price: askPrice, Quantity: -diff}}, nil
		default:
			return nil, nil
		}
	case current < 0: // flip: close the short, then open the long
		return []order.Intent{
			{Side: order.Cover, Price: bidPrice, Quantity: math.Abs(current)},
			{Side: order.Buy, Price: bidPrice, Quantity: target},
		}, nil
	default:
		return []order.Intent{{Side: order.Buy, Price: bidPrice, Quantity: target}}, nil
	}
}

// ShortPlan is the mirror of LongPlan for a negative target. Flipping from a
// long position emits Sell for the full long and an independent Short for
// the full target size.
func ShortPlan(target, current, bidPrice, askPrice float64) ([]order.Intent, error) {
	if target >= 0 {
		return nil, ErrInvalidTarget
	}

	switch {
	case current < 0:
		diff := target - current
		switch {
		case diff < 0: // need more short
			return []order.Intent{{Side: order.Short, Price: askPrice, Quantity: -diff}}, nil
		case diff > 0: // need less short
			return []order.Intent{{Side: order.Cover, Price: bidPrice, Quantity: diff}}, nil
		default:
			return nil, nil
		}
	case current > 0: // flip: close the long, then open the short
		return []order.Intent{
			{Side: order.Sell, Price: askPrice, Quantity: current},
			{Side: order.Short, Price: askPrice, Quantity: math.Abs(target)},
		}, nil
	default:
		return []order.Intent{{Side: order.Short, Price: askPrice, Quantity: math.Abs(target)}}, nil
	}
}

// FlattenPlan computes the intents that reduce the position to zero:
// Sell at the ask when long, Cover at the bid when short, nothing when flat.
func FlattenPlan(current, bidPrice, askPrice float64) []order.Intent {
	switch {
	case current > 0:
		return []order.Intent{{Side: order.Sell, Price: askPrice, Quantity: current}}
	case current < 0:
		return []order.Intent{{Side: order.Cover, Price: bidPrice, Quantity: math.Abs(current)}}
	default:
		return nil
	}
}
