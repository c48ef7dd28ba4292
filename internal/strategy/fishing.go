package strategy

import (
	"context"
	"log"
	"time"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/indicator"
	"github.com/zuoky/nanotrader/internal/metrics"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/pending"
	"github.com/zuoky/nanotrader/internal/position"
	"github.com/zuoky/nanotrader/internal/strategy/machine"
	"github.com/zuoky/nanotrader/internal/tick"
)

// FishingTicks is the fine-grained cancel-and-chase strategy. It keeps at
// most one probing order alive: when flat it submits a small order on the
// side the direction signal favors, cancels it if it sits unfilled past the
// order timeout, resubmits after a confirmed cancel, and reverses the side
// after a fill.
type FishingTicks struct {
	symbol       string
	orderTimeout time.Duration
	tickDelta    float64

	sink OrderSink
	slot pending.Slot
	sm   *machine.Machine
	pos  *position.Tracker

	lastOrder        *order.Order
	lastDirection    float64
	currentDirection float64
	currentSpread    float64

	cancelledOrders map[string]struct{}
	executedOrders  map[string]struct{}

	trading bool

	now func() time.Time
}

// NewFishingTicks creates the strategy with all mutable state freshly
// constructed; nothing is shared between instances.
func NewFishingTicks(cfg config.Config, sink OrderSink) *FishingTicks {
	return &FishingTicks{
		symbol:          cfg.Symbol,
		orderTimeout:    cfg.OrderTimeout,
		tickDelta:       cfg.TickDelta,
		sink:            sink,
		sm:              machine.New(cfg.Symbol),
		pos:             position.NewTracker(),
		cancelledOrders: make(map[string]struct{}),
		executedOrders:  make(map[string]struct{}),
		now:             time.Now,
	}
}

func (s *FishingTicks) Name() string   { return "Fishing Ticks" }
func (s *FishingTicks) Symbol() string { return s.symbol }

func (s *FishingTicks) OnInit() {
	log.Printf("Strategy | [%s %s] Initialized", s.symbol, s.Name())
	s.reset()
}

func (s *FishingTicks) OnStart() {
	log.Printf("Strategy | [%s %s] Started", s.symbol, s.Name())
	s.trading = true
}

func (s *FishingTicks) OnStop() {
	log.Printf("Strategy | [%s %s] Stopped", s.symbol, s.Name())
	s.trading = false
}

func (s *FishingTicks) reset() {
	s.slot.Reset()
	s.sm.Reset(s.now())
	s.pos.Reset()
	s.lastOrder = nil
	s.lastDirection = 0
	s.currentDirection = 0
	s.currentSpread = 0
	s.cancelledOrders = make(map[string]struct{})
	s.executedOrders = make(map[string]struct{})
	s.trading = false
}

// OnTick evaluates the single tracked order and, when none is outstanding,
// submits a new probe following the direction signal. The clock is read
// exactly once per tick.
func (s *FishingTicks) OnTick(ctx context.Context, t tick.Tick) error {
	now := s.now()
	metrics.IncTick(s.symbol)

	s.currentSpread = t.Spread()
	s.lastDirection = s.currentDirection
	s.currentDirection = indicator.Direction(t)

	if s.lastOrder != nil {
		switch s.lastOrder.Status {
		case order.StatusSubmitted, order.StatusPartiallyFilled:
			if s.slot.Expired(now, s.orderTimeout) {
				id := s.lastOrder.ID
				if err := s.sink.CancelOrder(ctx, id); err != nil {
					// Keep tracking the order; the cancel is retried on
					// the next tick.
					log.Printf("Strategy | [%s %s] Cancel of %s failed: %v", s.symbol, s.Name(), id, err)
					return err
				}
				metrics.IncCancel()
				s.cancelledOrders[id] = struct{}{}
				s.slot.Resolve(id)
				s.lastOrder = nil
				s.sm.TransitionTo(machine.NoOrderState, "order timeout", id, now)
			}
			// Otherwise let it ride.

		case order.StatusCancelled:
			id := s.lastOrder.ID
			s.slot.Resolve(id)
			s.lastOrder = nil
			s.sm.TransitionTo(machine.NoOrderState, "cancel confirmed", id, now)
			if err := s.submitFollowing(ctx, now, t); err != nil {
				return err
			}

		case order.StatusFilled:
			filled := *s.lastOrder
			s.executedOrders[filled.ID] = struct{}{}
			s.slot.Resolve(filled.ID)
			s.lastOrder = nil
			s.sm.TransitionTo(machine.NoOrderState, "order filled", filled.ID, now)
			if err := s.submitReversing(ctx, now, t, filled); err != nil {
				return err
			}
		}
	}

	// Probe on the side the quote imbalance favors.
	if s.lastOrder == nil && !s.slot.Occupied() {
		return s.submitFollowing(ctx, now, t)
	}
	return nil
}

// submitFollowing places a probing order along the current direction:
// above the bid when positive, below the ask when negative, nothing when
// the signal is flat.
func (s *FishingTicks) submitFollowing(ctx context.Context, now time.Time, t tick.Tick) error {
	var it order.Intent
	switch {
	case s.currentDirection > 0:
		it = order.Intent{Side: order.Buy, Price: t.BidPrice + s.tickDelta, Quantity: t.BidVolume}
	case s.currentDirection < 0:
		it = order.Intent{Side: order.Sell, Price: t.AskPrice - s.tickDelta, Quantity: t.AskVolume}
	default:
		return nil
	}
	return s.place(ctx, now, it, "probe")
}

// submitReversing flips the side of an order that just filled, working the
// position back out at the opposite touch.
func (s *FishingTicks) submitReversing(ctx context.Context, now time.Time, t tick.Tick, filled order.Order) error {
	var it order.Intent
	switch filled.Side {
	case order.Buy, order.Cover:
		it = order.Intent{Side: order.Sell, Price: t.AskPrice - s.tickDelta, Quantity: filled.Quantity}
	default:
		it = order.Intent{Side: order.Buy, Price: t.BidPrice + s.tickDelta, Quantity: filled.Quantity}
	}
	return s.place(ctx, now, it, "reverse")
}

func (s *FishingTicks) place(ctx context.Context, now time.Time, it order.Intent, reason string) error {
	if it.Quantity <= 0 {
		return nil
	}
	// The init replay rebuilds signal state without reaching the venue.
	if !s.trading {
		return nil
	}
	id, err := submit(ctx, s.sink, it)
	if err != nil {
		log.Printf("Strategy | [%s %s] %s %s failed: %v", s.symbol, s.Name(), reason, it.Side, err)
		return err
	}
	if err := s.slot.Register(id, now); err != nil {
		return err
	}
	// The venue does not echo a submitted status back, so the order is
	// tracked from the moment it is placed and the timeout runs off this
	// record even when no callback ever arrives.
	o := order.Order{
		ID:          id,
		Symbol:      s.symbol,
		Side:        it.Side,
		Price:       it.Price,
		Quantity:    it.Quantity,
		Status:      order.StatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	s.lastOrder = &o
	metrics.IncOrder(string(it.Side))
	metrics.IncDecision(reason)
	s.sm.TransitionTo(machine.OrderPendingState, reason, id, now)
	log.Printf("Strategy | [%s %s] %s %s %.4f @ %.2f -> %s", s.symbol, s.Name(), reason, it.Side, it.Quantity, it.Price, id)
	return nil
}

// OnOrder records the latest status of the tracked order. Terminal
// callbacks for orders the strategy already stopped tracking (a late cancel
// confirmation after the probe was replaced) are ignored.
func (s *FishingTicks) OnOrder(o order.Order) {
	if s.slot.Occupied() && o.ID != s.slot.ID() && o.Status.Terminal() {
		return
	}
	cp := o
	s.lastOrder = &cp
}

// OnTrade is informational in this mode; the position tracker is still kept
// current for reporting.
func (s *FishingTicks) OnTrade(t order.Trade) {
	s.pos.ApplyFill(t, s.now())
	metrics.SetNetPosition(s.pos.Net())
}

// SetClock overrides the strategy clock, used by backtests to replay
// historical ticks at their recorded times.
func (s *FishingTicks) SetClock(clock func() time.Time) { s.now = clock }

// Direction returns the current direction signal (for reporting).
func (s *FishingTicks) Direction() float64 { return s.currentDirection }

// Spread returns the current bid-ask spread (for reporting).
func (s *FishingTicks) Spread() float64 { return s.currentSpread }

// Cancelled reports whether the id was cancelled by a timeout.
func (s *FishingTicks) Cancelled(orderID string) bool {
	_, ok := s.cancelledOrders[orderID]
	return ok
}

// Executed reports whether the id completed with a fill.
func (s *FishingTicks) Executed(orderID string) bool {
	_, ok := s.executedOrders[orderID]
	return ok
}

// Position returns the strategy's position tracker.
func (s *FishingTicks) Position() *position.Tracker { return s.pos }
