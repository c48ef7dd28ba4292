package strategy

import (
	"context"
	"log"
	"time"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/metrics"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/pending"
	"github.com/zuoky/nanotrader/internal/position"
	"github.com/zuoky/nanotrader/internal/tick"
)

// NanoMomentum trades the first difference of the last traded price across
// ticks. Every tick it sweeps the pending-order book for timeouts, then runs
// a strict-priority cascade: one buy rule, two hold rules, four flatten
// rules. The first matching rule wins and ends the evaluation for that tick.
type NanoMomentum struct {
	symbol        string
	orderTimeout  time.Duration
	orderDeadTime time.Duration
	priceMinDelta float64
	orderVolume   float64

	sink OrderSink
	book *pending.Book
	pos  *position.Tracker

	lastTick    *tick.Tick
	currentTick *tick.Tick

	lastPrice        float64
	currentPrice     float64
	lastDirection    float64
	currentDirection float64

	currentOrder *order.Order

	trading bool

	now func() time.Time
}

// NewNanoMomentum creates the strategy with all mutable state freshly
// constructed; nothing is shared between instances.
func NewNanoMomentum(cfg config.Config, sink OrderSink) *NanoMomentum {
	return &NanoMomentum{
		symbol:        cfg.Symbol,
		orderTimeout:  cfg.OrderTimeout,
		orderDeadTime: cfg.OrderDeadTime,
		priceMinDelta: cfg.PriceMinDelta,
		orderVolume:   cfg.OrderVolume,
		sink:          sink,
		book:          pending.NewBook(),
		pos:           position.NewTracker(),
		now:           time.Now,
	}
}

func (s *NanoMomentum) Name() string   { return "Nano Momentum" }
func (s *NanoMomentum) Symbol() string { return s.symbol }

func (s *NanoMomentum) OnInit() {
	log.Printf("Strategy | [%s %s] Initialized", s.symbol, s.Name())
	s.reset()
}

func (s *NanoMomentum) OnStart() {
	log.Printf("Strategy | [%s %s] Started", s.symbol, s.Name())
	s.trading = true
}

func (s *NanoMomentum) OnStop() {
	log.Printf("Strategy | [%s %s] Stopped", s.symbol, s.Name())
	s.trading = false
}

func (s *NanoMomentum) reset() {
	s.book.Reset()
	s.pos.Reset()
	s.lastTick = nil
	s.currentTick = nil
	s.lastPrice = 0
	s.currentPrice = 0
	s.lastDirection = 0
	s.currentDirection = 0
	s.currentOrder = nil
	s.trading = false
}

// OnTick rolls the two-tick history forward, sweeps order timeouts, and runs
// the rule cascade. The clock is read exactly once and that snapshot is used
// for every comparison within the tick.
func (s *NanoMomentum) OnTick(ctx context.Context, t tick.Tick) error {
	now := s.now()
	metrics.IncTick(s.symbol)

	cp := t
	s.lastTick = s.currentTick
	s.currentTick = &cp

	s.lastDirection = s.currentPrice - s.lastPrice
	s.lastPrice = s.currentPrice
	s.currentDirection = cp.LastPrice - s.currentPrice
	s.currentPrice = cp.LastPrice

	// The cascade needs a full two-tick history.
	if s.lastTick == nil {
		return nil
	}

	// Cancel pending orders past the timeout. Ids are collected before any
	// cancel is issued so the book is never mutated mid-iteration; entries
	// leave the book only when the cancellation confirms through OnOrder.
	var expired []string
	for id := range s.book.Expired(now, s.orderTimeout) {
		expired = append(expired, id)
	}
	for _, id := range expired {
		log.Printf("Strategy | [%s %s] Cancelling stale pending order %s", s.symbol, s.Name(), id)
		if err := s.sink.CancelOrder(ctx, id); err != nil {
			log.Printf("Strategy | [%s %s] Cancel of %s failed: %v", s.symbol, s.Name(), id, err)
			continue
		}
		metrics.IncCancel()
	}

	cur, last := s.currentTick, s.lastTick

	// When to buy
	// 1. Last price increased
	// 2. Last price sits at the ask
	// 3. Same pattern held on the previous tick
	if s.currentDirection > 0 &&
		s.currentPrice == cur.AskPrice &&
		s.lastDirection > 0 {
		log.Printf("Strategy | [%s %s] Seeking long position according to buy-1", s.symbol, s.Name())
		metrics.IncDecision("buy-1")
		return s.targetLong(ctx, now, cur.BidPrice-s.priceMinDelta, cur.AskPrice+s.priceMinDelta, s.orderVolume)
	}

	// When to hold
	if cur.BidPrice > last.BidPrice {
		metrics.IncDecision("hold-1")
		return nil
	}
	if cur.BidPrice == last.BidPrice &&
		s.currentPrice >= s.pos.Cost() &&
		s.currentDirection >= 0 {
		metrics.IncDecision("hold-2")
		return nil
	}

	// When to flatten
	// 1. Held longer than the dead time, or
	// 2. bid rose to the last price, or
	// 3. in profit but momentum turned down, or
	// 4. at or below cost.
	if !s.pos.LastFillAt().IsZero() && now.Sub(s.pos.LastFillAt()) >= s.orderDeadTime {
		log.Printf("Strategy | [%s %s] Flattening position according to flatten-1", s.symbol, s.Name())
		metrics.IncDecision("flatten-1")
		return s.flatten(ctx, now,
			cur.BidPrice, // sell at the bid
			cur.AskPrice) // buy back at the ask
	}

	if last.BidPrice < cur.BidPrice && cur.BidPrice == s.currentPrice {
		log.Printf("Strategy | [%s %s] Flattening position according to flatten-2", s.symbol, s.Name())
		metrics.IncDecision("flatten-2")
		return s.flatten(ctx, now, cur.BidPrice-s.priceMinDelta, cur.AskPrice+s.priceMinDelta)
	}

	if s.currentPrice > s.pos.Cost() && s.currentDirection < 0 {
		log.Printf("Strategy | [%s %s] Flattening position according to flatten-3", s.symbol, s.Name())
		metrics.IncDecision("flatten-3")
		return s.flatten(ctx, now, cur.BidPrice-s.priceMinDelta, cur.AskPrice+s.priceMinDelta)
	}

	if s.currentPrice <= s.pos.Cost() {
		log.Printf("Strategy | [%s %s] Flattening position according to flatten-4", s.symbol, s.Name())
		metrics.IncDecision("flatten-4")
		return s.flatten(ctx, now, cur.BidPrice-s.priceMinDelta, cur.AskPrice+s.priceMinDelta)
	}

	return nil
}

// targetLong plans the orders that move the net position to target and
// submits them, registering each in the book at the moment of emission.
func (s *NanoMomentum) targetLong(ctx context.Context, now time.Time, bidPrice, askPrice, target float64) error {
	current := s.pos.Net()
	log.Printf("Strategy | [%s %s] Targeting long position [%.2f], current position [%.2f]", s.symbol, s.Name(), target, current)

	plan, err := position.LongPlan(target, current, bidPrice, askPrice)
	if err != nil {
		return err
	}
	return s.placeAll(ctx, now, plan)
}

// targetShort mirrors targetLong for a negative target.
func (s *NanoMomentum) targetShort(ctx context.Context, now time.Time, bidPrice, askPrice, target float64) error {
	current := s.pos.Net()
	log.Printf("Strategy | [%s %s] Targeting short position [%.2f], current position [%.2f]", s.symbol, s.Name(), target, current)

	plan, err := position.ShortPlan(target, current, bidPrice, askPrice)
	if err != nil {
		return err
	}
	return s.placeAll(ctx, now, plan)
}

// flatten works the net position back to zero.
func (s *NanoMomentum) flatten(ctx context.Context, now time.Time, bidPrice, askPrice float64) error {
	current := s.pos.Net()
	log.Printf("Strategy | [%s %s] Targeting flat position, current position [%.2f]", s.symbol, s.Name(), current)

	return s.placeAll(ctx, now, position.FlattenPlan(current, bidPrice, askPrice))
}

func (s *NanoMomentum) placeAll(ctx context.Context, now time.Time, plan []order.Intent) error {
	// The init replay rebuilds price history without reaching the venue.
	if !s.trading {
		return nil
	}
	for _, it := range plan {
		id, err := submit(ctx, s.sink, it)
		if err != nil {
			log.Printf("Strategy | [%s %s] %s %.4f @ %.2f failed: %v", s.symbol, s.Name(), it.Side, it.Quantity, it.Price, err)
			return err
		}
		if err := s.book.Register(id, now); err != nil {
			return err
		}
		metrics.IncOrder(string(it.Side))
		log.Printf("Strategy | [%s %s] %s %.4f @ %.2f -> %s", s.symbol, s.Name(), it.Side, it.Quantity, it.Price, id)
	}
	return nil
}

// OnOrder resolves terminal orders from the pending book and records the
// latest order state.
func (s *NanoMomentum) OnOrder(o order.Order) {
	if o.Status.Terminal() {
		s.book.Resolve(o.ID)
	}
	cp := o
	s.currentOrder = &cp
}

// OnTrade stamps the fill time and cost basis used by the dead-time and
// profit rules.
func (s *NanoMomentum) OnTrade(t order.Trade) {
	s.pos.ApplyFill(t, s.now())
	metrics.SetNetPosition(s.pos.Net())
}

// SetClock overrides the strategy clock, used by backtests to replay
// historical ticks at their recorded times.
func (s *NanoMomentum) SetClock(clock func() time.Time) { s.now = clock }

// Pending returns the number of orders awaiting a terminal status.
func (s *NanoMomentum) Pending() int { return s.book.Len() }

// Position returns the strategy's position tracker.
func (s *NanoMomentum) Position() *position.Tracker { return s.pos }
