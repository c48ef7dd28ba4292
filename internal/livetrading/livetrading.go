// Package livetrading
package livetrading

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/db"
	"github.com/zuoky/nanotrader/internal/exchange"
	"github.com/zuoky/nanotrader/internal/notifier"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/strategy"
)

// Engine drives a single strategy in live mode. All strategy callbacks are
// delivered from one goroutine: a tick never interleaves with an order or
// trade callback.
type Engine struct {
	cfg      config.Config
	ex       exchange.Exchange
	strat    strategy.Strategy
	storage  db.Storage
	notifier notifier.Notifier

	lastTickAt time.Time
}

func New(cfg config.Config, ex exchange.Exchange, strat strategy.Strategy, storage db.Storage, n notifier.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		ex:       ex,
		strat:    strat,
		storage:  storage,
		notifier: n,
	}
}

// Run polls the venue for ticks and order statuses until the context is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Engine | Recovered from panic in live trading: %v", r)
			e.notifier.Send(fmt.Sprintf("PANIC in trading system: %v", r))
		}
	}()

	e.strat.OnInit()
	e.warmUp(ctx)
	e.strat.OnStart()
	defer e.strat.OnStop()

	log.Printf("Engine | Starting live trading for %s on %s (poll %s, status %s)",
		e.strat.Symbol(), e.ex.Name(), e.cfg.PollInterval, e.cfg.StatusInterval)

	tickTicker := time.NewTicker(e.cfg.PollInterval)
	defer tickTicker.Stop()
	statusTicker := time.NewTicker(e.cfg.StatusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Engine | Context cancelled, stopping live trading")
			return ctx.Err()

		case <-tickTicker.C:
			e.pollTick(ctx)

		case <-statusTicker.C:
			e.pollOrderStatuses(ctx)
		}
	}
}

// warmUp replays recently stored ticks through the strategy between OnInit
// and OnStart, so it begins live trading with its price history populated.
// The strategy is not started yet and places no orders during the replay.
func (e *Engine) warmUp(ctx context.Context) {
	if e.storage == nil || e.cfg.InitDays <= 0 {
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -e.cfg.InitDays)
	ticks, err := e.storage.GetTicks(ctx, e.strat.Symbol(), start, end)
	if err != nil {
		log.Printf("Engine | Failed to load warm-up ticks: %v", err)
		return
	}

	for _, t := range ticks {
		if err := t.Validate(); err != nil {
			continue
		}
		if err := e.strat.OnTick(ctx, t); err != nil {
			log.Printf("Engine | Strategy error on warm-up tick: %v", err)
		}
		e.lastTickAt = t.Timestamp
	}
	log.Printf("Engine | Warmed up with %d ticks from the last %d day(s)", len(ticks), e.cfg.InitDays)
}

func (e *Engine) pollTick(ctx context.Context) {
	t, err := e.ex.FetchLatestTick(ctx, e.strat.Symbol())
	if err != nil {
		log.Printf("Engine | Failed to fetch tick for %s: %v", e.strat.Symbol(), err)
		return
	}
	if err := t.Validate(); err != nil {
		log.Printf("Engine | Dropping invalid tick: %v", err)
		return
	}
	if !t.Timestamp.After(e.lastTickAt) {
		return
	}
	e.lastTickAt = t.Timestamp

	if e.storage != nil {
		if err := e.storage.SaveTick(ctx, t); err != nil {
			log.Printf("Engine | Failed to save tick: %v", err)
		}
	}

	// The paper venue fills resting orders off the incoming quote.
	if p, ok := e.ex.(*exchange.PaperExchange); ok {
		p.ProcessTick(t)
	}

	if err := e.strat.OnTick(ctx, t); err != nil {
		log.Printf("Engine | Strategy error on tick: %v", err)
		e.notifier.SendWithRetry(fmt.Sprintf("Strategy error on %s: %v", e.strat.Symbol(), err))
	}
}

// pollOrderStatuses reconciles open orders in storage against the venue and
// forwards status changes and fills to the strategy.
func (e *Engine) pollOrderStatuses(ctx context.Context) {
	if e.storage == nil {
		return
	}

	open, err := e.storage.GetOpenOrders(ctx)
	if err != nil {
		log.Printf("Engine | Failed to load open orders: %v", err)
		return
	}

	for _, row := range open {
		o, err := e.ex.GetOrderStatus(ctx, row.OrderID)
		if err != nil {
			log.Printf("Engine | Failed to get status of %s: %v", row.OrderID, err)
			continue
		}

		if string(o.Status) == row.Status {
			continue
		}

		// The venue collapses short/cover onto sell/buy; restore the side
		// the strategy submitted.
		o.Side = order.Side(row.Side)
		o.Price = row.Price
		o.Quantity = row.Quantity

		avgPrice := 0.0
		if o.FilledQty > 0 {
			avgPrice = o.Price
		}
		if err := e.storage.UpdateOrderStatus(ctx, row.OrderID, string(o.Status), o.FilledQty, avgPrice, o.UpdatedAt); err != nil {
			log.Printf("Engine | Failed to update order %s: %v", row.OrderID, err)
		}

		e.strat.OnOrder(o)

		if o.Status == order.StatusFilled {
			e.strat.OnTrade(order.Trade{
				OrderID:   o.ID,
				Symbol:    o.Symbol,
				Side:      o.Side,
				Price:     o.Price,
				Quantity:  o.Quantity,
				Timestamp: o.UpdatedAt,
			})
		}

		if o.Status.Terminal() {
			if err := e.storage.CloseOrder(ctx, row.OrderID); err != nil {
				log.Printf("Engine | Failed to close order %s: %v", row.OrderID, err)
			}
		}
	}
}
