package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/tick"
)

// Handler receives order and trade callbacks from the paper venue.
type Handler interface {
	OnOrder(o order.Order)
	OnTrade(t order.Trade)
}

// PaperExchange is an in-process venue used by backtests and dry runs.
// Limit orders rest until a tick crosses them: buys fill when the ask
// trades at or through the limit, sells when the bid does. Fills are at
// the limit price.
type PaperExchange struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	sequence []string // ids in submission order, for deterministic fills
	lastTick *tick.Tick
	handler  Handler
	clock    func() time.Time
}

func NewPaperExchange() *PaperExchange {
	return &PaperExchange{
		orders: make(map[string]*order.Order),
		clock:  time.Now,
	}
}

func (p *PaperExchange) Name() string { return "paper" }

// SetHandler installs the callback receiver. Must be set before ticks are
// processed.
func (p *PaperExchange) SetHandler(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// SetClock overrides the venue clock, letting backtests stamp orders with
// replay time.
func (p *PaperExchange) SetClock(clock func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
}

func (p *PaperExchange) SubmitOrder(ctx context.Context, req OrderRequest) (order.Order, error) {
	select {
	case <-ctx.Done():
		return order.Order{}, ctx.Err()
	default:
	}

	if req.Quantity <= 0 {
		return order.Order{}, fmt.Errorf("paper exchange: non-positive quantity %f", req.Quantity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	o := order.Order{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Status:      order.StatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	p.orders[o.ID] = &o
	p.sequence = append(p.sequence, o.ID)

	cp := o
	return cp, nil
}

func (p *PaperExchange) SubmitOrderWithRetry(ctx context.Context, req OrderRequest, _ int, _ time.Duration) (order.Order, error) {
	return p.SubmitOrder(ctx, req)
}

// CancelOrder cancels a resting order. Cancelling an order that already
// reached a terminal state, or an unknown id, is a no-op.
func (p *PaperExchange) CancelOrder(ctx context.Context, orderID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.mu.Lock()
	o, ok := p.orders[orderID]
	if !ok || o.Status.Terminal() {
		p.mu.Unlock()
		return nil
	}
	o.Status = order.StatusCancelled
	o.UpdatedAt = p.clock()
	cp := *o
	handler := p.handler
	p.mu.Unlock()

	if handler != nil {
		handler.OnOrder(cp)
	}
	return nil
}

func (p *PaperExchange) GetOrderStatus(ctx context.Context, orderID string) (order.Order, error) {
	select {
	case <-ctx.Done():
		return order.Order{}, ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return order.Order{}, fmt.Errorf("paper exchange: unknown order %s", orderID)
	}
	return *o, nil
}

func (p *PaperExchange) FetchLatestTick(ctx context.Context, symbol string) (tick.Tick, error) {
	select {
	case <-ctx.Done():
		return tick.Tick{}, ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastTick == nil {
		return tick.Tick{}, fmt.Errorf("paper exchange: no tick seen for %s", symbol)
	}
	return *p.lastTick, nil
}

// ProcessTick matches resting orders against the new quote and delivers
// callbacks for any fills, in submission order.
func (p *PaperExchange) ProcessTick(t tick.Tick) {
	p.mu.Lock()
	cp := t
	p.lastTick = &cp

	var filled []order.Order
	for _, id := range p.sequence {
		o := p.orders[id]
		if o.Status.Terminal() {
			continue
		}
		if !p.crosses(*o, t) {
			continue
		}
		o.Status = order.StatusFilled
		o.FilledQty = o.Quantity
		o.UpdatedAt = t.Timestamp
		filled = append(filled, *o)
	}
	handler := p.handler
	p.mu.Unlock()

	if handler == nil {
		return
	}
	for _, o := range filled {
		handler.OnOrder(o)
		handler.OnTrade(order.Trade{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Price:     o.Price,
			Quantity:  o.Quantity,
			Timestamp: t.Timestamp,
		})
	}
}

func (p *PaperExchange) crosses(o order.Order, t tick.Tick) bool {
	switch o.Side {
	case order.Buy, order.Cover:
		return t.AskPrice <= o.Price
	default:
		return t.BidPrice >= o.Price
	}
}

// OpenOrders returns the ids of orders still resting, in submission order.
func (p *PaperExchange) OpenOrders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, id := range p.sequence {
		if !p.orders[id].Status.Terminal() {
			out = append(out, id)
		}
	}
	return out
}
