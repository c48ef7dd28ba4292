// Package strategy
package strategy

import (
	"context"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/tick"
)

// OrderSink is the order-submission capability injected into strategies.
// Submissions return the venue order id; the strategy does not wait for the
// resulting status, which arrives later through OnOrder/OnTrade.
type OrderSink interface {
	Buy(ctx context.Context, price, qty float64) (string, error)
	Sell(ctx context.Context, price, qty float64) (string, error)
	Short(ctx context.Context, price, qty float64) (string, error)
	Cover(ctx context.Context, price, qty float64) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Strategy is the interface for all tick-driven strategies. Callbacks are
// delivered strictly one at a time; implementations own their state and are
// not safe for concurrent use.
type Strategy interface {
	Name() string
	Symbol() string

	OnInit()
	OnStart()
	OnStop()

	OnTick(ctx context.Context, t tick.Tick) error
	OnOrder(o order.Order)
	OnTrade(t order.Trade)
}

// New builds the configured strategy wired to the given sink.
func New(cfg config.Config, sink OrderSink) Strategy {
	switch cfg.Strategy {
	case "fishing-ticks":
		return NewFishingTicks(cfg, sink)
	case "nano-momentum":
		return NewNanoMomentum(cfg, sink)
	default:
		return nil
	}
}

// submit dispatches an intent to the matching sink method.
func submit(ctx context.Context, sink OrderSink, it order.Intent) (string, error) {
	switch it.Side {
	case order.Buy:
		return sink.Buy(ctx, it.Price, it.Quantity)
	case order.Sell:
		return sink.Sell(ctx, it.Price, it.Quantity)
	case order.Short:
		return sink.Short(ctx, it.Price, it.Quantity)
	default:
		return sink.Cover(ctx, it.Price, it.Quantity)
	}
}
