// Package strategy
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/tick"
)

type sinkCall struct {
	side  order.Side
	price float64
	qty   float64
	id    string
}

// fakeSink records submissions and cancels and hands out sequential ids.
type fakeSink struct {
	nextID    int
	calls     []sinkCall
	cancels   []string
	submitErr error
	cancelErr error
}

func (f *fakeSink) submit(side order.Side, price, qty float64) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextID++
	id := fmt.Sprintf("ord-%d", f.nextID)
	f.calls = append(f.calls, sinkCall{side: side, price: price, qty: qty, id: id})
	return id, nil
}

func (f *fakeSink) Buy(ctx context.Context, price, qty float64) (string, error) {
	return f.submit(order.Buy, price, qty)
}

func (f *fakeSink) Sell(ctx context.Context, price, qty float64) (string, error) {
	return f.submit(order.Sell, price, qty)
}

func (f *fakeSink) Short(ctx context.Context, price, qty float64) (string, error) {
	return f.submit(order.Short, price, qty)
}

func (f *fakeSink) Cover(ctx context.Context, price, qty float64) (string, error) {
	return f.submit(order.Cover, price, qty)
}

func (f *fakeSink) CancelOrder(ctx context.Context, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancels = append(f.cancels, orderID)
	return nil
}

func testConfig(strategyName string) config.Config {
	return config.Config{
		Symbol:        "BTC-USDT",
		Strategy:      strategyName,
		OrderTimeout:  1500 * time.Millisecond,
		OrderDeadTime: 2500 * time.Millisecond,
		PriceMinDelta: 10,
		OrderVolume:   2,
		TickDelta:     1,
	}
}

func testTick(bid, bidVol, ask, askVol, last float64, at time.Time) tick.Tick {
	return tick.Tick{
		Symbol:    "BTC-USDT",
		BidPrice:  bid,
		BidVolume: bidVol,
		AskPrice:  ask,
		AskVolume: askVol,
		LastPrice: last,
		Timestamp: at,
	}
}
