package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuoky/nanotrader/internal/order"
)

func newMomentumForTest(t *testing.T) (*NanoMomentum, *fakeSink, *time.Time) {
	t.Helper()
	sink := &fakeSink{}
	s := NewNanoMomentum(testConfig("nano-momentum"), sink)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	s.OnInit()
	s.OnStart()
	return s, sink, &now
}

func TestNanoMomentum_NoOrdersBeforeStart(t *testing.T) {
	sink := &fakeSink{}
	s := NewNanoMomentum(testConfig("nano-momentum"), sink)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	s.OnInit()
	ctx := context.Background()

	// Replayed ticks satisfy the buy rule but place nothing before start.
	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 101, 5, 100, now)))
	now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(104, 5, 105, 5, 105, now)))
	assert.Empty(t, sink.calls)

	s.OnStart()
	now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(109, 5, 110, 5, 110, now)))
	require.Len(t, sink.calls, 1)
	assert.Equal(t, order.Buy, sink.calls[0].side)
	assert.Equal(t, 99.0, sink.calls[0].price)
}

func TestNanoMomentum_FirstTickIsHistoryOnly(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	// Even a tick that would satisfy the buy rule cannot fire without a
	// full two-tick history.
	require.NoError(t, s.OnTick(ctx, testTick(104, 5, 105, 5, 105, *now)))
	assert.Empty(t, sink.calls)
}

func TestNanoMomentum_BuyRule(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 101, 5, 100, *now)))

	// Price increased across both ticks and the last trade printed at the
	// ask: seek the long target with a single buy below the bid.
	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(104, 5, 105, 5, 105, *now)))

	require.Len(t, sink.calls, 1)
	assert.Equal(t, order.Buy, sink.calls[0].side)
	assert.Equal(t, 94.0, sink.calls[0].price) // bid - price min delta
	assert.Equal(t, 2.0, sink.calls[0].qty)    // order volume
	assert.Equal(t, 1, s.Pending())
}

func TestNanoMomentum_HoldOnRisingBid(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 5, 101, 5, 100, *now)))

	// Bid rose but the last trade did not print at the ask, so the buy rule
	// does not fire and the rising bid holds.
	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(101, 5, 102, 5, 100, *now)))
	assert.Empty(t, sink.calls)
}

func TestNanoMomentum_HoldOnSteadyBidInProfit(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 5, 102, 5, 100, *now)))

	// Equal bid, price at or above cost, momentum not negative.
	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(100, 5, 102, 5, 100, *now)))
	assert.Empty(t, sink.calls)
}

func TestNanoMomentum_FlattenAtOrBelowCost(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	// Long 2 at cost 100.
	s.OnTrade(order.Trade{OrderID: "fill-1", Side: order.Buy, Price: 100, Quantity: 2})
	require.Equal(t, 2.0, s.Position().Net())

	require.NoError(t, s.OnTick(ctx, testTick(100, 5, 102, 5, 99, *now)))

	// Bid dropped and the price sits below cost; the position is worked out
	// with a single sell above the ask.
	*now = now.Add(time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 102, 5, 99, *now)))

	require.Len(t, sink.calls, 1)
	assert.Equal(t, order.Sell, sink.calls[0].side)
	assert.Equal(t, 112.0, sink.calls[0].price) // ask + price min delta
	assert.Equal(t, 2.0, sink.calls[0].qty)
}

func TestNanoMomentum_FlattenAfterDeadTime(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	s.OnTrade(order.Trade{OrderID: "fill-1", Side: order.Buy, Price: 90, Quantity: 2})

	require.NoError(t, s.OnTick(ctx, testTick(100, 5, 102, 5, 99, *now)))

	// Held past the dead time: flatten at the raw touch, not delta-adjusted.
	*now = now.Add(3 * time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 102, 5, 99, *now)))

	require.Len(t, sink.calls, 1)
	assert.Equal(t, order.Sell, sink.calls[0].side)
	assert.Equal(t, 102.0, sink.calls[0].price)
	assert.Equal(t, 2.0, sink.calls[0].qty)
}

func TestNanoMomentum_FlattenWhenFlatIsNoOp(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 5, 102, 5, 99, *now)))

	// Momentum turned down, so the cascade reaches a flatten rule, which
	// plans nothing for a flat position.
	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 102, 5, 98, *now)))
	assert.Empty(t, sink.calls)
}

func TestNanoMomentum_TimeoutSweepCancelsStaleOrders(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 101, 5, 100, *now)))
	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(104, 5, 105, 5, 105, *now)))
	require.Len(t, sink.calls, 1)
	stale := sink.calls[0].id
	require.Equal(t, 1, s.Pending())

	// Past the timeout the sweep cancels the order. The entry stays pending
	// until the venue confirms through the order callback.
	*now = now.Add(2 * time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(105, 5, 106, 5, 105, *now)))
	assert.Equal(t, []string{stale}, sink.cancels)
	assert.Equal(t, 1, s.Pending())

	s.OnOrder(order.Order{ID: stale, Status: order.StatusCancelled})
	assert.Equal(t, 0, s.Pending())
}

func TestNanoMomentum_NonTerminalCallbackKeepsOrderPending(t *testing.T) {
	s, sink, now := newMomentumForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(99, 5, 101, 5, 100, *now)))
	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(104, 5, 105, 5, 105, *now)))
	require.Len(t, sink.calls, 1)
	id := sink.calls[0].id

	s.OnOrder(order.Order{ID: id, Status: order.StatusPartiallyFilled})
	assert.Equal(t, 1, s.Pending())

	s.OnOrder(order.Order{ID: id, Status: order.StatusFilled})
	assert.Equal(t, 0, s.Pending())
}
