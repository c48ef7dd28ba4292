package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuoky/nanotrader/internal/order"
)

func newFishingForTest(t *testing.T) (*FishingTicks, *fakeSink, *time.Time) {
	t.Helper()
	sink := &fakeSink{}
	s := NewFishingTicks(testConfig("fishing-ticks"), sink)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	s.OnInit()
	s.OnStart()
	return s, sink, &now
}

func TestFishingTicks_ProbesAlongDirection(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	// Balanced book gives a positive direction signal.
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))

	require.Len(t, sink.calls, 1)
	assert.Equal(t, order.Buy, sink.calls[0].side)
	assert.Equal(t, 101.0, sink.calls[0].price) // bid + tick delta
	assert.Equal(t, 10.0, sink.calls[0].qty)    // bid volume
	assert.Positive(t, s.Direction())
	assert.Equal(t, 2.0, s.Spread())
}

func TestFishingTicks_NoProbeOnFlatSignal(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	// Zero volume on both sides carries no signal.
	require.NoError(t, s.OnTick(ctx, testTick(100, 0, 102, 0, 101, *now)))
	assert.Empty(t, sink.calls)
}

func TestFishingTicks_TimeoutCancelsAndResubmits(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	require.Len(t, sink.calls, 1)
	probe := sink.calls[0].id

	s.OnOrder(order.Order{ID: probe, Status: order.StatusSubmitted})

	// Within the timeout nothing happens.
	*now = now.Add(time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	assert.Empty(t, sink.cancels)
	require.Len(t, sink.calls, 1)

	// Past the timeout the probe is cancelled and replaced in the same tick.
	*now = now.Add(time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))

	assert.Equal(t, []string{probe}, sink.cancels)
	assert.True(t, s.Cancelled(probe))
	assert.False(t, s.Executed(probe))
	require.Len(t, sink.calls, 2)
	assert.Equal(t, order.Buy, sink.calls[1].side)

	// The late venue confirmation for the old probe must not disturb the
	// replacement.
	s.OnOrder(order.Order{ID: probe, Status: order.StatusCancelled})
	*now = now.Add(time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	assert.Len(t, sink.cancels, 1)
}

func TestFishingTicks_CancelConfirmationTriggersResubmit(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	require.Len(t, sink.calls, 1)
	probe := sink.calls[0].id

	// The venue cancels the order on its own (e.g. self-trade prevention).
	s.OnOrder(order.Order{ID: probe, Status: order.StatusCancelled})

	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))

	require.Len(t, sink.calls, 2)
	assert.Equal(t, order.Buy, sink.calls[1].side)
	assert.NotEqual(t, probe, sink.calls[1].id)
}

func TestFishingTicks_FillReversesSide(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	require.Len(t, sink.calls, 1)
	probe := sink.calls[0]

	s.OnOrder(order.Order{
		ID:       probe.id,
		Side:     order.Buy,
		Price:    probe.price,
		Quantity: probe.qty,
		Status:   order.StatusFilled,
	})
	s.OnTrade(order.Trade{OrderID: probe.id, Side: order.Buy, Price: probe.price, Quantity: probe.qty})

	*now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))

	assert.True(t, s.Executed(probe.id))
	assert.False(t, s.Cancelled(probe.id))
	require.Len(t, sink.calls, 2)
	assert.Equal(t, order.Sell, sink.calls[1].side)
	assert.Equal(t, 101.0, sink.calls[1].price) // ask - tick delta
	assert.Equal(t, probe.qty, sink.calls[1].qty)
	assert.Equal(t, probe.qty, s.Position().Net())
}

func TestFishingTicks_CancelFailureRetriesNextTick(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	require.Len(t, sink.calls, 1)
	probe := sink.calls[0].id
	s.OnOrder(order.Order{ID: probe, Status: order.StatusSubmitted})

	sink.cancelErr = assert.AnError
	*now = now.Add(2 * time.Second)
	assert.Error(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	assert.False(t, s.Cancelled(probe))
	require.Len(t, sink.calls, 1)

	// Once the venue accepts the cancel, the probe is replaced.
	sink.cancelErr = nil
	*now = now.Add(time.Second)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	assert.True(t, s.Cancelled(probe))
	require.Len(t, sink.calls, 2)
}

func TestFishingTicks_TimeoutFiresWithoutVenueCallbacks(t *testing.T) {
	s, sink, now := newFishingForTest(t)
	ctx := context.Background()

	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	require.Len(t, sink.calls, 1)
	probe := sink.calls[0].id

	// The venue never confirms the submission. The timeout must still fire
	// off the strategy's own record of the order and chase with a fresh
	// probe.
	for i := 0; i < 10; i++ {
		*now = now.Add(time.Second)
		require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, *now)))
	}

	assert.Contains(t, sink.cancels, probe)
	assert.True(t, s.Cancelled(probe))
	assert.Greater(t, len(sink.calls), 1)
}

func TestFishingTicks_NoOrdersBeforeStart(t *testing.T) {
	sink := &fakeSink{}
	s := NewFishingTicks(testConfig("fishing-ticks"), sink)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	s.OnInit()
	ctx := context.Background()

	// Replayed ticks rebuild the signal but place nothing.
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, now)))
	assert.Empty(t, sink.calls)
	assert.Positive(t, s.Direction())

	s.OnStart()
	now = now.Add(100 * time.Millisecond)
	require.NoError(t, s.OnTick(ctx, testTick(100, 10, 102, 10, 101, now)))
	assert.Len(t, sink.calls, 1)
}

func TestNew_BuildsConfiguredStrategy(t *testing.T) {
	sink := &fakeSink{}

	s := New(testConfig("fishing-ticks"), sink)
	require.NotNil(t, s)
	assert.Equal(t, "Fishing Ticks", s.Name())

	s = New(testConfig("nano-momentum"), sink)
	require.NotNil(t, s)
	assert.Equal(t, "Nano Momentum", s.Name())

	assert.Nil(t, New(testConfig("unknown"), sink))
}
