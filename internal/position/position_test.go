// Package position
package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuoky/nanotrader/internal/order"
)

func fill(side order.Side, price, qty float64) order.Trade {
	return order.Trade{
		OrderID:  "ord-1",
		Symbol:   "BTC-USDT",
		Side:     side,
		Price:    price,
		Quantity: qty,
	}
}

func TestTracker_ApplyFill(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	assert.Equal(t, 0.0, tr.Net())
	assert.True(t, tr.LastFillAt().IsZero())

	tr.ApplyFill(fill(order.Buy, 100, 2), now)
	assert.Equal(t, 2.0, tr.Net())
	assert.Equal(t, 100.0, tr.Cost())
	assert.Equal(t, now, tr.LastFillAt())

	// Cost basis is the latest fill price, not an average.
	later := now.Add(time.Second)
	tr.ApplyFill(fill(order.Sell, 110, 1), later)
	assert.Equal(t, 1.0, tr.Net())
	assert.Equal(t, 110.0, tr.Cost())
	assert.Equal(t, later, tr.LastFillAt())

	tr.ApplyFill(fill(order.Short, 105, 3), later)
	assert.Equal(t, -2.0, tr.Net())

	tr.ApplyFill(fill(order.Cover, 104, 2), later)
	assert.Equal(t, 0.0, tr.Net())

	tr.Reset()
	assert.Equal(t, 0.0, tr.Net())
	assert.Equal(t, 0.0, tr.Cost())
	assert.True(t, tr.LastFillAt().IsZero())
}

func TestLongPlan_InvalidTarget(t *testing.T) {
	_, err := LongPlan(0, 0, 99, 101)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = LongPlan(-2, 0, 99, 101)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestLongPlan_FromFlat(t *testing.T) {
	plan, err := LongPlan(2, 0, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{{Side: order.Buy, Price: 99, Quantity: 2}}, plan)
}

func TestLongPlan_AdjustExistingLong(t *testing.T) {
	plan, err := LongPlan(5, 3, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{{Side: order.Buy, Price: 99, Quantity: 2}}, plan)

	plan, err = LongPlan(3, 5, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{{Side: order.Sell, Price: 101, Quantity: 2}}, plan)

	plan, err = LongPlan(3, 3, 99, 101)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestLongPlan_FlipFromShort(t *testing.T) {
	// The flip is two independent orders, never one netted quantity.
	plan, err := LongPlan(5, -3, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{
		{Side: order.Cover, Price: 99, Quantity: 3},
		{Side: order.Buy, Price: 99, Quantity: 5},
	}, plan)
}

func TestShortPlan_InvalidTarget(t *testing.T) {
	_, err := ShortPlan(0, 0, 99, 101)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = ShortPlan(2, 0, 99, 101)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestShortPlan_FromFlat(t *testing.T) {
	plan, err := ShortPlan(-4, 0, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{{Side: order.Short, Price: 101, Quantity: 4}}, plan)
}

func TestShortPlan_AdjustExistingShort(t *testing.T) {
	plan, err := ShortPlan(-4, -1, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{{Side: order.Short, Price: 101, Quantity: 3}}, plan)

	plan, err = ShortPlan(-1, -4, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{{Side: order.Cover, Price: 99, Quantity: 3}}, plan)

	plan, err = ShortPlan(-2, -2, 99, 101)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestShortPlan_FlipFromLong(t *testing.T) {
	plan, err := ShortPlan(-4, 2, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, []order.Intent{
		{Side: order.Sell, Price: 101, Quantity: 2},
		{Side: order.Short, Price: 101, Quantity: 4},
	}, plan)
}

func TestFlattenPlan(t *testing.T) {
	assert.Equal(t, []order.Intent{{Side: order.Sell, Price: 101, Quantity: 3}},
		FlattenPlan(3, 99, 101))

	assert.Equal(t, []order.Intent{{Side: order.Cover, Price: 99, Quantity: 2}},
		FlattenPlan(-2, 99, 101))

	assert.Nil(t, FlattenPlan(0, 99, 101))
}
