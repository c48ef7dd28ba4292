package livetrading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/db"
	"github.com/zuoky/nanotrader/internal/exchange"
	"github.com/zuoky/nanotrader/internal/notifier"
	"github.com/zuoky/nanotrader/internal/strategy"
	"github.com/zuoky/nanotrader/internal/tick"
)

func engineConfig(strategyName string) config.Config {
	return config.Config{
		Symbol:        "BTC-USDT",
		Strategy:      strategyName,
		OrderTimeout:  1500 * time.Millisecond,
		OrderDeadTime: 2500 * time.Millisecond,
		PriceMinDelta: 10,
		OrderVolume:   2,
		TickDelta:     1,
		InitDays:      1,
	}
}

func engineTick(bid, bidVol, ask, askVol, last float64, at time.Time) tick.Tick {
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

func TestEngine_WarmUpReplaysStoredTicksWithoutTrading(t *testing.T) {
	ctx := context.Background()
	cfg := engineConfig("fishing-ticks")
	storage := db.NewMemory()

	// Ticks from the last hour fall inside the one-day warm-up window.
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, storage.SaveTick(ctx, engineTick(100, 10, 102, 10, 101, at)))
	}

	paper := exchange.NewPaperExchange()
	sink := exchange.NewSink(cfg.Symbol, paper, storage)
	strat := strategy.New(cfg, sink)
	require.NotNil(t, strat)
	e := New(cfg, paper, strat, storage, notifier.Noop{})

	strat.OnInit()
	e.warmUp(ctx)

	// The replay rebuilt the signal state but placed nothing at the venue.
	assert.Empty(t, paper.OpenOrders())
	f := strat.(*strategy.FishingTicks)
	assert.Positive(t, f.Direction())
	assert.Equal(t, base.Add(2*time.Second), e.lastTickAt)

	// Once started, the next tick trades normally.
	strat.OnStart()
	require.NoError(t, strat.OnTick(ctx, engineTick(100, 10, 102, 10, 101, time.Now().UTC())))
	assert.Len(t, paper.OpenOrders(), 1)
}

func TestEngine_OrderPollRecordsFills(t *testing.T) {
	ctx := context.Background()
	cfg := engineConfig("nano-momentum")
	storage := db.NewMemory()

	paper := exchange.NewPaperExchange()
	sink := exchange.NewSink(cfg.Symbol, paper, storage)
	strat := strategy.New(cfg, sink)
	require.NotNil(t, strat)
	e := New(cfg, paper, strat, storage, notifier.Noop{})

	strat.OnInit()
	strat.OnStart()

	id, err := sink.Buy(ctx, 100, 2)
	require.NoError(t, err)

	// Live mode installs no venue handler, so the fill is only visible to
	// the status poll.
	paper.ProcessTick(engineTick(99, 5, 100, 5, 100, time.Now().UTC()))

	e.pollOrderStatuses(ctx)

	row, err := storage.GetOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "CLOSED", row.Status)
	assert.Equal(t, 2.0, row.FilledQty)
	assert.Equal(t, 100.0, row.AvgPrice)

	nm := strat.(*strategy.NanoMomentum)
	assert.Equal(t, 2.0, nm.Position().Net())

	// A second poll has nothing left to reconcile.
	open, err := storage.GetOpenOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}
