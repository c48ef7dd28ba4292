// Package backtest
package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/db"
	"github.com/zuoky/nanotrader/internal/exchange"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/strategy"
	"github.com/zuoky/nanotrader/internal/tick"
)

// Results holds the outcome of a tick replay.
type Results struct {
	Ticks         int             `json:"ticks"`
	Orders        int             `json:"orders"`
	Cancels       int             `json:"cancels"`
	Fills         int             `json:"fills"`
	FinalPosition float64         `json:"final_position"`
	RealizedCash  float64         `json:"realized_cash"`
	FinalEquity   float64         `json:"final_equity"`
	WinRate       float64         `json:"win_rate"`
	MaxDrawdown   float64         `json:"max_drawdown"`
	TradeLog      []TradeLogEntry `json:"trade_log"`
	EquityCurve   []float64       `json:"equity_curve"`
}

// TradeLogEntry represents a single fill during the replay.
type TradeLogEntry struct {
	OrderID  string    `json:"order_id"`
	Side     string    `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Time     time.Time `json:"time"`
}

type clockAware interface {
	SetClock(func() time.Time)
}

// countingSink wraps the order sink to count submissions and cancels.
type countingSink struct {
	inner   *exchange.Sink
	orders  int
	cancels int
}

func (c *countingSink) Buy(ctx context.Context, price, qty float64) (string, error) {
	id, err := c.inner.Buy(ctx, price, qty)
	if err == nil {
		c.orders++
	}
	return id, err
}

func (c *countingSink) Sell(ctx context.Context, price, qty float64) (string, error) {
	id, err := c.inner.Sell(ctx, price, qty)
	if err == nil {
		c.orders++
	}
	return id, err
}

func (c *countingSink) Short(ctx context.Context, price, qty float64) (string, error) {
	id, err := c.inner.Short(ctx, price, qty)
	if err == nil {
		c.orders++
	}
	return id, err
}

func (c *countingSink) Cover(ctx context.Context, price, qty float64) (string, error) {
	id, err := c.inner.Cover(ctx, price, qty)
	if err == nil {
		c.orders++
	}
	return id, err
}

func (c *countingSink) CancelOrder(ctx context.Context, orderID string) error {
	err := c.inner.CancelOrder(ctx, orderID)
	if err == nil {
		c.cancels++
	}
	return err
}

// recorder forwards venue callbacks to the strategy and keeps the trade log.
type recorder struct {
	strat   strategy.Strategy
	results *Results
	net     float64
	cash    float64
}

func (r *recorder) OnOrder(o order.Order) {
	r.strat.OnOrder(o)
}

func (r *recorder) OnTrade(t order.Trade) {
	r.results.Fills++
	r.net += t.Side.Signed(t.Quantity)
	r.cash -= t.Side.Signed(t.Quantity) * t.Price
	r.results.TradeLog = append(r.results.TradeLog, TradeLogEntry{
		OrderID:  t.OrderID,
		Side:     string(t.Side),
		Price:    t.Price,
		Quantity: t.Quantity,
		Time:     t.Timestamp,
	})
	r.strat.OnTrade(t)
}

// RunBacktest replays stored ticks through a paper venue and reports the
// results.
func RunBacktest(ctx context.Context, cfg config.Config, storage db.Storage) {
	ticks, err := storage.GetTicks(ctx, cfg.Symbol, cfg.BacktestFrom, cfg.BacktestTo)
	if err != nil {
		log.Fatalf("RunBacktest | Error loading ticks: %v", err)
	}
	if len(ticks) == 0 {
		log.Fatalf("RunBacktest | No ticks found for %s [%s-%s]",
			cfg.Symbol, cfg.BacktestFrom.Format(time.RFC3339), cfg.BacktestTo.Format(time.RFC3339))
	}

	log.Printf("RunBacktest | Loaded %d ticks for backtest [%s-%s]",
		len(ticks), cfg.BacktestFrom.Format(time.RFC3339), cfg.BacktestTo.Format(time.RFC3339))

	results := Replay(ctx, cfg, ticks, storage)

	printResults(cfg, results)
	saveResults(results)
}

// Replay runs the configured strategy over the given ticks on a paper venue.
// The venue and strategy clocks follow the replayed tick timestamps, so
// order timeouts and dead times behave as they would have live.
func Replay(ctx context.Context, cfg config.Config, ticks []tick.Tick, storage db.Storage) Results {
	var results Results

	paper := exchange.NewPaperExchange()
	sink := &countingSink{inner: exchange.NewSink(cfg.Symbol, paper, storage)}
	strat := strategy.New(cfg, sink)
	if strat == nil {
		log.Fatalf("Replay | Unknown strategy: %s", cfg.Strategy)
	}

	rec := &recorder{strat: strat, results: &results}
	paper.SetHandler(rec)

	var replayTime time.Time
	clock := func() time.Time { return replayTime }
	paper.SetClock(clock)
	if ca, ok := strat.(clockAware); ok {
		ca.SetClock(clock)
	}

	strat.OnInit()
	strat.OnStart()

	var lastPrice float64
	for _, t := range ticks {
		if err := t.Validate(); err != nil {
			log.Printf("Replay | Skipping invalid tick: %v", err)
			continue
		}
		replayTime = t.Timestamp
		lastPrice = t.LastPrice

		// Fills from resting orders land before the strategy sees the tick.
		paper.ProcessTick(t)

		if err := strat.OnTick(ctx, t); err != nil {
			log.Printf("Replay | Strategy error on tick %s: %v", t.Timestamp.Format(time.RFC3339), err)
		}
		results.Ticks++
		results.EquityCurve = append(results.EquityCurve, rec.cash+rec.net*t.LastPrice)
	}

	strat.OnStop()

	results.Orders = sink.orders
	results.Cancels = sink.cancels
	results.FinalPosition = rec.net
	results.RealizedCash = rec.cash
	results.FinalEquity = rec.cash + rec.net*lastPrice
	finalize(&results)
	return results
}

// finalize derives win-rate and drawdown statistics from the trade log and
// equity curve. A trade counts as closing when it reduces the running net
// position; its profit is measured against the most recent fill price, the
// same cost basis the strategies trade on.
func finalize(results *Results) {
	peak := math.Inf(-1)
	for _, eq := range results.EquityCurve {
		if eq > peak {
			peak = eq
		}
		if dd := peak - eq; dd > results.MaxDrawdown {
			results.MaxDrawdown = dd
		}
	}

	var net, cost float64
	var wins, closes int
	for _, t := range results.TradeLog {
		signed := order.Side(t.Side).Signed(t.Quantity)
		if net > 0 && signed < 0 || net < 0 && signed > 0 {
			closes++
			pnl := (t.Price - cost) * t.Quantity
			if net < 0 {
				pnl = -pnl
			}
			if pnl > 0 {
				wins++
			}
		}
		net += signed
		cost = t.Price
	}
	if closes > 0 {
		results.WinRate = float64(wins) / float64(closes)
	}
}

func printResults(cfg config.Config, results Results) {
	log.Printf("Backtest Results (%s %s):\n", cfg.Symbol, cfg.Strategy)
	log.Printf("  Ticks=%d, Orders=%d, Cancels=%d, Fills=%d\n",
		results.Ticks, results.Orders, results.Cancels, results.Fills)
	log.Printf("  FinalPosition=%.4f, RealizedCash=%.2f, FinalEquity=%.2f\n",
		results.FinalPosition, results.RealizedCash, results.FinalEquity)
	log.Printf("  WinRate=%.2f%%, MaxDrawdown=%.2f\n",
		results.WinRate*100, results.MaxDrawdown)

	log.Println("Trade Log Summary (Last 10 trades):")
	maxTrades := 10
	start := 0
	if len(results.TradeLog) > maxTrades {
		start = len(results.TradeLog) - maxTrades
		log.Printf("  ... %d earlier trades omitted\n", start)
	}
	for i, t := range results.TradeLog[start:] {
		log.Printf("  Trade %d: %s %.4f @ %.2f at %s\n",
			start+i+1, t.Side, t.Quantity, t.Price, t.Time.Format(time.RFC3339))
	}
}

// saveResults saves backtest results to CSV files
func saveResults(results Results) {
	tradeRows := [][]string{{"Trade#", "OrderID", "Side", "Price", "Quantity", "Time"}}
	for i, t := range results.TradeLog {
		tradeRows = append(tradeRows, []string{
			fmt.Sprintf("%d", i+1),
			t.OrderID,
			t.Side,
			fmt.Sprintf("%.2f", t.Price),
			fmt.Sprintf("%.4f", t.Quantity),
			t.Time.Format(time.RFC3339),
		})
	}

	equityRows := [][]string{{"Step", "Equity"}}
	for i, eq := range results.EquityCurve {
		equityRows = append(equityRows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", eq),
		})
	}

	saveCSV("backtest_trades.csv", tradeRows)
	saveCSV("backtest_equity.csv", equityRows)
}

// saveCSV saves data to a CSV file
func saveCSV(filename string, rows [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		log.Printf("Error creating CSV file %s: %v", filename, err)
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			log.Printf("Error writing to CSV file %s: %v", filename, err)
			return err
		}
	}

	log.Printf("Saved results to %s", filename)
	return nil
}
