// Package tick
package tick

import (
	"fmt"
	"time"
)

// Tick is a level-1 market data snapshot: best bid/ask with volumes plus the
// last traded price. A new tick replaces the strategy's "current" tick and
// the prior current becomes "last".
type Tick struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidVolume float64   `json:"bid_volume"`
	AskPrice  float64   `json:"ask_price"`
	AskVolume float64   `json:"ask_volume"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}

// Spread returns the bid-ask spread.
func (t Tick) Spread() float64 {
	return t.AskPrice - t.BidPrice
}

// Validate checks that the tick is usable for trading decisions.
func (t Tick) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("tick has empty symbol")
	}
	if t.BidPrice <= 0 || t.AskPrice <= 0 {
		return fmt.Errorf("tick for %s has non-positive quote: bid=%f ask=%f", t.Symbol, t.BidPrice, t.AskPrice)
	}
	if t.BidVolume < 0 || t.AskVolume < 0 {
		return fmt.Errorf("tick for %s has negative volume: bid=%f ask=%f", t.Symbol, t.BidVolume, t.AskVolume)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("tick for %s has zero timestamp", t.Symbol)
	}
	return nil
}
