// Package exchange
package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/tick"
)

// OrderRequest describes a limit order to submit to a venue.
type OrderRequest struct {
	Symbol   string
	Side     order.Side
	Type     string // only "limit" is used
	Price    float64
	Quantity float64
}

// Exchange is the interface for all supported venues.
type Exchange interface {
	Name() string
	SubmitOrder(ctx context.Context, req OrderRequest) (order.Order, error)
	SubmitOrderWithRetry(ctx context.Context, req OrderRequest, maxAttempts int, delay time.Duration) (order.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (order.Order, error)
	FetchLatestTick(ctx context.Context, symbol string) (tick.Tick, error)
}

// NormalizeSymbol converts "BTC-USDT" to the venue form "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// DenormalizeSymbol converts the venue form back to "BTC-USDT".
func DenormalizeSymbol(symbol string) string {
	if strings.Contains(symbol, "-") {
		return symbol
	}
	if strings.HasSuffix(symbol, "USDT") {
		return strings.TrimSuffix(symbol, "USDT") + "-USDT"
	}
	if strings.HasSuffix(symbol, "TMN") {
		return strings.TrimSuffix(symbol, "TMN") + "-TMN"
	}
	if len(symbol) > 3 {
		return symbol[:len(symbol)-3] + "-" + symbol[len(symbol)-3:]
	}
	return symbol
}

// ParseStatus maps a venue status string onto the order lifecycle. Statuses
// the venue reports for resting orders map to SUBMITTED.
func ParseStatus(s string, filledQty, origQty float64) order.Status {
	switch strings.ToUpper(s) {
	case "FILLED", "DONE":
		return order.StatusFilled
	case "CANCELED", "CANCELLED", "EXPIRED", "REJECTED":
		return order.StatusCancelled
	case "PARTIALLY_FILLED":
		return order.StatusPartiallyFilled
	}
	if filledQty > 0 && filledQty < origQty {
		return order.StatusPartiallyFilled
	}
	return order.StatusSubmitted
}

// VenueSide maps the four logical sides onto the venue's two: short sells
// and cover buys.
func VenueSide(s order.Side) string {
	switch s {
	case order.Buy, order.Cover:
		return "BUY"
	default:
		return "SELL"
	}
}
