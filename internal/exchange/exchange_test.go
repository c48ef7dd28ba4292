// Package exchange
package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zuoky/nanotrader/internal/order"
)

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("BTC-USDT"))
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("btc-usdt"))
	assert.Equal(t, "USDTTMN", NormalizeSymbol("USDT-TMN"))
}

func TestDenormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTC-USDT", DenormalizeSymbol("BTCUSDT"))
	assert.Equal(t, "USDT-TMN", DenormalizeSymbol("USDTTMN"))
	assert.Equal(t, "BTC-USDT", DenormalizeSymbol("BTC-USDT"))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, order.StatusFilled, ParseStatus("FILLED", 2, 2))
	assert.Equal(t, order.StatusCancelled, ParseStatus("CANCELED", 0, 2))
	assert.Equal(t, order.StatusCancelled, ParseStatus("EXPIRED", 0, 2))
	assert.Equal(t, order.StatusPartiallyFilled, ParseStatus("PARTIALLY_FILLED", 1, 2))
	assert.Equal(t, order.StatusSubmitted, ParseStatus("NEW", 0, 2))

	// A resting status with partial executed quantity is a partial fill.
	assert.Equal(t, order.StatusPartiallyFilled, ParseStatus("NEW", 1, 2))
}

func TestVenueSide(t *testing.T) {
	assert.Equal(t, "BUY", VenueSide(order.Buy))
	assert.Equal(t, "BUY", VenueSide(order.Cover))
	assert.Equal(t, "SELL", VenueSide(order.Sell))
	assert.Equal(t, "SELL", VenueSide(order.Short))
}
