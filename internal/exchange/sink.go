package exchange

import (
	"context"
	"time"

	"github.com/zuoky/nanotrader/internal/db"
	"github.com/zuoky/nanotrader/internal/journal"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/utils"
)

// Sink routes strategy order submissions to a venue and records each order
// and cancel in storage. Persistence failures are logged but never block
// trading.
type Sink struct {
	symbol  string
	ex      Exchange
	storage db.Storage
}

func NewSink(symbol string, ex Exchange, storage db.Storage) *Sink {
	return &Sink{symbol: symbol, ex: ex, storage: storage}
}

func (s *Sink) Buy(ctx context.Context, price, qty float64) (string, error) {
	return s.submit(ctx, order.Buy, price, qty)
}

func (s *Sink) Sell(ctx context.Context, price, qty float64) (string, error) {
	return s.submit(ctx, order.Sell, price, qty)
}

func (s *Sink) Short(ctx context.Context, price, qty float64) (string, error) {
	return s.submit(ctx, order.Short, price, qty)
}

func (s *Sink) Cover(ctx context.Context, price, qty float64) (string, error) {
	return s.submit(ctx, order.Cover, price, qty)
}

func (s *Sink) submit(ctx context.Context, side order.Side, price, qty float64) (string, error) {
	o, err := s.ex.SubmitOrder(ctx, OrderRequest{
		Symbol:   s.symbol,
		Side:     side,
		Type:     "limit",
		Price:    price,
		Quantity: qty,
	})
	if err != nil {
		return "", err
	}

	s.persistOrder(ctx, o)
	s.logEvent(ctx, "order", "order submitted", map[string]any{
		"order_id": o.ID,
		"symbol":   o.Symbol,
		"side":     string(o.Side),
		"price":    o.Price,
		"quantity": o.Quantity,
	})
	return o.ID, nil
}

func (s *Sink) CancelOrder(ctx context.Context, orderID string) error {
	if err := s.ex.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	s.logEvent(ctx, "cancel", "cancel requested", map[string]any{"order_id": orderID})
	return nil
}

func (s *Sink) persistOrder(ctx context.Context, o order.Order) {
	if s.storage == nil {
		return
	}
	if err := s.storage.SaveOrder(ctx, ToDBOrder(o)); err != nil {
		utils.GetLogger().Printf("Sink | Failed to save order %s: %v", o.ID, err)
	}
}

func (s *Sink) logEvent(ctx context.Context, eventType, description string, data map[string]any) {
	if s.storage == nil {
		return
	}
	event := journal.Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	}
	if err := s.storage.LogEvent(ctx, event); err != nil {
		utils.GetLogger().Printf("Sink | Failed to log %s event: %v", eventType, err)
	}
}

// ToDBOrder converts a venue order into its persisted row form.
func ToDBOrder(o order.Order) db.Order {
	return db.Order{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Type:      "limit",
		Price:     o.Price,
		Quantity:  o.Quantity,
		FilledQty: o.FilledQty,
		Status:    string(o.Status),
		Timestamp: o.SubmittedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
