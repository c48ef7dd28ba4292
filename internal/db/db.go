// Package db
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/zuoky/nanotrader/internal/journal"
	"github.com/zuoky/nanotrader/internal/tick"
)

// Order is the persisted form of an order row.
type Order struct {
	OrderID   string
	Symbol    string
	Side      string
	Type      string
	Price     float64
	Quantity  float64
	Status    string
	FilledQty float64
	AvgPrice  float64
	Timestamp time.Time
	UpdatedAt time.Time
}

// Storage is the interface for all persistent storage.
type Storage interface {
	GetDB() *sql.DB

	SaveTick(ctx context.Context, t tick.Tick) error
	SaveTicks(ctx context.Context, ticks []tick.Tick) error
	GetTicks(ctx context.Context, symbol string, start, end time.Time) ([]tick.Tick, error)
	DeleteTicks(ctx context.Context, symbol string, before time.Time) error

	SaveOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOpenOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string, filledQty, avgPrice float64, updatedAt time.Time) error
	CloseOrder(ctx context.Context, orderID string) error

	LogEvent(ctx context.Context, event journal.Event) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error)
	DeleteEvents(ctx context.Context, eventType string, before time.Time) error
}
