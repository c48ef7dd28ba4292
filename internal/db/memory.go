package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zuoky/nanotrader/internal/journal"
	"github.com/zuoky/nanotrader/internal/tick"
)

// MemoryStorage is a Storage backed by maps, used in backtests and tests.
type MemoryStorage struct {
	mu sync.RWMutex

	// Ticks by symbol
	ticks map[string][]tick.Tick

	// Orders by orderID
	orders map[string]Order

	// Events (append-only)
	events []journal.Event
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		ticks:  make(map[string][]tick.Tick),
		orders: make(map[string]Order),
		events: make([]journal.Event, 0, 1024),
	}
}

// GetDB returns nil for in-memory storage (no SQL database)
func (m *MemoryStorage) GetDB() *sql.DB { return nil }

func (m *MemoryStorage) SaveTick(ctx context.Context, t tick.Tick) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Timestamp = t.Timestamp.UTC()
	key := strings.ToUpper(t.Symbol)
	m.ticks[key] = append(m.ticks[key], t)
	return nil
}

func (m *MemoryStorage) SaveTicks(ctx context.Context, ticks []tick.Tick) error {
	for _, t := range ticks {
		if err := m.SaveTick(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStorage) GetTicks(ctx context.Context, symbol string, start, end time.Time) ([]tick.Tick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start = start.UTC()
	end = end.UTC()
	var out []tick.Tick
	for _, t := range m.ticks[strings.ToUpper(symbol)] {
		if t.Timestamp.Before(start) || !t.Timestamp.Before(end) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) DeleteTicks(ctx context.Context, symbol string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(symbol)
	kept := m.ticks[key][:0]
	for _, t := range m.ticks[key] {
		if !t.Timestamp.Before(before) {
			kept = append(kept, t)
		}
	}
	m.ticks[key] = kept
	return nil
}

func (m *MemoryStorage) SaveOrder(ctx context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderID] = o
	return nil
}

func (m *MemoryStorage) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.orders[orderID]; ok {
		oo := o
		return &oo, nil
	}
	return nil, nil
}

func (m *MemoryStorage) GetOpenOrders(ctx context.Context) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		switch o.Status {
		case "FILLED", "CANCELLED", "CLOSED":
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) UpdateOrderStatus(ctx context.Context, orderID, status string, filledQty, avgPrice float64, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil
	}
	o.Status = status
	o.FilledQty = filledQty
	o.AvgPrice = avgPrice
	o.UpdatedAt = updatedAt
	m.orders[orderID] = o
	return nil
}

func (m *MemoryStorage) CloseOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil
	}
	o.Status = "CLOSED"
	o.UpdatedAt = time.Now()
	m.orders[orderID] = o
	return nil
}

func (m *MemoryStorage) LogEvent(ctx context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Time = event.Time.UTC()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journal.Event
	for _, e := range m.events {
		if e.Type != eventType {
			continue
		}
		if e.Time.Before(start.UTC()) || e.Time.After(end.UTC()) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryStorage) DeleteEvents(ctx context.Context, eventType string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Type == eventType && e.Time.Before(before.UTC()) {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return nil
}
