package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zuoky/nanotrader/internal/db/conf"
	"github.com/zuoky/nanotrader/internal/journal"
	"github.com/zuoky/nanotrader/internal/tick"

	_ "github.com/lib/pq"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// executeWithTransaction executes a function with proper transaction management.
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func (p *Default) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Default) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

type Default struct {
	db *sql.DB
}

func New(c conf.Config) (*Default, error) {
	return &Default{db: c.DB}, nil
}

func (p *Default) GetDB() *sql.DB {
	return p.db
}

// SaveTick saves a single tick to the database
func (p *Default) SaveTick(ctx context.Context, t tick.Tick) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tick for %s at %s: %w", t.Symbol, t.Timestamp, err)
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO ticks (symbol, bid_price, bid_volume, ask_price, ask_volume, last_price, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.Symbol, t.BidPrice, t.BidVolume, t.AskPrice, t.AskVolume, t.LastPrice, t.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to save tick for %s at %s: %w", t.Symbol, t.Timestamp, err)
		}
		return nil
	})
}

func (p *Default) SaveTicks(ctx context.Context, ticks []tick.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	for i, t := range ticks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid tick at index %d for %s at %s: %w", i, t.Symbol, t.Timestamp, err)
		}
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ticks (symbol, bid_price, bid_volume, ask_price, ask_volume, last_price, timestamp)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, t := range ticks {
			if _, err := stmt.ExecContext(ctx,
				t.Symbol, t.BidPrice, t.BidVolume, t.AskPrice, t.AskVolume, t.LastPrice, t.Timestamp); err != nil {
				return fmt.Errorf("failed to save tick at index %d (%s at %s): %w", i, t.Symbol, t.Timestamp, err)
			}
		}
		return nil
	})
}

func (p *Default) GetTicks(ctx context.Context, symbol string, start, end time.Time) ([]tick.Tick, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT symbol, bid_price, bid_volume, ask_price, ask_volume, last_price, timestamp FROM ticks WHERE symbol=$1 AND timestamp >= $2 AND timestamp < $3 ORDER BY timestamp ASC`, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()
	var ticks []tick.Tick
	for rows.Next() {
		var t tick.Tick
		if err := rows.Scan(&t.Symbol, &t.BidPrice, &t.BidVolume, &t.AskPrice, &t.AskVolume, &t.LastPrice, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Timestamp = t.Timestamp.UTC()
		ticks = append(ticks, t)
	}
	return ticks, nil
}

func (p *Default) DeleteTicks(ctx context.Context, symbol string, before time.Time) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM ticks WHERE symbol=$1 AND timestamp < $2`, symbol, before)
		if err != nil {
			return fmt.Errorf("failed to delete ticks: %w", err)
		}
		return nil
	})
}

func (p *Default) SaveOrder(ctx context.Context, o Order) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO orders (order_id, symbol, side, type, price, quantity, status, filled_qty, avg_price, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (order_id) DO UPDATE SET status=EXCLUDED.status, filled_qty=EXCLUDED.filled_qty, avg_price=EXCLUDED.avg_price, updated_at=EXCLUDED.updated_at`,
			o.OrderID, o.Symbol, o.Side, o.Type, o.Price, o.Quantity, o.Status, o.FilledQty, o.AvgPrice, o.Timestamp, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		return nil
	})
}

func (p *Default) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT order_id, symbol, side, type, price, quantity, status, filled_qty, avg_price, created_at, updated_at FROM orders WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()

	var o Order
	if rows.Next() {
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.Side, &o.Type, &o.Price, &o.Quantity, &o.Status, &o.FilledQty, &o.AvgPrice, &o.Timestamp, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Timestamp = o.Timestamp.UTC()
		o.UpdatedAt = o.UpdatedAt.UTC()
		return &o, nil
	}

	return nil, nil
}

func (p *Default) GetOpenOrders(ctx context.Context) ([]Order, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT order_id, symbol, side, type, price, quantity, status, filled_qty, avg_price, created_at, updated_at FROM orders WHERE status NOT IN ('FILLED', 'CANCELLED', 'CLOSED')`)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.Side, &o.Type, &o.Price, &o.Quantity, &o.Status, &o.FilledQty, &o.AvgPrice, &o.Timestamp, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Timestamp = o.Timestamp.UTC()
		o.UpdatedAt = o.UpdatedAt.UTC()
		orders = append(orders, o)
	}
	return orders, nil
}

func (p *Default) UpdateOrderStatus(ctx context.Context, orderID, status string, filledQty, avgPrice float64, updatedAt time.Time) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE orders SET status=$1, filled_qty=$2, avg_price=$3, updated_at=$4 WHERE order_id=$5`,
			status, filledQty, avgPrice, updatedAt, orderID)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
}

func (p *Default) CloseOrder(ctx context.Context, orderID string) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE orders SET status='CLOSED', updated_at=$1 WHERE order_id=$2`, time.Now(), orderID)
		if err != nil {
			return fmt.Errorf("failed to close order: %w", err)
		}
		return nil
	})
}

func (p *Default) LogEvent(ctx context.Context, event journal.Event) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		data, _ := json.Marshal(event.Data)
		_, err := tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
			event.Time, event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (p *Default) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT time, type, description, data FROM events WHERE type=$1 AND time >= $2 AND time <= $3 ORDER BY time ASC`, eventType, start, end)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()
	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, err
		}
		json.Unmarshal(data, &e.Data)
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	return events, nil
}

func (p *Default) DeleteEvents(ctx context.Context, eventType string, before time.Time) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE type=$1 AND time < $2`, eventType, before)
		if err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		return nil
	})
}
