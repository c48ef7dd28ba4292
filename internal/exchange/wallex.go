package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zuoky/nanotrader/internal/notifier"
	"github.com/zuoky/nanotrader/internal/order"
	"github.com/zuoky/nanotrader/internal/tick"
	"github.com/zuoky/nanotrader/internal/utils"
	wallex "github.com/wallexchange/wallex-go"
)

type WallexExchange struct {
	client   *wallex.Client
	notifier notifier.Notifier
}

func NewWallexExchange(apiKey string, n notifier.Notifier) Exchange {
	return &WallexExchange{
		client:   wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		notifier: n,
	}
}

func (w *WallexExchange) Name() string {
	return "wallex"
}

// retry wraps a function with retry logic for transient errors, using exponential backoff and error logging.
func retry(attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	for i := 1; i <= attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		utils.GetLogger().Printf("Exchange | %s Retry attempt %d/%d failed: %v. Backing off for %v", "Wallex", i, attempts, err, backoff)
		time.Sleep(backoff)
		// Exponential backoff, but cap at 5 minutes
		if backoff < 5*time.Minute {
			backoff *= 2
			if backoff > 5*time.Minute {
				backoff = 5 * time.Minute
			}
		}
	}
	return errors.New("all retry attempts failed")
}

func (w *WallexExchange) SubmitOrder(ctx context.Context, req OrderRequest) (order.Order, error) {
	select {
	case <-ctx.Done():
		utils.GetLogger().Printf("Exchange | %s SubmitOrder timeout", w.Name())
		return order.Order{}, ctx.Err()

	default:
		price := strconv.FormatFloat(req.Price, 'f', 8, 64)
		qty := strconv.FormatFloat(req.Quantity, 'f', 8, 64)

		params := &wallex.OrderParams{
			Symbol:   NormalizeSymbol(req.Symbol),
			Type:     "LIMIT",
			Side:     VenueSide(req.Side),
			Price:    wallex.Number(price),
			Quantity: wallex.Number(qty),
		}
		resp, err := w.client.PlaceOrder(params)
		if err != nil {
			return order.Order{}, err
		}

		return order.Order{
			ID:          resp.ClientOrderID,
			Symbol:      req.Symbol,
			Side:        req.Side,
			Price:       req.Price,
			Quantity:    req.Quantity,
			FilledQty:   float64Ptr(resp.ExecutedQty),
			Status:      ParseStatus(resp.Status, float64Ptr(resp.ExecutedQty), req.Quantity),
			SubmittedAt: resp.CreatedAt.UTC(),
			UpdatedAt:   resp.CreatedAt.UTC(),
		}, nil
	}
}

func (w *WallexExchange) SubmitOrderWithRetry(ctx context.Context, req OrderRequest, maxAttempts int, delay time.Duration) (order.Order, error) {
	var resp order.Order
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err = w.SubmitOrder(ctx, req)
		if err == nil {
			return resp, nil
		}
		utils.GetLogger().Printf("Exchange | %s Order submission failed (attempt %d/%d): %v", w.Name(), attempt, maxAttempts, err)
		msg := fmt.Sprintf("Order submission failed (attempt %d/%d): %v", attempt, maxAttempts, err)
		w.notifier.SendWithRetry(msg)
		time.Sleep(delay)
	}
	return resp, err
}

func (w *WallexExchange) CancelOrder(ctx context.Context, orderID string) error {
	select {
	case <-ctx.Done():
		utils.GetLogger().Printf("Exchange | %s CancelOrder timeout", w.Name())
		return ctx.Err()

	default:
		return w.client.CancelOrder(orderID)
	}
}

func (w *WallexExchange) GetOrderStatus(ctx context.Context, orderID string) (order.Order, error) {
	select {
	case <-ctx.Done():
		utils.GetLogger().Printf("Exchange | %s GetOrderStatus timeout", w.Name())
		return order.Order{}, ctx.Err()

	default:
		resp, err := w.client.Order(orderID)
		if err != nil {
			return order.Order{}, err
		}

		side := order.Sell
		if VenueSide(order.Buy) == resp.Side {
			side = order.Buy
		}

		origQty := float64Ptr(&resp.OrigQty)
		return order.Order{
			ID:          resp.ClientOrderID,
			Symbol:      DenormalizeSymbol(resp.Symbol),
			Side:        side,
			Price:       float64Ptr(&resp.Price),
			Quantity:    origQty,
			FilledQty:   float64Ptr(resp.ExecutedQty),
			Status:      ParseStatus(resp.Status, float64Ptr(resp.ExecutedQty), origQty),
			SubmittedAt: resp.CreatedAt.UTC(),
			UpdatedAt:   resp.CreatedAt.UTC(),
		}, nil
	}
}

// FetchLatestTick fetches the latest level-1 quote for a symbol from the
// market stats feed.
func (w *WallexExchange) FetchLatestTick(ctx context.Context, symbol string) (tick.Tick, error) {
	select {
	case <-ctx.Done():
		utils.GetLogger().Printf("Exchange | %s FetchLatestTick timeout", w.Name())
		return tick.Tick{}, ctx.Err()

	default:
		var markets []*wallex.Market
		err := retry(3, 2*time.Second, func() error {
			var err error
			markets, err = w.client.Markets()
			if err != nil {
				return fmt.Errorf("fetching latest tick: %w", err)
			}
			return nil
		})
		if err != nil {
			return tick.Tick{}, fmt.Errorf("latest tick failed: %w", err)
		}

		normalized := NormalizeSymbol(symbol)
		for _, market := range markets {
			if market.Symbol != normalized {
				continue
			}
			return tick.Tick{
				Symbol:    symbol,
				BidPrice:  float64Ptr(&market.Stats.BidPrice),
				BidVolume: float64Ptr(&market.Stats.BidVolume),
				AskPrice:  float64Ptr(&market.Stats.AskPrice),
				AskVolume: float64Ptr(&market.Stats.AskVolume),
				LastPrice: float64Ptr(&market.Stats.LastPrice),
				Timestamp: time.Now().UTC(),
			}, nil
		}

		return tick.Tick{}, fmt.Errorf("no market found for symbol: %s", symbol)
	}
}

// Helper to safely dereference *wallex.Number
func float64Ptr(n *wallex.Number) float64 {
	if n == nil {
		return 0
	}
	out, _ := strconv.ParseFloat(string(*n), 64)
	return out
}
