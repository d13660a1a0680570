package candle

import (
	"context"
	"fmt"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/pkg/logger"
)

const maxCandles = 1000

// Aggregator folds executed trades into OHLC bars across all supported
// timeframes. It consumes the trade stream so candle writes never sit on the
// matching path.
type Aggregator struct {
	store  contracts.Store
	logger *logger.Logger
}

func NewAggregator(store contracts.Store, log *logger.Logger) *Aggregator {
	return &Aggregator{store: store, logger: log}
}

// Run consumes trades until the channel closes or ctx is done
func (a *Aggregator) Run(ctx context.Context, trades <-chan *contracts.Trade) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			if err := a.Apply(ctx, t); err != nil {
				a.logger.WithError(err).WithField("trade_id", t.ID).Error("Failed to aggregate trade into candles")
			}
		}
	}
}

// Apply folds one trade into the bar of every timeframe
func (a *Aggregator) Apply(ctx context.Context, t *contracts.Trade) error {
	for _, tf := range contracts.Timeframes {
		openTime := tf.Bucket(t.ExecutedAt)

		c, err := a.store.Candles().Get(ctx, t.SymbolID, tf, openTime)
		if err != nil {
			return fmt.Errorf("failed to load %s candle: %w", tf, err)
		}
		if c == nil {
			c = &contracts.Candle{
				SymbolID:  t.SymbolID,
				Timeframe: tf,
				OpenTime:  openTime,
				CloseTime: openTime.Add(tf.Duration()),
				Open:      t.Price,
				High:      t.Price,
				Low:       t.Price,
			}
		} else {
			if t.Price.GreaterThan(c.High) {
				c.High = t.Price
			}
			if t.Price.LessThan(c.Low) {
				c.Low = t.Price
			}
		}
		c.Close = t.Price
		c.Volume = c.Volume.Add(t.Quantity)

		if err := a.store.Candles().Upsert(ctx, c); err != nil {
			return fmt.Errorf("failed to upsert %s candle: %w", tf, err)
		}
	}
	return nil
}

// List returns up to limit candles in ascending open time
func (a *Aggregator) List(ctx context.Context, symbolID string, tf contracts.Timeframe, limit int) ([]*contracts.Candle, error) {
	if _, err := a.store.Markets().GetSymbol(ctx, symbolID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxCandles {
		limit = maxCandles
	}
	return a.store.Candles().List(ctx, symbolID, tf, limit)
}
