package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/helix/internal/contracts"
)

type candleStore struct {
	q querier
}

func (s *candleStore) Get(ctx context.Context, symbolID string, tf contracts.Timeframe, openTime time.Time) (*contracts.Candle, error) {
	c, err := scanCandle(s.q.QueryRow(ctx, `
		SELECT symbol_id, timeframe, open_time, open, high, low, close, volume, close_time
		FROM candles
		WHERE symbol_id = $1 AND timeframe = $2 AND open_time = $3`,
		symbolID, tf, openTime))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load candle: %w", err)
	}
	return c, nil
}

func (s *candleStore) Upsert(ctx context.Context, c *contracts.Candle) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO candles (symbol_id, timeframe, open_time, open, high, low, close, volume, close_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol_id, timeframe, open_time) DO UPDATE SET
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`,
		c.SymbolID, c.Timeframe, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.CloseTime)
	if err != nil {
		return fmt.Errorf("failed to upsert candle: %w", err)
	}
	return nil
}

func (s *candleStore) List(ctx context.Context, symbolID string, tf contracts.Timeframe, limit int) ([]*contracts.Candle, error) {
	// Most recent bars, returned in ascending open time
	rows, err := s.q.Query(ctx, `
		SELECT symbol_id, timeframe, open_time, open, high, low, close, volume, close_time
		FROM (
			SELECT * FROM candles
			WHERE symbol_id = $1 AND timeframe = $2
			ORDER BY open_time DESC
			LIMIT $3
		) recent
		ORDER BY open_time ASC`, symbolID, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candles: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCandle(row pgx.Row) (*contracts.Candle, error) {
	var c contracts.Candle
	err := row.Scan(&c.SymbolID, &c.Timeframe, &c.OpenTime, &c.Open, &c.High,
		&c.Low, &c.Close, &c.Volume, &c.CloseTime)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
