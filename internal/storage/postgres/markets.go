package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/helix/internal/contracts"
)

type marketStore struct {
	q querier
}

func (s *marketStore) GetSymbol(ctx context.Context, id string) (*contracts.Symbol, error) {
	var sym contracts.Symbol
	err := s.q.QueryRow(ctx, `
		SELECT id, name, base_coin_id, quote_coin_id
		FROM symbols WHERE id = $1`, id).
		Scan(&sym.ID, &sym.Name, &sym.BaseCoinID, &sym.QuoteCoinID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("symbol %s: %w", id, contracts.ErrSymbolNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load symbol: %w", err)
	}
	return &sym, nil
}

func (s *marketStore) ListSymbols(ctx context.Context) ([]*contracts.Symbol, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, name, base_coin_id, quote_coin_id FROM symbols ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Symbol
	for rows.Next() {
		var sym contracts.Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.BaseCoinID, &sym.QuoteCoinID); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, &sym)
	}
	return out, rows.Err()
}

func (s *marketStore) UpsertSymbol(ctx context.Context, sym *contracts.Symbol) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO symbols (id, name, base_coin_id, quote_coin_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_coin_id = EXCLUDED.base_coin_id,
			quote_coin_id = EXCLUDED.quote_coin_id`,
		sym.ID, sym.Name, sym.BaseCoinID, sym.QuoteCoinID)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol: %w", err)
	}
	return nil
}

func (s *marketStore) CoinExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coins WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coin: %w", err)
	}
	return exists, nil
}

func (s *marketStore) ListCoins(ctx context.Context) ([]*contracts.Coin, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name, decimals FROM coins ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list coins: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Coin
	for rows.Next() {
		var c contracts.Coin
		if err := rows.Scan(&c.ID, &c.Name, &c.Decimals); err != nil {
			return nil, fmt.Errorf("failed to scan coin: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *marketStore) UpsertCoin(ctx context.Context, c *contracts.Coin) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO coins (id, name, decimals)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, decimals = EXCLUDED.decimals`,
		c.ID, c.Name, c.Decimals)
	if err != nil {
		return fmt.Errorf("failed to upsert coin: %w", err)
	}
	return nil
}
