package postgres

import (
	"context"
	"fmt"

	"github.com/wonny/helix/internal/contracts"
)

type tradeStore struct {
	q querier
}

func (s *tradeStore) Create(ctx context.Context, t *contracts.Trade) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO trades (id, symbol_id, taker_order_id, maker_order_id,
			price, quantity, taker_side, mode, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.SymbolID, t.TakerOrderID, t.MakerOrderID,
		t.Price, t.Quantity, t.TakerSide, t.Mode, t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

func (s *tradeStore) ListBySymbol(ctx context.Context, symbolID string, limit int) ([]*contracts.Trade, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, symbol_id, taker_order_id, maker_order_id,
			price, quantity, taker_side, mode, executed_at
		FROM trades
		WHERE symbol_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`, symbolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Trade
	for rows.Next() {
		var t contracts.Trade
		if err := rows.Scan(&t.ID, &t.SymbolID, &t.TakerOrderID, &t.MakerOrderID,
			&t.Price, &t.Quantity, &t.TakerSide, &t.Mode, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
