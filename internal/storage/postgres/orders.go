package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/helix/internal/contracts"
)

type orderStore struct {
	q querier
}

const orderColumns = `id, member_id, symbol_id, side, type, mode, price, quantity,
	filled_quantity, cum_quote_qty, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*contracts.Order, error) {
	var o contracts.Order
	err := row.Scan(&o.ID, &o.MemberID, &o.SymbolID, &o.Side, &o.Type, &o.Mode,
		&o.Price, &o.Quantity, &o.FilledQuantity, &o.CumQuoteQty, &o.Status,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *orderStore) Create(ctx context.Context, o *contracts.Order) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.MemberID, o.SymbolID, o.Side, o.Type, o.Mode, o.Price, o.Quantity,
		o.FilledQuantity, o.CumQuoteQty, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *orderStore) Update(ctx context.Context, o *contracts.Order) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE orders
		SET filled_quantity = $2, cum_quote_qty = $3, status = $4, updated_at = $5
		WHERE id = $1`,
		o.ID, o.FilledQuantity, o.CumQuoteQty, o.Status, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, contracts.ErrOrderNotFound)
	}
	return nil
}

func (s *orderStore) Get(ctx context.Context, id uuid.UUID) (*contracts.Order, error) {
	o, err := scanOrder(s.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, contracts.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return o, nil
}

func (s *orderStore) ListByMember(ctx context.Context, memberID int) ([]*contracts.Order, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE member_id = $1
		ORDER BY created_at DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *orderStore) ListOpen(ctx context.Context, symbolID string, mode contracts.TradeMode) ([]*contracts.Order, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE symbol_id = $1 AND mode = $2 AND status IN ('NEW', 'PARTIALLY_FILLED')
		ORDER BY created_at ASC`, symbolID, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*contracts.Order, error) {
	var out []*contracts.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
