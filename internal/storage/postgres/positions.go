package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/helix/internal/contracts"
)

type positionStore struct {
	q querier
}

func (s *positionStore) Create(ctx context.Context, p *contracts.Position) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO positions (member_id, symbol_id, side, quantity, avg_price,
			realized_pnl, status, open_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.MemberID, p.SymbolID, p.Side, p.Quantity, p.AvgPrice,
		p.RealizedPnl, p.Status, p.OpenAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

func (s *positionStore) Update(ctx context.Context, p *contracts.Position) error {
	var closeAt *time.Time
	if !p.CloseAt.IsZero() {
		closeAt = &p.CloseAt
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE positions
		SET quantity = $2, avg_price = $3, realized_pnl = $4, status = $5, close_at = $6
		WHERE id = $1`,
		p.ID, p.Quantity, p.AvgPrice, p.RealizedPnl, p.Status, closeAt)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d not found", p.ID)
	}
	return nil
}

func (s *positionStore) GetOpen(ctx context.Context, memberID int, symbolID string) (*contracts.Position, error) {
	p, err := scanPosition(s.q.QueryRow(ctx, `
		SELECT id, member_id, symbol_id, side, quantity, avg_price,
			realized_pnl, status, open_at, close_at
		FROM positions
		WHERE member_id = $1 AND symbol_id = $2 AND status = 'OPEN'`,
		memberID, symbolID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load open position: %w", err)
	}
	return p, nil
}

func (s *positionStore) ListOpenByMember(ctx context.Context, memberID int) ([]*contracts.Position, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, member_id, symbol_id, side, quantity, avg_price,
			realized_pnl, status, open_at, close_at
		FROM positions
		WHERE member_id = $1 AND status = 'OPEN'
		ORDER BY symbol_id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosition(row pgx.Row) (*contracts.Position, error) {
	var p contracts.Position
	var closeAt *time.Time
	err := row.Scan(&p.ID, &p.MemberID, &p.SymbolID, &p.Side, &p.Quantity,
		&p.AvgPrice, &p.RealizedPnl, &p.Status, &p.OpenAt, &closeAt)
	if err != nil {
		return nil, err
	}
	if closeAt != nil {
		p.CloseAt = *closeAt
	}
	return &p, nil
}
