package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/helix/internal/contracts"
)

type walletStore struct {
	q querier
}

// Get returns a zero wallet when (member, coin) has never been written.
// The row is only materialized by Save.
func (s *walletStore) Get(ctx context.Context, memberID int, coinID string) (*contracts.Wallet, error) {
	var w contracts.Wallet
	err := s.q.QueryRow(ctx, `
		SELECT member_id, coin_id, balance, available
		FROM wallets WHERE member_id = $1 AND coin_id = $2`,
		memberID, coinID).Scan(&w.MemberID, &w.CoinID, &w.Balance, &w.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return &contracts.Wallet{MemberID: memberID, CoinID: coinID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &w, nil
}

func (s *walletStore) Save(ctx context.Context, w *contracts.Wallet) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO wallets (member_id, coin_id, balance, available)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, coin_id)
		DO UPDATE SET balance = EXCLUDED.balance, available = EXCLUDED.available`,
		w.MemberID, w.CoinID, w.Balance, w.Available)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

func (s *walletStore) ListByMember(ctx context.Context, memberID int) ([]*contracts.Wallet, error) {
	rows, err := s.q.Query(ctx, `
		SELECT member_id, coin_id, balance, available
		FROM wallets WHERE member_id = $1
		ORDER BY coin_id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Wallet
	for rows.Next() {
		var w contracts.Wallet
		if err := rows.Scan(&w.MemberID, &w.CoinID, &w.Balance, &w.Available); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (s *walletStore) AppendEntry(ctx context.Context, e *contracts.LedgerEntry) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO wallet_entries (member_id, coin_id, reason, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.MemberID, e.CoinID, e.Reason, e.Amount, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to append wallet entry: %w", err)
	}
	return nil
}

func (s *walletStore) ListEntries(ctx context.Context, memberID int) ([]*contracts.LedgerEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, member_id, coin_id, reason, amount, created_at
		FROM wallet_entries WHERE member_id = $1
		ORDER BY id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet entries: %w", err)
	}
	defer rows.Close()

	var out []*contracts.LedgerEntry
	for rows.Next() {
		var e contracts.LedgerEntry
		if err := rows.Scan(&e.ID, &e.MemberID, &e.CoinID, &e.Reason, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
