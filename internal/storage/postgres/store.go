// Package postgres implements contracts.Store on PostgreSQL via pgx.
// A Store is bound either to the pool or, inside InTx, to one transaction;
// both satisfy the same querier surface.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/pkg/logger"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements contracts.Store
type Store struct {
	q      querier
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// New creates a pool-bound store
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{q: pool, pool: pool, logger: log}
}

func (s *Store) Orders() contracts.OrderStore       { return &orderStore{q: s.q} }
func (s *Store) Trades() contracts.TradeStore       { return &tradeStore{q: s.q} }
func (s *Store) Wallets() contracts.WalletStore     { return &walletStore{q: s.q} }
func (s *Store) Positions() contracts.PositionStore { return &positionStore{q: s.q} }
func (s *Store) Markets() contracts.MarketStore     { return &marketStore{q: s.q} }
func (s *Store) Candles() contracts.CandleStore     { return &candleStore{q: s.q} }

// InTx runs fn against a transaction-bound store. A nested call joins the
// enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(contracts.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&Store{q: tx, logger: s.logger}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Migrate creates the schema when it does not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.logger.Info("Database schema up to date")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS coins (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		decimals INT  NOT NULL DEFAULT 8
	)`,
	`CREATE TABLE IF NOT EXISTS symbols (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		base_coin_id  TEXT NOT NULL REFERENCES coins(id),
		quote_coin_id TEXT NOT NULL REFERENCES coins(id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id              UUID PRIMARY KEY,
		member_id       INT         NOT NULL,
		symbol_id       TEXT        NOT NULL REFERENCES symbols(id),
		side            TEXT        NOT NULL,
		type            TEXT        NOT NULL,
		mode            TEXT        NOT NULL,
		price           NUMERIC     NOT NULL,
		quantity        NUMERIC     NOT NULL,
		filled_quantity NUMERIC     NOT NULL DEFAULT 0,
		cum_quote_qty   NUMERIC     NOT NULL DEFAULT 0,
		status          TEXT        NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_open
		ON orders (symbol_id, mode) WHERE status IN ('NEW', 'PARTIALLY_FILLED')`,
	`CREATE INDEX IF NOT EXISTS idx_orders_member ON orders (member_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id             UUID PRIMARY KEY,
		symbol_id      TEXT        NOT NULL REFERENCES symbols(id),
		taker_order_id UUID        NOT NULL REFERENCES orders(id),
		maker_order_id UUID        NOT NULL REFERENCES orders(id),
		price          NUMERIC     NOT NULL,
		quantity       NUMERIC     NOT NULL,
		taker_side     TEXT        NOT NULL,
		mode           TEXT        NOT NULL,
		executed_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades (symbol_id, executed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		member_id INT     NOT NULL,
		coin_id   TEXT    NOT NULL REFERENCES coins(id),
		balance   NUMERIC NOT NULL DEFAULT 0,
		available NUMERIC NOT NULL DEFAULT 0,
		PRIMARY KEY (member_id, coin_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_entries (
		id         BIGSERIAL PRIMARY KEY,
		member_id  INT         NOT NULL,
		coin_id    TEXT        NOT NULL,
		reason     TEXT        NOT NULL,
		amount     NUMERIC     NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallet_entries_member ON wallet_entries (member_id, id)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id           BIGSERIAL PRIMARY KEY,
		member_id    INT         NOT NULL,
		symbol_id    TEXT        NOT NULL REFERENCES symbols(id),
		side         TEXT        NOT NULL,
		quantity     NUMERIC     NOT NULL,
		avg_price    NUMERIC     NOT NULL,
		realized_pnl NUMERIC     NOT NULL DEFAULT 0,
		status       TEXT        NOT NULL,
		open_at      TIMESTAMPTZ NOT NULL,
		close_at     TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open
		ON positions (member_id, symbol_id) WHERE status = 'OPEN'`,
	`CREATE TABLE IF NOT EXISTS candles (
		symbol_id  TEXT        NOT NULL REFERENCES symbols(id),
		timeframe  TEXT        NOT NULL,
		open_time  TIMESTAMPTZ NOT NULL,
		open       NUMERIC     NOT NULL,
		high       NUMERIC     NOT NULL,
		low        NUMERIC     NOT NULL,
		close      NUMERIC     NOT NULL,
		volume     NUMERIC     NOT NULL DEFAULT 0,
		close_time TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol_id, timeframe, open_time)
	)`,
}
