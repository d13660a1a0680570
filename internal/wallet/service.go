package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/pkg/logger"
)

// Service is the ledger: the single owner of wallet mutations.
// Balance/Available semantics: frozen collateral is implicit
// (Balance - Available) and every operation must keep
// 0 <= Available <= Balance. Mutations that change Balance append an
// immutable ledger entry; the entry log is append-only and never read back
// by the core.
// ⭐ SSOT: 지갑 잔고 변경은 이 서비스에서만
type Service struct {
	store  contracts.Store
	logger *logger.Logger
}

// NewService creates a wallet service over the given store. The store may be
// transaction-bound; the service itself keeps no state.
func NewService(store contracts.Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// GetWallet returns the wallet for (member, coin), creating an empty one on
// first reference
func (s *Service) GetWallet(ctx context.Context, memberID int, coinID string) (*contracts.Wallet, error) {
	return s.store.Wallets().Get(ctx, memberID, coinID)
}

// GetWallets returns all wallets of a member
func (s *Service) GetWallets(ctx context.Context, memberID int) ([]*contracts.Wallet, error) {
	return s.store.Wallets().ListByMember(ctx, memberID)
}

// GetEntries returns a member's ledger entries in append order
func (s *Service) GetEntries(ctx context.Context, memberID int) ([]*contracts.LedgerEntry, error) {
	return s.store.Wallets().ListEntries(ctx, memberID)
}

// Deposit credits both balance and available. Amount must be positive and
// the coin must exist.
func (s *Service) Deposit(ctx context.Context, memberID int, coinID string, amount decimal.Decimal) (*contracts.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: deposit amount must be positive", contracts.ErrValidation)
	}

	exists, err := s.store.Markets().CoinExists(ctx, coinID)
	if err != nil {
		return nil, fmt.Errorf("failed to check coin %s: %w", coinID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", contracts.ErrCoinNotFound, coinID)
	}

	var wallet *contracts.Wallet
	err = s.store.InTx(ctx, func(st contracts.Store) error {
		w, err := st.Wallets().Get(ctx, memberID, coinID)
		if err != nil {
			return err
		}

		w.Balance = w.Balance.Add(amount)
		w.Available = w.Available.Add(amount)
		if err := st.Wallets().Save(ctx, w); err != nil {
			return err
		}

		if err := s.appendEntry(ctx, st, memberID, coinID, contracts.ReasonDeposit, amount); err != nil {
			return err
		}

		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"member": memberID,
		"coin":   coinID,
		"amount": amount,
	}).Info("Deposit credited")

	return wallet, nil
}

// Freeze moves amount from available into implicit frozen collateral.
// Balance is unchanged. Fails when the available balance is short.
func (s *Service) Freeze(ctx context.Context, memberID int, coinID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	w, err := s.store.Wallets().Get(ctx, memberID, coinID)
	if err != nil {
		return err
	}

	if w.Available.LessThan(amount) {
		return fmt.Errorf("%w: %s available %s, need %s",
			contracts.ErrInsufficientFunds, coinID, w.Available, amount)
	}

	w.Available = w.Available.Sub(amount)
	return s.store.Wallets().Save(ctx, w)
}

// Unfreeze returns amount from frozen collateral back to available.
// Used for cancellation refunds and slippage refunds.
func (s *Service) Unfreeze(ctx context.Context, memberID int, coinID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	w, err := s.store.Wallets().Get(ctx, memberID, coinID)
	if err != nil {
		return err
	}

	w.Available = w.Available.Add(amount)
	if w.Available.GreaterThan(w.Balance) {
		return fmt.Errorf("unfreeze of %s %s for member %d exceeds frozen collateral",
			amount, coinID, memberID)
	}

	return s.store.Wallets().Save(ctx, w)
}

// DebitFrozen spends previously reserved collateral: balance drops, available
// stays (it already dropped at freeze time). The reason tags the ledger entry.
func (s *Service) DebitFrozen(ctx context.Context, memberID int, coinID string, amount decimal.Decimal, reason contracts.EntryReason) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	w, err := s.store.Wallets().Get(ctx, memberID, coinID)
	if err != nil {
		return err
	}

	w.Balance = w.Balance.Sub(amount)
	if w.Balance.LessThan(w.Available) {
		return fmt.Errorf("debit of %s %s for member %d exceeds frozen collateral",
			amount, coinID, memberID)
	}

	if err := s.store.Wallets().Save(ctx, w); err != nil {
		return err
	}

	return s.appendEntry(ctx, s.store, memberID, coinID, reason, amount.Neg())
}

// Credit adds a received asset to both balance and available
func (s *Service) Credit(ctx context.Context, memberID int, coinID string, amount decimal.Decimal, reason contracts.EntryReason) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	w, err := s.store.Wallets().Get(ctx, memberID, coinID)
	if err != nil {
		return err
	}

	w.Balance = w.Balance.Add(amount)
	w.Available = w.Available.Add(amount)

	if err := s.store.Wallets().Save(ctx, w); err != nil {
		return err
	}

	return s.appendEntry(ctx, s.store, memberID, coinID, reason, amount)
}

// ApplyRealized books signed PnL onto both balance and available
func (s *Service) ApplyRealized(ctx context.Context, memberID int, coinID string, pnl decimal.Decimal) error {
	if pnl.IsZero() {
		return nil
	}

	w, err := s.store.Wallets().Get(ctx, memberID, coinID)
	if err != nil {
		return err
	}

	w.Balance = w.Balance.Add(pnl)
	w.Available = w.Available.Add(pnl)

	if err := s.store.Wallets().Save(ctx, w); err != nil {
		return err
	}

	return s.appendEntry(ctx, s.store, memberID, coinID, contracts.ReasonRealizedPnl, pnl)
}

// Reset zeroes every wallet of a member, logging the withdrawal.
// Development/bootstrap helper.
func (s *Service) Reset(ctx context.Context, memberID int) error {
	return s.store.InTx(ctx, func(st contracts.Store) error {
		wallets, err := st.Wallets().ListByMember(ctx, memberID)
		if err != nil {
			return err
		}

		for _, w := range wallets {
			if w.Balance.GreaterThan(decimal.Zero) {
				if err := s.appendEntry(ctx, st, memberID, w.CoinID, contracts.ReasonWithdrawReset, w.Balance.Neg()); err != nil {
					return err
				}
			}
			w.Balance = decimal.Zero
			w.Available = decimal.Zero
			if err := st.Wallets().Save(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) appendEntry(ctx context.Context, st contracts.Store, memberID int, coinID string, reason contracts.EntryReason, amount decimal.Decimal) error {
	return st.Wallets().AppendEntry(ctx, &contracts.LedgerEntry{
		MemberID:  memberID,
		CoinID:    coinID,
		Reason:    reason,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
}
