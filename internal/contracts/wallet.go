package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds one member's funds in one coin.
// Balance is the total amount including frozen collateral; Available is the
// freely usable part. The frozen amount is implicit: Balance - Available.
// Invariant: 0 <= Available <= Balance at all times.
type Wallet struct {
	MemberID  int             `json:"member_id"`
	CoinID    string          `json:"coin_id"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
}

// Frozen derives the collateral currently locked for open orders
func (w *Wallet) Frozen() decimal.Decimal {
	return w.Balance.Sub(w.Available)
}

// EntryReason tags a ledger entry with the operation that produced it.
// Closed set so reconciliation can handle every case exhaustively.
type EntryReason string

const (
	ReasonDeposit       EntryReason = "DEPOSIT"
	ReasonWithdrawReset EntryReason = "WITHDRAW_RESET"
	ReasonSpotBuyCost   EntryReason = "SPOT_BUY_COST"
	ReasonSpotBuyGet    EntryReason = "SPOT_BUY_GET"
	ReasonSpotSellCost  EntryReason = "SPOT_SELL_COST"
	ReasonSpotSellGet   EntryReason = "SPOT_SELL_GET"
	ReasonRealizedPnl   EntryReason = "REALIZED_PNL"
)

// LedgerEntry is one immutable line in the append-only wallet audit log.
// Amount is signed: debits are negative, credits positive. The core never
// reads entries back; they exist for audit and reconciliation.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	MemberID  int             `json:"member_id"`
	CoinID    string          `json:"coin_id"`
	Reason    EntryReason     `json:"reason"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
