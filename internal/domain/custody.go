package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Custody moves staked value between participant accounts and a market's
// escrow. The two implementations (token and native) share the engine's state
// machine and accounting and differ only in how custody is verified: the
// token path checks the asset identifier of every account against the
// market's configured asset, the native path relies on the deterministic
// escrow address derivation.
//
// All movements happen through the ledger transaction of the surrounding
// operation, so a failed transfer aborts the whole operation.
type Custody interface {
	// Escrow derives the market-owned custody address for a market identity.
	// The derivation is deterministic and collision-free across markets.
	Escrow(marketID uint64) common.Address

	// Deposit moves amount from the participant into the market's escrow.
	Deposit(ctx context.Context, tx LedgerTx, m *Market, from common.Address, amount uint64) error

	// Withdraw moves amount from the market's escrow to the given address.
	// Used for both winner payouts and the protocol fee sweep to treasury.
	Withdraw(ctx context.Context, tx LedgerTx, m *Market, to common.Address, amount uint64) error
}
