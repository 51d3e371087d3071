package custody

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
)

// Token is the fungible-token custody adapter. Every movement is typed by
// the market's configured asset; a market flagged native is rejected before
// any value moves.
type Token struct{}

// NewToken returns the token-path custody adapter.
func NewToken() Token { return Token{} }

// Escrow derives the market's escrow address.
func (Token) Escrow(marketID uint64) common.Address {
	return DeriveEscrow(marketID)
}

func (Token) verify(m *domain.Market) error {
	if m.IsNative {
		return domain.ErrInvalidStakeAmount
	}
	if m.Asset == domain.NativeAsset {
		// A token market must carry a real asset identifier.
		return domain.ErrInvalidStakeAmount
	}
	if m.Escrow != DeriveEscrow(m.ID) {
		return domain.ErrInvalidStakeAmount
	}
	return nil
}

// Deposit moves amount of the market's asset from the participant into
// escrow.
func (t Token) Deposit(ctx context.Context, tx domain.LedgerTx, m *domain.Market, from common.Address, amount uint64) error {
	if err := t.verify(m); err != nil {
		return err
	}
	if err := tx.Transfer(ctx, from, m.Escrow, m.Asset, amount); err != nil {
		return fmt.Errorf("custody: token deposit market %d: %w", m.ID, err)
	}
	return nil
}

// Withdraw moves amount of the market's asset from escrow to the given
// address.
func (t Token) Withdraw(ctx context.Context, tx domain.LedgerTx, m *domain.Market, to common.Address, amount uint64) error {
	if err := t.verify(m); err != nil {
		return err
	}
	if err := tx.Transfer(ctx, m.Escrow, to, m.Asset, amount); err != nil {
		return fmt.Errorf("custody: token withdraw market %d: %w", m.ID, err)
	}
	return nil
}

var _ domain.Custody = Token{}
