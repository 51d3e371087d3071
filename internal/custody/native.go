package custody

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
)

// Native is the native-asset custody adapter. The escrow address itself is
// the derivation proof: a market whose escrow does not match its derived
// address is rejected. There is a single native asset, so no asset-identifier
// check exists on this path.
type Native struct{}

// NewNative returns the native-path custody adapter.
func NewNative() Native { return Native{} }

// Escrow derives the market's escrow address.
func (Native) Escrow(marketID uint64) common.Address {
	return DeriveEscrow(marketID)
}

func (Native) verify(m *domain.Market) error {
	if !m.IsNative {
		return domain.ErrInvalidStakeAmount
	}
	if m.Escrow != DeriveEscrow(m.ID) {
		return domain.ErrInvalidStakeAmount
	}
	return nil
}

// Deposit moves amount of the native asset from the participant into escrow.
func (n Native) Deposit(ctx context.Context, tx domain.LedgerTx, m *domain.Market, from common.Address, amount uint64) error {
	if err := n.verify(m); err != nil {
		return err
	}
	if err := tx.Transfer(ctx, from, m.Escrow, domain.NativeAsset, amount); err != nil {
		return fmt.Errorf("custody: native deposit market %d: %w", m.ID, err)
	}
	return nil
}

// Withdraw moves amount of the native asset from escrow to the given address.
func (n Native) Withdraw(ctx context.Context, tx domain.LedgerTx, m *domain.Market, to common.Address, amount uint64) error {
	if err := n.verify(m); err != nil {
		return err
	}
	if err := tx.Transfer(ctx, m.Escrow, to, domain.NativeAsset, amount); err != nil {
		return fmt.Errorf("custody: native withdraw market %d: %w", m.ID, err)
	}
	return nil
}

var _ domain.Custody = Native{}
