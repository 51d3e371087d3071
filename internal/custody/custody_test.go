package custody

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleoslabs/kleos/internal/domain"
)

// transferRecorder implements the LedgerTx transfer surface and records every
// movement; the record methods are unused by custody adapters.
type transferRecorder struct {
	domain.LedgerTx
	calls []transferCall
}

type transferCall struct {
	from, to, asset common.Address
	amount          uint64
}

func (r *transferRecorder) Transfer(_ context.Context, from, to, asset common.Address, amount uint64) error {
	r.calls = append(r.calls, transferCall{from, to, asset, amount})
	return nil
}

var (
	user = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	mint = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

func tokenMarket(id uint64) *domain.Market {
	return &domain.Market{ID: id, Asset: mint, Escrow: DeriveEscrow(id)}
}

func nativeMarket(id uint64) *domain.Market {
	return &domain.Market{ID: id, Asset: domain.NativeAsset, Escrow: DeriveEscrow(id), IsNative: true}
}

func TestDeriveEscrow_StableAndDistinct(t *testing.T) {
	assert.Equal(t, DeriveEscrow(7), DeriveEscrow(7))
	assert.NotEqual(t, DeriveEscrow(7), DeriveEscrow(8))
	assert.NotEqual(t, common.Address{}, DeriveEscrow(0))
}

func TestToken_DepositAndWithdraw(t *testing.T) {
	rec := &transferRecorder{}
	m := tokenMarket(3)

	require.NoError(t, NewToken().Deposit(context.Background(), rec, m, user, 100))
	require.NoError(t, NewToken().Withdraw(context.Background(), rec, m, user, 40))

	require.Len(t, rec.calls, 2)
	assert.Equal(t, transferCall{user, m.Escrow, mint, 100}, rec.calls[0])
	assert.Equal(t, transferCall{m.Escrow, user, mint, 40}, rec.calls[1])
}

func TestToken_RejectsNativeMarket(t *testing.T) {
	rec := &transferRecorder{}
	err := NewToken().Deposit(context.Background(), rec, nativeMarket(3), user, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
	assert.Empty(t, rec.calls)
}

func TestToken_RejectsMissingAsset(t *testing.T) {
	rec := &transferRecorder{}
	m := tokenMarket(3)
	m.Asset = domain.NativeAsset

	err := NewToken().Deposit(context.Background(), rec, m, user, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
	assert.Empty(t, rec.calls)
}

func TestToken_RejectsForeignEscrow(t *testing.T) {
	rec := &transferRecorder{}
	m := tokenMarket(3)
	m.Escrow = DeriveEscrow(4)

	err := NewToken().Withdraw(context.Background(), rec, m, user, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
	assert.Empty(t, rec.calls)
}

func TestNative_DepositAndWithdraw(t *testing.T) {
	rec := &transferRecorder{}
	m := nativeMarket(9)

	require.NoError(t, NewNative().Deposit(context.Background(), rec, m, user, 500))
	require.NoError(t, NewNative().Withdraw(context.Background(), rec, m, user, 125))

	require.Len(t, rec.calls, 2)
	assert.Equal(t, transferCall{user, m.Escrow, domain.NativeAsset, 500}, rec.calls[0])
	assert.Equal(t, transferCall{m.Escrow, user, domain.NativeAsset, 125}, rec.calls[1])
}

func TestNative_RejectsTokenMarket(t *testing.T) {
	rec := &transferRecorder{}
	err := NewNative().Deposit(context.Background(), rec, tokenMarket(9), user, 500)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
	assert.Empty(t, rec.calls)
}

func TestNative_RejectsForeignEscrow(t *testing.T) {
	rec := &transferRecorder{}
	m := nativeMarket(9)
	m.Escrow = DeriveEscrow(10)

	err := NewNative().Deposit(context.Background(), rec, m, user, 500)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
	assert.Empty(t, rec.calls)
}
