package engine

import (
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleoslabs/kleos/internal/domain"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000bbb")
	usdc     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testProtocol(t *testing.T, feeBps uint16) *domain.Protocol {
	t.Helper()
	p, err := InitializeProtocol(admin, treasury, feeBps, t0)
	require.NoError(t, err)
	return p
}

func testParams() MarketParams {
	return MarketParams{
		StartTS:   t0,
		EndTS:     t0.Add(24 * time.Hour),
		ItemsHash: domain.HashItems([]string{"yes", "no"}),
		ItemCount: 2,
		Asset:     usdc,
	}
}

// openMarket creates and opens a two-item token market.
func openMarket(t *testing.T, p *domain.Protocol) *domain.Market {
	t.Helper()
	m, err := CreateMarket(p, admin, testParams(), t0)
	require.NoError(t, err)
	require.NoError(t, OpenMarket(p, admin, m, t0))
	return m
}

func stake(participant common.Address, item uint8, raw, effective uint64) StakeParams {
	return StakeParams{
		Participant:       participant,
		SelectedItemIndex: item,
		RawStake:          raw,
		EffectiveStake:    *uint256.NewInt(effective),
	}
}

// --- protocol configuration ---

func TestInitializeProtocol(t *testing.T) {
	p := testProtocol(t, 500)
	assert.Equal(t, admin, p.Admin)
	assert.Equal(t, treasury, p.Treasury)
	assert.Equal(t, uint16(500), p.FeeBps)
	assert.Equal(t, uint64(0), p.MarketCount)
	assert.False(t, p.Paused)
}

func TestInitializeProtocol_FeeRateBound(t *testing.T) {
	_, err := InitializeProtocol(admin, treasury, 10_001, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidFeeRate)

	_, err = InitializeProtocol(admin, treasury, 10_000, t0)
	assert.NoError(t, err)
}

func TestUpdateProtocol(t *testing.T) {
	p := testProtocol(t, 500)
	newTreasury := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	require.NoError(t, UpdateProtocol(p, admin, 250, newTreasury, true, t0))
	assert.Equal(t, uint16(250), p.FeeBps)
	assert.Equal(t, newTreasury, p.Treasury)
	assert.True(t, p.Paused)

	// Unpausing back is unrestricted.
	require.NoError(t, UpdateProtocol(p, admin, 250, newTreasury, false, t0))
	assert.False(t, p.Paused)
}

func TestUpdateProtocol_Unauthorized(t *testing.T) {
	p := testProtocol(t, 500)
	err := UpdateProtocol(p, alice, 250, treasury, false, t0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, uint16(500), p.FeeBps)
}

func TestUpdateProtocol_FeeRateBound(t *testing.T) {
	p := testProtocol(t, 500)
	err := UpdateProtocol(p, admin, 10_001, treasury, false, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidFeeRate)
}

// --- market creation and editing ---

func TestCreateMarket(t *testing.T) {
	p := testProtocol(t, 500)

	m, err := CreateMarket(p, admin, testParams(), t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.ID)
	assert.Equal(t, domain.MarketStatusDraft, m.Status)
	assert.Equal(t, usdc, m.Asset)
	assert.False(t, m.IsNative)
	assert.Equal(t, uint64(1), p.MarketCount)
	assert.True(t, m.TotalEffectiveStake.IsZero())

	m2, err := CreateMarket(p, admin, testParams(), t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m2.ID)
	assert.Equal(t, uint64(2), p.MarketCount)
}

func TestCreateMarket_Native(t *testing.T) {
	p := testProtocol(t, 500)
	params := testParams()
	params.Native = true

	m, err := CreateMarket(p, admin, params, t0)
	require.NoError(t, err)
	assert.True(t, m.IsNative)
	assert.Equal(t, domain.NativeAsset, m.Asset)
}

func TestCreateMarket_Validation(t *testing.T) {
	p := testProtocol(t, 500)

	tests := []struct {
		name   string
		mutate func(*MarketParams)
		want   error
	}{
		{"end equals start", func(mp *MarketParams) { mp.EndTS = mp.StartTS }, domain.ErrInvalidTimestamp},
		{"end before start", func(mp *MarketParams) { mp.EndTS = mp.StartTS.Add(-time.Hour) }, domain.ErrInvalidTimestamp},
		{"one item", func(mp *MarketParams) { mp.ItemCount = 1 }, domain.ErrInvalidItemIndex},
		{"zero items", func(mp *MarketParams) { mp.ItemCount = 0 }, domain.ErrInvalidItemIndex},
		{"too many items", func(mp *MarketParams) { mp.ItemCount = domain.MaxItems + 1 }, domain.ErrInvalidItemIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			tt.mutate(&params)
			_, err := CreateMarket(p, admin, params, t0)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, uint64(0), p.MarketCount)
		})
	}
}

func TestCreateMarket_PausedAndUnauthorized(t *testing.T) {
	p := testProtocol(t, 500)

	_, err := CreateMarket(p, alice, testParams(), t0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	p.Paused = true
	_, err = CreateMarket(p, admin, testParams(), t0)
	assert.ErrorIs(t, err, domain.ErrProtocolPaused)
	assert.Equal(t, uint64(0), p.MarketCount)
}

func TestCreateMarket_CounterOverflow(t *testing.T) {
	p := testProtocol(t, 500)
	p.MarketCount = math.MaxUint64

	_, err := CreateMarket(p, admin, testParams(), t0)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
	// Counter unchanged, no market allocated.
	assert.Equal(t, uint64(math.MaxUint64), p.MarketCount)
}

func TestEditMarket(t *testing.T) {
	p := testProtocol(t, 500)
	m, err := CreateMarket(p, admin, testParams(), t0)
	require.NoError(t, err)

	params := testParams()
	params.ItemCount = 3
	params.ItemsHash = domain.HashItems([]string{"a", "b", "c"})
	params.EndTS = t0.Add(48 * time.Hour)

	require.NoError(t, EditMarket(p, admin, m, params, t0))
	assert.Equal(t, uint8(3), m.ItemCount)
	assert.Equal(t, params.ItemsHash, m.ItemsHash)
	assert.Equal(t, params.EndTS, m.EndTS)
}

func TestEditMarket_RejectedAfterStake(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	_, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)

	err = EditMarket(p, admin, m, testParams(), t0)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
}

func TestEditMarket_DraftOnly(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)

	err := EditMarket(p, admin, m, testParams(), t0)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
}

// --- state machine transitions ---

func TestOpenMarket_BeforeStart(t *testing.T) {
	p := testProtocol(t, 500)
	m, err := CreateMarket(p, admin, testParams(), t0)
	require.NoError(t, err)

	err = OpenMarket(p, admin, m, t0.Add(-time.Second))
	assert.ErrorIs(t, err, domain.ErrInvalidTimestamp)
	assert.Equal(t, domain.MarketStatusDraft, m.Status)

	require.NoError(t, OpenMarket(p, admin, m, t0))
	assert.Equal(t, domain.MarketStatusOpen, m.Status)
}

func TestCloseMarket_BeforeEnd(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)

	err := CloseMarket(p, m, m.EndTS.Add(-time.Second))
	assert.ErrorIs(t, err, domain.ErrInvalidTimestamp)

	require.NoError(t, CloseMarket(p, m, m.EndTS))
	assert.Equal(t, domain.MarketStatusClosed, m.Status)
}

// Markets may only move through adjacent states of the lifecycle graph.
func TestLifecycle_NoStateSkipping(t *testing.T) {
	newDraft := func(t *testing.T, p *domain.Protocol) *domain.Market {
		m, err := CreateMarket(p, admin, testParams(), t0)
		require.NoError(t, err)
		return m
	}
	endOfWindow := testParams().EndTS

	t.Run("draft cannot close", func(t *testing.T) {
		p := testProtocol(t, 500)
		m := newDraft(t, p)
		assert.ErrorIs(t, CloseMarket(p, m, endOfWindow), domain.ErrInvalidMarketState)
	})

	t.Run("draft cannot settle", func(t *testing.T) {
		p := testProtocol(t, 500)
		m := newDraft(t, p)
		_, err := SettleMarket(p, m, 0, endOfWindow)
		assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	})

	t.Run("open cannot settle", func(t *testing.T) {
		p := testProtocol(t, 500)
		m := openMarket(t, p)
		_, err := SettleMarket(p, m, 0, endOfWindow)
		assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	})

	t.Run("open cannot reopen", func(t *testing.T) {
		p := testProtocol(t, 500)
		m := openMarket(t, p)
		assert.ErrorIs(t, OpenMarket(p, admin, m, t0), domain.ErrInvalidMarketState)
	})

	t.Run("closed cannot reclose", func(t *testing.T) {
		p := testProtocol(t, 500)
		m := openMarket(t, p)
		require.NoError(t, CloseMarket(p, m, endOfWindow))
		assert.ErrorIs(t, CloseMarket(p, m, endOfWindow), domain.ErrInvalidMarketState)
	})

	t.Run("settled is terminal", func(t *testing.T) {
		p := testProtocol(t, 500)
		m := openMarket(t, p)
		_, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
		require.NoError(t, err)
		require.NoError(t, CloseMarket(p, m, endOfWindow))
		_, err = SettleMarket(p, m, 0, endOfWindow)
		require.NoError(t, err)

		assert.ErrorIs(t, OpenMarket(p, admin, m, endOfWindow), domain.ErrInvalidMarketState)
		assert.ErrorIs(t, CloseMarket(p, m, endOfWindow), domain.ErrInvalidMarketState)
		_, err = SettleMarket(p, m, 0, endOfWindow)
		assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	})
}

// --- stake placement ---

func TestPlaceStake_Accumulates(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)

	pos, err := PlaceStake(p, m, stake(alice, 0, 100, 150), t0)
	require.NoError(t, err)
	assert.Equal(t, alice, pos.Participant)
	assert.Equal(t, uint64(100), pos.RawStake)
	assert.False(t, pos.Claimed)

	_, err = PlaceStake(p, m, stake(bob, 1, 300, 450), t0)
	require.NoError(t, err)

	assert.Equal(t, uint64(400), m.TotalRawStake)
	assert.Equal(t, *uint256.NewInt(600), m.TotalEffectiveStake)
	assert.Equal(t, *uint256.NewInt(150), m.EffectiveStakePerItem[0])
	assert.Equal(t, *uint256.NewInt(450), m.EffectiveStakePerItem[1])

	// Invariant: total equals the sum of per-item accumulators.
	var sum uint256.Int
	for i := range m.EffectiveStakePerItem {
		sum.Add(&sum, &m.EffectiveStakePerItem[i])
	}
	assert.Equal(t, m.TotalEffectiveStake, sum)
}

func TestPlaceStake_Rejections(t *testing.T) {
	endOfWindow := testParams().EndTS

	tests := []struct {
		name  string
		setup func(*domain.Protocol, *domain.Market)
		req   StakeParams
		now   time.Time
		want  error
	}{
		{"paused", func(p *domain.Protocol, m *domain.Market) { p.Paused = true }, stake(alice, 0, 100, 100), t0, domain.ErrProtocolPaused},
		{"at end of window", nil, stake(alice, 0, 100, 100), endOfWindow, domain.ErrInvalidTimestamp},
		{"after end of window", nil, stake(alice, 0, 100, 100), endOfWindow.Add(time.Hour), domain.ErrInvalidTimestamp},
		{"zero raw stake", nil, stake(alice, 0, 0, 100), t0, domain.ErrInvalidStakeAmount},
		{"zero effective stake", nil, stake(alice, 0, 100, 0), t0, domain.ErrInvalidStakeAmount},
		{"item out of range", nil, stake(alice, 2, 100, 100), t0, domain.ErrInvalidItemIndex},
		{"multiplier exceeded", nil, stake(alice, 0, 100, 100*domain.MaxMultiplier+1), t0, domain.ErrEffectiveStakeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProtocol(t, 500)
			m := openMarket(t, p)
			if tt.setup != nil {
				tt.setup(p, m)
			}

			_, err := PlaceStake(p, m, tt.req, tt.now)
			assert.ErrorIs(t, err, tt.want)

			// Rejected stakes leave the accumulators untouched.
			assert.Equal(t, uint64(0), m.TotalRawStake)
			assert.True(t, m.TotalEffectiveStake.IsZero())
			assert.True(t, m.EffectiveStakePerItem[0].IsZero())
		})
	}
}

func TestPlaceStake_MultiplierCapBoundary(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)

	// Exactly raw * MaxMultiplier succeeds.
	_, err := PlaceStake(p, m, stake(alice, 0, 100, 100*domain.MaxMultiplier), t0)
	assert.NoError(t, err)

	// One more is rejected.
	_, err = PlaceStake(p, m, stake(bob, 0, 100, 100*domain.MaxMultiplier+1), t0)
	assert.ErrorIs(t, err, domain.ErrEffectiveStakeTooLarge)
}

func TestPlaceStake_NotOpen(t *testing.T) {
	p := testProtocol(t, 500)
	m, err := CreateMarket(p, admin, testParams(), t0)
	require.NoError(t, err)

	_, err = PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	assert.Equal(t, uint64(0), m.TotalRawStake)
}

func TestPlaceStake_RawOverflowLeavesMarketUnchanged(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	_, err := PlaceStake(p, m, stake(alice, 0, math.MaxUint64, 1), t0)
	require.NoError(t, err)

	before := *m
	_, err = PlaceStake(p, m, stake(bob, 0, 1, 1), t0)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
	assert.Equal(t, before.TotalRawStake, m.TotalRawStake)
	assert.Equal(t, before.TotalEffectiveStake, m.TotalEffectiveStake)
	assert.Equal(t, before.EffectiveStakePerItem, m.EffectiveStakePerItem)
}

// --- settlement ---

func TestSettleMarket_FeeAndPool(t *testing.T) {
	p := testProtocol(t, 500) // 5%
	m := openMarket(t, p)
	_, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	_, err = PlaceStake(p, m, stake(bob, 1, 300, 300), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))

	fee, err := SettleMarket(p, m, 1, m.EndTS)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), fee)
	assert.Equal(t, uint64(20), m.ProtocolFeeAmount)
	assert.Equal(t, uint64(380), m.DistributablePool)
	assert.Equal(t, uint8(1), m.WinningItemIndex)
	assert.Equal(t, domain.MarketStatusSettled, m.Status)
}

func TestSettleMarket_EmptyMarket(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	require.NoError(t, CloseMarket(p, m, m.EndTS))

	_, err := SettleMarket(p, m, 0, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
}

func TestSettleMarket_WinningIndexBounds(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	_, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))

	_, err = SettleMarket(p, m, 2, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidItemIndex)
	assert.Equal(t, domain.MarketStatusClosed, m.Status)
}

func TestSettleMarket_SecondCallFrozen(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	_, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 0, m.EndTS)
	require.NoError(t, err)

	fee, pool := m.ProtocolFeeAmount, m.DistributablePool
	_, err = SettleMarket(p, m, 1, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	assert.Equal(t, fee, m.ProtocolFeeAmount)
	assert.Equal(t, pool, m.DistributablePool)
	assert.Equal(t, uint8(0), m.WinningItemIndex)
}

// --- claiming ---

// The worked example: 5% fee, A stakes 100 on item 0, B stakes 300 on item 1,
// item 1 wins. Pool 380 goes entirely to B; A's claim is rejected.
func TestClaim_WorkedExample(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	posA, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	posB, err := PlaceStake(p, m, stake(bob, 1, 300, 300), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 1, m.EndTS)
	require.NoError(t, err)

	payout, err := ClaimPayout(m, posB, m.EndTS)
	require.NoError(t, err)
	assert.Equal(t, uint64(380), payout)
	assert.True(t, posB.Claimed)

	_, err = ClaimPayout(m, posA, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	assert.False(t, posA.Claimed)
}

func TestClaim_Idempotent(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	pos, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 0, m.EndTS)
	require.NoError(t, err)

	_, err = ClaimPayout(m, pos, m.EndTS)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = ClaimPayout(m, pos, m.EndTS)
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	}
}

func TestClaim_BeforeSettlement(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	pos, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)

	_, err = ClaimPayout(m, pos, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)

	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = ClaimPayout(m, pos, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
}

// Payouts are floored: the sum over all winners never exceeds the pool and
// falls short by less than one unit per winner.
func TestClaim_DustBound(t *testing.T) {
	p := testProtocol(t, 100) // 1%
	m := openMarket(t, p)

	// Three winners with effective stakes that do not divide the pool evenly.
	winners := []struct {
		who       common.Address
		raw       uint64
		effective uint64
	}{
		{alice, 100, 170},
		{bob, 100, 310},
		{common.HexToAddress("0x0000000000000000000000000000000000000ccc"), 100, 523},
	}
	loser := common.HexToAddress("0x0000000000000000000000000000000000000ddd")

	var positions []*domain.Position
	for _, w := range winners {
		pos, err := PlaceStake(p, m, stake(w.who, 0, w.raw, w.effective), t0)
		require.NoError(t, err)
		positions = append(positions, pos)
	}
	_, err := PlaceStake(p, m, stake(loser, 1, 57, 57), t0)
	require.NoError(t, err)

	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 0, m.EndTS)
	require.NoError(t, err)

	var total uint64
	for _, pos := range positions {
		payout, err := ClaimPayout(m, pos, m.EndTS)
		require.NoError(t, err)
		total += payout
	}

	assert.LessOrEqual(t, total, m.DistributablePool)
	assert.Less(t, m.DistributablePool-total, uint64(len(positions)))
}

// Claims stay available while the protocol is paused.
func TestClaim_AllowedWhilePaused(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	pos, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 0, m.EndTS)
	require.NoError(t, err)

	p.Paused = true
	payout, err := ClaimPayout(m, pos, m.EndTS)
	require.NoError(t, err)
	assert.Equal(t, uint64(95), payout)
}

// Pause gates every mutating transition, including close and settle.
func TestPause_GatesTransitions(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	_, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)

	p.Paused = true
	assert.ErrorIs(t, CloseMarket(p, m, m.EndTS), domain.ErrProtocolPaused)

	p.Paused = false
	require.NoError(t, CloseMarket(p, m, m.EndTS))
	p.Paused = true
	_, err = SettleMarket(p, m, 0, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrProtocolPaused)
}

// Weighted payouts: effective stake, not raw stake, drives proportions.
func TestClaim_EffectiveWeighting(t *testing.T) {
	p := testProtocol(t, 0) // no fee, pool == 400
	m := openMarket(t, p)

	// Equal raw stakes, 3:1 effective weighting on the winning item.
	posA, err := PlaceStake(p, m, stake(alice, 0, 200, 600), t0)
	require.NoError(t, err)
	posB, err := PlaceStake(p, m, stake(bob, 0, 200, 200), t0)
	require.NoError(t, err)

	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 0, m.EndTS)
	require.NoError(t, err)

	payoutA, err := ClaimPayout(m, posA, m.EndTS)
	require.NoError(t, err)
	payoutB, err := ClaimPayout(m, posB, m.EndTS)
	require.NoError(t, err)

	assert.Equal(t, uint64(300), payoutA)
	assert.Equal(t, uint64(100), payoutB)
}

// A winning item with zero aggregated effective stake cannot be claimed
// against. Reachable only if the supplied winning index attracted no stake.
func TestClaim_ZeroWinningDenominator(t *testing.T) {
	p := testProtocol(t, 500)
	m := openMarket(t, p)
	pos, err := PlaceStake(p, m, stake(alice, 0, 100, 100), t0)
	require.NoError(t, err)
	require.NoError(t, CloseMarket(p, m, m.EndTS))
	_, err = SettleMarket(p, m, 1, m.EndTS) // nobody staked item 1
	require.NoError(t, err)

	// The staked position lost.
	_, err = ClaimPayout(m, pos, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)

	// A hypothetical position on the winning item hits the zero denominator.
	ghost := &domain.Position{
		MarketID:          m.ID,
		Participant:       bob,
		SelectedItemIndex: 1,
		RawStake:          1,
		EffectiveStake:    *uint256.NewInt(1),
	}
	_, err = ClaimPayout(m, ghost, m.EndTS)
	assert.ErrorIs(t, err, domain.ErrInvalidStakeAmount)
}
