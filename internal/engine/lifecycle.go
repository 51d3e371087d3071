package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kleoslabs/kleos/internal/domain"
)

// MarketParams carries the caller-supplied fields of create_market and
// edit_market.
type MarketParams struct {
	StartTS   time.Time
	EndTS     time.Time
	ItemsHash common.Hash
	ItemCount uint8
	// Asset is the fungible-token identifier for token-custody markets.
	// Ignored when Native is set.
	Asset  common.Address
	Native bool
}

// StakeParams carries the caller-supplied fields of place_stake. The
// effective stake comes from the caller and is bounded only by the
// multiplier cap; the engine does not derive it from a pricing curve.
type StakeParams struct {
	Participant       common.Address
	SelectedItemIndex uint8
	RawStake          uint64
	EffectiveStake    uint256.Int
}

func validateMarketParams(params MarketParams) error {
	if !params.EndTS.After(params.StartTS) {
		return domain.ErrInvalidTimestamp
	}
	if params.ItemCount <= 1 || params.ItemCount > domain.MaxItems {
		return domain.ErrInvalidItemIndex
	}
	return nil
}

// InitializeProtocol builds the protocol singleton. The caller becomes the
// admin identity. The once-per-deployment guarantee comes from the ledger's
// create-once semantics, not from this function.
func InitializeProtocol(admin, treasury common.Address, feeBps uint16, now time.Time) (*domain.Protocol, error) {
	if feeBps > domain.BpsDenominator {
		return nil, domain.ErrInvalidFeeRate
	}
	return &domain.Protocol{
		Admin:       admin,
		Treasury:    treasury,
		FeeBps:      feeBps,
		MarketCount: 0,
		Paused:      false,
		UpdatedAt:   now,
	}, nil
}

// UpdateProtocol overwrites the fee rate, treasury, and pause flag. There is
// no transition restriction on paused or treasury.
func UpdateProtocol(p *domain.Protocol, caller common.Address, feeBps uint16, treasury common.Address, paused bool, now time.Time) error {
	if caller != p.Admin {
		return domain.ErrUnauthorized
	}
	if feeBps > domain.BpsDenominator {
		return domain.ErrInvalidFeeRate
	}
	p.FeeBps = feeBps
	p.Treasury = treasury
	p.Paused = paused
	p.UpdatedAt = now
	return nil
}

// CreateMarket allocates a new Draft market under the protocol's market
// counter and advances the counter. No value moves. The market's escrow
// address is derived by the custody adapter after this returns, before the
// record is inserted.
func CreateMarket(p *domain.Protocol, caller common.Address, params MarketParams, now time.Time) (*domain.Market, error) {
	if caller != p.Admin {
		return nil, domain.ErrUnauthorized
	}
	if p.Paused {
		return nil, domain.ErrProtocolPaused
	}
	if err := validateMarketParams(params); err != nil {
		return nil, err
	}

	nextCount, err := checkedAdd64(p.MarketCount, 1)
	if err != nil {
		return nil, err
	}

	m := &domain.Market{
		ID:        p.MarketCount,
		ItemsHash: params.ItemsHash,
		ItemCount: params.ItemCount,
		StartTS:   params.StartTS,
		EndTS:     params.EndTS,
		Status:    domain.MarketStatusDraft,
		Asset:     params.Asset,
		IsNative:  params.Native,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if params.Native {
		m.Asset = domain.NativeAsset
	}

	p.MarketCount = nextCount
	return m, nil
}

// EditMarket overwrites the window, items hash, and item count of a Draft
// market that has attracted no stake yet. The custody path and asset are
// fixed at creation and cannot be edited.
func EditMarket(p *domain.Protocol, caller common.Address, m *domain.Market, params MarketParams, now time.Time) error {
	if caller != p.Admin {
		return domain.ErrUnauthorized
	}
	if p.Paused {
		return domain.ErrProtocolPaused
	}
	if m.Status != domain.MarketStatusDraft || m.TotalRawStake != 0 {
		return domain.ErrInvalidMarketState
	}
	if err := validateMarketParams(params); err != nil {
		return err
	}

	m.StartTS = params.StartTS
	m.EndTS = params.EndTS
	m.ItemsHash = params.ItemsHash
	m.ItemCount = params.ItemCount
	m.UpdatedAt = now
	return nil
}

// OpenMarket transitions Draft -> Open once the staking window has started.
func OpenMarket(p *domain.Protocol, caller common.Address, m *domain.Market, now time.Time) error {
	if caller != p.Admin {
		return domain.ErrUnauthorized
	}
	if p.Paused {
		return domain.ErrProtocolPaused
	}
	if m.Status != domain.MarketStatusDraft {
		return domain.ErrInvalidMarketState
	}
	if now.Before(m.StartTS) {
		return domain.ErrInvalidTimestamp
	}

	m.Status = domain.MarketStatusOpen
	m.UpdatedAt = now
	return nil
}

// CloseMarket transitions Open -> Closed once the staking window has ended.
// It is a pure gate: no stake accounting happens here.
func CloseMarket(p *domain.Protocol, m *domain.Market, now time.Time) error {
	if p.Paused {
		return domain.ErrProtocolPaused
	}
	if m.Status != domain.MarketStatusOpen {
		return domain.ErrInvalidMarketState
	}
	if now.Before(m.EndTS) {
		return domain.ErrInvalidTimestamp
	}

	m.Status = domain.MarketStatusClosed
	m.UpdatedAt = now
	return nil
}

// PlaceStake validates a stake against the open market and applies it to the
// market's accumulators, returning the new Position. Every precondition
// failure leaves the market untouched. The caller moves the raw stake into
// escrow and inserts the position within the same atomic operation; the
// ledger's create-once semantics reject a second position from the same
// participant.
func PlaceStake(p *domain.Protocol, m *domain.Market, params StakeParams, now time.Time) (*domain.Position, error) {
	if p.Paused {
		return nil, domain.ErrProtocolPaused
	}
	if m.Status != domain.MarketStatusOpen {
		return nil, domain.ErrInvalidMarketState
	}
	if !now.Before(m.EndTS) {
		return nil, domain.ErrInvalidTimestamp
	}
	if params.RawStake == 0 {
		return nil, domain.ErrInvalidStakeAmount
	}
	if params.SelectedItemIndex >= m.ItemCount {
		return nil, domain.ErrInvalidItemIndex
	}
	if params.EffectiveStake.Gt(maxEffective(params.RawStake)) {
		return nil, domain.ErrEffectiveStakeTooLarge
	}
	if params.EffectiveStake.IsZero() {
		return nil, domain.ErrInvalidStakeAmount
	}

	// Stage the accumulator updates so a MathOverflow on any of them leaves
	// the market unchanged.
	totalRaw, err := checkedAdd64(m.TotalRawStake, params.RawStake)
	if err != nil {
		return nil, err
	}
	totalEffective := m.TotalEffectiveStake
	if err := addEffective(&totalEffective, &params.EffectiveStake); err != nil {
		return nil, err
	}
	itemEffective := m.EffectiveStakePerItem[params.SelectedItemIndex]
	if err := addEffective(&itemEffective, &params.EffectiveStake); err != nil {
		return nil, err
	}

	m.TotalRawStake = totalRaw
	m.TotalEffectiveStake = totalEffective
	m.EffectiveStakePerItem[params.SelectedItemIndex] = itemEffective
	m.UpdatedAt = now

	return &domain.Position{
		MarketID:          m.ID,
		Participant:       params.Participant,
		SelectedItemIndex: params.SelectedItemIndex,
		RawStake:          params.RawStake,
		EffectiveStake:    params.EffectiveStake,
		Claimed:           false,
		PlacedAt:          now,
	}, nil
}

// SettleMarket transitions Closed -> Settled, recording the winning item and
// splitting the raw-stake pool into protocol fee and distributable pool. The
// winning item index is trusted external input; the engine validates only its
// bounds. The caller sweeps the returned fee from escrow to the treasury.
// Settlement is single-shot: once Settled, the Closed-only guard rejects a
// repeat and the fee and pool fields are frozen.
func SettleMarket(p *domain.Protocol, m *domain.Market, winningItemIndex uint8, now time.Time) (fee uint64, err error) {
	if p.Paused {
		return 0, domain.ErrProtocolPaused
	}
	if m.Status != domain.MarketStatusClosed {
		return 0, domain.ErrInvalidMarketState
	}
	if m.TotalRawStake == 0 {
		return 0, domain.ErrInvalidStakeAmount
	}
	if winningItemIndex >= m.ItemCount {
		return 0, domain.ErrInvalidItemIndex
	}

	fee, pool, err := feeSplit(m.TotalRawStake, p.FeeBps)
	if err != nil {
		return 0, err
	}

	m.WinningItemIndex = winningItemIndex
	m.ProtocolFeeAmount = fee
	m.DistributablePool = pool
	m.Status = domain.MarketStatusSettled
	m.UpdatedAt = now
	return fee, nil
}

// ClaimPayout marks a winning position claimed and returns its payout:
// floor(effective_stake * distributable_pool / winning_item_aggregate).
//
// Both custody paths divide by the winning item's aggregated effective stake.
// Claimed is set before the caller issues the transfer (mark-then-transfer):
// a re-entered or retried claim finds Claimed and aborts with AlreadyClaimed.
// Zero payouts still mark the position claimed; the caller skips the transfer.
func ClaimPayout(m *domain.Market, pos *domain.Position, now time.Time) (uint64, error) {
	if m.Status != domain.MarketStatusSettled {
		return 0, domain.ErrInvalidMarketState
	}
	if pos.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}
	if pos.SelectedItemIndex != m.WinningItemIndex {
		return 0, domain.ErrInvalidMarketState
	}

	winningStake := m.EffectiveStakePerItem[m.WinningItemIndex]
	if winningStake.IsZero() {
		return 0, domain.ErrInvalidStakeAmount
	}

	payout, err := payoutShare(&pos.EffectiveStake, m.DistributablePool, &winningStake)
	if err != nil {
		return 0, err
	}

	pos.Claimed = true
	pos.ClaimedAt = &now
	return payout, nil
}
