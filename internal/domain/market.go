package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusDraft   MarketStatus = "draft"
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

const (
	// MaxItems bounds the outcome count of a market and sizes the per-item
	// accumulator array.
	MaxItems = 16

	// MaxMultiplier caps how much effective stake a single unit of raw stake
	// may carry.
	MaxMultiplier = 20
)

// Market is one prediction event: a fixed outcome set committed to by
// ItemsHash, a half-open staking window [StartTS, EndTS), and the aggregated
// stake accounting that settlement distributes from.
//
// TotalEffectiveStake always equals the sum of EffectiveStakePerItem. All
// accumulators only grow until the market settles; the settlement fields
// (WinningItemIndex, ProtocolFeeAmount, DistributablePool) are written once
// by settle and never change afterwards.
type Market struct {
	ID        uint64       `json:"id"`
	ItemsHash common.Hash  `json:"items_hash"`
	ItemCount uint8        `json:"item_count"`
	StartTS   time.Time    `json:"start_ts"`
	EndTS     time.Time    `json:"end_ts"`
	Status    MarketStatus `json:"status"`

	TotalRawStake         uint64                  `json:"total_raw_stake"`
	TotalEffectiveStake   uint256.Int             `json:"total_effective_stake"`
	EffectiveStakePerItem [MaxItems]uint256.Int   `json:"effective_stake_per_item"`

	WinningItemIndex  uint8  `json:"winning_item_index"`
	ProtocolFeeAmount uint64 `json:"protocol_fee_amount"`
	DistributablePool uint64 `json:"distributable_pool"`

	// Asset is the fungible-token identifier staked on this market. It is the
	// zero address when IsNative is set and the market custodies the native
	// asset instead.
	Asset    common.Address `json:"asset"`
	Escrow   common.Address `json:"escrow"`
	IsNative bool           `json:"is_native"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NativeAsset is the asset identifier of the chain-native asset.
var NativeAsset = common.Address{}
