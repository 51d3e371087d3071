package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is one participant's stake on one market. The (MarketID,
// Participant) pair is unique: the ledger's create-once semantics reject a
// second stake from the same participant on the same market.
//
// Claimed is monotonic false to true and is never reset; it is the
// double-claim guard for payout processing.
type Position struct {
	MarketID          uint64         `json:"market_id"`
	Participant       common.Address `json:"participant"`
	SelectedItemIndex uint8          `json:"selected_item_index"`
	RawStake          uint64         `json:"raw_stake"`
	EffectiveStake    uint256.Int    `json:"effective_stake"`
	Claimed           bool           `json:"claimed"`
	PlacedAt          time.Time      `json:"placed_at"`
	ClaimedAt         *time.Time     `json:"claimed_at,omitempty"`
}
