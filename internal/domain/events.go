package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Signal bus channels for market lifecycle events.
const (
	ChannelMarkets = "ch:market"
	ChannelStakes  = "ch:stake"
	ChannelClaims  = "ch:claim"
)

// Event types published on the signal bus.
const (
	EventProtocolUpdated = "protocol_updated"
	EventMarketCreated   = "market_created"
	EventMarketEdited    = "market_edited"
	EventMarketOpened    = "market_opened"
	EventMarketClosed    = "market_closed"
	EventMarketSettled   = "market_settled"
	EventStakePlaced     = "stake_placed"
	EventPayoutClaimed   = "payout_claimed"
)

// MarketEvent is the JSON payload broadcast for every lifecycle operation.
// Amount carries the raw stake for stake events and the payout for claim
// events; it is zero for pure state transitions.
type MarketEvent struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	MarketID    uint64          `json:"market_id"`
	Status      MarketStatus    `json:"status,omitempty"`
	Participant *common.Address `json:"participant,omitempty"`
	ItemIndex   *uint8          `json:"item_index,omitempty"`
	Amount      uint64          `json:"amount,omitempty"`
	At          time.Time       `json:"at"`
}
