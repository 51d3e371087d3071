// Package domain defines the core records of the pari-mutuel settlement
// engine (Protocol, Market, Position) and the collaborator interfaces the
// engine consumes: the transactional host ledger, custody adapters, cache,
// signal bus, and clock.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BpsDenominator is the basis-point scale used for the protocol fee.
const BpsDenominator = 10_000

// Protocol is the global configuration singleton. There is exactly one per
// deployment; it owns the market counter sequence.
type Protocol struct {
	Admin       common.Address `json:"admin"`
	Treasury    common.Address `json:"treasury"`
	FeeBps      uint16         `json:"fee_bps"`
	MarketCount uint64         `json:"market_count"`
	Paused      bool           `json:"paused"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
