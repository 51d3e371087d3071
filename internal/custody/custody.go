// Package custody implements the two value-custody paths of the settlement
// engine. Both paths share the engine's state machine and accounting; they
// differ only in how custody is verified and moved. Token markets move a
// fungible-token balance into an escrow account typed by the market's asset;
// native markets move the chain-native asset through an address derived from
// the market's identity.
package custody

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// escrowDomain separates escrow derivation from any other address derivation
// in the deployment.
var escrowDomain = []byte("kleos/escrow/v1")

// DeriveEscrow computes the market-owned escrow address for a market
// identity: the trailing twenty bytes of keccak256(domain || market_id).
// The function is a pure derivation; it is stable across restarts and
// collision-free across markets.
func DeriveEscrow(marketID uint64) common.Address {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], marketID)

	digest := crypto.Keccak256(escrowDomain, id[:])
	return common.BytesToAddress(digest[12:])
}
