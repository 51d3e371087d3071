package domain

import "errors"

// Engine error taxonomy. Every lifecycle operation fails with exactly one of
// these; handlers map them onto HTTP status codes and clients switch on them.
var (
	ErrInvalidFeeRate         = errors.New("fee rate out of range")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrProtocolPaused         = errors.New("protocol is paused")
	ErrInvalidMarketState     = errors.New("invalid market state")
	ErrInvalidTimestamp       = errors.New("invalid timestamp")
	ErrInvalidItemIndex       = errors.New("invalid item index")
	ErrInvalidStakeAmount     = errors.New("invalid stake amount")
	ErrEffectiveStakeTooLarge = errors.New("effective stake exceeds allowed multiplier")
	ErrAlreadyClaimed         = errors.New("position already claimed")
	ErrMathOverflow           = errors.New("math overflow")
)

// Infrastructure errors surfaced by the ledger and cache layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLockHeld          = errors.New("lock already held")
)
