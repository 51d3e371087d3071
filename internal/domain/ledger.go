package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Ledger is the host ledger the engine runs against. Each lifecycle operation
// executes inside one Atomic call: every read, validation, mutation, and value
// transfer in the callback commits together or not at all. Records read
// through the transaction's Lock* methods are locked until the transaction
// ends, so at most one mutation per market is in flight at a time.
//
// The read methods outside Atomic serve the query API and take no locks.
type Ledger interface {
	Atomic(ctx context.Context, fn func(tx LedgerTx) error) error

	Protocol(ctx context.Context) (*Protocol, error)
	Market(ctx context.Context, id uint64) (*Market, error)
	Markets(ctx context.Context, opts ListOpts) ([]*Market, error)
	CountMarkets(ctx context.Context) (int64, error)
	Position(ctx context.Context, marketID uint64, participant common.Address) (*Position, error)
	MarketPositions(ctx context.Context, marketID uint64) ([]*Position, error)
	Balance(ctx context.Context, owner, asset common.Address) (uint64, error)
}

// LedgerTx is the transactional view handed to an Atomic callback.
//
// Lock* methods read a record under an exclusive row lock and return
// ErrNotFound when it does not exist. Insert* methods return ErrAlreadyExists
// when the record (or the protocol singleton) is already present. Transfer
// moves value between two accounts of the same asset and returns
// ErrInsufficientFunds when the source balance is too small.
type LedgerTx interface {
	InsertProtocol(ctx context.Context, p *Protocol) error
	Protocol(ctx context.Context) (*Protocol, error)
	LockProtocol(ctx context.Context) (*Protocol, error)
	SaveProtocol(ctx context.Context, p *Protocol) error

	InsertMarket(ctx context.Context, m *Market) error
	LockMarket(ctx context.Context, id uint64) (*Market, error)
	SaveMarket(ctx context.Context, m *Market) error

	InsertPosition(ctx context.Context, pos *Position) error
	LockPosition(ctx context.Context, marketID uint64, participant common.Address) (*Position, error)
	SavePosition(ctx context.Context, pos *Position) error

	Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error
}

// AuditEntry is one append-only audit log row recording a lifecycle
// operation after it committed.
type AuditEntry struct {
	ID        string
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists the append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
