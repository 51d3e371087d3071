package domain

import "context"

// MarketCache is a read-through cache for market records. Implementations
// return ErrNotFound on a miss; callers fall back to the ledger.
type MarketCache interface {
	Get(ctx context.Context, id uint64) (*Market, error)
	Set(ctx context.Context, m *Market) error
	Invalidate(ctx context.Context, id uint64) error
}
