package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/engine"
)

// transitionLockTTL bounds how long a close or settle holds the distributed
// per-market lock.
const transitionLockTTL = 10 * time.Second

// MarketService drives the market lifecycle: create, edit, open, close, and
// settle, plus cache-backed reads.
type MarketService struct {
	ledger   domain.Ledger
	custody  custodyRouter
	cache    domain.MarketCache
	locks    domain.LockManager
	reporter Reporter
	notifier Notifier
	clock    domain.Clock
	logger   *slog.Logger
	emitter
}

// NewMarketService creates a MarketService. reporter and notifier may be nil.
func NewMarketService(
	ledger domain.Ledger,
	token, native domain.Custody,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	reporter Reporter,
	notifier Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *MarketService {
	logger = logger.With(slog.String("component", "market_service"))
	return &MarketService{
		ledger:   ledger,
		custody:  custodyRouter{token: token, native: native},
		cache:    cache,
		locks:    locks,
		reporter: reporter,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		emitter:  emitter{bus: bus, audit: audit, logger: logger},
	}
}

// Create registers a new Draft market under the next market identity and
// derives its escrow address.
func (s *MarketService) Create(ctx context.Context, caller common.Address, params engine.MarketParams) (*domain.Market, error) {
	now := s.clock.Now()

	var m *domain.Market
	err := s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.LockProtocol(ctx)
		if err != nil {
			return err
		}
		m, err = engine.CreateMarket(p, caller, params, now)
		if err != nil {
			return err
		}
		m.Escrow = s.custody.For(m).Escrow(m.ID)

		if err := tx.InsertMarket(ctx, m); err != nil {
			return err
		}
		return tx.SaveProtocol(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", m.ID),
		slog.Int("item_count", int(m.ItemCount)),
		slog.Bool("native", m.IsNative),
	)
	s.emit(ctx, domain.ChannelMarkets, domain.MarketEvent{
		Type:     domain.EventMarketCreated,
		MarketID: m.ID,
		Status:   m.Status,
		At:       now,
	})
	return m, nil
}

// Edit overwrites the window, items hash, and item count of a Draft market
// with no stake.
func (s *MarketService) Edit(ctx context.Context, caller common.Address, id uint64, params engine.MarketParams) (*domain.Market, error) {
	m, err := s.transition(ctx, id, domain.EventMarketEdited, func(p *domain.Protocol, m *domain.Market, now time.Time) error {
		return engine.EditMarket(p, caller, m, params, now)
	})
	return m, err
}

// Open transitions a Draft market to Open once its staking window started.
func (s *MarketService) Open(ctx context.Context, caller common.Address, id uint64) (*domain.Market, error) {
	return s.transition(ctx, id, domain.EventMarketOpened, func(p *domain.Protocol, m *domain.Market, now time.Time) error {
		return engine.OpenMarket(p, caller, m, now)
	})
}

// Close transitions an Open market to Closed once its staking window ended.
// Closing is permissionless; the timestamp gate is the authority.
func (s *MarketService) Close(ctx context.Context, id uint64) (*domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("market:%d:transition", id), transitionLockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.transition(ctx, id, domain.EventMarketClosed, func(p *domain.Protocol, m *domain.Market, now time.Time) error {
		return engine.CloseMarket(p, m, now)
	})
}

// Settle resolves a Closed market: it records the winning item, splits the
// pool into protocol fee and distributable pool, and sweeps the fee from
// escrow to the treasury in the same transaction. After commit it archives a
// settlement report and notifies operators; both are best-effort.
func (s *MarketService) Settle(ctx context.Context, caller common.Address, id uint64, winningItemIndex uint8) (*domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("market:%d:transition", id), transitionLockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()

	var m *domain.Market
	err = s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.Protocol(ctx)
		if err != nil {
			return err
		}
		if caller != p.Admin {
			return domain.ErrUnauthorized
		}

		m, err = tx.LockMarket(ctx, id)
		if err != nil {
			return err
		}

		fee, err := engine.SettleMarket(p, m, winningItemIndex, now)
		if err != nil {
			return err
		}
		if fee > 0 {
			if err := s.custody.For(m).Withdraw(ctx, tx, m, p.Treasury, fee); err != nil {
				return err
			}
		}
		return tx.SaveMarket(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.InfoContext(ctx, "market settled",
		slog.Uint64("market_id", id),
		slog.Int("winning_item", int(winningItemIndex)),
		slog.Uint64("fee", m.ProtocolFeeAmount),
		slog.Uint64("pool", m.DistributablePool),
	)

	idx := winningItemIndex
	s.emit(ctx, domain.ChannelMarkets, domain.MarketEvent{
		Type:      domain.EventMarketSettled,
		MarketID:  id,
		Status:    m.Status,
		ItemIndex: &idx,
		Amount:    m.DistributablePool,
		At:        now,
	})
	s.archiveAndNotify(ctx, m)
	return m, nil
}

// transition runs one engine mutation against the locked market row, saves
// it, and emits the matching event.
func (s *MarketService) transition(ctx context.Context, id uint64, eventType string, fn func(p *domain.Protocol, m *domain.Market, now time.Time) error) (*domain.Market, error) {
	now := s.clock.Now()

	var m *domain.Market
	err := s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.Protocol(ctx)
		if err != nil {
			return err
		}
		m, err = tx.LockMarket(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p, m, now); err != nil {
			return err
		}
		return tx.SaveMarket(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.InfoContext(ctx, "market transition",
		slog.Uint64("market_id", id),
		slog.String("event", eventType),
		slog.String("status", string(m.Status)),
	)
	s.emit(ctx, domain.ChannelMarkets, domain.MarketEvent{
		Type:     eventType,
		MarketID: id,
		Status:   m.Status,
		At:       now,
	})
	return m, nil
}

// Get retrieves a market by identity, checking the cache first and falling
// back to the ledger on a miss.
func (s *MarketService) Get(ctx context.Context, id uint64) (*domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	m, err = s.ledger.Market(ctx, id)
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.Uint64("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// List returns markets ordered by identity directly from the ledger.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error) {
	return s.ledger.Markets(ctx, opts)
}

func (s *MarketService) invalidate(ctx context.Context, id uint64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		// Non-fatal: the cache entry expires on its own.
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) archiveAndNotify(ctx context.Context, m *domain.Market) {
	if s.reporter != nil {
		positions, err := s.ledger.MarketPositions(ctx, m.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "settlement report: load positions failed",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		} else if key, err := s.reporter.ArchiveSettlement(ctx, m, positions); err != nil {
			s.logger.WarnContext(ctx, "settlement report failed",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "settlement report archived",
				slog.Uint64("market_id", m.ID),
				slog.String("key", key),
			)
		}
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("Market %d settled: winning item %d, fee %d, pool %d",
			m.ID, m.WinningItemIndex, m.ProtocolFeeAmount, m.DistributablePool)
		if err := s.notifier.Notify(ctx, domain.EventMarketSettled, "Market settled", msg); err != nil {
			s.logger.WarnContext(ctx, "settle notification failed",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
