package service

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/engine"
)

// PositionService handles participant operations: placing stakes and claiming
// payouts.
type PositionService struct {
	ledger  domain.Ledger
	custody custodyRouter
	cache   domain.MarketCache
	clock   domain.Clock
	logger  *slog.Logger
	emitter
}

// NewPositionService creates a PositionService.
func NewPositionService(
	ledger domain.Ledger,
	token, native domain.Custody,
	cache domain.MarketCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	clock domain.Clock,
	logger *slog.Logger,
) *PositionService {
	logger = logger.With(slog.String("component", "position_service"))
	return &PositionService{
		ledger:  ledger,
		custody: custodyRouter{token: token, native: native},
		cache:   cache,
		clock:   clock,
		logger:  logger,
		emitter: emitter{bus: bus, audit: audit, logger: logger},
	}
}

// PlaceStake applies a stake to an open market: it updates the market's
// accumulators, moves the raw stake into escrow, and records the position,
// all in one ledger transaction. A second stake from the same participant on
// the same market is rejected with domain.ErrAlreadyExists.
func (s *PositionService) PlaceStake(ctx context.Context, marketID uint64, params engine.StakeParams) (*domain.Position, error) {
	now := s.clock.Now()

	var pos *domain.Position
	err := s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.Protocol(ctx)
		if err != nil {
			return err
		}
		m, err := tx.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}

		pos, err = engine.PlaceStake(p, m, params, now)
		if err != nil {
			return err
		}
		if err := s.custody.For(m).Deposit(ctx, tx, m, params.Participant, params.RawStake); err != nil {
			return err
		}
		if err := tx.InsertPosition(ctx, pos); err != nil {
			return err
		}
		return tx.SaveMarket(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, marketID)
	s.logger.InfoContext(ctx, "stake placed",
		slog.Uint64("market_id", marketID),
		slog.String("participant", params.Participant.Hex()),
		slog.Int("item", int(params.SelectedItemIndex)),
		slog.Uint64("raw_stake", params.RawStake),
	)

	idx := params.SelectedItemIndex
	participant := params.Participant
	s.emit(ctx, domain.ChannelStakes, domain.MarketEvent{
		Type:        domain.EventStakePlaced,
		MarketID:    marketID,
		Participant: &participant,
		ItemIndex:   &idx,
		Amount:      params.RawStake,
		At:          now,
	})
	return pos, nil
}

// Claim pays out a winning position from a settled market. The position is
// marked claimed before the escrow transfer so a concurrent retry finds
// Claimed and aborts; zero payouts mark the position without transferring.
func (s *PositionService) Claim(ctx context.Context, marketID uint64, participant common.Address) (uint64, error) {
	now := s.clock.Now()

	var payout uint64
	err := s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		pos, err := tx.LockPosition(ctx, marketID, participant)
		if err != nil {
			return err
		}

		payout, err = engine.ClaimPayout(m, pos, now)
		if err != nil {
			return err
		}
		// Mark first, transfer second.
		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}
		if payout > 0 {
			return s.custody.For(m).Withdraw(ctx, tx, m, participant, payout)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "payout claimed",
		slog.Uint64("market_id", marketID),
		slog.String("participant", participant.Hex()),
		slog.Uint64("payout", payout),
	)
	s.emit(ctx, domain.ChannelClaims, domain.MarketEvent{
		Type:        domain.EventPayoutClaimed,
		MarketID:    marketID,
		Participant: &participant,
		Amount:      payout,
		At:          now,
	})
	return payout, nil
}

// Get returns one participant's position on a market.
func (s *PositionService) Get(ctx context.Context, marketID uint64, participant common.Address) (*domain.Position, error) {
	return s.ledger.Position(ctx, marketID, participant)
}

// ListByMarket returns every position on a market ordered by placement.
func (s *PositionService) ListByMarket(ctx context.Context, marketID uint64) ([]*domain.Position, error) {
	return s.ledger.MarketPositions(ctx, marketID)
}

func (s *PositionService) invalidate(ctx context.Context, id uint64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
