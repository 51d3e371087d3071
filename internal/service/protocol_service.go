package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/engine"
)

// ProtocolService manages the protocol singleton: one-time initialization and
// admin-gated updates to fee rate, treasury, and the pause switch.
type ProtocolService struct {
	ledger   domain.Ledger
	clock    domain.Clock
	notifier Notifier
	logger   *slog.Logger
	emitter
}

// NewProtocolService creates a ProtocolService. notifier may be nil.
func NewProtocolService(
	ledger domain.Ledger,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *ProtocolService {
	logger = logger.With(slog.String("component", "protocol_service"))
	return &ProtocolService{
		ledger:   ledger,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		emitter:  emitter{bus: bus, audit: audit, logger: logger},
	}
}

// Initialize creates the protocol singleton. It returns
// domain.ErrAlreadyExists when the protocol was initialized before.
func (s *ProtocolService) Initialize(ctx context.Context, admin, treasury common.Address, feeBps uint16) (*domain.Protocol, error) {
	p, err := engine.InitializeProtocol(admin, treasury, feeBps, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		return tx.InsertProtocol(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("protocol_service: initialize: %w", err)
	}

	s.logger.InfoContext(ctx, "protocol initialized",
		slog.String("admin", admin.Hex()),
		slog.String("treasury", treasury.Hex()),
		slog.Int("fee_bps", int(feeBps)),
	)
	s.emit(ctx, domain.ChannelMarkets, domain.MarketEvent{
		Type: domain.EventProtocolUpdated,
		At:   p.UpdatedAt,
	})
	return p, nil
}

// ProtocolUpdate carries the admin-editable protocol fields. Nil fields keep
// their current value.
type ProtocolUpdate struct {
	FeeBps   *uint16
	Treasury *common.Address
	Paused   *bool
}

// Update applies an admin update to the protocol singleton. Changing the fee
// rate only affects markets settled afterwards.
func (s *ProtocolService) Update(ctx context.Context, caller common.Address, upd ProtocolUpdate) (*domain.Protocol, error) {
	var (
		out         *domain.Protocol
		pauseToggle bool
	)
	err := s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.LockProtocol(ctx)
		if err != nil {
			return err
		}

		feeBps := p.FeeBps
		if upd.FeeBps != nil {
			feeBps = *upd.FeeBps
		}
		treasury := p.Treasury
		if upd.Treasury != nil {
			treasury = *upd.Treasury
		}
		paused := p.Paused
		if upd.Paused != nil {
			paused = *upd.Paused
		}
		pauseToggle = paused != p.Paused

		if err := engine.UpdateProtocol(p, caller, feeBps, treasury, paused, s.clock.Now()); err != nil {
			return err
		}
		if err := tx.SaveProtocol(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "protocol updated",
		slog.Int("fee_bps", int(out.FeeBps)),
		slog.String("treasury", out.Treasury.Hex()),
		slog.Bool("paused", out.Paused),
	)
	s.emit(ctx, domain.ChannelMarkets, domain.MarketEvent{
		Type: domain.EventProtocolUpdated,
		At:   out.UpdatedAt,
	})

	if pauseToggle && s.notifier != nil {
		state := "resumed"
		if out.Paused {
			state = "paused"
		}
		if err := s.notifier.Notify(ctx, domain.EventProtocolUpdated,
			"Protocol "+state,
			fmt.Sprintf("Protocol %s by %s", state, caller.Hex()),
		); err != nil {
			s.logger.WarnContext(ctx, "pause notification failed", slog.String("error", err.Error()))
		}
	}
	return out, nil
}

// Get returns the protocol singleton.
func (s *ProtocolService) Get(ctx context.Context) (*domain.Protocol, error) {
	return s.ledger.Protocol(ctx)
}
