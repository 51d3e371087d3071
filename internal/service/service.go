// Package service orchestrates lifecycle operations: it locks the records an
// operation touches inside one ledger transaction, applies the engine's state
// transitions, routes value through the market's custody path, and fans out
// events, audit entries, and notifications after commit.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kleoslabs/kleos/internal/domain"
)

// Reporter archives a settlement report after a market settles.
type Reporter interface {
	ArchiveSettlement(ctx context.Context, m *domain.Market, positions []*domain.Position) (string, error)
}

// Notifier alerts operators about lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// custodyRouter picks the custody adapter matching a market's configured
// path. The path is fixed at creation.
type custodyRouter struct {
	token  domain.Custody
	native domain.Custody
}

func (r custodyRouter) For(m *domain.Market) domain.Custody {
	if m.IsNative {
		return r.native
	}
	return r.token
}

// emitter publishes lifecycle events on the signal bus and mirrors them into
// the audit log. Both are best-effort after the ledger transaction committed;
// failures are logged and never surfaced to the caller.
type emitter struct {
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

func (e *emitter) emit(ctx context.Context, channel string, ev domain.MarketEvent) {
	ev.ID = uuid.NewString()

	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.WarnContext(ctx, "marshal event failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", ev.Type),
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}

	detail := map[string]any{
		"event_id":  ev.ID,
		"market_id": ev.MarketID,
	}
	if ev.Status != "" {
		detail["status"] = string(ev.Status)
	}
	if ev.Participant != nil {
		detail["participant"] = ev.Participant.Hex()
	}
	if ev.ItemIndex != nil {
		detail["item_index"] = *ev.ItemIndex
	}
	if ev.Amount != 0 {
		detail["amount"] = ev.Amount
	}
	if err := e.audit.Log(ctx, ev.Type, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
