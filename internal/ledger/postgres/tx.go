package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kleoslabs/kleos/internal/domain"
)

// uniqueViolation is the SQLSTATE pgx reports for duplicate-key inserts.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ledgerTx implements domain.LedgerTx on an open pgx transaction. Lock*
// methods take FOR UPDATE row locks so concurrent lifecycle operations on
// the same record serialize at the database.
type ledgerTx struct {
	q queryer
}

func (t *ledgerTx) InsertProtocol(ctx context.Context, p *domain.Protocol) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO protocol (singleton, admin_address, treasury_address, fee_bps, market_count, paused, updated_at)
		VALUES (TRUE, $1, $2, $3, $4::numeric, $5, $6)`,
		p.Admin.Hex(), p.Treasury.Hex(), int32(p.FeeBps), u64str(p.MarketCount), p.Paused, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert protocol: %w", err)
	}
	return nil
}

func (t *ledgerTx) Protocol(ctx context.Context) (*domain.Protocol, error) {
	return scanProtocol(ctx, t.q, protocolSelect)
}

func (t *ledgerTx) LockProtocol(ctx context.Context) (*domain.Protocol, error) {
	return scanProtocol(ctx, t.q, protocolSelect+" FOR UPDATE")
}

func (t *ledgerTx) SaveProtocol(ctx context.Context, p *domain.Protocol) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE protocol
		SET admin_address = $1, treasury_address = $2, fee_bps = $3,
		    market_count = $4::numeric, paused = $5, updated_at = $6
		WHERE singleton`,
		p.Admin.Hex(), p.Treasury.Hex(), int32(p.FeeBps), u64str(p.MarketCount), p.Paused, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save protocol: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertMarket(ctx context.Context, m *domain.Market) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO markets (
			id, items_hash, item_count, start_ts, end_ts, status,
			total_raw_stake, total_effective_stake, effective_stake_per_item,
			winning_item_index, protocol_fee_amount, distributable_pool,
			asset, escrow, is_native, created_at, updated_at
		) VALUES (
			$1::numeric, $2, $3, $4, $5, $6,
			$7::numeric, $8::numeric, $9,
			$10, $11::numeric, $12::numeric,
			$13, $14, $15, $16, $17
		)`,
		u64str(m.ID), m.ItemsHash.Hex(), int16(m.ItemCount), m.StartTS, m.EndTS, string(m.Status),
		u64str(m.TotalRawStake), u256str(&m.TotalEffectiveStake), itemsToArray(&m.EffectiveStakePerItem, m.ItemCount),
		int16(m.WinningItemIndex), u64str(m.ProtocolFeeAmount), u64str(m.DistributablePool),
		m.Asset.Hex(), m.Escrow.Hex(), m.IsNative, m.CreatedAt, m.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert market %d: %w", m.ID, err)
	}
	return nil
}

func (t *ledgerTx) LockMarket(ctx context.Context, id uint64) (*domain.Market, error) {
	return scanMarket(ctx, t.q, marketSelect+" WHERE id = $1::numeric FOR UPDATE", u64str(id))
}

func (t *ledgerTx) SaveMarket(ctx context.Context, m *domain.Market) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE markets
		SET items_hash = $2, item_count = $3, start_ts = $4, end_ts = $5, status = $6,
		    total_raw_stake = $7::numeric, total_effective_stake = $8::numeric,
		    effective_stake_per_item = $9, winning_item_index = $10,
		    protocol_fee_amount = $11::numeric, distributable_pool = $12::numeric,
		    asset = $13, escrow = $14, is_native = $15, updated_at = $16
		WHERE id = $1::numeric`,
		u64str(m.ID), m.ItemsHash.Hex(), int16(m.ItemCount), m.StartTS, m.EndTS, string(m.Status),
		u64str(m.TotalRawStake), u256str(&m.TotalEffectiveStake),
		itemsToArray(&m.EffectiveStakePerItem, m.ItemCount), int16(m.WinningItemIndex),
		u64str(m.ProtocolFeeAmount), u64str(m.DistributablePool),
		m.Asset.Hex(), m.Escrow.Hex(), m.IsNative, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save market %d: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertPosition(ctx context.Context, pos *domain.Position) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO positions (
			market_id, participant, selected_item_index,
			raw_stake, effective_stake, claimed, placed_at, claimed_at
		) VALUES ($1::numeric, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)`,
		u64str(pos.MarketID), pos.Participant.Hex(), int16(pos.SelectedItemIndex),
		u64str(pos.RawStake), u256str(&pos.EffectiveStake), pos.Claimed, pos.PlacedAt, pos.ClaimedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert position %d/%s: %w", pos.MarketID, pos.Participant.Hex(), err)
	}
	return nil
}

func (t *ledgerTx) LockPosition(ctx context.Context, marketID uint64, participant common.Address) (*domain.Position, error) {
	return scanPosition(ctx, t.q,
		positionSelect+" WHERE market_id = $1::numeric AND participant = $2 FOR UPDATE",
		u64str(marketID), participant.Hex(),
	)
}

func (t *ledgerTx) SavePosition(ctx context.Context, pos *domain.Position) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE positions
		SET selected_item_index = $3, raw_stake = $4::numeric, effective_stake = $5::numeric,
		    claimed = $6, placed_at = $7, claimed_at = $8
		WHERE market_id = $1::numeric AND participant = $2`,
		u64str(pos.MarketID), pos.Participant.Hex(), int16(pos.SelectedItemIndex),
		u64str(pos.RawStake), u256str(&pos.EffectiveStake), pos.Claimed, pos.PlacedAt, pos.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save position %d/%s: %w", pos.MarketID, pos.Participant.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Transfer moves amount of asset between accounts. The debit requires the
// source balance to cover the amount; the credit upserts the destination
// account. A zero amount is a no-op.
func (t *ledgerTx) Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	tag, err := t.q.Exec(ctx, `
		UPDATE accounts
		SET balance = balance - $3::numeric, updated_at = NOW()
		WHERE owner = $1 AND asset = $2 AND balance >= $3::numeric`,
		from.Hex(), asset.Hex(), u64str(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO accounts (owner, asset, balance, updated_at)
		VALUES ($1, $2, $3::numeric, NOW())
		ON CONFLICT (owner, asset)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		to.Hex(), asset.Hex(), u64str(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to.Hex(), err)
	}
	return nil
}

var _ domain.LedgerTx = (*ledgerTx)(nil)
