package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kleoslabs/kleos/internal/domain"
)

// queryer is the querying surface shared by pgxpool.Pool and pgx.Tx so the
// row scanning code serves both the read side and the transactional side.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger implements domain.Ledger on a pgx connection pool.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given client.
func NewLedger(c *Client) *Ledger {
	return &Ledger{pool: c.Pool()}
}

// Atomic runs fn inside one database transaction. Any error from fn rolls
// the whole operation back; locks taken by the transaction's Lock* methods
// are held until it ends.
func (l *Ledger) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&ledgerTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// --- read side (no locks) ---

// Protocol returns the protocol singleton.
func (l *Ledger) Protocol(ctx context.Context) (*domain.Protocol, error) {
	return scanProtocol(ctx, l.pool, protocolSelect)
}

// Market returns one market by identity.
func (l *Ledger) Market(ctx context.Context, id uint64) (*domain.Market, error) {
	return scanMarket(ctx, l.pool, marketSelect+" WHERE id = $1::numeric", u64str(id))
}

// Markets returns markets ordered by identity with pagination.
func (l *Ledger) Markets(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx, marketSelect+" ORDER BY id LIMIT $1 OFFSET $2", limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []*domain.Market
	for rows.Next() {
		m, err := scanMarketRow(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return markets, nil
}

// CountMarkets returns the total number of markets.
func (l *Ledger) CountMarkets(ctx context.Context) (int64, error) {
	var count int64
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// Position returns one participant's position on one market.
func (l *Ledger) Position(ctx context.Context, marketID uint64, participant common.Address) (*domain.Position, error) {
	return scanPosition(ctx, l.pool,
		positionSelect+" WHERE market_id = $1::numeric AND participant = $2",
		u64str(marketID), participant.Hex(),
	)
}

// MarketPositions returns every position on a market, ordered by placement.
func (l *Ledger) MarketPositions(ctx context.Context, marketID uint64) ([]*domain.Position, error) {
	rows, err := l.pool.Query(ctx,
		positionSelect+" WHERE market_id = $1::numeric ORDER BY placed_at, participant",
		u64str(marketID),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		pos, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions for market %d: %w", marketID, err)
	}
	return positions, nil
}

// Balance returns the account balance for an owner and asset; missing
// accounts read as zero.
func (l *Ledger) Balance(ctx context.Context, owner, asset common.Address) (uint64, error) {
	var s string
	err := l.pool.QueryRow(ctx,
		"SELECT balance::text FROM accounts WHERE owner = $1 AND asset = $2",
		owner.Hex(), asset.Hex(),
	).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s/%s: %w", owner.Hex(), asset.Hex(), err)
	}
	return parseU64(s)
}

var _ domain.Ledger = (*Ledger)(nil)

// --- shared row scanning ---

const protocolSelect = `
	SELECT admin_address, treasury_address, fee_bps, market_count::text, paused, updated_at
	FROM protocol`

const marketSelect = `
	SELECT id::text, items_hash, item_count, start_ts, end_ts, status,
	       total_raw_stake::text, total_effective_stake::text, effective_stake_per_item,
	       winning_item_index, protocol_fee_amount::text, distributable_pool::text,
	       asset, escrow, is_native, created_at, updated_at
	FROM markets`

const positionSelect = `
	SELECT market_id::text, participant, selected_item_index,
	       raw_stake::text, effective_stake::text, claimed, placed_at, claimed_at
	FROM positions`

func scanProtocol(ctx context.Context, q queryer, sql string, args ...any) (*domain.Protocol, error) {
	var (
		p                    domain.Protocol
		adminHex, tresHex    string
		feeBps               int32
		marketCount          string
	)
	err := q.QueryRow(ctx, sql, args...).Scan(
		&adminHex, &tresHex, &feeBps, &marketCount, &p.Paused, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan protocol: %w", err)
	}

	p.Admin = common.HexToAddress(adminHex)
	p.Treasury = common.HexToAddress(tresHex)
	p.FeeBps = uint16(feeBps)
	if p.MarketCount, err = parseU64(marketCount); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMarket(ctx context.Context, q queryer, sql string, args ...any) (*domain.Market, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query market: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("postgres: query market: %w", err)
		}
		return nil, domain.ErrNotFound
	}
	return scanMarketRow(rows)
}

func scanMarketRow(row pgx.Row) (*domain.Market, error) {
	var (
		m                           domain.Market
		id, rawStake, totalEff      string
		fee, pool                   string
		items                       []string
		itemsHashHex, assetHex      string
		escrowHex, status           string
		itemCount, winningItemIndex int16
	)
	err := row.Scan(
		&id, &itemsHashHex, &itemCount, &m.StartTS, &m.EndTS, &status,
		&rawStake, &totalEff, &items,
		&winningItemIndex, &fee, &pool,
		&assetHex, &escrowHex, &m.IsNative, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan market: %w", err)
	}

	if m.ID, err = parseU64(id); err != nil {
		return nil, err
	}
	m.ItemsHash = common.HexToHash(itemsHashHex)
	m.ItemCount = uint8(itemCount)
	m.Status = domain.MarketStatus(status)
	if m.TotalRawStake, err = parseU64(rawStake); err != nil {
		return nil, err
	}
	if m.TotalEffectiveStake, err = parseU256(totalEff); err != nil {
		return nil, err
	}
	if m.EffectiveStakePerItem, err = itemsFromArray(items); err != nil {
		return nil, err
	}
	m.WinningItemIndex = uint8(winningItemIndex)
	if m.ProtocolFeeAmount, err = parseU64(fee); err != nil {
		return nil, err
	}
	if m.DistributablePool, err = parseU64(pool); err != nil {
		return nil, err
	}
	m.Asset = common.HexToAddress(assetHex)
	m.Escrow = common.HexToAddress(escrowHex)
	return &m, nil
}

func scanPosition(ctx context.Context, q queryer, sql string, args ...any) (*domain.Position, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query position: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("postgres: query position: %w", err)
		}
		return nil, domain.ErrNotFound
	}
	return scanPositionRow(rows)
}

func scanPositionRow(row pgx.Row) (*domain.Position, error) {
	var (
		pos                      domain.Position
		marketID, raw, effective string
		participantHex           string
		selected                 int16
	)
	err := row.Scan(
		&marketID, &participantHex, &selected,
		&raw, &effective, &pos.Claimed, &pos.PlacedAt, &pos.ClaimedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan position: %w", err)
	}

	var parseErr error
	if pos.MarketID, parseErr = parseU64(marketID); parseErr != nil {
		return nil, parseErr
	}
	pos.Participant = common.HexToAddress(participantHex)
	pos.SelectedItemIndex = uint8(selected)
	if pos.RawStake, parseErr = parseU64(raw); parseErr != nil {
		return nil, parseErr
	}
	if pos.EffectiveStake, parseErr = parseU256(effective); parseErr != nil {
		return nil, parseErr
	}
	return &pos, nil
}
