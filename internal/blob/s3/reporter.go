package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kleoslabs/kleos/internal/domain"
)

// multipartThreshold is the encoded-report size above which the reporter
// switches to the multipart upload path.
const multipartThreshold = 4 * 1024 * 1024

// Reporter archives settlement reports: after a market settles, one JSON
// document with the market's final accounting and every position is uploaded
// per market. Settlement is single-shot, so an existing report is never
// overwritten.
type Reporter struct {
	writer *Writer
	reader *Reader
}

// NewReporter creates a Reporter on the given client.
func NewReporter(c *Client) *Reporter {
	return &Reporter{
		writer: NewWriter(c),
		reader: NewReader(c),
	}
}

// settlementReport is the archived JSON document.
type settlementReport struct {
	MarketID          uint64           `json:"market_id"`
	ItemsHash         string           `json:"items_hash"`
	ItemCount         uint8            `json:"item_count"`
	WinningItemIndex  uint8            `json:"winning_item_index"`
	TotalRawStake     uint64           `json:"total_raw_stake"`
	ProtocolFeeAmount uint64           `json:"protocol_fee_amount"`
	DistributablePool uint64           `json:"distributable_pool"`
	Asset             string           `json:"asset"`
	Escrow            string           `json:"escrow"`
	IsNative          bool             `json:"is_native"`
	SettledAt         time.Time        `json:"settled_at"`
	Positions         []reportPosition `json:"positions"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

type reportPosition struct {
	Participant       string `json:"participant"`
	SelectedItemIndex uint8  `json:"selected_item_index"`
	RawStake          uint64 `json:"raw_stake"`
	EffectiveStake    string `json:"effective_stake"`
	Won               bool   `json:"won"`
}

func reportKey(marketID uint64) string {
	return fmt.Sprintf("reports/markets/%d/settlement.json", marketID)
}

// ArchiveSettlement serializes the settled market and its positions and
// uploads the report. It returns the object key. If a report for the market
// already exists it is left untouched and its key returned.
func (rp *Reporter) ArchiveSettlement(ctx context.Context, m *domain.Market, positions []*domain.Position) (string, error) {
	if m.Status != domain.MarketStatusSettled {
		return "", fmt.Errorf("s3blob: market %d is not settled", m.ID)
	}

	key := reportKey(m.ID)
	exists, err := rp.reader.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return key, nil
	}

	report := settlementReport{
		MarketID:          m.ID,
		ItemsHash:         m.ItemsHash.Hex(),
		ItemCount:         m.ItemCount,
		WinningItemIndex:  m.WinningItemIndex,
		TotalRawStake:     m.TotalRawStake,
		ProtocolFeeAmount: m.ProtocolFeeAmount,
		DistributablePool: m.DistributablePool,
		Asset:             m.Asset.Hex(),
		Escrow:            m.Escrow.Hex(),
		IsNative:          m.IsNative,
		SettledAt:         m.UpdatedAt,
		Positions:         make([]reportPosition, 0, len(positions)),
		GeneratedAt:       time.Now().UTC(),
	}
	for _, pos := range positions {
		report.Positions = append(report.Positions, reportPosition{
			Participant:       pos.Participant.Hex(),
			SelectedItemIndex: pos.SelectedItemIndex,
			RawStake:          pos.RawStake,
			EffectiveStake:    pos.EffectiveStake.Dec(),
			Won:               pos.SelectedItemIndex == m.WinningItemIndex,
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal settlement report for market %d: %w", m.ID, err)
	}

	if len(data) > multipartThreshold {
		if err := rp.writer.PutMultipart(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			return "", err
		}
		return key, nil
	}
	if err := rp.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
