package handler

import (
	"time"

	"github.com/kleoslabs/kleos/internal/domain"
)

// Response shapes. Amounts that exceed uint64 range travel as decimal
// strings.

type protocolResponse struct {
	Admin       string    `json:"admin"`
	Treasury    string    `json:"treasury"`
	FeeBps      uint16    `json:"fee_bps"`
	MarketCount uint64    `json:"market_count"`
	Paused      bool      `json:"paused"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProtocolResponse(p *domain.Protocol) protocolResponse {
	return protocolResponse{
		Admin:       p.Admin.Hex(),
		Treasury:    p.Treasury.Hex(),
		FeeBps:      p.FeeBps,
		MarketCount: p.MarketCount,
		Paused:      p.Paused,
		UpdatedAt:   p.UpdatedAt,
	}
}

type marketResponse struct {
	ID                    uint64    `json:"id"`
	ItemsHash             string    `json:"items_hash"`
	ItemCount             uint8     `json:"item_count"`
	StartTS               time.Time `json:"start_ts"`
	EndTS                 time.Time `json:"end_ts"`
	Status                string    `json:"status"`
	TotalRawStake         uint64    `json:"total_raw_stake"`
	TotalEffectiveStake   string    `json:"total_effective_stake"`
	EffectiveStakePerItem []string  `json:"effective_stake_per_item"`
	WinningItemIndex      *uint8    `json:"winning_item_index,omitempty"`
	ProtocolFeeAmount     uint64    `json:"protocol_fee_amount"`
	DistributablePool     uint64    `json:"distributable_pool"`
	Asset                 string    `json:"asset"`
	Escrow                string    `json:"escrow"`
	IsNative              bool      `json:"is_native"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toMarketResponse(m *domain.Market) marketResponse {
	perItem := make([]string, m.ItemCount)
	for i := range perItem {
		perItem[i] = m.EffectiveStakePerItem[i].Dec()
	}

	resp := marketResponse{
		ID:                    m.ID,
		ItemsHash:             m.ItemsHash.Hex(),
		ItemCount:             m.ItemCount,
		StartTS:               m.StartTS,
		EndTS:                 m.EndTS,
		Status:                string(m.Status),
		TotalRawStake:         m.TotalRawStake,
		TotalEffectiveStake:   m.TotalEffectiveStake.Dec(),
		EffectiveStakePerItem: perItem,
		ProtocolFeeAmount:     m.ProtocolFeeAmount,
		DistributablePool:     m.DistributablePool,
		Asset:                 m.Asset.Hex(),
		Escrow:                m.Escrow.Hex(),
		IsNative:              m.IsNative,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.Status == domain.MarketStatusSettled {
		idx := m.WinningItemIndex
		resp.WinningItemIndex = &idx
	}
	return resp
}

type positionResponse struct {
	MarketID          uint64     `json:"market_id"`
	Participant       string     `json:"participant"`
	SelectedItemIndex uint8      `json:"selected_item_index"`
	RawStake          uint64     `json:"raw_stake"`
	EffectiveStake    string     `json:"effective_stake"`
	Claimed           bool       `json:"claimed"`
	PlacedAt          time.Time  `json:"placed_at"`
	ClaimedAt         *time.Time `json:"claimed_at,omitempty"`
}

func toPositionResponse(pos *domain.Position) positionResponse {
	return positionResponse{
		MarketID:          pos.MarketID,
		Participant:       pos.Participant.Hex(),
		SelectedItemIndex: pos.SelectedItemIndex,
		RawStake:          pos.RawStake,
		EffectiveStake:    pos.EffectiveStake.Dec(),
		Claimed:           pos.Claimed,
		PlacedAt:          pos.PlacedAt,
		ClaimedAt:         pos.ClaimedAt,
	}
}
