package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/engine"
)

// PositionService defines the methods the position handler requires from the
// service layer.
type PositionService interface {
	PlaceStake(ctx context.Context, marketID uint64, params engine.StakeParams) (*domain.Position, error)
	Claim(ctx context.Context, marketID uint64, participant common.Address) (uint64, error)
	Get(ctx context.Context, marketID uint64, participant common.Address) (*domain.Position, error)
	ListByMarket(ctx context.Context, marketID uint64) ([]*domain.Position, error)
}

// PositionHandler serves stake, claim, and position query endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// stakeRequest carries one stake. effective_stake is a decimal string since
// boosted stakes can exceed uint64 range; when omitted it defaults to the raw
// stake (multiplier 1).
type stakeRequest struct {
	Participant    string `json:"participant"`
	ItemIndex      uint8  `json:"item_index"`
	RawStake       uint64 `json:"raw_stake"`
	EffectiveStake string `json:"effective_stake,omitempty"`
}

// PlaceStake applies a stake to an open market.
// POST /api/markets/{id}/stakes
func (h *PositionHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	participant, err := parseAddress("participant", req.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := engine.StakeParams{
		Participant:       participant,
		SelectedItemIndex: req.ItemIndex,
		RawStake:          req.RawStake,
	}
	if req.EffectiveStake == "" {
		params.EffectiveStake.SetUint64(req.RawStake)
	} else {
		eff, err := uint256.FromDecimal(req.EffectiveStake)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid effective_stake %q", req.EffectiveStake))
			return
		}
		params.EffectiveStake = *eff
	}

	pos, err := h.positions.PlaceStake(r.Context(), id, params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionResponse(pos))
}

type claimRequest struct {
	Participant string `json:"participant"`
}

type claimResponse struct {
	MarketID    uint64 `json:"market_id"`
	Participant string `json:"participant"`
	Payout      uint64 `json:"payout"`
}

// Claim pays out a winning position from a settled market.
// POST /api/markets/{id}/claims
func (h *PositionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	participant, err := parseAddress("participant", req.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payout, err := h.positions.Claim(r.Context(), id, participant)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		MarketID:    id,
		Participant: participant.Hex(),
		Payout:      payout,
	})
}

// ListByMarket returns every position on a market.
// GET /api/markets/{id}/positions
func (h *PositionHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	positions, err := h.positions.ListByMarket(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for _, pos := range positions {
		out = append(out, toPositionResponse(pos))
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}

// Get returns one participant's position on a market.
// GET /api/markets/{id}/positions/{participant}
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	participant, err := parseAddress("participant", r.PathValue("participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.positions.Get(r.Context(), id, participant)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionResponse(pos))
}
