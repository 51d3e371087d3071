package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/engine"
)

// MarketService defines the methods the market handler requires from the
// service layer.
type MarketService interface {
	Create(ctx context.Context, caller common.Address, params engine.MarketParams) (*domain.Market, error)
	Edit(ctx context.Context, caller common.Address, id uint64, params engine.MarketParams) (*domain.Market, error)
	Open(ctx context.Context, caller common.Address, id uint64) (*domain.Market, error)
	Close(ctx context.Context, id uint64) (*domain.Market, error)
	Settle(ctx context.Context, caller common.Address, id uint64, winningItemIndex uint8) (*domain.Market, error)
	Get(ctx context.Context, id uint64) (*domain.Market, error)
	List(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error)
}

// MarketCounter exposes the total market count for list metadata.
type MarketCounter interface {
	CountMarkets(ctx context.Context) (int64, error)
}

// MarketHandler serves market lifecycle and query endpoints.
type MarketHandler struct {
	markets MarketService
	counter MarketCounter
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, counter MarketCounter, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		counter: counter,
		logger:  logger,
	}
}

// marketParamsRequest is shared by create and edit. Callers either send the
// item labels, which the server hashes, or a precomputed items_hash with an
// explicit item_count.
type marketParamsRequest struct {
	Caller    string    `json:"caller"`
	StartTS   time.Time `json:"start_ts"`
	EndTS     time.Time `json:"end_ts"`
	Items     []string  `json:"items,omitempty"`
	ItemsHash string    `json:"items_hash,omitempty"`
	ItemCount uint8     `json:"item_count,omitempty"`
	Asset     string    `json:"asset,omitempty"`
	Native    bool      `json:"native,omitempty"`
}

func (req *marketParamsRequest) toParams() (common.Address, engine.MarketParams, error) {
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return common.Address{}, engine.MarketParams{}, err
	}

	params := engine.MarketParams{
		StartTS: req.StartTS,
		EndTS:   req.EndTS,
		Native:  req.Native,
	}

	switch {
	case len(req.Items) > 0:
		if req.ItemsHash != "" {
			return common.Address{}, engine.MarketParams{}, fmt.Errorf("items and items_hash are mutually exclusive")
		}
		if len(req.Items) > domain.MaxItems {
			return common.Address{}, engine.MarketParams{}, fmt.Errorf("too many items: %d (max %d)", len(req.Items), domain.MaxItems)
		}
		params.ItemsHash = domain.HashItems(req.Items)
		params.ItemCount = uint8(len(req.Items))
	case req.ItemsHash != "":
		params.ItemsHash = common.HexToHash(req.ItemsHash)
		params.ItemCount = req.ItemCount
	default:
		return common.Address{}, engine.MarketParams{}, fmt.Errorf("either items or items_hash is required")
	}

	if !req.Native {
		asset, err := parseAddress("asset", req.Asset)
		if err != nil {
			return common.Address{}, engine.MarketParams{}, err
		}
		params.Asset = asset
	}
	return caller, params, nil
}

// Create registers a new Draft market.
// POST /api/markets
func (h *MarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req marketParamsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, params, err := req.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.markets.Create(r.Context(), caller, params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarketResponse(m))
}

// Edit overwrites the parameters of a Draft market with no stake.
// PUT /api/markets/{id}
func (h *MarketHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req marketParamsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, params, err := req.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.markets.Edit(r.Context(), caller, id, params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

type callerRequest struct {
	Caller string `json:"caller"`
}

// Open transitions a Draft market to Open.
// POST /api/markets/{id}/open
func (h *MarketHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req callerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.markets.Open(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

// Close transitions an Open market to Closed once its window ended. Closing
// is permissionless, so no body is required.
// POST /api/markets/{id}/close
func (h *MarketHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.markets.Close(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

type settleRequest struct {
	Caller           string `json:"caller"`
	WinningItemIndex uint8  `json:"winning_item_index"`
}

// Settle resolves a Closed market with the winning item.
// POST /api/markets/{id}/settle
func (h *MarketHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.markets.Settle(r.Context(), caller, id, req.WinningItemIndex)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: settle failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []marketResponse `json:"markets"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// List returns markets ordered by identity with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.counter.CountMarkets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: out,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// Get returns a single market by identity.
// GET /api/markets/{id}
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}
