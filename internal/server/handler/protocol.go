package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
	"github.com/kleoslabs/kleos/internal/service"
)

// ProtocolService defines the methods the protocol handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type ProtocolService interface {
	Initialize(ctx context.Context, admin, treasury common.Address, feeBps uint16) (*domain.Protocol, error)
	Update(ctx context.Context, caller common.Address, upd service.ProtocolUpdate) (*domain.Protocol, error)
	Get(ctx context.Context) (*domain.Protocol, error)
}

// ProtocolHandler serves the protocol singleton endpoints.
type ProtocolHandler struct {
	protocols ProtocolService
	logger    *slog.Logger
}

// NewProtocolHandler creates a ProtocolHandler with the given service and logger.
func NewProtocolHandler(protocols ProtocolService, logger *slog.Logger) *ProtocolHandler {
	return &ProtocolHandler{
		protocols: protocols,
		logger:    logger,
	}
}

type initializeRequest struct {
	Admin    string `json:"admin"`
	Treasury string `json:"treasury"`
	FeeBps   uint16 `json:"fee_bps"`
}

// Initialize creates the protocol singleton. One-shot; a second call returns
// 409.
// POST /api/protocol/initialize
func (h *ProtocolHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	admin, err := parseAddress("admin", req.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	treasury, err := parseAddress("treasury", req.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.protocols.Initialize(r.Context(), admin, treasury, req.FeeBps)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: initialize protocol failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProtocolResponse(p))
}

type updateProtocolRequest struct {
	Caller   string  `json:"caller"`
	FeeBps   *uint16 `json:"fee_bps,omitempty"`
	Treasury *string `json:"treasury,omitempty"`
	Paused   *bool   `json:"paused,omitempty"`
}

// Update applies an admin update to the protocol singleton. Omitted fields
// keep their current value.
// PUT /api/protocol
func (h *ProtocolHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProtocolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := service.ProtocolUpdate{
		FeeBps: req.FeeBps,
		Paused: req.Paused,
	}
	if req.Treasury != nil {
		treasury, err := parseAddress("treasury", *req.Treasury)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.Treasury = &treasury
	}

	p, err := h.protocols.Update(r.Context(), caller, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProtocolResponse(p))
}

// Get returns the protocol singleton.
// GET /api/protocol
func (h *ProtocolHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.protocols.Get(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProtocolResponse(p))
}
