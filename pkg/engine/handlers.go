package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// TransferView is the JSON form of a transfer record. The secret is never exposed.
type TransferView struct {
	ID             string              `json:"id"`
	Role           transfer.Role       `json:"role"`
	State          transfer.StateLabel `json:"state"`
	HashLock       common.Hash         `json:"hashLock"`
	ChannelAddress common.Address      `json:"channelAddress"`
	MsgID          uint64              `json:"msgID"`
	Amount         string              `json:"amount"`
	Expiration     uint64              `json:"expiration"`
	Initiator      common.Address      `json:"initiator"`
	Target         common.Address      `json:"target"`
	From           common.Address      `json:"from"`
}

// NewTransferView converts a record for display
func NewTransferView(ts *transfer.TransferState) *TransferView {
	mt := ts.Transfer
	return &TransferView{
		ID:             ts.ID,
		Role:           ts.Role,
		State:          ts.State,
		HashLock:       mt.Lock.HashLock,
		ChannelAddress: mt.ChannelAddress,
		MsgID:          mt.MsgID,
		Amount:         mt.Lock.Amount.Dec(),
		Expiration:     mt.Lock.Expiration,
		Initiator:      mt.Initiator,
		Target:         mt.Target,
		From:           ts.From,
	}
}

// InitiateTransferRequest is the body of POST /transfers
type InitiateTransferRequest struct {
	ChannelAddress common.Address  `json:"channelAddress"`
	Target         *common.Address `json:"target,omitempty"`
	Amount         string          `json:"amount"`
	Expiration     uint64          `json:"expiration,omitempty"`
}

// RegisterChannelRequest is the body of POST /channels
type RegisterChannelRequest struct {
	Address common.Address `json:"address"`
	Partner common.Address `json:"partner"`
}

// DirectTransferRequest is the body of POST /channels/{address}/direct
type DirectTransferRequest struct {
	Amount string `json:"amount"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	Address     string `json:"address"`
	BlockHeight uint64 `json:"blockHeight"`
	Error       string `json:"error,omitempty"`
}

// handleMessage handles inbound peer messages
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	ack, accepted, err := s.engine.handleInbound(r.Context(), body)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	data, err := messages.Encode(ack)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if accepted {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusAccepted)
	}
	_, _ = w.Write(data)
}

func (s *Server) handleRegisterChannel(w http.ResponseWriter, r *http.Request) {
	var req RegisterChannelRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Failed to parse request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Address == (common.Address{}) || req.Partner == (common.Address{}) {
		http.Error(w, "address and partner are required", http.StatusBadRequest)
		return
	}

	if _, err := s.engine.RegisterChannel(req.Address, req.Partner); err != nil {
		if errors.Is(err, ErrChannelExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.engine.logger.Sugar().Errorw("Failed to register channel", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleDirectTransfer(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !common.IsHexAddress(address) {
		http.Error(w, "invalid channel address", http.StatusBadRequest)
		return
	}
	var req DirectTransferRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Failed to parse request: "+err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	ack, err := s.engine.SendDirectTransfer(r.Context(), common.HexToAddress(address), *amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	data, err := messages.Encode(ack)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req InitiateTransferRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Failed to parse request: "+err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	tr := TransferRequest{
		ChannelAddress: req.ChannelAddress,
		Amount:         *amount,
		Expiration:     req.Expiration,
	}
	if req.Target != nil {
		tr.Target = *req.Target
	}

	ts, err := s.engine.InitiateTransfer(r.Context(), tr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewTransferView(ts))
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	records := s.engine.ListTransfers()
	views := make([]*TransferView, 0, len(records))
	for _, ts := range records {
		views = append(views, NewTransferView(ts))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	ts, err := s.engine.GetTransfer(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTransferView(ts))
}

func (s *Server) handleCancelTransfer(w http.ResponseWriter, r *http.Request) {
	ts, err := s.engine.CancelTransfer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTransferView(ts))
}

func (s *Server) handlePurgeTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.PurgeTransfer(r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Address:     s.engine.Address.Hex(),
		BlockHeight: s.engine.CurrentBlockHeight(),
	}
	status := http.StatusOK
	if err := s.engine.store.HealthCheck(); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownTransfer), errors.Is(err, ErrUnknownChannel):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrTransferActive):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
