package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"subindex/internal/audit/service"
)

type Handler struct {
	AuditService *service.Service
	validate     *validator.Validate
}

func NewAuditHandler(as *service.Service) *Handler {
	return &Handler{
		AuditService: as,
		validate:     validator.New(),
	}
}

type withdrawalResponse struct {
	TxHash         string `json:"transactionHash"`
	LogIndex       uint32 `json:"logIndex"`
	Kind           string `json:"kind"`
	Account        string `json:"account"`
	Amount         string `json:"amount"`
	BlockNumber    uint64 `json:"blockNumber"`
	BlockTimestamp uint64 `json:"blockTimestamp"`
}

type ownershipResponse struct {
	TxHash        string `json:"transactionHash"`
	LogIndex      uint32 `json:"logIndex"`
	PreviousOwner string `json:"previousOwner"`
	NewOwner      string `json:"newOwner"`
	BlockNumber   uint64 `json:"blockNumber"`
}

type dayTickResponse struct {
	TxHash      string `json:"transactionHash"`
	LogIndex    uint32 `json:"logIndex"`
	Day         uint64 `json:"day"`
	BlockNumber uint64 `json:"blockNumber"`
}

// GetWithdrawals lists fee/revenue withdrawals for one account.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if err := h.validate.Var(account, "required,eth_addr"); err != nil {
		http.Error(w, "invalid account parameter", http.StatusBadRequest)
		return
	}

	ws, err := h.AuditService.ListWithdrawalsByAccount(r.Context(), account, limitParam(r))
	if err != nil {
		http.Error(w, "failed to list withdrawals", http.StatusInternalServerError)
		return
	}

	resp := make([]withdrawalResponse, 0, len(ws))
	for _, wd := range ws {
		resp = append(resp, withdrawalResponse{
			TxHash:         wd.TxHash,
			LogIndex:       wd.LogIndex,
			Kind:           wd.Kind,
			Account:        wd.Account,
			Amount:         wd.Amount.String(),
			BlockNumber:    wd.BlockNumber,
			BlockTimestamp: wd.BlockTimestamp,
		})
	}
	writeJSON(w, resp)
}

func (h *Handler) GetOwnershipTransfers(w http.ResponseWriter, r *http.Request) {
	ts, err := h.AuditService.ListOwnershipTransfers(r.Context(), limitParam(r))
	if err != nil {
		http.Error(w, "failed to list ownership transfers", http.StatusInternalServerError)
		return
	}

	resp := make([]ownershipResponse, 0, len(ts))
	for _, t := range ts {
		resp = append(resp, ownershipResponse{
			TxHash:        t.TxHash,
			LogIndex:      t.LogIndex,
			PreviousOwner: t.PreviousOwner,
			NewOwner:      t.NewOwner,
			BlockNumber:   t.BlockNumber,
		})
	}
	writeJSON(w, resp)
}

func (h *Handler) GetDayTicks(w http.ResponseWriter, r *http.Request) {
	ds, err := h.AuditService.ListDayTicks(r.Context(), limitParam(r))
	if err != nil {
		http.Error(w, "failed to list day ticks", http.StatusInternalServerError)
		return
	}

	resp := make([]dayTickResponse, 0, len(ds))
	for _, d := range ds {
		resp = append(resp, dayTickResponse{
			TxHash:      d.TxHash,
			LogIndex:    d.LogIndex,
			Day:         d.Day,
			BlockNumber: d.BlockNumber,
		})
	}
	writeJSON(w, resp)
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
