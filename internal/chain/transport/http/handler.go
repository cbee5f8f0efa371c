package http

import (
	"encoding/json"
	"net/http"

	chainservice "subindex/internal/chain/service"
	"subindex/internal/config"
	"subindex/pkg/hash"
	"subindex/pkg/jwt"
)

type Handler struct {
	Poller      *chainservice.Poller
	Checkpoints chainservice.CheckpointStore
	Client      chainservice.RPCClient
	cfg         *config.Config
}

func NewChainHandler(poller *chainservice.Poller, checkpoints chainservice.CheckpointStore, client chainservice.RPCClient, cfg *config.Config) *Handler {
	return &Handler{
		Poller:      poller,
		Checkpoints: checkpoints,
		Client:      client,
		cfg:         cfg,
	}
}

// Status reports indexing progress relative to the chain head.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Checkpoints.Get(r.Context())
	if err != nil {
		http.Error(w, "failed to load checkpoint", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"checkpointBlock": uint64(0),
		"headBlock":       uint64(0),
		"lag":             uint64(0),
	}
	if cp != nil {
		resp["checkpointBlock"] = cp.BlockNumber
	}
	if head, err := h.Client.BlockNumber(r.Context()); err == nil {
		resp["headBlock"] = head
		if cp != nil && head > cp.BlockNumber {
			resp["lag"] = head - cp.BlockNumber
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Login exchanges the operator password for a JWT used on admin routes.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if h.cfg.AdminPasswordHash == "" || !hash.CheckPassword(h.cfg.AdminPasswordHash, req.Password) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := jwt.GenerateToken(h.cfg.JWTSecret, "operator")
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Reindex schedules a reset-and-replay from the configured start block.
// The actual reset runs on the poller goroutine to keep a single writer.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	h.Poller.RequestReindex()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "reindex scheduled"})
}
