package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"subindex/internal/subscription/service"
)

type Handler struct {
	SubscriptionService *service.Service
	validate            *validator.Validate
}

func NewSubscriptionHandler(ss *service.Service) *Handler {
	return &Handler{
		SubscriptionService: ss,
		validate:            validator.New(),
	}
}

// listQuery carries the query-string filter for both list endpoints.
type listQuery struct {
	User  string `validate:"required,eth_addr"`
	Limit int    `validate:"gte=0,lte=100"`
}

// inactiveResponse mirrors the field names the original subgraph exposed.
type inactiveResponse struct {
	ID              string `json:"id"`
	Admin           string `json:"admin"`
	User            string `json:"user"`
	Price           string `json:"price"`
	PaymentInterval uint64 `json:"paymentInterval"`
	Duration        uint64 `json:"duration"`
	BlockNumber     uint64 `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
}

type activeResponse struct {
	ID              string `json:"id"`
	Admin           string `json:"admin"`
	User            string `json:"user"`
	Price           string `json:"price"`
	PaymentInterval uint64 `json:"paymentInterval"`
	StartTime       uint64 `json:"startTime"`
	EndTime         uint64 `json:"endTime"`
	NextPaymentTime uint64 `json:"nextPaymentTime"`
	BlockNumber     uint64 `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
}

func (h *Handler) parseQuery(r *http.Request) (listQuery, error) {
	q := listQuery{User: r.URL.Query().Get("user")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, err
		}
		q.Limit = n
	}
	return q, h.validate.Struct(q)
}

// GetInactive lists live pending offers for a user. Tombstoned rows are
// filtered out even though they still exist in the store.
func (h *Handler) GetInactive(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, "invalid user or limit parameter", http.StatusBadRequest)
		return
	}

	subs, err := h.SubscriptionService.ListInactiveByUser(r.Context(), q.User, q.Limit)
	if err != nil {
		http.Error(w, "failed to list subscriptions", http.StatusInternalServerError)
		return
	}

	resp := make([]inactiveResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, inactiveResponse{
			ID:              sub.ID,
			Admin:           sub.Admin,
			User:            sub.User,
			Price:           sub.Price.String(),
			PaymentInterval: sub.PaymentInterval,
			Duration:        sub.Duration,
			BlockNumber:     sub.BlockNumber,
			TransactionHash: sub.TransactionHash,
		})
	}

	writeJSON(w, resp)
}

// GetActive lists live active subscriptions for a user.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, "invalid user or limit parameter", http.StatusBadRequest)
		return
	}

	subs, err := h.SubscriptionService.ListActiveByUser(r.Context(), q.User, q.Limit)
	if err != nil {
		http.Error(w, "failed to list subscriptions", http.StatusInternalServerError)
		return
	}

	resp := make([]activeResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, activeResponse{
			ID:              sub.ID,
			Admin:           sub.Admin,
			User:            sub.User,
			Price:           sub.Price.String(),
			PaymentInterval: sub.PaymentInterval,
			StartTime:       sub.StartTime,
			EndTime:         sub.EndTime,
			NextPaymentTime: sub.NextPaymentTime,
			BlockNumber:     sub.BlockNumber,
			TransactionHash: sub.TransactionHash,
		})
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
