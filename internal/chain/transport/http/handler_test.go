package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subindex/internal/chain"
	chainrepository "subindex/internal/chain/repository"
	chainservice "subindex/internal/chain/service"
	"subindex/internal/config"
	"subindex/pkg/hash"
	"subindex/pkg/middleware"
)

type stubRPCClient struct {
	head uint64
}

func (c *stubRPCClient) BlockNumber(ctx context.Context) (uint64, error) { return c.head, nil }
func (c *stubRPCClient) GetLogs(ctx context.Context, from, to uint64, address string) ([]chain.Log, error) {
	return nil, nil
}
func (c *stubRPCClient) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return 0, nil
}

func newTestHandler(t *testing.T, cfg *config.Config) (*Handler, *chainrepository.MemoryCheckpointRepository) {
	t.Helper()
	checkpoints := chainrepository.NewMemoryCheckpointRepository()
	poller := chainservice.NewPoller(&stubRPCClient{head: 120}, nil, checkpoints, &config.Config{
		PollInterval: time.Hour,
	})
	return NewChainHandler(poller, checkpoints, &stubRPCClient{head: 120}, cfg), checkpoints
}

func TestReindexAcceptsBodylessPost(t *testing.T) {
	h, _ := newTestHandler(t, &config.Config{})

	// mirrors the production chain: the request validation middleware is
	// router-wide and must let a POST without a body through
	r := chi.NewRouter()
	r.Use(middleware.ValidateRequest)
	r.Post("/api/admin/reindex", h.Reindex)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/reindex", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestStatusReportsCheckpointAndLag(t *testing.T) {
	h, checkpoints := newTestHandler(t, &config.Config{})
	require.NoError(t, checkpoints.Save(context.Background(), chain.Checkpoint{BlockNumber: 100}))

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"checkpointBlock":100,"headBlock":120,"lag":20}`, rec.Body.String())
}

func TestLoginExchangesPasswordForToken(t *testing.T) {
	hashed, err := hash.HashPassword("hunter2")
	require.NoError(t, err)
	h, _ := newTestHandler(t, &config.Config{JWTSecret: "secret", AdminPasswordHash: hashed})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"password":"hunter2"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "token")

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRefusesWhenNoPasswordConfigured(t *testing.T) {
	h, _ := newTestHandler(t, &config.Config{JWTSecret: "secret"})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"password":""}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
