package http

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subindex/internal/chain"
	"subindex/internal/subscription/repository"
	"subindex/internal/subscription/service"
)

const (
	adminAddr = "0x1111111111111111111111111111111111111111"
	userAddr  = "0x2222222222222222222222222222222222222222"
)

func seedHandler(t *testing.T) (*Handler, *service.Service) {
	t.Helper()
	svc := service.NewService(repository.NewMemorySubscriptionRepository())
	return NewSubscriptionHandler(svc), svc
}

func offer(t *testing.T, svc *service.Service, admin string, block uint64) {
	t.Helper()
	require.NoError(t, svc.HandleOffered(context.Background(), chain.SubscriptionOffered{
		Admin:           admin,
		User:            userAddr,
		Price:           big.NewInt(100),
		PaymentInterval: 86400,
		Duration:        2592000,
		Provenance: chain.Provenance{
			BlockNumber: block,
			TxHash:      "0xf00d",
			LogIndex:    0,
		},
	}))
}

func getJSON(t *testing.T, h http.HandlerFunc, target string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestGetInactiveReturnsPendingOffers(t *testing.T) {
	h, svc := seedHandler(t)
	offer(t, svc, adminAddr, 10)

	rec, body := getJSON(t, h.GetInactive, "/api/subscriptions/inactive?user="+userAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, body, 1)
	assert.Equal(t, adminAddr, body[0]["admin"])
	assert.Equal(t, userAddr, body[0]["user"])
	assert.Equal(t, "100", body[0]["price"])
	assert.Equal(t, "0xf00d", body[0]["transactionHash"])
}

func TestGetInactiveOmitsTombstonedOffers(t *testing.T) {
	h, svc := seedHandler(t)
	offer(t, svc, adminAddr, 10)

	require.NoError(t, svc.HandleActivated(context.Background(), chain.SubscriptionActivated{
		Admin:           adminAddr,
		User:            userAddr,
		Price:           big.NewInt(100),
		PaymentInterval: 86400,
		StartTime:       1000,
		EndTime:         2593000,
		Provenance:      chain.Provenance{BlockNumber: 11, TxHash: "0xf00d", LogIndex: 1},
	}))

	rec, body := getJSON(t, h.GetInactive, "/api/subscriptions/inactive?user="+userAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body)

	rec, body = getJSON(t, h.GetActive, "/api/subscriptions/active?user="+userAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body, 1)
	assert.Equal(t, float64(86400+1000), body[0]["nextPaymentTime"])
}

func TestGetInactiveDefaultsToFivePerPage(t *testing.T) {
	h, svc := seedHandler(t)
	for i := 0; i < 7; i++ {
		offer(t, svc, fmt.Sprintf("0x%040x", i+1), uint64(10+i))
	}

	rec, body := getJSON(t, h.GetInactive, "/api/subscriptions/inactive?user="+userAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body, 5)

	rec, body = getJSON(t, h.GetInactive, "/api/subscriptions/inactive?user="+userAddr+"&limit=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body, 7)
}

func TestListEndpointsRejectBadInput(t *testing.T) {
	h, _ := seedHandler(t)

	cases := map[string]string{
		"missing user":    "/api/subscriptions/inactive",
		"malformed user":  "/api/subscriptions/inactive?user=nothex",
		"short user":      "/api/subscriptions/inactive?user=0x1234",
		"limit not a num": "/api/subscriptions/inactive?user=" + userAddr + "&limit=abc",
		"limit too large": "/api/subscriptions/inactive?user=" + userAddr + "&limit=101",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := getJSON(t, h.GetInactive, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetActiveReturnsEmptyArrayNotNull(t *testing.T) {
	h, _ := seedHandler(t)

	rec := httptest.NewRecorder()
	h.GetActive(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions/active?user="+userAddr, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
