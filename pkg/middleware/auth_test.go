package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subindex/pkg/jwt"
)

func protected(t *testing.T, mw func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subject, ok := r.Context().Value(SubjectKey).(string); ok {
			w.Write([]byte(subject))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestJWTAuthAcceptsIssuedToken(t *testing.T) {
	token, err := jwt.GenerateToken("secret", "operator")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/reindex", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protected(t, JWTAuth("secret")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator", rec.Body.String())
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	wrongSecret, err := jwt.GenerateToken("other-secret", "operator")
	require.NoError(t, err)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.token",
		"wrong secret":   "Bearer " + wrongSecret,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/admin/reindex", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			protected(t, JWTAuth("secret")).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestBasicAuthGuardsMetrics(t *testing.T) {
	mw := BasicAuth("prometheus", "scrape-pass")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("prometheus:scrape-pass")))
	protected(t, mw).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("prometheus:wrong")))
	protected(t, mw).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
