package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse is the standard shape for validation errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidateRequest rejects obviously malformed requests before they reach a
// handler. It does not require a body: some POST routes (reindex) take
// none, those that do use RequireBody.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				writeValidationError(w, "Invalid Content-Type, expected application/json")
				return
			}
		}

		// 1MB is plenty for the admin endpoints, the only ones with bodies.
		const maxSize = 1 << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)

		next.ServeHTTP(w, r)
	})
}

// RequireBody guards routes whose handler decodes a JSON body.
func RequireBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 {
			writeValidationError(w, "Request body cannot be empty")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
