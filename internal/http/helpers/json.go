package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/samuvale95/swift-study-box-be/internal/http/errors"
)

// ReadJSON decodes the body tolerantly (unknown fields pass), requires a
// JSON content type and caps the body at 1MB. Returns false after having
// written the error response itself.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("Content-Type must be application/json"))
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		apperrors.WriteError(w, apperrors.ErrInvalidJSON)
		return false
	}
	return true
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
