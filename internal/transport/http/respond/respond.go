package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quickserve/pos-order/internal/apperr"
)

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSON writes a success payload.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

// Error maps an application error kind to an HTTP status and writes the
// failure body. Unknown errors surface as a generic internal failure.
func Error(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	JSON(w, status, errorBody{Kind: kind.String(), Message: apperr.MessageOf(err)})
}
