package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/backupvault/internal/core"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteServiceError maps a core error to a status code and a fixed message.
// Internal detail never reaches the client; unexpected errors are logged
// through the request logger on r.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, core.ErrAccessDenied):
		WriteError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, core.ErrQuotaExceeded):
		WriteError(w, http.StatusTooManyRequests, core.ErrQuotaExceeded.Error())
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}
