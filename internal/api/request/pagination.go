package request

import (
	"net/http"
	"strconv"

	"github.com/edvin/backupvault/internal/platform"
)

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ParsePagination extracts limit and cursor from query parameters. A cursor
// that is not a backup id is ignored and the first page is returned.
func ParsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: DefaultLimit}

	if cursor := r.URL.Query().Get("cursor"); platform.IsID(cursor) {
		p.Cursor = cursor
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			p.Limit = limit
		}
	}

	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p
}
