package shared

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// ListParams carries limit/offset pagination and an optional ordering for
// listing endpoints. A zero Limit means no limit.
type ListParams struct {
	Limit   int
	Offset  int
	OrderBy string
	Desc    bool
}

// ParseListParams reads limit, offset and order_list query parameters.
// order_list uses the asc_<column>/desc_<column> form; allowed names the
// sortable columns of the listing.
func ParseListParams(r *http.Request, allowed ...string) (ListParams, error) {
	var params ListParams
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return params, fmt.Errorf("%w: bad limit %q", httpx.ErrValidation, raw)
		}
		params.Limit = v
	}
	if raw := query.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return params, fmt.Errorf("%w: bad offset %q", httpx.ErrValidation, raw)
		}
		params.Offset = v
	}
	if raw := query.Get("order_list"); raw != "" {
		direction, column, ok := strings.Cut(raw, "_")
		if !ok {
			return params, fmt.Errorf("%w: bad order_list %q", httpx.ErrValidation, raw)
		}
		switch direction {
		case "asc":
		case "desc":
			params.Desc = true
		default:
			return params, fmt.Errorf("%w: unexpected order prefix %q", httpx.ErrValidation, direction)
		}
		found := false
		for _, name := range allowed {
			if name == column {
				found = true
				break
			}
		}
		if !found {
			return params, fmt.Errorf("%w: cannot order by %q", httpx.ErrValidation, column)
		}
		params.OrderBy = column
	}
	return params, nil
}

// SetTotalCount exposes the listing total to clients.
func SetTotalCount(w http.ResponseWriter, total int64) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
}
