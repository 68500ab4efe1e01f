package handlers

import (
	"net/http"
	"strconv"

	"truckmarket/internal/types"
)

// page is a limit/offset window over a ranked result.
type page struct {
	Limit  int
	Offset int
}

// parsePage reads limit and offset from the query string. A missing limit
// uses types.DefaultPageLimit.
func parsePage(r *http.Request) (page, error) {
	p := page{Limit: types.DefaultPageLimit}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > types.MaxPageLimit {
			return p, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
				"limit must be a number between 1 and "+strconv.Itoa(types.MaxPageLimit), nil,
				map[string]any{"field": "limit"})
		}
		p.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
				"offset must be a non-negative number", nil, map[string]any{"field": "offset"})
		}
		p.Offset = offset
	}
	return p, nil
}

// slicePage cuts items down to the window and reports where it sits in
// the full result.
func slicePage[T any](items []T, p page) ([]T, *types.ResponseMeta) {
	total := len(items)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)

	return items[start:end], &types.ResponseMeta{
		Pagination: &types.PageInfo{
			HasMore:    end < total,
			Limit:      p.Limit,
			Offset:     p.Offset,
			TotalItems: &total,
		},
	}
}
