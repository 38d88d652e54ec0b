package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PaginationParams holds parsed skip/limit values from query params.
type PaginationParams struct {
	Skip  int
	Limit int
}

// PaginatedResponse wraps any list data with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// PaginationMeta contains pagination metadata for the response.
type PaginationMeta struct {
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// ParsePagination extracts skip and limit from query params with defaults.
// limit is capped at maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return PaginationParams{Skip: skip, Limit: limit}
}

// NewPaginatedResponse builds a PaginatedResponse from data, params, and total count.
func NewPaginatedResponse(data interface{}, params PaginationParams, total int) PaginatedResponse {
	return PaginatedResponse{
		Data: data,
		Pagination: PaginationMeta{
			Skip:    params.Skip,
			Limit:   params.Limit,
			Total:   total,
			HasMore: params.Skip+params.Limit < total,
		},
	}
}
