// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain"
)

// ListQuery carries the common list parameters.
type ListQuery struct {
	Search    string `form:"search"`
	OrderBy   string `form:"orderBy"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
	ManagerID string `form:"managerId"` // admin only
}

// Manager parses the optional managerId.
func (q ListQuery) Manager() (*id.ID, error) {
	return ParseOptionalID("managerId", q.ManagerID)
}

// ToFilter converts the query into a domain filter.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f.Normalize()
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// FromListResult copies a domain page into a response.
func FromListResult[T any](r domain.ListResult[T]) ListResponse[T] {
	items := r.Items
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, TotalCount: r.TotalCount, Limit: r.Limit, Offset: r.Offset}
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ParseOptionalID parses an optional UUID field; empty means nil.
func ParseOptionalID(field, raw string) (*id.ID, error) {
	v, err := id.ParseOptional(raw)
	if err != nil {
		return nil, apperror.NewFieldValidation(field, "must be a UUID")
	}
	return v, nil
}
