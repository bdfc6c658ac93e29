// Package query turns list requests into validated, bounded store criteria and
// runs them against any Source.
package query

import (
	"context"
	"fmt"
	"strings"

	dErrors "directory/pkg/domain-errors"
)

// DefaultMaxPageSize caps page sizes when no explicit limit is configured.
const DefaultMaxPageSize = 100

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

// Equal restricts results to rows whose field equals Value.
type Equal struct {
	Field string
	Value int64
}

// Request is a caller's list query. A nil SearchTerm means no search; a
// non-nil blank one is rejected.
type Request struct {
	SearchTerm *string
	PageNumber int
	PageSize   int
	OrderBy    []Order
	Equals     []Equal
}

// Criteria is the store-facing form of a validated Request.
//
// Stores must match Search case-insensitively as a substring of any of their
// searchable fields, apply every Equals, sort by OrderBy and return at most
// Limit rows after skipping Offset.
type Criteria struct {
	Search  string
	Equals  []Equal
	OrderBy []Order
	Offset  int
	Limit   int
}

// HasSearch reports whether a search filter applies.
func (c Criteria) HasSearch() bool {
	return c.Search != ""
}

// Source is a queryable collection of T.
type Source[T any] interface {
	Count(ctx context.Context, c Criteria) (int, error)
	Find(ctx context.Context, c Criteria) ([]T, error)
}

// Page is one slice of ordered, matching rows plus the total match count.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}

// Pager validates and bounds list requests.
type Pager struct {
	maxPageSize int
}

// NewPager returns a pager clamping page sizes to maxPageSize
// (DefaultMaxPageSize when maxPageSize <= 0).
func NewPager(maxPageSize int) Pager {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return Pager{maxPageSize: maxPageSize}
}

// MaxPageSize returns the clamp limit.
func (p Pager) MaxPageSize() int {
	if p.maxPageSize <= 0 {
		return DefaultMaxPageSize
	}
	return p.maxPageSize
}

// Normalize validates req and returns the request with its page size clamped.
func (p Pager) Normalize(req Request) (Request, error) {
	if req.PageNumber <= 0 || req.PageSize <= 0 {
		return Request{}, dErrors.New(dErrors.CodeValidation, "page number and page size must be greater than 0")
	}
	if req.SearchTerm != nil {
		term := strings.TrimSpace(*req.SearchTerm)
		if term == "" {
			return Request{}, dErrors.New(dErrors.CodeValidation, "search term must not be blank when provided")
		}
		req.SearchTerm = &term
	}
	if req.PageSize > p.MaxPageSize() {
		req.PageSize = p.MaxPageSize()
	}
	return req, nil
}

// Criteria converts a normalized request into store criteria. Requests with no
// ordering are sorted by ascending id so pages are deterministic.
func (p Pager) Criteria(req Request) (Criteria, error) {
	req, err := p.Normalize(req)
	if err != nil {
		return Criteria{}, err
	}
	offset := int64(req.PageNumber-1) * int64(req.PageSize)
	if offset > int64(maxOffset) {
		return Criteria{}, dErrors.New(dErrors.CodeValidation, "page number is out of range")
	}
	c := Criteria{
		Equals:  req.Equals,
		OrderBy: req.OrderBy,
		Offset:  int(offset),
		Limit:   req.PageSize,
	}
	if req.SearchTerm != nil {
		c.Search = *req.SearchTerm
	}
	if len(c.OrderBy) == 0 {
		c.OrderBy = []Order{{Field: "id"}}
	}
	return c, nil
}

const maxOffset = 1<<31 - 1

// Execute counts all matches, then fetches the requested page.
func Execute[T any](ctx context.Context, p Pager, src Source[T], req Request) (Page[T], error) {
	c, err := p.Criteria(req)
	if err != nil {
		return Page[T]{}, err
	}
	total, err := src.Count(ctx, c)
	if err != nil {
		return Page[T]{}, fmt.Errorf("count: %w", err)
	}
	page := Page[T]{
		TotalCount: total,
		PageNumber: req.PageNumber,
		PageSize:   c.Limit,
	}
	if c.Offset >= total {
		page.Items = []T{}
		return page, nil
	}
	items, err := src.Find(ctx, c)
	if err != nil {
		return Page[T]{}, fmt.Errorf("find: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	page.Items = items
	return page, nil
}
