package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// TotalCountHeader carries the unpaged total on list responses.
	TotalCountHeader = "X-Total-Count"
)

// Params holds pagination parameters. A zero Limit means "everything".
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset query parameters. ok is false when the
// request asked for no paging, so list endpoints can keep returning the whole
// array to clients that never page.
func FromContext(c echo.Context) (p Params, ok bool) {
	rawLimit, rawOffset := c.QueryParam("limit"), c.QueryParam("offset")
	if rawLimit == "" && rawOffset == "" {
		return Params{}, false
	}

	limit, _ := strconv.Atoi(rawLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset, _ := strconv.Atoi(rawOffset)
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}, true
}

// Normalize clamps negative values. Limit stays 0 for "no limit".
func (p Params) Normalize() Params {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Limit > 0 && p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page, never negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Slice returns the page of items described by p. The result shares the
// backing array of items.
func Slice[T any](items []T, p Params) []T {
	p = p.Normalize()
	if p.Offset >= len(items) {
		return items[:0:0]
	}
	end := len(items)
	if p.Limit > 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	return items[p.Offset:end]
}

// Apply pages items when the request asked for it and sets the total header.
func Apply[T any](c echo.Context, items []T) []T {
	c.Response().Header().Set(TotalCountHeader, strconv.Itoa(len(items)))
	p, ok := FromContext(c)
	if !ok {
		return items
	}
	return Slice(items, p)
}
