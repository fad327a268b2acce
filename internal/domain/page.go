package domain

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPageNumber keeps Offset within int for every allowed size.
	MaxPageNumber = math.MaxInt / MaxPageSize
)

// Page selects a 1-based page of a listing.
type Page struct {
	Number int
	Size   int
}

// Normalize fills defaults and clamps the size.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	return p
}

// Offset saturates at math.MaxInt instead of overflowing.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

type PagedList[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalCount int
}

func NewPagedList[T any](items []T, page Page, total int) PagedList[T] {
	if items == nil {
		items = []T{}
	}
	return PagedList[T]{
		Items:      items,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalCount: total,
	}
}

func (l PagedList[T]) HasNextPage() bool {
	if l.PageSize < 1 || l.TotalCount < 1 {
		return false
	}
	pages := (l.TotalCount-1)/l.PageSize + 1
	return l.Page < pages
}

func (l PagedList[T]) HasPreviousPage() bool {
	return l.Page > 1
}
