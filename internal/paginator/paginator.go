// Package paginator splits an ordered listing into fixed-size pages.
//
// Page numbers arrive as untrusted query strings. Anything that is not a
// number means page 1, and numbers outside the valid range are clamped to
// the nearest page. A request never fails because of its page parameter.
package paginator

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultPerPage is the page size of every post listing.
const DefaultPerPage = 10

// Window is the resolved position of one page inside a collection of
// Count items. Offset and Limit feed straight into a repository query.
type Window struct {
	Number   int
	NumPages int
	Count    int
	Offset   int
	Limit    int
}

// New resolves raw into a page window over total items.
func New(total, perPage int, raw string) Window {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if total < 0 {
		total = 0
	}

	numPages := (total + perPage - 1) / perPage
	if numPages == 0 {
		// An empty collection still has one (empty) page.
		numPages = 1
	}

	number := parse(raw)
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}

	return Window{
		Number:   number,
		NumPages: numPages,
		Count:    total,
		Offset:   (number - 1) * perPage,
		Limit:    perPage,
	}
}

func parse(raw string) int {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n
	}
	// Still a page number, just too far out to fit in an int.
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return math.MinInt
		}
		return math.MaxInt
	}
	return 1
}

func (w Window) HasNext() bool     { return w.Number < w.NumPages }
func (w Window) HasPrevious() bool { return w.Number > 1 }

// HasOtherPages reports whether the pager navigation is worth rendering.
func (w Window) HasOtherPages() bool { return w.NumPages > 1 }

// NextPageNumber returns Number+1, or Number on the last page.
func (w Window) NextPageNumber() int {
	if w.HasNext() {
		return w.Number + 1
	}
	return w.Number
}

// PreviousPageNumber returns Number-1, or 1 on the first page.
func (w Window) PreviousPageNumber() int {
	if w.HasPrevious() {
		return w.Number - 1
	}
	return 1
}

// PageRange lists every page number, 1..NumPages, for the pager links.
func (w Window) PageRange() []int {
	pages := make([]int, w.NumPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// Page is a window together with the items that fall into it.
type Page[T any] struct {
	Window
	Items []T
}

// NewPage pairs an already-fetched slice with its window.
func NewPage[T any](w Window, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Window: w, Items: items}
}

// Paginate slices an in-memory collection.
func Paginate[T any](items []T, perPage int, raw string) Page[T] {
	w := New(len(items), perPage, raw)
	end := w.Offset + w.Limit
	if end > len(items) {
		end = len(items)
	}
	return NewPage(w, items[w.Offset:end])
}
