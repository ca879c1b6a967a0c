// Package pagination derives the page controls shown under a feed.
package pagination

import "network/internal/models"

// WindowSize is how many page numbers are shown at most.
const WindowSize = 5

// ClampPage keeps current within [1, total]. A total below 1 counts as one
// page.
func ClampPage(current, total int) int {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		return 1
	}
	if current > total {
		return total
	}
	return current
}

// Window returns the page numbers to show: up to WindowSize pages starting
// two before current, clamped to [1, total].
func Window(current, total int) []int {
	if total < 1 {
		total = 1
	}
	current = ClampPage(current, total)

	start := max(1, current-2)
	end := min(total, start+WindowSize-1)

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

type Controls struct {
	Pages        []int
	Current      int
	Prev         int
	Next         int
	PrevDisabled bool
	NextDisabled bool
}

// NewControls builds the controls for page while current is the page the
// view asked for. isPreviousData is set while page still holds another
// page's data; its neighbours are then not offered until the new page lands.
func NewControls(page models.Page, current int, isPreviousData bool) Controls {
	total := page.NumPages
	if total < 1 {
		total = 1
	}

	c := Controls{
		Pages:   Window(current, total),
		Current: current,
		Prev:    current - 1,
		Next:    current + 1,
	}
	if page.PreviousPage != nil {
		c.Prev = *page.PreviousPage
	}
	if page.NextPage != nil {
		c.Next = *page.NextPage
	}

	c.PrevDisabled = current <= 1 || (isPreviousData && page.PreviousPage != nil)
	c.NextDisabled = current >= total || (isPreviousData && page.NextPage != nil)
	return c
}
