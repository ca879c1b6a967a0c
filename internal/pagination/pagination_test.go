package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"network/internal/models"
)

func intPtr(i int) *int {
	return &i
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    []int
	}{
		{"middle", 5, 10, []int{3, 4, 5, 6, 7}},
		{"first", 1, 10, []int{1, 2, 3, 4, 5}},
		{"last", 10, 10, []int{8, 9, 10}},
		{"second", 2, 10, []int{1, 2, 3, 4, 5}},
		{"near end", 9, 10, []int{7, 8, 9, 10}},
		{"few pages", 2, 3, []int{1, 2, 3}},
		{"single page", 1, 1, []int{1}},
		{"no pages reported", 1, 0, []int{1}},
		{"past the end", 12, 10, []int{8, 9, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(tt.current, tt.total))
		})
	}
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, ClampPage(0, 5))
	assert.Equal(t, 5, ClampPage(9, 5))
	assert.Equal(t, 3, ClampPage(3, 5))
	assert.Equal(t, 1, ClampPage(4, 0))
}

func TestNewControls(t *testing.T) {
	tests := []struct {
		name           string
		page           models.Page
		current        int
		isPreviousData bool
		prevDisabled   bool
		nextDisabled   bool
		prev, next     int
	}{
		{
			name:         "first page",
			page:         models.Page{NumPages: 10, NextPage: intPtr(2)},
			current:      1,
			prevDisabled: true,
			prev:         0,
			next:         2,
		},
		{
			name:         "last page",
			page:         models.Page{NumPages: 10, PreviousPage: intPtr(9)},
			current:      10,
			nextDisabled: true,
			prev:         9,
			next:         11,
		},
		{
			name:    "middle page",
			page:    models.Page{NumPages: 10, PreviousPage: intPtr(4), NextPage: intPtr(6)},
			current: 5,
			prev:    4,
			next:    6,
		},
		{
			name:           "showing previous page data",
			page:           models.Page{NumPages: 10, PreviousPage: intPtr(3), NextPage: intPtr(5)},
			current:        5,
			isPreviousData: true,
			prevDisabled:   true,
			nextDisabled:   true,
			prev:           3,
			next:           5,
		},
		{
			name:         "empty feed",
			page:         models.Page{},
			current:      1,
			prevDisabled: true,
			nextDisabled: true,
			prev:         0,
			next:         2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewControls(tt.page, tt.current, tt.isPreviousData)

			assert.Equal(t, tt.current, c.Current)
			assert.Equal(t, tt.prevDisabled, c.PrevDisabled, "prev disabled")
			assert.Equal(t, tt.nextDisabled, c.NextDisabled, "next disabled")
			assert.Equal(t, tt.prev, c.Prev)
			assert.Equal(t, tt.next, c.Next)
		})
	}
}
