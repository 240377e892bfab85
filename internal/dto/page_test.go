package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name            string
		page, perPage   int
		wantPage, wantN int
	}{
		{"defaults", 0, 0, 1, DefaultPerPage},
		{"negative page", -3, 10, 1, 10},
		{"in range", 2, 50, 2, 50},
		{"max", 1, MaxPerPage, 1, MaxPerPage},
		{"oversize falls back", 1, MaxPerPage + 1, 1, DefaultPerPage},
		{"negative size falls back", 1, -5, 1, DefaultPerPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, perPage := Normalize(tc.page, tc.perPage)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantN, perPage)
		})
	}
}

func TestNewPageCountsPages(t *testing.T) {
	p := NewPage[int](nil, 41, 3, 20)
	assert.Equal(t, 3, p.Pages)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, []int{5}, Slice([]int{1, 2, 3, 4, 5}, 3, 2))
	assert.Empty(t, Slice([]int{1, 2}, 3, 2))
}
