package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Offset(t *testing.T) {
	tests := []struct {
		name string
		page PageRequest
		want int
	}{
		{"first page", PageRequest{Page: 1, PageSize: 50}, 0},
		{"third page", PageRequest{Page: 3, PageSize: 20}, 40},
		{"zero page", PageRequest{Page: 0, PageSize: 20}, 0},
		{"zero size", PageRequest{Page: 4, PageSize: 0}, 0},
		{"saturates", PageRequest{Page: math.MaxInt, PageSize: 500}, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.page.Offset())
		})
	}
}
