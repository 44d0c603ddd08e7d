package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

func TestExpandGrid(t *testing.T) {
	points, err := ExpandGrid(Grid{
		Ranges: []ParameterRange{
			{Name: "fast", Min: 5, Max: 15, Step: 5, IsInt: true},
			{Name: "stop", Min: 0.01, Max: 0.03, Step: 0.01},
		},
		Fixed: domain.ParameterSet{"slow": 30},
	})
	require.NoError(t, err)
	require.Len(t, points, 9)

	for i, p := range points {
		assert.Equal(t, int64(i+1), p.RunID)
		assert.Equal(t, 30.0, p.Parameters["slow"])
	}
	assert.Equal(t, domain.ParameterSet{"fast": 5, "stop": 0.01, "slow": 30}, points[0].Parameters)
	assert.Equal(t, domain.ParameterSet{"fast": 15, "stop": 0.03, "slow": 30}, points[8].Parameters)
}

func TestExpandGrid_NoFloatDrift(t *testing.T) {
	points, err := ExpandGrid(Grid{Ranges: []ParameterRange{{Name: "x", Min: 0.1, Max: 1.0, Step: 0.1}}})
	require.NoError(t, err)
	require.Len(t, points, 10)
	assert.InDelta(t, 1.0, points[9].Parameters["x"], 1e-12)
}

func TestExpandGrid_Constraints(t *testing.T) {
	points, err := ExpandGrid(Grid{
		Ranges: []ParameterRange{
			{Name: "fast", Min: 10, Max: 30, Step: 10, IsInt: true},
			{Name: "slow", Min: 10, Max: 30, Step: 10, IsInt: true},
		},
		Constraints: []Constraint{LessThan("fast", "slow")},
	})
	require.NoError(t, err)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Less(t, p.Parameters["fast"], p.Parameters["slow"])
	}
	assert.Equal(t, int64(3), points[2].RunID)
}

func TestExpandGrid_Invalid(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
	}{
		{"zero step", Grid{Ranges: []ParameterRange{{Name: "x", Min: 1, Max: 2, Step: 0}}}},
		{"max below min", Grid{Ranges: []ParameterRange{{Name: "x", Min: 3, Max: 2, Step: 1}}}},
		{"missing name", Grid{Ranges: []ParameterRange{{Min: 1, Max: 2, Step: 1}}}},
		{"duplicate name", Grid{Ranges: []ParameterRange{
			{Name: "x", Min: 1, Max: 2, Step: 1},
			{Name: "x", Min: 1, Max: 2, Step: 1},
		}}},
		{"ranged and fixed", Grid{
			Ranges: []ParameterRange{{Name: "x", Min: 1, Max: 2, Step: 1}},
			Fixed:  domain.ParameterSet{"x": 1},
		}},
		{"step too small for int", Grid{Ranges: []ParameterRange{{Name: "x", Min: 0, Max: 1, Step: 1e-300}}}},
		{"axis above limit", Grid{Ranges: []ParameterRange{{Name: "x", Min: 0, Max: 1e6, Step: 1e-9}}}},
		{"cartesian product above limit", Grid{Ranges: []ParameterRange{
			{Name: "x", Min: 1, Max: 2000, Step: 1},
			{Name: "y", Min: 1, Max: 2000, Step: 1},
		}}},
		{"empty after constraints", Grid{
			Ranges:      []ParameterRange{{Name: "fast", Min: 50, Max: 60, Step: 10}},
			Fixed:       domain.ParameterSet{"slow": 20},
			Constraints: []Constraint{LessThan("fast", "slow")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandGrid(tt.grid)
			assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
		})
	}
}
