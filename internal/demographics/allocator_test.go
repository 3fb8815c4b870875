// internal/demographics/allocator_test.go
package demographics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func axesFixture() []Axis {
	return []Axis{
		{
			Category: "age",
			Options: []Option{
				{Name: "18-30", Percentage: 40},
				{Name: "31-50", Percentage: 35},
				{Name: "51+", Percentage: 25},
			},
		},
		{
			Category: "gender",
			Options: []Option{
				{Name: "male", Percentage: 50},
				{Name: "female", Percentage: 50},
			},
		},
	}
}

func totalCount(allocs []Allocation) int {
	sum := 0
	for _, a := range allocs {
		sum += a.Count
	}
	return sum
}

func TestAllocateSumsToPopulation(t *testing.T) {
	tests := []struct {
		name       string
		population int
	}{
		{"small", 7},
		{"exact division", 100},
		{"large", 10007},
		{"single", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocs, err := Allocate(tt.population, axesFixture())
			require.NoError(t, err)
			assert.Equal(t, tt.population, totalCount(allocs))
			for _, a := range allocs {
				assert.GreaterOrEqual(t, a.Count, 0)
			}
		})
	}
}

func TestAllocateSingleAxisExactSplit(t *testing.T) {
	axes := []Axis{{
		Category: "income",
		Options: []Option{
			{Name: "high", Percentage: 70},
			{Name: "low", Percentage: 30},
		},
	}}

	allocs, err := Allocate(10, axes)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, 7, allocs[0].Count)
	assert.Equal(t, 3, allocs[1].Count)
}

func TestAllocateRemainderDistribution(t *testing.T) {
	axes := []Axis{{
		Category: "region",
		Options: []Option{
			{Name: "north", Percentage: 33.33},
			{Name: "south", Percentage: 33.33},
			{Name: "east", Percentage: 33.34},
		},
	}}

	allocs, err := Allocate(3, axes)
	require.NoError(t, err)
	assert.Equal(t, 3, totalCount(allocs))
	for _, a := range allocs {
		assert.Equal(t, 1, a.Count)
	}
}

func TestAllocateApportionsNonNormalizedShares(t *testing.T) {
	// Shares that do not sum to 100 are the caller's policy problem;
	// the allocator still apportions them and the counts sum exactly.
	under := []Axis{{
		Category: "tier",
		Options: []Option{
			{Name: "a", Percentage: 50},
			{Name: "b", Percentage: 30},
		},
	}}
	allocs, err := Allocate(10, under)
	require.NoError(t, err)
	assert.Equal(t, 10, totalCount(allocs))
	assert.Equal(t, 6, allocs[0].Count)
	assert.Equal(t, 4, allocs[1].Count)

	over := []Axis{{
		Category: "tier",
		Options: []Option{
			{Name: "a", Percentage: 100},
			{Name: "b", Percentage: 50},
		},
	}}
	allocs, err = Allocate(10, over)
	require.NoError(t, err)
	assert.Equal(t, 10, totalCount(allocs))
}

func TestAllocateEmptyAxisRejected(t *testing.T) {
	_, err := Allocate(10, []Axis{{Category: "age"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMPTY_AXIS")

	_, err = Allocate(10, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMPTY_AXIS")
}

func TestAllocateZeroPopulation(t *testing.T) {
	allocs, err := Allocate(0, axesFixture())
	require.NoError(t, err)
	require.Len(t, allocs, 6)
	for _, a := range allocs {
		assert.Equal(t, 0, a.Count)
	}
}

func TestAllocateNegativePopulation(t *testing.T) {
	_, err := Allocate(-1, axesFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_POPULATION")
}

func TestAllocateDeterministic(t *testing.T) {
	first, err := Allocate(97, axesFixture())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Allocate(97, axesFixture())
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Count, again[j].Count)
		}
	}
}

func TestAllocateWeightsRespected(t *testing.T) {
	// 40% * 50% of 1000 should land within one unit of 200
	allocs, err := Allocate(1000, axesFixture())
	require.NoError(t, err)

	for _, a := range allocs {
		expected := a.Combination.Weight() * 1000
		assert.InDelta(t, expected, float64(a.Count), 1.0)
	}
}
