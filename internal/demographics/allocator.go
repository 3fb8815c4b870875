// internal/demographics/allocator.go
package demographics

import (
	"math"
	"sort"

	"persona-workers/internal/common/errors"
)

// Allocation pairs a demographic combination with the number of
// personas assigned to it.
type Allocation struct {
	Combination Combination
	Count       int
}

// Allocate splits population across the cartesian product of the axes
// so that every combination gets a count proportional to the product of
// its option shares and the counts sum to population exactly.
//
// Each combination is floored first; the remaining units are handed out
// one at a time in descending fractional-part order. Ties break on the
// original combination index, so the result is deterministic for a
// given axis ordering.
//
// Allocate apportions using whatever weights it is given; whether the
// shares of an axis must sum to 100 is the caller's policy, checked via
// ValidateAxes at the entry points.
func Allocate(population int, axes []Axis) ([]Allocation, error) {
	if population < 0 {
		return nil, errors.NewInvalidPopulationError(population)
	}
	if len(axes) == 0 {
		return nil, errors.NewEmptyAxisError("no demographic axes provided")
	}
	for _, axis := range axes {
		if len(axis.Options) == 0 {
			return nil, errors.NewEmptyAxisError(axis.Category)
		}
		for _, opt := range axis.Options {
			if opt.Percentage < 0 {
				return nil, errors.NewPercentageMismatchError(axis.Category, opt.Percentage)
			}
		}
	}

	combos := Enumerate(axes)
	allocs := make([]Allocation, len(combos))
	if population == 0 {
		for i, c := range combos {
			allocs[i] = Allocation{Combination: c}
		}
		return allocs, nil
	}

	type slot struct {
		index int
		frac  float64
	}
	slots := make([]slot, len(combos))
	assigned := 0
	for i, c := range combos {
		raw := c.Weight() * float64(population)
		count := int(math.Floor(raw))
		allocs[i] = Allocation{Combination: c, Count: count}
		slots[i] = slot{index: i, frac: raw - float64(count)}
		assigned += count
	}

	// largest fractional part first, original order on ties
	sort.SliceStable(slots, func(a, b int) bool {
		return slots[a].frac > slots[b].frac
	})

	for assigned < population {
		for _, s := range slots {
			if assigned == population {
				break
			}
			allocs[s.index].Count++
			assigned++
		}
	}

	// floors over-allocate when the axis weights exceed 100 or through
	// float error; walk the same order and take units back from
	// non-zero slots
	for assigned > population {
		for _, s := range slots {
			if assigned == population {
				break
			}
			if allocs[s.index].Count > 0 {
				allocs[s.index].Count--
				assigned--
			}
		}
	}

	return allocs, nil
}
