// internal/demographics/space.go
package demographics

import (
	"math"

	"persona-workers/internal/common/errors"
)

// Option is one value on a demographic axis, weighted by its share of
// the population in percent.
type Option struct {
	Name       string
	Percentage float64
}

// Axis is a demographic category together with its weighted options.
type Axis struct {
	Category string
	Options  []Option
}

// Combination selects exactly one option per axis. Picks are ordered
// the same way as the axes that produced them.
type Combination struct {
	Picks []Pick
}

type Pick struct {
	Category string
	Option   string
	// Percentage of the chosen option, kept for weight computation.
	Percentage float64
}

// Weight is the product of the option shares, as a fraction in [0, 1].
func (c Combination) Weight() float64 {
	w := 1.0
	for _, p := range c.Picks {
		w *= p.Percentage / 100.0
	}
	return w
}

// percentage sums are accepted within this tolerance of 100
const percentageTolerance = 0.01

// ValidateAxes rejects empty axes, negative shares, and axes whose
// shares do not sum to 100.
func ValidateAxes(axes []Axis) error {
	if len(axes) == 0 {
		return errors.NewEmptyAxisError("no demographic axes provided")
	}
	for _, axis := range axes {
		if len(axis.Options) == 0 {
			return errors.NewEmptyAxisError(axis.Category)
		}
		sum := 0.0
		for _, opt := range axis.Options {
			if opt.Percentage < 0 {
				return errors.NewPercentageMismatchError(axis.Category, opt.Percentage)
			}
			sum += opt.Percentage
		}
		if math.Abs(sum-100.0) > percentageTolerance {
			return errors.NewPercentageMismatchError(axis.Category, sum)
		}
	}
	return nil
}

// Enumerate produces the cartesian product of the axes in a stable
// order: the last axis varies fastest, matching nested iteration over
// the axes as given.
func Enumerate(axes []Axis) []Combination {
	total := 1
	for _, axis := range axes {
		total *= len(axis.Options)
	}
	combos := make([]Combination, 0, total)

	indices := make([]int, len(axes))
	for {
		picks := make([]Pick, len(axes))
		for i, axis := range axes {
			opt := axis.Options[indices[i]]
			picks[i] = Pick{Category: axis.Category, Option: opt.Name, Percentage: opt.Percentage}
		}
		combos = append(combos, Combination{Picks: picks})

		// advance the odometer, last axis fastest
		pos := len(axes) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(axes[pos].Options) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return combos
}
