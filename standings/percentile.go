package standings

import "math"

type Comparison int

const (
	// StrictlyBelow counts population members with a smaller value.
	StrictlyBelow Comparison = iota
	// AtOrBelow counts members with a smaller or equal value, target included.
	AtOrBelow
)

// Percentile is round(100 * below / len(population)), half to even.
// The population is expected to contain the target's own value.
func Percentile(target float64, population []float64, cmp Comparison) int {
	if len(population) == 0 {
		return 0
	}
	below := 0
	for _, v := range population {
		if v < target || (cmp == AtOrBelow && v == target) {
			below++
		}
	}
	p := int(math.RoundToEven(100 * float64(below) / float64(len(population))))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
