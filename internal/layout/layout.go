// Package layout maps period-division vectors to rotation indices.
// A division vector has one positive entry per period stating how many
// atomic rotations that period is split into.
package layout

// Normalize clamps a division vector to the configured period count,
// substituting fallback for missing or invalid entries.
func Normalize(divisions []int, periods, fallback int) []int {
	if periods <= 0 {
		return nil
	}
	if fallback < 1 {
		fallback = 1
	}
	out := make([]int, periods)
	for i := 0; i < periods; i++ {
		if i < len(divisions) && divisions[i] >= 1 {
			out[i] = divisions[i]
		} else {
			out[i] = fallback
		}
	}
	return out
}

// TotalRotations sums a division vector, treating invalid entries as 1.
func TotalRotations(divisions []int) int {
	total := 0
	for _, d := range divisions {
		if d < 1 {
			d = 1
		}
		total += d
	}
	return total
}

// PeriodOffsets returns the first rotation index of each period.
func PeriodOffsets(divisions []int) []int {
	offsets := make([]int, len(divisions))
	cursor := 0
	for i, d := range divisions {
		offsets[i] = cursor
		if d < 1 {
			d = 1
		}
		cursor += d
	}
	return offsets
}

// PeriodRange returns the [start, end) rotation range of a period, and false
// when the period index is out of range.
func PeriodRange(divisions []int, periodIndex int) (start, endExclusive int, ok bool) {
	if periodIndex < 0 || periodIndex >= len(divisions) {
		return 0, 0, false
	}
	offsets := PeriodOffsets(divisions)
	d := divisions[periodIndex]
	if d < 1 {
		d = 1
	}
	return offsets[periodIndex], offsets[periodIndex] + d, true
}

// PeriodForRotation returns the period containing a rotation index, clamping
// out-of-range indices to the first or last period.
func PeriodForRotation(divisions []int, rotationIndex int) int {
	if len(divisions) == 0 || rotationIndex <= 0 {
		return 0
	}
	cursor := 0
	for i, d := range divisions {
		if d < 1 {
			d = 1
		}
		if rotationIndex < cursor+d {
			return i
		}
		cursor += d
	}
	return len(divisions) - 1
}

// WithinPeriodIndex returns a rotation's offset inside its own period.
func WithinPeriodIndex(divisions []int, rotationIndex int) int {
	period := PeriodForRotation(divisions, rotationIndex)
	start, _, ok := PeriodRange(divisions, period)
	if !ok {
		return 0
	}
	if rotationIndex < start {
		return 0
	}
	return rotationIndex - start
}

// RotationPeriods expands a division vector into a per-rotation period index
// slice, e.g. [2,1] -> [0,0,1].
func RotationPeriods(divisions []int) []int {
	periods := make([]int, 0, TotalRotations(divisions))
	for p, d := range divisions {
		if d < 1 {
			d = 1
		}
		for i := 0; i < d; i++ {
			periods = append(periods, p)
		}
	}
	return periods
}

// Weights returns the default per-rotation weight vector: each rotation in a
// period split into N sub-rotations weighs 1/N, so every period contributes
// one unit of game time regardless of how it is divided.
func Weights(divisions []int) []float64 {
	weights := make([]float64, 0, TotalRotations(divisions))
	for _, d := range divisions {
		if d < 1 {
			d = 1
		}
		for i := 0; i < d; i++ {
			weights = append(weights, 1/float64(d))
		}
	}
	return weights
}
