package transform

import (
	"math"

	"github.com/armdoe/dsproc/internal/qc"
)

// bit returns the single-bit mask for a 1-based TransBit.
func bit(b qc.TransBit) int32 { return 1 << uint(b-1) }

// Interpolate implements TRANS_INTERPOLATE: linear
// interpolation of (xIn, yIn) onto xOut. validRange, if non-zero width,
// bounds extrapolation: points within range but outside [xIn[0],
// xIn[last]] set bit 4 (extrapolate); points outside validRange set bit 8
// (outside_range) and emit missing.
func Interpolate(xIn, yIn, xOut []float64, missing float64, validRange [2]float64) (yOut []float64, qcOut []int32) {
	yOut = make([]float64, len(xOut))
	qcOut = make([]int32, len(xOut))
	if len(xIn) == 0 {
		for i := range yOut {
			yOut[i] = missing
			qcOut[i] = bit(qc.TransBad)
		}
		return
	}
	hasRange := validRange[0] != 0 || validRange[1] != 0
	for i, x := range xOut {
		if hasRange && (x < validRange[0] || x > validRange[1]) {
			yOut[i] = missing
			qcOut[i] = bit(qc.TransOutsideRange)
			continue
		}
		j := 0
		for j < len(xIn)-1 && xIn[j+1] < x {
			j++
		}
		switch {
		case len(xIn) == 1:
			yOut[i] = yIn[0]
		case x < xIn[0] || x > xIn[len(xIn)-1]:
			// Extrapolate from the nearest edge segment.
			k := 0
			if x > xIn[len(xIn)-1] {
				k = len(xIn) - 2
			}
			yOut[i] = lerp(xIn[k], yIn[k], xIn[k+1], yIn[k+1], x)
			qcOut[i] |= bit(qc.TransExtrapolate)
		default:
			yOut[i] = lerp(xIn[j], yIn[j], xIn[j+1], yIn[j+1], x)
		}
	}
	return
}

func lerp(x0, y0, x1, y1, x float64) float64 {
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// Subsample implements TRANS_SUBSAMPLE: for each output
// point, picks the nearest good (not flagged bad by goodIn) input point.
// If that choice is not the nearest actual point overall, bit 5
// (not_using_closest) is set.
func Subsample(xIn, yIn []float64, goodIn []bool, xOut []float64, missing float64) (yOut []float64, qcOut []int32) {
	yOut = make([]float64, len(xOut))
	qcOut = make([]int32, len(xOut))
	for i, x := range xOut {
		nearestAll, nearestAllDist := -1, math.Inf(1)
		nearestGood, nearestGoodDist := -1, math.Inf(1)
		for j, xj := range xIn {
			d := math.Abs(xj - x)
			if d < nearestAllDist {
				nearestAllDist, nearestAll = d, j
			}
			if (goodIn == nil || goodIn[j]) && d < nearestGoodDist {
				nearestGoodDist, nearestGood = d, j
			}
		}
		if nearestGood < 0 {
			yOut[i] = missing
			qcOut[i] = bit(qc.TransBad)
			continue
		}
		yOut[i] = yIn[nearestGood]
		if nearestGood != nearestAll {
			qcOut[i] = bit(qc.TransNotUsingClosest)
		}
	}
	return
}

// BinAverageOptions carries the window-average thresholds and QC limit
// names for TRANS_BIN_AVERAGE.
type BinAverageOptions struct {
	Width, Alignment                float64
	StdBadMax, StdIndMax            float64
	GoodfracBadMin, GoodfracIndMin  float64
	HasStdLimits, HasGoodfracLimits bool
}

// BinAverage implements TRANS_BIN_AVERAGE: averages (xIn,
// yIn) samples falling in each output point's window
// [c-width*alignment, c+width*(1-alignment)], flagging bits 6
// (some_bad_inputs), 7 (zero_weight), 9 (all_bad), 10/11 (std limits),
// 12/13 (goodfrac limits) as appropriate. It also returns, per output
// point, the standard deviation and good-fraction metric values (for the
// V_std/V_goodfraction companion variables).
func BinAverage(xIn, yIn []float64, goodIn []bool, xOut []float64, opts BinAverageOptions, missing float64) (yOut []float64, qcOut []int32, stdOut, goodfracOut []float64) {
	n := len(xOut)
	yOut = make([]float64, n)
	qcOut = make([]int32, n)
	stdOut = make([]float64, n)
	goodfracOut = make([]float64, n)

	alignment := opts.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}

	for i, c := range xOut {
		lo, hi := c-opts.Width*alignment, c+opts.Width*(1-alignment)
		var sum, sumSq float64
		var good, bad, total int
		for j, xj := range xIn {
			if xj < lo || xj > hi {
				continue
			}
			total++
			if goodIn != nil && !goodIn[j] {
				bad++
				continue
			}
			good++
			sum += yIn[j]
			sumSq += yIn[j] * yIn[j]
		}

		if total == 0 {
			yOut[i] = missing
			qcOut[i] = bit(qc.TransZeroWeight)
			continue
		}
		if good == 0 {
			yOut[i] = missing
			qcOut[i] = bit(qc.TransAllBadInputs)
			continue
		}
		if bad > 0 {
			qcOut[i] |= bit(qc.TransSomeBadInputs)
		}

		mean := sum / float64(good)
		variance := sumSq/float64(good) - mean*mean
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		goodfrac := float64(good) / float64(total)

		yOut[i] = mean
		stdOut[i] = std
		goodfracOut[i] = goodfrac

		if opts.HasStdLimits {
			switch {
			case std > opts.StdBadMax:
				qcOut[i] |= bit(qc.TransBadStd)
			case std > opts.StdIndMax:
				qcOut[i] |= bit(qc.TransIndStd)
			}
		}
		if opts.HasGoodfracLimits {
			switch {
			case goodfrac < opts.GoodfracBadMin:
				qcOut[i] |= bit(qc.TransBadGoodfrac)
			case goodfrac < opts.GoodfracIndMin:
				qcOut[i] |= bit(qc.TransIndGoodfrac)
			}
		}
	}
	return
}
