// Package outlier implements the windowed outlier filters: std, iqd,
// mad-about-median, mad-about-mean, and mean_dev, each operating on a
// time-indexed variable's values plus its existing QC flags. Unlike the
// transformation engine's regridding kernels (internal/transform), these
// filters never change sample count or spacing; they only add QC bits.
package outlier

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/armdoe/dsproc/internal/model"
)

// Method names one of the five window statistics.
type Method int

const (
	Std Method = iota
	IQD
	MADMedian
	MADMean
	MeanDev
)

// Config carries one filter invocation's window and flagging parameters:
// window width, minimum good samples per window, the bad-QC mask, three
// QC flag bits (skipped, bad, ind), and the bad/ind thresholds.
type Config struct {
	Method Method

	// Width is the full window width: samples within
	// [t-Width/2, t+Width/2] of the sample under test are candidates.
	Width float64

	// MinNPoints is the minimum number of good candidate samples required
	// before a window is evaluated; windows with fewer are skipped.
	MinNPoints int

	// BadMask selects which existing QC bits exclude a candidate sample
	// from the window ("whose QC does not match the bad
	// mask").
	BadMask int32

	SkippedBit, BadBit, IndBit int

	// BadThreshold and IndThreshold are the deviation multipliers (std,
	// iqd, mad variants) or absolute deviation limits (mean_dev) beyond
	// which a sample is flagged bad or indeterminate. BadThreshold is
	// expected to be the stricter (larger) of the two.
	BadThreshold, IndThreshold float64
}

func bitMask(bit int) int32 {
	if bit <= 0 {
		return 0
	}
	return 1 << uint(bit-1)
}

// Apply runs cfg's filter over values indexed by times, given each
// sample's existing QC flags and the variable's missing value, and
// returns the bits to OR into each sample's QC.
func Apply(times []model.Time, values []float64, qcIn []int32, missing float64, cfg Config) []int32 {
	out := make([]int32, len(values))
	half := cfg.Width / 2
	for i := range values {
		lo, hi := times[i].Add(-half), times[i].Add(half)
		var window []float64
		for j := range values {
			if qcIn[j]&cfg.BadMask != 0 || values[j] == missing {
				continue
			}
			if times[j].Before(lo) || times[j].After(hi) {
				continue
			}
			window = append(window, values[j])
		}
		if len(window) < cfg.MinNPoints {
			out[i] |= bitMask(cfg.SkippedBit)
			continue
		}
		dev, scale := deviation(cfg.Method, window, values[i])
		switch {
		case dev > cfg.BadThreshold*scale:
			out[i] |= bitMask(cfg.BadBit)
		case dev > cfg.IndThreshold*scale:
			out[i] |= bitMask(cfg.IndBit)
		}
	}
	return out
}

// deviation computes |x - center| for cfg's method and returns it
// alongside the method's natural scale (sigma/IQD/MAD), against which the
// caller's threshold multiplies. mean_dev has no scale (its thresholds
// are absolute), so scale is 1.
func deviation(m Method, window []float64, x float64) (dev, scale float64) {
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)

	switch m {
	case Std:
		mean := stat.Mean(sorted, nil)
		sigma := stat.StdDev(sorted, nil)
		return absDiff(x, mean), sigma
	case IQD:
		q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
		q2 := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
		return absDiff(x, q2), q3 - q1
	case MADMedian:
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		return absDiff(x, median), medianAbsDev(sorted, median)
	case MADMean:
		mean := stat.Mean(sorted, nil)
		return absDiff(x, mean), meanAbsDev(sorted, mean)
	case MeanDev:
		mean := stat.Mean(sorted, nil)
		return absDiff(x, mean), 1
	default:
		return 0, 1
	}
}

func absDiff(a, b float64) float64 {
	if a < b {
		return b - a
	}
	return a - b
}

func medianAbsDev(sorted []float64, center float64) float64 {
	devs := make([]float64, len(sorted))
	for i, v := range sorted {
		devs[i] = absDiff(v, center)
	}
	sort.Float64s(devs)
	return stat.Quantile(0.5, stat.Empirical, devs, nil)
}

func meanAbsDev(sorted []float64, center float64) float64 {
	var sum float64
	for _, v := range sorted {
		sum += absDiff(v, center)
	}
	return sum / float64(len(sorted))
}
