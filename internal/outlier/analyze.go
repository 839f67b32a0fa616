package outlier

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/armdoe/dsproc/internal/model"
)

// Histogram is one bucketed deviation count from Analyze.
type Histogram struct {
	LowerBound float64
	UpperBound float64
	Count      int
}

// Analyze computes, for every sample whose window had enough candidates,
// the deviation that Apply would have compared against cfg's thresholds,
// and buckets them into nBuckets equal-width histogram bins spanning the
// observed range ("An analyze parameter prints histogram
// buckets of deviations for operator tuning"). Samples whose window was
// skipped (too few candidates) are not included.
func Analyze(times []model.Time, values []float64, qcIn []int32, missing float64, cfg Config, nBuckets int) []Histogram {
	half := cfg.Width / 2
	var devs []float64
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
			continue
		}
		dev, scale := deviation(cfg.Method, window, values[i])
		if scale != 0 {
			dev /= scale
		}
		devs = append(devs, dev)
	}
	if len(devs) == 0 {
		return nil
	}
	sort.Float64s(devs)
	lo, hi := devs[0], devs[len(devs)-1]
	if lo == hi {
		return []Histogram{{LowerBound: lo, UpperBound: hi, Count: len(devs)}}
	}

	width := (hi - lo) / float64(nBuckets)
	buckets := make([]Histogram, nBuckets)
	for i := range buckets {
		buckets[i] = Histogram{LowerBound: lo + float64(i)*width, UpperBound: lo + float64(i+1)*width}
	}
	for _, d := range devs {
		idx := int(math.Floor((d - lo) / width))
		if idx >= nBuckets {
			idx = nBuckets - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

// PrintHistogram writes buckets as a simple fixed-width text table, the
// operator-facing form the analyze mode produces.
func PrintHistogram(w io.Writer, buckets []Histogram) {
	for _, b := range buckets {
		fmt.Fprintf(w, "[%10.4f, %10.4f) %d\n", b.LowerBound, b.UpperBound, b.Count)
	}
}
