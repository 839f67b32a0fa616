// Package storage implements the storage/splitter engine: StoreDataset's full dedup/filter/QC/split/write
// sequence, the CSV output format, raw-file renaming into the archival
// layout, and a CSV ingestor that reads delimited input into a
// *model.Group.
package storage

import (
	"time"

	"github.com/armdoe/dsproc/internal/datastream"
	"github.com/armdoe/dsproc/internal/model"
)

// nextSplitTime computes the split boundary that follows after, for the
// given policy, as a Unix-seconds instant.
//
// Start and Interval are interpreted in the policy's natural unit
// (months for SplitOnMonths, days for SplitOnDays, hours for
// SplitOnHours); TZOffsetHours shifts the calendar fields the boundary
// is computed against, then shifts the result back to UTC.
//
// The boundary is found algebraically (the smallest start+k*interval
// instant greater than after), relying on time.Date's automatic
// field-overflow normalization rather than an iterative carry loop.
func nextSplitTime(policy datastream.SplitPolicy, after model.Time) model.Time {
	local := after.GoTime().Add(time.Duration(policy.TZOffsetHours * float64(time.Hour)))

	var next time.Time
	switch policy.Mode {
	case datastream.SplitOnMonths:
		interval := int(policy.Interval)
		if interval < 1 {
			interval = 1
		}
		start := int(policy.Start)
		// Month index (0-based from January) of the first boundary in
		// local's year that is >= start and aligned to the interval.
		monthIdx := local.Year()*12 + int(local.Month()) - 1
		startIdx := local.Year()*12 + start - 1
		offset := monthIdx - startIdx
		if offset < 0 {
			offset = 0
		}
		n := offset/interval + 1
		boundaryIdx := startIdx + n*interval
		next = time.Date(boundaryIdx/12, time.Month(boundaryIdx%12+1), 1, 0, 0, 0, 0, time.UTC)

	case datastream.SplitOnDays:
		interval := int(policy.Interval)
		if interval < 1 {
			interval = 1
		}
		start := int(policy.Start)
		dayStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, start-1)
		daysSince := int(local.Sub(dayStart).Hours() / 24)
		if daysSince < 0 {
			daysSince = 0
		}
		n := daysSince/interval + 1
		next = dayStart.AddDate(0, 0, n*interval)

	case datastream.SplitOnHours:
		interval := policy.Interval
		if interval <= 0 {
			interval = 24
		}
		start := policy.Start
		dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		hoursSince := local.Sub(dayStart).Hours() - start
		if hoursSince < 0 {
			hoursSince = 0
		}
		n := float64(int(hoursSince/interval)) + 1
		next = dayStart.Add(time.Duration((start + n*interval) * float64(time.Hour)))

	default:
		// SplitOnStore/SplitNone never reach here: callers only consult
		// nextSplitTime for the three calendar-driven modes.
		return after
	}

	utc := next.Add(-time.Duration(policy.TZOffsetHours * float64(time.Hour)))
	return model.FromGoTime(utc)
}

// splitBoundaryBetween reports whether the first split boundary for
// policy after fileEnd falls at or before begin, i.e. whether begin lies
// in a later split interval than fileEnd.
func splitBoundaryBetween(policy datastream.SplitPolicy, fileEnd, begin model.Time) bool {
	switch policy.Mode {
	case datastream.SplitOnMonths, datastream.SplitOnDays, datastream.SplitOnHours:
		boundary := nextSplitTime(policy, fileEnd)
		return !boundary.After(begin)
	default:
		return false
	}
}
