// Package merge implements the observation merger: reconciling adjacent per-observation groups retrieved
// from one input datastream into a single, time-ordered dataset.
package merge

import (
	"regexp"
	"time"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// historyTimestamp matches the "YYYY-MM-DD HH:MM:SS"-shaped timestamp an
// observation's "history" attribute records at creation.
var historyTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

// creationTime returns the timestamp embedded in g's "history" attribute,
// and whether one was found.
func creationTime(g *model.Group) (time.Time, bool) {
	a := g.Attribute("history")
	if a == nil {
		return time.Time{}, false
	}
	s, ok := a.AsString()
	if !ok {
		return time.Time{}, false
	}
	m := historyTimestamp.FindString(s)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", m, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sampleCount returns g's time variable's sample count, or 0 if g has none.
func sampleCount(g *model.Group) int {
	tv, _, err := g.FindTimeVariable()
	if err != nil {
		return 0
	}
	return tv.SampleCount()
}

// timeRange returns the first and last sample times of g's time variable.
func timeRange(g *model.Group) (start, end model.Time, err error) {
	n := sampleCount(g)
	if n == 0 {
		return model.Time{}, model.Time{}, dberr.New(dberr.NoSuchName, "merge.timeRange: observation group %q has no samples", g.Name)
	}
	vals, err := g.GetSampleTimevals(0, n)
	if err != nil {
		return model.Time{}, model.Time{}, err
	}
	return vals[0], vals[n-1], nil
}

// ResolveOverlap decides which of two overlapping observations to keep:
// the newer observation wins provided its sample count is at least 75%
// of the other's; ties on unknown creation time fall back to sample
// count; the loser is returned for deletion.
func ResolveOverlap(a, b *model.Group) (keep, lose *model.Group) {
	aCount, bCount := sampleCount(a), sampleCount(b)
	aTime, aOK := creationTime(a)
	bTime, bOK := creationTime(b)

	switch {
	case aOK && bOK:
		newer, older := a, b
		newerCount, olderCount := aCount, bCount
		if bTime.After(aTime) {
			newer, older = b, a
			newerCount, olderCount = bCount, aCount
		}
		if float64(newerCount) >= 0.75*float64(olderCount) {
			return newer, older
		}
		return older, newer
	case aOK && !bOK:
		return a, b
	case bOK && !aOK:
		return b, a
	default:
		if bCount > aCount {
			return b, a
		}
		return a, b
	}
}

// dimsCompatible reports whether a and b have identical dimension name
// sets, lengths, and unlimited flags.
func dimsCompatible(a, b *model.Group) bool {
	ad, bd := a.Dimensions(), b.Dimensions()
	if len(ad) != len(bd) {
		return false
	}
	byName := make(map[string]*model.Dimension, len(bd))
	for _, d := range bd {
		byName[d.Name] = d
	}
	for _, da := range ad {
		db, ok := byName[da.Name]
		if !ok || db.IsUnlimited != da.IsUnlimited {
			return false
		}
		if !da.IsUnlimited && da.Length != db.Length {
			return false
		}
	}
	return true
}

// varsCompatible reports whether a and b declare the same variables (same
// shapes and dimension ordering), and that their static (non
// time-varying) variables are byte-for-byte identical.
func varsCompatible(a, b *model.Group) bool {
	av, bv := a.Variables(), b.Variables()
	if len(av) != len(bv) {
		return false
	}
	byName := make(map[string]*model.Variable, len(bv))
	for _, v := range bv {
		byName[v.Name] = v
	}
	for _, va := range av {
		vb, ok := byName[va.Name]
		if !ok || len(va.DimNames()) != len(vb.DimNames()) {
			return false
		}
		for i, dn := range va.DimNames() {
			if dn != vb.DimNames()[i] {
				return false
			}
		}
		if !va.IsTimeVarying() && !va.Equal(vb) {
			return false
		}
	}
	return true
}

// Compatible reports whether a and b satisfy the merge
// precondition: identical dimension sets/lengths/unlimited flags,
// identical variable shapes/ordering, and identical static data.
func Compatible(a, b *model.Group) bool {
	return dimsCompatible(a, b) && varsCompatible(a, b)
}

// Append appends b's unlimited-dimension samples (including its time
// variable) onto a, matching variables by name; b is left untouched so
// the caller can safely discard it afterward.
func Append(a, b *model.Group) error {
	for _, vb := range b.Variables() {
		if !vb.IsTimeVarying() {
			continue
		}
		va, ok := a.Variable(vb.Name)
		if !ok {
			continue
		}
		if err := va.AppendSamples(vb.Data, vb.SampleCount()); err != nil {
			return dberr.Wrap(dberr.DimMismatch, err, "merge.Append: variable %q", vb.Name)
		}
	}
	return nil
}

// MergeObservations runs the full per-parent-group merge algorithm over
// parent's children, assumed ordered by start time. filterInputObs
// corresponds to the global overlap-filter mode including FILTER_INPUT_OBS;
// when false, any overlap is fatal.
func MergeObservations(parent *model.Group, filterInputObs bool) error {
	// First pass: resolve overlaps, dropping the loser of each pair.
	// Restart scanning from the same index after a deletion since the
	// neighbor set has changed.
	obs := parent.Children()
	for i := 0; i < len(obs)-1; {
		a, b := obs[i], obs[i+1]
		_, aEnd, err := timeRange(a)
		if err != nil {
			return err
		}
		bStart, _, err := timeRange(b)
		if err != nil {
			return err
		}

		if bStart.After(aEnd) {
			i++
			continue
		}

		if !filterInputObs {
			return dberr.New(dberr.OverlappingInputData,
				"merge.MergeObservations: observations %q [..%v] and %q [%v..] overlap in datastream group %q",
				a.Name, aEnd, b.Name, bStart, parent.Name)
		}

		_, lose := ResolveOverlap(a, b)
		parent.DeleteChild(lose.Name)
		obs = parent.Children()
	}

	// Second pass: merge adjacent, non-overlapping, structurally
	// compatible observations by appending.
	obs = parent.Children()
	for i := 0; i < len(obs)-1; {
		a, b := obs[i], obs[i+1]
		if !Compatible(a, b) {
			i++
			continue
		}
		if err := Append(a, b); err != nil {
			return err
		}
		parent.DeleteChild(b.Name)
		obs = parent.Children()
	}
	return nil
}
