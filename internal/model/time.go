package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/armdoe/dsproc/internal/dberr"
)

// Time is an absolute instant, represented as a (seconds, microseconds)
// pair since the Unix epoch. Using an explicit pair rather than a single
// float64 avoids the precision loss that comes from accumulating large
// epoch offsets in a float.
type Time struct {
	Sec  int64
	USec int64
}

// FromGoTime converts a time.Time to a Time, truncating to microsecond
// resolution.
func FromGoTime(t time.Time) Time {
	return Time{Sec: t.Unix(), USec: int64(t.Nanosecond()) / 1000}
}

// GoTime converts t back to a time.Time in UTC.
func (t Time) GoTime() time.Time {
	return time.Unix(t.Sec, t.USec*1000).UTC()
}

// Compare returns -1, 0, or 1 as t is before, equal to, or after o.
func (t Time) Compare(o Time) int {
	switch {
	case t.Sec < o.Sec, t.Sec == o.Sec && t.USec < o.USec:
		return -1
	case t.Sec == o.Sec && t.USec == o.USec:
		return 0
	default:
		return 1
	}
}

func (t Time) Before(o Time) bool { return t.Compare(o) < 0 }
func (t Time) After(o Time) bool  { return t.Compare(o) > 0 }
func (t Time) Equal(o Time) bool  { return t.Compare(o) == 0 }

// Add returns t shifted by a number of seconds (may be fractional).
func (t Time) Add(seconds float64) Time {
	total := float64(t.Sec) + float64(t.USec)/1e6 + seconds
	sec := int64(total)
	usec := int64((total - float64(sec)) * 1e6)
	if usec < 0 {
		sec--
		usec += 1000000
	}
	return Time{Sec: sec, USec: usec}
}

// SecondsSince returns the number of (fractional) seconds from o to t.
func (t Time) SecondsSince(o Time) float64 {
	return float64(t.Sec-o.Sec) + float64(t.USec-o.USec)/1e6
}

// epochPrefix opens the canonical epoch-unit string layout:
// "seconds since YYYY-MM-DD hh:mm:ss".
const epochPrefix = "seconds since "

// ParseEpochUnits parses a units string of the form
// "seconds since YYYY-MM-DD hh:mm:ss[.ffffff][ UTC]" and returns the
// encoded base epoch. There is no corpus library for this grammar (see
// DESIGN.md); the layout below accepts an optional fractional-seconds
// component and an optional trailing "UTC" marker.
func ParseEpochUnits(units string) (time.Time, error) {
	if !strings.HasPrefix(units, epochPrefix) {
		return time.Time{}, dberr.New(dberr.UnitConvertFailed,
			"model.ParseEpochUnits: %q does not start with %q", units, epochPrefix)
	}
	rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(units, epochPrefix)), "UTC"))
	rest = strings.TrimSpace(rest)
	layouts := []string{
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, rest, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, dberr.New(dberr.UnitConvertFailed,
		"model.ParseEpochUnits: could not parse epoch from %q", units)
}

// FormatEpochUnits renders epoch back into the canonical units string.
func FormatEpochUnits(epoch time.Time) string {
	return fmt.Sprintf("seconds since %s", epoch.UTC().Format("2006-01-02 15:04:05"))
}

// FindTimeVariable locates g's designated time variable:
// either "time" directly, or the legacy "base_time"+"time_offset" pair.
// It returns the time-bearing variable (for attribute purposes) and, when
// present, the separate base_time variable.
func (g *Group) FindTimeVariable() (timeVar, baseTimeVar *Variable, err error) {
	if tv, ok := g.Variable("time"); ok {
		return tv, nil, nil
	}
	tv, ok1 := g.Variable("time_offset")
	bv, ok2 := g.Variable("base_time")
	if ok1 && ok2 {
		return tv, bv, nil
	}
	return nil, nil, dberr.New(dberr.NoSuchName, "model.Group.FindTimeVariable: no time variable in group %q", g.Name)
}

// BaseEpoch returns the base epoch encoded in the time variable's units
// attribute (or, for the legacy pair, the integer value of base_time
// itself).
func (g *Group) BaseEpoch() (time.Time, error) {
	tv, bv, err := g.FindTimeVariable()
	if err != nil {
		return time.Time{}, err
	}
	if bv != nil {
		// Legacy pair: base_time holds seconds-since-1970 directly.
		if bv.Len() == 0 {
			return time.Time{}, dberr.New(dberr.NoSuchName, "model.Group.BaseEpoch: base_time has no value")
		}
		return time.Unix(int64(bv.Float64At(0)), 0).UTC(), nil
	}
	a := tv.Attribute("units")
	if a == nil {
		return time.Time{}, dberr.New(dberr.UnitConvertFailed, "model.Group.BaseEpoch: time variable has no units attribute")
	}
	units, _ := a.AsString()
	return ParseEpochUnits(units)
}

// GetSampleTimevals returns the absolute sample times for count samples
// starting at start, at microsecond resolution: the pairwise sum of the
// base epoch and the time variable's values.
func (g *Group) GetSampleTimevals(start, count int) ([]Time, error) {
	tv, _, err := g.FindTimeVariable()
	if err != nil {
		return nil, err
	}
	base, err := g.BaseEpoch()
	if err != nil {
		return nil, err
	}
	baseTime := FromGoTime(base)
	n := tv.SampleCount()
	if start < 0 || start > n {
		return nil, dberr.New(dberr.NoSuchName, "model.Group.GetSampleTimevals: start %d out of range [0,%d]", start, n)
	}
	end := start + count
	if count < 0 || end > n {
		end = n
	}
	out := make([]Time, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, baseTime.Add(tv.Float64At(i)))
	}
	return out, nil
}

// SetBaseTime rewrites the time variable's units attribute to encode a new
// base epoch, rescaling stored offsets so that real sample instants are
// preserved. When the legacy base_time/time_offset pair is
// in use, base_time's value is updated and time_offset's values rescaled;
// longName, if non-empty, is set as the time variable's long_name
// attribute.
func (g *Group) SetBaseTime(longName string, baseEpoch time.Time) error {
	tv, bv, err := g.FindTimeVariable()
	if err != nil {
		return err
	}
	oldBase, err := g.BaseEpoch()
	if err != nil {
		return err
	}
	shift := oldBase.Sub(baseEpoch).Seconds()
	for i := 0; i < tv.SampleCount(); i++ {
		tv.SetFloat64At(i, tv.Float64At(i)+shift)
	}
	if bv != nil {
		bv.SetFloat64At(0, float64(baseEpoch.Unix()))
	}
	units := FormatEpochUnits(baseEpoch)
	if err := tv.SetAttribute("units", Char, units); err != nil {
		return err
	}
	if longName != "" {
		_ = tv.SetAttribute("long_name", Char, longName)
	}
	return nil
}

// CheckTimesIncreasing validates that times is non-decreasing, an
// invariant that must hold before any store.
func CheckTimesIncreasing(times []Time) error {
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) && !times[i].Equal(times[i-1]) {
			return dberr.New(dberr.TimeOrderViolation,
				"model.CheckTimesIncreasing: sample %d time is not >= sample %d time", i, i-1)
		}
	}
	return nil
}
