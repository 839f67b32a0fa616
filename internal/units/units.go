// Package units implements the engine's unit-convertibility and
// conversion glue: given two declared unit strings,
// can one be converted to the other, and if so, by what affine
// transform. It builds on github.com/ctessum/unit's dimensional-algebra
// package for the multiplicative part, adding a small named-unit table
// (with offsets, for temperature) on top of the same dimensional core.
package units

import (
	"strings"

	"github.com/ctessum/unit"

	"github.com/armdoe/dsproc/internal/dberr"
)

// entry describes one named unit: the unit.Dimensions it corresponds to,
// and the affine transform (value*scale + offset) from this unit into the
// dimension's SI-coherent unit (e.g. Kelvin for temperature, Pascal for
// pressure).
type entry struct {
	dims   unit.Dimensions
	scale  float64
	offset float64
}

// table enumerates the unit strings the engine's DODs and retrieval
// parameters are expected to use. Unlisted strings are treated as unknown
// and fail convertibility checks.
var table = map[string]entry{
	"unitless":  {unit.Dimless, 1, 0},
	"1":         {unit.Dimless, 1, 0},
	"count":     {unit.Dimless, 1, 0},
	"fraction":  {unit.Dimless, 1, 0},
	"percent":   {unit.Dimless, 0.01, 0},
	"K":         {unit.Kelvin, 1, 0},
	"degK":      {unit.Kelvin, 1, 0},
	"degC":      {unit.Kelvin, 1, 273.15},
	"deg_C":     {unit.Kelvin, 1, 273.15},
	"degF":      {unit.Kelvin, 5.0 / 9.0, 459.67 * 5.0 / 9.0},
	"m":         {unit.Meter, 1, 0},
	"km":        {unit.Meter, 1000, 0},
	"cm":        {unit.Meter, 0.01, 0},
	"mm":        {unit.Meter, 0.001, 0},
	"m/s":       {unit.MeterPerSecond, 1, 0},
	"m s-1":     {unit.MeterPerSecond, 1, 0},
	"km/h":      {unit.MeterPerSecond, 1.0 / 3.6, 0},
	"Pa":        {unit.Pascal, 1, 0},
	"hPa":       {unit.Pascal, 100, 0},
	"mb":        {unit.Pascal, 100, 0},
	"s":         {unit.Second, 1, 0},
	"sec":       {unit.Second, 1, 0},
	"min":       {unit.Second, 60, 0},
	"hr":        {unit.Second, 3600, 0},
	"hour":      {unit.Second, 3600, 0},
	"deg":       {unit.Dimensions{unit.AngleDim: 1}, 1, 0},
	"degree":    {unit.Dimensions{unit.AngleDim: 1}, 1, 0},
	"degrees":   {unit.Dimensions{unit.AngleDim: 1}, 1, 0},
	"rad":       {unit.Dimensions{unit.AngleDim: 1}, 57.29577951308232, 0},
}

// IsEpochUnits reports whether units is a "seconds since ..." time-axis
// units string, which names a dimension (time since an
// epoch) the static table above cannot represent, since it carries
// state (the epoch) rather than a fixed scale/offset.
func IsEpochUnits(units string) bool {
	return strings.HasPrefix(units, "seconds since ")
}

// Convertible reports whether values declared in units `from` can be
// converted to units `to`: both must be known and share the same
// dimensionality, or both must be epoch-units strings.
func Convertible(from, to string) bool {
	if IsEpochUnits(from) || IsEpochUnits(to) {
		return IsEpochUnits(from) && IsEpochUnits(to)
	}
	ef, ok1 := table[from]
	et, ok2 := table[to]
	if !ok1 || !ok2 {
		return from == to // identical unknown strings are trivially convertible.
	}
	return ef.dims.Matches(et.dims)
}

// Convert converts values from units `from` to units `to` in place,
// returning dberr.UnitConvertFailed if the units are not convertible.
// Epoch-unit conversion is handled separately by model.Group.SetBaseTime,
// which also has to rescale samples; Convert only handles fixed
// scale/offset physical units.
func Convert(values []float64, from, to string) error {
	if from == to {
		return nil
	}
	if IsEpochUnits(from) || IsEpochUnits(to) {
		return dberr.New(dberr.UnitConvertFailed,
			"units.Convert: epoch-unit conversion must use model.Group.SetBaseTime, not units.Convert")
	}
	ef, ok1 := table[from]
	et, ok2 := table[to]
	if !ok1 || !ok2 || !ef.dims.Matches(et.dims) {
		return dberr.New(dberr.UnitConvertFailed, "units.Convert: %q is not convertible to %q", from, to)
	}
	for i, v := range values {
		si := v*ef.scale + ef.offset
		values[i] = (si - et.offset) / et.scale
	}
	return nil
}

// ConvertedCopy is like Convert but returns a new slice, leaving values
// unmodified.
func ConvertedCopy(values []float64, from, to string) ([]float64, error) {
	out := append([]float64(nil), values...)
	if err := Convert(out, from, to); err != nil {
		return nil, err
	}
	return out, nil
}
