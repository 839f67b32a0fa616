package transform

import (
	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
	"github.com/armdoe/dsproc/internal/units"
)

// CoordParams names the transformation parameters for one coordinate
// dimension.
type CoordParams struct {
	// MappedVar, if non-empty, names a source variable to locate across
	// the retriever's input datastreams for tier 1 (a mapped coordinate
	// variable).
	MappedVar string
	Required  bool

	// Values, if non-nil, is an explicit value array for tier 2.
	Values []float64
	Units  string

	// Grid parameters for tier 4 (computed grid).
	Start, Interval float64
	Length          int
	GridUnits       string
}

// Locator resolves a mapped coordinate variable by name across the
// retriever's input datastreams. When it returns (nil, false),
// BuildCoordinateValues returns a missing_required_var error if
// CoordParams.Required is set and a missing_optional_mapped_coord error
// otherwise.
type Locator func(varName string) (*model.Variable, bool)

// BuildCoordinateValues implements the four-tier coordinate
// construction precedence, returning the target values (in targetUnits)
// for one named coordinate dimension. retrievedSelf, if non-nil, is the
// dimension's own retrieved coordinate variable, used by tiers 3 and 4's
// fallback.
func BuildCoordinateValues(dimName string, p CoordParams, locate Locator, retrievedSelf *model.Variable, targetUnits string) ([]float64, error) {
	// Tier 1: mapped coordinate variable.
	if p.MappedVar != "" {
		v, ok := locate(p.MappedVar)
		if !ok {
			if p.Required {
				return nil, dberr.New(dberr.MissingRequiredVar,
					"transform.BuildCoordinateValues: required mapped coordinate %q not found for dimension %q", p.MappedVar, dimName)
			}
			return nil, dberr.New(dberr.MissingOptionalMappedCoord,
				"transform.BuildCoordinateValues: optional mapped coordinate %q not found for dimension %q", p.MappedVar, dimName)
		}
		return extractConverted(v, targetUnits)
	}

	// Tier 2: explicit value array.
	if p.Values != nil {
		if p.Units != "" && targetUnits != "" && p.Units != targetUnits {
			out, err := units.ConvertedCopy(p.Values, p.Units, targetUnits)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
		return append([]float64(nil), p.Values...), nil
	}

	// Tier 3: implicit self-mapping, no interval given; copy the
	// retrieved coordinate variable verbatim (converting units).
	if p.Interval == 0 && retrievedSelf != nil {
		return extractConverted(retrievedSelf, targetUnits)
	}

	// Tier 4: computed grid from (start, length, interval), falling back
	// to a retrieved coordinate variable's values for any quantity not
	// otherwise given.
	start, interval, length := p.Start, p.Interval, p.Length
	if length == 0 && retrievedSelf != nil {
		length = retrievedSelf.SampleCount()
	}
	if length == 0 {
		return nil, dberr.New(dberr.NoDOD, "transform.BuildCoordinateValues: cannot determine grid length for dimension %q", dimName)
	}
	out := make([]float64, length)
	for i := range out {
		out[i] = start + float64(i)*interval
	}
	return out, nil
}

// extractConverted reads v's samples as float64, converting from v's own
// "units" attribute to targetUnits if both are known and differ.
func extractConverted(v *model.Variable, targetUnits string) ([]float64, error) {
	n := v.SampleCount() * v.SampleSize()
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = v.Float64At(i)
	}
	srcUnits := ""
	if a := v.Attribute("units"); a != nil {
		srcUnits, _ = a.AsString()
	}
	if targetUnits == "" || srcUnits == "" || srcUnits == targetUnits {
		return vals, nil
	}
	return units.ConvertedCopy(vals, srcUnits, targetUnits)
}

// NeedsTransform implements the transform-necessity decision:
// transformation is performed iff a non-empty transform parameter is set,
// the retrieved coordinate dimension's length or values differ from the
// target's, or a dimension grouping is defined.
func NeedsTransform(hasTransformParam bool, retrievedLen, targetLen int, retrievedValues, targetValues []float64, hasDimGrouping bool) bool {
	if hasTransformParam || hasDimGrouping {
		return true
	}
	if retrievedLen != targetLen {
		return true
	}
	for i := range targetValues {
		if i >= len(retrievedValues) || retrievedValues[i] != targetValues[i] {
			return true
		}
	}
	return false
}
