// Package qc implements the QC engine: bit-description-driven
// limit/delta/time/solar-obstruction checks and the transformation-QC
// consolidation shared with the variable mapper.
package qc

import (
	"strconv"
	"strings"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// TransBit names one bit of the canonical 13-bit transformation-QC
// scheme. Bit descriptions must be produced verbatim, since downstream
// consumers parse these strings.
type TransBit int

const (
	TransBad TransBit = iota + 1
	TransSomeIndeterminateInput
	TransNonStandardInterpolation
	TransExtrapolate
	TransNotUsingClosest
	TransSomeBadInputs
	TransZeroWeight
	TransOutsideRange
	TransAllBadInputs
	TransBadStd
	TransIndStd
	TransBadGoodfrac
	TransIndGoodfrac
)

// transDescriptions holds the canonical bit_N_description text, in bit
// order (index 0 unused, bits are 1-based).
var transDescriptions = [...]string{
	0:                             "",
	TransBad:                      "Transformation could not finish",
	TransSomeIndeterminateInput:   "Some indeterminate inputs were used in transformation",
	TransNonStandardInterpolation: "Non-standard interpolation method was used",
	TransExtrapolate:              "Extrapolation was used to determine value",
	TransNotUsingClosest:          "Nearest good value was not the nearest actual value",
	TransSomeBadInputs:            "Some bad inputs were skipped in averaging",
	TransZeroWeight:               "Average had zero total weight",
	TransOutsideRange:             "Value was outside the range of the coordinate variable",
	TransAllBadInputs:             "All inputs were bad in averaging",
	TransBadStd:                   "Standard deviation exceeds bad maximum",
	TransIndStd:                   "Standard deviation exceeds indeterminate maximum",
	TransBadGoodfrac:              "Fraction of good inputs is less than the bad minimum",
	TransIndGoodfrac:              "Fraction of good inputs is less than the indeterminate minimum",
}

// transAssessments holds "Bad" or "Indeterminate" per bit: bits 1
// (could not finish), 10 (std above bad maximum) and 12 (good fraction
// below bad minimum) are Bad and the rest are Indeterminate in the
// canonical 13-bit scheme.
var transAssessments = [...]string{
	0:                             "",
	TransBad:                      "Bad",
	TransSomeIndeterminateInput:   "Indeterminate",
	TransNonStandardInterpolation: "Indeterminate",
	TransExtrapolate:              "Indeterminate",
	TransNotUsingClosest:          "Indeterminate",
	TransSomeBadInputs:            "Indeterminate",
	TransZeroWeight:               "Indeterminate",
	TransOutsideRange:             "Indeterminate",
	TransAllBadInputs:             "Indeterminate",
	TransBadStd:                   "Bad",
	TransIndStd:                   "Indeterminate",
	TransBadGoodfrac:              "Bad",
	TransIndGoodfrac:              "Indeterminate",
}

// DefineTransformationQC creates a QC variable named qcName in g, shaped
// like dataVar, carrying the canonical 13-bit scheme's bit_N_description
// and bit_N_assessment attributes. The Caracena scheme reuses the same
// 13 bits; spatial-specific semantics are carried by the caller via the
// values it writes, not by a separate bit table.
func DefineTransformationQC(g *model.Group, dataVar *model.Variable, qcName string) (*model.Variable, error) {
	qv, err := model.CopyVariableInto(g, dataVar, g, qcName)
	if err != nil {
		return nil, err
	}
	qv.Type = model.Int
	for bit := TransBad; bit <= TransIndGoodfrac; bit++ {
		if err := qv.SetAttribute(bitDescAttr(int(bit)), model.Char, transDescriptions[bit]); err != nil {
			return nil, err
		}
		if err := qv.SetAttribute(bitAssessAttr(int(bit)), model.Char, transAssessments[bit]); err != nil {
			return nil, err
		}
	}
	return qv, nil
}

func bitDescAttr(n int) string   { return "bit_" + strconv.Itoa(n) + "_description" }
func bitAssessAttr(n int) string { return "bit_" + strconv.Itoa(n) + "_assessment" }

// IsTransformationQCVariable reports whether v's bit-description
// attributes match the canonical transformation-QC descriptors closely
// enough to identify it as one. A variable qualifies if its bit 1
// description matches the canonical "Transformation could not finish"
// text.
func IsTransformationQCVariable(v *model.Variable) bool {
	a := v.Attribute(bitDescAttr(1))
	if a == nil {
		return false
	}
	s, ok := a.AsString()
	return ok && strings.EqualFold(strings.TrimSpace(s), transDescriptions[TransBad])
}

// ConsolidateTransformationQC implements the transformation-QC rollup:
// given a transformation-QC variable's bit_N_assessment attributes
// (consulting bitDescOverrides for process-global user-specified
// descriptions when the variable's own attributes are absent), it
// returns the bad-mask and indeterminate-mask (as single-bit values:
// bad_flag=1, ind_flag=2) and the consolidated per-sample values. A bit
// whose assessment reads "bad" (case-insensitive) sets bad_flag; any
// other assessed bit sets ind_flag.
func ConsolidateTransformationQC(in *model.Variable, bitDescOverrides map[int]string) (badFlag, indFlag int32, values []int32, err error) {
	const (
		bad = int32(1) << 0
		ind = int32(1) << 1
	)
	badFlag, indFlag = bad, ind

	badBits, indBits := int64(0), int64(0)
	for bit := 1; bit <= 32; bit++ {
		desc := ""
		if a := in.Attribute(bitAssessAttr(bit)); a != nil {
			desc, _ = a.AsString()
		} else if override, ok := bitDescOverrides[bit]; ok {
			desc = override
		} else {
			continue
		}
		mask := int64(1) << uint(bit-1)
		if strings.EqualFold(strings.TrimSpace(desc), "bad") {
			badBits |= mask
		} else {
			indBits |= mask
		}
	}

	n := in.SampleCount() * in.SampleSize()
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		raw := int64(in.Float64At(i))
		var v int32
		if raw&badBits != 0 {
			v |= bad
		}
		if raw&indBits != 0 {
			v |= ind
		}
		out[i] = v
	}
	return badFlag, indFlag, out, nil
}

// RollupTransQC replaces in's place in dst (under outName) with the
// consolidated two-bit QC variable; dst must already have in's companion
// data variable mapped under the same base name.
func RollupTransQC(in *model.Variable, dst *model.Group, outName string, bitDescOverrides map[int]string) (*model.Variable, error) {
	badFlag, indFlag, values, err := ConsolidateTransformationQC(in, bitDescOverrides)
	if err != nil {
		return nil, dberr.Wrap(dberr.TypeMismatch, err, "qc.RollupTransQC: variable %q", in.Name)
	}
	out, ok := dst.Variable(outName)
	if !ok {
		out, err = dst.DefineVariable(outName, model.Int, in.DimNames())
		if err != nil {
			return nil, err
		}
	}
	if err := out.SetAttribute("bit_1_description", model.Char, "Transformation could not finish"); err != nil {
		return nil, err
	}
	if err := out.SetAttribute("bit_1_assessment", model.Char, "Bad"); err != nil {
		return nil, err
	}
	if err := out.SetAttribute("bit_2_description", model.Char, "Transformation resulted in an indeterminate outcome"); err != nil {
		return nil, err
	}
	if err := out.SetAttribute("bit_2_assessment", model.Char, "Indeterminate"); err != nil {
		return nil, err
	}
	_ = badFlag
	_ = indFlag
	if err := out.AppendSamples(values, in.SampleCount()); err != nil {
		return nil, err
	}
	return out, nil
}
