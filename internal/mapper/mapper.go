// Package mapper implements the variable mapper: walking the retrieved
// (or transformed) data tree and materializing tagged variables into
// their output datasets, with time-axis alignment.
package mapper

import (
	"fmt"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
	"github.com/armdoe/dsproc/internal/qc"
)

// Record is a mapping record: the input time-axis slice
// and where in the output time axis it lands.
type Record struct {
	InputStart, InputEnd int // half-open [InputStart, InputEnd) into the input's sample axis
	SampleStart          int // index in the output where InputStart should land
	CreateTimeVar        bool
}

// ClipToMapRange returns the [start, end) indices of times falling
// within [mapStart, mapEnd], the configured map time range, which
// defaults to the current processing interval.
func ClipToMapRange(times []model.Time, mapStart, mapEnd model.Time) (start, end int) {
	start, end = 0, len(times)
	for start < len(times) && times[start].Before(mapStart) {
		start++
	}
	for end > start && times[end-1].After(mapEnd) {
		end--
	}
	return start, end
}

// AlignTimeAxis implements the time-axis alignment rules in
// order: append to an empty output, or locate-and-append/conflict-check
// against a populated one.
func AlignTimeAxis(inputTimes, outputTimes []model.Time, dynamicDOD bool) (Record, error) {
	if len(outputTimes) == 0 {
		return Record{InputStart: 0, InputEnd: len(inputTimes), SampleStart: 0, CreateTimeVar: dynamicDOD}, nil
	}

	first := inputTimes[0]
	idx := 0
	for idx < len(outputTimes) && outputTimes[idx].Before(first) {
		idx++
	}
	if idx == len(outputTimes) {
		return Record{InputStart: 0, InputEnd: len(inputTimes), SampleStart: idx}, nil
	}

	n := len(inputTimes)
	if idx+n > len(outputTimes) {
		n = len(outputTimes) - idx
	}
	for i := 0; i < n; i++ {
		if !outputTimes[idx+i].Equal(inputTimes[i]) {
			return Record{}, dberr.New(dberr.ConflictingTimeValues,
				"mapper.AlignTimeAxis: input sample %d (%v) conflicts with existing output sample %d (%v)",
				i, inputTimes[i], idx+i, outputTimes[idx+i])
		}
	}
	return Record{InputStart: 0, InputEnd: len(inputTimes), SampleStart: idx}, nil
}

// Options carries the switches the mapper consults while copying one
// variable.
type Options struct {
	DynamicDOD             bool
	RollupTransQC          bool
	TransQCBitDescriptions map[int]string
}

// MapVariable copies in (a data variable from the input group) into dst
// under outName, the output variable is created by
// cloning the input when absent and dynamic-DOD mode is on; data is
// copied with dimension-length reconciliation (mismatched non-leading
// dims are fatal); the "source" attribute is set when unlocked or
// missing.
func MapVariable(inGroup *model.Group, in *model.Variable, inDSName string, dst *model.Group, outName string, rec Record, opts Options) error {
	out, existed := dst.Variable(outName)
	if !existed {
		if !opts.DynamicDOD {
			return dberr.New(dberr.NoSuchName,
				"mapper.MapVariable: output variable %q does not exist and dynamic-DOD mode is off", outName)
		}
		var err error
		out, err = model.CopyVariableInto(inGroup, in, dst, outName)
		if err != nil {
			return err
		}
	}

	if err := copyVariableData(in, out, rec); err != nil {
		return dberr.Wrap(dberr.DimMismatch, err, "mapper.MapVariable: variable %q", outName)
	}

	if a := out.Attribute("source"); a == nil || !a.Locked {
		_ = out.SetAttribute("source", model.Char, fmt.Sprintf("%s:%s", inDSName, in.Name))
	}

	return nil
}

// copyVariableData copies in's samples [rec.InputStart, rec.InputEnd)
// into out starting at out sample rec.SampleStart, reconciling
// non-leading dimension mismatches (fatal) and extending out's sample
// count as needed.
func copyVariableData(in, out *model.Variable, rec Record) error {
	inDims, outDims := in.DimNames(), out.DimNames()
	if len(inDims) != len(outDims) {
		return dberr.New(dberr.DimMismatch, "variable %q: input has %d dims, output has %d", in.Name, len(inDims), len(outDims))
	}
	for i := 1; i < len(inDims); i++ {
		if in.Shape()[i] != out.Shape()[i] {
			return dberr.New(dberr.DimMismatch,
				"variable %q: non-leading dimension %q length mismatch (%d vs %d)",
				in.Name, inDims[i], in.Shape()[i], out.Shape()[i])
		}
	}

	size := in.SampleSize()
	n := rec.InputEnd - rec.InputStart
	if n <= 0 {
		return nil
	}

	if rec.SampleStart+n > out.SampleCount() {
		gap := rec.SampleStart - out.SampleCount()
		if gap > 0 {
			if err := out.AppendSamples(out.Type.ZeroSlice(gap*size), gap); err != nil {
				return err
			}
		}
		toAppend := rec.SampleStart + n - out.SampleCount()
		values := sliceAt(in, rec.InputEnd-toAppend, rec.InputEnd, size)
		if err := out.AppendSamples(values, toAppend); err != nil {
			return err
		}
		n -= toAppend
	}
	for i := 0; i < n; i++ {
		for j := 0; j < size; j++ {
			out.SetFloat64At((rec.SampleStart+i)*size+j, in.Float64At((rec.InputStart+i)*size+j))
		}
	}
	return nil
}

// sliceAt extracts in's flattened data for samples [from, to) as a slice
// of in's storage type, for appending onto an output variable.
func sliceAt(in *model.Variable, from, to, size int) interface{} {
	n := to - from
	out := in.Type.ZeroSlice(n * size)
	for i := 0; i < n*size; i++ {
		setAt(out, i, in.Float64At(from*size+i))
	}
	return out
}

func setAt(data interface{}, i int, x float64) {
	switch s := data.(type) {
	case []int8:
		s[i] = int8(x)
	case []byte:
		s[i] = byte(x)
	case []int16:
		s[i] = int16(x)
	case []int32:
		s[i] = int32(x)
	case []float32:
		s[i] = float32(x)
	case []float64:
		s[i] = x
	}
}

// MapCompanions copies in's QC, bounds, and metric companions onto out's companions in dst, using the same record. When in has
// no QC variable but dst already has one for out, the output slice is
// zero-initialized rather than left untouched.
func MapCompanions(inGroup *model.Group, in *model.Variable, dst *model.Group, out *model.Variable, rec Record, opts Options) error {
	if qcIn, ok := inGroup.QCVariable(in); ok {
		qcName := "qc_" + out.Name
		if opts.RollupTransQC && qc.IsTransformationQCVariable(qcIn) {
			if _, err := qc.RollupTransQC(qcIn, dst, qcName, opts.TransQCBitDescriptions); err != nil {
				return err
			}
		} else {
			if err := MapVariable(inGroup, qcIn, "", dst, qcName, rec, opts); err != nil {
				return err
			}
		}
	} else if qcOut, ok := dst.QCVariable(out); ok {
		n := rec.InputEnd - rec.InputStart
		if n > 0 {
			size := qcOut.SampleSize()
			gap := rec.SampleStart - qcOut.SampleCount()
			if gap > 0 {
				_ = qcOut.AppendSamples(qcOut.Type.ZeroSlice(gap*size), gap)
			}
			if toAppend := rec.SampleStart + n - qcOut.SampleCount(); toAppend > 0 {
				_ = qcOut.AppendSamples(qcOut.Type.ZeroSlice(toAppend*size), toAppend)
			}
		}
	}

	if bIn, ok := inGroup.BoundsVariable(in); ok {
		_ = MapVariable(inGroup, bIn, "", dst, out.Name+"_bounds", rec, opts)
	}
	for _, suffix := range model.MetricSuffixes {
		if mIn, ok := inGroup.MetricVariable(in, suffix); ok {
			_ = MapVariable(inGroup, mIn, "", dst, out.Name+"_"+suffix, rec, opts)
		}
	}
	return nil
}
