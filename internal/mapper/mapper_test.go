package mapper

import (
	"testing"

	"github.com/armdoe/dsproc/internal/model"
)

func mkTimes(secs ...int64) []model.Time {
	out := make([]model.Time, len(secs))
	for i, s := range secs {
		out[i] = model.Time{Sec: s}
	}
	return out
}

func TestAlignTimeAxisAppendsToEmptyOutput(t *testing.T) {
	rec, err := AlignTimeAxis(mkTimes(0, 60, 120), nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SampleStart != 0 || rec.InputEnd != 3 || !rec.CreateTimeVar {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestAlignTimeAxisAppendsAfterExisting(t *testing.T) {
	rec, err := AlignTimeAxis(mkTimes(180, 240), mkTimes(0, 60, 120), false)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SampleStart != 3 {
		t.Errorf("expected append at index 3, got %d", rec.SampleStart)
	}
}

func TestAlignTimeAxisDetectsConflict(t *testing.T) {
	_, err := AlignTimeAxis(mkTimes(60, 999), mkTimes(0, 60, 120), false)
	if err == nil {
		t.Fatal("expected a conflicting_time_values error")
	}
}

func TestMapVariableCreatesAndCopiesData(t *testing.T) {
	in := model.NewGroup("in")
	in.DefineDimension("time", 3, true)
	inVar, _ := in.DefineVariable("temp", model.Float, []string{"time"})
	inVar.AppendSamples([]float32{1, 2, 3}, 3)

	out := model.NewGroup("out")
	rec := Record{InputStart: 0, InputEnd: 3, SampleStart: 0}
	if err := MapVariable(in, inVar, "in_ds", out, "temp", rec, Options{DynamicDOD: true}); err != nil {
		t.Fatal(err)
	}
	outVar, ok := out.Variable("temp")
	if !ok {
		t.Fatal("expected output variable to be created")
	}
	if outVar.SampleCount() != 3 || outVar.Float64At(1) != 2 {
		t.Errorf("unexpected output data: count=%d vals=%v", outVar.SampleCount(), outVar.Data)
	}
	src := outVar.Attribute("source")
	if src == nil {
		t.Fatal("expected source attribute to be set")
	}
	if s, _ := src.AsString(); s != "in_ds:temp" {
		t.Errorf("expected source=in_ds:temp, got %q", s)
	}
}

func TestMapVariableRejectsMissingOutputWithoutDynamicDOD(t *testing.T) {
	in := model.NewGroup("in")
	in.DefineDimension("time", 1, true)
	inVar, _ := in.DefineVariable("temp", model.Float, []string{"time"})
	inVar.AppendSamples([]float32{1}, 1)

	out := model.NewGroup("out")
	rec := Record{InputStart: 0, InputEnd: 1, SampleStart: 0}
	if err := MapVariable(in, inVar, "in_ds", out, "temp", rec, Options{DynamicDOD: false}); err == nil {
		t.Fatal("expected an error when output is missing and dynamic-DOD is off")
	}
}

func TestMapVariableRejectsNonLeadingDimMismatch(t *testing.T) {
	in := model.NewGroup("in")
	in.DefineDimension("time", 1, true)
	in.DefineDimension("level", 3, false)
	inVar, _ := in.DefineVariable("profile", model.Float, []string{"time", "level"})
	inVar.AppendSamples([]float32{1, 2, 3}, 1)

	out := model.NewGroup("out")
	out.DefineDimension("time", 0, true)
	out.DefineDimension("level", 2, false)
	out.DefineVariable("profile", model.Float, []string{"time", "level"})

	rec := Record{InputStart: 0, InputEnd: 1, SampleStart: 0}
	if err := MapVariable(in, inVar, "in_ds", out, "profile", rec, Options{}); err == nil {
		t.Fatal("expected a dimension-mismatch error for differing level lengths")
	}
}

func TestMapCompanionsZeroInitializesMissingInputQC(t *testing.T) {
	in := model.NewGroup("in")
	in.DefineDimension("time", 2, true)
	inVar, _ := in.DefineVariable("temp", model.Float, []string{"time"})
	inVar.AppendSamples([]float32{1, 2}, 2)

	out := model.NewGroup("out")
	out.DefineDimension("time", 0, true)
	outVar, _ := out.DefineVariable("temp", model.Float, []string{"time"})
	out.DefineVariable("qc_temp", model.Int, []string{"time"})

	rec := Record{InputStart: 0, InputEnd: 2, SampleStart: 0}
	if err := MapCompanions(in, inVar, out, outVar, rec, Options{}); err != nil {
		t.Fatal(err)
	}
	qcOut, ok := out.QCVariable(outVar)
	if !ok {
		t.Fatal("expected qc_temp to exist")
	}
	if qcOut.SampleCount() != 2 {
		t.Errorf("expected qc_temp to be zero-initialized for 2 samples, got %d", qcOut.SampleCount())
	}
}
