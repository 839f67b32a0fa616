package model

import (
	"testing"
	"time"
)

func TestDefineAndAppend(t *testing.T) {
	g := NewGroup("root")
	if _, err := g.DefineDimension("time", 0, true); err != nil {
		t.Fatalf("DefineDimension: %v", err)
	}
	v, err := g.DefineVariable("temp", Float, []string{"time"})
	if err != nil {
		t.Fatalf("DefineVariable: %v", err)
	}
	if err := v.AppendSamples([]float32{1, 2, 3}, 3); err != nil {
		t.Fatalf("AppendSamples: %v", err)
	}
	if v.SampleCount() != 3 {
		t.Fatalf("SampleCount = %d, want 3", v.SampleCount())
	}
	d, _ := g.Dimension("time")
	if d.Length != 3 {
		t.Fatalf("unlimited dimension did not grow: got %d", d.Length)
	}
}

func TestDefineVariableLockedDimensionRejectsOverflow(t *testing.T) {
	g := NewGroup("root")
	g.DefineDimension("bound", 2, false)
	v, _ := g.DefineVariable("b", Double, []string{"bound"})
	if err := v.AppendSamples([]float64{1, 2, 3}, 3); err == nil {
		t.Fatal("expected error appending past a non-unlimited dimension's length")
	}
}

func TestSampleSize(t *testing.T) {
	g := NewGroup("root")
	g.DefineDimension("time", 0, true)
	g.DefineDimension("bound", 2, false)
	v, _ := g.DefineVariable("temp_bounds", Double, []string{"time", "bound"})
	if v.SampleSize() != 2 {
		t.Fatalf("SampleSize = %d, want 2", v.SampleSize())
	}
}

func TestCompanionLookup(t *testing.T) {
	g := NewGroup("root")
	g.DefineDimension("time", 0, true)
	tv, _ := g.DefineVariable("temp", Float, []string{"time"})
	g.DefineVariable("qc_temp", Int, []string{"time"})
	g.DefineVariable("temp_std", Float, []string{"time"})
	if _, ok := g.QCVariable(tv); !ok {
		t.Fatal("expected qc_temp companion")
	}
	if _, ok := g.MetricVariable(tv, "std"); !ok {
		t.Fatal("expected temp_std companion")
	}
	if base, ok := IsCompanionName("qc_temp"); !ok || base != "temp" {
		t.Fatalf("IsCompanionName(qc_temp) = %q, %v", base, ok)
	}
}

func TestEpochRoundTrip(t *testing.T) {
	units := "seconds since 2020-01-15 00:00:00"
	epoch, err := ParseEpochUnits(units)
	if err != nil {
		t.Fatalf("ParseEpochUnits: %v", err)
	}
	want := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	if !epoch.Equal(want) {
		t.Fatalf("epoch = %v, want %v", epoch, want)
	}
	if got := FormatEpochUnits(epoch); got != units {
		t.Fatalf("FormatEpochUnits = %q, want %q", got, units)
	}
}

func TestGetSampleTimevals(t *testing.T) {
	g := NewGroup("root")
	g.DefineDimension("time", 0, true)
	tv, _ := g.DefineVariable("time", Double, []string{"time"})
	tv.SetAttribute("units", Char, "seconds since 2020-01-15 00:00:00")
	tv.AppendSamples([]float64{0, 1, 2}, 3)

	times, err := g.GetSampleTimevals(0, -1)
	if err != nil {
		t.Fatalf("GetSampleTimevals: %v", err)
	}
	if len(times) != 3 {
		t.Fatalf("len(times) = %d, want 3", len(times))
	}
	want0 := FromGoTime(time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
	if !times[0].Equal(want0) {
		t.Fatalf("times[0] = %+v, want %+v", times[0], want0)
	}
	if err := CheckTimesIncreasing(times); err != nil {
		t.Fatalf("CheckTimesIncreasing: %v", err)
	}
}

func TestSetBaseTimePreservesInstants(t *testing.T) {
	g := NewGroup("root")
	g.DefineDimension("time", 0, true)
	tv, _ := g.DefineVariable("time", Double, []string{"time"})
	tv.SetAttribute("units", Char, "seconds since 2020-01-15 00:00:00")
	tv.AppendSamples([]float64{0, 60, 120}, 3)

	before, err := g.GetSampleTimevals(0, -1)
	if err != nil {
		t.Fatal(err)
	}

	newBase := time.Date(2020, 1, 15, 0, 1, 0, 0, time.UTC)
	if err := g.SetBaseTime("time offset from base", newBase); err != nil {
		t.Fatalf("SetBaseTime: %v", err)
	}

	after, err := g.GetSampleTimevals(0, -1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range before {
		if !before[i].Equal(after[i]) {
			t.Fatalf("sample %d instant changed: before=%+v after=%+v", i, before[i], after[i])
		}
	}
}

func TestGroupCloneEqual(t *testing.T) {
	g := NewGroup("root")
	g.DefineDimension("time", 0, true)
	v, _ := g.DefineVariable("temp", Float, []string{"time"})
	v.AppendSamples([]float32{1, 2}, 2)
	v.SetAttribute("units", Char, "degC")

	c := g.Clone(true)
	if !g.Equal(c) {
		t.Fatal("clone should be structurally and data-equal to original")
	}
	cv, _ := c.Variable("temp")
	cv.SetFloat64At(0, 99)
	if g.Equal(c) {
		t.Fatal("mutating clone's data should not affect equality with original's unchanged data")
	}
}

func TestStructurallyCompatible(t *testing.T) {
	g1 := NewGroup("root")
	g1.DefineDimension("time", 0, true)
	g1.DefineVariable("temp", Float, []string{"time"})

	g2 := NewGroup("root")
	g2.DefineDimension("time", 0, true)
	g2.DefineVariable("temp", Float, []string{"time"})

	if !g1.StructurallyCompatible(g2) {
		t.Fatal("identically-shaped groups should be structurally compatible")
	}

	g3 := NewGroup("root")
	g3.DefineDimension("time", 0, true)
	g3.DefineVariable("temp", Double, []string{"time"})
	if g1.StructurallyCompatible(g3) {
		t.Fatal("groups with differing variable types should not be structurally compatible")
	}
}
