package ncio

import (
	"path/filepath"
	"testing"

	"github.com/armdoe/dsproc/internal/model"
)

func newTestGroup(t *testing.T) *model.Group {
	t.Helper()
	g := model.NewGroup("obs")
	if _, err := g.DefineDimension("time", 0, true); err != nil {
		t.Fatal(err)
	}
	if err := g.SetAttribute("title", model.Char, "test dataset"); err != nil {
		t.Fatal(err)
	}

	timeVar, err := g.DefineVariable("time", model.Double, []string{"time"})
	if err != nil {
		t.Fatal(err)
	}
	if err := timeVar.SetAttribute("units", model.Char, "seconds since 1970-01-01 00:00:00"); err != nil {
		t.Fatal(err)
	}
	if err := timeVar.AppendSamples([]float64{0, 1, 2}, 3); err != nil {
		t.Fatal(err)
	}

	tempVar, err := g.DefineVariable("temp", model.Float, []string{"time"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tempVar.SetAttribute("units", model.Char, "degC"); err != nil {
		t.Fatal(err)
	}
	if err := tempVar.AppendSamples([]float32{10, 11, 12}, 3); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestWriteNewThenReadGroupRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.nc")
	g := newTestGroup(t)

	if err := WriteNew(path, g); err != nil {
		t.Fatalf("WriteNew: %v", err)
	}

	got, err := ReadGroup(path)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}

	tv, ok := got.Variable("time")
	if !ok {
		t.Fatal("expected a time variable")
	}
	if tv.SampleCount() != 3 {
		t.Fatalf("expected 3 time samples, got %d", tv.SampleCount())
	}
	for i, want := range []float64{0, 1, 2} {
		if got := tv.Float64At(i); got != want {
			t.Errorf("time[%d] = %v, want %v", i, got, want)
		}
	}

	temp, ok := got.Variable("temp")
	if !ok {
		t.Fatal("expected a temp variable")
	}
	for i, want := range []float64{10, 11, 12} {
		if got := temp.Float64At(i); got != want {
			t.Errorf("temp[%d] = %v, want %v", i, got, want)
		}
	}
	if a := got.Attribute("title"); a == nil {
		t.Error("expected the title global attribute to round-trip")
	} else if s, _ := a.AsString(); s != "test dataset" {
		t.Errorf("unexpected title attribute: %q", s)
	}
}

func TestAppendRecordsExtendsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.nc")
	g := newTestGroup(t)
	if err := WriteNew(path, g); err != nil {
		t.Fatalf("WriteNew: %v", err)
	}

	timeVar, _ := g.Variable("time")
	tempVar, _ := g.Variable("temp")
	if err := timeVar.AppendSamples([]float64{3, 4}, 2); err != nil {
		t.Fatal(err)
	}
	if err := tempVar.AppendSamples([]float32{13, 14}, 2); err != nil {
		t.Fatal(err)
	}

	if err := AppendRecords(path, g, 3); err != nil {
		t.Fatalf("AppendRecords: %v", err)
	}

	got, err := ReadGroup(path)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	tv, _ := got.Variable("time")
	if tv.SampleCount() != 5 {
		t.Fatalf("expected 5 time samples after append, got %d", tv.SampleCount())
	}
	if tv.Float64At(4) != 4 {
		t.Errorf("expected time[4] == 4, got %v", tv.Float64At(4))
	}
}
