package storage

import (
	"strings"
	"testing"

	"github.com/armdoe/dsproc/internal/model"
)

func TestParseCSVHappyPath(t *testing.T) {
	input := "time,temp,rh\n" +
		"1579046400,10.5,55\n" +
		"1579046401,10.6,56\n" +
		"1579046402,10.7,57\n"

	g, err := ParseCSV(strings.NewReader(input), IngestConfig{
		TimeColumn: "time",
		Columns: []ColumnMapping{
			{Header: "temp", VarName: "temp", Type: model.Float, Units: "degC"},
			{Header: "rh", VarName: "rh", Type: model.Float, Units: "%"},
		},
	})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	tv, ok := g.Variable("time")
	if !ok || tv.SampleCount() != 3 {
		t.Fatalf("expected 3 time samples, got ok=%v count=%v", ok, tv.SampleCount())
	}
	times, err := g.GetSampleTimevals(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if times[0].GoTime().Unix() != 1579046400 {
		t.Errorf("times[0] = %v, want 1579046400", times[0].GoTime().Unix())
	}

	temp, ok := g.Variable("temp")
	if !ok {
		t.Fatal("expected a temp variable")
	}
	if got := temp.Float64At(1); got < 10.55 || got > 10.65 {
		t.Errorf("temp[1] = %v, want ~10.6", got)
	}
}

func TestParseCSVAutoDetectsTabDelimiter(t *testing.T) {
	input := "time\ttemp\n1579046400\t10.5\n1579046401\t10.6\n"
	g, err := ParseCSV(strings.NewReader(input), IngestConfig{
		TimeColumn: "time",
		Columns:    []ColumnMapping{{Header: "temp", VarName: "temp", Type: model.Float}},
	})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	tv, _ := g.Variable("time")
	if tv.SampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", tv.SampleCount())
	}
}

func TestParseCSVSkipsExtraHeaderLines(t *testing.T) {
	input := "time,temp\n" +
		"# units: seconds, degC\n" +
		"1579046400,10.5\n" +
		"1579046401,10.6\n"
	g, err := ParseCSV(strings.NewReader(input), IngestConfig{
		TimeColumn:    "time",
		SkipDataLines: 1,
		Columns:       []ColumnMapping{{Header: "temp", VarName: "temp", Type: model.Float}},
	})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	tv, _ := g.Variable("time")
	if tv.SampleCount() != 2 {
		t.Fatalf("expected 2 samples after skipping the comment line, got %d", tv.SampleCount())
	}
}

func TestParseCSVMissingValueTokenFallsBackToFillValue(t *testing.T) {
	input := "time,temp\n1579046400,10.5\n1579046401,NaN\n"
	g, err := ParseCSV(strings.NewReader(input), IngestConfig{
		TimeColumn:    "time",
		MissingValues: []string{"NaN"},
		Columns:       []ColumnMapping{{Header: "temp", VarName: "temp", Type: model.Float}},
	})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	temp, _ := g.Variable("temp")
	if err := temp.SetAttribute("missing_value", model.Float, float32(-9999)); err != nil {
		t.Fatal(err)
	}
	// MissingValue lookup happens during parsing, before this attribute is
	// set, so the fallback below simply confirms the parse didn't error
	// out on the non-numeric token; the zero-fallback case is exercised
	// by the row actually being present.
	if temp.SampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", temp.SampleCount())
	}
}

func TestParseCSVRejectsUnknownTimeColumn(t *testing.T) {
	input := "a,b\n1,2\n"
	_, err := ParseCSV(strings.NewReader(input), IngestConfig{TimeColumn: "time"})
	if err == nil {
		t.Fatal("expected an error for a missing time column")
	}
}
