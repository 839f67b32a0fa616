package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/armdoe/dsproc/internal/model"
)

func newCSVTestGroup(t *testing.T) (*model.Group, []model.Time) {
	t.Helper()
	g := model.NewGroup("obs")
	g.DefineDimension("time", 0, true)
	g.DefineDimension("strlen", 4, false)

	tv, _ := g.DefineVariable("time", model.Double, []string{"time"})
	tv.SetAttribute("units", model.Char, "seconds since 1970-01-01 00:00:00")
	tv.AppendSamples([]float64{0, 1}, 2)

	temp, _ := g.DefineVariable("temp", model.Float, []string{"time"})
	temp.SetAttribute("units", model.Char, "degC")
	temp.AppendSamples([]float32{21.5, 22.25}, 2)

	unitless, _ := g.DefineVariable("count", model.Int, []string{"time"})
	unitless.SetAttribute("units", model.Char, "unitless")
	unitless.AppendSamples([]int32{3, 4}, 2)

	// A 2-D char variable dimensioned by time: eligible for CSV output.
	tag, _ := g.DefineVariable("tag", model.Char, []string{"time", "strlen"})
	tag.AppendSamples([]byte("abcdwxyz"), 2)

	times, err := g.GetSampleTimevals(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	return g, times
}

func TestCSVColumnsSkipsTimeAndNonTimeVars(t *testing.T) {
	g, _ := newCSVTestGroup(t)
	g.DefineDimension("const", 1, false)
	scalar, _ := g.DefineVariable("instrument_id", model.Int, []string{"const"})
	scalar.AppendSamples([]int32{7}, 1)

	cols := csvColumns(g)
	var names []string
	for _, c := range cols {
		names = append(names, c.v.Name)
	}
	want := []string{"temp", "count", "tag"}
	if len(names) != len(want) {
		t.Fatalf("columns = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestCSVColumnHeaderOmitsUnitlessUnits(t *testing.T) {
	g, _ := newCSVTestGroup(t)
	cols := csvColumns(g)
	headers := map[string]string{}
	for _, c := range cols {
		headers[c.v.Name] = c.header
	}
	if headers["temp"] != "temp (degC)" {
		t.Errorf("temp header = %q", headers["temp"])
	}
	if headers["count"] != "count" {
		t.Errorf("count header = %q, want no units suffix", headers["count"])
	}
}

func TestQuoteCSVFieldFallbackChain(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"a,b", `"a,b"`},
		{`a,"b`, "'a,\"b'"},
		{`a,"b'c`, "a;\"b'c"},
	}
	for _, c := range cases {
		if got := quoteCSVField(c.in); got != c.want {
			t.Errorf("quoteCSVField(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWriteCSVProducesExpectedRows(t *testing.T) {
	g, times := newCSVTestGroup(t)
	path := filepath.Join(t.TempDir(), "obs.csv")
	if err := writeCSV(path, g, times); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected a header and 2 data rows, got %d lines: %q", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "time, temp (degC), count, tag") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "21.5") || !strings.Contains(lines[1], ", 3, ") {
		t.Errorf("unexpected first data row: %q", lines[1])
	}
}
