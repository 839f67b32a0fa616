package storage

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// ColumnMapping maps one CSV header field to an output variable.
type ColumnMapping struct {
	Header  string
	VarName string
	Type    model.DataType
	Units   string
}

// IngestConfig configures ParseCSV.
type IngestConfig struct {
	// Delim is the field delimiter; 0 requests auto-detection between
	// comma and tab.
	Delim byte

	// HeaderLineNum, if > 0, names the 1-based line holding column
	// headers. 0 requests auto-detection: the first line that splits
	// into ExpectedColumns fields (or, if ExpectedColumns is 0, the
	// first line containing the delimiter at all).
	HeaderLineNum int

	// ExpectedColumns, if > 0, validates the header field count and
	// guides header auto-detection.
	ExpectedColumns int

	// SkipDataLines skips this many lines immediately after the header
	// line before data parsing begins (conf->header_nlines - 1).
	SkipDataLines int

	// TimeColumn names the header field holding each record's
	// timestamp. Required.
	TimeColumn string
	// TimeLayout is a time.Parse layout for TimeColumn; "" requests a
	// Unix-epoch-seconds numeric interpretation instead.
	TimeLayout string

	// Columns lists the non-time fields to map into output variables,
	// in header order. A header field with no entry here is skipped.
	Columns []ColumnMapping

	// MissingValues names tokens (e.g. "NaN", "-9999", "") that mark a
	// field as missing; such fields are left at the variable's declared
	// missing_value/_FillValue (or 0 if none) rather than parsed.
	MissingValues []string
}

// ParseCSV reads delimited text from r into a new *model.Group: one
// time-varying variable per IngestConfig.Columns entry, named "time" for
// TimeColumn, and a best-effort header-line/delimiter auto-detection
// fallback chain. It is the mirror-image of writeCSV: where writeCSV
// renders a Group to CSV text, ParseCSV reads CSV text back into one.
func ParseCSV(r io.Reader, cfg IngestConfig) (*model.Group, error) {
	lines, err := readAllLines(r)
	if err != nil {
		return nil, dberr.Wrap(dberr.IOAccess, err, "storage.ParseCSV: could not read input")
	}
	if len(lines) == 0 {
		return nil, dberr.New(dberr.BadFormat, "storage.ParseCSV: empty input")
	}

	delim := cfg.Delim
	headerIdx, err := findHeaderLine(lines, cfg, &delim)
	if err != nil {
		return nil, err
	}

	header := splitCSVLine(lines[headerIdx], delim)
	if cfg.ExpectedColumns > 0 && len(header) != cfg.ExpectedColumns {
		return nil, dberr.New(dberr.BadFormat,
			"storage.ParseCSV: expected %d fields in header line but found %d", cfg.ExpectedColumns, len(header))
	}

	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}
	timeIdx, ok := colIdx[cfg.TimeColumn]
	if !ok {
		return nil, dberr.New(dberr.NoSuchName,
			"storage.ParseCSV: header has no time column %q", cfg.TimeColumn)
	}

	dataStart := headerIdx + 1 + cfg.SkipDataLines
	missing := map[string]bool{}
	for _, m := range cfg.MissingValues {
		missing[m] = true
	}

	g := model.NewGroup("csv")
	if _, err := g.DefineDimension("time", 0, true); err != nil {
		return nil, err
	}
	tv, err := g.DefineVariable("time", model.Double, []string{"time"})
	if err != nil {
		return nil, err
	}
	if err := tv.SetAttribute("units", model.Char, "seconds since 1970-01-01 00:00:00"); err != nil {
		return nil, err
	}

	cols := make([]*model.Variable, len(cfg.Columns))
	idxOfCol := make([]int, len(cfg.Columns))
	for i, c := range cfg.Columns {
		fi, ok := colIdx[c.Header]
		if !ok {
			return nil, dberr.New(dberr.NoSuchName, "storage.ParseCSV: header has no column %q", c.Header)
		}
		idxOfCol[i] = fi
		v, err := g.DefineVariable(c.VarName, c.Type, []string{"time"})
		if err != nil {
			return nil, err
		}
		if c.Units != "" {
			if err := v.SetAttribute("units", model.Char, c.Units); err != nil {
				return nil, err
			}
		}
		cols[i] = v
	}

	var times []float64
	colValues := make([][]float64, len(cols))

	for li := dataStart; li < len(lines); li++ {
		line := lines[li]
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitCSVLine(line, delim)
		if len(fields) != len(header) {
			continue // bad line: field count doesn't match the header, skip it
		}

		t, err := parseCSVTime(fields[timeIdx], cfg.TimeLayout)
		if err != nil {
			continue
		}
		times = append(times, t)

		for i, fi := range idxOfCol {
			raw := strings.TrimSpace(fields[fi])
			var x float64
			if missing[raw] {
				x, _ = cols[i].MissingValue()
			} else if x, err = strconv.ParseFloat(raw, 64); err != nil {
				x, _ = cols[i].MissingValue()
			}
			colValues[i] = append(colValues[i], x)
		}
	}

	if len(times) == 0 {
		return nil, nil
	}
	if err := tv.AppendSamples(times, len(times)); err != nil {
		return nil, err
	}
	for i, v := range cols {
		if err := appendColumnValues(v, colValues[i]); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func appendColumnValues(v *model.Variable, values []float64) error {
	switch v.Type {
	case model.Float:
		out := make([]float32, len(values))
		for i, x := range values {
			out[i] = float32(x)
		}
		return v.AppendSamples(out, len(out))
	case model.Double:
		return v.AppendSamples(values, len(values))
	case model.Int:
		out := make([]int32, len(values))
		for i, x := range values {
			out[i] = int32(x)
		}
		return v.AppendSamples(out, len(out))
	case model.Short:
		out := make([]int16, len(values))
		for i, x := range values {
			out[i] = int16(x)
		}
		return v.AppendSamples(out, len(out))
	case model.Byte:
		out := make([]int8, len(values))
		for i, x := range values {
			out[i] = int8(x)
		}
		return v.AppendSamples(out, len(out))
	default:
		return dberr.New(dberr.TypeMismatch, "storage.appendColumnValues: unsupported column type for %q", v.Name)
	}
}

// findHeaderLine locates the header row per IngestConfig, auto-detecting
// the delimiter from "," then "\t" when cfg.Delim is unset.
func findHeaderLine(lines []string, cfg IngestConfig, delim *byte) (int, error) {
	if cfg.HeaderLineNum > 0 {
		if cfg.HeaderLineNum > len(lines) {
			return 0, dberr.New(dberr.BadFormat,
				"storage.ParseCSV: header line %d is beyond the file's %d lines", cfg.HeaderLineNum, len(lines))
		}
		if *delim == 0 {
			*delim = detectDelim(lines[cfg.HeaderLineNum-1])
		}
		return cfg.HeaderLineNum - 1, nil
	}

	candidates := []byte{','}
	if *delim != 0 {
		candidates = []byte{*delim}
	} else {
		candidates = []byte{',', '\t'}
	}

	for i, line := range lines {
		for _, d := range candidates {
			if cfg.ExpectedColumns > 0 {
				if len(splitCSVLine(line, d)) == cfg.ExpectedColumns {
					*delim = d
					return i, nil
				}
			} else if strings.IndexByte(line, d) >= 0 {
				*delim = d
				return i, nil
			}
		}
	}
	return 0, dberr.New(dberr.BadFormat, "storage.ParseCSV: could not find a header line")
}

func detectDelim(line string) byte {
	if strings.IndexByte(line, ',') >= 0 {
		return ','
	}
	return '\t'
}

func splitCSVLine(line string, delim byte) []string {
	if delim == 0 {
		delim = ','
	}
	return strings.Split(line, string(delim))
}

func parseCSVTime(field, layout string) (float64, error) {
	field = strings.TrimSpace(field)
	if layout == "" {
		return strconv.ParseFloat(field, 64)
	}
	t, err := time.Parse(layout, field)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()), nil
}

func readAllLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
