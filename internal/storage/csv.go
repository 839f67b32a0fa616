package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/armdoe/dsproc/internal/model"
)

// csvColumn names one retained CSV column: the variable itself, plus the
// rendered header text (name, or "name (units)" when a non-"unitless"
// units attribute is present).
type csvColumn struct {
	v      *model.Variable
	header string
}

// csvColumns selects and orders g's CSV-eligible variables: variable definition
// order, skipping base_time/time/time_offset, skipping multi-dimensional
// variables unless exactly 2-D Char, and skipping variables not
// dimensioned by time.
func csvColumns(g *model.Group) []csvColumn {
	var cols []csvColumn
	for _, v := range g.Variables() {
		switch v.Name {
		case "base_time", "time", "time_offset":
			continue
		}
		if len(v.Dims) > 1 && !(len(v.Dims) == 2 && v.Type == model.Char) {
			continue
		}
		if len(v.Dims) == 0 || v.Dims[0].Name != "time" {
			continue
		}
		header := v.Name
		if a := v.Attribute("units"); a != nil {
			if units, ok := a.AsString(); ok && units != "" && units != "unitless" {
				header = fmt.Sprintf("%s (%s)", v.Name, units)
			}
		}
		cols = append(cols, csvColumn{v: v, header: header})
	}
	return cols
}

// writeCSV writes g out as a CSV file at path: a header row of "time" plus
// each selected column's header, then one data row per sample.
func writeCSV(path string, g *model.Group, times []model.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return wrapIOOpen(path, err)
	}
	defer f.Close()

	cols := csvColumns(g)

	var b strings.Builder
	b.WriteString("time")
	for _, c := range cols {
		b.WriteString(", ")
		b.WriteString(c.header)
	}
	b.WriteString("\n")

	for i, t := range times {
		b.WriteString(t.GoTime().Format("2006-01-02 15:04:05.000000"))
		for _, c := range cols {
			b.WriteString(", ")
			b.WriteString(csvFormatSample(c.v, i))
		}
		b.WriteString("\n")
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return wrapIOWrite(path, err)
	}
	return nil
}

// csvFormatSample renders sample i of v according to its storage type.
func csvFormatSample(v *model.Variable, i int) string {
	switch v.Type {
	case model.Char:
		if len(v.Dims) == 1 {
			if data, ok := v.Data.([]byte); ok && i < len(data) {
				return string(data[i])
			}
			return ""
		}
		return quoteCSVField(charSampleString(v, i))
	case model.Byte, model.Short, model.Int:
		return strconv.FormatInt(int64(v.Float64At(i)), 10)
	case model.Float:
		return strconv.FormatFloat(v.Float64At(i), 'g', 7, 32)
	case model.Double:
		return strconv.FormatFloat(v.Float64At(i), 'g', 15, 64)
	default:
		return "NaN"
	}
}

// charSampleString extracts the fixed-width string for sample i of a
// 2-D Char variable (row length is SampleSize()).
func charSampleString(v *model.Variable, i int) string {
	size := v.SampleSize()
	data, ok := v.Data.([]byte)
	if !ok {
		return ""
	}
	start := i * size
	end := start + size
	if start < 0 || end > len(data) {
		return ""
	}
	raw := data[start:end]
	if idx := indexByte(raw, 0); idx >= 0 {
		raw = raw[:idx]
	}
	return string(raw)
}

// quoteCSVField escapes a 2-D Char cell for CSV output with a fallback
// chain: unquoted if it contains no comma, double-quoted if it has no
// embedded double quote, single-quoted if it has no embedded single
// quote. If a cell contains commas, double quotes, and single quotes all
// at once, commas are replaced with semicolons and the cell is left
// otherwise unquoted, since no single quote character is left available
// to delimit it.
func quoteCSVField(s string) string {
	switch {
	case !strings.Contains(s, ","):
		return s
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	default:
		return strings.ReplaceAll(s, ",", ";")
	}
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
