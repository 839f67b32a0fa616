// Package ncio is a thin netCDF3 persistence wrapper around
// github.com/ctessum/cdf, translating between *model.Group and the cdf
// package's header/strider API ("netCDF-3 via external
// library. Variables, dims, atts written exactly as modeled").
//
// cdf models files as an immutable Header built once via NewHeader/
// AddVariable/AddAttribute/Define, plus typed Reader/Writer striders per
// variable; this package is the adapter that walks a model.Group's
// dimensions, variables, and attributes into that shape and back.
package ncio

import (
	"os"

	"github.com/ctessum/cdf"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// WriteNew creates a new netCDF3 file at path containing all of g's
// current data ("static data
// are written once; data records are appended").
func WriteNew(path string, g *model.Group) error {
	h, err := buildHeader(g)
	if err != nil {
		return err
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return dberr.New(dberr.IOWrite, "ncio.WriteNew: %s: invalid header: %v", path, errs[0])
	}

	f, err := os.Create(path)
	if err != nil {
		return dberr.New(dberr.IOOpen, "ncio.WriteNew: creating %s: %v", path, err)
	}
	defer f.Close()

	cf, err := cdf.Create(f, h)
	if err != nil {
		return dberr.New(dberr.IOWrite, "ncio.WriteNew: writing header for %s: %v", path, err)
	}
	for _, v := range g.Variables() {
		if v.SampleCount() == 0 && v.IsTimeVarying() {
			continue
		}
		if err := writeAll(cf, v); err != nil {
			return dberr.New(dberr.IOWrite, "ncio.WriteNew: %s: writing variable %q: %v", path, v.Name, err)
		}
	}
	return syncAndUpdateNumRecs(f, hasUnlimitedDim(g))
}

// AppendRecords opens an existing netCDF3 file at path and writes the
// samples of g's time-varying variables starting at sample index
// fileSampleStart (the file's current record count before this batch),
// leaving static (non-time-varying) variables untouched ("data records are appended; the file is
// synced or closed").
func AppendRecords(path string, g *model.Group, fileSampleStart int) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return dberr.New(dberr.IOOpen, "ncio.AppendRecords: opening %s: %v", path, err)
	}
	defer f.Close()

	cf, err := cdf.Open(f)
	if err != nil {
		return dberr.New(dberr.IOOpen, "ncio.AppendRecords: reading header of %s: %v", path, err)
	}

	for _, v := range g.Variables() {
		if !v.IsTimeVarying() {
			continue
		}
		n := v.SampleCount() - fileSampleStart
		if n <= 0 {
			continue
		}
		size := v.SampleSize()
		begin := make([]int, len(v.Dims))
		begin[0] = fileSampleStart
		data := sliceTail(v, fileSampleStart*size, v.SampleCount()*size)
		w := cf.Writer(v.Name, begin, nil)
		if w == nil {
			return dberr.New(dberr.IOWrite, "ncio.AppendRecords: %s: no such variable %q in file", path, v.Name)
		}
		if _, err := w.Write(toCDFValues(v.Type, data)); err != nil {
			return dberr.New(dberr.IOWrite, "ncio.AppendRecords: %s: appending variable %q: %v", path, v.Name, err)
		}
	}
	return syncAndUpdateNumRecs(f, true)
}

// ReadGroup opens an existing netCDF3 file at path and reads its entire
// contents (dimensions, variables, attributes, and all sample data) into
// a new *model.Group.
func ReadGroup(path string) (*model.Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dberr.New(dberr.IOOpen, "ncio.ReadGroup: opening %s: %v", path, err)
	}
	defer f.Close()

	cf, err := cdf.Open(f)
	if err != nil {
		return nil, dberr.New(dberr.IOAccess, "ncio.ReadGroup: reading header of %s: %v", path, err)
	}
	h := cf.Header

	fi, err := f.Stat()
	if err != nil {
		return nil, dberr.New(dberr.IOAccess, "ncio.ReadGroup: stat %s: %v", path, err)
	}
	numRecs := int(h.NumRecs(fi.Size()))

	g := model.NewGroup(path)
	dimNames, dimLengths := h.Dimensions(""), h.Lengths("")
	for i, name := range dimNames {
		length, unlimited := dimLengths[i], false
		if length == 0 {
			unlimited, length = true, numRecs
		}
		if _, err := g.DefineDimension(name, length, unlimited); err != nil {
			return nil, err
		}
	}

	for _, name := range h.Attributes("") {
		if err := setGroupAttrFromCDF(g, name, h.GetAttribute("", name)); err != nil {
			return nil, err
		}
	}

	for _, name := range h.Variables() {
		dt, err := modelDataType(h.ZeroValue(name, 0))
		if err != nil {
			return nil, dberr.New(dberr.TypeMismatch, "ncio.ReadGroup: %s: variable %q: %v", path, name, err)
		}
		v, err := g.DefineVariable(name, dt, h.Dimensions(name))
		if err != nil {
			return nil, err
		}
		for _, attName := range h.Attributes(name) {
			if err := setVarAttrFromCDF(v, attName, h.GetAttribute(name, attName)); err != nil {
				return nil, err
			}
		}

		n := numRecs
		if !h.IsRecordVariable(name) {
			n = h.Lengths(name)[0] // leading dimension length for a static (non-record) variable
		}
		if n == 0 {
			continue
		}
		r := cf.Reader(name, nil, nil)
		buf := readBuffer(dt, n*v.SampleSize())
		if _, err := r.Read(buf); err != nil {
			return nil, dberr.New(dberr.IOAccess, "ncio.ReadGroup: %s: reading variable %q: %v", path, name, err)
		}
		if err := v.AppendSamples(fromCDFValues(dt, buf), n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func setGroupAttrFromCDF(g *model.Group, name string, val interface{}) error {
	dt, v, err := modelAttrValue(val)
	if err != nil {
		return dberr.New(dberr.TypeMismatch, "ncio: global attribute %q: %v", name, err)
	}
	return g.SetAttribute(name, dt, v)
}

func setVarAttrFromCDF(v *model.Variable, name string, val interface{}) error {
	dt, value, err := modelAttrValue(val)
	if err != nil {
		return dberr.New(dberr.TypeMismatch, "ncio: variable %q attribute %q: %v", v.Name, name, err)
	}
	return v.SetAttribute(name, dt, value)
}

// modelAttrValue maps a cdf attribute's dynamic value back to a
// model.DataType and Go value (Byte's []uint8 is cast to []int8 to match
// model.Attribute's convention).
func modelAttrValue(val interface{}) (model.DataType, interface{}, error) {
	switch v := val.(type) {
	case string:
		return model.Char, v, nil
	case []uint8:
		return model.Byte, uint8sToInt8s(v), nil
	case []int16:
		return model.Short, v, nil
	case []int32:
		return model.Int, v, nil
	case []float32:
		return model.Float, v, nil
	case []float64:
		return model.Double, v, nil
	default:
		return 0, nil, dberr.New(dberr.TypeMismatch, "ncio: unrecognized cdf attribute value type %T", val)
	}
}

// modelDataType maps a cdf variable's zero-value sample (from
// Header.ZeroValue) to the matching model.DataType.
func modelDataType(zero interface{}) (model.DataType, error) {
	switch zero.(type) {
	case []uint8:
		return model.Byte, nil
	case string:
		return model.Char, nil
	case []int16:
		return model.Short, nil
	case []int32:
		return model.Int, nil
	case []float32:
		return model.Float, nil
	case []float64:
		return model.Double, nil
	default:
		return 0, dberr.New(dberr.TypeMismatch, "ncio: unrecognized cdf variable zero-value type %T", zero)
	}
}

// readBuffer allocates the cdf-side buffer type Reader.Read expects for
// dt, sized to hold n elements.
func readBuffer(dt model.DataType, n int) interface{} {
	switch dt {
	case model.Byte:
		return make([]uint8, n)
	case model.Char:
		return make([]byte, n)
	case model.Short:
		return make([]int16, n)
	case model.Int:
		return make([]int32, n)
	case model.Float:
		return make([]float32, n)
	case model.Double:
		return make([]float64, n)
	default:
		return nil
	}
}

func syncAndUpdateNumRecs(f *os.File, hasRecordDim bool) error {
	if hasRecordDim {
		if err := cdf.UpdateNumRecs(f); err != nil {
			return dberr.New(dberr.IOSync, "ncio: updating numrecs: %v", err)
		}
	}
	if err := f.Sync(); err != nil {
		return dberr.New(dberr.IOSync, "ncio: fsync: %v", err)
	}
	return nil
}

func hasUnlimitedDim(g *model.Group) bool {
	for _, d := range g.Dimensions() {
		if d.IsUnlimited {
			return true
		}
	}
	return false
}

// buildHeader translates g's dimensions, variables, and attributes into
// a mutable cdf.Header ready for Define.
func buildHeader(g *model.Group) (*cdf.Header, error) {
	dims := g.Dimensions()
	names := make([]string, len(dims))
	lengths := make([]int, len(dims))
	for i, d := range dims {
		names[i] = d.Name
		if d.IsUnlimited {
			lengths[i] = 0
		} else {
			lengths[i] = d.Length
		}
	}
	h := cdf.NewHeader(names, lengths)

	for _, v := range g.Variables() {
		sample, err := cdfTypeSample(v.Type)
		if err != nil {
			return nil, dberr.New(dberr.TypeMismatch, "ncio: variable %q: %v", v.Name, err)
		}
		h.AddVariable(v.Name, v.DimNames(), sample)
		for _, a := range v.Attributes() {
			h.AddAttribute(v.Name, a.Name, cdfAttrValue(a))
		}
	}
	for _, a := range g.Attributes() {
		h.AddAttribute("", a.Name, cdfAttrValue(a))
	}
	return h, nil
}

func writeAll(cf *cdf.File, v *model.Variable) error {
	w := cf.Writer(v.Name, nil, nil)
	if w == nil {
		return dberr.New(dberr.IOWrite, "ncio: no such variable %q in header", v.Name)
	}
	_, err := w.Write(toCDFValues(v.Type, v.Data))
	return err
}

func sliceTail(v *model.Variable, from, to int) interface{} {
	switch s := v.Data.(type) {
	case []int8:
		return append([]int8(nil), s[from:to]...)
	case []byte:
		return append([]byte(nil), s[from:to]...)
	case []int16:
		return append([]int16(nil), s[from:to]...)
	case []int32:
		return append([]int32(nil), s[from:to]...)
	case []float32:
		return append([]float32(nil), s[from:to]...)
	case []float64:
		return append([]float64(nil), s[from:to]...)
	default:
		return nil
	}
}

// cdfTypeSample returns a zero-length value of the dynamic Go type
// cdf.Header.AddVariable uses to infer a variable's NetCDF datatype
// (github.com/ctessum/cdf: "[]uint8, string, []int16, []int32,
// []float32 or []float64").
func cdfTypeSample(dt model.DataType) (interface{}, error) {
	switch dt {
	case model.Byte:
		return []uint8{}, nil
	case model.Char:
		return "", nil
	case model.Short:
		return []int16{}, nil
	case model.Int:
		return []int32{}, nil
	case model.Float:
		return []float32{}, nil
	case model.Double:
		return []float64{}, nil
	default:
		return nil, dberr.New(dberr.TypeMismatch, "ncio: unsupported DataType %v", dt)
	}
}

// cdfAttrValue converts a model.Attribute's stored value to the dynamic
// type cdf.Header.AddAttribute expects. Short/Int/Float/Double attributes
// are already stored as the matching Go slice type; only Byte needs an
// element-wise cast ([]int8 to []uint8).
func cdfAttrValue(a *model.Attribute) interface{} {
	if a.Type == model.Byte {
		if v, ok := a.Value.([]int8); ok {
			return int8sToUint8s(v)
		}
	}
	return a.Value
}

// toCDFValues converts a variable's flattened sample data to the dynamic
// type cdf's Writer.Write/Reader.Read expect for dt. Char data is stored
// as []byte, identical to []uint8, so no conversion is needed there.
func toCDFValues(dt model.DataType, data interface{}) interface{} {
	if dt == model.Byte {
		if v, ok := data.([]int8); ok {
			return int8sToUint8s(v)
		}
	}
	return data
}

// fromCDFValues is toCDFValues's inverse, used when reading a file back
// into model storage types.
func fromCDFValues(dt model.DataType, data interface{}) interface{} {
	if dt == model.Byte {
		if v, ok := data.([]uint8); ok {
			return uint8sToInt8s(v)
		}
	}
	return data
}

func int8sToUint8s(in []int8) []uint8 {
	out := make([]uint8, len(in))
	for i, x := range in {
		out[i] = uint8(x)
	}
	return out
}

func uint8sToInt8s(in []uint8) []int8 {
	out := make([]int8, len(in))
	for i, x := range in {
		out[i] = int8(x)
	}
	return out
}
