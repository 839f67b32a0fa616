package model

import (
	"fmt"

	"github.com/armdoe/dsproc/internal/dberr"
)

// Variable holds a typed, possibly multi-dimensional sample store. The
// first dimension is the sample axis; the product of the remaining
// dimensions' lengths is the sample size.
type Variable struct {
	Name string
	Type DataType
	Dims []*Dimension // ordered; Dims[0] is the sample axis

	// Data holds the flattened sample store: a slice of the Go type
	// backing Type, length = SampleCount()*SampleSize(). Char variables
	// store raw bytes, SampleSize() bytes per sample.
	Data interface{}

	// sampleCount is the number of samples actually stored, which may be
	// less than Dims[0].Length.
	sampleCount int

	atts []*Attribute

	Tag *VariableTag

	owner *Group
}

// SampleSize returns the number of values per sample: the product of all
// dimension lengths except the leading (sample) one. A scalar-per-sample
// variable (only the sample dimension) has SampleSize() == 1.
func (v *Variable) SampleSize() int {
	size := 1
	for i := 1; i < len(v.Dims); i++ {
		size *= v.Dims[i].Length
	}
	return size
}

// SampleCount returns the number of samples currently stored.
func (v *Variable) SampleCount() int { return v.sampleCount }

// Shape returns the lengths of v's dimensions in order.
func (v *Variable) Shape() []int {
	shape := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		shape[i] = d.Length
	}
	return shape
}

// DimNames returns the names of v's dimensions in order.
func (v *Variable) DimNames() []string {
	names := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		names[i] = d.Name
	}
	return names
}

// IsTimeVarying reports whether v's leading dimension is unlimited (the
// sample axis grows with incoming data).
func (v *Variable) IsTimeVarying() bool {
	return len(v.Dims) > 0 && v.Dims[0].IsUnlimited
}

// AppendSamples appends n samples' worth of values (len(values) must equal
// n*SampleSize()) to v, growing the leading dimension if it is unlimited.
// It fails with dberr.DimensionLocked if the leading dimension is not
// unlimited and the append would exceed its length.
func (v *Variable) AppendSamples(values interface{}, n int) error {
	size := v.SampleSize()
	if wantLen := n * size; sliceLen(values) != wantLen {
		return dberr.New(dberr.TypeMismatch,
			"model.Variable.AppendSamples: variable %q expected %d values, got %d",
			v.Name, wantLen, sliceLen(values))
	}
	newCount := v.sampleCount + n
	if len(v.Dims) > 0 {
		d := v.Dims[0]
		if newCount > d.Length {
			if !d.IsUnlimited {
				return dberr.New(dberr.DimensionLocked,
					"model.Variable.AppendSamples: dimension %q is not unlimited and is too short for %d samples",
					d.Name, newCount)
			}
			d.grow(newCount)
		}
	}
	v.Data = appendSlice(v.Data, values)
	v.sampleCount = newCount
	return nil
}

// Truncate drops all but the first n stored samples, in place.
func (v *Variable) Truncate(n int) {
	if n >= v.sampleCount {
		return
	}
	size := v.SampleSize()
	v.Data = sliceSlice(v.Data, 0, n*size)
	v.sampleCount = n
}

// Attributes returns v's attributes in definition order.
func (v *Variable) Attributes() []*Attribute { return v.atts }

// Attribute returns the named attribute on v, or nil if absent.
func (v *Variable) Attribute(name string) *Attribute {
	for _, a := range v.atts {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// SetAttribute defines or overwrites an attribute on v. It fails with
// dberr.DimensionLocked if an existing attribute of the same name is
// locked against redefinition.
func (v *Variable) SetAttribute(name string, dtype DataType, value interface{}) error {
	if existing := v.Attribute(name); existing != nil {
		if existing.Locked {
			return dberr.New(dberr.DimensionLocked,
				"model.Variable.SetAttribute: attribute %q on variable %q is locked", name, v.Name)
		}
		existing.Type = dtype
		existing.Value = value
		return nil
	}
	v.atts = append(v.atts, &Attribute{Name: name, Type: dtype, Value: value})
	return nil
}

// LockAttribute marks the named attribute as immutable to further
// SetAttribute calls.
func (v *Variable) LockAttribute(name string) {
	if a := v.Attribute(name); a != nil {
		a.Locked = true
	}
}

// MissingValue returns v's declared missing/fill value and true, checking
// "missing_value" then "_FillValue", or (0, false) if neither is set.
func (v *Variable) MissingValue() (float64, bool) {
	for _, name := range []string{"missing_value", "_FillValue"} {
		if a := v.Attribute(name); a != nil {
			if vals := a.AsFloat64s(); len(vals) > 0 {
				return vals[0], true
			}
		}
	}
	return 0, false
}

// Clone returns a structural copy of v (dimensions are NOT copied; the
// caller is expected to resolve dimension references against the
// destination group). Sample data is copied when withData is true.
func (v *Variable) Clone(withData bool) *Variable {
	c := &Variable{
		Name: v.Name,
		Type: v.Type,
		Dims: append([]*Dimension(nil), v.Dims...),
		Tag:  v.Tag.Clone(),
	}
	for _, a := range v.atts {
		c.atts = append(c.atts, a.Clone())
	}
	if withData {
		c.Data = cloneDataSlice(v.Data)
		c.sampleCount = v.sampleCount
	}
	return c
}

// Equal reports whether v and o have identical shape, type, attributes,
// and sample data (used by the merger's byte-for-byte static-data
// check).
func (v *Variable) Equal(o *Variable) bool {
	if v.Name != o.Name || v.Type != o.Type || len(v.Dims) != len(o.Dims) {
		return false
	}
	for i := range v.Dims {
		if v.Dims[i].Name != o.Dims[i].Name || v.Dims[i].Length != o.Dims[i].Length ||
			v.Dims[i].IsUnlimited != o.Dims[i].IsUnlimited {
			return false
		}
	}
	if len(v.atts) != len(o.atts) {
		return false
	}
	for i := range v.atts {
		if !attrEqual(v.atts[i], o.atts[i]) {
			return false
		}
	}
	return dataEqual(v.Data, o.Data)
}

func sliceLen(v interface{}) int {
	switch s := v.(type) {
	case []int8:
		return len(s)
	case []byte:
		return len(s)
	case []int16:
		return len(s)
	case []int32:
		return len(s)
	case []float32:
		return len(s)
	case []float64:
		return len(s)
	default:
		return 0
	}
}

func appendSlice(dst, src interface{}) interface{} {
	switch s := src.(type) {
	case []int8:
		d, _ := dst.([]int8)
		return append(d, s...)
	case []byte:
		d, _ := dst.([]byte)
		return append(d, s...)
	case []int16:
		d, _ := dst.([]int16)
		return append(d, s...)
	case []int32:
		d, _ := dst.([]int32)
		return append(d, s...)
	case []float32:
		d, _ := dst.([]float32)
		return append(d, s...)
	case []float64:
		d, _ := dst.([]float64)
		return append(d, s...)
	default:
		panic(fmt.Sprintf("model: unsupported sample slice type %T", src))
	}
}

func sliceSlice(v interface{}, from, to int) interface{} {
	switch s := v.(type) {
	case []int8:
		out := make([]int8, to-from)
		copy(out, s[from:to])
		return out
	case []byte:
		out := make([]byte, to-from)
		copy(out, s[from:to])
		return out
	case []int16:
		out := make([]int16, to-from)
		copy(out, s[from:to])
		return out
	case []int32:
		out := make([]int32, to-from)
		copy(out, s[from:to])
		return out
	case []float32:
		out := make([]float32, to-from)
		copy(out, s[from:to])
		return out
	case []float64:
		out := make([]float64, to-from)
		copy(out, s[from:to])
		return out
	default:
		return nil
	}
}

func cloneDataSlice(v interface{}) interface{} {
	switch s := v.(type) {
	case []int8:
		return append([]int8(nil), s...)
	case []byte:
		return append([]byte(nil), s...)
	case []int16:
		return append([]int16(nil), s...)
	case []int32:
		return append([]int32(nil), s...)
	case []float32:
		return append([]float32(nil), s...)
	case []float64:
		return append([]float64(nil), s...)
	default:
		return nil
	}
}

func dataEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case []int8:
		bv, ok := b.([]int8)
		return ok && eqSlice(av, bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && eqSlice(av, bv)
	case []int16:
		bv, ok := b.([]int16)
		return ok && eqSlice(av, bv)
	case []int32:
		bv, ok := b.([]int32)
		return ok && eqSlice(av, bv)
	case []float32:
		bv, ok := b.([]float32)
		return ok && eqSlice(av, bv)
	case []float64:
		bv, ok := b.([]float64)
		return ok && eqSlice(av, bv)
	default:
		return a == nil && b == nil
	}
}

func eqSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KeepSamples rewrites v's data store in place to hold only the samples at
// the given indices, in the given order (used by the storage engine's
// dedup and NaN-filter passes, which both need to drop an arbitrary,
// non-contiguous subset of samples rather than a single trailing run).
func (v *Variable) KeepSamples(indices []int) {
	size := v.SampleSize()
	elemIdx := make([]int, 0, len(indices)*size)
	for _, s := range indices {
		for k := 0; k < size; k++ {
			elemIdx = append(elemIdx, s*size+k)
		}
	}
	v.Data = keepElements(v.Data, elemIdx)
	v.sampleCount = len(indices)
}

// SampleEqual reports whether sample i of v and sample j of o hold
// identical values across all SampleSize() elements (used by the storage
// engine's overlap-detection and dedup passes to decide whether two
// samples at the same or adjacent times are the same observation).
func (v *Variable) SampleEqual(i int, o *Variable, j int) bool {
	size := v.SampleSize()
	if size != o.SampleSize() {
		return false
	}
	for k := 0; k < size; k++ {
		if v.Float64At(i*size+k) != o.Float64At(j*size+k) {
			return false
		}
	}
	return true
}

// SliceSamples returns the raw element data for samples [from, to) as a
// freshly allocated slice of v's underlying storage type (used when
// writing a batch slice out to its own target file).
func (v *Variable) SliceSamples(from, to int) interface{} {
	size := v.SampleSize()
	return sliceSlice(v.Data, from*size, to*size)
}

func keepElements(v interface{}, idx []int) interface{} {
	switch s := v.(type) {
	case []int8:
		out := make([]int8, len(idx))
		for i, k := range idx {
			out[i] = s[k]
		}
		return out
	case []byte:
		out := make([]byte, len(idx))
		for i, k := range idx {
			out[i] = s[k]
		}
		return out
	case []int16:
		out := make([]int16, len(idx))
		for i, k := range idx {
			out[i] = s[k]
		}
		return out
	case []int32:
		out := make([]int32, len(idx))
		for i, k := range idx {
			out[i] = s[k]
		}
		return out
	case []float32:
		out := make([]float32, len(idx))
		for i, k := range idx {
			out[i] = s[k]
		}
		return out
	case []float64:
		out := make([]float64, len(idx))
		for i, k := range idx {
			out[i] = s[k]
		}
		return out
	default:
		return nil
	}
}

// Float64At returns the value at flat sample/element index i as a
// float64, regardless of underlying storage type. It is used throughout
// the QC and transform engines, which operate in float64 space.
func (v *Variable) Float64At(i int) float64 {
	switch s := v.Data.(type) {
	case []int8:
		return float64(s[i])
	case []byte:
		return float64(s[i])
	case []int16:
		return float64(s[i])
	case []int32:
		return float64(s[i])
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	default:
		return 0
	}
}

// SetFloat64At sets the value at flat index i from a float64, converting
// to the variable's storage type.
func (v *Variable) SetFloat64At(i int, x float64) {
	switch s := v.Data.(type) {
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

// Len returns the total number of stored elements (sampleCount*SampleSize()).
func (v *Variable) Len() int { return sliceLen(v.Data) }
