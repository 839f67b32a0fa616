package model

// Attribute is a named, typed, variable-length value attached to a group
// (global attribute) or a variable.
type Attribute struct {
	Name   string
	Type   DataType
	Value  interface{} // string for Char, otherwise a slice of the Go type backing Type
	Locked bool
}

// Clone returns a deep-enough copy of a for independent mutation; Value
// slices are copied element-wise.
func (a *Attribute) Clone() *Attribute {
	c := &Attribute{Name: a.Name, Type: a.Type, Locked: a.Locked}
	c.Value = cloneAttrValue(a.Value)
	return c
}

func cloneAttrValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case string:
		return vv
	case []int8:
		out := make([]int8, len(vv))
		copy(out, vv)
		return out
	case []int16:
		out := make([]int16, len(vv))
		copy(out, vv)
		return out
	case []int32:
		out := make([]int32, len(vv))
		copy(out, vv)
		return out
	case []float32:
		out := make([]float32, len(vv))
		copy(out, vv)
		return out
	case []float64:
		out := make([]float64, len(vv))
		copy(out, vv)
		return out
	default:
		return v
	}
}

// AsString returns a's value as a string if it is char-typed, with ok=false
// otherwise.
func (a *Attribute) AsString() (string, bool) {
	s, ok := a.Value.(string)
	return s, ok
}

// AsFloat64s returns a's value converted to a []float64 regardless of its
// underlying numeric storage type. It returns nil for char attributes.
func (a *Attribute) AsFloat64s() []float64 {
	switch v := a.Value.(type) {
	case []int8:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out
	default:
		return nil
	}
}

// attrEqual reports whether two attributes are structurally identical.
func attrEqual(a, b *Attribute) bool {
	if a.Name != b.Name || a.Type != b.Type {
		return false
	}
	switch av := a.Value.(type) {
	case string:
		bv, ok := b.Value.(string)
		return ok && av == bv
	default:
		af, bf := a.AsFloat64s(), b.AsFloat64s()
		if len(af) != len(bf) {
			return false
		}
		for i := range af {
			if af[i] != bf[i] {
				return false
			}
		}
		return true
	}
}
