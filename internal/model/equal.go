package model

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// structureKey renders a deterministic structural fingerprint of g's
// dimension and variable shapes (names, lengths, unlimited flags, types,
// dimension ordering, not sample data), used by the storage engine to
// decide whether a batch's DOD metadata matches a previously-stored
// file. Structures are hashed via spew rather than gob since some of
// the fields fingerprinted here are unexported.
func (g *Group) structureKey() string {
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	type dimShape struct {
		Name      string
		Length    int
		Unlimited bool
	}
	type varShape struct {
		Name  string
		Type  DataType
		Dims  []string
		Atts  []string
	}
	dims := make([]dimShape, len(g.dimOrder))
	for i, n := range g.dimOrder {
		d := g.dims[n]
		length := d.Length
		if d.IsUnlimited {
			// An unlimited dimension's current length is just its record
			// count so far, which legitimately differs between an
			// in-progress batch and a previously stored file; only its
			// name and unlimited-ness are part of the DOD shape.
			length = 0
		}
		dims[i] = dimShape{d.Name, length, d.IsUnlimited}
	}
	vars := make([]varShape, len(g.varOrder))
	for i, n := range g.varOrder {
		v := g.vars[n]
		vs := varShape{Name: v.Name, Type: v.Type, Dims: v.DimNames()}
		for _, a := range v.atts {
			vs.Atts = append(vs.Atts, fmt.Sprintf("%s=%v", a.Name, a.Value))
		}
		vars[i] = vs
	}
	return printer.Sprintf("%#v|%#v", dims, vars)
}

// StructurallyCompatible reports whether g and o define the same
// dimension names/lengths/unlimited-flags and the same variable
// names/types/dimension-orderings/attributes, ignoring sample data. This
// is the "compatible metadata set" test the split-on-metadata-mismatch
// rule requires.
func (g *Group) StructurallyCompatible(o *Group) bool {
	return g.structureKey() == o.structureKey()
}

// Equal reports full structural and data equality between g and o,
// recursing into child groups (used by merger static-data comparison).
func (g *Group) Equal(o *Group) bool {
	if g.Name != o.Name || g.locked != o.locked {
		return false
	}
	if len(g.dimOrder) != len(o.dimOrder) || len(g.varOrder) != len(o.varOrder) ||
		len(g.childOrder) != len(o.childOrder) || len(g.atts) != len(o.atts) {
		return false
	}
	for i, n := range g.dimOrder {
		od, ok := o.dims[n]
		if !ok {
			return false
		}
		gd := g.dims[n]
		if gd.Length != od.Length || gd.IsUnlimited != od.IsUnlimited {
			return false
		}
		_ = i
	}
	for _, n := range g.varOrder {
		ov, ok := o.vars[n]
		if !ok || !g.vars[n].Equal(ov) {
			return false
		}
	}
	for i := range g.atts {
		if !attrEqual(g.atts[i], o.atts[i]) {
			return false
		}
	}
	for _, n := range g.childOrder {
		oc, ok := o.children[n]
		if !ok || !g.children[n].Equal(oc) {
			return false
		}
	}
	return true
}
