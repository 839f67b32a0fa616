package model

import (
	"github.com/armdoe/dsproc/internal/dberr"
)

// Group is a named container holding dimensions, attributes, variables,
// and child groups. It owns the lifetime of its children
// exclusively: deleting a Group deletes everything beneath it.
type Group struct {
	Name   string
	Parent *Group

	dims     map[string]*Dimension
	dimOrder []string
	vars     map[string]*Variable
	varOrder []string
	atts     []*Attribute
	children map[string]*Group
	childOrder []string

	// locked is the definition-lock bit: while set, dimensions/variables/
	// attributes cannot be redefined or deleted, but mutating data is
	// still allowed.
	locked bool
}

// NewGroup constructs an empty, unlocked Group named name.
func NewGroup(name string) *Group {
	return &Group{
		Name:     name,
		dims:     map[string]*Dimension{},
		vars:     map[string]*Variable{},
		children: map[string]*Group{},
	}
}

// Lock sets the definition-lock bit.
func (g *Group) Lock() { g.locked = true }

// Unlock clears the definition-lock bit.
func (g *Group) Unlock() { g.locked = false }

// Locked reports the definition-lock bit.
func (g *Group) Locked() bool { return g.locked }

// DefineDimension creates a dimension named name with the given length and
// unlimited flag. It fails with dberr.DimensionLocked if g is locked or a
// dimension of that name already exists.
func (g *Group) DefineDimension(name string, length int, unlimited bool) (*Dimension, error) {
	if g.locked {
		return nil, dberr.New(dberr.DimensionLocked, "model.Group.DefineDimension: group %q is locked", g.Name)
	}
	if _, ok := g.dims[name]; ok {
		return nil, dberr.New(dberr.DimensionLocked, "model.Group.DefineDimension: dimension %q already defined in group %q", name, g.Name)
	}
	d := &Dimension{Name: name, Length: length, IsUnlimited: unlimited, owner: g}
	g.dims[name] = d
	g.dimOrder = append(g.dimOrder, name)
	return d, nil
}

// Dimension looks up a dimension by name, searching g and then its
// ancestors (a variable may reference a dimension defined in an ancestor
// group).
func (g *Group) Dimension(name string) (*Dimension, bool) {
	for cur := g; cur != nil; cur = cur.Parent {
		if d, ok := cur.dims[name]; ok {
			return d, true
		}
	}
	return nil, false
}

// Dimensions returns g's own dimensions (not ancestors') in definition
// order.
func (g *Group) Dimensions() []*Dimension {
	out := make([]*Dimension, len(g.dimOrder))
	for i, n := range g.dimOrder {
		out[i] = g.dims[n]
	}
	return out
}

// DefineVariable creates a variable named name of the given type over the
// named dimensions, resolved against g and its ancestors so a variable
// can reference a dimension defined higher in the tree. The first named
// dimension becomes the sample axis.
func (g *Group) DefineVariable(name string, dtype DataType, dimNames []string) (*Variable, error) {
	if g.locked {
		return nil, dberr.New(dberr.DimensionLocked, "model.Group.DefineVariable: group %q is locked", g.Name)
	}
	if !dtype.Valid() {
		return nil, dberr.New(dberr.TypeMismatch, "model.Group.DefineVariable: invalid data type for variable %q", name)
	}
	if _, ok := g.vars[name]; ok {
		return nil, dberr.New(dberr.DimensionLocked, "model.Group.DefineVariable: variable %q already defined in group %q", name, g.Name)
	}
	dims := make([]*Dimension, len(dimNames))
	for i, dn := range dimNames {
		d, ok := g.Dimension(dn)
		if !ok {
			return nil, dberr.New(dberr.NoSuchName, "model.Group.DefineVariable: dimension %q not found for variable %q", dn, name)
		}
		dims[i] = d
	}
	v := &Variable{Name: name, Type: dtype, Dims: dims, owner: g}
	v.Data = dtype.ZeroSlice(0)
	g.vars[name] = v
	g.varOrder = append(g.varOrder, name)
	return v, nil
}

// Variable looks up a variable by name within g only (variables, unlike
// dimensions, are not inherited from ancestor groups).
func (g *Group) Variable(name string) (*Variable, bool) {
	v, ok := g.vars[name]
	return v, ok
}

// Variables returns g's variables in definition order.
func (g *Group) Variables() []*Variable {
	out := make([]*Variable, len(g.varOrder))
	for i, n := range g.varOrder {
		out[i] = g.vars[n]
	}
	return out
}

// DeleteVariable removes a variable from g. It fails with
// dberr.DimensionLocked if g is locked.
func (g *Group) DeleteVariable(name string) error {
	if g.locked {
		return dberr.New(dberr.DimensionLocked, "model.Group.DeleteVariable: group %q is locked", g.Name)
	}
	delete(g.vars, name)
	for i, n := range g.varOrder {
		if n == name {
			g.varOrder = append(g.varOrder[:i], g.varOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Attributes returns g's global attributes in definition order.
func (g *Group) Attributes() []*Attribute { return g.atts }

// Attribute returns the named global attribute, or nil if absent.
func (g *Group) Attribute(name string) *Attribute {
	for _, a := range g.atts {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// SetAttribute defines or overwrites a global attribute on g.
func (g *Group) SetAttribute(name string, dtype DataType, value interface{}) error {
	if existing := g.Attribute(name); existing != nil {
		if existing.Locked {
			return dberr.New(dberr.DimensionLocked, "model.Group.SetAttribute: attribute %q is locked", name)
		}
		existing.Type = dtype
		existing.Value = value
		return nil
	}
	g.atts = append(g.atts, &Attribute{Name: name, Type: dtype, Value: value})
	return nil
}

// NewChild creates and attaches a child group named name.
func (g *Group) NewChild(name string) (*Group, error) {
	if g.locked {
		return nil, dberr.New(dberr.DimensionLocked, "model.Group.NewChild: group %q is locked", g.Name)
	}
	if _, ok := g.children[name]; ok {
		return nil, dberr.New(dberr.DimensionLocked, "model.Group.NewChild: child group %q already exists", name)
	}
	c := NewGroup(name)
	c.Parent = g
	g.children[name] = c
	g.childOrder = append(g.childOrder, name)
	return c, nil
}

// Child returns a named child group.
func (g *Group) Child(name string) (*Group, bool) {
	c, ok := g.children[name]
	return c, ok
}

// Children returns g's child groups in creation order.
func (g *Group) Children() []*Group {
	out := make([]*Group, len(g.childOrder))
	for i, n := range g.childOrder {
		out[i] = g.children[n]
	}
	return out
}

// DeleteChild removes and discards a child group (and, transitively,
// everything beneath it, since Group exclusively owns its children).
func (g *Group) DeleteChild(name string) {
	delete(g.children, name)
	for i, n := range g.childOrder {
		if n == name {
			g.childOrder = append(g.childOrder[:i], g.childOrder[i+1:]...)
			break
		}
	}
}
