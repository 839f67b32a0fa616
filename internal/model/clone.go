package model

// Clone returns a deep copy of g, including all dimensions, variables
// (with sample data when withData is true), attributes, and child groups.
// It performs a full structural copy rather than a shallow reference
// copy so the retrieved-data tree and the output tree never alias each
// other's storage.
func (g *Group) Clone(withData bool) *Group {
	c := NewGroup(g.Name)
	c.locked = g.locked

	dimMap := map[string]*Dimension{}
	for _, name := range g.dimOrder {
		d := g.dims[name]
		nd := d.Clone()
		nd.owner = c
		c.dims[name] = nd
		c.dimOrder = append(c.dimOrder, name)
		dimMap[name] = nd
	}

	for _, a := range g.atts {
		c.atts = append(c.atts, a.Clone())
	}

	for _, name := range g.varOrder {
		v := g.vars[name]
		nv := v.Clone(withData)
		// Re-resolve dimension pointers against this group's own clones
		// (or an ancestor's, walked through c.Parent, which the caller
		// is responsible for wiring before cross-group dimensions are
		// needed).
		for i, d := range nv.Dims {
			if resolved, ok := dimMap[d.Name]; ok {
				nv.Dims[i] = resolved
			}
		}
		nv.owner = c
		c.vars[name] = nv
		c.varOrder = append(c.varOrder, name)
	}

	for _, name := range g.childOrder {
		child := g.children[name]
		nc := child.Clone(withData)
		nc.Parent = c
		c.children[name] = nc
		c.childOrder = append(c.childOrder, name)
	}

	return c
}

// CopyVariableInto copies v (and, if present, its companion QC, bounds,
// and metric variables) from g into dst, creating variable and dimension
// definitions in dst as needed. This is the primitive the variable mapper
// builds its per-variable copy loop on.
func CopyVariableInto(g *Group, v *Variable, dst *Group, newName string) (*Variable, error) {
	dimNames := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		dimNames[i] = d.Name
		if _, ok := dst.Dimension(d.Name); !ok {
			if _, err := dst.DefineDimension(d.Name, d.Length, d.IsUnlimited); err != nil {
				return nil, err
			}
		}
	}
	nv, ok := dst.Variable(newName)
	if !ok {
		var err error
		nv, err = dst.DefineVariable(newName, v.Type, dimNames)
		if err != nil {
			return nil, err
		}
		for _, a := range v.atts {
			nv.atts = append(nv.atts, a.Clone())
		}
		nv.Tag = v.Tag.Clone()
	}
	return nv, nil
}
