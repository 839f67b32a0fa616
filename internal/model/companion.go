package model

// MetricSuffixes lists the transform-engine metric variable suffixes:
// std, goodfraction, dist, dist_1, dist_2, nstat, deriv_lat, deriv_lon.
var MetricSuffixes = []string{
	"std", "goodfraction", "dist", "dist_1", "dist_2", "nstat", "deriv_lat", "deriv_lon",
}

// QCVariable returns v's companion QC variable ("qc_"+v.Name) in g, if
// present.
func (g *Group) QCVariable(v *Variable) (*Variable, bool) {
	return g.Variable("qc_" + v.Name)
}

// BoundsVariable returns v's companion cell-boundary variable
// (v.Name+"_bounds") in g, if present.
func (g *Group) BoundsVariable(v *Variable) (*Variable, bool) {
	return g.Variable(v.Name + "_bounds")
}

// MetricVariable returns v's companion metric variable for the given
// suffix (one of MetricSuffixes), if present.
func (g *Group) MetricVariable(v *Variable, suffix string) (*Variable, bool) {
	return g.Variable(v.Name + "_" + suffix)
}

// IsCompanionName reports whether name looks like a companion of some
// data variable (qc_*, *_bounds, or one of the metric suffixes), and
// returns the base variable name it is a companion of.
func IsCompanionName(name string) (base string, isCompanion bool) {
	if len(name) > 3 && name[:3] == "qc_" {
		return name[3:], true
	}
	if len(name) > 7 && name[len(name)-7:] == "_bounds" {
		return name[:len(name)-7], true
	}
	for _, suf := range MetricSuffixes {
		tail := "_" + suf
		if len(name) > len(tail) && name[len(name)-len(tail):] == tail {
			return name[:len(name)-len(tail)], true
		}
	}
	return "", false
}
