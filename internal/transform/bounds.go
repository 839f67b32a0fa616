// Package transform implements the transformation engine: coordinate construction, bounds synthesis,
// transform-necessity decisions, and the four regridding methods.
package transform

// Alignment of a synthesized cell boundary relative to its center value,
// as a fraction of width (0 = lower edge at center, 1 = upper edge at
// center; 0.5 = centered, the default).
const DefaultAlignment = 0.5

// SynthesizeBoundsWidth builds a [n][2]float64 bounds array from center
// values, a width, and an alignment fraction: each bounds pair is
// [c - width*alignment, c + width*(1-alignment)] for coordinate value c.
func SynthesizeBoundsWidth(values []float64, width, alignment float64) [][2]float64 {
	out := make([][2]float64, len(values))
	for i, c := range values {
		out[i] = [2]float64{c - width*alignment, c + width*(1-alignment)}
	}
	return out
}

// SynthesizeBoundsEdges builds a bounds array directly from explicit
// front_edge/back_edge arrays, used verbatim. Both must be the same
// length as the coordinate variable. front_edge is the earlier/lower
// edge and back_edge the later/higher edge, so
// bounds[i] = {front_edge[i], back_edge[i]}.
func SynthesizeBoundsEdges(frontEdge, backEdge []float64) [][2]float64 {
	out := make([][2]float64, len(frontEdge))
	for i := range frontEdge {
		out[i] = [2]float64{frontEdge[i], backEdge[i]}
	}
	return out
}
