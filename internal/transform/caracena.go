package transform

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/armdoe/dsproc/internal/qc"
)

// Station is one input observation site for the Caracena spatial method:
// 2-D interpolation from a station list onto a lat/lon grid.
type Station struct {
	Lon, Lat float64
	Value    float64
	Good     bool
}

// station implements geom.Bounds-returning Comparable so it can be
// indexed in an rtree keyed by geometry bounds.
type station struct {
	Station
	pt geom.Point
}

func (s *station) Bounds() *geom.Bounds { return s.pt.Bounds() }

// searchRadiusFactor bounds how far CaracenaGrid looks for neighbors
// around a target point before giving up and reporting zero weight, as a
// multiple of the initial radius guess.
const searchRadiusFactor = 4

// CaracenaGrid implements a distance-weighted 2-D spatial interpolation
// from an irregular station list onto a regular lat/lon grid, in the
// spirit of Caracena's successive-correction method: nearby stations
// are weighted by inverse squared distance, found via a spatial index
// rather than a linear scan over all stations. This implementation uses
// a single distance-weighted pass rather than Caracena's iterative
// multi-pass successive correction, a simplification recorded in
// DESIGN.md.
func CaracenaGrid(stations []Station, gridLons, gridLats []float64, initialRadius float64, minStations int, missing float64) (values [][]float64, qcOut [][]int32, nstat [][]float64) {
	tree := rtree.NewTree(25, 50)
	for i := range stations {
		s := &station{Station: stations[i], pt: geom.Point{X: stations[i].Lon, Y: stations[i].Lat}}
		tree.Insert(s)
	}

	ny, nx := len(gridLats), len(gridLons)
	values = make([][]float64, ny)
	qcOut = make([][]int32, ny)
	nstat = make([][]float64, ny)
	for iy := range values {
		values[iy] = make([]float64, nx)
		qcOut[iy] = make([]int32, nx)
		nstat[iy] = make([]float64, nx)
	}

	for iy, lat := range gridLats {
		for ix, lon := range gridLons {
			radius := initialRadius
			var candidates []rtree.Comparable
			for tries := 0; tries < 3; tries++ {
				box := geom.NewBounds()
				box.Extend(geom.Point{X: lon - radius, Y: lat - radius}.Bounds())
				box.Extend(geom.Point{X: lon + radius, Y: lat + radius}.Bounds())
				candidates = tree.SearchIntersect(box)
				if len(candidates) >= minStations || radius >= initialRadius*searchRadiusFactor {
					break
				}
				radius *= 2
			}

			var weightSum, valueSum float64
			var used int
			for _, c := range candidates {
				s := c.(*station)
				if !s.Good {
					continue
				}
				d := haversine(lon, lat, s.Lon, s.Lat)
				if d == 0 {
					weightSum, valueSum, used = 1, s.Value, 1
					break
				}
				w := 1 / (d * d)
				weightSum += w
				valueSum += w * s.Value
				used++
			}

			nstat[iy][ix] = float64(used)
			switch {
			case weightSum == 0:
				values[iy][ix] = missing
				qcOut[iy][ix] = bit(qc.TransZeroWeight)
			case used < minStations:
				values[iy][ix] = valueSum / weightSum
				qcOut[iy][ix] = bit(qc.TransSomeIndeterminateInput)
			default:
				values[iy][ix] = valueSum / weightSum
			}
		}
	}
	return
}

// haversine returns the great-circle distance (km) between two lon/lat
// points, used as Caracena's distance metric rather than planar Euclidean
// distance since station networks span enough area for the difference to
// matter.
func haversine(lon1, lat1, lon2, lat2 float64) float64 {
	const earthRadiusKM = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
