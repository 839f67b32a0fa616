package qc

import (
	"math"

	"github.com/armdoe/dsproc/internal/model"
)

// SolarPosition returns the sun's azimuth (degrees, 0=north, clockwise)
// and elevation (degrees above horizon) at t for the given latitude and
// longitude, using the compact low-precision solar-position algorithm
// from Meeus (as commonly implemented for this class of obstruction
// check; accurate to roughly 0.01 degrees, well within QC tolerance).
func SolarPosition(t model.Time, latDeg, lonDeg float64) (azimuth, elevation float64) {
	jd := julianDay(t)
	n := jd - 2451545.0

	meanLong := norm360(280.460 + 0.9856474*n)
	meanAnom := rad(norm360(357.528 + 0.9856003*n))
	eclLong := rad(meanLong + 1.915*math.Sin(meanAnom) + 0.020*math.Sin(2*meanAnom))
	oblEcl := rad(23.439 - 0.0000004*n)

	sinDec := math.Sin(oblEcl) * math.Sin(eclLong)
	decl := math.Asin(sinDec)

	y := math.Cos(oblEcl) * math.Sin(eclLong)
	x := math.Cos(eclLong)
	rightAsc := math.Atan2(y, x)

	gmst := norm360(280.46061837 + 360.98564736629*n)
	lst := rad(norm360(gmst + lonDeg))
	hourAngle := lst - rightAsc

	lat := rad(latDeg)
	sinEl := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
	el := math.Asin(clamp(sinEl, -1, 1))

	cosAz := (math.Sin(decl) - math.Sin(el)*math.Sin(lat)) / (math.Cos(el) * math.Cos(lat))
	az := math.Acos(clamp(cosAz, -1, 1))
	if math.Sin(hourAngle) > 0 {
		az = 2*math.Pi - az
	}

	return deg(az), deg(el)
}

func julianDay(t model.Time) float64 {
	unix := float64(t.Sec) + float64(t.USec)/1e6
	return unix/86400.0 + 2440587.5
}

func rad(deg float64) float64   { return deg * math.Pi / 180 }
func deg(rad float64) float64   { return rad * 180 / math.Pi }
func norm360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// inRangeWrap reports whether x lies within [lo, hi], wrapping at 360
// degrees when lo > hi.
func inRangeWrap(x, lo, hi float64) bool {
	if lo <= hi {
		return x >= lo && x <= hi
	}
	return x >= lo || x <= hi
}

// SolarObstructionCheck implements the solar-obstruction
// check: for each sample time, computes solar azimuth/elevation from
// (lat, lon) and flags the sample when both lie within the configured
// azimuth/elevation ranges.
func SolarObstructionCheck(times []model.Time, lat, lon float64, azRange, elRange [2]float64, qcVar *model.Variable) {
	bit := bitForDescription(qcVar, descSolar)
	if bit == 0 {
		return
	}
	for i, t := range times {
		az, el := SolarPosition(t, lat, lon)
		if inRangeWrap(az, azRange[0], azRange[1]) && el >= elRange[0] && el <= elRange[1] {
			bits := int64(qcVar.Float64At(i))
			bits |= 1 << uint(bit-1)
			qcVar.SetFloat64At(i, float64(bits))
		}
	}
}
