package qc

import (
	"github.com/armdoe/dsproc/internal/model"
)

// StandardOptions configures StandardQCChecks' defaults and previous-file
// hydration.
type StandardOptions struct {
	Excluded map[string]bool

	DeltaTLowerLimit, DeltaTUpperLimit float64

	// PriorSample, if non-nil, supplies the previous file's last sample
	// per variable name (for prior_sample_flag-bearing variables) and
	// last time delta, for delta/time checks across a file boundary.
	PriorSample map[string]float64
	PriorDt     *float64

	Limits LimitCheckConfig
}

// StandardQCChecks implements the orchestration: limit checks
// (defaults 1/2/4), then delta checks (with previous-file hydration when
// a variable carries prior_sample_flag), then time checks on the time
// variable, then solar-obstruction checks when the relevant metadata is
// present. g must already have companion qc_ variables defined for every
// checked data variable.
func StandardQCChecks(g *model.Group, opts StandardOptions) error {
	if opts.Limits == (LimitCheckConfig{}) {
		opts.Limits = LimitCheckConfig{DefaultMissingBit: 1, DefaultMinBit: 2, DefaultMaxBit: 4}
	}

	for _, v := range g.Variables() {
		if opts.Excluded[v.Name] {
			continue
		}
		if _, isCompanion := model.IsCompanionName(v.Name); isCompanion {
			continue
		}
		qcVar, ok := g.QCVariable(v)
		if !ok {
			continue
		}

		LimitChecks(v, qcVar, opts.Limits)

		var prev *float64
		if a := v.Attribute("prior_sample_flag"); a != nil {
			if opts.PriorSample != nil {
				if p, ok := opts.PriorSample[v.Name]; ok {
					prev = &p
				}
			}
			_ = a
		}
		DeltaChecks(v, qcVar, prev)
	}

	if tv, _, err := g.FindTimeVariable(); err == nil {
		if qcTime, ok := g.QCVariable(tv); ok {
			times, err := g.GetSampleTimevals(0, tv.SampleCount())
			if err == nil {
				TimeChecks(times, qcTime, opts.DeltaTLowerLimit, opts.DeltaTUpperLimit, opts.PriorDt)
			}
		}
	}

	lat, hasLat := groupFloatAttr(g, "latitude")
	lon, hasLon := groupFloatAttr(g, "longitude")
	if hasLat && hasLon {
		for _, v := range g.Variables() {
			azA := v.Attribute("solar_obstruction_azimuth_range")
			elA := v.Attribute("solar_obstruction_elevation_range")
			if azA == nil || elA == nil {
				continue
			}
			azVals, elVals := azA.AsFloat64s(), elA.AsFloat64s()
			if len(azVals) != 2 || len(elVals) != 2 {
				continue
			}
			qcVar, ok := g.QCVariable(v)
			if !ok {
				continue
			}
			tv, _, err := g.FindTimeVariable()
			if err != nil {
				continue
			}
			times, err := g.GetSampleTimevals(0, tv.SampleCount())
			if err != nil {
				continue
			}
			SolarObstructionCheck(times, lat, lon, [2]float64{azVals[0], azVals[1]}, [2]float64{elVals[0], elVals[1]}, qcVar)
		}
	}

	return nil
}

func groupFloatAttr(g *model.Group, name string) (float64, bool) {
	a := g.Attribute(name)
	if a == nil {
		return 0, false
	}
	vals := a.AsFloat64s()
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}
