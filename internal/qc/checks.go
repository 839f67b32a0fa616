package qc

import (
	"math"
	"strings"

	"github.com/armdoe/dsproc/internal/model"
)

// Canonical limit-check bit phrasings (value == missing_value,
// value < valid_min, value > valid_max, plus warn/fail variants);
// matched against a QC variable's bit_N_description attributes to
// discover which bit each condition should set.
const (
	descMissing = "value is equal to missing_value"
	descMin     = "value is less than valid_min"
	descMax     = "value is greater than valid_max"
	descWarnMin = "value is less than warn_min"
	descWarnMax = "value is greater than warn_max"
	descFailMin = "value is less than fail_min"
	descFailMax = "value is greater than fail_max"
	descDelta   = "difference between current and previous values exceeds valid_delta"
	descDtZero  = "time difference between current and previous sample is zero or negative"
	descDtShort = "time difference between current and previous sample is less than delta_t_lower_limit"
	descDtLong  = "time difference between current and previous sample is greater than delta_t_upper_limit"
	descSolar   = "the sun was obstructed from the instrument's field of view"
)

// bitForDescription returns the 1-based bit of qcVar whose
// bit_N_description attribute matches want (case/space-insensitively),
// or 0 if none matches.
func bitForDescription(qcVar *model.Variable, want string) int {
	for bit := 1; bit <= 32; bit++ {
		a := qcVar.Attribute(bitDescAttr(bit))
		if a == nil {
			continue
		}
		if s, ok := a.AsString(); ok && strings.EqualFold(strings.TrimSpace(s), want) {
			return bit
		}
	}
	return 0
}

// LimitCheckConfig carries the default flag bits to use when a qc
// variable's bit descriptions don't name the canonical phrasing: if the
// expected description is absent, the check falls back to these bits
// and emits a warning.
type LimitCheckConfig struct {
	DefaultMissingBit int
	DefaultMinBit     int
	DefaultMaxBit     int
}

// LimitChecks implements qc_limit_checks: flags samples
// against missing_value/valid_min/valid_max/warn_*/fail_* attributes on
// v, writing bits into qcVar (same shape as v). It returns the names of
// checks it could not map to a bit_N_description (for the caller to
// warn about) and falls back to cfg's defaults for those. A sample equal
// to missing_value gets only the missing bit; the range checks skip it.
func LimitChecks(v, qcVar *model.Variable, cfg LimitCheckConfig) (unmapped []string) {
	missBit := bitForDescription(qcVar, descMissing)
	minBit := bitForDescription(qcVar, descMin)
	maxBit := bitForDescription(qcVar, descMax)
	warnMinBit := bitForDescription(qcVar, descWarnMin)
	warnMaxBit := bitForDescription(qcVar, descWarnMax)
	failMinBit := bitForDescription(qcVar, descFailMin)
	failMaxBit := bitForDescription(qcVar, descFailMax)

	if missBit == 0 {
		missBit = cfg.DefaultMissingBit
		unmapped = append(unmapped, descMissing)
	}
	if minBit == 0 {
		minBit = cfg.DefaultMinBit
		unmapped = append(unmapped, descMin)
	}
	if maxBit == 0 {
		maxBit = cfg.DefaultMaxBit
		unmapped = append(unmapped, descMax)
	}

	missingVal, hasMissing := v.MissingValue()
	validMin, hasMin := attrFloat(v, "valid_min")
	validMax, hasMax := attrFloat(v, "valid_max")
	warnMin, hasWarnMin := attrFloat(v, "warn_min")
	warnMax, hasWarnMax := attrFloat(v, "warn_max")
	failMin, hasFailMin := attrFloat(v, "fail_min")
	failMax, hasFailMax := attrFloat(v, "fail_max")

	n := v.SampleCount() * v.SampleSize()
	for i := 0; i < n; i++ {
		x := v.Float64At(i)
		bits := int64(qcVar.Float64At(i))
		if hasMissing && x == missingVal {
			if missBit > 0 {
				bits |= 1 << uint(missBit-1)
			}
			qcVar.SetFloat64At(i, float64(bits))
			continue
		}
		if hasMin && x < validMin && minBit > 0 {
			bits |= 1 << uint(minBit-1)
		}
		if hasMax && x > validMax && maxBit > 0 {
			bits |= 1 << uint(maxBit-1)
		}
		if hasWarnMin && x < warnMin && warnMinBit > 0 {
			bits |= 1 << uint(warnMinBit-1)
		}
		if hasWarnMax && x > warnMax && warnMaxBit > 0 {
			bits |= 1 << uint(warnMaxBit-1)
		}
		if hasFailMin && x < failMin && failMinBit > 0 {
			bits |= 1 << uint(failMinBit-1)
		}
		if hasFailMax && x > failMax && failMaxBit > 0 {
			bits |= 1 << uint(failMaxBit-1)
		}
		qcVar.SetFloat64At(i, float64(bits))
	}
	return unmapped
}

// DeltaChecks implements qc_delta_checks: flags sample i
// when |x_i - x_{i-1}| > valid_delta. prevValue, if non-nil, hydrates
// x_{-1} from the previous file's last sample (prior_sample_flag).
func DeltaChecks(v, qcVar *model.Variable, prevValue *float64) {
	deltaBit := bitForDescription(qcVar, descDelta)
	if deltaBit == 0 {
		return
	}
	validDelta, has := attrFloat(v, "valid_delta")
	if !has {
		return
	}
	n := v.SampleCount()
	for i := 0; i < n; i++ {
		var prev float64
		ok := false
		if i == 0 {
			if prevValue != nil {
				prev, ok = *prevValue, true
			}
		} else {
			prev, ok = v.Float64At(i-1), true
		}
		if !ok {
			continue
		}
		if math.Abs(v.Float64At(i)-prev) > validDelta {
			bits := int64(qcVar.Float64At(i))
			bits |= 1 << uint(deltaBit-1)
			qcVar.SetFloat64At(i, float64(bits))
		}
	}
}

// TimeChecks implements qc_time_checks over a group's
// sample times, writing flags into qcTimeVar (shaped like the time
// variable). priorDt, if non-nil, supplies Δt₀ from a previous-sample
// time (prior_sample_flag).
func TimeChecks(times []model.Time, qcTimeVar *model.Variable, lowerLimit, upperLimit float64, priorDt *float64) {
	zeroBit := bitForDescription(qcTimeVar, descDtZero)
	shortBit := bitForDescription(qcTimeVar, descDtShort)
	longBit := bitForDescription(qcTimeVar, descDtLong)

	flag := func(i int, dt float64) {
		bits := int64(qcTimeVar.Float64At(i))
		if dt <= 0 && zeroBit > 0 {
			bits |= 1 << uint(zeroBit-1)
		}
		if dt < lowerLimit && shortBit > 0 {
			bits |= 1 << uint(shortBit-1)
		}
		if dt > upperLimit && longBit > 0 {
			bits |= 1 << uint(longBit-1)
		}
		qcTimeVar.SetFloat64At(i, float64(bits))
	}

	for i := 1; i < len(times); i++ {
		flag(i, times[i].SecondsSince(times[i-1]))
	}
	if len(times) > 0 && priorDt != nil {
		flag(0, *priorDt)
	}
}

func attrFloat(v *model.Variable, name string) (float64, bool) {
	a := v.Attribute(name)
	if a == nil {
		return 0, false
	}
	vals := a.AsFloat64s()
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}
