// Package procctx implements the single process-wide context record
// passed explicitly through every engine call in place of hidden
// statics: identity, the current processing interval, and the small set
// of configuration switches that must be fixed before the processing
// loop starts (map time range, rollup-QC flag, transformation-QC bit
// description overrides).
package procctx

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// Context is passed explicitly to every engine call; there are no
// package-level globals anywhere in this module.
type Context struct {
	// Identity.
	Site, Facility, ProcessName string

	// Processing interval ("the [begin, end) window
	// chosen for one loop iteration").
	Begin, End model.Time

	// Command-line-derived switches.
	Force             bool // -F
	Reprocessing      bool // -R
	Async             bool // not wall-clock-interval driven
	DebugLevel        int  // -D
	ProvenanceLogging bool // -P
	DynamicDODs       bool // --dynamic-dods
	DisableDBUpdates  bool // --disable-db-updates

	// MinValidTime is the configured floor below which no sample may be
	// stored.
	MinValidTime model.Time

	// MapTimeRange optionally restricts the mapper's input time window;
	// the zero value means "use the current processing interval".
	MapTimeRangeSet          bool
	MapTimeStart, MapTimeEnd model.Time

	// RollupTransQC is the global default for ROLLUP_TRANS_QC when a
	// datastream does not set its flag explicitly one way or the other.
	RollupTransQC bool

	// TransQCBitDescriptions, if non-empty, overrides the canonical
	// transformation-QC bit description strings.
	TransQCBitDescriptions map[int]string

	// Clock allows tests to fix "now"; nil means time.Now.
	Clock func() time.Time

	Log    logrus.FieldLogger
	Errors dberr.Aggregator

	disabled       bool
	disableReason  string
}

// New returns a Context with sane defaults: a standard logrus logger and
// the real wall clock.
func New(site, facility, processName string) *Context {
	return &Context{
		Site:        site,
		Facility:    facility,
		ProcessName: processName,
		Log:         logrus.StandardLogger(),
	}
}

// Now returns the current wall-clock time, using Clock if set (tests
// fixing "now" to make future_time/min_time checks deterministic).
func (c *Context) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

// Disable sets a persistent disable reason; the next top-level step
// should observe IsDisabled and abort, and the process should exit 0
// while still recording the reason (an auto-disable termination).
func (c *Context) Disable(reason string) {
	c.disabled = true
	c.disableReason = reason
	if c.Log != nil {
		c.Log.WithField("reason", reason).Warn("procctx: auto-disable")
	}
}

// IsDisabled reports whether Disable has been called.
func (c *Context) IsDisabled() bool { return c.disabled }

// DisableReason returns the reason passed to Disable, or "" if not disabled.
func (c *Context) DisableReason() string { return c.disableReason }

// Fail records err against the error aggregator, downgrading it to a
// logged skip if force mode applies and the kind isn't fatal-by-default.
// It returns true if the run must abort.
func (c *Context) Fail(err *dberr.Error) (abort bool) {
	abort = c.Errors.Record(err, c.Force)
	if c.Log != nil {
		if abort {
			c.Log.WithField("kind", err.Kind).Error(err.Error())
		} else {
			c.Log.WithField("kind", err.Kind).Warn("skipped (force mode): " + err.Error())
		}
	}
	if err.Kind == dberr.FutureTime {
		c.Disable("future_time: " + err.Error())
	}
	return abort
}

// MapTimeRangeOrDefault returns the configured map time range, defaulting
// to the current processing interval.
func (c *Context) MapTimeRangeOrDefault() (start, end model.Time) {
	if c.MapTimeRangeSet {
		return c.MapTimeStart, c.MapTimeEnd
	}
	return c.Begin, c.End
}
