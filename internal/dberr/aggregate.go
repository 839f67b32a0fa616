package dberr

import "strings"

// Aggregator collects errors across a processing run for the end-of-run
// mail-formatted report, while tracking the single "last error" slot
// every engine primitive writes to.
type Aggregator struct {
	last   *Error
	forced []*Error // non-fatal errors downgraded to a skip by force mode
	fatal  []*Error
}

// Record records err against the aggregator. If forceMode is set and the
// error's Kind is not fatal-by-default, it is downgraded: recorded as a
// forced skip rather than a run-aborting failure.
func (a *Aggregator) Record(err *Error, forceMode bool) (abort bool) {
	a.last = err
	if forceMode && !err.Kind.IsFatal() {
		a.forced = append(a.forced, err)
		return false
	}
	a.fatal = append(a.fatal, err)
	return true
}

// Last returns the most recently recorded error, or nil.
func (a *Aggregator) Last() *Error { return a.last }

// Failed reports whether any fatal (non-forced) error was recorded.
func (a *Aggregator) Failed() bool { return len(a.fatal) > 0 }

// Report renders the accumulated errors as a mail-formatted status report
// aggregating the fatal and forced-skip errors recorded for the run.
func (a *Aggregator) Report() string {
	var b strings.Builder
	if len(a.fatal) > 0 {
		b.WriteString("FATAL ERRORS:\n")
		for _, e := range a.fatal {
			b.WriteString("  [" + string(e.Kind) + "] " + e.Error() + "\n")
		}
	}
	if len(a.forced) > 0 {
		b.WriteString("SKIPPED (force mode):\n")
		for _, e := range a.forced {
			b.WriteString("  [" + string(e.Kind) + "] " + e.Error() + "\n")
		}
	}
	return b.String()
}
