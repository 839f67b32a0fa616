// Package dsdb names the collaborator interfaces for everything kept out
// of the engine's own scope: the external DOD/retrieval-metadata/
// location-service database and the persisted watermark/DQR state it
// backs. The engine depends only on these interfaces; a real deployment
// supplies its own implementation talking to whatever metadata store it
// runs. This package also provides a small in-memory/file-backed stub
// implementation suitable for tests and for standalone/dynamic-DOD
// operation.
package dsdb

import (
	"time"

	"github.com/armdoe/dsproc/internal/model"
)

// DOD is the canonical shape (dimensions, variables, attributes) a
// datastream's files must satisfy. Version is the dataset-object-
// definition version string (e.g. "1.1"); a changed Version with an
// otherwise-identical shape is the one metadata difference store_dataset
// treats as a warning rather than a forced file split.
type DOD struct {
	Version string
	Group   *model.Group // template: dimensions/variables/attributes, no sample data
}

// RetrievalPlan names the input datastreams and variables a processing
// run should retrieve, and the output targets each retrieved variable
// maps to.
type RetrievalPlan struct {
	ProcessName string
	Inputs      []RetrievedVarSpec
}

// RetrievedVarSpec is one entry of a retrieval plan: a source variable to
// pull from a named input datastream class, the coordinate system it
// transforms onto (if any), and per-variable flags mirroring
// model.VariableTag.
type RetrievedVarSpec struct {
	InputClass, InputLevel string
	VarName                string
	CoordSystem            string
	Required               bool
	SkipTransform          bool
	RollupTransQC          bool
	Targets                []OutputTarget
}

// OutputTarget is one (datastream, variable name) a retrieved variable's
// mapped/transformed values are written to.
type OutputTarget struct {
	DatastreamClass, DatastreamLevel string
	VarName                          string
}

// Location carries the site/facility metadata the retriever and
// transformation engine need for geolocated operations (e.g. the solar
// obstruction check).
type Location struct {
	Name           string
	LatDeg, LonDeg float64
	AltMeters      float64
}

// DQR is a per-variable data-quality record retrieved from an external
// database, carrying an assessment and a time range. It surfaces as a
// side-channel record on a variable tag.
type DQR struct {
	ID         string
	Assessment string
	Begin, End model.Time
}

// StreamKey identifies one datastream for watermark/DQR lookups:
// (site, facility, class, level).
type StreamKey struct {
	Site, Facility, Class, Level string
}

// DODProvider resolves a datastream class/level to its DOD. In
// dynamic-DOD mode the engine is permitted to proceed when this returns
// an error of kind dberr.NoDOD; outside dynamic-DOD mode a missing DOD is the fatal
// `no_dod` kind.
type DODProvider interface {
	DOD(class, level string) (DOD, error)
}

// RetrievalPlanProvider resolves a process name to its retrieval plan.
type RetrievalPlanProvider interface {
	Plan(processName string) (RetrievalPlan, error)
}

// LocationProvider resolves a site/facility to its fixed location
// metadata.
type LocationProvider interface {
	Location(site, facility string) (Location, error)
}

// WatermarkStore persists the previously-processed-time watermark per
// stream. Watermark's second return is false if no watermark has ever
// been recorded.
type WatermarkStore interface {
	Watermark(key StreamKey) (model.Time, bool, error)
	SetWatermark(key StreamKey, t model.Time) error
}

// DQRStore retrieves DQR records for a stream's variable, read at
// startup and attached to the matching variable's tag.
type DQRStore interface {
	DQRs(key StreamKey, varName string) ([]DQR, error)
}

// DisableRecorder persists a process's auto-disable reason so the next
// invocation can observe it: an auto-disable termination sets exit 0 but
// records a disable reason in the database.
type DisableRecorder interface {
	RecordDisable(key StreamKey, reason string, at time.Time) error
}

// Collaborators bundles the full set of external interfaces a
// processing run depends on, so callers wire one object instead of six.
type Collaborators struct {
	DOD      DODProvider
	Plan     RetrievalPlanProvider
	Location LocationProvider
	Water    WatermarkStore
	DQRs     DQRStore
	Disable  DisableRecorder
}
