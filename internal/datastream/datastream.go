package datastream

import (
	"fmt"

	"github.com/armdoe/dsproc/internal/model"
)

// ID identifies a Datastream handle stably: it is the handle's index in
// its Registry, and Registry.Get resolves it back to the *Datastream.
type ID int

// Datastream is a handle representing a logical stream identified by
// (site, facility, class, level, role).
type Datastream struct {
	ID ID

	Site, Facility, Class, Level string
	Role                         Role

	// Name is the fully qualified "{site}{class}{facility}.{level}".
	Name string

	Format    Format
	Extension string
	Flags     Flags
	Dir       string
	Split     SplitPolicy

	// PrevProcTime is the previously-processed time watermark, persisted
	// externally between runs.
	PrevProcTime     model.Time
	HavePrevProcTime bool

	// Fetched/Output point at this run's retrieved or output dataset
	// tree, if any.
	Fetched, Output *model.Group

	// Files this run has created or updated, in creation order.
	Files []string

	maxOpen int
	lru     *fileLRU
	dirs    *dirCache
}

// FullyQualifiedName computes the "{site}{class}{facility}.{level}" name
// a datastream is known by.
func FullyQualifiedName(site, class, facility, level string) string {
	return fmt.Sprintf("%s%s%s.%s", site, class, facility, level)
}

// key identifies a datastream uniquely for registry lookups/idempotence.
type key struct {
	site, facility, class, level string
	role                         Role
}
