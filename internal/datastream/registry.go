package datastream

import (
	"github.com/armdoe/dsproc/internal/dberr"
)

// Registry maintains an indexed table of datastream handles and is the
// sole owner of *Datastream values. Each handle carries a stable ID that
// Get resolves; Init, Get, Find and All return the *Datastream pointers
// themselves, not IDs.
type Registry struct {
	byKey   map[key]ID
	streams []*Datastream

	// GlobalOutputFormat is the configured default output format when a
	// stream's format isn't forced to raw by level '0'.
	GlobalOutputFormat Format

	// DefaultMaxOpen bounds open file handles per stream.
	DefaultMaxOpen int
}

// NewRegistry returns an empty Registry with netCDF3 as the default
// output format.
func NewRegistry() *Registry {
	return &Registry{
		byKey:               map[key]ID{},
		GlobalOutputFormat:  FormatNetCDF3,
		DefaultMaxOpen:      8,
	}
}

// Init is idempotent per (site, facility, class, level, role): a second
// call with the same key returns the existing handle rather than
// constructing a new one. flags == Unset requests the role/level-derived
// defaults (see defaultFlags).
func (r *Registry) Init(site, facility, class, level string, role Role, path string, format Format, flags Flags) (*Datastream, error) {
	if role != RoleInput && role != RoleOutput {
		return nil, dberr.New(dberr.TypeMismatch, "datastream.Registry.Init: invalid role %v", role)
	}
	k := key{site: site, facility: facility, class: class, level: level, role: role}
	if id, ok := r.byKey[k]; ok {
		return r.streams[id], nil
	}

	if flags == Unset {
		flags = defaultFlags(role, level)
	}
	if format == 0 {
		format = defaultFormat(level, r.GlobalOutputFormat)
	}

	ds := &Datastream{
		ID:        ID(len(r.streams)),
		Site:      site,
		Facility:  facility,
		Class:     class,
		Level:     level,
		Role:      role,
		Name:      FullyQualifiedName(site, class, facility, level),
		Format:    format,
		Extension: format.Extension(),
		Flags:     flags,
		Dir:       path,
		lru:       newFileLRU(r.DefaultMaxOpen),
		dirs:      &dirCache{},
	}
	r.streams = append(r.streams, ds)
	r.byKey[k] = ds.ID
	return ds, nil
}

// Get returns the datastream with the given ID.
func (r *Registry) Get(id ID) (*Datastream, bool) {
	if int(id) < 0 || int(id) >= len(r.streams) {
		return nil, false
	}
	return r.streams[id], true
}

// Find looks up a datastream by its natural key without creating one.
func (r *Registry) Find(site, facility, class, level string, role Role) (*Datastream, bool) {
	id, ok := r.byKey[key{site: site, facility: facility, class: class, level: level, role: role}]
	if !ok {
		return nil, false
	}
	return r.streams[id], true
}

// All returns every registered datastream, in registration order.
func (r *Registry) All() []*Datastream {
	return append([]*Datastream(nil), r.streams...)
}

// ClassLevel returns the "class.level" key used by output-interval
// binding.
func (ds *Datastream) ClassLevel() string { return ds.Class + "." + ds.Level }

// ApplySplitPolicy sets ds's split policy, resolving a "local" timezone
// offset request against offsetHours (the caller's local-vs-UTC offset),
// since the parser itself does not know the process's local offset.
func (ds *Datastream) ApplySplitPolicy(policy SplitPolicy, localOffsetHours float64, wasLocal bool) {
	if wasLocal {
		policy.TZOffsetHours = localOffsetHours
	}
	ds.Split = policy
}

// CachedHandle returns a cached *os.File for path if one is open, or nil.
func (ds *Datastream) CachedHandle(path string) interface{ Name() string } {
	if f := ds.lru.Get(path); f != nil {
		return f
	}
	return nil
}

// DirList returns ds.Dir's file listing, using the mtime-invalidated
// cache.
func (ds *Datastream) DirList() ([]string, error) {
	return ds.dirs.List(ds.Dir)
}

// InvalidateDirCache forces the next DirList call to re-read the
// directory instead of serving a stale cached listing.
func (ds *Datastream) InvalidateDirCache() { ds.dirs.Invalidate() }

// RecordUpdatedFile appends name to ds's list of files this run created
// or updated, if not already present.
func (ds *Datastream) RecordUpdatedFile(name string) {
	for _, f := range ds.Files {
		if f == name {
			return
		}
	}
	ds.Files = append(ds.Files, name)
}
