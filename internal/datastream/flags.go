// Package datastream implements the datastream registry: lifecycle of input/output datastream handles, per-stream
// flags, formats, and split policies.
package datastream

// Flags is the per-datastream bitmask controlling standard/rollup QC,
// NaN filtering, overlap checking, merge/transform participation, and
// scan vs. observation-loop processing mode.
type Flags int64

const (
	StandardQC Flags = 1 << iota
	FilterNaNs
	OverlapCheck
	PreserveObs
	DisableMerge
	SkipTransform
	RollupTransQC
	ScanMode
	ObsLoop
	FilterVersionedFiles
)

// Has reports whether all bits of want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Unset is the sentinel passed to Init to request the role/level-derived
// flags defaultFlags computes below (Init defaults the format separately,
// when it is passed as 0).
const Unset Flags = -1

// Role is a datastream's direction.
type Role int

const (
	RoleInput Role = iota + 1
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	default:
		return "invalid"
	}
}

// Format is a datastream's on-disk file format.
type Format int

const (
	FormatNetCDF3 Format = iota + 1
	FormatCSV
	FormatRaw
	FormatJPG
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatNetCDF3:
		return "netcdf3"
	case FormatCSV:
		return "csv"
	case FormatRaw:
		return "raw"
	case FormatJPG:
		return "jpg"
	case FormatPNG:
		return "png"
	default:
		return "invalid"
	}
}

// Extension returns the default filename extension for f.
func (f Format) Extension() string {
	switch f {
	case FormatNetCDF3:
		return "nc"
	case FormatCSV:
		return "csv"
	case FormatJPG:
		return "jpg"
	case FormatPNG:
		return "png"
	default:
		return "raw"
	}
}

// defaultFlags derives a datastream's default flags from its role and
// level's leading letter: input streams above level '0' filter versioned
// files; output streams above level '0' enable overlap checking, with
// level 'a' also filtering NaNs and level 'b' adding standard QC.
func defaultFlags(role Role, level string) Flags {
	levelChar := ""
	if level != "" {
		levelChar = level[:1]
	}
	var f Flags
	switch {
	case role == RoleInput && levelChar != "0":
		f |= FilterVersionedFiles
	case role == RoleOutput && levelChar != "0":
		f |= OverlapCheck
		switch levelChar {
		case "a":
			f |= FilterNaNs
		case "b":
			f |= StandardQC | FilterNaNs
		}
	}
	return f
}

// defaultFormat implements the format-defaulting rule: raw for level '0',
// otherwise the configured global output format.
func defaultFormat(level string, globalOutputFormat Format) Format {
	if level == "0" {
		return FormatRaw
	}
	if globalOutputFormat == 0 {
		return FormatNetCDF3
	}
	return globalOutputFormat
}
