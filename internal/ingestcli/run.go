package ingestcli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/armdoe/dsproc/internal/datastream"
	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/dsdb"
	"github.com/armdoe/dsproc/internal/model"
	"github.com/armdoe/dsproc/internal/procctx"
	"github.com/armdoe/dsproc/internal/storage"
)

// Result summarizes one ingest run for callers (tests, RunE) that need
// more than the process exit code.
type Result struct {
	SamplesStored int
	OutputPath    string
	RenamedRaw    string
	Disabled      bool
	DisableReason string
}

// columnSpec is the config-file shape of one column mapping entry.
type columnSpec struct {
	Header string `json:"header"`
	Var    string `json:"var"`
	Type   string `json:"type"`
	Units  string `json:"units"`
}

// Run drives the CSV-ingest pipeline: parse the
// configured input file, store it into the output datastream, then
// rename the raw file into the datastream's .done directory.
func Run(cfg *Cfg) (Result, error) {
	site := cfg.GetString("site")
	facility := cfg.GetString("facility")
	processName := cfg.GetString("process_name")
	inputPath := cfg.GetString("input")
	if inputPath == "" {
		return Result{}, fmt.Errorf("ingest: --input is required")
	}

	ctx := procctx.New(site, facility, processName)
	ctx.Force = cfg.GetBool("force")
	ctx.Reprocessing = cfg.GetBool("reprocessing")
	ctx.DebugLevel = cfg.GetInt("debug")
	ctx.ProvenanceLogging = cfg.GetBool("provenance")
	ctx.DynamicDODs = cfg.GetBool("dynamic_dods")
	ctx.DisableDBUpdates = cfg.GetBool("disable_db_updates")

	if begin := cfg.GetString("begin"); begin != "" {
		b, e, err := ParseProcessingInterval(begin, time.Now().UTC())
		if err != nil {
			return Result{}, err
		}
		ctx.Begin, ctx.End = b, e
	}

	var collab dsdb.Collaborators
	if confDir := cfg.GetString("conf_data"); confDir != "" {
		path := filepath.Join(confDir, fmt.Sprintf("%s%s.%s.conf", site, processName, facility))
		if store, err := dsdb.LoadStaticStore(path); err == nil {
			collab.Disable = store
			collab.Water = store
		} else if ctx.Log != nil {
			ctx.Log.WithError(err).Debug("ingest: no static collaborator config found, proceeding without one")
		}
	}

	ingestCfg, err := loadIngestConfig(cfg)
	if err != nil {
		return Result{}, err
	}

	raw, err := os.Open(inputPath)
	if err != nil {
		return Result{}, dberr.Wrap(dberr.IOOpen, err, "ingest.Run: opening %s", inputPath)
	}
	defer raw.Close()

	group, err := storage.ParseCSV(raw, ingestCfg)
	if err != nil {
		return Result{}, err
	}
	if group == nil {
		return Result{}, fmt.Errorf("ingest: %s contained no parseable rows", inputPath)
	}

	root := cfg.GetString("datastream_data")
	if root == "" {
		root = cfg.GetString("datastream_root")
	}
	class := cfg.GetString("output_class")
	level := cfg.GetString("output_level")
	if class == "" {
		class = processName
	}
	if level == "" {
		level = "a1"
	}
	dsDir := filepath.Join(root, fmt.Sprintf("%s%s%s.%s", site, class, facility, level))
	if err := os.MkdirAll(dsDir, 0o775); err != nil {
		return Result{}, dberr.Wrap(dberr.IOAccess, err, "ingest.Run: creating %s", dsDir)
	}

	reg := datastream.NewRegistry()
	if spec := cfg.GetString("output_interval"); spec != "" {
		rules, err := datastream.ParseOutputIntervalSpec(spec)
		if err != nil {
			return Result{}, err
		}
		policies := datastream.ResolveOutputIntervals(rules, []string{class + "." + level})
		if p, ok := policies[class+"."+level]; ok {
			ds, err := reg.Init(site, facility, class, level, datastream.RoleOutput, dsDir, datastream.FormatNetCDF3, datastream.Unset)
			if err != nil {
				return Result{}, err
			}
			ds.Split = p
		}
	}
	ds, err := reg.Init(site, facility, class, level, datastream.RoleOutput, dsDir, datastream.FormatNetCDF3, datastream.Unset)
	if err != nil {
		return Result{}, err
	}

	n, err := storage.StoreDataset(ctx, ds, group, false, storage.Options{})
	if err != nil {
		if ctx.IsDisabled() {
			recordDisable(collab, ctx, site, facility, class, level)
			return Result{Disabled: true, DisableReason: ctx.DisableReason()}, nil
		}
		return Result{}, err
	}

	first, last, err := firstAndLastTime(group)
	if err != nil {
		return Result{}, err
	}

	if !ctx.DisableDBUpdates && collab.Water != nil && n > 0 {
		collab.Water.SetWatermark(dsdb.StreamKey{Site: site, Facility: facility, Class: class, Level: level}, last)
	}

	doneDir := filepath.Join(dsDir, ".done")
	if err := os.MkdirAll(doneDir, 0o775); err != nil {
		return Result{}, dberr.Wrap(dberr.IOAccess, err, "ingest.Run: creating %s", doneDir)
	}
	beginTime := first
	renamed, err := storage.RenameRaw(inputPath, filepath.Base(inputPath), dsDir, beginTime, storage.RenameOptions{
		DSName:       fmt.Sprintf("%s%s%s", site, class, facility),
		Level:        level,
		Extension:    "raw",
		PreserveDots: -1,
		ForceMode:    ctx.Force,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{SamplesStored: n, OutputPath: ds.Dir, RenamedRaw: renamed}, nil
}

func recordDisable(collab dsdb.Collaborators, ctx *procctx.Context, site, facility, class, level string) {
	if collab.Disable == nil {
		return
	}
	collab.Disable.RecordDisable(dsdb.StreamKey{Site: site, Facility: facility, Class: class, Level: level}, ctx.DisableReason(), time.Now().UTC())
}

// firstAndLastTime returns g's first and last sample times, used both as
// the canonical rename timestamp and as the new watermark value.
func firstAndLastTime(g *model.Group) (first, last model.Time, err error) {
	tv, _, err := g.FindTimeVariable()
	if err != nil {
		return model.Time{}, model.Time{}, err
	}
	n := tv.SampleCount()
	if n == 0 {
		return model.Time{}, model.Time{}, dberr.New(dberr.MissingRequiredVar, "ingest.Run: dataset has no samples")
	}
	times, err := g.GetSampleTimevals(0, n)
	if err != nil {
		return model.Time{}, model.Time{}, err
	}
	return times[0], times[n-1], nil
}

// dataTypeFromName maps a config file's type name to a model.DataType,
// the same vocabulary dsdb.parseDataType uses for DOD variable types.
func dataTypeFromName(name string) (model.DataType, error) {
	switch name {
	case "", "float":
		return model.Float, nil
	case "double":
		return model.Double, nil
	case "int":
		return model.Int, nil
	case "short":
		return model.Short, nil
	case "byte":
		return model.Byte, nil
	default:
		return 0, fmt.Errorf("ingest: unknown column type %q", name)
	}
}

func loadIngestConfig(cfg *Cfg) (storage.IngestConfig, error) {
	raw := cfg.Get("columns")
	if raw == nil {
		return storage.IngestConfig{}, fmt.Errorf("ingest: configuration has no \"columns\" mapping")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return storage.IngestConfig{}, fmt.Errorf("ingest: re-encoding columns config: %v", err)
	}
	var specs []columnSpec
	if err := json.Unmarshal(b, &specs); err != nil {
		return storage.IngestConfig{}, fmt.Errorf("ingest: decoding columns config: %v", err)
	}

	cols := make([]storage.ColumnMapping, len(specs))
	for i, s := range specs {
		dt, err := dataTypeFromName(s.Type)
		if err != nil {
			return storage.IngestConfig{}, err
		}
		cols[i] = storage.ColumnMapping{Header: s.Header, VarName: s.Var, Type: dt, Units: s.Units}
	}

	ic := storage.IngestConfig{
		TimeColumn:      cfg.GetString("time_column"),
		HeaderLineNum:   cfg.GetInt("header_line"),
		ExpectedColumns: cfg.GetInt("expected_columns"),
		SkipDataLines:   cfg.GetInt("skip_data_lines"),
		MissingValues:   cfg.GetStringSlice("missing_values"),
		Columns:         cols,
	}
	if ic.TimeColumn == "" {
		ic.TimeColumn = "time"
	}
	return ic, nil
}
