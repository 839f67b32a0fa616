package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/armdoe/dsproc/internal/datastream"
	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
	"github.com/armdoe/dsproc/internal/procctx"
	"github.com/armdoe/dsproc/internal/qc"
	"github.com/armdoe/dsproc/pkg/ncio"
)

// Options configures one StoreDataset call.
type Options struct {
	QC qc.StandardOptions

	// CustomQC, if set, is run after standard QC; returning ok=false
	// silently drops the whole dataset, the same way a registered
	// per-datastream custom QC callback can veto a store.
	CustomQC func(g *model.Group) (ok bool, err error)
}

// StoreDataset implements the 14-step store_dataset sequence
// for one already-retrieved-and-mapped output dataset g, returning the
// number of samples actually stored (0 if every sample was filtered out
// as a duplicate of previously stored data, or dropped by the custom QC
// hook).
func StoreDataset(ctx *procctx.Context, ds *datastream.Datastream, g *model.Group, newFile bool, opts Options) (int, error) {
	tv, _, err := g.FindTimeVariable()
	if err != nil {
		return 0, err
	}
	if tv.SampleCount() == 0 {
		return 0, nil
	}

	times, err := g.GetSampleTimevals(0, tv.SampleCount())
	if err != nil {
		return 0, err
	}

	longName := ""
	if a := tv.Attribute("long_name"); a != nil {
		longName, _ = a.AsString()
	}

	// Step 1/2: dedup within the batch.
	times, err = dedupInPlace(ctx, g, times)
	if err != nil {
		return 0, err
	}
	if len(times) == 0 {
		return 0, nil
	}

	// Step 3: cell bounds / chunk sizes. netCDF3 "classic" files have no
	// chunking concept (an HDF5/netCDF4 feature github.com/ctessum/cdf
	// does not expose), so this step is a structural no-op here; see
	// DESIGN.md.
	setCellBounds(g)

	// Step 4: FILTER_NANS.
	if ds.Flags.Has(datastream.FilterNaNs) {
		if err := filterNaNs(g); err != nil {
			return 0, err
		}
	}

	// Step 5: STANDARD_QC.
	if ds.Flags.Has(datastream.StandardQC) {
		if err := qc.StandardQCChecks(g, opts.QC); err != nil {
			return 0, err
		}
	}

	// Step 6: custom QC hook.
	if opts.CustomQC != nil {
		ok, err := opts.CustomQC(g)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
	}

	// Step 7: CSV short-circuit.
	if ds.Format == datastream.FormatCSV {
		stamp := times[0].GoTime().Format("20060102.150405")
		name := fmt.Sprintf("%s.%s.%s", ds.Name, stamp, ds.Extension)
		path := filepath.Join(ds.Dir, name)
		if err := writeCSV(path, g, times); err != nil {
			return 0, err
		}
		ds.RecordUpdatedFile(name)
		ds.InvalidateDirCache()
		return len(times), nil
	}

	reprocOnStore := ctx.Reprocessing && ds.Split.Mode == datastream.SplitOnStore
	firstTimeBeforeFilter := times[0]

	// Step 8: filter against previously stored data.
	if !ctx.Async && !reprocOnStore {
		times, err = filterAgainstStored(ctx, g, ds, times)
		if err != nil {
			return 0, err
		}
		if len(times) == 0 {
			if ctx.Log != nil {
				ctx.Log.WithField("datastream", ds.Name).Warn("storage: all data was filtered from the dataset")
			}
			return 0, nil
		}
	}

	filteredFirstSample := !times[0].Equal(firstTimeBeforeFilter)
	begin := times[0]
	end := times[len(times)-1]

	// Step 9: validate times.
	if begin.Before(ctx.MinValidTime) {
		err := dberr.New(dberr.MinTime,
			"storage.StoreDataset: %s begin time %v is before the configured minimum valid time", ds.Name, begin.GoTime())
		ctx.Fail(err)
		return 0, err
	}
	if end.After(model.FromGoTime(ctx.Now())) {
		err := dberr.New(dberr.FutureTime,
			"storage.StoreDataset: %s end time %v is in the future", ds.Name, end.GoTime())
		ctx.Fail(err)
		return 0, err
	}

	// Step 10: midnight-aligned base_time adjustment.
	if filteredFirstSample {
		adjustBaseTimeForFilteredFirstSample(g, longName, begin)
	}

	// Step 11: locate the target file.
	var target *fileEntry
	if !newFile && ds.Split.Mode != datastream.SplitOnStore {
		target, err = locateTargetFile(ds, begin)
		if err != nil {
			return 0, err
		}
		if target != nil {
			ok, err := targetStillUsable(ctx, ds, target, begin, g)
			if err != nil {
				return 0, err
			}
			if !ok {
				target = nil
			}
		}
	}

	// Steps 12/13: iterate split intervals, writing each slice.
	stored, err := writeSplitIntervals(ds, g, times, target, longName)
	if err != nil {
		return 0, err
	}

	ds.InvalidateDirCache()
	return stored, nil
}

// dedupInPlace implements step 2: drop a sample whose time
// equals the previous surviving sample's time and whose data is
// bytewise identical to it; if the times match but the data differs,
// fail duplicate_time_mismatch. Returns the surviving sample times.
func dedupInPlace(ctx *procctx.Context, g *model.Group, times []model.Time) ([]model.Time, error) {
	keep := make([]int, 0, len(times))
	keepTimes := make([]model.Time, 0, len(times))
	for i, t := range times {
		if len(keep) > 0 && t.Equal(keepTimes[len(keepTimes)-1]) {
			prevIdx := keep[len(keep)-1]
			if !samplesIdentical(g, prevIdx, g, i) {
				err := dberr.New(dberr.DuplicateTimeMismatch,
					"storage.dedupInPlace: sample at %v duplicates a previous sample's time with different data", t.GoTime())
				ctx.Fail(err)
				return nil, err
			}
			continue // drop: exact duplicate
		}
		keep = append(keep, i)
		keepTimes = append(keepTimes, t)
	}
	if len(keep) != len(times) {
		keepSamplesInGroup(g, keep)
	}
	return keepTimes, nil
}

// samplesIdentical reports whether every time-varying variable common to
// a and b holds identical values at sample indices i and j respectively.
func samplesIdentical(a *model.Group, i int, b *model.Group, j int) bool {
	for _, v := range a.Variables() {
		if !v.IsTimeVarying() {
			continue
		}
		ov, ok := b.Variable(v.Name)
		if !ok {
			continue
		}
		if !v.SampleEqual(i, ov, j) {
			return false
		}
	}
	return true
}

// keepSamplesInGroup rewrites every time-varying variable in g to retain
// only the samples at the given indices (used by dedup and the stored-data
// filter, both of which need to drop a non-contiguous subset).
func keepSamplesInGroup(g *model.Group, indices []int) {
	for _, v := range g.Variables() {
		if v.IsTimeVarying() {
			v.KeepSamples(indices)
		}
	}
}

// setCellBounds is a placeholder for bounds-variable population; see
// DESIGN.md for why this is a no-op in the current variable-mapper/
// transform pipeline (no component yet produces cell boundary data to
// populate here).
func setCellBounds(g *model.Group) {}

const maxFinite = 1.7976931348623157e+308

func isNaNOrInf(x float64) bool {
	return x != x || x > maxFinite || x < -maxFinite
}

// filterNaNs implements step 4: replace NaN/Inf float/double
// values with the variable's declared missing value, failing
// missing_required_var if a variable holding a non-finite value has no
// missing_value/_FillValue attribute to replace it with.
func filterNaNs(g *model.Group) error {
	for _, v := range g.Variables() {
		if v.Type != model.Float && v.Type != model.Double {
			continue
		}
		n := v.Len()
		var missing float64
		var haveMissing bool
		for i := 0; i < n; i++ {
			x := v.Float64At(i)
			if !isNaNOrInf(x) {
				continue
			}
			if !haveMissing {
				missing, haveMissing = v.MissingValue()
				if !haveMissing {
					return dberr.New(dberr.MissingRequiredVar,
						"storage.filterNaNs: variable %q has NaN/Inf values but no missing_value/_FillValue attribute", v.Name)
				}
			}
			v.SetFloat64At(i, missing)
		}
	}
	return nil
}

// adjustBaseTimeForFilteredFirstSample implements step 10:
// if the existing base_time was midnight-aligned, re-align it to the new
// first sample's midnight. Errors are swallowed: a group without a
// midnight-aligned base_time concept (or none at all) simply has nothing
// to adjust.
func adjustBaseTimeForFilteredFirstSample(g *model.Group, longName string, newBegin model.Time) {
	base, err := g.BaseEpoch()
	if err != nil {
		return
	}
	baseTime := model.FromGoTime(base)
	if !isMidnight(baseTime) {
		return
	}
	newMidnight := midnightOf(newBegin)
	if newMidnight.Equal(baseTime) {
		return
	}
	_ = g.SetBaseTime(longName, newMidnight.GoTime())
}

func isMidnight(t model.Time) bool { return t.Equal(midnightOf(t)) }

func midnightOf(t model.Time) model.Time {
	gt := t.GoTime()
	return model.FromGoTime(time.Date(gt.Year(), gt.Month(), gt.Day(), 0, 0, 0, 0, time.UTC))
}

// fileEntry names one existing file of a datastream's directory: its
// name, full path, and the begin time encoded in its canonical name.
type fileEntry struct {
	name  string
	path  string
	begin model.Time
}

var canonicalStampRE = regexp.MustCompile(`\.(\d{8})\.(\d{6})\.`)

// parseCanonicalStamp extracts the begin time encoded in a canonical
// "{dsName}.YYYYMMDD.hhmmss.{ext}" file name.
func parseCanonicalStamp(name string) (model.Time, bool) {
	m := canonicalStampRE.FindStringSubmatch(name)
	if m == nil {
		return model.Time{}, false
	}
	ymd, hms := m[1], m[2]
	year, _ := strconv.Atoi(ymd[0:4])
	month, _ := strconv.Atoi(ymd[4:6])
	day, _ := strconv.Atoi(ymd[6:8])
	hour, _ := strconv.Atoi(hms[0:2])
	minute, _ := strconv.Atoi(hms[2:4])
	sec, _ := strconv.Atoi(hms[4:6])
	gt := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	return model.FromGoTime(gt), true
}

// listStreamFiles returns ds's canonically named files, sorted by their
// encoded begin time.
func listStreamFiles(ds *datastream.Datastream) ([]fileEntry, error) {
	names, err := ds.DirList()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dberr.Wrap(dberr.IOAccess, err, "storage.listStreamFiles: could not list %q", ds.Dir)
	}
	var out []fileEntry
	prefix := ds.Name + "."
	for _, n := range names {
		if len(n) <= len(prefix) || n[:len(prefix)] != prefix {
			continue
		}
		begin, ok := parseCanonicalStamp(n)
		if !ok {
			continue
		}
		out = append(out, fileEntry{name: n, path: filepath.Join(ds.Dir, n), begin: begin})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].begin.Before(out[j].begin) })
	return out, nil
}

// lastIndexBefore returns the index of the last file entry whose begin
// time is <= t, or -1 if none.
func lastIndexBefore(files []fileEntry, t model.Time) int {
	idx := -1
	for i, f := range files {
		if !f.begin.After(t) {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// locateTargetFile implements step 11's file-selection
// rule: the file whose time range contains begin, or the one immediately
// preceding it. (Async mode's "most recently updated file this process
// created" variant is covered by callers tracking ds.Files themselves;
// see DESIGN.md.)
func locateTargetFile(ds *datastream.Datastream, begin model.Time) (*fileEntry, error) {
	files, err := listStreamFiles(ds)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	if idx := lastIndexBefore(files, begin); idx >= 0 {
		return &files[idx], nil
	}
	return nil, nil
}

// targetStillUsable applies the remaining step-11 rejection rules once a
// candidate target file has been located: time-order violation, a split
// boundary between the file and begin, and a DOD metadata mismatch.
func targetStillUsable(ctx *procctx.Context, ds *datastream.Datastream, target *fileEntry, begin model.Time, batch *model.Group) (bool, error) {
	fg, err := ncio.ReadGroup(target.path)
	if err != nil {
		return false, dberr.Wrap(dberr.IOAccess, err, "storage.targetStillUsable: could not read %q", target.path)
	}
	fileEnd, err := lastSampleTime(fg)
	if err != nil {
		return false, err
	}

	if !begin.After(fileEnd) {
		err := dberr.New(dberr.TimeOrderViolation,
			"storage.targetStillUsable: %s begin time %v does not come after file %q's last stored time %v",
			ds.Name, begin.GoTime(), target.name, fileEnd.GoTime())
		ctx.Fail(err)
		return false, err
	}

	if ds.Split.Mode != datastream.SplitNone && splitBoundaryBetween(ds.Split, fileEnd, begin) {
		return false, nil
	}

	if !fg.StructurallyCompatible(batch) {
		if ctx.Log != nil {
			ctx.Log.WithField("datastream", ds.Name).Warn("storage: forcing file split, DOD metadata changed")
		}
		return false, nil
	}

	return true, nil
}

// lastSampleTime returns the time of g's last stored sample.
func lastSampleTime(g *model.Group) (model.Time, error) {
	tv, _, err := g.FindTimeVariable()
	if err != nil {
		return model.Time{}, err
	}
	n := tv.SampleCount()
	if n == 0 {
		return model.Time{}, dberr.New(dberr.NoSuchName, "storage.lastSampleTime: group %q has no stored samples", g.Name)
	}
	times, err := g.GetSampleTimevals(n-1, 1)
	if err != nil {
		return model.Time{}, err
	}
	return times[0], nil
}

// firstSampleTime returns the time of g's first stored sample.
func firstSampleTime(g *model.Group) (model.Time, error) {
	times, err := g.GetSampleTimevals(0, 1)
	if err != nil {
		return model.Time{}, err
	}
	if len(times) == 0 {
		return model.Time{}, dberr.New(dberr.NoSuchName, "storage.firstSampleTime: group %q has no stored samples", g.Name)
	}
	return times[0], nil
}

// filterAgainstStored implements step 8: drop batch samples
// older than the most recent stored file's first time; for any batch
// sample whose time exactly matches a stored sample's time, require
// bytewise-identical data or fail overlap_with_stored.
func filterAgainstStored(ctx *procctx.Context, g *model.Group, ds *datastream.Datastream, times []model.Time) ([]model.Time, error) {
	files, err := listStreamFiles(ds)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return times, nil
	}
	last := &files[len(files)-1]
	fg, err := ncio.ReadGroup(last.path)
	if err != nil {
		return nil, dberr.Wrap(dberr.IOAccess, err, "storage.filterAgainstStored: could not read %q", last.path)
	}
	fileFirst, err := firstSampleTime(fg)
	if err != nil {
		return nil, err
	}
	fileLast, err := lastSampleTime(fg)
	if err != nil {
		return nil, err
	}
	ftv, _, err := fg.FindTimeVariable()
	if err != nil {
		return nil, err
	}
	fileTimes, err := fg.GetSampleTimevals(0, ftv.SampleCount())
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, len(times))
	for i, t := range times {
		if t.After(fileLast) {
			keep = append(keep, i)
			continue
		}
		if t.Before(fileFirst) {
			continue // older than anything on disk: silently drop
		}
		// t falls within the stored file's range: find the matching
		// stored sample, if any, and require identical data.
		j := indexOfTime(fileTimes, t)
		if j < 0 {
			continue // a gap within the file's range: drop, nothing to compare
		}
		if !samplesIdentical(g, i, fg, j) {
			err := dberr.New(dberr.OverlapWithStored,
				"storage.filterAgainstStored: sample at %v overlaps stored file %q with different data", t.GoTime(), last.name)
			ctx.Fail(err)
			return nil, err
		}
	}
	if len(keep) != len(times) {
		keepSamplesInGroup(g, keep)
	}
	out := make([]model.Time, len(keep))
	for i, idx := range keep {
		out[i] = times[idx]
	}
	return out, nil
}

func indexOfTime(times []model.Time, t model.Time) int {
	for i, x := range times {
		if x.Equal(t) {
			return i
		}
	}
	return -1
}

// writeSplitIntervals implements steps 12-13: walk the
// batch's samples in split-sized slices, appending the first slice to
// target (if given) and creating a new file for every subsequent slice.
func writeSplitIntervals(ds *datastream.Datastream, g *model.Group, times []model.Time, target *fileEntry, longName string) (int, error) {
	stored := 0
	si := 0
	first := true
	for si < len(times) {
		ei := len(times) - 1
		if ds.Split.Mode != datastream.SplitOnStore && ds.Split.Mode != datastream.SplitNone {
			boundary := nextSplitTime(ds.Split, times[si])
			for k := si; k < len(times); k++ {
				if !times[k].Before(boundary) {
					ei = k - 1
					break
				}
			}
		}
		if ei < si {
			ei = si
		}

		var err error
		if first && target != nil {
			err = appendToTarget(ds, g, target, si, ei+1)
		} else {
			if si != 0 {
				midnight := midnightOf(times[si])
				_ = g.SetBaseTime(longName, midnight.GoTime())
			}
			err = createSliceFile(ds, g, times, si, ei+1)
		}
		if err != nil {
			return stored, err
		}
		stored += ei + 1 - si
		first = false
		si = ei + 1
	}
	return stored, nil
}

// appendToTarget writes samples [from,to) of g onto target's existing
// file by reading the file back, appending the slice to its in-memory
// group, and calling ncio.AppendRecords from its prior sample count.
func appendToTarget(ds *datastream.Datastream, g *model.Group, target *fileEntry, from, to int) error {
	fg, err := ncio.ReadGroup(target.path)
	if err != nil {
		return dberr.Wrap(dberr.IOAccess, err, "storage.appendToTarget: could not read %q", target.path)
	}
	start := 0
	for _, v := range fg.Variables() {
		if v.IsTimeVarying() {
			start = v.SampleCount()
			break
		}
	}
	for _, v := range g.Variables() {
		if !v.IsTimeVarying() {
			continue
		}
		fv, ok := fg.Variable(v.Name)
		if !ok {
			continue
		}
		n := to - from
		if err := fv.AppendSamples(v.SliceSamples(from, to), n); err != nil {
			return err
		}
	}
	if err := ncio.AppendRecords(target.path, fg, start); err != nil {
		return dberr.Wrap(dberr.IOWrite, err, "storage.appendToTarget: could not append to %q", target.path)
	}
	ds.RecordUpdatedFile(target.name)
	return nil
}

// createSliceFile writes samples [from,to) of g out as a brand-new file
// named "{ds.dir}/{ds.name}.{YYYYMMDD.hhmmss of first sample}.{ext}".
func createSliceFile(ds *datastream.Datastream, g *model.Group, times []model.Time, from, to int) error {
	stamp := times[from].GoTime().Format("20060102.150405")
	name := fmt.Sprintf("%s.%s.%s", ds.Name, stamp, ds.Extension)
	path := filepath.Join(ds.Dir, name)

	slice := sliceGroup(g, from, to)
	if err := ncio.WriteNew(path, slice); err != nil {
		return dberr.Wrap(dberr.IOWrite, err, "storage.createSliceFile: could not write %q", path)
	}
	ds.RecordUpdatedFile(name)
	return nil
}

// sliceGroup builds a shallow clone of g restricted to samples [from,to)
// for every time-varying variable, suitable for a one-shot WriteNew.
func sliceGroup(g *model.Group, from, to int) *model.Group {
	out := model.NewGroup(g.Name)
	for _, d := range g.Dimensions() {
		length := d.Length
		if d.IsUnlimited {
			length = to - from
		}
		out.DefineDimension(d.Name, length, d.IsUnlimited)
	}
	for _, a := range g.Attributes() {
		out.SetAttribute(a.Name, a.Type, a.Value)
	}
	for _, v := range g.Variables() {
		nv, err := out.DefineVariable(v.Name, v.Type, v.DimNames())
		if err != nil {
			continue
		}
		for _, a := range v.Attributes() {
			nv.SetAttribute(a.Name, a.Type, a.Value)
		}
		if v.IsTimeVarying() {
			nv.AppendSamples(v.SliceSamples(from, to), to-from)
		} else {
			nv.AppendSamples(v.SliceSamples(0, v.SampleCount()), v.SampleCount())
		}
	}
	return out
}

func wrapIOOpen(path string, err error) error {
	return dberr.Wrap(dberr.IOOpen, err, "storage: could not open %q", path)
}

func wrapIOWrite(path string, err error) error {
	return dberr.Wrap(dberr.IOWrite, err, "storage: could not write %q", path)
}
