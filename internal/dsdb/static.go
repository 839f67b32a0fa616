package dsdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/lnashier/viper"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// StaticStore is a file-backed DODProvider/RetrievalPlanProvider/
// LocationProvider/WatermarkStore/DQRStore/DisableRecorder suitable for
// standalone operation, tests, and dynamic-DOD deployments that have no
// real metadata database. DOD/retrieval-plan/location definitions are
// loaded once from a viper-readable config file (github.com/lnashier/
// viper); watermarks, DQRs, and disable reasons are held in memory and
// are lost across process restarts unless the caller persists them some
// other way, which is what the degraded --disable-db-updates mode is
// for.
type StaticStore struct {
	v *viper.Viper

	mu         sync.Mutex
	watermarks map[StreamKey]model.Time
	dqrs       map[StreamKey][]DQR
	disabled   map[StreamKey]string
}

// LoadStaticStore reads a DOD/retrieval-plan/location config file at
// path (any viper-supported format: YAML, JSON, TOML). See
// internal/dsdb/static_test.go for the expected shape.
func LoadStaticStore(path string) (*StaticStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, dberr.New(dberr.IOAccess, "dsdb.LoadStaticStore: reading %s: %v", path, err)
	}
	return NewStaticStore(v), nil
}

// NewStaticStore wraps an already-populated viper instance, letting
// callers build one programmatically (e.g. from flags) instead of from a
// file on disk.
func NewStaticStore(v *viper.Viper) *StaticStore {
	return &StaticStore{
		v:          v,
		watermarks: make(map[StreamKey]model.Time),
		dqrs:       make(map[StreamKey][]DQR),
		disabled:   make(map[StreamKey]string),
	}
}

// DOD implements DODProvider by reading "dods.<class>.<level>" from the
// config file: a "version" string and a "variables" list of
// {name, type, dims, attributes}.
func (s *StaticStore) DOD(class, level string) (DOD, error) {
	key := fmt.Sprintf("dods.%s.%s", class, level)
	if !s.v.IsSet(key) {
		return DOD{}, dberr.New(dberr.NoDOD, "dsdb.StaticStore.DOD: no DOD configured for %s.%s", class, level)
	}
	version := s.v.GetString(key + ".version")
	g := model.NewGroup(class + "." + level)

	rawVars, _ := s.v.Get(key + ".variables").([]interface{})
	for _, rv := range rawVars {
		spec, ok := rv.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := spec["name"].(string)
		typeName, _ := spec["type"].(string)
		dtype, err := parseDataType(typeName)
		if err != nil {
			return DOD{}, dberr.New(dberr.NoDOD, "dsdb.StaticStore.DOD: %s.%s variable %q: %v", class, level, name, err)
		}
		dimNames := stringSlice(spec["dims"])
		vr, err := g.DefineVariable(name, dtype, dimNames)
		if err != nil {
			return DOD{}, err
		}
		if atts, ok := spec["attributes"].(map[string]interface{}); ok {
			for attName, attVal := range atts {
				if err := vr.SetAttribute(attName, model.Char, fmt.Sprintf("%v", attVal)); err != nil {
					return DOD{}, err
				}
			}
		}
	}
	return DOD{Version: version, Group: g}, nil
}

func parseDataType(name string) (model.DataType, error) {
	switch name {
	case "byte":
		return model.Byte, nil
	case "char":
		return model.Char, nil
	case "short":
		return model.Short, nil
	case "int":
		return model.Int, nil
	case "float":
		return model.Float, nil
	case "double":
		return model.Double, nil
	default:
		return 0, fmt.Errorf("unknown DOD variable type %q", name)
	}
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Plan implements RetrievalPlanProvider by checking that
// "plans.<processName>" is set; the returned RetrievalPlan carries only
// ProcessName, and no other plan fields are read from the config.
func (s *StaticStore) Plan(processName string) (RetrievalPlan, error) {
	key := "plans." + processName
	if !s.v.IsSet(key) {
		return RetrievalPlan{}, dberr.New(dberr.NoDOD, "dsdb.StaticStore.Plan: no retrieval plan configured for %q", processName)
	}
	return RetrievalPlan{ProcessName: processName}, nil
}

// Location implements LocationProvider by reading "locations.<site><facility>".
func (s *StaticStore) Location(site, facility string) (Location, error) {
	key := "locations." + site + facility
	if !s.v.IsSet(key) {
		return Location{}, dberr.New(dberr.NoDOD, "dsdb.StaticStore.Location: no location configured for %s%s", site, facility)
	}
	return Location{
		Name:      s.v.GetString(key + ".name"),
		LatDeg:    s.v.GetFloat64(key + ".lat"),
		LonDeg:    s.v.GetFloat64(key + ".lon"),
		AltMeters: s.v.GetFloat64(key + ".alt"),
	}, nil
}

// Watermark implements WatermarkStore, in memory only.
func (s *StaticStore) Watermark(key StreamKey) (model.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.watermarks[key]
	return t, ok, nil
}

// SetWatermark implements WatermarkStore, in memory only.
func (s *StaticStore) SetWatermark(key StreamKey, t model.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[key] = t
	return nil
}

// DQRs implements DQRStore by returning whatever has been loaded via
// LoadDQRs; the static store carries no built-in DQR database.
func (s *StaticStore) DQRs(key StreamKey, varName string) ([]DQR, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DQR(nil), s.dqrs[dqrKey(key, varName)]...), nil
}

// LoadDQRs lets a caller seed per-variable DQR records (e.g. parsed from
// an external feed at startup) into the in-memory store.
func (s *StaticStore) LoadDQRs(key StreamKey, varName string, records []DQR) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dqrs[dqrKey(key, varName)] = records
}

func dqrKey(key StreamKey, varName string) StreamKey {
	k := key
	k.Level = k.Level + "#" + varName
	return k
}

// RecordDisable implements DisableRecorder, in memory only.
func (s *StaticStore) RecordDisable(key StreamKey, reason string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[key] = reason
	return nil
}

// DisableReason returns a previously recorded disable reason for key, if
// any.
func (s *StaticStore) DisableReason(key StreamKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.disabled[key]
	return r, ok
}
