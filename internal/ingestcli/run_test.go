package ingestcli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeIngestInput writes a basic scenario's CSV input: 10 rows at
// 1-second spacing beginning 2020-01-15T00:00:00Z.
func writeIngestInput(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("time,temp,rh\n")
	require.NoError(t, err)
	const base = 1579046400
	for i := 0; i < 10; i++ {
		_, err = fmt.Fprintf(f, "%d,%d.0,50\n", base+i, 20+i)
		require.NoError(t, err)
	}
}

func newTestCfg(t *testing.T) *Cfg {
	t.Helper()
	cfg := InitializeConfig()
	cfg.Set("site", "sgp")
	cfg.Set("facility", "E13")
	cfg.Set("process_name", "abc")
	cfg.Set("output_level", "a1")
	cfg.Set("columns", []map[string]string{
		{"header": "temp", "var": "temp", "type": "float", "units": "degC"},
		{"header": "rh", "var": "rh", "type": "float", "units": "%"},
	})
	return cfg
}

func TestRunIngestsCSVAndRenamesRawFile(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "abc.20200115.000000.csv")
	writeIngestInput(t, inputPath)

	cfg := newTestCfg(t)
	cfg.Set("input", inputPath)
	cfg.Set("datastream_root", dir)

	result, err := Run(cfg)
	require.NoError(t, err)
	require.False(t, result.Disabled)
	require.Equal(t, 10, result.SamplesStored)
	require.NotEmpty(t, result.RenamedRaw)

	_, statErr := os.Stat(inputPath)
	require.True(t, os.IsNotExist(statErr), "raw input should have been moved into the datastream directory")

	_, statErr = os.Stat(result.RenamedRaw)
	require.NoError(t, statErr, "renamed raw file should exist at the reported path")

	entries, err := os.ReadDir(filepath.Join(dir, "sgpabcE13.a1"))
	require.NoError(t, err)
	var sawNC bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".nc" {
			sawNC = true
		}
	}
	require.True(t, sawNC, "expected a netCDF output file in the datastream directory")
}

func TestRunRequiresInputFlag(t *testing.T) {
	cfg := newTestCfg(t)
	_, err := Run(cfg)
	require.Error(t, err)
}

func TestRunRequiresColumnsConfig(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "abc.20200115.000000.csv")
	writeIngestInput(t, inputPath)

	cfg := InitializeConfig()
	cfg.Set("site", "sgp")
	cfg.Set("facility", "E13")
	cfg.Set("process_name", "abc")
	cfg.Set("input", inputPath)
	cfg.Set("datastream_root", dir)

	_, err := Run(cfg)
	require.Error(t, err)
}
