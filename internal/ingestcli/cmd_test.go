package ingestcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfigBindsFlags(t *testing.T) {
	cfg := InitializeConfig()
	require.NotNil(t, cfg.Root)

	err := cfg.Root.ParseFlags([]string{
		"-s", "sgp",
		"-f", "E13",
		"-n", "met_ingest",
		"-a", "20200115:20200116",
		"-F",
		"-D", "2",
	})
	require.NoError(t, err)

	assert.Equal(t, "sgp", cfg.GetString("site"))
	assert.Equal(t, "E13", cfg.GetString("facility"))
	assert.Equal(t, "met_ingest", cfg.GetString("process_name"))
	assert.Equal(t, "20200115:20200116", cfg.GetString("begin"))
	assert.True(t, cfg.GetBool("force"))
	assert.Equal(t, 2, cfg.GetInt("debug"))
}

func TestInitializeConfigDefaults(t *testing.T) {
	cfg := InitializeConfig()
	assert.Equal(t, "a1", defaultOr(cfg.GetString("output_level"), "a1"))
	assert.False(t, cfg.GetBool("dynamic_dods"))
	assert.False(t, cfg.GetBool("disable_db_updates"))
	assert.Equal(t, "time", cfg.GetString("time_column"))
}

func defaultOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func TestEnvVarBindingUsesUnprefixedNames(t *testing.T) {
	t.Setenv("DATASTREAM_DATA", "/data/archive")
	cfg := InitializeConfig()
	assert.Equal(t, "/data/archive", cfg.GetString("datastream_data"))
}
