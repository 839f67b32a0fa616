// Package ingestcli implements the ingest command's command-line surface:
// flag/environment binding for one run's configuration, wired to the
// CSV-ingest pipeline in internal/storage.
package ingestcli

import (
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds the parsed configuration for one ingest run, embedding a
// *viper.Viper so settings resolve in precedence order across flags,
// environment variables, and an optional config file.
type Cfg struct {
	*viper.Viper

	Root *cobra.Command
}

// option describes one bindable setting: its pflag registration and,
// for the bare environment-variable settings lists without a
// corresponding flag, the literal (unprefixed) env var name to bind.
type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	envVar                 string // bound literally, bypassing the INGEST_ prefix
}

// InitializeConfig builds the Root command and binds every flag and
// environment variable name declared in the options slice below.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "ingest",
		Short: "Ingest raw CSV observations into an archived datastream.",
		Long: `ingest reads a raw delimited input file, stores it as the configured
output datastream (netCDF-3 or CSV), and renames the raw file into the
datastream's .done directory.

Configuration can be set by flag, by a --config file, or by environment
variable in the form 'INGEST_var'. The six data-location variables
(DATASTREAM_DATA, LOGS_DATA, CONF_DATA, DB_CONNECT_FILE, PROC_INTERVAL,
DATA_HOME) are read without that prefix, matching convention.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := Run(cfg)
			if err != nil {
				return err
			}
			if result.Disabled {
				cmd.Printf("ingest: auto-disabled: %s\n", result.DisableReason)
				return nil
			}
			cmd.Printf("ingest: stored %d samples into %s; raw file renamed to %s\n",
				result.SamplesStored, result.OutputPath, result.RenamedRaw)
			return nil
		},
	}

	flags := cfg.Root.PersistentFlags()

	options := []option{
		{name: "config", usage: "path to a configuration file (any viper-readable format)", defaultVal: ""},
		{name: "site", usage: "site code", shorthand: "s", defaultVal: ""},
		{name: "facility", usage: "facility code", shorthand: "f", defaultVal: ""},
		{name: "process_name", usage: "process name", shorthand: "n", defaultVal: ""},
		{name: "begin", usage: "processing interval begin[:end], YYYYMMDD[.hhmmss]", shorthand: "a", defaultVal: ""},
		{name: "force", usage: "force mode: downgrade non-fatal errors to a skip-and-continue", shorthand: "F", defaultVal: false},
		{name: "reprocessing", usage: "reprocessing mode: skip the stored-overlap fatal check", shorthand: "R", defaultVal: false},
		{name: "debug", usage: "debug verbosity level", shorthand: "D", defaultVal: 0},
		{name: "provenance", usage: "enable provenance logging", shorthand: "P", defaultVal: false},
		{name: "dynamic_dods", usage: "allow datastream classes with no DOD on file", defaultVal: false},
		{name: "disable_db_updates", usage: "skip persisting the watermark/DQR/disable state", defaultVal: false},
		{name: "output_interval", usage: "output file split policy spec (see internal/datastream)", defaultVal: ""},
		{name: "input", usage: "path to the raw input file to ingest", defaultVal: ""},
		{name: "datastream_root", usage: "root directory under which datastream directories are created", defaultVal: "."},
		{name: "output_class", usage: "output datastream class (defaults to process_name)", defaultVal: ""},
		{name: "output_level", usage: "output datastream level (defaults to a1)", defaultVal: ""},
		{name: "time_column", usage: "header field holding each record's timestamp", defaultVal: "time"},

		{name: "datastream_data", usage: "root of the datastream archive tree", defaultVal: "", envVar: "DATASTREAM_DATA"},
		{name: "logs_data", usage: "root of the per-run log tree", defaultVal: "", envVar: "LOGS_DATA"},
		{name: "conf_data", usage: "root of the static configuration tree", defaultVal: "", envVar: "CONF_DATA"},
		{name: "db_connect_file", usage: "path to the database connection file", defaultVal: "", envVar: "DB_CONNECT_FILE"},
		{name: "proc_interval", usage: "configured processing cadence", defaultVal: "", envVar: "PROC_INTERVAL"},
		{name: "data_home", usage: "root data directory", defaultVal: "", envVar: "DATA_HOME"},
	}

	cfg.SetEnvPrefix("INGEST")
	cfg.AutomaticEnv()

	for _, opt := range options {
		registerFlag(flags, opt)
		cfg.BindPFlag(opt.name, flags.Lookup(opt.name))
		if opt.envVar != "" {
			cfg.BindEnv(opt.name, opt.envVar)
		}
	}

	return cfg
}

// registerFlag registers one option on set, dispatching on the Go type
// of its default value.
func registerFlag(set *pflag.FlagSet, opt option) {
	switch v := opt.defaultVal.(type) {
	case string:
		if opt.shorthand == "" {
			set.String(opt.name, v, opt.usage)
		} else {
			set.StringP(opt.name, opt.shorthand, v, opt.usage)
		}
	case bool:
		if opt.shorthand == "" {
			set.Bool(opt.name, v, opt.usage)
		} else {
			set.BoolP(opt.name, opt.shorthand, v, opt.usage)
		}
	case int:
		if opt.shorthand == "" {
			set.Int(opt.name, v, opt.usage)
		} else {
			set.IntP(opt.name, opt.shorthand, v, opt.usage)
		}
	default:
		panic(fmt.Errorf("ingest.registerFlag: unsupported default value type %T for %q", opt.defaultVal, opt.name))
	}
}

// setConfig reads the --config file into viper, if one was given.
func setConfig(cfg *Cfg) error {
	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("ingest: problem reading configuration file: %v", err)
		}
	}
	return nil
}
