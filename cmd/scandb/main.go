package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scandb/scandb/internal/config"
	"github.com/scandb/scandb/internal/logging"
)

var (
	v       = config.New()
	cfg     config.Config
	logs    = logging.Discard()
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "scandb",
	Short: "Barcode scan deduplication into a local SQLite store",
	Long: `scandb records decoded barcode payloads in a local SQLite database,
keeping each code once.

Codes arrive from a capture source: a keyboard-wedge or serial scanner on
stdin, an external decoder such as zbarcam, or an inbox directory. Every
accepted scan beeps, is checked against the store, and pauses capture for
the dwell interval before the next one is taken.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		used, err := config.ReadFile(v, cfgFile)
		if err != nil {
			return err
		}

		cfg, err = config.Load(v)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logs, err = logging.Open(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Verbose:    cfg.Log.Verbose,
		})
		if err != nil {
			return err
		}
		if used != "" {
			logs.For("config").Printf("Using config file %s", used)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logs.Close()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "scan", Title: "Scanning:"},
		&cobra.Group{ID: "store", Title: "Code store:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default <data-dir>/scandb.toml)")
	flags.String("data-dir", config.DefaultDataDir(), "Directory holding the database and logs")
	flags.BoolP("verbose", "v", false, "Mirror log output to stderr")

	bindFlag(flags, "data-dir", config.KeyDataDir)
	bindFlag(flags, "verbose", config.KeyVerbose)
}

// bindFlag makes a set flag the highest-precedence source for key.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
