package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/dfops/internal/config"
	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/logging"
)

var (
	// Global flags (override config if set)
	cfgFile       string
	debug         bool
	flagFormat    string
	flagDelimiter string
	flagDecimal   string
	flagSheet     string
	flagSheetIdx  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// cfgErr is the load failure reported by commands that need config.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "dfops",
	Short: "dfops: compare, merge and analyze tabular datasets",
	Long: `dfops runs dataset operations over CSV, TSV and XLSX files: compare,
merge, profile, schema validation, aggregation, anomaly detection, data
quality scoring, pivot and correlation. Every operation is also served over
HTTP by "dfops serve".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", describeError(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	// Persistent global flags available to all subcommands
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ~/.dfops/config.yaml)")
	f.BoolVar(&debug, "debug", false, "enable debug logging")
	f.StringVar(&flagFormat, "format", "", "output format: json, yaml or markdown (overrides config)")
	f.StringVar(&flagDelimiter, "delimiter", "", "CSV delimiter, e.g. ';' or tab (default: tab for .tsv, else comma)")
	f.StringVar(&flagDecimal, "decimal", "", "decimal separator: '.' or comma")
	f.StringVar(&flagSheet, "sheet", "", "XLSX sheet name (see \"dfops sheets\")")
	f.IntVar(&flagSheetIdx, "sheet-index", 0, "XLSX sheet index, 1-based")
}

func loadConfig() {
	cfg, cfgErr = nil, nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		cfgErr = err
		return
	}

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("format") {
		c.OutputFormat = strings.ToLower(flagFormat)
	}
	if f.Changed("delimiter") {
		c.Delimiter = flagDelimiter
	}
	if f.Changed("decimal") {
		c.DecimalSeparator = flagDecimal
	}
	if debug {
		c.LogLevel = "debug"
	}
	if err := c.Validate(); err != nil {
		cfgErr = err
		return
	}
	cfg = c
	logging.Setup(cfg.LogLevel, cfg.LogFormat, nil)
}

// requireConfig returns the loaded config or the reason it failed to load.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("load config: %w", cfgErr)
		}
		return nil, fmt.Errorf("no config loaded")
	}
	return cfg, nil
}

// loadOptions builds dataset load options from config and sheet flags.
func loadOptions(c *cfgpkg.Global) (dataset.LoadOptions, error) {
	opt := dataset.DefaultLoadOptions()
	d, err := cfgpkg.ParseRune("delimiter", c.Delimiter)
	if err != nil {
		return opt, err
	}
	dec, err := cfgpkg.ParseRune("decimal_separator", c.DecimalSeparator)
	if err != nil {
		return opt, err
	}
	switch dec {
	case 0, '.', ',':
	default:
		return opt, fmt.Errorf("unsupported decimal separator %q (use '.' or comma)", dec)
	}
	opt.Delimiter = d
	if dec == ',' {
		opt.DecimalSeparator = dec
	}
	opt.NullValues = c.NullValues
	opt.SheetName = flagSheet
	opt.SheetIndex = flagSheetIdx
	return opt, nil
}

// describeError renders engine errors as "kind: message".
func describeError(err error) string {
	k := dataset.KindOf(err)
	if k == dataset.KindInternal {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", k, dataset.Message(err))
}
