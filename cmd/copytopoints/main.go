package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"copytopoints/internal/config"
	"copytopoints/internal/geo"
	"copytopoints/internal/geoio"
	"copytopoints/internal/instance"
	"copytopoints/internal/logging"
	"copytopoints/internal/metrics"
)

var (
	configFile  string
	flags       config.Flags
	dumpMetrics bool
)

var rootCmd = &cobra.Command{
	Use:           "copytopoints",
	Short:         "Instance source geometry onto target points",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var cookCmd = &cobra.Command{
	Use:   "cook",
	Short: "Cook one source/target pair into an output document",
	Args:  cobra.NoArgs,
	RunE:  runCook,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to a YAML config file")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error (default: info)")
	pf.StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json (default: text)")
	pf.BoolVar(&dumpMetrics, "metrics", false, "Print metrics to stdout when done")

	for _, c := range []*cobra.Command{cookCmd, watchCmd} {
		f := c.Flags()
		f.StringVar(&flags.Source, "source", "", "Source document")
		f.StringVar(&flags.Target, "target", "", "Target points document")
		f.StringVar(&flags.Output, "output", "", "Output document")
		f.BoolVar(&flags.Pack, "pack", false, "Emit one packed primitive per target point")
	}
	batchCmd.Flags().IntVar(&flags.Workers, "workers", 0, "Number of worker goroutines (default: NumCPU)")

	rootCmd.AddCommand(cookCmd, watchCmd, batchCmd, packedCmd, resetAttribsCmd)
}

// loadConfig reads --config when given, applies the flags and sets up
// logging.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return cfg, err
		}
	}
	cfg.Resolve(flags)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return cfg, err
	}
	logging.Set(logger)
	return cfg, nil
}

func requirePaths(cfg config.Config) error {
	if cfg.Source == "" || cfg.Target == "" || cfg.Output == "" {
		return fmt.Errorf("source, target and output are required")
	}
	return nil
}

func runCook(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requirePaths(cfg); err != nil {
		return err
	}
	p, err := cfg.Params.ToInstance()
	if err != nil {
		return err
	}

	src, err := geoio.ReadFile(cfg.Source)
	if err != nil {
		return err
	}
	target, err := geoio.ReadFile(cfg.Target)
	if err != nil {
		return err
	}

	start := time.Now()
	out := geo.New()
	res, err := instance.New().Cook(out, src, target, p)
	printWarnings(res.Warnings)
	if err != nil {
		return err
	}
	if err := geoio.WriteFile(cfg.Output, out); err != nil {
		return err
	}

	fmt.Printf("Cooked %d copies in %v: %d points, %d primitives -> %s\n",
		res.Copies, time.Since(start).Round(time.Millisecond), out.NumPoints(), out.NumPrimitives(), cfg.Output)
	return writeMetrics()
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}

func writeMetrics() error {
	if !dumpMetrics {
		return nil
	}
	return metrics.WriteText(os.Stdout, metrics.Registry)
}
