package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"copytopoints/internal/batch"
	"copytopoints/internal/config"
	"copytopoints/internal/copypacked"
	"copytopoints/internal/geo"
	"copytopoints/internal/geoio"
	"copytopoints/internal/watch"
)

var (
	debounce   time.Duration
	reportPath string
	pointGroup string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-cook whenever the source or target file changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := watch.New(watch.Job{Source: cfg.Source, Target: cfg.Target, Output: cfg.Output, Params: p}, debounce)
		fmt.Printf("Watching %s and %s (Ctrl-C to stop)\n", cfg.Source, cfg.Target)
		err = w.Run(ctx, func(r watch.Report) {
			printWarnings(r.Result.Warnings)
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "Cook failed: %v\n", r.Err)
				return
			}
			fmt.Printf("Cooked %d copies (topology changed: %v)\n", r.Result.Copies, r.Result.TopologyChanged)
		})
		if err != nil {
			return err
		}
		return writeMetrics()
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Run every job listed in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		m, err := batch.LoadManifest(args[0])
		if err != nil {
			return err
		}
		workers := m.Workers
		if flags.Workers > 0 {
			workers = flags.Workers
		}
		if workers <= 0 {
			workers = 1
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Running %d jobs with %d workers\n", len(m.Jobs), workers)
		start := time.Now()
		results := batch.Run(ctx, batch.Config{Workers: workers, Progress: 2 * time.Second}, m.Jobs)

		var success, failed int
		for _, r := range results {
			if r.Success {
				success++
			} else {
				failed++
				fmt.Fprintf(os.Stderr, "  FAIL %s: %s\n", r.Name, r.Error)
			}
		}
		fmt.Printf("\nDone in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Success: %d\n", success)
		fmt.Printf("  Failed:  %d\n", failed)

		if reportPath != "" {
			if err := batch.WriteReport(reportPath, results); err != nil {
				return err
			}
			fmt.Printf("  Report:  %s\n", reportPath)
		}
		if err := writeMetrics(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d jobs failed", failed, len(results))
		}
		return nil
	},
}

var packedCmd = &cobra.Command{
	Use:   "copy-packed <packed.yaml> <points.yaml> <output.yaml>",
	Short: "Place existing packed primitives onto points matched by id or name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		packed, err := geoio.ReadFile(args[0])
		if err != nil {
			return err
		}
		points, err := geoio.ReadFile(args[1])
		if err != nil {
			return err
		}
		out := geo.New()
		res, err := copypacked.Cook(out, packed, points, copypacked.Params{PointGroup: pointGroup})
		printWarnings(res.Warnings)
		if err != nil {
			return err
		}
		if err := geoio.WriteFile(args[2], out); err != nil {
			return err
		}
		fmt.Printf("Matched %d points, %d without a primitive -> %s\n", res.Matched, res.Unmatched, args[2])
		return writeMetrics()
	},
}

var resetAttribsCmd = &cobra.Command{
	Use:   "reset-attribs",
	Short: "Print the default target attribute requests as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var p config.Params
		p.ResetTargetAttribs()
		data, err := yaml.Marshal(struct {
			TargetAttribs []config.AttribRequest `yaml:"target_attribs"`
		}{p.TargetAttribs})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-cooking")
	batchCmd.Flags().StringVar(&reportPath, "report", "", "Write a YAML report of all jobs")
	packedCmd.Flags().StringVar(&pointGroup, "group", "", "Point group receiving copies (default: all points)")
}
