package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/steelifc/internal/config"
	"github.com/Faultbox/steelifc/internal/export"
	"github.com/Faultbox/steelifc/internal/logger"
	"github.com/Faultbox/steelifc/internal/metrics"
	"github.com/Faultbox/steelifc/internal/scene"
	"github.com/Faultbox/steelifc/internal/watch"
	"github.com/Faultbox/steelifc/pkg/ifcguid"
)

// ErrElementsFailed is returned in strict mode when any element lost its
// geometry.
var ErrElementsFailed = errors.New("some elements were exported without geometry")

type exportFlags struct {
	scenePath string
	sample    string
	seed      string
	watch     bool
	strict    bool
	overrides config.Overrides
}

func exportCmd(g *globalFlags) *cobra.Command {
	f := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a scene to an IFC file",
		Example: `  steelifc export --sample beam-column-endplate -o endplate.ifc
  steelifc export --scene splice.yaml --workers 4 --element-timeout 2s
  steelifc export --scene splice.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.scenePath, "scene", "s", "", "Scene file (YAML)")
	fl.StringVar(&f.sample, "sample", "", "Built-in sample scene")
	fl.StringVar(&f.seed, "seed", "", "Derive GlobalIds from this seed for reproducible output")
	fl.BoolVarP(&f.watch, "watch", "w", false, "Re-export whenever the scene file changes")
	fl.BoolVar(&f.strict, "strict", false, "Fail if any element is exported without geometry")
	fl.StringVarP(&f.overrides.Output, "output", "o", "", `Output IFC file ("-" for stdout)`)
	fl.Float64Var(&f.overrides.Tolerance, "tolerance", 0, "Linear deflection for meshing, in mm")
	fl.Float64Var(&f.overrides.Precision, "precision", 0, "Representation context precision")
	fl.IntVar(&f.overrides.Workers, "workers", 0, "Triangulate this many elements in parallel")
	fl.DurationVar(&f.overrides.ElementTimeout, "element-timeout", 0, "Per-element triangulation deadline")
	fl.StringVar(&f.overrides.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.MarkFlagsMutuallyExclusive("scene", "sample")
	cmd.MarkFlagsOneRequired("scene", "sample")
	return cmd
}

func runExport(cmd *cobra.Command, g *globalFlags, f *exportFlags) error {
	if f.watch && f.scenePath == "" {
		return errors.New("--watch needs --scene")
	}

	cfg, err := g.loadConfig(f.overrides)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}

	var prom *metrics.PrometheusRecorder
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Textfile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	once := func(ctx context.Context) error {
		entries, err := loadEntries(f)
		if err != nil {
			return err
		}

		opts := cfg.DocumentOptions()
		opts.Classifier = classifier
		opts.Application = appName + " " + Version
		if f.seed != "" {
			opts.IDs = ifcguid.NewSequenceGenerator(f.seed)
		}
		p := &export.Pipeline{
			Options:        opts,
			Logger:         log,
			Recorder:       recorder,
			ElementTimeout: cfg.Export.ElementTimeout,
			Workers:        cfg.Export.Workers,
		}

		out := cmd.OutOrStdout()
		var report *export.Report
		if cfg.Export.Output == "-" {
			report, err = p.ExportTo(ctx, entries, out)
			out = cmd.ErrOrStderr()
		} else {
			report, err = p.Export(ctx, entries, cfg.Export.Output)
		}
		if prom != nil {
			if werr := prom.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
				log.Error("writing metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(werr))
			}
		}
		if err != nil {
			return err
		}

		printReport(out, report)
		if f.strict && (len(report.Failed()) > 0 || len(report.TimedOut()) > 0) {
			return fmt.Errorf("%w: %v", ErrElementsFailed, report.Err())
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !f.watch {
		return once(ctx)
	}

	// A broken scene on startup should not stop the watch loop.
	if err := once(ctx); err != nil {
		log.Error("export failed", zap.Error(err))
	}
	w, err := watch.New(f.scenePath, watch.DefaultDebounce, log)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx, once)
}

func loadEntries(f *exportFlags) ([]export.Entry, error) {
	var s *scene.Scene
	var err error
	if f.sample != "" {
		s, err = scene.Sample(f.sample)
	} else {
		s, err = scene.Load(f.scenePath)
	}
	if err != nil {
		return nil, err
	}
	return s.Entries()
}

func printReport(w io.Writer, r *export.Report) {
	if r.Path != "" {
		fmt.Fprintf(w, "Output:    %s\n", r.Path)
	}
	fmt.Fprintf(w, "Elements:  %d (%d with geometry)\n", r.Stats.Elements, r.Stats.WithGeometry)
	fmt.Fprintf(w, "Facets:    %d\n", r.Stats.Facets)
	fmt.Fprintf(w, "Instances: %d\n", r.Stats.Instances)
	fmt.Fprintf(w, "Duration:  %s\n", r.Duration.Round(time.Millisecond))

	fmt.Fprintln(w, "\nElements:")
	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "  %-24s %-20s %6d  %s\n", o.Name, o.Kind.IFCType(), o.Facets, o.Result)
	}
	for _, o := range r.Failed() {
		fmt.Fprintf(w, "Failed: %v\n", o.Err)
	}
}
