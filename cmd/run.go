package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/multirunner/internal/batch"
	"github.com/smazurov/multirunner/internal/config"
	"github.com/smazurov/multirunner/internal/events"
	"github.com/smazurov/multirunner/internal/logging"
	"github.com/smazurov/multirunner/internal/metrics"
	"github.com/smazurov/multirunner/internal/process"
	"github.com/smazurov/multirunner/internal/runner"
	"github.com/smazurov/multirunner/internal/system"
)

// CreateRunCmd creates the run command.
func CreateRunCmd(opts *Options) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "run [flags] BATCH...",
		Short: "Run the processes described by batch files",
		Long: `Runs every [[process]] of each batch file on its own bounded pool and prints ` +
			`exit code, stdout and stderr per process. Several batch files run concurrently. ` +
			`With --watch a single batch is run again every time the file changes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := batch.ParseFormat(opts.Format)
			if err != nil {
				return err
			}
			if watch && len(args) != 1 {
				return errors.New("--watch takes exactly one batch file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := &batchRun{
				opts:   opts,
				sys:    system.OS(),
				logger: logging.GetLogger("cli"),
			}

			if opts.Progress {
				r.bus = events.New()
				stopProgress := startProgress(r.bus, cmd.ErrOrStderr())
				defer stopProgress()
			}

			if opts.MetricsListen != "" {
				shutdown := serveMetrics(opts.MetricsListen, r.logger)
				defer shutdown()
			}

			if watch {
				if opts.Config != "" {
					stopLevels := r.watchLogLevels(opts.Config)
					defer stopLevels()
				}
				return r.watch(ctx, args[0], cmd.OutOrStdout(), format)
			}

			report, runErr := r.runAll(ctx, args)
			if err := report.Write(cmd.OutOrStdout(), format); err != nil {
				return errors.Join(runErr, err)
			}
			return errors.Join(runErr, r.writeTextfile())
		},
	}

	cmd.Flags().IntVar(&opts.MaxParallel, "max-parallel", 0, "Processes running at once (overrides the batch file)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Time budget per batch (overrides the batch file)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "Pause between idle polling passes")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "Wait strategy: all, first or forget (overrides the batch file)")
	cmd.Flags().IntVar(&opts.First, "first", 0, "Results to wait for with --strategy first")
	cmd.Flags().StringVar(&opts.Format, "format", "json", "Output format: json or toml")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Print process lifecycle events to stderr")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&watch, "watch", false, "Run the batch again whenever the file changes")

	return cmd
}

// batchRun holds what every batch of one invocation shares.
type batchRun struct {
	opts   *Options
	sys    *system.System
	bus    *events.Bus
	logger *slog.Logger
}

// runAll runs each batch file on its own pool concurrently. Every batch
// runs to its end; the returned error joins the failures of all of them.
func (r *batchRun) runAll(ctx context.Context, paths []string) (batch.Report, error) {
	report := batch.Report{}
	names := poolNames(paths)
	var (
		mu   sync.Mutex
		errs = make([]error, len(paths))
		g    errgroup.Group
	)

	for i, path := range paths {
		g.Go(func() error {
			f, err := r.load(path)
			if err != nil {
				errs[i] = err
				return err
			}
			results, err := r.run(ctx, names[i], f)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			report.Add(path, results)
			mu.Unlock()
			return errs[i]
		})
	}
	_ = g.Wait()
	return report, errors.Join(errs...)
}

// load reads and validates a batch file with the command-line overrides applied.
func (r *batchRun) load(path string) (*batch.File, error) {
	f, err := batch.Load(r.sys.Fs, path)
	if err != nil {
		return nil, err
	}
	f.Apply(r.opts.overrides())
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// run builds the pool for f, waits according to its strategy and tears it
// down. name labels the pool's metrics and events; stats left by an earlier
// run under the same name are reset first.
func (r *batchRun) run(ctx context.Context, name string, f *batch.File) (process.Results, error) {
	logger := r.logger.With("batch", f.Path, "pool", name)
	metrics.DeletePoolMetrics(name)

	d, err := f.Build(runner.Options{
		System:       r.sys,
		Name:         name,
		PollInterval: r.opts.PollInterval,
		Events:       r.bus,
		Logger:       logging.GetLogger("runner").With("batch", f.Path),
	})
	if err != nil {
		return nil, err
	}
	defer d.Close()

	start := time.Now()
	logger.Info("Batch started",
		"processes", len(f.Processes),
		"max_parallel", f.MaxParallel,
		"strategy", f.Strategy,
		"timeout", time.Duration(f.Timeout))

	results, err := f.Run(ctx, d)
	if err != nil {
		logger.Warn("Batch failed", "error", err, "elapsed", time.Since(start))
		return results, err
	}
	attrs := []any{"results", len(results), "elapsed", time.Since(start)}
	if stats := metrics.GetPoolStats(name); stats != nil {
		attrs = append(attrs, "launched", stats.Launched, "completed", stats.Completed, "abandoned", stats.Abandoned)
	}
	logger.Info("Batch finished", attrs...)
	return results, nil
}

// poolNames labels each batch by its file name without extension. Paths
// whose file names collide keep their directory in the label.
func poolNames(paths []string) []string {
	names := make([]string, len(paths))
	seen := make(map[string]int, len(paths))
	for i, path := range paths {
		names[i] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		seen[names[i]]++
	}
	for i, path := range paths {
		if seen[names[i]] > 1 {
			clean := filepath.ToSlash(filepath.Clean(path))
			names[i] = strings.TrimSuffix(clean, filepath.Ext(clean))
		}
	}
	return names
}

// watchLogLevels applies logging level changes made to the config file
// while a watched batch keeps running. --logging-level keeps priority over
// the file's global level.
func (r *batchRun) watchLogLevels(path string) (stop func()) {
	load := func(p string) (logging.Config, error) {
		return config.LoadLoggingConfig(p), nil
	}
	w := config.NewWatcher(path, load, r.logger)
	w.OnReload(func(cfg logging.Config) {
		r.applyLogLevels(cfg)
	})
	if err := w.Start(); err != nil {
		r.logger.Warn("Cannot watch config file for logging changes", "config", w.Path(), "error", err)
		return func() {}
	}
	r.logger.Debug("Watching config file for logging changes", "config", w.Path())
	return func() { _ = w.Stop() }
}

func (r *batchRun) applyLogLevels(cfg logging.Config) {
	level := cfg.Level
	if r.opts.LoggingLevel != "" {
		level = r.opts.LoggingLevel
	}
	if err := logging.SetLevel("", level); err != nil {
		r.logger.Warn("Ignoring logging level", "level", level, "error", err)
	}
	for module, moduleLevel := range cfg.Modules {
		if err := logging.SetLevel(module, moduleLevel); err != nil {
			r.logger.Warn("Ignoring logging level", "module", module, "level", moduleLevel, "error", err)
		}
	}
	r.logger.Info("Logging levels reloaded", "level", level, "modules", len(cfg.Modules))
}

// watch runs the batch at path, then again after every change, until ctx
// is canceled. A file that fails to load is reported and skipped.
func (r *batchRun) watch(ctx context.Context, path string, out io.Writer, format batch.Format) error {
	reloads := make(chan *batch.File, 1)

	w := config.NewWatcher(path, r.load, r.logger)
	w.OnReload(func(f *batch.File) {
		// Keep only the latest version while a run is in progress.
		select {
		case <-reloads:
		default:
		}
		reloads <- f
	})
	if err := w.Start(); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer func() { _ = w.Stop() }()

	runOnce := func(f *batch.File) {
		report := batch.Report{}
		results, err := r.run(ctx, poolNames([]string{path})[0], f)
		if err != nil {
			r.logger.Error("Batch run failed", "batch", path, "error", err)
		}
		report.Add(path, results)
		if err := report.Write(out, format); err != nil {
			r.logger.Error("Failed to write report", "error", err)
		}
		if err := r.writeTextfile(); err != nil {
			r.logger.Warn("Failed to write metrics", "error", err)
		}
	}

	if f, err := r.load(path); err != nil {
		r.logger.Error("Invalid batch file, waiting for a change", "batch", path, "error", err)
	} else {
		runOnce(f)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-reloads:
			runOnce(f)
		}
	}
}

func (r *batchRun) writeTextfile() error {
	if r.opts.MetricsTextfile == "" {
		return nil
	}
	return metrics.WriteTextfile(r.opts.MetricsTextfile)
}

// serveMetrics exposes the Prometheus registry on addr until the returned
// function is called.
func serveMetrics(addr string, logger *slog.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Error stopping metrics server", "error", err)
		}
	}
}
