// Package cli wires configuration, the host source, the aggregator and the
// presentation adapter into the sysinfo command.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/sysinfo/internal/config"
	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/logging"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
	"github.com/Dicklesworthstone/sysinfo/internal/snapshot"
	"github.com/Dicklesworthstone/sysinfo/internal/source"
	"github.com/Dicklesworthstone/sysinfo/internal/ui"
)

const (
	name           = "sysinfo"
	versionDefault = "dev"
)

// overridden during build with ldflags
var version = versionDefault

// Exit statuses.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitInvalidConfig = 2
)

// openSource is replaced in tests.
var openSource = func(opts source.Options) (source.Source, error) {
	h, err := source.Open(opts)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Execute runs sysinfo with the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes one invocation and returns its exit status. The report goes
// to stdout (or --output); diagnostics and logs go to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	started := false
	cmd := newCommand(stdout, stderr, &started)

	err := cmd.Run(ctx, args)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(stderr, "%s: %v\n", name, err)
	if !started || syserrors.Is(err, syserrors.ErrCodeInvalidConfig) {
		return ExitInvalidConfig
	}
	return ExitFailure
}

func newCommand(stdout, stderr io.Writer, started *bool) *cli.Command {
	def := config.Default()
	return &cli.Command{
		Name:    name,
		Version: version,
		Usage:   "Print a one-shot snapshot of CPU, memory, OS and GPU information",
		Description: `Reads CPU identity and core counts, OS description, RAM totals and GPU
adapters, then samples per-core CPU time twice --interval apart and prints the
derived utilization.

By default any field that cannot be read fails the whole report. With
--lenient the field is printed as "unavailable (<CODE>)" instead.

# Examples

  sysinfo
  sysinfo --interval 1s --format json
  sysinfo --lenient --gpu=false --output /tmp/host.txt`,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Delay between the two CPU timing samples",
				Sources: cli.EnvVars(config.EnvInterval),
				Value:   def.Interval,
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Deadline for the whole snapshot (0 disables)",
				Sources: cli.EnvVars(config.EnvTimeout),
				Value:   def.Timeout,
			},
			&cli.BoolFlag{
				Name:    "lenient",
				Usage:   "Mark unreadable fields unavailable instead of failing",
				Sources: cli.EnvVars(config.EnvLenient),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format %v", ui.SupportedFormats()),
				Sources: cli.EnvVars(config.EnvFormat),
				Value:   def.Format,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to this file instead of stdout",
				Sources: cli.EnvVars(config.EnvOutput),
			},
			&cli.BoolFlag{
				Name:    "gpu",
				Usage:   "Enumerate GPU adapters (--gpu=false reports none)",
				Sources: cli.EnvVars(config.EnvGPU),
				Value:   def.EnableGPU,
			},
			&cli.StringFlag{
				Name:    "nvidia-smi",
				Usage:   "nvidia-smi binary used as a fallback GPU prober",
				Sources: cli.EnvVars(config.EnvNvidiaSMI),
				Value:   def.NvidiaSMI,
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a sampling gauge on stderr",
			},
			&cli.StringFlag{
				Name:    "metrics-textfile",
				Usage:   "Write collection metrics in node-exporter textfile format",
				Sources: cli.EnvVars(config.EnvMetricsTextfile),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars(config.EnvLogLevel),
				Value:   def.LogLevel,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*started = true
			cfg := config.Config{
				Interval:        cmd.Duration("interval"),
				Timeout:         cmd.Duration("timeout"),
				Lenient:         cmd.Bool("lenient"),
				Format:          cmd.String("format"),
				Output:          cmd.String("output"),
				EnableGPU:       cmd.Bool("gpu"),
				NvidiaSMI:       cmd.String("nvidia-smi"),
				Progress:        cmd.Bool("progress"),
				MetricsTextfile: cmd.String("metrics-textfile"),
				LogLevel:        cmd.String("log-level"),
			}
			logging.SetDefaultStructuredLoggerWithWriter(stderr, name, version, cfg.LogLevel)
			slog.Debug("starting", "name", name, "version", version)

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSnapshot(ctx, cfg, stdout, stderr)
		},
	}
}

func runSnapshot(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	opts := source.DefaultOptions()
	opts.EnableGPU = cfg.EnableGPU
	opts.NvidiaSMI = cfg.NvidiaSMI

	src, err := openSource(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Warn("failed to close source", "error", cerr)
		}
	}()

	collector := &snapshot.Collector{
		Source:   src,
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
	}
	if cfg.Lenient {
		collector.Mode = snapshot.Lenient
	}
	if cfg.MetricsTextfile != "" {
		collector.Metrics = snapshot.NewMetrics()
	}

	var progress *ui.Progress
	if cfg.Progress {
		progress = ui.StartProgress(stderr, "sampling CPU", cfg.Interval)
	}
	snap, err := collector.Collect(ctx)
	if progress != nil {
		if perr := progress.Stop(); perr != nil {
			slog.Debug("progress display failed", "error", perr)
		}
	}

	if cfg.MetricsTextfile != "" {
		if merr := collector.Metrics.WriteTextfile(cfg.MetricsTextfile); merr != nil {
			slog.Warn("failed to write metrics", "error", merr, "path", cfg.MetricsTextfile)
		}
	}
	if err != nil {
		return err
	}

	return writeReport(snap, ui.Format(cfg.Format), cfg.Output, stdout)
}

// writeReport renders fully before touching the destination, so a failed
// render never leaves a partial report behind.
func writeReport(snap *model.Snapshot, format ui.Format, path string, stdout io.Writer) error {
	if path == "" {
		return ui.NewWriter(format, stdout).Render(snap)
	}

	var buf bytes.Buffer
	if err := ui.NewWriter(format, &buf).Render(snap); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return syserrors.WrapWithContext(syserrors.Classify(err), "failed to write report", err,
			map[string]any{"path": path})
	}
	slog.Info("report written", "path", path, "bytes", buf.Len())
	return nil
}
