package config

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/ui"
)

// Environment overrides, read by the CLI flag sources.
const (
	EnvInterval        = "SYSINFO_INTERVAL"
	EnvTimeout         = "SYSINFO_TIMEOUT"
	EnvLenient         = "SYSINFO_LENIENT"
	EnvFormat          = "SYSINFO_FORMAT"
	EnvOutput          = "SYSINFO_OUTPUT"
	EnvGPU             = "SYSINFO_GPU"
	EnvNvidiaSMI       = "SYSINFO_NVIDIA_SMI"
	EnvMetricsTextfile = "SYSINFO_METRICS_TEXTFILE"
	EnvLogLevel        = "LOG_LEVEL"
)

// MinRecommendedInterval keeps tick quantization error bounded.
const MinRecommendedInterval = 100 * time.Millisecond

// Config carries runtime options for sysinfo.
type Config struct {
	Interval        time.Duration
	Timeout         time.Duration
	Lenient         bool
	Format          string
	Output          string
	EnableGPU       bool
	NvidiaSMI       string
	Progress        bool
	MetricsTextfile string
	LogLevel        string
}

func Default() Config {
	return Config{
		Interval:  500 * time.Millisecond,
		Timeout:   0,
		Lenient:   false,
		Format:    string(ui.FormatText),
		Output:    "",
		EnableGPU: true,
		NvidiaSMI: "nvidia-smi",
		Progress:  false,
		LogLevel:  "warn",
	}
}

// Validate rejects configurations the snapshot cannot honor. A sampling
// interval below MinRecommendedInterval is allowed but logged.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return syserrors.New(syserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("interval must be positive, got %s", c.Interval))
	}
	if c.Timeout < 0 {
		return syserrors.New(syserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.Timeout > 0 && c.Timeout <= c.Interval {
		return syserrors.New(syserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("timeout %s leaves no room for the %s sampling interval", c.Timeout, c.Interval))
	}
	if !slices.Contains(ui.SupportedFormats(), c.Format) {
		return syserrors.New(syserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown output format %q (supported: %v)", c.Format, ui.SupportedFormats()))
	}
	if c.Interval < MinRecommendedInterval {
		slog.Warn("sampling interval below recommended minimum",
			slog.Duration("interval", c.Interval),
			slog.Duration("recommended", MinRecommendedInterval))
	}
	return nil
}
