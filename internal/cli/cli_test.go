package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/sysinfo/internal/config"
	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
	"github.com/Dicklesworthstone/sysinfo/internal/source"
)

type fakeSource struct {
	gpuErr   error
	gpuBlock bool
	ticks    atomic.Uint64
	closed   atomic.Bool
}

func (f *fakeSource) CPUIdentity(context.Context) (string, error) {
	return "Intel(R) Xeon(R) Gold 6338 CPU @ 2.00GHz", nil
}

func (f *fakeSource) CPUTopology(context.Context) (model.CPUTopology, error) {
	return model.CPUTopology{Physical: 4, Logical: 8}, nil
}

// CPUTiming advances every core by 50 busy and 50 idle ticks per call.
func (f *fakeSource) CPUTiming(context.Context) (model.CPUTimingSample, error) {
	ticks := f.ticks.Add(50)
	cores := make([]model.CoreTicks, 4)
	for i := range cores {
		cores[i] = model.CoreTicks{Busy: 100 + ticks, Idle: 900 + ticks}
	}
	return model.CPUTimingSample{Taken: time.Now(), Cores: cores}, nil
}

func (f *fakeSource) Memory(context.Context) (model.Memory, error) {
	return model.Memory{TotalBytes: 16 << 30, UsedBytes: 8 << 30}, nil
}

func (f *fakeSource) OSInfo(context.Context) (string, error) {
	return "ubuntu 22.04 (debian), linux 6.8.0-45-generic x86_64", nil
}

func (f *fakeSource) GPUInfo(ctx context.Context) ([]string, error) {
	if f.gpuBlock {
		<-ctx.Done()
		return nil, syserrors.FromOS("gpu probe interrupted", ctx.Err())
	}
	if f.gpuErr != nil {
		return nil, f.gpuErr
	}
	return []string{}, nil
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

// useSource swaps the opener for the duration of a test and records the
// options it was called with.
func useSource(t *testing.T, src source.Source, openErr error) *source.Options {
	t.Helper()
	var got source.Options
	prev := openSource
	openSource = func(opts source.Options) (source.Source, error) {
		got = opts
		if openErr != nil {
			return nil, openErr
		}
		return src, nil
	}
	t.Cleanup(func() { openSource = prev })
	return &got
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), append([]string{name}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunText(t *testing.T) {
	src := &fakeSource{}
	useSource(t, src, nil)

	code, stdout, stderr := run(t, "--interval", "100ms")
	require.Equal(t, ExitOK, code, stderr)

	want := `CPU Name: Intel(R) Xeon(R) Gold 6338 CPU @ 2.00GHz
CPU Cores: 4 physical, 8 logical
OS Info: ubuntu 22.04 (debian), linux 6.8.0-45-generic x86_64
Total RAM: 16.00 GB
Used RAM: 8.00 GB
GPU Info:
  none detected
Total CPU Usage: 50.00%
CPU Core Usages:
  Core 0: 50.00%
  Core 1: 50.00%
  Core 2: 50.00%
  Core 3: 50.00%
`
	assert.Equal(t, want, stdout)
	assert.True(t, src.closed.Load())
}

func TestRunStrictFailure(t *testing.T) {
	src := &fakeSource{gpuErr: syserrors.New(syserrors.ErrCodePermissionDenied, "render node not readable")}
	useSource(t, src, nil)

	code, stdout, stderr := run(t, "--interval", "100ms")
	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "sysinfo: GPU Info: [PERMISSION_DENIED] render node not readable\n")
	assert.True(t, src.closed.Load())
}

func TestRunLenient(t *testing.T) {
	src := &fakeSource{gpuErr: syserrors.New(syserrors.ErrCodePermissionDenied, "render node not readable")}
	useSource(t, src, nil)

	code, stdout, stderr := run(t, "--interval", "100ms", "--lenient")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "GPU Info: unavailable (PERMISSION_DENIED)\n")
	assert.Contains(t, stdout, "Total CPU Usage: 50.00%\n")
}

func TestRunInvalidConfig(t *testing.T) {
	useSource(t, &fakeSource{}, nil)

	tests := []struct {
		name string
		args []string
	}{
		{"zero interval", []string{"--interval", "0s"}},
		{"unknown format", []string{"--format", "xml"}},
		{"timeout shorter than interval", []string{"--interval", "1s", "--timeout", "500ms"}},
		{"unknown flag", []string{"--bogus"}},
		{"malformed duration", []string{"--interval", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := run(t, tt.args...)
			assert.Equal(t, ExitInvalidConfig, code)
			assert.NotContains(t, stdout, "CPU Name:")
		})
	}
}

func TestRunOpenFailure(t *testing.T) {
	useSource(t, nil, syserrors.New(syserrors.ErrCodeUnsupportedPlatform, "no system information source for this platform"))

	code, stdout, stderr := run(t)
	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "[UNSUPPORTED_PLATFORM]")
}

func TestRunOutputFile(t *testing.T) {
	useSource(t, &fakeSource{}, nil)
	dir := t.TempDir()
	out := filepath.Join(dir, "report.json")
	metrics := filepath.Join(dir, "sysinfo.prom")

	code, stdout, stderr := run(t, "--interval", "100ms", "-f", "json", "-o", out, "--metrics-textfile", metrics)
	require.Equal(t, ExitOK, code, stderr)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cpuName": "Intel(R) Xeon(R) Gold 6338 CPU @ 2.00GHz"`)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sysinfo_snapshot_total")
}

func TestRunEnvironment(t *testing.T) {
	opts := useSource(t, &fakeSource{}, nil)
	t.Setenv(config.EnvFormat, "yaml")
	t.Setenv(config.EnvInterval, "100ms")
	t.Setenv(config.EnvGPU, "false")
	t.Setenv(config.EnvNvidiaSMI, "/opt/nvidia/bin/nvidia-smi")

	code, stdout, stderr := run(t)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "cpuName: Intel(R) Xeon(R) Gold 6338 CPU @ 2.00GHz")
	assert.False(t, opts.EnableGPU)
	assert.Equal(t, "/opt/nvidia/bin/nvidia-smi", opts.NvidiaSMI)
}

func TestRunTimeout(t *testing.T) {
	for _, mode := range [][]string{nil, {"--lenient"}} {
		// Each run gets its own source: a timed-out snapshot leaves its
		// readers running in the background.
		useSource(t, &fakeSource{gpuBlock: true}, nil)

		args := append([]string{"--interval", "100ms", "--timeout", "300ms"}, mode...)
		code, stdout, stderr := run(t, args...)
		assert.Equal(t, ExitFailure, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "[TIMEOUT]")
	}
}
