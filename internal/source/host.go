package source

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
	"github.com/Dicklesworthstone/sysinfo/internal/source/gpu"
)

// ticksPerSecond converts gopsutil's float seconds back to integer ticks
// (USER_HZ on Linux).
const ticksPerSecond = 100

// supportedOS lists the platforms gopsutil implements the readers for.
var supportedOS = map[string]bool{
	"linux":   true,
	"darwin":  true,
	"windows": true,
	"freebsd": true,
	"openbsd": true,
	"netbsd":  true,
	"solaris": true,
	"aix":     true,
}

// Host reads telemetry from the local machine via gopsutil.
type Host struct {
	cpuInfo   func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuCounts func(ctx context.Context, logical bool) (int, error)
	cpuTimes  func(ctx context.Context, perCPU bool) ([]cpu.TimesStat, error)
	vmem      func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	hostInfo  func(ctx context.Context) (*host.InfoStat, error)
	gpus      gpu.Prober
	now       func() time.Time

	closed atomic.Bool
}

// Open starts a snapshot session on the local host. It fails with
// UNSUPPORTED_PLATFORM when no reader implementation exists for this OS.
// The returned Host must be closed.
func Open(opts Options) (*Host, error) {
	if !supportedOS[runtime.GOOS] {
		return nil, syserrors.WrapWithContext(syserrors.ErrCodeUnsupportedPlatform,
			"no system information source for this platform", nil,
			map[string]any{"os": runtime.GOOS, "arch": runtime.GOARCH})
	}

	h := &Host{
		cpuInfo:   cpu.InfoWithContext,
		cpuCounts: cpu.CountsWithContext,
		cpuTimes:  cpu.TimesWithContext,
		vmem:      mem.VirtualMemoryWithContext,
		hostInfo:  host.InfoWithContext,
		now:       time.Now,
	}
	if opts.EnableGPU {
		smi := gpu.NewSMIProber(opts.NvidiaSMI)
		if opts.CommandTimeout > 0 {
			smi.Timeout = opts.CommandTimeout
		}
		h.gpus = gpu.Chain{gpu.NewDRMProber(), smi}
	}

	slog.Debug("opened system information source",
		slog.String("os", runtime.GOOS),
		slog.Bool("gpu", opts.EnableGPU))
	return h, nil
}

// Close ends the session. It is safe to call more than once.
func (h *Host) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		slog.Debug("closed system information source")
	}
	return nil
}

func (h *Host) checkOpen() error {
	if h.closed.Load() {
		return syserrors.New(syserrors.ErrCodeInternal, "source closed")
	}
	return nil
}

// CPUIdentity returns the first non-empty CPU model name. An empty string
// means the platform does not report one.
func (h *Host) CPUIdentity(ctx context.Context) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	infos, err := h.cpuInfo(ctx)
	if err != nil {
		return "", syserrors.FromOS("failed to read CPU info", err)
	}
	for _, info := range infos {
		if name := strings.TrimSpace(info.ModelName); name != "" {
			return name, nil
		}
	}
	return "", nil
}

// CPUTopology returns physical and logical core counts.
func (h *Host) CPUTopology(ctx context.Context) (model.CPUTopology, error) {
	if err := h.checkOpen(); err != nil {
		return model.CPUTopology{}, err
	}
	physical, err := h.cpuCounts(ctx, false)
	if err != nil {
		return model.CPUTopology{}, syserrors.FromOS("failed to count physical cores", err)
	}
	logical, err := h.cpuCounts(ctx, true)
	if err != nil {
		return model.CPUTopology{}, syserrors.FromOS("failed to count logical cores", err)
	}
	topo := model.CPUTopology{Physical: physical, Logical: logical}
	if err := topo.Validate(); err != nil {
		return model.CPUTopology{}, err
	}
	return topo, nil
}

// CPUTiming returns cumulative busy/idle ticks for every logical core.
// busy = user+nice+system+irq+softirq+steal, idle = idle+iowait; guest
// time is already included in user/nice.
func (h *Host) CPUTiming(ctx context.Context) (model.CPUTimingSample, error) {
	if err := h.checkOpen(); err != nil {
		return model.CPUTimingSample{}, err
	}
	times, err := h.cpuTimes(ctx, true)
	if err != nil {
		return model.CPUTimingSample{}, syserrors.FromOS("failed to read CPU times", err)
	}
	if len(times) == 0 {
		return model.CPUTimingSample{}, syserrors.New(syserrors.ErrCodeUnsupportedPlatform,
			"per-core CPU times are not reported on this platform")
	}

	sample := model.CPUTimingSample{
		Taken: h.now(),
		Cores: make([]model.CoreTicks, len(times)),
	}
	for i, t := range times {
		busy := t.User + t.Nice + t.System + t.Irq + t.Softirq + t.Steal
		idle := t.Idle + t.Iowait
		if busy < 0 || idle < 0 || math.IsNaN(busy) || math.IsNaN(idle) {
			return model.CPUTimingSample{}, syserrors.New(syserrors.ErrCodeMalformedData,
				fmt.Sprintf("negative CPU time for %s", t.CPU))
		}
		sample.Cores[i] = model.CoreTicks{Busy: toTicks(busy), Idle: toTicks(idle)}
	}
	return sample, nil
}

func toTicks(seconds float64) uint64 {
	return uint64(math.Round(seconds * ticksPerSecond))
}

// Memory returns total and used physical memory.
func (h *Host) Memory(ctx context.Context) (model.Memory, error) {
	if err := h.checkOpen(); err != nil {
		return model.Memory{}, err
	}
	vm, err := h.vmem(ctx)
	if err != nil {
		return model.Memory{}, syserrors.FromOS("failed to read memory counters", err)
	}
	m := model.Memory{TotalBytes: vm.Total, UsedBytes: vm.Used}
	if err := m.Validate(); err != nil {
		return model.Memory{}, err
	}
	return m, nil
}

// OSInfo describes the operating system, e.g.
// "ubuntu 22.04 (debian), linux 6.8.0-45-generic x86_64".
func (h *Host) OSInfo(ctx context.Context) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	info, err := h.hostInfo(ctx)
	if err != nil {
		return "", syserrors.FromOS("failed to read host info", err)
	}
	return describeOS(info), nil
}

func describeOS(info *host.InfoStat) string {
	platform := joinNonEmpty(" ", info.Platform, info.PlatformVersion)
	if platform != "" && info.PlatformFamily != "" && info.PlatformFamily != info.Platform {
		platform += " (" + info.PlatformFamily + ")"
	}
	kernel := joinNonEmpty(" ", info.OS, info.KernelVersion, info.KernelArch)
	return joinNonEmpty(", ", platform, kernel)
}

func joinNonEmpty(sep string, parts ...string) string {
	return strings.Join(lo.Compact(parts), sep)
}

// GPUInfo returns one description line per adapter.
func (h *Host) GPUInfo(ctx context.Context) ([]string, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if h.gpus == nil {
		return []string{}, nil
	}
	adapters, err := h.gpus.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(adapters, func(a gpu.Adapter, _ int) string {
		return a.Describe()
	}), nil
}
