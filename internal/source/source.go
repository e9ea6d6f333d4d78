// Package source reads raw host telemetry from the operating system.
//
// A Source is opened once per snapshot session and closed when the session
// ends. Each reader is a single query with no caching: topology and GPU
// enumeration are re-read on every call, so a hot-plugged CPU or GPU shows
// up in the next snapshot.
package source

import (
	"context"
	"time"

	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

// Source is the boundary between the snapshot engine and the platform.
// Implementations return owned values and classified errors
// (see internal/errors).
type Source interface {
	CPUIdentity(ctx context.Context) (string, error)
	CPUTopology(ctx context.Context) (model.CPUTopology, error)
	CPUTiming(ctx context.Context) (model.CPUTimingSample, error)
	Memory(ctx context.Context) (model.Memory, error)
	OSInfo(ctx context.Context) (string, error)
	GPUInfo(ctx context.Context) ([]string, error)
	Close() error
}

// Options configures Open.
type Options struct {
	// EnableGPU turns GPU enumeration on. When off, GPUInfo reports no adapters.
	EnableGPU bool
	// NvidiaSMI is the nvidia-smi binary to query; empty uses PATH lookup.
	NvidiaSMI string
	// CommandTimeout bounds each external command a reader runs.
	CommandTimeout time.Duration
}

// DefaultOptions returns options with GPU probing enabled.
func DefaultOptions() Options {
	return Options{
		EnableGPU:      true,
		NvidiaSMI:      "nvidia-smi",
		CommandTimeout: 2 * time.Second,
	}
}
