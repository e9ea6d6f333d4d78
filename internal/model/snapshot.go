package model

import (
	"fmt"
	"time"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
)

// Field names one line group of the report. Used for diagnostics and for
// lenient-mode unavailable markers.
type Field string

const (
	FieldCPUName  Field = "CPU Name"
	FieldCPUCores Field = "CPU Cores"
	FieldOS       Field = "OS Info"
	FieldMemory   Field = "Memory"
	FieldGPU      Field = "GPU Info"
	FieldCPUUsage Field = "CPU Usage"
)

// Fields lists every field in report order.
func Fields() []Field {
	return []Field{FieldCPUName, FieldCPUCores, FieldOS, FieldMemory, FieldGPU, FieldCPUUsage}
}

// CPUTopology is the core count pair. No ratio between the two is assumed.
type CPUTopology struct {
	Physical int `json:"physical" yaml:"physical"`
	Logical  int `json:"logical" yaml:"logical"`
}

// Validate checks 1 <= Physical <= Logical.
func (t CPUTopology) Validate() error {
	if t.Physical < 1 {
		return syserrors.New(syserrors.ErrCodeMalformedData,
			fmt.Sprintf("physical core count %d is below 1", t.Physical))
	}
	if t.Logical < t.Physical {
		return syserrors.New(syserrors.ErrCodeMalformedData,
			fmt.Sprintf("logical core count %d is below physical count %d", t.Logical, t.Physical))
	}
	return nil
}

// Memory captures RAM usage in bytes for precision.
type Memory struct {
	TotalBytes uint64 `json:"totalBytes" yaml:"totalBytes"`
	UsedBytes  uint64 `json:"usedBytes" yaml:"usedBytes"`
}

// Validate checks UsedBytes <= TotalBytes.
func (m Memory) Validate() error {
	if m.UsedBytes > m.TotalBytes {
		return syserrors.New(syserrors.ErrCodeMalformedData,
			fmt.Sprintf("used memory %d exceeds total %d", m.UsedBytes, m.TotalBytes))
	}
	return nil
}

// Snapshot is the full point-in-time report. It is built fresh for every
// invocation and never persisted.
type Snapshot struct {
	Taken    time.Time     `json:"taken" yaml:"taken"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	CPUName  string        `json:"cpuName" yaml:"cpuName"`
	Topology CPUTopology   `json:"cpuCores" yaml:"cpuCores"`
	OS       string        `json:"os" yaml:"os"`
	Memory   Memory        `json:"memory" yaml:"memory"`
	GPUs     []string      `json:"gpus" yaml:"gpus"`
	Usage    CPUUsage      `json:"cpuUsage" yaml:"cpuUsage"`

	// Unavailable is only populated in lenient mode and maps a field that
	// could not be read to the error code that caused it.
	Unavailable map[Field]syserrors.ErrorCode `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// Available reports whether f was read successfully.
func (s *Snapshot) Available(f Field) bool {
	_, missing := s.Unavailable[f]
	return !missing
}

// MarkUnavailable records that f could not be read.
func (s *Snapshot) MarkUnavailable(f Field, code syserrors.ErrorCode) {
	if s.Unavailable == nil {
		s.Unavailable = make(map[Field]syserrors.ErrorCode)
	}
	s.Unavailable[f] = code
}
