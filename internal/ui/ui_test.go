package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

func sampleSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Taken:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Interval: 500 * time.Millisecond,
		CPUName:  "Intel(R) Core(TM) i7-8650U CPU @ 1.90GHz",
		Topology: model.CPUTopology{Physical: 4, Logical: 8},
		OS:       "ubuntu 22.04 (debian), linux 6.8.0-45-generic x86_64",
		Memory:   model.Memory{TotalBytes: 16 << 30, UsedBytes: 8 << 30},
		GPUs:     []string{"Intel UHD Graphics 620 (driver i915, PCI 0000:00:02.0)"},
		Usage: model.CPUUsage{
			Total:   50,
			PerCore: []float64{50, 50, 50, 50},
		},
	}
}

func TestText(t *testing.T) {
	want := `CPU Name: Intel(R) Core(TM) i7-8650U CPU @ 1.90GHz
CPU Cores: 4 physical, 8 logical
OS Info: ubuntu 22.04 (debian), linux 6.8.0-45-generic x86_64
Total RAM: 16.00 GB
Used RAM: 8.00 GB
GPU Info:
  Intel UHD Graphics 620 (driver i915, PCI 0000:00:02.0)
Total CPU Usage: 50.00%
CPU Core Usages:
  Core 0: 50.00%
  Core 1: 50.00%
  Core 2: 50.00%
  Core 3: 50.00%
`
	assert.Equal(t, want, Text(sampleSnapshot()))
}

func TestTextIdempotent(t *testing.T) {
	snap := sampleSnapshot()
	snap.MarkUnavailable(model.FieldGPU, syserrors.ErrCodePermissionDenied)
	assert.Equal(t, Text(snap), Text(snap))
}

func TestTextIdleCores(t *testing.T) {
	snap := sampleSnapshot()
	snap.Usage = model.CPUUsage{Total: 0, PerCore: []float64{0, 0}}
	out := Text(snap)
	assert.Contains(t, out, "Total CPU Usage: 0.00%\n")
	assert.Contains(t, out, "  Core 1: 0.00%\n")
}

func TestTextNoGPU(t *testing.T) {
	snap := sampleSnapshot()
	snap.GPUs = nil
	assert.Contains(t, Text(snap), "GPU Info:\n  none detected\nTotal CPU Usage")
}

func TestTextUnavailable(t *testing.T) {
	snap := sampleSnapshot()
	snap.MarkUnavailable(model.FieldGPU, syserrors.ErrCodePermissionDenied)
	snap.MarkUnavailable(model.FieldMemory, syserrors.ErrCodeMalformedData)
	snap.MarkUnavailable(model.FieldCPUUsage, syserrors.ErrCodeTimeout)

	out := Text(snap)
	assert.Contains(t, out, "GPU Info: unavailable (PERMISSION_DENIED)\n")
	assert.Contains(t, out, "Total RAM: unavailable (MALFORMED_DATA)\n")
	assert.Contains(t, out, "Used RAM: unavailable (MALFORMED_DATA)\n")
	assert.Contains(t, out, "Total CPU Usage: unavailable (TIMEOUT)\n")
	assert.NotContains(t, out, "Core 0")
	assert.True(t, strings.HasPrefix(out, "CPU Name: Intel"))
}

func TestWriterFormats(t *testing.T) {
	snap := sampleSnapshot()

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatText, &buf).Render(snap))
		assert.Equal(t, Text(snap), buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatJSON, &buf).Render(snap))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, snap.CPUName, decoded["cpuName"])
		assert.NotContains(t, decoded, "unavailable")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatYAML, &buf).Render(snap))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, snap.OS, decoded["os"])
	})

	t.Run("pretty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(FormatPretty, &buf).Render(snap))
		out := buf.String()
		assert.Contains(t, out, "System Snapshot")
		assert.Contains(t, out, "8.0 GiB / 16 GiB")
		assert.Contains(t, out, "core 3")
	})

	t.Run("unknown falls back to text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(Format("xml"), &buf).Render(snap))
		assert.Equal(t, Text(snap), buf.String())
	})
}

func TestWriterNil(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter(FormatText, &buf).Render(nil)
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterWriteFailure(t *testing.T) {
	err := NewWriter(FormatText, failingWriter{}).Render(sampleSnapshot())
	require.Error(t, err)
	assert.Equal(t, syserrors.ErrCodeInternal, syserrors.CodeOf(err))
}

func TestFormatIsUnknown(t *testing.T) {
	for _, f := range SupportedFormats() {
		assert.False(t, Format(f).IsUnknown(), f)
	}
	assert.True(t, Format("table").IsUnknown())
	assert.True(t, Format("").IsUnknown())
}

func TestPrettyUnavailable(t *testing.T) {
	snap := sampleSnapshot()
	snap.MarkUnavailable(model.FieldGPU, syserrors.ErrCodePermissionDenied)
	out := Pretty(lipgloss.NewRenderer(&bytes.Buffer{}), snap)
	assert.Contains(t, out, "GPU Info unavailable (PERMISSION_DENIED)")
}

func TestGaugeBar(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0, "[" + strings.Repeat(gaugeEmpty, 4) + "]   0.0%"},
		{50, "[" + strings.Repeat(gaugeFill, 2) + strings.Repeat(gaugeEmpty, 2) + "]  50.0%"},
		{150, "[" + strings.Repeat(gaugeFill, 4) + "] 100.0%"},
		{-3, "[" + strings.Repeat(gaugeEmpty, 4) + "]   0.0%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gaugeBar(tt.pct, 4))
	}
}

func TestProgressModel(t *testing.T) {
	start := time.Now()
	m := newProgressModel("sampling", time.Second, start)
	assert.NotNil(t, m.Init())

	next, cmd := m.Update(tickMsg(start.Add(500 * time.Millisecond)))
	assert.NotNil(t, cmd)
	pm := next.(progressModel)
	assert.InDelta(t, 50.0, pm.percent(), 1e-9)
	assert.Contains(t, pm.View(), "sampling [")
	assert.Contains(t, pm.View(), " 50.0%")

	next, cmd = pm.Update(doneMsg{})
	assert.NotNil(t, cmd)
	assert.Empty(t, next.View())
}

func TestProgressZeroInterval(t *testing.T) {
	m := newProgressModel("sampling", 0, time.Now())
	assert.Equal(t, 100.0, m.percent())
}

func TestStartStopProgress(t *testing.T) {
	var buf bytes.Buffer
	p := StartProgress(&buf, "sampling", 50*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Stop())
}
