package ui

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

const bytesPerGiB = 1 << 30

// Text renders the plain report. The output depends only on snap.
func Text(snap *model.Snapshot) string {
	var b strings.Builder

	line := func(field model.Field, label, format string, args ...any) {
		if code, missing := snap.Unavailable[field]; missing {
			fmt.Fprintf(&b, "%s: unavailable (%s)\n", label, code)
			return
		}
		fmt.Fprintf(&b, "%s: "+format+"\n", append([]any{label}, args...)...)
	}

	line(model.FieldCPUName, "CPU Name", "%s", snap.CPUName)
	line(model.FieldCPUCores, "CPU Cores", "%d physical, %d logical",
		snap.Topology.Physical, snap.Topology.Logical)
	line(model.FieldOS, "OS Info", "%s", snap.OS)
	line(model.FieldMemory, "Total RAM", "%.2f GB", bytesToGiB(snap.Memory.TotalBytes))
	line(model.FieldMemory, "Used RAM", "%.2f GB", bytesToGiB(snap.Memory.UsedBytes))

	if code, missing := snap.Unavailable[model.FieldGPU]; missing {
		fmt.Fprintf(&b, "GPU Info: unavailable (%s)\n", code)
	} else {
		b.WriteString("GPU Info:\n")
		if len(snap.GPUs) == 0 {
			b.WriteString("  none detected\n")
		}
		for _, gpu := range snap.GPUs {
			fmt.Fprintf(&b, "  %s\n", gpu)
		}
	}

	if code, missing := snap.Unavailable[model.FieldCPUUsage]; missing {
		fmt.Fprintf(&b, "Total CPU Usage: unavailable (%s)\n", code)
		fmt.Fprintf(&b, "CPU Core Usages: unavailable (%s)\n", code)
	} else {
		fmt.Fprintf(&b, "Total CPU Usage: %.2f%%\n", snap.Usage.Total)
		b.WriteString("CPU Core Usages:\n")
		for i, pct := range snap.Usage.PerCore {
			fmt.Fprintf(&b, "  Core %d: %.2f%%\n", i, pct)
		}
	}

	return b.String()
}

func bytesToGiB(b uint64) float64 { return float64(b) / bytesPerGiB }
