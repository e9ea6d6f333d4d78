package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

const (
	gaugeFill  = "█"
	gaugeEmpty = "░"
	gaugeWidth = 28
)

// styles are bound to one renderer so color follows the destination.
type styles struct {
	title  lipgloss.Style
	subtle lipgloss.Style
	label  lipgloss.Style
	warn   lipgloss.Style
	card   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("45")),
		subtle: r.NewStyle().Foreground(lipgloss.Color("244")),
		label:  r.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1),
	}
}

// Pretty renders snap as terminal cards.
func Pretty(r *lipgloss.Renderer, snap *model.Snapshot) string {
	st := newStyles(r)

	header := st.title.Render("System Snapshot") + "  " +
		st.subtle.Render(snap.Taken.Format("Mon Jan 2 15:04:05 MST 2006")+
			fmt.Sprintf("  sampled over %s", snap.Interval))

	cpuBody := st.field(snap, model.FieldCPUName, snap.CPUName) + "\n" +
		st.field(snap, model.FieldCPUCores,
			fmt.Sprintf("%d physical, %d logical", snap.Topology.Physical, snap.Topology.Logical))
	cpuCard := st.render("CPU", cpuBody)

	memBody := st.unavailable(snap, model.FieldMemory)
	if memBody == "" {
		memBody = fmt.Sprintf("%s\n%s / %s",
			gaugeBar(pct(snap.Memory.UsedBytes, snap.Memory.TotalBytes), gaugeWidth),
			humanize.IBytes(snap.Memory.UsedBytes),
			humanize.IBytes(snap.Memory.TotalBytes))
	}
	memCard := st.render("Memory", memBody)

	osCard := st.render("OS", st.field(snap, model.FieldOS, snap.OS))

	gpuBody := st.unavailable(snap, model.FieldGPU)
	if gpuBody == "" {
		if len(snap.GPUs) == 0 {
			gpuBody = st.subtle.Render("none detected")
		} else {
			gpuBody = strings.Join(snap.GPUs, "\n")
		}
	}
	gpuCard := st.render("GPU", gpuBody)

	usageBody := st.unavailable(snap, model.FieldCPUUsage)
	if usageBody == "" {
		rows := make([]string, 0, len(snap.Usage.PerCore)+1)
		rows = append(rows, fmt.Sprintf("%-8s %s", "total", gaugeBar(snap.Usage.Total, gaugeWidth)))
		for i, p := range snap.Usage.PerCore {
			rows = append(rows, fmt.Sprintf("%-8s %s", fmt.Sprintf("core %d", i), gaugeBar(p, gaugeWidth)))
		}
		usageBody = strings.Join(rows, "\n")
	}
	usageCard := st.render("CPU Usage", usageBody)

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, cpuCard, memCard, osCard)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, usageCard, gpuCard)

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2)
}

func (st styles) render(title, body string) string {
	return st.card.Render(st.label.Render(title) + "\n" + body)
}

// field returns value, or the unavailable marker for f.
func (st styles) field(snap *model.Snapshot, f model.Field, value string) string {
	if marker := st.unavailable(snap, f); marker != "" {
		return marker
	}
	return value
}

func (st styles) unavailable(snap *model.Snapshot, f model.Field) string {
	code, missing := snap.Unavailable[f]
	if !missing {
		return ""
	}
	return st.warn.Render(fmt.Sprintf("%s unavailable (%s)", f, code))
}

func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

func pct(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}
