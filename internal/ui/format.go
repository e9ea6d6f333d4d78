// Package ui renders a finished snapshot. It only formats; errors from
// collection never reach it.
package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

// Format is the report encoding.
type Format string

const (
	// FormatText is the stable line-per-field report.
	FormatText Format = "text"
	// FormatJSON is the snapshot as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML is the snapshot as YAML.
	FormatYAML Format = "yaml"
	// FormatPretty is a styled card layout for terminals.
	FormatPretty Format = "pretty"
)

func (f Format) IsUnknown() bool {
	switch f {
	case FormatText, FormatJSON, FormatYAML, FormatPretty:
		return false
	default:
		return true
	}
}

// SupportedFormats returns every accepted format name.
func SupportedFormats() []string {
	return []string{
		string(FormatText),
		string(FormatJSON),
		string(FormatYAML),
		string(FormatPretty),
	}
}

// Writer renders snapshots to one destination in one format.
type Writer struct {
	format Format
	output io.Writer
}

// NewWriter creates a Writer. A nil output means os.Stdout and an unknown
// format falls back to text.
func NewWriter(format Format, output io.Writer) *Writer {
	if output == nil {
		output = os.Stdout
	}
	if format.IsUnknown() {
		slog.Warn("unknown format, defaulting to text", "format", format)
		format = FormatText
	}
	return &Writer{
		format: format,
		output: output,
	}
}

// Render encodes snap fully before writing, so a failed encode writes
// nothing.
func (w *Writer) Render(snap *model.Snapshot) error {
	if snap == nil {
		return syserrors.New(syserrors.ErrCodeInternal, "nothing to render")
	}

	var buf bytes.Buffer
	switch w.format {
	case FormatText:
		buf.WriteString(Text(snap))
	case FormatJSON:
		encoder := json.NewEncoder(&buf)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(snap); err != nil {
			return syserrors.Wrap(syserrors.ErrCodeInternal, "failed to serialize to JSON", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(snap); err != nil {
			return syserrors.Wrap(syserrors.ErrCodeInternal, "failed to serialize to YAML", err)
		}
		if err := encoder.Close(); err != nil {
			return syserrors.Wrap(syserrors.ErrCodeInternal, "failed to serialize to YAML", err)
		}
	case FormatPretty:
		buf.WriteString(Pretty(lipgloss.NewRenderer(w.output), snap))
		buf.WriteByte('\n')
	default:
		return syserrors.New(syserrors.ErrCodeInternal, fmt.Sprintf("unsupported format: %s", w.format))
	}

	if _, err := w.output.Write(buf.Bytes()); err != nil {
		return syserrors.FromOS("failed to write report", err)
	}
	return nil
}
