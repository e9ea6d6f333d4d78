// Package gpu enumerates display adapters. Static identity is read from
// the Linux DRM sysfs tree (/sys/class/drm/card*) and, when the NVIDIA
// tooling is installed, from nvidia-smi. Probers are combined with a Chain
// so a host with both sources reports each adapter once.
package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
)

// Adapter is the static identity of one GPU.
type Adapter struct {
	Vendor    string
	Model     string
	Driver    string
	PCISlot   string
	DeviceID  string
	VRAMBytes uint64
}

// Describe renders the adapter as a single display line, for example
// "NVIDIA GeForce RTX 4090 (driver nvidia, PCI 0000:01:00.0, 24 GiB VRAM)".
func (a Adapter) Describe() string {
	name := a.Model
	if name == "" {
		name = strings.TrimSpace(strings.Join([]string{a.Vendor, "GPU", a.DeviceID}, " "))
	}

	var details []string
	if a.Driver != "" {
		details = append(details, "driver "+a.Driver)
	}
	if a.PCISlot != "" {
		details = append(details, "PCI "+a.PCISlot)
	}
	if a.VRAMBytes > 0 {
		details = append(details, humanize.IBytes(a.VRAMBytes)+" VRAM")
	}
	if len(details) == 0 {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(details, ", "))
}

// merge overlays the non-empty fields of other onto a.
func (a Adapter) merge(other Adapter) Adapter {
	if other.Vendor != "" {
		a.Vendor = other.Vendor
	}
	if other.Model != "" {
		a.Model = other.Model
	}
	if other.Driver != "" {
		a.Driver = other.Driver
	}
	if other.DeviceID != "" {
		a.DeviceID = other.DeviceID
	}
	if other.VRAMBytes > 0 {
		a.VRAMBytes = other.VRAMBytes
	}
	return a
}

// Prober enumerates adapters from one source. Returning no adapters and
// no error means the source found none. A source that cannot work on
// this platform returns an UNSUPPORTED_PLATFORM error.
type Prober interface {
	Enumerate(ctx context.Context) ([]Adapter, error)
}

// Chain runs probers in order and merges their results by PCI slot;
// later probers refine adapters found by earlier ones.
type Chain []Prober

// Enumerate implements Prober. It fails with UNSUPPORTED_PLATFORM only
// when every prober in the chain is unsupported.
func (c Chain) Enumerate(ctx context.Context) ([]Adapter, error) {
	var (
		adapters    []Adapter
		unsupported int
	)
	for _, p := range c {
		found, err := p.Enumerate(ctx)
		if syserrors.Is(err, syserrors.ErrCodeUnsupportedPlatform) {
			slog.Debug("gpu prober unsupported", slog.String("prober", fmt.Sprintf("%T", p)))
			unsupported++
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, a := range found {
			if a.PCISlot == "" {
				adapters = append(adapters, a)
				continue
			}
			_, idx, ok := lo.FindIndexOf(adapters, func(existing Adapter) bool {
				return existing.PCISlot == a.PCISlot
			})
			if ok {
				adapters[idx] = adapters[idx].merge(a)
				continue
			}
			adapters = append(adapters, a)
		}
	}
	if len(c) > 0 && unsupported == len(c) {
		return nil, syserrors.New(syserrors.ErrCodeUnsupportedPlatform, "no GPU enumeration mechanism on this platform")
	}
	return adapters, nil
}

// normalizePCISlot lowercases a PCI address and trims the 8-digit domain
// nvidia-smi prints ("00000000:01:00.0") to the sysfs form ("0000:01:00.0").
func normalizePCISlot(slot string) string {
	slot = strings.ToLower(strings.TrimSpace(slot))
	domain, rest, ok := strings.Cut(slot, ":")
	if !ok {
		return slot
	}
	if len(domain) > 4 {
		domain = domain[len(domain)-4:]
	}
	return domain + ":" + rest
}

// PCIVendorName maps a PCI vendor ID to a human-readable name.
func PCIVendorName(vendorID string) string {
	switch strings.ToLower(vendorID) {
	case "1002":
		return "AMD"
	case "10de":
		return "NVIDIA"
	case "8086":
		return "Intel"
	case "":
		return ""
	default:
		return "0x" + strings.ToLower(vendorID)
	}
}
