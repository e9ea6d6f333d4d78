package gpu

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
)

// DRMProber walks /sys/class/drm/card* and reads static identity from
// sysfs, enriching proprietary-nvidia cards from /proc/driver/nvidia.
type DRMProber struct {
	// sysRoot and procRoot default to "/sys" and "/proc"; tests point
	// them at synthetic trees.
	sysRoot   string
	procRoot  string
	supported bool
}

// NewDRMProber creates a prober over the real /sys and /proc.
func NewDRMProber() *DRMProber {
	return &DRMProber{sysRoot: "/sys", procRoot: "/proc", supported: runtime.GOOS == "linux"}
}

func newDRMProberFrom(sysRoot, procRoot string) *DRMProber {
	return &DRMProber{sysRoot: sysRoot, procRoot: procRoot, supported: true}
}

// Enumerate implements Prober. A missing class/drm directory is a host
// without DRM devices, not an error.
func (p *DRMProber) Enumerate(ctx context.Context) ([]Adapter, error) {
	if !p.supported {
		return nil, syserrors.New(syserrors.ErrCodeUnsupportedPlatform, "DRM sysfs is only available on linux")
	}

	drmBase := filepath.Join(p.sysRoot, "class/drm")
	entries, err := os.ReadDir(drmBase)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, syserrors.FromOS("failed to list "+drmBase, err)
	}

	var cards []string
	for _, entry := range entries {
		if isCardDevice(entry.Name()) {
			cards = append(cards, entry.Name())
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cardIndex(cards[i]) < cardIndex(cards[j]) })

	var adapters []Adapter
	for _, name := range cards {
		if err := ctx.Err(); err != nil {
			return nil, syserrors.FromOS("gpu enumeration interrupted", err)
		}
		devicePath := filepath.Join(drmBase, name, "device")
		adapter, ok, err := p.readCard(devicePath)
		if err != nil {
			return nil, err
		}
		if ok {
			adapters = append(adapters, adapter)
		}
	}
	return adapters, nil
}

// readCard returns ok=false for cards that are not backed by a GPU
// (firmware framebuffers, cards without a device link).
func (p *DRMProber) readCard(devicePath string) (Adapter, bool, error) {
	uevent, err := readAttr(filepath.Join(devicePath, "uevent"))
	if err != nil {
		return Adapter{}, false, err
	}
	if uevent == "" {
		return Adapter{}, false, nil
	}

	driver, err := readDriverName(devicePath)
	if err != nil {
		return Adapter{}, false, err
	}
	if driver == "simpledrm" || driver == "efifb" {
		return Adapter{}, false, nil
	}

	a := parseUevent(uevent)
	a.Driver = driver

	switch driver {
	case "amdgpu":
		if a.Model, err = readAttr(filepath.Join(devicePath, "product_name")); err != nil {
			return Adapter{}, false, err
		}
		vram, err := readAttr(filepath.Join(devicePath, "mem_info_vram_total"))
		if err != nil {
			return Adapter{}, false, err
		}
		a.VRAMBytes, _ = strconv.ParseUint(vram, 10, 64)
	case "nvidia":
		if a.PCISlot != "" {
			if a.Model, err = p.nvidiaModel(a.PCISlot); err != nil {
				return Adapter{}, false, err
			}
		}
	}
	return a, true, nil
}

// nvidiaModel reads the "Model:" line of
// /proc/driver/nvidia/gpus/<slot>/information:
//
//	Model:           NVIDIA GeForce RTX 4090
//	GPU UUID:        GPU-xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func (p *DRMProber) nvidiaModel(slot string) (string, error) {
	data, err := readAttr(filepath.Join(p.procRoot, "driver/nvidia/gpus", slot, "information"))
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(data, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(key) == "Model" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", nil
}

// parseUevent extracts PCI identity from a device uevent file:
//
//	PCI_ID=1002:744A
//	PCI_SLOT_NAME=0000:c3:00.0
func parseUevent(data string) Adapter {
	var a Adapter
	for _, line := range strings.Split(data, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "PCI_ID":
			vendor, device, ok := strings.Cut(value, ":")
			if ok {
				a.Vendor = PCIVendorName(vendor)
				a.DeviceID = "0x" + strings.ToLower(device)
			}
		case "PCI_SLOT_NAME":
			a.PCISlot = normalizePCISlot(value)
		}
	}
	return a
}

// isCardDevice matches card0, card1, ... but not connectors (card0-DP-1)
// or render nodes (renderD128).
func isCardDevice(name string) bool {
	suffix, ok := strings.CutPrefix(name, "card")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cardIndex(name string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(name, "card"))
	return n
}

// readDriverName returns the basename of the device's driver symlink,
// or "" when the device is unbound.
func readDriverName(devicePath string) (string, error) {
	link, err := os.Readlink(filepath.Join(devicePath, "driver"))
	if stderrors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", syserrors.FromOS("failed to read driver link for "+devicePath, err)
	}
	return filepath.Base(link), nil
}

// readAttr reads a sysfs or procfs attribute. An absent attribute is ""
// with no error; any other failure is classified and returned.
func readAttr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", syserrors.FromOS("failed to read "+path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
