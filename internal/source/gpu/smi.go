package gpu

import (
	"bufio"
	"context"
	stderrors "errors"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
)

const defaultSMITimeout = 2 * time.Second

// runner executes a command and returns its combined output.
type runner func(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)

// SMIProber queries nvidia-smi for NVIDIA adapters. A host without the
// binary, or whose driver is not loaded, has no adapters.
type SMIProber struct {
	Binary  string
	Timeout time.Duration
	run     runner
}

// NewSMIProber creates a prober invoking binary (default "nvidia-smi").
func NewSMIProber(binary string) *SMIProber {
	if binary == "" {
		binary = "nvidia-smi"
	}
	return &SMIProber{Binary: binary, Timeout: defaultSMITimeout, run: runCmd}
}

// Enumerate implements Prober.
func (p *SMIProber) Enumerate(ctx context.Context) ([]Adapter, error) {
	out, err := p.run(ctx, p.Timeout, p.Binary,
		"--query-gpu=name,pci.bus_id,memory.total",
		"--format=csv,noheader,nounits")

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case stderrors.Is(err, exec.ErrNotFound):
		slog.Debug("nvidia-smi not installed", slog.String("binary", p.Binary))
		return nil, nil
	case stderrors.As(err, &exitErr):
		slog.Debug("nvidia-smi failed, assuming no NVIDIA driver",
			slog.Int("exit", exitErr.ExitCode()),
			slog.String("output", strings.TrimSpace(out)))
		return nil, nil
	default:
		return nil, syserrors.WrapWithContext(syserrors.Classify(err), "nvidia-smi query failed", err,
			map[string]any{"command": p.Binary})
	}
	return parseSMI(out), nil
}

// parseSMI parses "name, pci.bus_id, memory.total" CSV rows, memory in MiB:
//
//	NVIDIA GeForce RTX 4090, 00000000:01:00.0, 24564
func parseSMI(out string) []Adapter {
	var adapters []Adapter
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 3 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		a := Adapter{
			Vendor:  "NVIDIA",
			Model:   name,
			Driver:  "nvidia",
			PCISlot: normalizePCISlot(parts[1]),
		}
		if mib, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil && mib > 0 {
			a.VRAMBytes = uint64(mib) * 1024 * 1024
		}
		adapters = append(adapters, a)
	}
	return adapters
}

// smiWaitDelay bounds how long a killed command's leftover children may
// hold the output pipe open.
const smiWaitDelay = 250 * time.Millisecond

func runCmd(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = smiWaitDelay
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return string(out), err
}
