package gpu

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
)

func fakeRunner(out string, err error) runner {
	return func(context.Context, time.Duration, string, ...string) (string, error) {
		return out, err
	}
}

func TestSMIProberEnumerate(t *testing.T) {
	p := NewSMIProber("")
	p.run = fakeRunner("NVIDIA GeForce RTX 4090, 00000000:01:00.0, 24564\n"+
		"NVIDIA A100-SXM4-80GB, 00000000:81:00.0, 81920\n"+
		"garbage line\n", nil)

	got, err := p.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", got[0].Model)
	assert.Equal(t, "0000:01:00.0", got[0].PCISlot)
	assert.Equal(t, uint64(24564)*1024*1024, got[0].VRAMBytes)
	assert.Equal(t, "0000:81:00.0", got[1].PCISlot)
}

func TestSMIProberMissingBinary(t *testing.T) {
	p := NewSMIProber("definitely-not-a-real-nvidia-smi")

	got, err := p.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSMIProberNotFoundError(t *testing.T) {
	p := NewSMIProber("")
	p.run = fakeRunner("", &exec.Error{Name: "nvidia-smi", Err: exec.ErrNotFound})

	got, err := p.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSMIProberTimeout(t *testing.T) {
	p := NewSMIProber("")
	p.run = fakeRunner("", context.DeadlineExceeded)

	_, err := p.Enumerate(context.Background())
	assert.True(t, syserrors.Is(err, syserrors.ErrCodeTimeout), "got %v", err)
}

func TestRunCmdKillsForkedChildren(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script")
	}
	script := filepath.Join(t.TempDir(), "nvidia-smi")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5 &\nsleep 5\n"), 0o755))

	start := time.Now()
	_, err := runCmd(context.Background(), 100*time.Millisecond, script)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMIProberHungCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script")
	}
	script := filepath.Join(t.TempDir(), "nvidia-smi")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	p := NewSMIProber(script)
	p.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := p.Enumerate(context.Background())
	assert.True(t, syserrors.Is(err, syserrors.ErrCodeTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
