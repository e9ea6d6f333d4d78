// Package snapshot assembles one SystemSnapshot from a source.Source.
//
// The static readers (identity, topology, OS, memory, GPU) run in
// parallel with the CPU usage task. The usage task is strictly ordered:
// timing sample t0, a cancellable wait of Interval, timing sample t1,
// then sampler.Usage. A failed reader either fails the whole snapshot
// (Strict) or is recorded as unavailable (Lenient). A Timeout always
// fails the snapshot.
package snapshot

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
	"github.com/Dicklesworthstone/sysinfo/internal/sampler"
	"github.com/Dicklesworthstone/sysinfo/internal/source"
)

// Mode selects the failure policy for individual readers.
type Mode int

const (
	// Strict fails the snapshot with the first reader error.
	Strict Mode = iota
	// Lenient marks failed fields unavailable and continues.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// FieldError attributes a reader error to the report field it was
// reading. The wrapped error keeps its code.
type FieldError struct {
	Field model.Field
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *FieldError) Unwrap() error { return e.Err }

// Collector produces snapshots. The zero Mode is Strict.
type Collector struct {
	// Source is the open session to read from. Required.
	Source source.Source

	// Interval separates the two CPU timing samples.
	Interval time.Duration

	// Mode is the reader failure policy.
	Mode Mode

	// Timeout bounds the whole snapshot when positive.
	Timeout time.Duration

	// Metrics is optional.
	Metrics *Metrics
}

// Collect takes one snapshot.
func (c *Collector) Collect(ctx context.Context) (*model.Snapshot, error) {
	if c.Source == nil {
		return nil, syserrors.New(syserrors.ErrCodeInternal, "snapshot collector has no source")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start := time.Now()
	slog.Debug("starting snapshot",
		slog.Duration("interval", c.Interval),
		slog.String("mode", c.Mode.String()),
		slog.Duration("timeout", c.Timeout))

	snap := &model.Snapshot{
		Taken:    start,
		Interval: c.Interval,
		GPUs:     []string{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	read := func(field model.Field, fn func(ctx context.Context) error) {
		g.Go(func() error {
			readerStart := time.Now()
			err := fn(gctx)
			var se *syserrors.StructuredError
			if err != nil && !stderrors.As(err, &se) {
				err = syserrors.FromOS("unclassified reader error", err)
			}
			c.Metrics.observeReader(field, time.Since(readerStart), err)
			if err == nil {
				slog.Debug("reader finished", slog.String("field", string(field)))
				return nil
			}
			// Only the snapshot's own cancellation aborts a lenient run. A
			// reader that timed out on its own is just an unavailable field.
			if c.Mode == Lenient && gctx.Err() == nil {
				code := syserrors.CodeOf(err)
				slog.Warn("field unavailable",
					slog.String("field", string(field)),
					slog.String("code", string(code)),
					slog.String("error", err.Error()))
				mu.Lock()
				snap.MarkUnavailable(field, code)
				mu.Unlock()
				return nil
			}
			slog.Debug("reader failed", slog.String("field", string(field)), slog.String("error", err.Error()))
			return &FieldError{Field: field, Err: err}
		})
	}

	read(model.FieldCPUName, func(ctx context.Context) error {
		name, err := c.Source.CPUIdentity(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.CPUName = name
		mu.Unlock()
		return nil
	})

	read(model.FieldCPUCores, func(ctx context.Context) error {
		topo, err := c.Source.CPUTopology(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Topology = topo
		mu.Unlock()
		return nil
	})

	read(model.FieldOS, func(ctx context.Context) error {
		osInfo, err := c.Source.OSInfo(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.OS = osInfo
		mu.Unlock()
		return nil
	})

	read(model.FieldMemory, func(ctx context.Context) error {
		m, err := c.Source.Memory(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Memory = m
		mu.Unlock()
		return nil
	})

	read(model.FieldGPU, func(ctx context.Context) error {
		gpus, err := c.Source.GPUInfo(ctx)
		if err != nil {
			return err
		}
		if gpus == nil {
			gpus = []string{}
		}
		mu.Lock()
		snap.GPUs = gpus
		mu.Unlock()
		return nil
	})

	read(model.FieldCPUUsage, func(ctx context.Context) error {
		usage, err := c.sampleUsage(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Usage = usage
		mu.Unlock()
		return nil
	})

	// A reader that ignores its context must not hold the snapshot past
	// the deadline, so Wait runs on its own goroutine. Such a reader keeps
	// running after Collect returns and its result is discarded.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.Metrics.observeSnapshot(nil, time.Since(start), syserrors.ErrCodeTimeout)
		return nil, syserrors.WrapWithContext(syserrors.ErrCodeTimeout, "snapshot exceeded deadline", ctx.Err(),
			map[string]any{"timeout": c.Timeout.String()})
	}
	if err != nil {
		if isContextError(err) && !stderrors.As(err, new(*FieldError)) {
			err = syserrors.Wrap(syserrors.ErrCodeInternal, "snapshot cancelled", err)
		}
		c.Metrics.observeSnapshot(nil, time.Since(start), syserrors.CodeOf(err))
		return nil, err
	}

	if snap.Available(model.FieldCPUCores) && snap.Available(model.FieldCPUUsage) &&
		len(snap.Usage.PerCore) != snap.Topology.Logical {
		slog.Debug("per-core sample count differs from logical core count",
			slog.Int("sampled", len(snap.Usage.PerCore)),
			slog.Int("logical", snap.Topology.Logical))
	}

	c.Metrics.observeSnapshot(snap, time.Since(start), "")
	slog.Debug("snapshot complete",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("unavailable", len(snap.Unavailable)))
	return snap, nil
}

// sampleUsage takes t0, waits Interval, takes t1. The order is fixed.
func (c *Collector) sampleUsage(ctx context.Context) (model.CPUUsage, error) {
	t0, err := c.Source.CPUTiming(ctx)
	if err != nil {
		return model.CPUUsage{}, err
	}
	if err := wait(ctx, c.Interval); err != nil {
		return model.CPUUsage{}, syserrors.FromOS("interrupted between CPU samples", err)
	}
	t1, err := c.Source.CPUTiming(ctx)
	if err != nil {
		return model.CPUUsage{}, err
	}
	return sampler.Usage(t0, t1)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isContextError(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
