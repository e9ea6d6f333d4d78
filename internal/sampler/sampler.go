// Package sampler turns two cumulative CPU timing samples into
// utilization percentages. It never sleeps or reads the OS; callers
// supply both samples.
package sampler

import (
	"fmt"

	"github.com/samber/lo"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

// Usage computes per-core and total utilization between prev and cur.
// A core whose counters did not advance reports exactly 0. Total is the
// arithmetic mean of the per-core values.
func Usage(prev, cur model.CPUTimingSample) (model.CPUUsage, error) {
	if len(cur.Cores) == 0 {
		return model.CPUUsage{}, syserrors.New(syserrors.ErrCodeMalformedData, "timing sample has no cores")
	}
	if len(prev.Cores) != len(cur.Cores) {
		return model.CPUUsage{}, syserrors.New(syserrors.ErrCodeMalformedData,
			fmt.Sprintf("core count changed between samples: %d -> %d", len(prev.Cores), len(cur.Cores)))
	}

	perCore := make([]float64, len(cur.Cores))
	for i := range cur.Cores {
		pct, err := corePercent(prev.Cores[i], cur.Cores[i])
		if err != nil {
			return model.CPUUsage{}, syserrors.WrapWithContext(syserrors.ErrCodeMalformedData,
				fmt.Sprintf("core %d", i), err, map[string]any{"core": i})
		}
		perCore[i] = pct
	}

	return model.CPUUsage{
		Total:   lo.Sum(perCore) / float64(len(perCore)),
		PerCore: perCore,
	}, nil
}

// corePercent is 100 * busy delta / total delta. A busy counter that runs
// backwards means the core was reset or replaced and is rejected. Idle
// includes iowait, which the kernel documents as able to decrease, so a
// negative idle delta counts as no idle time.
func corePercent(prev, cur model.CoreTicks) (float64, error) {
	if cur.Busy < prev.Busy {
		return 0, fmt.Errorf("busy counter went backwards: %d -> %d", prev.Busy, cur.Busy)
	}
	busy := cur.Busy - prev.Busy
	var idle uint64
	if cur.Idle > prev.Idle {
		idle = cur.Idle - prev.Idle
	}
	total := busy + idle
	if total == 0 {
		return 0, nil
	}
	return 100 * float64(busy) / float64(total), nil
}
