package model

import "time"

// CoreTicks holds cumulative busy and idle ticks for one logical core.
type CoreTicks struct {
	Busy uint64
	Idle uint64
}

// Total returns busy + idle.
func (c CoreTicks) Total() uint64 { return c.Busy + c.Idle }

// CPUTimingSample is one reading of cumulative per-core counters. A single
// sample carries no usage meaning; two are needed to compute a rate.
type CPUTimingSample struct {
	Taken time.Time
	Cores []CoreTicks
}

// CPUUsage is derived utilization in percent, 0-100.
// Total is always the mean of PerCore.
type CPUUsage struct {
	Total   float64   `json:"totalPercent" yaml:"totalPercent"`
	PerCore []float64 `json:"perCorePercent" yaml:"perCorePercent"`
}
