package metrics_collectors

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/mem"
)

// MemoryMetricCollector collects the percentage of used virtual memory.
type MemoryMetricCollector struct {
	Logger zerolog.Logger
}

// Name returns the identifier for the memory metric collector.
func (m *MemoryMetricCollector) Name() string {
	return "memory"
}

// Collect retrieves the percentage of used virtual memory.
func (m *MemoryMetricCollector) Collect(ctx context.Context) (float64, error) {
	memStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}

	m.Logger.Debug().
		Float64("memory_usage_percent", memStats.UsedPercent).
		Msg("Memory usage collected successfully")
	return memStats.UsedPercent, nil
}

// Unit specifies the unit for memory usage metrics.
func (m *MemoryMetricCollector) Unit() string {
	return "percentage"
}
