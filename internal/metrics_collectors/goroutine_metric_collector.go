package metrics_collectors

import (
	"context"
	"runtime"
)

// GoroutineMetricCollector collects the number of active goroutines.
// A count that keeps growing across status messages points at leaked loops.
type GoroutineMetricCollector struct{}

func (g *GoroutineMetricCollector) Name() string {
	return "goroutines"
}

func (g *GoroutineMetricCollector) Collect(ctx context.Context) (float64, error) {
	return float64(runtime.NumGoroutine()), nil
}

func (g *GoroutineMetricCollector) Unit() string {
	return "count"
}
