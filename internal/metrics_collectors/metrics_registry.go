package metrics_collectors

import (
	"context"

	"github.com/rs/zerolog"
)

// MetricsRegistry holds the collectors sampled for each status message.
type MetricsRegistry struct {
	collectors []MetricCollector
	logger     zerolog.Logger
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	return &MetricsRegistry{logger: logger}
}

// NewDefaultMetricsRegistry registers the cpu, memory and goroutine collectors.
func NewDefaultMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry(logger)
	r.Register(&CPUMetricCollector{Logger: logger})
	r.Register(&MemoryMetricCollector{Logger: logger})
	r.Register(&GoroutineMetricCollector{})
	return r
}

// Register adds a new metric collector to the registry. A collector with the
// same name replaces the earlier one.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	for i, c := range r.collectors {
		if c.Name() == collector.Name() {
			r.collectors[i] = collector
			return
		}
	}
	r.collectors = append(r.collectors, collector)
}

// Snapshot collects every metric. Failed collectors are logged and left out.
func (r *MetricsRegistry) Snapshot(ctx context.Context) map[string]float64 {
	values := make(map[string]float64, len(r.collectors))
	for _, c := range r.collectors {
		v, err := c.Collect(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("metric", c.Name()).Msg("Failed to collect metric")
			continue
		}
		values[c.Name()] = v
	}
	return values
}
