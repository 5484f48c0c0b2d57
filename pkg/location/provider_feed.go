package location

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ProviderFeed polls a Provider on a fixed interval and forwards valid samples.
type ProviderFeed struct {
	provider Provider
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewProviderFeed creates a feed polling provider every interval.
func NewProviderFeed(provider Provider, interval, timeout time.Duration, logger zerolog.Logger) *ProviderFeed {
	return &ProviderFeed{
		provider: provider,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Subscribe polls until ctx is done. Provider failures are logged and skipped.
func (p *ProviderFeed) Subscribe(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx, handler)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *ProviderFeed) poll(ctx context.Context, handler Handler) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	loc, err := p.provider.GetLocation(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to get location from provider")
		return
	}

	coord := loc.Coordinate()
	if err := coord.Validate(); err != nil {
		p.logger.Warn().Err(err).Msg("Discarding invalid location sample")
		return
	}
	handler(coord)
}
