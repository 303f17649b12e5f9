package availability

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

// Trigger is the reason a poll cycle ran.
type Trigger int

const (
	TriggerInterval Trigger = iota
	TriggerFilter
	TriggerVisible
	TriggerRefresh
)

func (t Trigger) String() string {
	switch t {
	case TriggerInterval:
		return "interval"
	case TriggerFilter:
		return "filter"
	case TriggerVisible:
		return "visible"
	case TriggerRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval = 30 * time.Second
	maxPollInterval     = 5 * time.Minute
)

// PollConfig controls the poll loop.
type PollConfig struct {
	Interval time.Duration
	// MaxInterval caps the stretched interval after repeated failures.
	MaxInterval time.Duration
}

// SetFilter validates filter and, when valid, asks a running poll loop to
// search with it. An invalid filter is rejected without any request.
func (b *Browser) SetFilter(filter models.RoomFilter) error {
	if err := ValidateFilter(filter); err != nil {
		telemetry.GetMetrics().SearchesRejectedTotal.Add(context.Background(), 1)
		return err
	}

	b.mu.Lock()
	b.filter = filter
	b.mu.Unlock()

	b.trigger(TriggerFilter)
	return nil
}

// Visible signals the view came back to the foreground.
func (b *Browser) Visible() {
	b.trigger(TriggerVisible)
}

// RequestRefresh asks a running poll loop for an immediate search.
func (b *Browser) RequestRefresh() {
	b.trigger(TriggerRefresh)
}

func (b *Browser) trigger(t Trigger) {
	select {
	case b.triggers <- t:
	default:
		// a pending trigger already covers this one
	}
}

// Run searches immediately and then on every interval tick and trigger until
// ctx is done. Consecutive failures stretch the interval with exponential
// backoff; a success restores it.
func (b *Browser) Run(ctx context.Context, cfg PollConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = max(maxPollInterval, cfg.Interval)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Interval
	bo.MaxInterval = cfg.MaxInterval

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	failures := 0

	poll := func(t Trigger) {
		_, err := b.Refresh(ctx)
		switch {
		case err == nil:
			if failures > 0 {
				log.Info().Int("failures", failures).Msg("availability polling recovered")
				bo.Reset()
				ticker.Reset(cfg.Interval)
			}
			failures = 0
		case errors.Is(err, ErrStale), ctx.Err() != nil:
		default:
			failures++
			next := bo.NextBackOff()
			ticker.Reset(next)
			telemetry.GetMetrics().PollFailuresTotal.Add(ctx, 1)
			log.Warn().
				Err(err).
				Str("trigger", t.String()).
				Int("failures", failures).
				Dur("next", next).
				Msg("availability poll failed")
		}
	}

	log.Debug().Dur("interval", cfg.Interval).Msg("availability poller started")

	poll(TriggerRefresh)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("availability poller stopped")
			return nil
		case <-ticker.C:
			poll(TriggerInterval)
		case t := <-b.triggers:
			poll(t)
		}
	}
}
