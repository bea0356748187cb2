package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// SleeptimeScheduler drives a Sleeptime pattern's periodic tick: a cron
// schedule when SleeptimeConfig.CheckCron is set, else a plain interval
// ticker against CheckInterval (defaulting to five minutes when neither
// is configured).
type SleeptimeScheduler struct {
	tick   func(ctx context.Context)
	cron   *cron.Cron
	ticker *time.Ticker
}

// NewSleeptimeScheduler builds a scheduler for cfg. tick is called once
// per fire: with a background context on the cron path, and with Run's
// ctx on the interval path.
func NewSleeptimeScheduler(cfg SleeptimeConfig, tick func(ctx context.Context)) (*SleeptimeScheduler, error) {
	s := &SleeptimeScheduler{tick: tick}
	if cfg.CheckCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.CheckCron, func() { tick(context.Background()) }); err != nil {
			return nil, fmt.Errorf("coordination: parse check_cron: %w", err)
		}
		s.cron = c
		return s, nil
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.ticker = time.NewTicker(interval)
	return s, nil
}

// Run blocks, firing tick on each schedule match, until ctx is
// cancelled.
func (s *SleeptimeScheduler) Run(ctx context.Context) {
	if s.cron != nil {
		s.cron.Start()
		<-ctx.Done()
		<-s.cron.Stop().Done()
		return
	}

	defer s.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.tick(ctx)
		}
	}
}
