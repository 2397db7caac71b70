package engine

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
)

const DefaultPollInterval = 10 * time.Second

// Poller drives the engine on a fixed interval. Cycle errors are logged and
// swallowed; a store outage is retried on the next tick, never fatal.
type Poller struct {
	engine   *Engine
	interval time.Duration
}

func NewPoller(engine *Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{engine, interval}
}

func (p *Poller) Run(ctx context.Context) {
	log.Infof("poller started, interval %s", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("poller stopped")
			return
		case <-ticker.C:
			if err := p.engine.RunPollCycle(ctx); err != nil {
				log.Warnf("poll cycle: %v", err)
			}
		}
	}
}
