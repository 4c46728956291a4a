package sweep

import (
	"context"
	"log"
	"time"

	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/engine"
)

// Sweeper settles expired trades on a fixed interval so settlements happen
// even when nobody is reading. Redundant with the settle-on-read sweep (both
// are idempotent) but it bounds settlement latency for push consumers.
type Sweeper struct {
	engine   *engine.Engine
	interval time.Duration
	sinks    []chan<- engine.Settlement
}

func New(eng *engine.Engine, cfg config.SweepConfig, sinks ...chan<- engine.Settlement) *Sweeper {
	return &Sweeper{
		engine:   eng,
		interval: time.Duration(cfg.IntervalSecs) * time.Second,
		sinks:    sinks,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			settled, err := s.engine.SettleExpired()
			if err != nil {
				log.Printf("Sweep failed: %v", err)
				continue
			}
			for _, settlement := range settled {
				s.publish(settlement)
			}
		}
	}
}

func (s *Sweeper) publish(settlement engine.Settlement) {
	for _, sink := range s.sinks {
		select {
		case sink <- settlement:
		default:
			// Channel full, skip
		}
	}
}
