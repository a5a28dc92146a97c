/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sweeper drives time-based transitions on a fixed cadence. Pending-state
// expiry and idle collapse must happen even when a beacon goes out of range
// mid-crossing and never produces another sample.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Run ticks until the context is cancelled. Each tick shares the per-beacon
// serialization with sample-driven steps, so the sweep can never race a live
// sample for the same beacon.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Infof("timeout sweeper running every %v", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("timeout sweeper stopped")
			return
		case <-ticker.C:
			s.engine.Sweep(s.engine.now())
		}
	}
}
