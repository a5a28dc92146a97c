/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import "time"

// Single-receiver fallback: a deliberately simplified presence model. One
// receiver cannot tell entering from leaving, so the engine only tracks
// Inside (recently heard) and Outside (quiet past the presence window).

// stepSoleSample handles a sample in single-receiver mode. Caller holds the
// beacon's mutex.
func (e *Engine) stepSoleSample(b *Beacon, s *classifiedSample) {
	b.stats[RoleSole].update(s, e.profile.Thresholds.weakTimeout())

	if !s.active {
		return
	}
	if s.observedAt.After(b.lastActivity) {
		b.lastActivity = s.observedAt
	}

	// Presence supersedes any pending absence timer immediately.
	if b.state != Inside {
		e.commit(b, Inside, s.observedAt)
	}
}

// stepSoleTick handles a sweep tick in single-receiver mode. Caller holds the
// beacon's mutex.
func (e *Engine) stepSoleTick(b *Beacon, now time.Time) {
	if b.state != Inside {
		return
	}
	if !b.lastActivity.IsZero() && now.Sub(b.lastActivity) >= e.profile.Thresholds.presenceWindow() {
		e.commit(b, Outside, now)
	}
}
