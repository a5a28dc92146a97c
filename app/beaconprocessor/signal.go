/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// classifiedSample is the preprocessor's output for one raw sample: the
// receiver resolved to its doorway role, the strength bias-adjusted, and the
// threshold classification the FSM consumes.
type classifiedSample struct {
	role        ReceiverRole
	strengthDbm float64
	observedAt  time.Time

	// strong means at or above the energy threshold: a candidate for
	// pair-commit and dominance.
	strong bool
	// active means at or above the active threshold: present at all.
	active bool
}

// classify resolves the receiver role, applies the per-receiver bias offset
// and classifies the sample against the configured thresholds.
//
// Samples below the floor are discarded outright and return nil: they update
// nothing, not even recency, to suppress reflection and multipath tails.
func (e *Engine) classify(receiverID string, rssiDbm float64, observedAt time.Time) (*classifiedSample, bool) {
	recv, found := e.receivers[receiverID]
	if !found {
		return nil, false
	}

	adjusted := rssiDbm + recv.BiasDb
	if adjusted < e.profile.Thresholds.FloorDbm {
		log.Debugf("discarding below-floor sample %.1f dBm from %s", adjusted, receiverID)
		return nil, true
	}

	return &classifiedSample{
		role:        recv.Role,
		strengthDbm: adjusted,
		observedAt:  observedAt,
		strong:      adjusted >= e.profile.Thresholds.EnergyDbm,
		active:      adjusted >= e.profile.Thresholds.ActiveDbm,
	}, true
}

// roleStats tracks short-term signal history for one doorway role of one
// beacon: recency of strong samples, the start of the current continuous
// strong run, and a windowed mean for the trend gate.
type roleStats struct {
	lastRead       time.Time // last accepted sample of any strength
	lastStrong     time.Time // last sample at or above the energy threshold
	strongRunStart time.Time // start of the uninterrupted strong run, zero when broken
	lastDbm        float64
	rssiMw         *CircularBuffer
}

func newRoleStats() *roleStats {
	return &roleStats{
		rssiMw: NewCircularBuffer(defaultWindowSize),
	}
}

// update folds a classified sample into the stats. weakTimeout bounds the
// gap that still counts as one continuous strong run.
func (stats *roleStats) update(s *classifiedSample, weakTimeout time.Duration) {
	stats.rssiMw.AddValue(rssiToMilliwatts(s.strengthDbm))
	stats.lastDbm = s.strengthDbm

	if s.observedAt.After(stats.lastRead) {
		stats.lastRead = s.observedAt
	}

	if !s.strong {
		return
	}
	if stats.lastStrong.IsZero() || s.observedAt.Sub(stats.lastStrong) > weakTimeout {
		stats.strongRunStart = s.observedAt
	}
	if s.observedAt.After(stats.lastStrong) {
		stats.lastStrong = s.observedAt
	}
}

func (stats *roleStats) meanDbm() float64 {
	return milliwattsToRssi(stats.rssiMw.GetMean())
}

// quietAt reports whether the role has produced no strong sample within
// weakTimeout of now.
func (stats *roleStats) quietAt(now time.Time, weakTimeout time.Duration) bool {
	return stats.lastStrong.IsZero() || now.Sub(stats.lastStrong) > weakTimeout
}

// trendingStronger reports whether the role's latest level sits above its
// short-term mean, i.e. its signal is rising. Needs at least two samples in
// the window to mean anything.
func (stats *roleStats) trendingStronger() bool {
	if stats.rssiMw.GetCount() < 2 {
		return false
	}
	return stats.lastDbm > stats.meanDbm()
}
