/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oarsight/doorway-tracker/pkg/metrics"
)

// stepSample runs one dual-receiver FSM step for an accepted sample. The
// caller holds the beacon's mutex. The decision itself performs no I/O; trip
// and state-change side effects are handed to queue-and-return collaborators.
//
// Check order: pair-commit override, then state-specific logic, then the
// dominance fallback.
func (e *Engine) stepSample(b *Beacon, s *classifiedSample) {
	th := e.profile.Thresholds
	now := s.observedAt

	if s.active && now.After(b.lastActivity) {
		b.lastActivity = now
	}

	own := b.stats[s.role]
	opp := b.stats[s.role.opposite()]

	own.update(s, th.weakTimeout())

	if !s.strong {
		// weak samples refresh recency and trend bookkeeping only
		return
	}

	// Pair-commit override: a strong sample whose opposite role was strong
	// within the direction's window completes the crossing, from any state.
	// This also covers the pending correction: a strong sample on the
	// originating role inside the other direction's window commits back to
	// the pending state's origin.
	if s.role == RoleNear && withinWindow(now, opp.lastStrong, th.enterWindow()) {
		e.commit(b, Entered, now)
		return
	}
	if s.role == RoleFar && withinWindow(now, opp.lastStrong, th.exitWindow()) {
		e.commit(b, Exited, now)
		return
	}

	switch b.state {
	case Idle:
		// First strong detection with no usable history is taken at face
		// value: near-side means the object is inside, far-side outside.
		if s.role == RoleNear {
			e.commit(b, Entered, now)
		} else {
			e.commit(b, Exited, now)
		}
		return

	case Entered:
		// A strong near-side sample while the far side has gone quiet and is
		// not rising starts an exit attempt.
		if s.role == RoleNear && now.After(b.lastTransition) &&
			opp.quietAt(now, th.weakTimeout()) && !opp.trendingStronger() {
			e.beginPending(b, PendingExit, now)
			return
		}

	case Exited:
		if s.role == RoleFar && now.After(b.lastTransition) &&
			opp.quietAt(now, th.weakTimeout()) && !opp.trendingStronger() {
			e.beginPending(b, PendingEntry, now)
			return
		}

	case PendingExit, PendingEntry:
		// Resolution happens through the pair-commit above or through the
		// sweep-driven timeout; a lone strong sample changes nothing here.
	}

	// Dominance fallback: sustained one-sided strong signal with the other
	// side quiet commits the direction even when the paired sample was
	// dropped entirely.
	if own.strongRunStart.IsZero() || !opp.quietAt(now, th.weakTimeout()) {
		return
	}
	if s.role == RoleNear && now.Sub(own.strongRunStart) >= th.dominanceEnter() {
		e.commit(b, Entered, now)
	} else if s.role == RoleFar && now.Sub(own.strongRunStart) >= th.dominanceExit() {
		e.commit(b, Exited, now)
	}
}

// stepTick runs one sweep-driven FSM step with no new sample. The caller
// holds the beacon's mutex.
func (e *Engine) stepTick(b *Beacon, now time.Time) {
	th := e.profile.Thresholds

	switch b.state {
	case PendingExit:
		// An exit attempt that never paired is a false start: the object
		// stays inside.
		if now.Sub(b.pendingSince) >= th.exitWindow() {
			e.commit(b, Entered, now)
		}

	case PendingEntry:
		if now.Sub(b.pendingSince) >= th.enterWindow() {
			e.commit(b, Exited, now)
		}

	case Entered:
		if !b.lastActivity.IsZero() && now.Sub(b.lastActivity) >= th.idleEntered() {
			e.collapseToIdle(b, now)
		}

	case Exited:
		if !b.lastActivity.IsZero() && now.Sub(b.lastActivity) >= th.idleExited() {
			e.collapseToIdle(b, now)
		}
	}
}

// commit moves the beacon to a committed direction state. Trip bookkeeping
// fires only when the macro side of the doorway actually changes, so a
// pending timeout reverting to its origin or a re-commit from Idle stays
// silent.
func (e *Engine) commit(b *Beacon, target BeaconState, at time.Time) {
	if b.state == target {
		return
	}
	old := b.state
	b.state = target
	b.pendingSince = time.Time{}
	b.lastTransition = at

	newMacro := macroInside
	kind := TripEnd
	if target == Exited || target == Outside {
		newMacro = macroOutside
		kind = TripStart
	}

	if b.macro != newMacro {
		b.macro = newMacro
		if newMacro == macroInside {
			b.lastEntered = at
		} else {
			b.lastExited = at
		}

		metrics.TripEventEmitted(string(kind))
		log.WithFields(log.Fields{
			"Method": "commit",
			"Beacon": b.ID,
			"State":  target,
			"Trip":   kind,
		}).Info("crossing committed")

		e.sink.OnTripEvent(b.ID, kind, at)
	}

	metrics.TransitionCommitted(string(target))
	e.notifyStateChanged(b.ID, old, target, at)
}

func (e *Engine) beginPending(b *Beacon, target BeaconState, at time.Time) {
	old := b.state
	b.state = target
	b.pendingSince = at
	b.lastTransition = at

	metrics.TransitionCommitted(string(target))
	log.Debugf("beacon %s %s -> %s", b.ID, old, target)
	e.notifyStateChanged(b.ID, old, target, at)
}

// collapseToIdle parks a long-quiet beacon. The macro side is kept so a later
// re-commit to the same side does not double-book a trip.
func (e *Engine) collapseToIdle(b *Beacon, at time.Time) {
	old := b.state
	b.state = Idle
	b.pendingSince = time.Time{}
	b.lastTransition = at

	metrics.TransitionCommitted(string(Idle))
	log.Debugf("beacon %s %s -> %s after inactivity", b.ID, old, Idle)
	e.notifyStateChanged(b.ID, old, Idle, at)
}

func (e *Engine) notifyStateChanged(beaconID string, old, new BeaconState, at time.Time) {
	if e.notifier == nil {
		return
	}
	e.notifier.OnStateChanged(beaconID, old, new, at)
}

// withinWindow reports whether t happened no more than window before now.
// Stale timestamps (t after now) fail, so out-of-order samples cannot
// retroactively complete a crossing.
func withinWindow(now, t time.Time, window time.Duration) bool {
	if t.IsZero() {
		return false
	}
	d := now.Sub(t)
	return d >= 0 && d <= window
}
