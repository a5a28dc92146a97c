/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import (
	"sync"
	"time"
)

// Beacon is the per-beacon tracking state. Created lazily on the first
// observation and kept for the lifetime of the process. The mutex serializes
// FSM steps so that a sample-driven step and a sweep-driven step can never
// interleave for the same beacon.
type Beacon struct {
	ID string

	mu sync.Mutex

	state BeaconState
	macro macroState

	// pendingSince is non-zero if and only if state is PendingEntry or
	// PendingExit.
	pendingSince time.Time

	// lastActivity is the timestamp of the most recent active sample on
	// either role; it drives idle collapse and the fallback presence window.
	lastActivity time.Time

	// lastTransition is the timestamp of the most recent state change. A
	// replayed sample carries the same timestamp as the transition it caused
	// and therefore cannot start a pending attempt of its own.
	lastTransition time.Time

	stats map[ReceiverRole]*roleStats

	lastEntered time.Time
	lastExited  time.Time
}

func newBeacon(id string) *Beacon {
	return &Beacon{
		ID:    id,
		state: Idle,
		stats: map[ReceiverRole]*roleStats{
			RoleNear: newRoleStats(),
			RoleFar:  newRoleStats(),
			RoleSole: newRoleStats(),
		},
	}
}

// snapshot copies the fields dashboard consumers may read. Caller must hold
// the beacon's mutex.
func (b *Beacon) snapshot() BeaconSnapshot {
	return BeaconSnapshot{
		BeaconID:     b.ID,
		State:        b.state,
		LastSeenNear: b.stats[RoleNear].lastStrong,
		LastSeenFar:  b.stats[RoleFar].lastStrong,
		PendingSince: b.pendingSince,
		LastActivity: b.lastActivity,
		LastEntered:  b.lastEntered,
		LastExited:   b.lastExited,
	}
}
