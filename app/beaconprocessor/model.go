/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

import "time"

const (
	defaultWindowSize = 20
)

// BeaconState is the FSM state of a tracked beacon.
type BeaconState string

const (
	// Dual-receiver states.
	Idle         BeaconState = "Idle"
	Entered      BeaconState = "Entered"
	Exited       BeaconState = "Exited"
	PendingEntry BeaconState = "PendingEntry"
	PendingExit  BeaconState = "PendingExit"

	// Single-receiver fallback states.
	Inside  BeaconState = "Inside"
	Outside BeaconState = "Outside"
)

// ReceiverRole identifies which side of the doorway a receiver covers.
type ReceiverRole string

const (
	RoleNear ReceiverRole = "near"
	RoleFar  ReceiverRole = "far"
	RoleSole ReceiverRole = "sole"
)

func (r ReceiverRole) opposite() ReceiverRole {
	if r == RoleNear {
		return RoleFar
	}
	return RoleNear
}

// TripEventKind distinguishes the two trip bookkeeping requests.
type TripEventKind string

const (
	TripStart TripEventKind = "start"
	TripEnd   TripEventKind = "end"
)

// macroState tracks which side of the doorway the beacon was last committed
// to, across pending states and idle collapse. Trip events fire only when it
// changes.
type macroState int

const (
	macroUnknown macroState = iota
	macroInside
	macroOutside
)

// DetectionEvent is a single raw signal-strength sample from a receiver.
// It is never persisted; the engine consumes it and throws it away.
type DetectionEvent struct {
	BeaconID   string    `json:"beacon_id"`
	ReceiverID string    `json:"receiver_id"`
	RssiDbm    float64   `json:"rssi_dbm"`
	ObservedAt time.Time `json:"observed_at"`
}

// TripSink receives trip bookkeeping requests for committed crossings.
// Implementations must queue and return immediately; retry and durability
// are owned by the sink, never by the engine.
type TripSink interface {
	OnTripEvent(beaconID string, kind TripEventKind, at time.Time)
}

// StateNotifier receives every committed transition, including entries into
// pending states. Must not block the caller.
type StateNotifier interface {
	OnStateChanged(beaconID string, oldState, newState BeaconState, at time.Time)
}

// BeaconSnapshot is a read-only projection of a beacon's tracking state for
// dashboard consumers.
type BeaconSnapshot struct {
	BeaconID     string      `json:"beacon_id"`
	State        BeaconState `json:"state"`
	LastSeenNear time.Time   `json:"last_seen_near,omitempty"`
	LastSeenFar  time.Time   `json:"last_seen_far,omitempty"`
	PendingSince time.Time   `json:"pending_since,omitempty"`
	LastActivity time.Time   `json:"last_activity,omitempty"`
	LastEntered  time.Time   `json:"last_entered,omitempty"`
	LastExited   time.Time   `json:"last_exited,omitempty"`
}
