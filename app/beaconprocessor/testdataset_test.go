package beaconprocessor

import (
	"sync"
	"testing"
	"time"
)

// Shared fixtures for the engine tests. Receivers and thresholds mirror a
// typical dual-receiver shed doorway deployment.

const (
	innerReceiver = "shed-door-inner"
	outerReceiver = "shed-door-outer"
	soleReceiver  = "shed-door-solo"

	strongDbm = -50.0 // above energy
	weakDbm   = -65.0 // active but below energy
	faintDbm  = -70.0 // above floor, below active
)

var baseTime = time.Date(2021, time.June, 12, 8, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return baseTime.Add(time.Duration(seconds * float64(time.Second)))
}

func testThresholds() Thresholds {
	return Thresholds{
		FloorDbm:        -72,
		ActiveDbm:       -68,
		EnergyDbm:       -60,
		EnterWindowS:    6,
		ExitWindowS:     15,
		DominanceEnterS: 10,
		DominanceExitS:  20,
		IdleEnteredS:    300,
		IdleExitedS:     600,
		WeakTimeoutS:    5,
		PresenceWindowS: 30,
	}
}

func dualProfile() *CalibrationProfile {
	return &CalibrationProfile{
		Receivers: []Receiver{
			{ID: innerReceiver, Role: RoleNear},
			{ID: outerReceiver, Role: RoleFar},
		},
		Thresholds: testThresholds(),
	}
}

func soleProfile() *CalibrationProfile {
	return &CalibrationProfile{
		Receivers:  []Receiver{{ID: soleReceiver, Role: RoleSole}},
		Thresholds: testThresholds(),
	}
}

type tripRecord struct {
	beaconID string
	kind     TripEventKind
	at       time.Time
}

// recordingSink captures trip requests for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []tripRecord
}

func (s *recordingSink) OnTripEvent(beaconID string, kind TripEventKind, at time.Time) {
	s.mu.Lock()
	s.events = append(s.events, tripRecord{beaconID, kind, at})
	s.mu.Unlock()
}

func (s *recordingSink) all() []tripRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tripRecord, len(s.events))
	copy(out, s.events)
	return out
}

type stateChange struct {
	beaconID string
	oldState BeaconState
	newState BeaconState
}

// recordingNotifier captures state-change notifications.
type recordingNotifier struct {
	mu      sync.Mutex
	changes []stateChange
}

func (n *recordingNotifier) OnStateChanged(beaconID string, oldState, newState BeaconState, _ time.Time) {
	n.mu.Lock()
	n.changes = append(n.changes, stateChange{beaconID, oldState, newState})
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []stateChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]stateChange, len(n.changes))
	copy(out, n.changes)
	return out
}

func newTestEngine(t *testing.T, profile *CalibrationProfile) (*Engine, *recordingSink, *recordingNotifier) {
	t.Helper()
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	engine, err := NewEngine(profile, sink, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, sink, notifier
}

func submit(t *testing.T, e *Engine, beaconID, receiverID string, dbm, seconds float64) {
	t.Helper()
	if err := e.SubmitDetection(beaconID, receiverID, dbm, at(seconds)); err != nil {
		t.Fatalf("SubmitDetection(%s, %s, %.1f, t=%.1f): %v", beaconID, receiverID, dbm, seconds, err)
	}
}

func stateOf(t *testing.T, e *Engine, beaconID string) BeaconState {
	t.Helper()
	b := e.beacon(beaconID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func verifyState(t *testing.T, e *Engine, beaconID string, want BeaconState) {
	t.Helper()
	if got := stateOf(t, e, beaconID); got != want {
		t.Fatalf("beacon %s: state is %s, want %s", beaconID, got, want)
	}
}

func verifyTrips(t *testing.T, sink *recordingSink, want ...TripEventKind) {
	t.Helper()
	got := sink.all()
	if len(got) != len(want) {
		t.Fatalf("trip events: got %d (%v), want %d (%v)", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i].kind != want[i] {
			t.Fatalf("trip event %d: got %s, want %s", i, got[i].kind, want[i])
		}
	}
}
