/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package beaconprocessor is the direction detection engine: it consumes
// timestamped signal-strength samples from the doorway receivers, runs the
// per-beacon direction FSM, and emits trip bookkeeping requests on committed
// crossings.
package beaconprocessor

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oarsight/doorway-tracker/pkg/metrics"
)

// Engine owns the tracked beacons. Processing is concurrent across beacons
// and serialized per beacon: the map lock only guards lookup and lazy
// insertion, every FSM step runs under the beacon's own mutex.
type Engine struct {
	profile   *CalibrationProfile
	receivers map[string]Receiver
	sole      bool

	sink     TripSink
	notifier StateNotifier
	now      func() time.Time

	mu      sync.RWMutex
	beacons map[string]*Beacon
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithNotifier attaches a live state-change consumer.
func WithNotifier(n StateNotifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock injects the time source used by sweep scheduling. Tests drive
// Sweep directly with explicit timestamps instead.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates the calibration profile and builds an engine around
// it. A nil or invalid profile refuses to start.
func NewEngine(profile *CalibrationProfile, sink TripSink, opts ...Option) (*Engine, error) {
	if profile == nil {
		return nil, errors.New("calibration profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid calibration profile")
	}
	if sink == nil {
		return nil, errors.New("trip sink is required")
	}

	receivers := make(map[string]Receiver, len(profile.Receivers))
	for _, r := range profile.Receivers {
		receivers[r.ID] = r
	}

	e := &Engine{
		profile:   profile,
		receivers: receivers,
		sole:      profile.SoleMode(),
		sink:      sink,
		now:       time.Now,
		beacons:   make(map[string]*Beacon),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SubmitDetection feeds one raw sample into the engine. Safe to call
// concurrently; samples for the same beacon are serialized. Every per-sample
// failure is recoverable: the error is for the transport to log, never to
// retry into the engine.
func (e *Engine) SubmitDetection(beaconID, receiverID string, rssiDbm float64, observedAt time.Time) error {
	if beaconID == "" {
		metrics.SampleDiscarded("no_beacon")
		return errors.New("detection with empty beacon id")
	}
	if observedAt.IsZero() {
		observedAt = e.now()
	}

	sample, known := e.classify(receiverID, rssiDbm, observedAt)
	if !known {
		metrics.SampleDiscarded("unknown_receiver")
		return errors.Errorf("detection from unknown receiver %q", receiverID)
	}
	if sample == nil {
		// below the noise floor: not an error, updates nothing
		metrics.SampleDiscarded("below_floor")
		return nil
	}

	metrics.SampleProcessed(string(sample.role))

	b := e.beacon(beaconID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if e.sole {
		e.stepSoleSample(b, sample)
	} else {
		e.stepSample(b, sample)
	}
	return nil
}

// SubmitBatch feeds a batch of samples, logging per-sample errors. Returns
// how many samples were accepted.
func (e *Engine) SubmitBatch(events []DetectionEvent) int {
	accepted := 0
	for _, ev := range events {
		if err := e.SubmitDetection(ev.BeaconID, ev.ReceiverID, ev.RssiDbm, ev.ObservedAt); err != nil {
			log.WithFields(log.Fields{
				"Method":   "SubmitBatch",
				"Beacon":   ev.BeaconID,
				"Receiver": ev.ReceiverID,
			}).Warn(err.Error())
			continue
		}
		accepted++
	}
	return accepted
}

// Sweep runs a synthetic no-sample tick over every tracked beacon, driving
// pending-state expiry and idle collapse when no traffic arrives.
func (e *Engine) Sweep(now time.Time) {
	e.mu.RLock()
	tracked := make([]*Beacon, 0, len(e.beacons))
	for _, b := range e.beacons {
		tracked = append(tracked, b)
	}
	e.mu.RUnlock()

	for _, b := range tracked {
		b.mu.Lock()
		if e.sole {
			e.stepSoleTick(b, now)
		} else {
			e.stepTick(b, now)
		}
		b.mu.Unlock()
	}
}

// Snapshot returns a projection of every tracked beacon for dashboard
// consumers. It copies state and never exposes the live tracking structs.
func (e *Engine) Snapshot() []BeaconSnapshot {
	e.mu.RLock()
	tracked := make([]*Beacon, 0, len(e.beacons))
	for _, b := range e.beacons {
		tracked = append(tracked, b)
	}
	e.mu.RUnlock()

	snaps := make([]BeaconSnapshot, 0, len(tracked))
	for _, b := range tracked {
		b.mu.Lock()
		snaps = append(snaps, b.snapshot())
		b.mu.Unlock()
	}
	return snaps
}

// beacon returns the tracking state for a beacon id, creating it lazily in
// Idle on first observation.
func (e *Engine) beacon(id string) *Beacon {
	e.mu.RLock()
	b, found := e.beacons[id]
	e.mu.RUnlock()
	if found {
		return b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, found = e.beacons[id]; !found {
		b = newBeacon(id)
		e.beacons[id] = b
		log.Debugf("tracking new beacon %s", id)
	}
	return b
}
