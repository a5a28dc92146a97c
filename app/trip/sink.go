/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package trip

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
	"github.com/oarsight/doorway-tracker/pkg/metrics"
)

const (
	defaultQueueSize = 1024
	maxAttempts      = 4
	retryBackoff     = 250 * time.Millisecond
)

// Writer is the store surface the sink needs. Satisfied by *Store.
type Writer interface {
	StartTrip(beaconID string, at time.Time) error
	EndTrip(beaconID string, at time.Time) error
}

type request struct {
	beaconID string
	kind     beaconprocessor.TripEventKind
	at       time.Time
}

// Sink implements the engine's TripSink boundary: OnTripEvent queues and
// returns immediately, a worker applies the writes with capped retry. A
// write failure is logged and counted, never surfaced to the engine — the
// FSM's view of what happened physically stays authoritative.
type Sink struct {
	writer  Writer
	queue   chan request
	backoff time.Duration
	done    chan struct{}
}

func NewSink(writer Writer, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Sink{
		writer:  writer,
		queue:   make(chan request, queueSize),
		backoff: retryBackoff,
		done:    make(chan struct{}),
	}
}

// OnTripEvent queues a trip request without ever blocking the FSM step. A
// full queue drops the request rather than stall the engine.
func (s *Sink) OnTripEvent(beaconID string, kind beaconprocessor.TripEventKind, at time.Time) {
	select {
	case s.queue <- request{beaconID: beaconID, kind: kind, at: at}:
		metrics.SetSinkQueueDepth(len(s.queue))
	default:
		metrics.SinkDropped()
		log.WithFields(log.Fields{
			"Method": "OnTripEvent",
			"Beacon": beaconID,
			"Kind":   kind,
		}).Error("trip sink queue full, dropping request")
	}
}

// Run drains the queue until the context is cancelled, then finishes
// whatever is still queued before returning.
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case req := <-s.queue:
			s.apply(req)
			metrics.SetSinkQueueDepth(len(s.queue))
		case <-ctx.Done():
			for {
				select {
				case req := <-s.queue:
					s.apply(req)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has drained and returned.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) apply(req request) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if req.kind == beaconprocessor.TripStart {
			err = s.writer.StartTrip(req.beaconID, req.at)
		} else {
			err = s.writer.EndTrip(req.beaconID, req.at)
		}
		if err == nil {
			return
		}
		if attempt < maxAttempts {
			metrics.SinkRetried()
			time.Sleep(s.backoff * time.Duration(1<<uint(attempt-1)))
		}
	}

	log.WithFields(log.Fields{
		"Method": "apply",
		"Beacon": req.beaconID,
		"Kind":   req.kind,
		"Error":  err.Error(),
	}).Error("trip write failed after retries, bookkeeping lost")
}
