/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package metrics exposes the service's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "samples_processed_total",
		Help:      "Detection samples accepted by the engine, by receiver role.",
	}, []string{"role"})

	samplesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "samples_discarded_total",
		Help:      "Detection samples discarded before the FSM step, by reason.",
	}, []string{"reason"})

	transitionsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "transitions_total",
		Help:      "Committed FSM transitions, by resulting state.",
	}, []string{"state"})

	tripEventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "trip_events_total",
		Help:      "Trip bookkeeping requests handed to the sink, by kind.",
	}, []string{"kind"})

	sinkQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "doorway_tracker",
		Name:      "sink_queue_depth",
		Help:      "Trip requests currently queued in the sink.",
	})

	sinkDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "sink_dropped_total",
		Help:      "Trip requests dropped because the sink queue was full.",
	})

	sinkRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "sink_retries_total",
		Help:      "Store write retries performed by the trip sink.",
	})

	notifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doorway_tracker",
		Name:      "notify_dropped_total",
		Help:      "State-change notifications dropped by the publisher.",
	})
)

func SampleProcessed(role string)      { samplesProcessed.WithLabelValues(role).Inc() }
func SampleDiscarded(reason string)    { samplesDiscarded.WithLabelValues(reason).Inc() }
func TransitionCommitted(state string) { transitionsCommitted.WithLabelValues(state).Inc() }
func TripEventEmitted(kind string)     { tripEventsEmitted.WithLabelValues(kind).Inc() }
func SetSinkQueueDepth(n int)          { sinkQueueDepth.Set(float64(n)) }
func SinkDropped()                     { sinkDropped.Inc() }
func SinkRetried()                     { sinkRetries.Inc() }
func NotifyDropped()                   { notifyDropped.Inc() }
