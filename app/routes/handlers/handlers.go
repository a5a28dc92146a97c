/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
	"github.com/oarsight/doorway-tracker/app/trip"
	"github.com/oarsight/doorway-tracker/pkg/web"
)

const defaultTripLimit = 100

// TripRetriever is the slice of the trip store the read API needs.
type TripRetriever interface {
	Retrieve(beaconID string, openOnly bool, limit int) ([]trip.Trip, error)
}

// Tracker represents the API method handler set.
type Tracker struct {
	Engine      *beaconprocessor.Engine
	Trips       TripRetriever
	ServiceName string
	MaxBodySize int64
}

// Index is used for Docker Healthcheck commands to indicate
// whether the http server is up and running to take requests
func (trk *Tracker) Index(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	web.Respond(ctx, writer, trk.ServiceName, http.StatusOK)
	return nil
}

// PostDetections accepts a JSON batch of raw detection samples from the
// scanning layer and feeds it to the engine.
// 201 Created, 400 Bad Request, 413 Entity Too Large, 500 Internal Error
func (trk *Tracker) PostDetections(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	body := http.MaxBytesReader(writer, request.Body, trk.MaxBodySize)
	defer body.Close()

	var events []beaconprocessor.DetectionEvent
	if err := json.NewDecoder(body).Decode(&events); err != nil {
		return errors.Wrap(web.ErrInvalidInput, err.Error())
	}
	if len(events) == 0 {
		return errors.Wrap(web.ErrValidation, "empty detection batch")
	}
	for i := range events {
		if events[i].BeaconID == "" || events[i].ReceiverID == "" {
			return errors.Wrapf(web.ErrValidation, "detection %d missing beacon_id or receiver_id", i)
		}
	}

	accepted := trk.Engine.SubmitBatch(events)
	web.Respond(ctx, writer, map[string]int{"accepted": accepted}, http.StatusCreated)
	return nil
}

// GetBeacons returns the live tracking snapshot for every known beacon.
// 200 OK, 500 Internal Error
func (trk *Tracker) GetBeacons(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	web.Respond(ctx, writer, trk.Engine.Snapshot(), http.StatusOK)
	return nil
}

// GetTrips returns trip bookkeeping, newest first. Supports beacon_id, open,
// and limit query parameters.
// 200 OK, 400 Bad Request, 500 Internal Error
func (trk *Tracker) GetTrips(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	query := request.URL.Query()

	limit := defaultTripLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return errors.Wrapf(web.ErrValidation, "invalid limit %q", raw)
		}
		if parsed < limit {
			limit = parsed
		}
	}

	openOnly := false
	if raw := query.Get("open"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.Wrapf(web.ErrValidation, "invalid open flag %q", raw)
		}
		openOnly = parsed
	}

	trips, err := trk.Trips.Retrieve(query.Get("beacon_id"), openOnly, limit)
	if err != nil {
		return errors.Wrap(err, "retrieving trips")
	}

	web.Respond(ctx, writer, trips, http.StatusOK)
	return nil
}
