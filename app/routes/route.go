/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package routes

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
	"github.com/oarsight/doorway-tracker/app/routes/handlers"
	"github.com/oarsight/doorway-tracker/pkg/web"
)

// Route struct holds attributes to declare routes
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc web.Handler
}

// NewRouter creates the routes for GET and POST
func NewRouter(engine *beaconprocessor.Engine, trips handlers.TripRetriever, serviceName string, maxBodySize int64) *mux.Router {

	tracker := handlers.Tracker{
		Engine:      engine,
		Trips:       trips,
		ServiceName: serviceName,
		MaxBodySize: maxBodySize,
	}

	var routes = []Route{
		{
			"Index",
			"GET",
			"/",
			tracker.Index,
		},
		{
			"PostDetections",
			"POST",
			"/detections",
			tracker.PostDetections,
		},
		{
			"GetBeacons",
			"GET",
			"/beacons",
			tracker.GetBeacons,
		},
		{
			"GetTrips",
			"GET",
			"/trips",
			tracker.GetTrips,
		},
	}

	router := mux.NewRouter().StrictSlash(true)
	for _, route := range routes {
		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(route.HandlerFunc)
	}

	router.Methods("GET").Path("/metrics").Name("Metrics").Handler(promhttp.Handler())

	return router
}
