package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
	"github.com/oarsight/doorway-tracker/app/trip"
	"github.com/oarsight/doorway-tracker/pkg/web"
)

type discardSink struct{}

func (discardSink) OnTripEvent(string, beaconprocessor.TripEventKind, time.Time) {}

type fakeTrips struct {
	beaconID string
	openOnly bool
	limit    int
	trips    []trip.Trip
	err      error
}

func (f *fakeTrips) Retrieve(beaconID string, openOnly bool, limit int) ([]trip.Trip, error) {
	f.beaconID, f.openOnly, f.limit = beaconID, openOnly, limit
	return f.trips, f.err
}

func testEngine(t *testing.T) *beaconprocessor.Engine {
	t.Helper()
	profile := &beaconprocessor.CalibrationProfile{
		Receivers: []beaconprocessor.Receiver{
			{ID: "inner", Role: beaconprocessor.RoleNear},
			{ID: "outer", Role: beaconprocessor.RoleFar},
		},
		Thresholds: beaconprocessor.Thresholds{
			FloorDbm: -72, ActiveDbm: -68, EnergyDbm: -60,
			EnterWindowS: 6, ExitWindowS: 15,
			DominanceEnterS: 10, DominanceExitS: 20,
			IdleEnteredS: 300, IdleExitedS: 600,
			WeakTimeoutS: 5, PresenceWindowS: 30,
		},
	}
	engine, err := beaconprocessor.NewEngine(profile, discardSink{})
	require.NoError(t, err)
	return engine
}

func newTracker(t *testing.T) (*Tracker, *fakeTrips) {
	t.Helper()
	trips := &fakeTrips{}
	return &Tracker{
		Engine:      testEngine(t),
		Trips:       trips,
		ServiceName: "doorway-tracker",
		MaxBodySize: 1 << 20,
	}, trips
}

func serve(handler web.Handler, method, target, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestIndex(t *testing.T) {
	tracker, _ := newTracker(t)
	recorder := serve(tracker.Index, "GET", "/", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "doorway-tracker")
}

func TestPostDetections(t *testing.T) {
	tracker, _ := newTracker(t)

	body := `[{"beacon_id":"boat-1","receiver_id":"inner","rssi_dbm":-50,"observed_at":"2021-06-12T08:00:00Z"}]`
	recorder := serve(tracker.PostDetections, "POST", "/detections", body)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"accepted": 1`)

	snaps := tracker.Engine.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, beaconprocessor.Entered, snaps[0].State)
}

func TestPostDetectionsValidation(t *testing.T) {
	tracker, _ := newTracker(t)

	cases := map[string]string{
		"malformed json":    `{not json`,
		"empty batch":       `[]`,
		"missing beacon id": `[{"receiver_id":"inner","rssi_dbm":-50}]`,
	}
	for name, body := range cases {
		recorder := serve(tracker.PostDetections, "POST", "/detections", body)
		assert.Equalf(t, http.StatusBadRequest, recorder.Code, "case %s", name)
	}
}

func TestGetBeacons(t *testing.T) {
	tracker, _ := newTracker(t)
	require.NoError(t, tracker.Engine.SubmitDetection("boat-1", "outer", -50, time.Now()))

	recorder := serve(tracker.GetBeacons, "GET", "/beacons", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"boat-1"`)
	assert.Contains(t, recorder.Body.String(), string(beaconprocessor.Exited))
}

func TestGetTrips(t *testing.T) {
	tracker, trips := newTracker(t)
	trips.trips = []trip.Trip{{ID: "t-1", BeaconID: "boat-1", Open: true}}

	recorder := serve(tracker.GetTrips, "GET", "/trips?beacon_id=boat-1&open=true&limit=5", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "boat-1", trips.beaconID)
	assert.True(t, trips.openOnly)
	assert.Equal(t, 5, trips.limit)
	assert.Contains(t, recorder.Body.String(), `"t-1"`)
}

func TestGetTripsValidation(t *testing.T) {
	tracker, _ := newTracker(t)

	for _, target := range []string{"/trips?limit=zero", "/trips?limit=-1", "/trips?open=perhaps"} {
		recorder := serve(tracker.GetTrips, "GET", target, "")
		assert.Equalf(t, http.StatusBadRequest, recorder.Code, "target %s", target)
	}
}

func TestGetTripsStoreFailure(t *testing.T) {
	tracker, trips := newTracker(t)
	trips.err = errors.New("mongo unreachable")

	recorder := serve(tracker.GetTrips, "GET", "/trips", "")
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	// internal details are not leaked to the client
	assert.NotContains(t, recorder.Body.String(), "mongo")
}
