/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package trip owns trip bookkeeping: the MongoDB store and the asynchronous
// sink the engine hands committed crossings to.
package trip

import (
	"time"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const tripCollection = "trips"

// Store persists trips in MongoDB.
type Store struct {
	session *mgo.Session
	dbName  string
}

func NewStore(session *mgo.Session, dbName string) *Store {
	return &Store{session: session, dbName: dbName}
}

// EnsureIndexes creates the lookup indexes the queries below rely on.
func (s *Store) EnsureIndexes() error {
	session := s.session.Copy()
	defer session.Close()

	index := mgo.Index{Key: []string{"beacon_id", "-started_at"}}
	if err := session.DB(s.dbName).C(tripCollection).EnsureIndex(index); err != nil {
		return errors.Wrap(err, "db.trips.EnsureIndex()")
	}
	return nil
}

// StartTrip opens a trip for the beacon. A still-open trip for the same
// beacon means the matching entry was never seen (e.g. the service was down
// when the boat came back); it is closed with an unknown end first.
func (s *Store) StartTrip(beaconID string, at time.Time) error {
	session := s.session.Copy()
	defer session.Close()
	c := session.DB(s.dbName).C(tripCollection)

	changed, err := c.UpdateAll(
		bson.M{"beacon_id": beaconID, "open": true},
		bson.M{"$set": bson.M{"open": false}},
	)
	if err != nil {
		return errors.Wrap(err, "db.trips.UpdateAll()")
	}
	if changed.Updated > 0 {
		log.WithFields(log.Fields{
			"Method": "StartTrip",
			"Beacon": beaconID,
			"Closed": changed.Updated,
		}).Warn("closed stale open trips before starting a new one")
	}

	t := Trip{
		ID:        uuid.New().String(),
		BeaconID:  beaconID,
		StartedAt: at,
		Open:      true,
	}
	if err := c.Insert(t); err != nil {
		return errors.Wrap(err, "db.trips.Insert()")
	}
	return nil
}

// EndTrip closes the most recent open trip for the beacon. No open trip is
// not an error: the engine may legitimately commit an entry first, e.g.
// right after startup.
func (s *Store) EndTrip(beaconID string, at time.Time) error {
	session := s.session.Copy()
	defer session.Close()
	c := session.DB(s.dbName).C(tripCollection)

	var open Trip
	err := c.Find(bson.M{"beacon_id": beaconID, "open": true}).
		Sort("-started_at").One(&open)
	if err == mgo.ErrNotFound {
		log.Debugf("no open trip for beacon %s, end-trip is a no-op", beaconID)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "db.trips.Find()")
	}

	update := bson.M{"$set": bson.M{"ended_at": at, "open": false}}
	if err := c.UpdateId(open.ID, update); err != nil {
		return errors.Wrap(err, "db.trips.UpdateId()")
	}
	return nil
}

// Retrieve returns trips for the dashboard, newest first. beaconID and
// openOnly narrow the query; limit caps the response size.
func (s *Store) Retrieve(beaconID string, openOnly bool, limit int) ([]Trip, error) {
	session := s.session.Copy()
	defer session.Close()

	query := bson.M{}
	if beaconID != "" {
		query["beacon_id"] = beaconID
	}
	if openOnly {
		query["open"] = true
	}

	trips := []Trip{}
	err := session.DB(s.dbName).C(tripCollection).
		Find(query).Sort("-started_at").Limit(limit).All(&trips)
	if err != nil {
		return nil, errors.Wrap(err, "db.trips.Find()")
	}
	return trips, nil
}
