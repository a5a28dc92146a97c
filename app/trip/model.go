/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package trip

import "time"

// Trip is one outing of a tracked boat: opened when the beacon commits an
// exit through the doorway, closed when it commits the matching entry.
type Trip struct {
	ID        string     `json:"id" bson:"_id"`
	BeaconID  string     `json:"beacon_id" bson:"beacon_id"`
	StartedAt time.Time  `json:"started_at" bson:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	Open      bool       `json:"open" bson:"open"`
}
