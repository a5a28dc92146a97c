/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package notification

import (
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
)

// Ingest subscribes to the receivers' detection topic and feeds batches into
// the engine. Malformed payloads are logged and skipped; per-sample errors
// are already handled inside SubmitBatch.
type Ingest struct {
	engine *beaconprocessor.Engine
}

func NewIngest(engine *beaconprocessor.Engine) *Ingest {
	return &Ingest{engine: engine}
}

// Subscribe attaches the ingest handler to the topic. QoS 1: receivers
// re-publish on reconnect and duplicate samples are idempotent in the
// engine.
func (i *Ingest) Subscribe(client Client, topic string) error {
	token := client.Subscribe(topic, 1, i.handle)
	if !token.WaitTimeout(connectTimeout) {
		return errors.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "unable to subscribe to %s", topic)
	}
	log.Infof("ingesting detections from MQTT topic %s", topic)
	return nil
}

func (i *Ingest) handle(_ paho.Client, msg paho.Message) {
	var events []beaconprocessor.DetectionEvent
	if err := json.Unmarshal(msg.Payload(), &events); err != nil {
		log.WithFields(log.Fields{
			"Method": "handle",
			"Topic":  msg.Topic(),
			"Error":  err.Error(),
		}).Warn("dropping malformed detection batch")
		return
	}
	i.engine.SubmitBatch(events)
}
