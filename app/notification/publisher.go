/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package notification bridges the engine to MQTT: it publishes committed
// state changes for live dashboards and feeds detection batches published by
// receivers into the engine.
package notification

import (
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
	"github.com/oarsight/doorway-tracker/pkg/metrics"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Client is the slice of the paho client the package uses, abstracted so
// tests can run without a broker.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Connect dials the broker with automatic reconnect, the way the receivers'
// firmware expects.
func Connect(brokerURL, clientID string) (Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("timed out connecting to MQTT broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "unable to connect to MQTT broker %s", brokerURL)
	}
	return client, nil
}

// StateChange is the payload published on every committed transition.
type StateChange struct {
	BeaconID string    `json:"beacon_id"`
	OldState string    `json:"old_state"`
	NewState string    `json:"new_state"`
	At       time.Time `json:"at"`
}

// Publisher implements the engine's StateNotifier boundary over MQTT.
// Publishes are QoS 0 and fire-and-forget: a slow broker can drop live
// status updates but can never stall an FSM step.
type Publisher struct {
	client      Client
	topicPrefix string
}

func NewPublisher(client Client, topicPrefix string) *Publisher {
	return &Publisher{client: client, topicPrefix: topicPrefix}
}

// OnStateChanged publishes the transition and returns without waiting for
// the broker.
func (p *Publisher) OnStateChanged(beaconID string, oldState, newState beaconprocessor.BeaconState, at time.Time) {
	payload, err := json.Marshal(StateChange{
		BeaconID: beaconID,
		OldState: string(oldState),
		NewState: string(newState),
		At:       at.UTC(),
	})
	if err != nil {
		metrics.NotifyDropped()
		log.Errorf("unable to marshal state change for %s: %v", beaconID, err)
		return
	}

	token := p.client.Publish(p.topicPrefix+"/"+beaconID, 0, true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			metrics.NotifyDropped()
			log.Debugf("state change publish for %s not confirmed", beaconID)
		}
	}()
}
