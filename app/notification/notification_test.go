package notification

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes and captures subscription handlers.
type fakeClient struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]paho.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]paho.MessageHandler)}
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, retained, payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = callback
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {}

func (c *fakeClient) all() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]published, len(c.published))
	copy(out, c.published)
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestPublisherPublishesStateChanges(t *testing.T) {
	client := newFakeClient()
	publisher := NewPublisher(client, "tracker/state")

	at := time.Date(2021, time.June, 12, 8, 0, 0, 0, time.UTC)
	publisher.OnStateChanged("boat-1", beaconprocessor.Exited, beaconprocessor.Entered, at)

	msgs := client.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "tracker/state/boat-1", msgs[0].topic)
	assert.True(t, msgs[0].retained)

	var change StateChange
	require.NoError(t, json.Unmarshal(msgs[0].payload, &change))
	assert.Equal(t, "boat-1", change.BeaconID)
	assert.Equal(t, string(beaconprocessor.Exited), change.OldState)
	assert.Equal(t, string(beaconprocessor.Entered), change.NewState)
	assert.True(t, change.At.Equal(at))
}

type countingSink struct{}

func (countingSink) OnTripEvent(string, beaconprocessor.TripEventKind, time.Time) {}

func TestIngestFeedsEngine(t *testing.T) {
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
	engine, err := beaconprocessor.NewEngine(profile, countingSink{})
	require.NoError(t, err)

	client := newFakeClient()
	ingest := NewIngest(engine)
	require.NoError(t, ingest.Subscribe(client, "tracker/detections"))

	batch := []beaconprocessor.DetectionEvent{
		{BeaconID: "boat-1", ReceiverID: "inner", RssiDbm: -50, ObservedAt: time.Now()},
	}
	payload, err := json.Marshal(batch)
	require.NoError(t, err)

	handler := client.handlers["tracker/detections"]
	require.NotNil(t, handler)
	handler(nil, &fakeMessage{topic: "tracker/detections", payload: payload})

	snaps := engine.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, beaconprocessor.Entered, snaps[0].State)

	// malformed payloads are dropped without side effects
	handler(nil, &fakeMessage{topic: "tracker/detections", payload: []byte("{not json")})
	assert.Len(t, engine.Snapshot(), 1)
}
