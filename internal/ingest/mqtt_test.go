package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeSink struct {
	mu       sync.Mutex
	readings []models.PowerReading
	sources  []string
	err      error
}

func (f *fakeSink) AddReading(_ context.Context, r *models.PowerReading, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.readings = append(f.readings, *r)
	f.sources = append(f.sources, source)
	return nil
}

func newTestSubscriber(sink ReadingSink) (*Subscriber, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewSubscriber(config.MQTTConfig{Topic: "prism/readings/", QoS: 1}, sink, logging.Wrap(logger)), hook
}

func TestSubscriber_Topic(t *testing.T) {
	s, _ := newTestSubscriber(&fakeSink{})
	assert.Equal(t, "prism/readings/+", s.Topic())
}

func TestSubscriber_HandleMessage(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSubscriber(sink)

	s.HandleMessage(nil, fakeMessage{
		topic:   "prism/readings/fridge",
		payload: []byte(`{"timestamp":"2020-12-01T06:57:48Z","power":7.2}`),
	})

	require.Len(t, sink.readings, 1)
	assert.Equal(t, models.Category("fridge"), sink.readings[0].Category)
	assert.Equal(t, 7.2, sink.readings[0].Power)
	assert.True(t, sink.readings[0].Timestamp.Equal(time.Date(2020, 12, 1, 6, 57, 48, 0, time.UTC)))
	assert.Equal(t, []string{Source}, sink.sources)
	assert.Equal(t, Stats{Received: 1, Stored: 1}, s.Stats())
}

func TestSubscriber_HandleMessageRejects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{name: "unknown category", topic: "prism/readings/toaster", payload: `{"timestamp":"2020-12-01T06:57:48Z","power":1}`},
		{name: "not json", topic: "prism/readings/tv", payload: `power=1`},
		{name: "missing power", topic: "prism/readings/tv", payload: `{"timestamp":"2020-12-01T06:57:48Z"}`},
		{name: "missing timestamp", topic: "prism/readings/tv", payload: `{"power":1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := &fakeSink{}
			s, hook := newTestSubscriber(sink)

			s.HandleMessage(nil, fakeMessage{topic: tc.topic, payload: []byte(tc.payload)})

			assert.Empty(t, sink.readings)
			assert.Equal(t, Stats{Received: 1, Rejected: 1}, s.Stats())
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		})
	}
}

func TestSubscriber_HandleMessageStoreFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	s, hook := newTestSubscriber(sink)

	s.HandleMessage(nil, fakeMessage{
		topic:   "prism/readings/tv",
		payload: []byte(`{"timestamp":"2020-12-01T06:57:48Z","power":0}`),
	})
	assert.Equal(t, Stats{Received: 1, Failed: 1}, s.Stats())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	sink.err = &models.ErrUnknownCategory{Name: "tv"}
	s.HandleMessage(nil, fakeMessage{
		topic:   "prism/readings/tv",
		payload: []byte(`{"timestamp":"2020-12-01T06:57:48Z","power":0}`),
	})
	assert.Equal(t, Stats{Received: 2, Failed: 1, Rejected: 1}, s.Stats())
}

func TestDecode(t *testing.T) {
	reading, err := decode("Fridge", []byte(`{"timestamp":"2020-12-01T06:57:48+02:00","power":-1.5}`))
	require.NoError(t, err)
	assert.Equal(t, models.Category("fridge"), reading.Category)
	assert.Equal(t, -1.5, reading.Power)
}

func TestSubscriber_StartUnreachableBroker(t *testing.T) {
	s := NewSubscriber(config.MQTTConfig{
		Broker:   "tcp://127.0.0.1:1",
		Topic:    "prism/readings",
		ClientID: "prism-test",
		QoS:      1,
	}, &fakeSink{}, nil)
	s.connectTimeout = 2 * time.Second

	err := s.Start()
	require.Error(t, err)
	assert.Equal(t, Stats{}, s.Stats())

	s.Stop()
}
