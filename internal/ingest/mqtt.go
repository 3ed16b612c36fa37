// Package ingest receives device readings from an MQTT broker and stores
// them through the dashboard service.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Source tags readings received over MQTT in logs and metrics.
const Source = "mqtt"

// ReadingSink stores one reading.
type ReadingSink interface {
	AddReading(ctx context.Context, reading *models.PowerReading, source string) error
}

// Message is the JSON payload published on <topic>/<category>.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Power     *float64  `json:"power"`
}

// Stats counts processed messages.
type Stats struct {
	Received int64 `json:"received"`
	Stored   int64 `json:"stored"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

// Subscriber consumes readings from MQTT.
type Subscriber struct {
	cfg            config.MQTTConfig
	sink           ReadingSink
	logger         *logging.StandardLogger
	connectTimeout time.Duration
	storeTimeout   time.Duration

	mu     sync.Mutex
	client mqtt.Client

	received atomic.Int64
	stored   atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// NewSubscriber creates a subscriber for cfg.Topic/+.
func NewSubscriber(cfg config.MQTTConfig, sink ReadingSink, logger *logging.StandardLogger) *Subscriber {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &Subscriber{
		cfg:            cfg,
		sink:           sink,
		logger:         logger,
		connectTimeout: 10 * time.Second,
		storeTimeout:   30 * time.Second,
	}
}

// Topic is the subscription filter. The last level names the category.
func (s *Subscriber) Topic() string {
	return strings.TrimRight(s.cfg.Topic, "/") + "/+"
}

// Start connects to the broker. The subscription is renewed on every
// reconnect.
func (s *Subscriber) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectTimeout(s.connectTimeout)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

// Stop unsubscribes and disconnects, waiting up to 250ms for in-flight
// work.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return
	}
	if client.IsConnected() {
		client.Unsubscribe(s.Topic()).WaitTimeout(time.Second)
	}
	client.Disconnect(250)
	st := s.Stats()
	s.logger.WithComponent("mqtt").WithFields(logrus.Fields{
		"received": st.Received,
		"stored":   st.Stored,
		"rejected": st.Rejected,
		"failed":   st.Failed,
	}).Info("MQTT subscriber stopped")
}

// Stats returns the message counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Stored:   s.stored.Load(),
		Rejected: s.rejected.Load(),
		Failed:   s.failed.Load(),
	}
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	token := client.Subscribe(s.Topic(), s.cfg.QoS, s.HandleMessage)
	if !token.WaitTimeout(s.connectTimeout) || token.Error() != nil {
		s.logger.WithComponent("mqtt").WithError(token.Error()).WithField("topic", s.Topic()).Error("Failed to subscribe")
		return
	}
	s.logger.WithComponent("mqtt").WithFields(logrus.Fields{
		"broker": s.cfg.Broker,
		"topic":  s.Topic(),
	}).Info("MQTT subscriber connected")
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.WithComponent("mqtt").WithError(err).Warn("MQTT connection lost")
}

// HandleMessage stores the reading carried by msg. Malformed messages are
// logged and dropped.
func (s *Subscriber) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	s.received.Add(1)
	entry := s.logger.WithComponent("mqtt").WithField("topic", msg.Topic())

	reading, err := decode(msg.Topic(), msg.Payload())
	if err != nil {
		s.rejected.Add(1)
		entry.WithError(err).Warn("Dropping malformed reading")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	if err := s.sink.AddReading(ctx, reading, Source); err != nil {
		var unknown *models.ErrUnknownCategory
		if errors.As(err, &unknown) {
			s.rejected.Add(1)
			entry.WithError(err).Warn("Dropping reading for unknown category")
			return
		}
		s.failed.Add(1)
		entry.WithError(err).Error("Failed to store reading")
		return
	}
	s.stored.Add(1)
	entry.WithField("category", reading.Category.String()).Debug("Reading stored")
}

// decode builds a reading from the topic's last level and the payload.
func decode(topic string, payload []byte) (*models.PowerReading, error) {
	name := topic
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		name = topic[i+1:]
	}
	category, err := models.ParseCategory(name)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if msg.Power == nil {
		return nil, errors.New("payload has no power value")
	}
	if msg.Timestamp.IsZero() {
		return nil, errors.New("payload has no timestamp")
	}
	return &models.PowerReading{
		Timestamp: msg.Timestamp,
		Power:     *msg.Power,
		Category:  category,
	}, nil
}
