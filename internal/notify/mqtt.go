package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig describes a broker relaying project change events.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// TopicPrefix defaults to "orchid/projects".
	TopicPrefix string
}

// MQTTSubscriber subscribes to {TopicPrefix}/{projectID}/events. Each
// subscription holds its own broker connection. Auto-reconnect is off: a
// lost connection ends the subscription.
type MQTTSubscriber struct {
	Config MQTTConfig
	Logger *zap.Logger
}

func (s *MQTTSubscriber) topic(projectID int) string {
	prefix := s.Config.TopicPrefix
	if prefix == "" {
		prefix = "orchid/projects"
	}
	return fmt.Sprintf("%s/%d/events", prefix, projectID)
}

func (s *MQTTSubscriber) Subscribe(ctx context.Context, projectID int) (Subscription, error) {
	sub := &mqttSubscription{
		topic:  s.topic(projectID),
		events: make(chan Event, 16),
		errc:   make(chan error, 1),
		closed: make(chan struct{}),
		logger: s.Logger,
	}
	if sub.logger == nil {
		sub.logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.Broker)
	clientID := s.Config.ClientID
	if clientID == "" {
		clientID = "orchid-cli"
	}
	opts.SetClientID(fmt.Sprintf("%s-%d-%d", clientID, projectID, time.Now().UnixNano()))
	if s.Config.Username != "" {
		opts.SetUsername(s.Config.Username)
	}
	if s.Config.Password != "" {
		opts.SetPassword(s.Config.Password)
	}
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		sub.fail(fmt.Errorf("push channel dropped: %w", err))
	})

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}
	sub.client = client

	if err := wait(ctx, client.Subscribe(sub.topic, 1, sub.handle)); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe to topic %s: %w", sub.topic, err)
	}
	return sub, nil
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

type mqttSubscription struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
	events chan Event
	errc   chan error
	closed chan struct{}
	once   sync.Once
}

func (m *mqttSubscription) handle(_ mqtt.Client, msg mqtt.Message) {
	ev, err := decodeEvent(msg.Payload())
	if err != nil {
		m.logger.Debug("skipping malformed push event", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	select {
	case m.events <- ev:
	case <-m.closed:
	}
}

func (m *mqttSubscription) fail(err error) {
	select {
	case m.errc <- err:
	default:
	}
}

func (m *mqttSubscription) Recv(ctx context.Context) (Event, error) {
	select {
	case ev := <-m.events:
		return ev, nil
	case err := <-m.errc:
		return Event{}, err
	case <-m.closed:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (m *mqttSubscription) Close() error {
	m.once.Do(func() {
		close(m.closed)
		if m.client != nil {
			m.client.Unsubscribe(m.topic).WaitTimeout(time.Second)
			m.client.Disconnect(250)
		}
	})
	return nil
}
