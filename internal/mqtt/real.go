package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// Options configure a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
}

// RealClient publishes to and subscribes on an actual MQTT broker.
// Messages published while the connection is down are buffered and
// replayed, oldest first, once it comes back.
type RealClient struct {
	client paho.Client
	logger *zap.Logger

	mu       sync.Mutex
	buf      *ringBuffer
	handlers map[string]func([]byte)
}

// NewRealClient connects to the broker. If the broker is unreachable the
// client keeps retrying in the background and buffers outgoing messages.
func NewRealClient(o Options, logger *zap.Logger) (*RealClient, error) {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	c := &RealClient{
		logger:   logger,
		buf:      newRingBuffer(o.BufferSize),
		handlers: make(map[string]func([]byte)),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("mqtt broker not reachable yet, buffering until connected", zap.String("broker", o.Broker))
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// onConnect runs after paho marks the connection open, so a publish that
// finds it closed under mu has pushed its message before the drain here.
func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	pending := c.buf.drainAll()
	handlers := make(map[string]func([]byte), len(c.handlers))
	for topic, h := range c.handlers {
		handlers[topic] = h
	}
	c.mu.Unlock()

	c.logger.Info("mqtt connected", zap.Int("replaying", len(pending)))

	for topic, h := range handlers {
		if err := c.subscribe(topic, h); err != nil {
			c.logger.Error("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	c.replay(client, pending)
}

// replay publishes buffered messages in order. On the first failure the rest
// go back to the front of the buffer for the next connection.
func (c *RealClient) replay(client paho.Client, pending []bufferedMsg) {
	for i, m := range pending {
		err := waitToken(client.Publish(m.topic, m.qos, m.retained, m.payload), m.topic)
		if err == nil {
			continue
		}
		c.logger.Warn("mqtt replay failed, keeping remaining messages",
			zap.String("topic", m.topic),
			zap.Int("remaining", len(pending)-i),
			zap.Error(err),
		)
		c.mu.Lock()
		c.buf.requeue(pending[i:])
		c.mu.Unlock()
		return
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("mqtt connection lost", zap.Error(err))
}

// IsConnected reports whether the broker connection is currently open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	if !c.client.IsConnectionOpen() {
		firstDrop := c.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		if firstDrop {
			c.logger.Warn("mqtt buffer full, dropping oldest messages")
		}
		return nil
	}
	c.mu.Unlock()

	return waitToken(c.client.Publish(topic, qos, retained, payload), topic)
}

func waitToken(token paho.Token, topic string) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishAlert sends the display effects of one reading.
func (c *RealClient) PublishAlert(eff logic.Effects) error {
	payload, err := FormatAlertPayload(eff)
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}
	// QoS 0: a newer reading supersedes a lost one.
	return c.publish(TopicAlerts, 0, false, payload)
}

// PublishNotification sends a push notification.
func (c *RealClient) PublishNotification(n Notification) error {
	payload, err := FormatNotificationPayload(n)
	if err != nil {
		return fmt.Errorf("format notification payload: %w", err)
	}
	return c.publish(TopicNotifications, 1, false, payload)
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(TopicSystem, 1, event.Retained, payload)
}

// Subscribe registers handler for topic, now if connected and again on
// every reconnect.
func (c *RealClient) Subscribe(topic string, handler func(payload []byte)) error {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *RealClient) subscribe(topic string, handler func([]byte)) error {
	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
