package mqtt

import (
	"sync"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// FakeClient records published messages for test assertions and lets tests
// inject incoming messages. Safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	alerts        []logic.Effects
	notifications []Notification
	systemEvents  []SystemEvent
	payloads      map[string][][]byte
	handlers      map[string]func([]byte)

	publishErr error
	closed     bool
	connected  bool
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		payloads:  make(map[string][][]byte),
		handlers:  make(map[string]func([]byte)),
		connected: true,
	}
}

// SetPublishError makes every publish fail with err. Nil clears it.
func (f *FakeClient) SetPublishError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr = err
}

// SetConnected controls the return value of IsConnected.
func (f *FakeClient) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

func (f *FakeClient) record(topic string, payload []byte) {
	f.payloads[topic] = append(f.payloads[topic], payload)
}

// PublishAlert records the effects.
func (f *FakeClient) PublishAlert(eff logic.Effects) error {
	payload, err := FormatAlertPayload(eff)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.alerts = append(f.alerts, eff)
	f.record(TopicAlerts, payload)
	return nil
}

// PublishNotification records the notification.
func (f *FakeClient) PublishNotification(n Notification) error {
	payload, err := FormatNotificationPayload(n)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.notifications = append(f.notifications, n)
	f.record(TopicNotifications, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.systemEvents = append(f.systemEvents, event)
	f.record(TopicSystem, payload)
	return nil
}

// Subscribe records the handler.
func (f *FakeClient) Subscribe(topic string, handler func(payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

// Deliver simulates an incoming message. It reports whether a handler was
// registered for topic.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(payload)
	return true
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Alerts returns the recorded alerts.
func (f *FakeClient) Alerts() []logic.Effects {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Effects(nil), f.alerts...)
}

// Notifications returns the recorded notifications.
func (f *FakeClient) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.notifications...)
}

// SystemEvents returns the recorded system events.
func (f *FakeClient) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// Payloads returns the JSON payloads published on topic.
func (f *FakeClient) Payloads(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads[topic]...)
}

// Reset clears recorded messages and injected errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = nil
	f.notifications = nil
	f.systemEvents = nil
	f.payloads = make(map[string][][]byte)
	f.publishErr = nil
	f.closed = false
}
