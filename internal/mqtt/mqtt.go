// Package mqtt provides MQTT publishing and subscribing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// Topics published by the monitor.
const (
	// TopicAlerts carries the display effects of every processed reading.
	TopicAlerts = "kombucha/monitor/alerts"
	// TopicNotifications carries push notifications.
	TopicNotifications = "kombucha/monitor/notifications"
	// TopicSystem carries daemon lifecycle events.
	TopicSystem = "kombucha/monitor/system"
	// DefaultRigTopic is where the sensor rig publishes raw readings.
	DefaultRigTopic = "kombucha/rig/readings"
)

// Publisher publishes monitor output to MQTT.
type Publisher interface {
	// PublishAlert sends the display effects of one reading.
	PublishAlert(eff logic.Effects) error

	// PublishNotification sends a push notification.
	PublishNotification(n Notification) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber receives messages from MQTT.
type Subscriber interface {
	// Subscribe registers handler for topic. The subscription survives reconnects.
	Subscribe(topic string, handler func(payload []byte)) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Notification is a push notification addressed to a notification channel.
type Notification struct {
	Timestamp time.Time
	Channel   string
	Kind      logic.NotificationKind
	SessionID string
	Title     string
	Body      string
	Value     float64
}

// NotificationPayload is the JSON form of a Notification.
type NotificationPayload struct {
	Notification NotificationInner `json:"notification"`
}

// NotificationInner contains the notification details.
type NotificationInner struct {
	Timestamp string  `json:"timestamp"`
	Channel   string  `json:"channel"`
	Kind      string  `json:"kind"`
	SessionID string  `json:"session_id"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Value     float64 `json:"value"`
}

// FormatNotificationPayload creates the JSON payload for a notification.
func FormatNotificationPayload(n Notification) ([]byte, error) {
	return json.Marshal(NotificationPayload{
		Notification: NotificationInner{
			Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
			Channel:   n.Channel,
			Kind:      string(n.Kind),
			SessionID: n.SessionID,
			Title:     n.Title,
			Body:      n.Body,
			Value:     n.Value,
		},
	})
}

// AlertPayload is the JSON form of the display effects of one reading.
type AlertPayload struct {
	Alert AlertInner `json:"alert"`
}

// AlertInner contains the indicator state and one-shot effects.
type AlertInner struct {
	Timestamp   string          `json:"timestamp"`
	RecipeID    string          `json:"recipe_id"`
	Temperature *TempIndicator  `json:"temperature,omitempty"`
	Stage       *StageIndicator `json:"stage,omitempty"`
	Toast       *Toast          `json:"toast,omitempty"`
	Emphasis    string          `json:"emphasis,omitempty"`
}

// TempIndicator is the live temperature status.
type TempIndicator struct {
	Level   string  `json:"level"`
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Color   string  `json:"color"`
	ValueF  float64 `json:"value_f"`
}

// StageIndicator is the live fermentation stage.
type StageIndicator struct {
	Stage       string  `json:"stage"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	PH          float64 `json:"ph"`
}

// Toast is a transient alert.
type Toast struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Color   string `json:"color"`
}

// FormatAlertPayload creates the JSON payload for the effects of one reading.
func FormatAlertPayload(eff logic.Effects) ([]byte, error) {
	inner := AlertInner{
		Timestamp: eff.Timestamp.UTC().Format(time.RFC3339),
		RecipeID:  eff.RecipeID,
		Emphasis:  string(eff.Emphasis),
	}
	if t := eff.Temperature; t != nil {
		inner.Temperature = &TempIndicator{
			Level:   string(t.Level),
			Title:   t.Title,
			Message: t.Message,
			Color:   t.Color,
			ValueF:  eff.TempF,
		}
	}
	if s := eff.Stage; s != nil {
		inner.Stage = &StageIndicator{
			Stage:       string(s.Stage),
			Title:       s.Title,
			Description: s.Description,
			Color:       s.Color,
			PH:          eff.PH,
		}
	}
	if t := eff.Transient; t != nil {
		inner.Toast = &Toast{
			Level:   string(t.Level),
			Title:   t.Title,
			Message: t.Message,
			Color:   t.Color,
		}
	}
	return json.Marshal(AlertPayload{Alert: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
