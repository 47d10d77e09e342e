// Package notify is the push notification boundary. Dispatch is
// fire-and-forget: failures are logged and never reach the caller.
package notify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/mqtt"
)

// Notification channels.
const (
	ChannelCritical = "temp_alerts_critical"
	ChannelHarvest  = "ph_alerts"
)

// Dispatcher sends push notifications.
type Dispatcher interface {
	NotifyCritical(sessionID, title, message string, currentValue float64)
	NotifyHarvestReady(sessionID, title, message string, currentValue float64)
}

// Dispatch routes a debouncer notification to the matching method.
func Dispatch(d Dispatcher, n logic.Notification) {
	switch n.Kind {
	case logic.NotifyCritical:
		d.NotifyCritical(n.RecipeID, n.Title, n.Message, n.Value)
	case logic.NotifyHarvestReady:
		d.NotifyHarvestReady(n.RecipeID, n.Title, n.Message, n.Value)
	}
}

// CriticalBody formats the body of a critical temperature notification.
func CriticalBody(message string, tempF float64) string {
	return fmt.Sprintf("%s  •  Current: %.1f°F", message, tempF)
}

// HarvestBody formats the body of a harvest notification.
func HarvestBody(message string, ph float64) string {
	return fmt.Sprintf("%s  •  Current pH: %.2f", message, ph)
}

// NotificationPublisher is the transport a MQTTDispatcher sends through.
type NotificationPublisher interface {
	PublishNotification(n mqtt.Notification) error
}

// MQTTDispatcher publishes notifications to MQTT for delivery to devices.
type MQTTDispatcher struct {
	publisher NotificationPublisher
	enabled   bool
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewMQTTDispatcher creates a dispatcher. When enabled is false every
// notification is dropped silently.
func NewMQTTDispatcher(p NotificationPublisher, enabled bool, now func() time.Time, logger *zap.Logger, m *metrics.Metrics) *MQTTDispatcher {
	return &MQTTDispatcher{publisher: p, enabled: enabled, now: now, logger: logger, metrics: m}
}

// NotifyCritical implements Dispatcher.
func (d *MQTTDispatcher) NotifyCritical(sessionID, title, message string, currentValue float64) {
	d.send(mqtt.Notification{
		Channel:   ChannelCritical,
		Kind:      logic.NotifyCritical,
		SessionID: sessionID,
		Title:     title,
		Body:      CriticalBody(message, currentValue),
		Value:     currentValue,
	})
}

// NotifyHarvestReady implements Dispatcher.
func (d *MQTTDispatcher) NotifyHarvestReady(sessionID, title, message string, currentValue float64) {
	d.send(mqtt.Notification{
		Channel:   ChannelHarvest,
		Kind:      logic.NotifyHarvestReady,
		SessionID: sessionID,
		Title:     title,
		Body:      HarvestBody(message, currentValue),
		Value:     currentValue,
	})
}

func (d *MQTTDispatcher) send(n mqtt.Notification) {
	kind := string(n.Kind)
	if !d.enabled {
		d.metrics.Notification(kind, "disabled")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.metrics.Notification(kind, "failed")
			d.logger.Warn("notification dispatch panicked",
				zap.String("channel", n.Channel),
				zap.Any("panic", r),
			)
		}
	}()

	n.Timestamp = d.now()
	if err := d.publisher.PublishNotification(n); err != nil {
		d.metrics.Notification(kind, "failed")
		d.logger.Warn("notification dispatch failed",
			zap.String("channel", n.Channel),
			zap.String("session_id", n.SessionID),
			zap.Error(err),
		)
		return
	}
	d.metrics.Notification(kind, "sent")
	d.logger.Info("notification sent",
		zap.String("channel", n.Channel),
		zap.String("session_id", n.SessionID),
	)
}
