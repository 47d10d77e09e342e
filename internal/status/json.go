package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	SensorLock    LockJSON      `json:"sensor_lock"`
	Sessions      []SessionJSON `json:"sessions"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Store         StoreStatus   `json:"store"`
	Rig           RigJSON       `json:"rig_readings"`
	Config        ConfigJSON    `json:"config"`
}

// LockJSON reports the sensor lock holder.
type LockJSON struct {
	Held     bool   `json:"held"`
	RecipeID string `json:"recipe_id,omitempty"`
}

// SessionJSON is one monitored session.
type SessionJSON struct {
	RecipeID        string     `json:"recipe_id"`
	UserID          string     `json:"user_id"`
	Since           string     `json:"since"`
	LastReading     string     `json:"last_reading,omitempty"`
	Temperature     *TempJSON  `json:"temperature,omitempty"`
	Stage           *StageJSON `json:"stage,omitempty"`
	Alerts          AlertsJSON `json:"alerts"`
	HarvestNotified bool       `json:"harvest_notified"`
}

// TempJSON is the latest temperature classification.
type TempJSON struct {
	Level  string  `json:"level"`
	Title  string  `json:"title"`
	Color  string  `json:"color"`
	ValueF float64 `json:"value_f"`
}

// StageJSON is the latest fermentation stage.
type StageJSON struct {
	Stage string  `json:"stage"`
	Title string  `json:"title"`
	Color string  `json:"color"`
	PH    float64 `json:"ph"`
}

// AlertsJSON counts alerts fired in a session.
type AlertsJSON struct {
	Transient    int `json:"transient"`
	Severe       int `json:"severe"`
	CriticalPush int `json:"critical_push"`
	Harvest      int `json:"harvest"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// StoreStatus reports document store connection state.
type StoreStatus struct {
	Connected bool   `json:"connected"`
	Addr      string `json:"addr"`
}

// RigJSON counts raw rig readings.
type RigJSON struct {
	Stored  int `json:"stored"`
	Dropped int `json:"dropped"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs            int64   `json:"heartbeat_ms"`
	Broker                 string  `json:"broker"`
	WSBroker               string  `json:"ws_broker,omitempty"`
	HTTPAddr               string  `json:"http_addr"`
	SevereCooldownMs       int64   `json:"severe_cooldown_ms"`
	CriticalPushCooldownMs int64   `json:"critical_push_cooldown_ms"`
	HarvestTargetPH        float64 `json:"harvest_target_ph"`
	HarvestTolerance       float64 `json:"harvest_tolerance"`
	NotificationsEnabled   bool    `json:"notifications_enabled"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildSession(s Session) SessionJSON {
	out := SessionJSON{
		RecipeID:    s.RecipeID,
		UserID:      s.UserID,
		Since:       formatTime(s.Since),
		LastReading: formatTime(s.LastReadingAt),
		Alerts: AlertsJSON{
			Transient:    s.Counts.Transient,
			Severe:       s.Counts.Severe,
			CriticalPush: s.Counts.CriticalPush,
			Harvest:      s.Counts.Harvest,
		},
		HarvestNotified: s.HarvestNotified,
	}
	if s.Temperature != nil {
		out.Temperature = &TempJSON{
			Level:  string(s.Temperature.Level),
			Title:  s.Temperature.Title,
			Color:  s.Temperature.Color,
			ValueF: s.TempF,
		}
	}
	if s.Stage != nil {
		out.Stage = &StageJSON{
			Stage: string(s.Stage.Stage),
			Title: s.Stage.Title,
			Color: s.Stage.Color,
			PH:    s.PH,
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	sessions := make([]SessionJSON, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		sessions = append(sessions, buildSession(s))
	}

	return StatusInner{
		SensorLock:    LockJSON{Held: snap.LockHolder != "", RecipeID: snap.LockHolder},
		Sessions:      sessions,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Store:         StoreStatus{Connected: snap.StoreConnected, Addr: snap.Config.RedisAddr},
		Rig:           RigJSON{Stored: snap.Rig.Stored, Dropped: snap.Rig.Dropped},
		Config: ConfigJSON{
			HeartbeatMs:            snap.Config.HeartbeatMs,
			Broker:                 snap.Config.Broker,
			WSBroker:               snap.Config.WSBroker,
			HTTPAddr:               snap.Config.HTTPAddr,
			SevereCooldownMs:       snap.Config.SevereCooldownMs,
			CriticalPushCooldownMs: snap.Config.CriticalPushCooldownMs,
			HarvestTargetPH:        snap.Config.HarvestTargetPH,
			HarvestTolerance:       snap.Config.HarvestTolerance,
			NotificationsEnabled:   snap.Config.NotificationsEnabled,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
