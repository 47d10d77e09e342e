package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{HeartbeatMs: 60000, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HeartbeatMs != 60000 {
		t.Errorf("Config.HeartbeatMs: got %d, want 60000", snap.Config.HeartbeatMs)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if len(snap.Sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(snap.Sessions))
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.LockHolder != "" {
		t.Errorf("expected free lock, got %q", snap.LockHolder)
	}
}

func tempPtr(v float64) *float64 { return &v }

func TestSessionLifecycle(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tr.StartSession("r1", "u1", since)

	d := logic.NewDebouncer(logic.DefaultDebounceConfig())
	at := since.Add(time.Minute)
	eff := d.OnReading(logic.Input{RecipeID: "r1", TempF: tempPtr(70), PH: tempPtr(3.8), Brewing: true, Time: at})
	tr.UpdateSession(eff, d.Counts(), d.HarvestNotified())

	snap := tr.Snapshot()
	if len(snap.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(snap.Sessions))
	}
	s := snap.Sessions[0]
	if s.UserID != "u1" || !s.Since.Equal(since) {
		t.Errorf("session identity: got %+v", s)
	}
	if !s.LastReadingAt.Equal(at) {
		t.Errorf("LastReadingAt: got %v, want %v", s.LastReadingAt, at)
	}
	if s.Temperature == nil || s.Temperature.Level != logic.TempWarning {
		t.Errorf("Temperature: got %+v, want WARNING", s.Temperature)
	}
	if s.Stage == nil || s.Stage.Stage != logic.StageActive {
		t.Errorf("Stage: got %+v, want ACTIVE", s.Stage)
	}
	if s.Counts.Transient != 1 {
		t.Errorf("Counts.Transient: got %d, want 1", s.Counts.Transient)
	}

	tr.EndSession("r1")
	if n := len(tr.Snapshot().Sessions); n != 0 {
		t.Errorf("expected session removed, got %d", n)
	}
}

func TestUpdateUnknownSessionIgnored(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.UpdateSession(logic.Effects{RecipeID: "ghost", Timestamp: time.Now()}, logic.AlertCounts{Severe: 1}, false)

	if n := len(tr.Snapshot().Sessions); n != 0 {
		t.Errorf("expected no sessions, got %d", n)
	}
}

func TestUpdateKeepsOtherStream(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.StartSession("r1", "u1", time.Now())

	d := logic.NewDebouncer(logic.DefaultDebounceConfig())
	now := time.Now()
	tr.UpdateSession(d.OnReading(logic.Input{RecipeID: "r1", TempF: tempPtr(77), Time: now}), d.Counts(), false)
	tr.UpdateSession(d.OnReading(logic.Input{RecipeID: "r1", PH: tempPtr(4.8), Time: now.Add(time.Second)}), d.Counts(), false)

	s := tr.Snapshot().Sessions[0]
	if s.Temperature == nil || s.TempF != 77 {
		t.Errorf("temperature lost after pH update: %+v", s)
	}
	if s.Stage == nil || s.PH != 4.8 {
		t.Errorf("stage not recorded: %+v", s)
	}
}

func TestSessionsSorted(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	for _, id := range []string{"c", "a", "b"} {
		tr.StartSession(id, "u", time.Now())
	}

	snap := tr.Snapshot()
	for i, want := range []string{"a", "b", "c"} {
		if snap.Sessions[i].RecipeID != want {
			t.Errorf("Sessions[%d]: got %q, want %q", i, snap.Sessions[i].RecipeID, want)
		}
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestLockHolderAndRigCounts(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetLockHolder("r9")
	tr.SetStoreConnected(true)
	tr.RigReadingStored()
	tr.RigReadingStored()
	tr.RigReadingDropped()

	snap := tr.Snapshot()
	if snap.LockHolder != "r9" {
		t.Errorf("LockHolder: got %q, want r9", snap.LockHolder)
	}
	if !snap.StoreConnected {
		t.Error("expected StoreConnected=true")
	}
	if snap.Rig.Stored != 2 || snap.Rig.Dropped != 1 {
		t.Errorf("Rig: got %+v, want {2 1}", snap.Rig)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.StartSession("r1", "u1", time.Now())

	snap := tr.Snapshot()
	snap.Sessions[0].UserID = "mutated"

	if got := tr.Snapshot().Sessions[0].UserID; got != "u1" {
		t.Errorf("snapshot aliased tracker state: got %q", got)
	}
}

func TestUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(90 * time.Second),
	}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	temp := logic.ClassifyTemperatureF(95)
	stage := logic.ClassifyStage(3.0)
	snap := Snapshot{
		LockHolder: "r1",
		Sessions: []Session{{
			RecipeID:      "r1",
			UserID:        "u1",
			Since:         start,
			LastReadingAt: start.Add(time.Hour),
			Temperature:   &temp,
			TempF:         95,
			Stage:         &stage,
			PH:            3.0,
			Counts:        logic.AlertCounts{Transient: 1, Severe: 1},
		}},
		Rig:            RigCounts{Stored: 4},
		StartTime:      start,
		Now:            start.Add(2 * time.Hour),
		MQTTConnected:  true,
		StoreConnected: true,
		Config: Config{
			Broker:           "tcp://broker:1883",
			RedisAddr:        "localhost:6379",
			SevereCooldownMs: 60000,
			HarvestTargetPH:  3.0,
		},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}
	s := parsed.Status
	if s.Event != "" {
		t.Errorf("Event: got %q, want empty", s.Event)
	}
	if !s.SensorLock.Held || s.SensorLock.RecipeID != "r1" {
		t.Errorf("SensorLock: got %+v", s.SensorLock)
	}
	if s.UptimeSeconds != 7200 {
		t.Errorf("UptimeSeconds: got %d, want 7200", s.UptimeSeconds)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("StartTime: got %q", s.StartTime)
	}
	if len(s.Sessions) != 1 {
		t.Fatalf("Sessions: got %d, want 1", len(s.Sessions))
	}
	sess := s.Sessions[0]
	if sess.Temperature == nil || sess.Temperature.Level != "LETHAL" || sess.Temperature.ValueF != 95 {
		t.Errorf("Temperature: got %+v", sess.Temperature)
	}
	if sess.Stage == nil || sess.Stage.Stage != "OPTIMAL" {
		t.Errorf("Stage: got %+v", sess.Stage)
	}
	if sess.Alerts.Severe != 1 {
		t.Errorf("Alerts.Severe: got %d, want 1", sess.Alerts.Severe)
	}
	if sess.LastReading != "2026-01-01T01:00:00Z" {
		t.Errorf("LastReading: got %q", sess.LastReading)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Store.Addr != "localhost:6379" {
		t.Errorf("Store.Addr: got %q", s.Store.Addr)
	}
	if s.Rig.Stored != 4 {
		t.Errorf("Rig.Stored: got %d, want 4", s.Rig.Stored)
	}
	if s.Config.SevereCooldownMs != 60000 {
		t.Errorf("Config.SevereCooldownMs: got %d", s.Config.SevereCooldownMs)
	}
}

func TestFormatJSONEmptySessions(t *testing.T) {
	now := time.Now()
	data := FormatJSON(Snapshot{StartTime: now, Now: now})

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got := string(raw["status"]["sessions"]); got != "[]" {
		t.Errorf("sessions: got %s, want []", got)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	data := FormatStatusEvent(Snapshot{StartTime: now, Now: now}, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.SensorLock.Held {
		t.Error("expected free lock")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.StartSession("r1", "u1", time.Now())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.UpdateSession(logic.Effects{RecipeID: "r1", Timestamp: time.Now()}, logic.AlertCounts{Transient: i}, false)
			tr.SetMQTTConnected(i%2 == 0)
			tr.RigReadingStored()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
