// Package status provides a thread-safe status tracker for the brew-monitor daemon.
// It is read by HTTP handlers and by the heartbeat publisher.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs            int64
	Broker                 string
	WSBroker               string // Websocket broker URL for browser MQTT (empty = disabled)
	RedisAddr              string
	HTTPAddr               string
	SevereCooldownMs       int64
	CriticalPushCooldownMs int64
	HarvestTargetPH        float64
	HarvestTolerance       float64
	NotificationsEnabled   bool
}

// Session is the live state of one monitored brew session.
type Session struct {
	RecipeID        string
	UserID          string
	Since           time.Time
	LastReadingAt   time.Time
	Temperature     *logic.TempResult
	TempF           float64
	Stage           *logic.StageResult
	PH              float64
	Counts          logic.AlertCounts
	HarvestNotified bool
}

// RigCounts tallies raw rig readings.
type RigCounts struct {
	Stored  int
	Dropped int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	LockHolder     string
	Sessions       []Session // ordered by recipe id
	Rig            RigCounts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	StoreConnected bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu       sync.RWMutex
	snap     Snapshot
	sessions map[string]Session
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		sessions: make(map[string]Session),
	}
}

// StartSession records that a recipe is now monitored. Any previous state
// for the recipe is replaced.
func (t *Tracker) StartSession(recipeID, userID string, since time.Time) {
	t.mu.Lock()
	t.sessions[recipeID] = Session{RecipeID: recipeID, UserID: userID, Since: since}
	t.mu.Unlock()
}

// UpdateSession applies the effects of one reading to a monitored session.
// Unknown recipes are ignored.
func (t *Tracker) UpdateSession(eff logic.Effects, counts logic.AlertCounts, harvestNotified bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[eff.RecipeID]
	if !ok {
		return
	}
	s.LastReadingAt = eff.Timestamp
	if eff.Temperature != nil {
		temp := *eff.Temperature
		s.Temperature = &temp
		s.TempF = eff.TempF
	}
	if eff.Stage != nil {
		stage := *eff.Stage
		s.Stage = &stage
		s.PH = eff.PH
	}
	s.Counts = counts
	s.HarvestNotified = harvestNotified
	t.sessions[eff.RecipeID] = s
}

// EndSession forgets a monitored session.
func (t *Tracker) EndSession(recipeID string) {
	t.mu.Lock()
	delete(t.sessions, recipeID)
	t.mu.Unlock()
}

// SetLockHolder records the recipe currently holding the sensor lock.
func (t *Tracker) SetLockHolder(recipeID string) {
	t.mu.Lock()
	t.snap.LockHolder = recipeID
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetStoreConnected sets the document store connection status.
func (t *Tracker) SetStoreConnected(connected bool) {
	t.mu.Lock()
	t.snap.StoreConnected = connected
	t.mu.Unlock()
}

// RigReadingStored counts a rig reading appended to the store.
func (t *Tracker) RigReadingStored() {
	t.mu.Lock()
	t.snap.Rig.Stored++
	t.mu.Unlock()
}

// RigReadingDropped counts a rig reading that was discarded.
func (t *Tracker) RigReadingDropped() {
	t.mu.Lock()
	t.snap.Rig.Dropped++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sessions = make([]Session, 0, len(t.sessions))
	for _, sess := range t.sessions {
		s.Sessions = append(s.Sessions, sess)
	}
	t.mu.RUnlock()

	sort.Slice(s.Sessions, func(i, j int) bool {
		return s.Sessions[i].RecipeID < s.Sessions[j].RecipeID
	})
	s.Now = time.Now()
	return s
}
