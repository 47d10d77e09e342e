// Package ingest runs the live reading pipeline for brewing recipes.
//
// A Manager holds one session per monitored recipe. Each session subscribes
// to the newest temperature and pH document of its recipe and feeds them to
// an AlertDebouncer that starts fresh every time monitoring starts.
package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/notify"
	"github.com/sweeney/brew-monitor/internal/recipe"
	"github.com/sweeney/brew-monitor/internal/store"
)

// AlertPublisher receives the display effects of every processed reading.
type AlertPublisher interface {
	PublishAlert(eff logic.Effects) error
}

// Tracker records live session state for the status surfaces.
type Tracker interface {
	StartSession(recipeID, userID string, since time.Time)
	UpdateSession(eff logic.Effects, counts logic.AlertCounts, harvestNotified bool)
	EndSession(recipeID string)
}

// Options configures a Manager. Alerts, Tracker and Metrics are optional.
type Options struct {
	Store      store.Store
	Debounce   logic.DebounceConfig
	Dispatcher notify.Dispatcher
	Alerts     AlertPublisher
	Tracker    Tracker
	Now        func() time.Time
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Manager starts and stops reading pipelines. It implements lifecycle.Monitor.
type Manager struct {
	store      store.Store
	cfg        logic.DebounceConfig
	dispatcher notify.Dispatcher
	alerts     AlertPublisher
	tracker    Tracker
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*session
	epoch    map[string]uint64 // bumped by every Start and Stop of a recipe
}

// NewManager creates a Manager with no active sessions.
func NewManager(o Options) *Manager {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Manager{
		store:      o.Store,
		cfg:        o.Debounce,
		dispatcher: o.Dispatcher,
		alerts:     o.Alerts,
		tracker:    o.Tracker,
		now:        o.Now,
		logger:     o.Logger,
		metrics:    o.Metrics,
		sessions:   make(map[string]*session),
		epoch:      make(map[string]uint64),
	}
}

// Start begins monitoring rec with fresh alert state. A session already
// running for the recipe is stopped first. The subscriptions are opened
// without holding the manager lock; a Stop or a newer Start for the same
// recipe that lands meanwhile wins, and this session is discarded.
func (m *Manager) Start(ctx context.Context, rec recipe.Recipe) error {
	m.mu.Lock()
	old := m.sessions[rec.ID]
	delete(m.sessions, rec.ID)
	m.epoch[rec.ID]++
	epoch := m.epoch[rec.ID]
	m.metrics.SetMonitoredSessions(len(m.sessions))
	m.mu.Unlock()

	if old != nil {
		old.stop()
	}

	m.mu.Lock()
	if m.epoch[rec.ID] != epoch {
		m.mu.Unlock()
		return nil
	}
	if m.tracker != nil {
		m.tracker.StartSession(rec.ID, rec.UserID, m.now())
	}
	m.mu.Unlock()

	s := &session{
		recipeID:  rec.ID,
		userID:    rec.UserID,
		m:         m,
		debouncer: logic.NewDebouncer(m.cfg),
		lastID:    make(map[string]string),
	}

	if err := s.subscribe(ctx); err != nil {
		s.stop()
		m.mu.Lock()
		if m.epoch[rec.ID] == epoch && m.tracker != nil {
			m.tracker.EndSession(rec.ID)
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.epoch[rec.ID] != epoch {
		m.mu.Unlock()
		s.stop()
		m.logger.Info("monitoring start superseded", zap.String("recipe_id", rec.ID))
		return nil
	}
	m.sessions[rec.ID] = s
	m.metrics.SetMonitoredSessions(len(m.sessions))
	m.mu.Unlock()

	m.logger.Info("monitoring started",
		zap.String("recipe_id", rec.ID),
		zap.String("user_id", rec.UserID),
	)
	return nil
}

// Stop ends monitoring of a recipe. Stopping an unmonitored recipe is a no-op,
// but it still cancels a Start for the recipe that is in flight.
func (m *Manager) Stop(recipeID string) {
	m.mu.Lock()
	s, ok := m.sessions[recipeID]
	delete(m.sessions, recipeID)
	if _, known := m.epoch[recipeID]; known {
		m.epoch[recipeID]++
	}
	if m.tracker != nil {
		m.tracker.EndSession(recipeID)
	}
	m.metrics.SetMonitoredSessions(len(m.sessions))
	m.mu.Unlock()

	if !ok {
		return
	}
	s.stop()
	m.logger.Info("monitoring stopped", zap.String("recipe_id", recipeID))
}

// StopAll stops every session. Used on shutdown.
func (m *Manager) StopAll() {
	for _, id := range m.Active() {
		m.Stop(id)
	}
}

// Active returns the monitored recipe ids in sorted order.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Monitoring reports whether recipeID has a running session.
func (m *Manager) Monitoring(recipeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[recipeID]
	return ok
}
