package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/notify"
	"github.com/sweeney/brew-monitor/internal/store"
)

// session is the pipeline of one brewing recipe. Readings from both streams
// are serialized through mu so the debouncer sees one reading at a time.
type session struct {
	recipeID string
	userID   string
	m        *Manager

	mu        sync.Mutex
	debouncer *logic.Debouncer
	lastID    map[string]string // stream -> last processed document id
	stopped   bool

	subs []store.Subscription // guarded by mu
}

func (s *session) onTemperature(docs []store.Document, err error) {
	s.handle(StreamTemperature, temperatureInput, docs, err)
}

func (s *session) onPH(docs []store.Document, err error) {
	s.handle(StreamPH, phInput, docs, err)
}

// handle processes the newest document of a stream. Older documents in the
// result are never replayed.
func (s *session) handle(stream string, parse func(store.Document) (logic.Input, error), docs []store.Document, err error) {
	log := s.m.logger.With(zap.String("recipe_id", s.recipeID), zap.String("stream", stream))
	if err != nil {
		log.Warn("reading subscription error", zap.Error(err))
		s.m.metrics.ReadingSkipped(stream, "error")
		return
	}
	if len(docs) == 0 {
		return
	}
	doc := docs[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.lastID[stream] == doc.ID {
		return
	}
	s.lastID[stream] = doc.ID

	in, err := parse(doc)
	if err != nil {
		log.Debug("skipping malformed reading", zap.String("doc_id", doc.ID), zap.Error(err))
		s.m.metrics.ReadingSkipped(stream, "malformed")
		return
	}
	in.RecipeID = s.recipeID
	in.Brewing = true
	in.ReceivedAt = s.m.now()

	eff := s.debouncer.OnReading(in)
	s.m.metrics.ReadingProcessed(stream)
	log.Debug("reading processed",
		zap.String("doc_id", doc.ID),
		zap.Time("reading_time", in.Time),
		zap.String("emphasis", string(eff.Emphasis)),
	)

	s.apply(eff)
}

// apply fans the effects out to the UI, the push boundary and the tracker.
func (s *session) apply(eff logic.Effects) {
	if eff.Transient != nil {
		s.m.metrics.AlertFired("transient")
	}
	if eff.Severe() {
		s.m.metrics.AlertFired("severe")
	}
	for _, n := range eff.Notifications {
		s.m.metrics.AlertFired(string(n.Kind))
		s.m.logger.Info("notification triggered",
			zap.String("recipe_id", s.recipeID),
			zap.String("kind", string(n.Kind)),
			zap.Float64("value", n.Value),
		)
		notify.Dispatch(s.m.dispatcher, n)
	}

	if s.m.alerts != nil {
		if err := s.m.alerts.PublishAlert(eff); err != nil {
			s.m.logger.Debug("alert publish failed", zap.String("recipe_id", s.recipeID), zap.Error(err))
		}
	}
	if s.m.tracker != nil {
		s.m.tracker.UpdateSession(eff, s.debouncer.Counts(), s.debouncer.HarvestNotified())
	}
}

// subscribe opens the latest-reading subscription of both streams. The
// first delivery happens before it returns.
func (s *session) subscribe(ctx context.Context) error {
	streams := []struct {
		collection string
		fn         func([]store.Document, error)
	}{
		{store.TemperatureReadingsPath(s.userID, s.recipeID), s.onTemperature},
		{store.PHReadingsPath(s.userID, s.recipeID), s.onPH},
	}
	for _, st := range streams {
		q := store.Query{
			Collection: st.collection,
			OrderBy:    store.FieldTimestamp,
			Descending: true,
			Limit:      1,
		}
		sub, err := s.m.store.Subscribe(ctx, q, st.fn)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", st.collection, err)
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}
	return nil
}

// stop cancels both subscriptions, then clears the alert state. Cancel waits
// for an in-flight delivery, so nothing is processed after stop returns.
func (s *session) stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}

	s.mu.Lock()
	s.stopped = true
	s.debouncer.Reset()
	s.mu.Unlock()
}
