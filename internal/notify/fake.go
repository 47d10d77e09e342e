package notify

import (
	"sync"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// Sent is one notification recorded by FakeDispatcher.
type Sent struct {
	Kind      logic.NotificationKind
	SessionID string
	Title     string
	Message   string
	Value     float64
}

// FakeDispatcher records notifications for test assertions.
type FakeDispatcher struct {
	mu   sync.Mutex
	sent []Sent
}

// NewFakeDispatcher creates an empty FakeDispatcher.
func NewFakeDispatcher() *FakeDispatcher {
	return &FakeDispatcher{}
}

func (f *FakeDispatcher) NotifyCritical(sessionID, title, message string, currentValue float64) {
	f.record(Sent{logic.NotifyCritical, sessionID, title, message, currentValue})
}

func (f *FakeDispatcher) NotifyHarvestReady(sessionID, title, message string, currentValue float64) {
	f.record(Sent{logic.NotifyHarvestReady, sessionID, title, message, currentValue})
}

func (f *FakeDispatcher) record(s Sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
}

// Sent returns the recorded notifications.
func (f *FakeDispatcher) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Count returns how many notifications of kind were sent.
func (f *FakeDispatcher) Count(kind logic.NotificationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
