package logic

import (
	"math"
	"time"
)

// DebounceConfig holds the cooldown windows and harvest band.
type DebounceConfig struct {
	SevereCooldown       time.Duration
	CriticalPushCooldown time.Duration
	HarvestTargetPH      float64
	HarvestTolerance     float64
}

// DefaultDebounceConfig returns the production cooldowns: 60s between severe
// flashes, 5m between critical pushes, harvest at pH 3.0 ± 0.05.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		SevereCooldown:       60 * time.Second,
		CriticalPushCooldown: 5 * time.Minute,
		HarvestTargetPH:      3.0,
		HarvestTolerance:     0.05,
	}
}

// Debouncer decides which alerts fire for a monitored session.
// Not safe for concurrent use; the caller serializes readings.
type Debouncer struct {
	cfg DebounceConfig

	lastLevelShown     TempLevel
	lastSevereAt       time.Time
	lastCriticalPushAt time.Time
	harvestNotified    bool
	counts             AlertCounts
}

// NewDebouncer creates a debouncer with fresh session state.
func NewDebouncer(cfg DebounceConfig) *Debouncer {
	return &Debouncer{cfg: cfg}
}

// OnReading classifies the reading and returns the effects to apply.
// It never fails; a reading with neither value yields empty effects.
func (d *Debouncer) OnReading(in Input) Effects {
	eff := Effects{Timestamp: in.Time, RecipeID: in.RecipeID}

	if in.TempF != nil {
		d.processTemperature(in, *in.TempF, &eff)
	}
	if in.PH != nil {
		d.processPH(in, *in.PH, &eff)
	}

	return eff
}

func (d *Debouncer) processTemperature(in Input, tempF float64, eff *Effects) {
	r := ClassifyTemperatureF(tempF)
	eff.Temperature = &r
	eff.TempF = tempF

	// One toast per distinct level; re-armed only when the level changes.
	if r.Level != TempOptimal && r.Level != TempUnknown && r.Level != d.lastLevelShown {
		transient := r
		eff.Transient = &transient
		d.lastLevelShown = r.Level
		d.counts.Transient++
	}

	now := in.clock()
	switch r.Level {
	case TempLethal:
		if cooledDown(d.lastSevereAt, now, d.cfg.SevereCooldown) {
			eff.Emphasis = EmphasisFlash
			d.lastSevereAt = now
			d.counts.Severe++
		}
	case TempCritical:
		eff.Emphasis = EmphasisWobble
		if cooledDown(d.lastCriticalPushAt, now, d.cfg.CriticalPushCooldown) {
			d.lastCriticalPushAt = now
			d.counts.CriticalPush++
			eff.Notifications = append(eff.Notifications, Notification{
				Kind:     NotifyCritical,
				RecipeID: in.RecipeID,
				Title:    r.Title,
				Message:  r.Message,
				Value:    tempF,
			})
		}
	case TempWarning:
		eff.Emphasis = EmphasisPulse
	}
}

func (d *Debouncer) processPH(in Input, ph float64, eff *Effects) {
	stage := ClassifyStage(ph)
	eff.Stage = &stage
	eff.PH = ph

	if !in.Brewing || d.harvestNotified {
		return
	}
	if math.IsNaN(ph) || math.IsInf(ph, 0) {
		return
	}
	if math.Abs(ph-d.cfg.HarvestTargetPH) > d.cfg.HarvestTolerance {
		return
	}

	d.harvestNotified = true
	d.counts.Harvest++
	h := ClassifyHarvest(ph)
	eff.Notifications = append(eff.Notifications, Notification{
		Kind:     NotifyHarvestReady,
		RecipeID: in.RecipeID,
		Title:    h.Title,
		Message:  h.Message,
		Value:    ph,
	})
}

// cooledDown reports whether strictly more than window has passed since last.
// A zero last means the alert never fired this session.
func cooledDown(last, now time.Time, window time.Duration) bool {
	return last.IsZero() || now.Sub(last) > window
}

// Reset clears all session state. Called whenever monitoring stops.
func (d *Debouncer) Reset() {
	d.lastLevelShown = ""
	d.lastSevereAt = time.Time{}
	d.lastCriticalPushAt = time.Time{}
	d.harvestNotified = false
	d.counts = AlertCounts{}
}

// HarvestNotified reports whether the harvest push already fired this session.
func (d *Debouncer) HarvestNotified() bool {
	return d.harvestNotified
}

// LastLevelShown returns the level of the most recent toast.
func (d *Debouncer) LastLevelShown() TempLevel {
	return d.lastLevelShown
}

// Counts returns the alerts fired since the last reset.
func (d *Debouncer) Counts() AlertCounts {
	return d.counts
}
