// Package logic contains the pure alerting rules for a brew session.
// This package has NO external dependencies (no store, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time fields on the input.
package logic

import "time"

// TempLevel is the classified band of a temperature reading.
type TempLevel string

const (
	TempUnknown  TempLevel = "UNKNOWN"
	TempDormant  TempLevel = "DORMANT"
	TempCritical TempLevel = "CRITICAL"
	TempWarning  TempLevel = "WARNING"
	TempOptimal  TempLevel = "OPTIMAL"
	TempLethal   TempLevel = "LETHAL"
)

// Severity orders levels for display weight. Higher is more dangerous.
func (l TempLevel) Severity() int {
	switch l {
	case TempWarning:
		return 1
	case TempDormant:
		return 2
	case TempCritical:
		return 3
	case TempLethal:
		return 4
	default:
		return 0
	}
}

// HarvestLevel is the taste guidance derived from pH.
type HarvestLevel string

const (
	HarvestUnknown  HarvestLevel = "UNKNOWN"
	HarvestSweet    HarvestLevel = "SWEET"
	HarvestTangy    HarvestLevel = "TANGY"
	HarvestVinegary HarvestLevel = "VINEGARY"
)

// Stage is the fermentation stage shown on the live pH display.
type Stage string

const (
	StageUnknown   Stage = "UNKNOWN"
	StageInitial   Stage = "INITIAL"
	StageActive    Stage = "ACTIVE"
	StageOptimal   Stage = "OPTIMAL"
	StageTasteTest Stage = "TASTE_TEST"
)

// TempResult is the classification of one temperature reading.
type TempResult struct {
	Level   TempLevel
	Title   string
	Message string
	Color   string // #RRGGBB
}

// HarvestResult is the harvest guidance for one pH reading.
type HarvestResult struct {
	Level      HarvestLevel
	Title      string
	Message    string
	OutOfRange bool // pH above the kombucha range (> 4.5)
}

// StageResult is the fermentation stage for one pH reading.
type StageResult struct {
	Stage       Stage
	Title       string
	Description string
	Color       string
}

// Emphasis is the visual emphasis a UI should apply for a reading.
type Emphasis string

const (
	EmphasisNone   Emphasis = ""
	EmphasisPulse  Emphasis = "PULSE"
	EmphasisWobble Emphasis = "WOBBLE"
	EmphasisFlash  Emphasis = "FLASH"
)

// NotificationKind selects the push channel for a notification.
type NotificationKind string

const (
	NotifyCritical     NotificationKind = "CRITICAL"
	NotifyHarvestReady NotificationKind = "HARVEST_READY"
)

// Notification is a push notification the debouncer decided to send.
type Notification struct {
	Kind     NotificationKind
	RecipeID string
	Title    string
	Message  string
	Value    float64 // °F for critical, pH for harvest
}

// Input is a single reading as seen by the debouncer.
// Nil TempF or PH means the reading did not carry that value.
type Input struct {
	RecipeID string
	TempF    *float64
	PH       *float64
	Brewing  bool
	Time     time.Time // when the rig took the reading

	// ReceivedAt is the local clock when the reading reached the pipeline.
	// Cooldowns are measured on it; zero falls back to Time.
	ReceivedAt time.Time
}

func (in Input) clock() time.Time {
	if in.ReceivedAt.IsZero() {
		return in.Time
	}
	return in.ReceivedAt
}

// Effects is everything a UI and the push boundary should do for one reading.
type Effects struct {
	Timestamp time.Time
	RecipeID  string

	// Indicator state, always set when the reading carried the value.
	Temperature *TempResult
	TempF       float64
	Stage       *StageResult
	PH          float64

	// Transient is set when a toast should be shown.
	Transient *TempResult
	Emphasis  Emphasis

	Notifications []Notification
}

// Severe reports whether the most dangerous emphasis fired.
func (e Effects) Severe() bool {
	return e.Emphasis == EmphasisFlash
}

// AlertCounts tracks how many alerts fired since the session started.
type AlertCounts struct {
	Transient    int
	Severe       int
	CriticalPush int
	Harvest      int
}
