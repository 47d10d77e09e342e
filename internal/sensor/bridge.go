package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/ingest"
	"github.com/sweeney/brew-monitor/internal/lock"
	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/store"
)

// ErrNoHolder is returned when a reading arrives while no recipe holds the lock.
var ErrNoHolder = errors.New("no recipe holds the sensor lock")

// DefaultWriteTimeout bounds the store calls made for one reading.
const DefaultWriteTimeout = 10 * time.Second

// HolderSource reports the current lock holder.
type HolderSource interface {
	Current(ctx context.Context) (lock.Holder, error)
}

// Subscriber delivers raw rig payloads.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
}

// Counter tallies bridged readings for the status page.
type Counter interface {
	RigReadingStored()
	RigReadingDropped()
}

// Options configures a Bridge. Counter and Metrics are optional.
type Options struct {
	Store   store.Store
	Lock    HolderSource
	Topic   string
	Timeout time.Duration
	Now     func() time.Time
	Counter Counter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Bridge attributes rig readings to the lock holder.
type Bridge struct {
	store   store.Store
	lock    HolderSource
	topic   string
	timeout time.Duration
	now     func() time.Time
	counter Counter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewBridge creates a Bridge.
func NewBridge(o Options) *Bridge {
	if o.Timeout <= 0 {
		o.Timeout = DefaultWriteTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Bridge{
		store:   o.Store,
		lock:    o.Lock,
		topic:   o.Topic,
		timeout: o.Timeout,
		now:     o.Now,
		counter: o.Counter,
		logger:  o.Logger,
		metrics: o.Metrics,
	}
}

// Attach subscribes the bridge to its rig topic.
func (b *Bridge) Attach(sub Subscriber) error {
	if err := sub.Subscribe(b.topic, b.Handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	b.logger.Info("rig bridge attached", zap.String("topic", b.topic))
	return nil
}

// Handle processes one raw payload. Failures are logged and counted, never
// returned, since the transport has nobody to report them to.
func (b *Bridge) Handle(payload []byte) {
	r, err := ParseReading(payload)
	if err != nil {
		b.drop("malformed", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err = b.Store(ctx, r)
	switch {
	case errors.Is(err, ErrNoHolder):
		b.drop("no_holder", err)
	case err != nil:
		b.drop("error", err)
	default:
		b.metrics.RigReading("stored")
		if b.counter != nil {
			b.counter.RigReadingStored()
		}
	}
}

func (b *Bridge) drop(reason string, err error) {
	b.logger.Debug("rig reading dropped", zap.String("reason", reason), zap.Error(err))
	b.metrics.RigReading(reason)
	if b.counter != nil {
		b.counter.RigReadingDropped()
	}
}

// Store appends r to the collections of the recipe holding the lock. A
// reading with both values produces one temperature and one pH document.
func (b *Bridge) Store(ctx context.Context, r Reading) error {
	h, err := b.lock.Current(ctx)
	if err != nil {
		return fmt.Errorf("read sensor lock: %w", err)
	}
	if h.Empty() {
		return ErrNoHolder
	}

	at := b.now().UTC()
	if r.Timestamp != nil {
		at = r.Timestamp.UTC()
	}
	base := store.Fields{
		ingest.FieldRecipeID: h.RecipeID,
		ingest.FieldUserID:   h.UserID,
		ingest.FieldSensorID: r.SensorID,
		store.FieldTimestamp: at,
	}

	if r.HasTemperature() {
		c, f := r.Temperatures()
		doc := withFields(base, store.Fields{
			ingest.FieldTemperatureC: c,
			ingest.FieldTemperatureF: f,
		})
		if _, err := b.store.Add(ctx, store.TemperatureReadingsPath(h.UserID, h.RecipeID), doc); err != nil {
			return fmt.Errorf("store temperature reading: %w", err)
		}
	}
	if r.HasPH() {
		doc := withFields(base, store.Fields{ingest.FieldPHValue: *r.PHValue})
		if _, err := b.store.Add(ctx, store.PHReadingsPath(h.UserID, h.RecipeID), doc); err != nil {
			return fmt.Errorf("store pH reading: %w", err)
		}
	}

	b.logger.Debug("rig reading stored",
		zap.String("recipe_id", h.RecipeID),
		zap.String("sensor_id", r.SensorID),
		zap.Time("timestamp", at),
	)
	return nil
}

func withFields(base, extra store.Fields) store.Fields {
	out := make(store.Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
