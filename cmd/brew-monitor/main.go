// Command brew-monitor watches kombucha brew sessions. It attributes sensor
// rig readings to the brewing recipe, raises temperature and harvest alerts,
// and serves the recipe lifecycle API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/config"
	"github.com/sweeney/brew-monitor/internal/ingest"
	"github.com/sweeney/brew-monitor/internal/lifecycle"
	"github.com/sweeney/brew-monitor/internal/lock"
	"github.com/sweeney/brew-monitor/internal/logging"
	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/mqtt"
	"github.com/sweeney/brew-monitor/internal/notify"
	"github.com/sweeney/brew-monitor/internal/purge"
	"github.com/sweeney/brew-monitor/internal/recipe"
	"github.com/sweeney/brew-monitor/internal/sensor"
	"github.com/sweeney/brew-monitor/internal/status"
	"github.com/sweeney/brew-monitor/internal/store"
	"github.com/sweeney/brew-monitor/internal/web"
)

// statusRefresh is how often the loop samples connection and lock state.
const statusRefresh = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	printState := flag.Bool("print-state", false, "Print the sensor lock holder and exit")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "brew-monitor")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, *printState, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg config.Config, printState bool, logger *zap.Logger) error {
	ctx := context.Background()

	rdb := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	docs := store.NewRedisStore(rdb, cfg.RedisPrefix, logger.Named("store"))
	if err := docs.Ping(ctx); err != nil {
		return fmt.Errorf("connect to store %s: %w", cfg.RedisAddr, err)
	}
	sensorLock := lock.New(docs, logger.Named("lock"))

	// Print state mode
	if printState {
		h, err := sensorLock.Current(ctx)
		if err != nil {
			return fmt.Errorf("read sensor lock: %w", err)
		}
		fmt.Println(describeHolder(h))
		return nil
	}

	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:     cfg.Broker,
		ClientID:   cfg.ClientID,
		Username:   cfg.MQTTUsername,
		Password:   cfg.MQTTPassword,
		BufferSize: cfg.MQTTBuffer,
	}, logger.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), cfg.Status())
	tracker.SetStoreConnected(true)
	tracker.SetMQTTConnected(client.IsConnected())

	dispatcher := notify.NewMQTTDispatcher(client, cfg.NotificationsEnabled, time.Now, logger.Named("notify"), m)
	monitor := ingest.NewManager(ingest.Options{
		Store:      docs,
		Debounce:   cfg.Debounce(),
		Dispatcher: dispatcher,
		Alerts:     client,
		Tracker:    tracker,
		Logger:     logger.Named("ingest"),
		Metrics:    m,
	})
	defer monitor.StopAll()

	svc := lifecycle.NewService(lifecycle.Deps{
		Recipes: recipe.NewRepository(docs, time.Now, logger.Named("recipe")),
		Lock:    sensorLock,
		Purger:  purge.New(docs, cfg.PurgeConcurrency, logger.Named("purge"), m),
		Monitor: monitor,
		Logger:  logger.Named("lifecycle"),
		Metrics: m,
	})
	if err := svc.RestoreMonitoring(ctx); err != nil {
		logger.Warn("could not restore monitoring", zap.Error(err))
	}

	bridge := sensor.NewBridge(sensor.Options{
		Store:   docs,
		Lock:    sensorLock,
		Topic:   cfg.RigTopic,
		Counter: tracker,
		Logger:  logger.Named("sensor"),
		Metrics: m,
	})
	if err := bridge.Attach(client); err != nil {
		return err
	}

	refreshStatus(ctx, tracker, client, sensorLock, logger)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	} else {
		logger.Info("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, svc, reg, logger.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
	}

	logger.Info("started",
		zap.String("broker", cfg.Broker),
		zap.String("redis", cfg.RedisAddr),
		zap.String("rig_topic", cfg.RigTopic),
		zap.Duration("heartbeat", cfg.Heartbeat),
	)

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(client, client, sensorLock, tracker, cfg.Heartbeat, logger, time.Now, ticker.C, sigCh)
}

// runLoop refreshes the status tracker on every tick, publishes a heartbeat
// once per interval and a retained SHUTDOWN event on signal.
func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, holders sensor.HolderSource, tracker *status.Tracker, heartbeat time.Duration, logger *zap.Logger, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx := context.Background()
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			logger.Info("shutting down", zap.String("signal", name))
			refreshStatus(ctx, tracker, mqttStatus, holders, logger)
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     name,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", name),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				logger.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			refreshStatus(ctx, tracker, mqttStatus, holders, logger)

			if heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t

			snap := tracker.Snapshot()
			logger.Info("heartbeat",
				zap.Duration("uptime", snap.Uptime()),
				zap.String("lock_holder", snap.LockHolder),
				zap.Int("sessions", len(snap.Sessions)),
			)
			hbEvent := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				logger.Warn("heartbeat publish error", zap.Error(err))
			}
		}
	}
}

// refreshStatus copies connection and lock state into the tracker. A failed
// lock read leaves the previous holder in place.
func refreshStatus(ctx context.Context, tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus, holders sensor.HolderSource, logger *zap.Logger) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	if holders == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, statusRefresh)
	defer cancel()
	h, err := holders.Current(ctx)
	if err != nil {
		tracker.SetStoreConnected(false)
		logger.Debug("sensor lock read failed", zap.Error(err))
		return
	}
	tracker.SetStoreConnected(true)
	tracker.SetLockHolder(h.RecipeID)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func describeHolder(h lock.Holder) string {
	if h.Empty() {
		return "sensor lock: free"
	}
	return fmt.Sprintf("sensor lock: recipe %s (user %s)", h.RecipeID, h.UserID)
}
