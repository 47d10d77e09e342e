// Package config loads brew-monitor settings from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/status"
)

// Config is the daemon configuration. Every field has an environment
// variable; main lets command-line flags override them.
type Config struct {
	Broker       string `env:"BREW_MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	ClientID     string `env:"BREW_MQTT_CLIENT_ID" envDefault:"brew-monitor"`
	MQTTUsername string `env:"BREW_MQTT_USERNAME"`
	MQTTPassword string `env:"BREW_MQTT_PASSWORD"`
	MQTTBuffer   int    `env:"BREW_MQTT_BUFFER" envDefault:"256"`
	WSBroker     string `env:"BREW_WS_BROKER" envDefault:"=broker"`
	RigTopic     string `env:"BREW_RIG_TOPIC" envDefault:"kombucha/rig/readings"`

	RedisAddr     string `env:"BREW_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"BREW_REDIS_PASSWORD"`
	RedisDB       int    `env:"BREW_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"BREW_REDIS_PREFIX" envDefault:"brew:"`

	HTTPAddr  string        `env:"BREW_HTTP_ADDR" envDefault:":8080"`
	Heartbeat time.Duration `env:"BREW_HEARTBEAT" envDefault:"15m"`
	LogLevel  string        `env:"BREW_LOG_LEVEL" envDefault:"info"`
	LogFormat string        `env:"BREW_LOG_FORMAT" envDefault:"json"`

	SevereCooldown       time.Duration `env:"BREW_SEVERE_COOLDOWN" envDefault:"60s"`
	CriticalPushCooldown time.Duration `env:"BREW_CRITICAL_PUSH_COOLDOWN" envDefault:"5m"`
	HarvestTargetPH      float64       `env:"BREW_HARVEST_TARGET_PH" envDefault:"3.0"`
	HarvestTolerance     float64       `env:"BREW_HARVEST_TOLERANCE" envDefault:"0.05"`
	NotificationsEnabled bool          `env:"BREW_NOTIFICATIONS_ENABLED" envDefault:"true"`
	PurgeConcurrency     int           `env:"BREW_PURGE_CONCURRENCY" envDefault:"16"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RegisterFlags binds the commonly overridden settings to fs, using the
// current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address")
	fs.StringVar(&c.WSBroker, "ws-broker", c.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	fs.StringVar(&c.RigTopic, "rig-topic", c.RigTopic, "MQTT topic the sensor rig publishes to")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address of the document store")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP address (empty to disable)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: json or console")
	fs.DurationVar(&c.SevereCooldown, "severe-cooldown", c.SevereCooldown, "Minimum gap between severe alerts")
	fs.DurationVar(&c.CriticalPushCooldown, "critical-cooldown", c.CriticalPushCooldown, "Minimum gap between critical pushes")
	fs.BoolVar(&c.NotificationsEnabled, "notify", c.NotificationsEnabled, "Send push notifications")
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("broker is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis address is required"))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, errors.New("heartbeat must not be negative"))
	}
	if c.SevereCooldown < 0 || c.CriticalPushCooldown < 0 {
		errs = append(errs, errors.New("cooldowns must not be negative"))
	}
	if c.HarvestTolerance < 0 {
		errs = append(errs, errors.New("harvest tolerance must not be negative"))
	}
	if c.PurgeConcurrency < 1 {
		errs = append(errs, errors.New("purge concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}

// Debounce returns the alert debouncer settings.
func (c Config) Debounce() logic.DebounceConfig {
	return logic.DebounceConfig{
		SevereCooldown:       c.SevereCooldown,
		CriticalPushCooldown: c.CriticalPushCooldown,
		HarvestTargetPH:      c.HarvestTargetPH,
		HarvestTolerance:     c.HarvestTolerance,
	}
}

// Status returns the settings shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		HeartbeatMs:            c.Heartbeat.Milliseconds(),
		Broker:                 c.Broker,
		WSBroker:               c.ResolveWSBroker(),
		RedisAddr:              c.RedisAddr,
		HTTPAddr:               c.HTTPAddr,
		SevereCooldownMs:       c.SevereCooldown.Milliseconds(),
		CriticalPushCooldownMs: c.CriticalPushCooldown.Milliseconds(),
		HarvestTargetPH:        c.HarvestTargetPH,
		HarvestTolerance:       c.HarvestTolerance,
		NotificationsEnabled:   c.NotificationsEnabled,
	}
}

// ResolveWSBroker converts the WSBroker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or an
// unparseable broker disables it.
func (c Config) ResolveWSBroker() string {
	if c.WSBroker == "off" {
		return ""
	}
	if c.WSBroker != "=broker" {
		return c.WSBroker
	}
	u, err := url.Parse(c.Broker)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
