// Package config loads pool, queue and logging settings from a YAML or JSON
// file and REQPOOL_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/utkarsh5026/reqpool/internal/algorithms"
	"github.com/utkarsh5026/reqpool/lifecycle"
	"github.com/utkarsh5026/reqpool/pool"
	"github.com/utkarsh5026/reqpool/queue"
	"gopkg.in/yaml.v3"
)

const (
	envCoreWorkers      = "REQPOOL_CORE_WORKERS"
	envMaxWorkers       = "REQPOOL_MAX_WORKERS"
	envKeepAlive        = "REQPOOL_KEEP_ALIVE"
	envBacklog          = "REQPOOL_BACKLOG"
	envSaturation       = "REQPOOL_SATURATION"
	envResubmitAttempts = "REQPOOL_RESUBMIT_ATTEMPTS"
	envIdleDelay        = "REQPOOL_IDLE_DELAY"
	envLogLevel         = "REQPOOL_LOG_LEVEL"
	envMetricsNamespace = "REQPOOL_METRICS_NAMESPACE"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the file layout. Durations are Go duration strings ("7s", "500ms").
type Config struct {
	Pool             PoolConfig  `yaml:"pool" json:"pool"`
	Queue            QueueConfig `yaml:"queue" json:"queue"`
	IdleDelay        string      `yaml:"idle_delay" json:"idle_delay"`
	LogLevel         string      `yaml:"log_level" json:"log_level"`
	MetricsNamespace string      `yaml:"metrics_namespace" json:"metrics_namespace"`
}

// PoolConfig sizes the shared worker pool.
type PoolConfig struct {
	Name        string  `yaml:"name" json:"name"`
	CoreWorkers int     `yaml:"core_workers" json:"core_workers"`
	MaxWorkers  int     `yaml:"max_workers" json:"max_workers"`
	KeepAlive   string  `yaml:"keep_alive" json:"keep_alive"`
	Backlog     int     `yaml:"backlog" json:"backlog"`
	Saturation  string  `yaml:"saturation" json:"saturation"`
	RateLimit   float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" json:"rate_burst"`
	CPUAffinity bool    `yaml:"cpu_affinity" json:"cpu_affinity"`
}

// QueueConfig controls how serial queues resubmit tasks the pool refused.
type QueueConfig struct {
	ResubmitAttempts int     `yaml:"resubmit_attempts" json:"resubmit_attempts"`
	Backoff          string  `yaml:"backoff" json:"backoff"`
	BackoffInitial   string  `yaml:"backoff_initial" json:"backoff_initial"`
	BackoffMax       string  `yaml:"backoff_max" json:"backoff_max"`
	BackoffJitter    float64 `yaml:"backoff_jitter" json:"backoff_jitter"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			Name:        pool.DefaultName,
			CoreWorkers: pool.DefaultCoreWorkers,
			MaxWorkers:  pool.DefaultMaxWorkers,
			KeepAlive:   pool.DefaultKeepAlive.String(),
			Backlog:     pool.DefaultBacklog,
			Saturation:  pool.SaturationReject.String(),
		},
		Queue: QueueConfig{
			Backoff:        algorithms.BackoffExponential.String(),
			BackoffInitial: "10ms",
			BackoffMax:     "1s",
		},
		IdleDelay:        lifecycle.DefaultDelay.String(),
		LogLevel:         "info",
		MetricsNamespace: "reqpool",
	}
}

// LoadFile reads a .yaml/.yml or .json file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", ext)
	}

	return cfg, cfg.Validate()
}

// Load reads path (when not empty) and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	ints := map[string]*int{
		envCoreWorkers:      &c.Pool.CoreWorkers,
		envMaxWorkers:       &c.Pool.MaxWorkers,
		envBacklog:          &c.Pool.Backlog,
		envResubmitAttempts: &c.Queue.ResubmitAttempts,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
		}
		*dst = n
	}

	strs := map[string]*string{
		envKeepAlive:        &c.Pool.KeepAlive,
		envSaturation:       &c.Pool.Saturation,
		envIdleDelay:        &c.IdleDelay,
		envLogLevel:         &c.LogLevel,
		envMetricsNamespace: &c.MetricsNamespace,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate checks every field and reports the first problem.
func (c Config) Validate() error {
	switch {
	case c.Pool.CoreWorkers < 1:
		return fmt.Errorf("%w: pool.core_workers must be at least 1", ErrInvalidConfig)
	case c.Pool.MaxWorkers < c.Pool.CoreWorkers:
		return fmt.Errorf("%w: pool.max_workers (%d) is below pool.core_workers (%d)",
			ErrInvalidConfig, c.Pool.MaxWorkers, c.Pool.CoreWorkers)
	case c.Pool.Backlog < 0:
		return fmt.Errorf("%w: pool.backlog must not be negative", ErrInvalidConfig)
	case c.Pool.RateLimit < 0 || c.Pool.RateBurst < 0:
		return fmt.Errorf("%w: pool rate limit must not be negative", ErrInvalidConfig)
	case c.Queue.ResubmitAttempts < 0:
		return fmt.Errorf("%w: queue.resubmit_attempts must not be negative", ErrInvalidConfig)
	}

	if _, err := c.saturation(); err != nil {
		return err
	}
	if _, err := algorithms.ParseBackoffType(c.Queue.Backoff); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for name, v := range map[string]string{
		"pool.keep_alive":       c.Pool.KeepAlive,
		"queue.backoff_initial": c.Queue.BackoffInitial,
		"queue.backoff_max":     c.Queue.BackoffMax,
		"idle_delay":            c.IdleDelay,
	} {
		if _, err := parseDuration(name, v); err != nil {
			return err
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) saturation() (pool.SaturationPolicy, error) {
	switch strings.ToLower(c.Pool.Saturation) {
	case "", pool.SaturationReject.String():
		return pool.SaturationReject, nil
	case pool.SaturationDropOldest.String():
		return pool.SaturationDropOldest, nil
	default:
		return pool.SaturationReject, fmt.Errorf("%w: unknown saturation policy %q", ErrInvalidConfig, c.Pool.Saturation)
	}
}

// parseDuration treats an empty value as zero, which the option constructors ignore.
func parseDuration(name, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s %q is not a valid duration", ErrInvalidConfig, name, v)
	}
	return d, nil
}

// PoolOptions translates the pool section into pool options. Call Validate first.
func (c Config) PoolOptions(logger logrus.FieldLogger) []pool.Option {
	keepAlive, _ := parseDuration("pool.keep_alive", c.Pool.KeepAlive)
	policy, _ := c.saturation()

	opts := []pool.Option{
		pool.WithName(c.Pool.Name),
		pool.WithCoreWorkers(c.Pool.CoreWorkers),
		pool.WithMaxWorkers(c.Pool.MaxWorkers),
		pool.WithKeepAlive(keepAlive),
		pool.WithBacklog(c.Pool.Backlog),
		pool.WithSaturationPolicy(policy),
		pool.WithLogger(logger),
	}
	if c.Pool.RateLimit > 0 {
		opts = append(opts, pool.WithRateLimit(c.Pool.RateLimit, max(c.Pool.RateBurst, 1)))
	}
	if c.Pool.CPUAffinity {
		opts = append(opts, pool.WithCPUAffinity())
	}
	return opts
}

// QueueOptions translates the queue section into queue registry options.
func (c Config) QueueOptions(logger logrus.FieldLogger) []queue.Option {
	kind, _ := algorithms.ParseBackoffType(c.Queue.Backoff)
	initial, _ := parseDuration("queue.backoff_initial", c.Queue.BackoffInitial)
	maxDelay, _ := parseDuration("queue.backoff_max", c.Queue.BackoffMax)

	return []queue.Option{
		queue.WithResubmit(c.Queue.ResubmitAttempts,
			algorithms.NewBackoffStrategy(kind, initial, maxDelay, c.Queue.BackoffJitter)),
		queue.WithLogger(logger),
	}
}

// IdleDelayDuration returns the debounce delay for the idle monitor.
func (c Config) IdleDelayDuration() time.Duration {
	d, _ := parseDuration("idle_delay", c.IdleDelay)
	return d
}

// NewLogger creates a JSON logger writing to w at level. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *logrus.Logger {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}
