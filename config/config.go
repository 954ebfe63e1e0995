// Package config loads thread service settings from YAML or TOML files and
// applies them to a running Service.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	threadservice "github.com/Swind/go-thread-service"
	"github.com/Swind/go-thread-service/core"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Pool sizes one named pool.
type Pool struct {
	Name      string `yaml:"name" toml:"name"`
	Threads   int    `yaml:"threads" toml:"threads"`
	QueueSize int    `yaml:"queue_size" toml:"queue_size"`
	OwnsTasks bool   `yaml:"owns_tasks" toml:"owns_tasks"`
}

// Config is the on-disk service configuration.
type Config struct {
	// GlobalThreads of 0 sizes the global pool from the CPU count.
	GlobalThreads   int    `yaml:"global_threads" toml:"global_threads"`
	GlobalQueueSize int    `yaml:"global_queue_size" toml:"global_queue_size"`
	Pools           []Pool `yaml:"pools" toml:"pools"`

	// MetricsAddr is where the CLI serves /metrics; empty disables it.
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
	// PollInterval is a time.ParseDuration string for the snapshot poller.
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MetricsAddr:  ":2112",
		PollInterval: "1s",
	}
}

// Load reads path, choosing the decoder by extension (.yaml, .yml or .toml).
// Unset fields keep their Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), errors.Wrapf(err, "read config %s", path)
	}

	cfg, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return Default(), errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml", "yml" or "toml") and validates it.
func Parse(data []byte, format string) (Config, error) {
	cfg := Default()
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Default(), errors.Wrap(err, "parse yaml")
		}
	case "toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Default(), errors.Wrap(err, "parse toml")
		}
	default:
		return Default(), errors.Errorf("unsupported config format %q", format)
	}

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.ErrorfWhen(c.GlobalThreads < 0, "global_threads must not be negative, got %d", c.GlobalThreads)
	catcher.ErrorfWhen(c.GlobalQueueSize < 0, "global_queue_size must not be negative, got %d", c.GlobalQueueSize)

	seen := make(map[string]bool, len(c.Pools))
	for i, p := range c.Pools {
		catcher.ErrorfWhen(p.Name == "", "pool %d has no name", i)
		catcher.ErrorfWhen(p.Name == "global", "pool %d may not be named global", i)
		catcher.ErrorfWhen(seen[p.Name] && p.Name != "", "pool %q is defined twice", p.Name)
		catcher.ErrorfWhen(p.Threads <= 0, "pool %q threads must be positive, got %d", p.Name, p.Threads)
		catcher.ErrorfWhen(p.QueueSize < 0, "pool %q queue_size must not be negative, got %d", p.Name, p.QueueSize)
		seen[p.Name] = true
	}
	if c.PollInterval != "" {
		_, err := time.ParseDuration(c.PollInterval)
		catcher.Wrapf(err, "poll_interval %q", c.PollInterval)
	}
	return catcher.Resolve()
}

// Interval returns PollInterval, or one second when unset.
func (c Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// ServiceConfig converts c for threadservice.NewService.
func (c Config) ServiceConfig(logger core.Logger, metrics core.Metrics) threadservice.ServiceConfig {
	specs := make([]threadservice.PoolSpec, 0, len(c.Pools))
	for _, p := range c.Pools {
		specs = append(specs, threadservice.PoolSpec{
			Name:      p.Name,
			Threads:   p.Threads,
			QueueSize: p.QueueSize,
			OwnsTasks: p.OwnsTasks,
		})
	}
	return threadservice.ServiceConfig{
		GlobalThreads:   c.GlobalThreads,
		GlobalQueueSize: c.GlobalQueueSize,
		Pools:           specs,
		Logger:          logger,
		Metrics:         metrics,
	}
}

// Apply resizes svc's pools to match c. Pools missing from svc are created;
// pools missing from c are left alone. Queue sizes that would drop below a
// pool's allocated workers are reported and skipped.
func Apply(svc *threadservice.Service, c Config) error {
	catcher := grip.NewBasicCatcher()

	if c.GlobalThreads > 0 || c.GlobalQueueSize > 0 {
		if pool, ok := svc.Pool(threadservice.GlobalPoolID); ok {
			catcher.Add(resize(pool, c.GlobalThreads, c.GlobalQueueSize))
		}
	}

	for _, p := range c.Pools {
		id, ok := svc.PoolByName(p.Name)
		if !ok {
			svc.CreateNamedThreadPool(p.Name, p.Threads, p.QueueSize, p.OwnsTasks)
			continue
		}
		if pool, ok := svc.Pool(id); ok {
			catcher.Add(resize(pool, p.Threads, p.QueueSize))
		}
	}
	return catcher.Resolve()
}

func resize(pool *core.ThreadPool, threads, queueSize int) error {
	if threads > 0 {
		if err := pool.SetMaxThreads(threads); err != nil {
			return err
		}
	}
	return pool.SetQueueSize(queueSize)
}
