package core

import (
	"time"
)

// =============================================================================
// FailureHandler: Interface for handling task failures
// =============================================================================

// FailureHandler is called when a pooled task returns an error or panics.
// The failure has already been counted; the handler only observes it.
//
// Implementations should be thread-safe as they may be called concurrently
// from several workers.
type FailureHandler interface {
	// HandleTaskFailure is called after a task failed.
	//
	// Parameters:
	// - poolName: The name of the pool that ran the task
	// - taskName: The display name the task was submitted with
	// - err: The returned error, or the recovered panic converted to an error
	HandleTaskFailure(poolName, taskName string, err error)
}

// DefaultFailureHandler logs task failures.
type DefaultFailureHandler struct {
	Logger Logger
}

// HandleTaskFailure logs the failure at error level.
func (h *DefaultFailureHandler) HandleTaskFailure(poolName, taskName string, err error) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task failure consumed by pool",
		F("pool", poolName), F("task", taskName), F("error", err))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(poolName string, duration time.Duration)

	// RecordTaskFailure records that a task returned an error or panicked.
	RecordTaskFailure(poolName string, err error)

	// RecordQueueDepth records the number of tasks waiting for a worker.
	RecordQueueDepth(poolName string, depth int)

	// RecordTaskRejected records that a task was not run.
	//
	// Parameters:
	// - poolName: The name of the pool
	// - reason: Why the task was rejected ("overflow", "stopped", "denied")
	RecordTaskRejected(poolName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(poolName string, duration time.Duration) {}

// RecordTaskFailure is a no-op.
func (m *NilMetrics) RecordTaskFailure(poolName string, err error) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is discarded without running.
// This can happen when:
// - The pending bound is exceeded (overflow)
// - The pool stops without draining its queue
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(poolName, taskName, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(poolName, taskName, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task discarded by pool",
		F("pool", poolName), F("task", taskName), F("reason", reason))
}

// =============================================================================
// PoolConfig: Configuration for ThreadPool
// =============================================================================

// PoolConfig holds configuration options for ThreadPool.
// All handlers are optional; if not provided, default implementations will be used.
type PoolConfig struct {
	// Name labels the pool in logs and metrics. Defaults to "pool".
	Name string

	// OwnsTasks makes Owned the default ownership for Invoke.
	OwnsTasks bool

	// Logger receives pool diagnostics. Defaults to a GripLogger.
	Logger Logger

	// Metrics records execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// FailureHandler observes task failures. Defaults to DefaultFailureHandler.
	FailureHandler FailureHandler

	// RejectedTaskHandler observes discarded tasks. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultPoolConfig returns a config with default handlers.
func DefaultPoolConfig() *PoolConfig {
	logger := NewDefaultLogger()
	return &PoolConfig{
		Name:                "pool",
		Logger:              logger,
		Metrics:             &NilMetrics{},
		FailureHandler:      &DefaultFailureHandler{Logger: logger},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
	}
}

func (c *PoolConfig) withDefaults() PoolConfig {
	out := PoolConfig{}
	if c != nil {
		out = *c
	}
	if out.Name == "" {
		out.Name = "pool"
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.FailureHandler == nil {
		out.FailureHandler = &DefaultFailureHandler{Logger: out.Logger}
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: out.Logger}
	}
	return out
}
