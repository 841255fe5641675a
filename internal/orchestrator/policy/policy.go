// Package policy defines configurable policy parameters for run execution.
// This centralizes threshold values that would otherwise be scattered across
// implementation files, enabling configuration and testing.
package policy

import (
	"time"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Concurrency controls worker pool capacity.
	Concurrency ConcurrencyPolicy

	// Retry controls per-attempt retry behavior inside the worker proxy.
	Retry RetryPolicy

	// Breaker controls circuit-breaker behavior per capability.
	Breaker BreakerPolicy

	// Timeout controls per-call deadlines and escalation.
	Timeout TimeoutPolicy

	// Escalation controls how failures map to recovery actions.
	Escalation EscalationPolicy

	// Progress controls progress reporting.
	Progress ProgressPolicy
}

// ConcurrencyPolicy controls worker pool capacity.
type ConcurrencyPolicy struct {
	// MaxPerCapability bounds concurrent calls to one worker type.
	MaxPerCapability int
}

// RetryPolicy controls the proxy's retry loop.
type RetryPolicy struct {
	// MaxRetries is the number of attempts per task before giving up.
	MaxRetries int

	// BackoffInitial is the wait before the second attempt.
	BackoffInitial time.Duration

	// BackoffMultiplier scales the wait after each failed attempt.
	BackoffMultiplier float64

	// BackoffMax caps the inter-attempt wait.
	BackoffMax time.Duration
}

// BreakerPolicy controls the per-capability circuit breaker.
type BreakerPolicy struct {
	// FailureThreshold is the rolling failure count that opens the breaker.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before a trial call.
	ResetTimeout time.Duration
}

// TimeoutPolicy controls worker call deadlines.
type TimeoutPolicy struct {
	// Base is the deadline for a task's first attempt.
	Base time.Duration

	// Multiplier scales the deadline after each timed-out attempt.
	Multiplier float64

	// Ceiling caps the escalated deadline.
	Ceiling time.Duration
}

// EscalationPolicy controls failure handling.
type EscalationPolicy struct {
	// PriorityFloor is the lowest priority whose dependency-skip is
	// recorded as an issue. Tasks below the floor are skipped silently.
	PriorityFloor models.Priority
}

// ProgressPolicy controls progress reporting.
type ProgressPolicy struct {
	// Interval is the period between progress events for long runs.
	Interval time.Duration

	// EventBuffer is the buffer size of the event channel.
	EventBuffer int
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Concurrency: ConcurrencyPolicy{
			MaxPerCapability: 3,
		},
		Retry: RetryPolicy{
			MaxRetries:        3,
			BackoffInitial:    time.Second,
			BackoffMultiplier: 2.0,
			BackoffMax:        30 * time.Second,
		},
		Breaker: BreakerPolicy{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Timeout: TimeoutPolicy{
			Base:       60 * time.Second,
			Multiplier: 1.5,
			Ceiling:    5 * time.Minute,
		},
		Escalation: EscalationPolicy{
			PriorityFloor: models.PriorityLow,
		},
		Progress: ProgressPolicy{
			Interval:    10 * time.Second,
			EventBuffer: 100,
		},
	}
}

// Validate clamps out-of-range values to safe defaults. It never returns an
// error; a misconfigured policy degrades to the default rather than failing
// a run that is otherwise ready to go.
func (c *Config) Validate() {
	d := Default()

	if c.Concurrency.MaxPerCapability < 1 {
		c.Concurrency.MaxPerCapability = d.Concurrency.MaxPerCapability
	}
	if c.Retry.MaxRetries < 1 {
		c.Retry.MaxRetries = d.Retry.MaxRetries
	}
	if c.Retry.BackoffInitial <= 0 {
		c.Retry.BackoffInitial = d.Retry.BackoffInitial
	}
	if c.Retry.BackoffMultiplier < 1 {
		c.Retry.BackoffMultiplier = d.Retry.BackoffMultiplier
	}
	if c.Retry.BackoffMax < c.Retry.BackoffInitial {
		c.Retry.BackoffMax = d.Retry.BackoffMax
	}
	if c.Breaker.FailureThreshold < 1 {
		c.Breaker.FailureThreshold = d.Breaker.FailureThreshold
	}
	if c.Breaker.ResetTimeout <= 0 {
		c.Breaker.ResetTimeout = d.Breaker.ResetTimeout
	}
	if c.Timeout.Base <= 0 {
		c.Timeout.Base = d.Timeout.Base
	}
	if c.Timeout.Multiplier < 1 {
		c.Timeout.Multiplier = d.Timeout.Multiplier
	}
	if c.Timeout.Ceiling < c.Timeout.Base {
		c.Timeout.Ceiling = d.Timeout.Ceiling
	}
	if !c.Escalation.PriorityFloor.Valid() {
		c.Escalation.PriorityFloor = d.Escalation.PriorityFloor
	}
	if c.Progress.Interval <= 0 {
		c.Progress.Interval = d.Progress.Interval
	}
	if c.Progress.EventBuffer < 1 {
		c.Progress.EventBuffer = d.Progress.EventBuffer
	}
}
