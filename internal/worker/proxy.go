package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Config holds per-proxy execution parameters. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// MaxRetries is the number of attempts per task.
	MaxRetries int
	// Timeout is the initial per-attempt deadline.
	Timeout time.Duration
	// TimeoutMultiplier scales the deadline after each timed-out attempt.
	TimeoutMultiplier float64
	// TimeoutCeiling caps the escalated deadline. Zero means no ceiling.
	TimeoutCeiling time.Duration
	// BackoffInitial is the first wait between attempts.
	BackoffInitial time.Duration
	// BackoffMultiplier scales the wait after each attempt.
	BackoffMultiplier float64
	// BackoffMax caps the wait between attempts.
	BackoffMax time.Duration
	// FailureThreshold is the breaker's rolling failure limit.
	FailureThreshold int
	// ResetTimeout is how long an open breaker rejects calls.
	ResetTimeout time.Duration
}

// DefaultConfig returns the default proxy configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		Timeout:           60 * time.Second,
		TimeoutMultiplier: 1.5,
		TimeoutCeiling:    5 * time.Minute,
		BackoffInitial:    1 * time.Second,
		BackoffMultiplier: 2.0,
		BackoffMax:        30 * time.Second,
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
	}
}

// Proxy executes tasks of one capability against its registered worker,
// applying per-attempt timeouts, retries with exponential backoff, and
// circuit breaking. A proxy instance is reused across tasks of the same
// capability, so breaker state persists for the whole run.
type Proxy struct {
	capability string
	worker     Worker
	breaker    *CircuitBreaker
	cfg        Config
	calls      atomic.Int64

	// sleep waits between attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	// logf is an optional debug log hook.
	logf func(format string, args ...interface{})
}

// NewProxy creates a proxy for a capability. A nil clock uses system time.
func NewProxy(capability string, w Worker, cfg Config, clock Clock) *Proxy {
	return &Proxy{
		capability: capability,
		worker:     w,
		breaker:    NewCircuitBreaker(cfg.FailureThreshold, cfg.ResetTimeout, clock),
		cfg:        cfg,
		sleep:      sleepCtx,
		logf:       func(format string, args ...interface{}) {},
	}
}

// SetSleep overrides the inter-attempt wait function.
func (p *Proxy) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	if fn != nil {
		p.sleep = fn
	}
}

// SetLogf sets the debug log hook.
func (p *Proxy) SetLogf(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.logf = fn
	}
}

// Capability returns the capability this proxy serves.
func (p *Proxy) Capability() string { return p.capability }

// Breaker exposes the proxy's circuit breaker.
func (p *Proxy) Breaker() *CircuitBreaker { return p.breaker }

// Calls returns the number of worker call attempts made through this proxy.
func (p *Proxy) Calls() int64 { return p.calls.Load() }

// Execute runs one task against the worker. It retries transient failures
// up to MaxRetries attempts with exponential backoff, escalates the
// per-attempt timeout after each timed-out attempt, and fails fast with
// ErrCircuitOpen when the capability's breaker is open. Cancellation of ctx
// is honored immediately and is never counted as a worker failure.
func (p *Proxy) Execute(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
	timeout := p.cfg.Timeout

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.BackoffInitial
	bo.Multiplier = p.cfg.BackoffMultiplier
	bo.MaxInterval = p.cfg.BackoffMax
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	var last error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.breaker.Allow(); err != nil {
			p.logf("[proxy:%s] task %s rejected: circuit open", p.capability, req.TaskID)
			return nil, fmt.Errorf("capability %s: %w", p.capability, err)
		}

		p.calls.Add(1)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := p.worker.Execute(attemptCtx, req)
		cancel()

		switch {
		case err == nil:
			if verr := p.validateResult(req, result); verr != nil {
				last = verr
				p.breaker.RecordFailure()
				p.logf("[proxy:%s] task %s attempt %d: %v", p.capability, req.TaskID, attempt, verr)
			} else {
				p.breaker.RecordSuccess()
				return result, nil
			}

		case ctx.Err() != nil:
			// The run itself was cancelled or hit its deadline. The attempt
			// produced no verdict on the worker, so a half-open trial slot is
			// released rather than counted either way.
			p.breaker.CancelTrial()
			return nil, ctx.Err()

		case errors.Is(err, context.DeadlineExceeded):
			last = &TimeoutError{
				TaskID:     req.TaskID,
				Capability: p.capability,
				Attempt:    attempt,
				Timeout:    timeout,
			}
			p.breaker.RecordFailure()
			p.logf("[proxy:%s] task %s attempt %d timed out after %v", p.capability, req.TaskID, attempt, timeout)
			timeout = p.escalateTimeout(timeout)

		default:
			last = fmt.Errorf("task %s: worker call failed: %w", req.TaskID, err)
			p.breaker.RecordFailure()
			p.logf("[proxy:%s] task %s attempt %d failed: %v", p.capability, req.TaskID, attempt, err)
		}

		if attempt < p.cfg.MaxRetries {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	return nil, &RetriesExhaustedError{TaskID: req.TaskID, Attempts: p.cfg.MaxRetries, Last: last}
}

// escalateTimeout grows the per-attempt deadline for the same task after a
// timeout, up to the configured ceiling.
func (p *Proxy) escalateTimeout(current time.Duration) time.Duration {
	if p.cfg.TimeoutMultiplier <= 1 {
		return current
	}
	next := time.Duration(float64(current) * p.cfg.TimeoutMultiplier)
	if p.cfg.TimeoutCeiling > 0 && next > p.cfg.TimeoutCeiling {
		next = p.cfg.TimeoutCeiling
	}
	return next
}

// validateResult checks a worker response for structural validity.
// A failure here is retryable, never treated as success.
func (p *Proxy) validateResult(req models.TaskRequest, result *models.TaskResult) error {
	if result == nil {
		return &InvalidResultError{TaskID: req.TaskID, Reason: "nil result"}
	}
	if result.Status != models.ResultSuccess && result.Status != models.ResultFailure {
		return &InvalidResultError{TaskID: req.TaskID, Reason: fmt.Sprintf("unknown status %q", result.Status)}
	}
	if result.Status == models.ResultFailure {
		reason := result.ErrorDetail
		if reason == "" {
			reason = "worker reported failure without detail"
		}
		return &InvalidResultError{TaskID: req.TaskID, Reason: reason}
	}

	produced := make(map[string]bool, len(result.Deliverables))
	for i := range result.Deliverables {
		d := &result.Deliverables[i]
		if d.Path == "" {
			return &InvalidResultError{TaskID: req.TaskID, Reason: "deliverable with empty path"}
		}
		if d.TaskID == "" {
			d.TaskID = req.TaskID
		}
		produced[d.Path] = true
	}
	for _, spec := range req.DeliverableSpecs {
		if spec.Required && !produced[spec.Path] {
			return &InvalidResultError{
				TaskID: req.TaskID,
				Reason: fmt.Sprintf("missing required deliverable %s", spec.Path),
			}
		}
	}
	return nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
