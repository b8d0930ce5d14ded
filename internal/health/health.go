// Package health runs periodic backend probes and serves their latest
// results. Probes never gate request handling; they feed the /health payload
// and the backend_up metrics.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/purpose-technology/namapp-server/internal/logging"
)

// Probe checks one backend. A nil return means healthy.
type Probe func(ctx context.Context) error

// StatusRecorder receives probe outcomes. Satisfied by *metrics.Metrics.
type StatusRecorder interface {
	SetBackendUp(backend string, up bool)
}

// Checker owns the probe schedule and the latest results.
type Checker struct {
	mu       sync.RWMutex
	results  map[string]Result
	probes   map[string]Probe
	logger   *logging.Logger
	recorder StatusRecorder
	cron     *cron.Cron
	timeout  time.Duration
}

// Result is the latest outcome for one backend.
type Result struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewChecker creates a checker. recorder may be nil.
func NewChecker(logger *logging.Logger, recorder StatusRecorder) *Checker {
	return &Checker{
		results:  make(map[string]Result),
		probes:   make(map[string]Probe),
		logger:   logger,
		recorder: recorder,
		cron:     cron.New(),
		timeout:  5 * time.Second,
	}
}

// Register adds a named backend probe.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Start runs all probes immediately, then on the given cron schedule (for
// example "@every 30s").
func (c *Checker) Start(schedule string) error {
	c.RunAll()
	_, err := c.cron.AddFunc(schedule, c.RunAll)
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the schedule.
func (c *Checker) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// RunAll executes every registered probe once.
func (c *Checker) RunAll() {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	c.mu.RUnlock()

	for _, name := range names {
		c.runOne(name)
	}
}

func (c *Checker) runOne(name string) {
	c.mu.RLock()
	probe := c.probes[name]
	c.mu.RUnlock()
	if probe == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	err := probe(ctx)
	result := Result{Healthy: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		result.Error = err.Error()
		c.logger.WithError(err).WithFields(map[string]interface{}{"backend": name}).Warn("backend probe failed")
	}

	c.mu.Lock()
	c.results[name] = result
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.SetBackendUp(name, result.Healthy)
	}
}

// Results returns a copy of the latest probe outcomes.
func (c *Checker) Results() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.results))
	for name, result := range c.results {
		out[name] = result
	}
	return out
}

// Healthy reports whether every probed backend passed its last check.
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, result := range c.results {
		if !result.Healthy {
			return false
		}
	}
	return true
}
