// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

// NewLogger builds a SlogLogger writing to w.  level is one of debug, info,
// warn or error; format is text or json.
func NewLogger(level, format string, w io.Writer) *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return NewSlogLogger(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline phase.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforePhase(_ context.Context, job *core.Job, state core.State) {
	h.logger.Debug("pipeline.phase.start",
		"job_id", job.ID,
		"operation", job.Operation,
		"phase", state,
		"inputs", len(job.Inputs),
	)
}

func (h *LoggingHook) AfterPhase(_ context.Context, job *core.Job, state core.State, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("pipeline.phase.error",
			"job_id", job.ID,
			"phase", state,
			"duration_ms", d.Milliseconds(),
			"kind", apperrors.KindOf(err),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("pipeline.phase.done",
		"job_id", job.ID,
		"operation", job.Operation,
		"phase", state,
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	phaseDurations map[string]time.Duration // cumulative time per phase
	phaseCalls     map[string]int64         // call count per phase
	phaseErrors    map[string]int64
	errorKinds     map[string]int64

	totalThroughputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		phaseDurations: make(map[string]time.Duration),
		phaseCalls:     make(map[string]int64),
		phaseErrors:    make(map[string]int64),
		errorKinds:     make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(phase string, d time.Duration) {
	m.mu.Lock()
	m.phaseDurations[phase] += d
	m.phaseCalls[phase]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordError(phase string, kind string) {
	m.mu.Lock()
	m.phaseErrors[phase]++
	m.errorKinds[kind]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		PhaseDurationsMs: make(map[string]int64, len(m.phaseDurations)),
		PhaseCalls:       make(map[string]int64, len(m.phaseCalls)),
		PhaseErrors:      make(map[string]int64, len(m.phaseErrors)),
		ErrorKinds:       make(map[string]int64, len(m.errorKinds)),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
	}
	for k, v := range m.phaseDurations {
		snap.PhaseDurationsMs[k] = v.Milliseconds()
	}
	for k, v := range m.phaseCalls {
		snap.PhaseCalls[k] = v
	}
	for k, v := range m.phaseErrors {
		snap.PhaseErrors[k] = v
	}
	for k, v := range m.errorKinds {
		snap.ErrorKinds[k] = v
	}
	return snap
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	PhaseDurationsMs map[string]int64
	PhaseCalls       map[string]int64
	PhaseErrors      map[string]int64
	ErrorKinds       map[string]int64
	TotalThroughputB int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline events into a MetricsCollector.  Input bytes
// are counted once decoding finishes.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforePhase(context.Context, *core.Job, core.State) {}

func (h *MetricsHook) AfterPhase(_ context.Context, job *core.Job, state core.State, d time.Duration, err error) {
	h.collector.RecordProcessingTime(string(state), d)
	if err != nil {
		h.collector.RecordError(string(state), string(apperrors.KindOf(err)))
		return
	}
	if state == core.StateDecoding {
		var n int64
		for _, in := range job.Inputs {
			n += in.Size
		}
		h.collector.RecordThroughput(n)
	}
}
