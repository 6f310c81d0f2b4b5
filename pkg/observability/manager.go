package observability

import (
	"context"
	"io"
	"sync"
)

// Manager owns the process tracer and metrics.
type Manager struct {
	config Config

	mu      sync.RWMutex
	tracer  *Tracer
	metrics Metrics
}

// NewManager creates a Manager for cfg. Until Initialize succeeds it
// hands out no-op instruments.
func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{
		config:  cfg,
		tracer:  NoopTracer(),
		metrics: NoopMetrics{},
	}
}

// Initialize builds the tracer and metrics and installs the metrics as
// the global recorder. Stdout spans are written to w.
func (m *Manager) Initialize(ctx context.Context, w io.Writer) error {
	if err := m.config.Validate(); err != nil {
		return err
	}

	tracer, err := NewTracer(ctx, m.config.Tracing, w)
	if err != nil {
		return err
	}
	metrics, err := InitMetrics(m.config.Metrics)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return err
	}

	m.mu.Lock()
	m.tracer, m.metrics = tracer, metrics
	m.mu.Unlock()

	SetGlobalMetrics(metrics)
	return nil
}

// Tracer returns the tracer.
func (m *Manager) Tracer() *Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer
}

// Metrics returns the metrics recorder.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Config returns the configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Shutdown flushes pending spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.Tracer().Shutdown(ctx)
}
