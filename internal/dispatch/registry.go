package dispatch

import (
	"log/slog"

	"github.com/me/flowrun/pkg/model"
)

// Registry binds each executor category to exactly one Monitor and
// manages monitor startup. Monitors created before Start are started in
// bulk by Start; monitors created afterwards are started synchronously
// at creation.
//
// Registration is NOT safe for concurrent use: GetOrCreate must only be
// called during the single-threaded pipeline-definition phase, before
// any tasks are submitted. The map is read-only once submission begins,
// so later reads need no synchronization.
type Registry struct {
	monitors map[model.ExecutorCategory]Monitor
	started  bool
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		monitors: make(map[model.ExecutorCategory]Monitor),
		logger:   logger.With("component", "monitor-registry"),
	}
}

// GetOrCreate returns the Monitor for category, constructing it via
// factory on first request. A category's factory is invoked at most
// once; subsequent calls are pure lookups. If the registry has already
// started, a newly created monitor is started before it is returned.
func (r *Registry) GetOrCreate(category model.ExecutorCategory, factory MonitorFactory) Monitor {
	if m, ok := r.monitors[category]; ok {
		return m
	}

	m := factory()
	r.monitors[category] = m
	r.logger.Info("monitor registered", "category", category)

	if r.started {
		m.Start()
		r.logger.Debug("monitor started at registration", "category", category)
	}
	return m
}

// Start starts every registered monitor, then marks the registry
// started. Monitors registered after this call are started at creation;
// no registered monitor is ever left un-started. The started flag never
// reverts.
func (r *Registry) Start() {
	for category, m := range r.monitors {
		m.Start()
		r.logger.Debug("monitor started", "category", category)
	}
	r.started = true
	r.logger.Info("registry started", "monitors", len(r.monitors))
}

// Stop stops every registered monitor.
func (r *Registry) Stop() {
	for category, m := range r.monitors {
		m.Stop()
		r.logger.Debug("monitor stopped", "category", category)
	}
}

// Started reports whether Start has been called.
func (r *Registry) Started() bool {
	return r.started
}
