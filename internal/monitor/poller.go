// Package monitor provides the polling Monitor implementation used by
// in-process executors. One Poller exists per executor category; the
// dispatch Registry owns that binding.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/me/flowrun/internal/dispatch"
	"github.com/me/flowrun/pkg/model"
)

// Probe reports the current state of one watched task. A non-nil error
// means execution infrastructure failed (not a nonzero exit, which is an
// ordinary terminal state).
type Probe func(ctx context.Context) (model.TaskState, error)

// Config holds poller configuration.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 50 * time.Millisecond}
}

type watch struct {
	handle  *dispatch.Handle
	probe   Probe
	started bool // NotifyStarted already fired
}

// Poller watches task handles by probing their state on a fixed
// interval and reporting lifecycle events to the Router. It fires
// NotifyStarted at most once per handle, and exactly one terminal
// notification (NotifyTerminated or NotifyError) before dropping the
// watch.
type Poller struct {
	category model.ExecutorCategory
	router   *dispatch.Router
	config   Config
	logger   *slog.Logger

	mu      sync.Mutex
	watches []*watch

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewPoller creates a Poller for one executor category.
func NewPoller(category model.ExecutorCategory, router *dispatch.Router, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		category: category,
		router:   router,
		config:   cfg,
		logger:   logger.With("component", "monitor", "category", category),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the polling loop in a background goroutine. Idempotent.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("monitor started", "interval", p.config.Interval)
		go p.loop()
	})
}

// Stop shuts the polling loop down and waits for it to exit. Safe on a
// poller that was never started. Watches still pending are dropped
// without a terminal notification.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		// Claim the start slot: on a never-started poller there is no
		// loop to wait for, and a Start after Stop must not launch one.
		p.startOnce.Do(func() { close(p.doneCh) })
		close(p.stopCh)
		<-p.doneCh
		p.logger.Info("monitor stopped")
	})
}

// Watch registers a handle for observation. probe is called on every
// tick until it reports a terminal state or an error.
func (p *Poller) Watch(h *dispatch.Handle, probe Probe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watches = append(p.watches, &watch{handle: h, probe: probe})
	p.logger.Debug("handle watched", "task_id", h.Task.Record.ID)
}

// Watching returns the number of handles currently under observation.
func (p *Poller) Watching() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watches)
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	defer close(p.doneCh)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Tick(context.Background())
		}
	}
}

// Tick runs a single observation pass over all watched handles. Exposed
// for tests.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	snapshot := make([]*watch, len(p.watches))
	copy(snapshot, p.watches)
	p.mu.Unlock()

	dropped := make(map[*watch]bool)
	for _, w := range snapshot {
		if !p.observe(ctx, w) {
			dropped[w] = true
		}
	}
	if len(dropped) == 0 {
		return
	}

	// Remove finished watches without clobbering registrations that
	// arrived during observation.
	p.mu.Lock()
	kept := p.watches[:0]
	for _, w := range p.watches {
		if !dropped[w] {
			kept = append(kept, w)
		}
	}
	p.watches = kept
	p.mu.Unlock()
}

// observe probes one watch and fires notifications. Returns false once
// the watch reached a terminal event and must be dropped.
func (p *Poller) observe(ctx context.Context, w *watch) bool {
	state, err := w.probe(ctx)
	if err != nil {
		p.router.NotifyError(ctx, err, w.handle)
		return false
	}

	if state == model.TaskStateRunning && !w.started {
		w.started = true
		p.router.NotifyStarted(w.handle)
	}

	if state.IsTerminal() {
		p.router.NotifyTerminated(ctx, w.handle)
		return false
	}
	return true
}
