// Package daemon keeps a site published: it rebuilds on a fixed interval and,
// for the filesystem backend, whenever the content changes on disk.
//
// Rebuilds are coalesced. At most one run executes at a time; triggers that
// arrive during a run collapse into a single follow-up run.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/scampish/internal/build"
	"git.home.luguber.info/inful/scampish/internal/config"
	"git.home.luguber.info/inful/scampish/internal/eventstore"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/logfields"
	"git.home.luguber.info/inful/scampish/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Daemon.
type Options struct {
	Input config.RunInput
	// WatchRoots are the directories watched for changes when watching is enabled.
	WatchRoots []string
	// Registry is served on /metrics when an address is configured.
	Registry *prom.Registry
	// History is refreshed after each run and served on /history.
	History *eventstore.RunHistoryProjection
	Logger  *slog.Logger
}

// Daemon runs the rebuild loop.
type Daemon struct {
	cfg    *config.Config
	svc    build.Service
	opts   Options
	logger *slog.Logger

	mu             sync.Mutex
	ctx            context.Context
	running        bool
	pending        bool
	pendingTrigger build.Trigger
	last           *build.Result
	runs           int
	wg             sync.WaitGroup
}

// New creates a daemon publishing opts.Input through svc.
func New(cfg *config.Config, svc build.Service, opts Options) (*Daemon, error) {
	if err := opts.Input.Validate(); err != nil {
		return nil, err
	}
	if cfg.Daemon.Interval <= 0 && !cfg.Daemon.Watch {
		return nil, ferrors.DaemonError("daemon has nothing to trigger rebuilds").
			WithContext("interval", cfg.Daemon.Interval.String()).
			Build()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{cfg: cfg, svc: svc, opts: opts, logger: logger}, nil
}

// Run performs an initial build, then rebuilds until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	var sched *Scheduler
	if d.cfg.Daemon.Interval > 0 {
		s, err := NewScheduler(d.logger)
		if err != nil {
			return ferrors.DaemonError("failed to create scheduler").WithCause(err).Build()
		}
		if _, err := s.SchedulePeriodic("scheduled-rebuild", d.cfg.Daemon.Interval, func() {
			d.Trigger(build.TriggerScheduled)
		}); err != nil {
			return ferrors.DaemonError("failed to schedule rebuilds").WithCause(err).Build()
		}
		s.Start()
		sched = s
	}

	var watcher *Watcher
	if d.cfg.Daemon.Watch && len(d.opts.WatchRoots) > 0 {
		w, err := NewWatcher(d.opts.WatchRoots, d.cfg.Daemon.Debounce, func() {
			d.Trigger(build.TriggerWatch)
		}, d.logger)
		if err != nil {
			d.stopScheduler(sched)
			return ferrors.DaemonError("failed to create watcher").WithCause(err).Build()
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Close()
			d.stopScheduler(sched)
			return ferrors.DaemonError("failed to start watcher").WithCause(err).Build()
		}
		watcher = w
	}

	var srv *http.Server
	if addr := d.cfg.Daemon.MetricsAddr; addr != "" {
		srv = &http.Server{Addr: addr, Handler: d.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			d.logger.Info("Serving daemon endpoints", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("Daemon HTTP server failed", logfields.Error(err))
			}
		}()
	}

	d.Trigger(build.TriggerManual)
	<-ctx.Done()
	d.logger.Info("Stopping daemon")
	d.mu.Lock()
	d.ctx = nil
	d.mu.Unlock()

	d.stopScheduler(sched)
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			d.logger.Warn("Failed to close watcher", logfields.Error(err))
		}
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("Failed to shut down HTTP server", logfields.Error(err))
		}
	}
	d.wg.Wait()
	return nil
}

func (d *Daemon) stopScheduler(s *Scheduler) {
	if s == nil {
		return
	}
	if err := s.Stop(); err != nil {
		d.logger.Warn("Failed to stop scheduler", logfields.Error(err))
	}
}

// Trigger requests a rebuild. It never blocks: when a run is in progress
// the request is folded into one pending follow-up run.
func (d *Daemon) Trigger(trigger build.Trigger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil || d.ctx.Err() != nil {
		return
	}
	if d.running {
		d.pending = true
		d.pendingTrigger = trigger
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.loop(d.ctx, trigger)
}

func (d *Daemon) loop(ctx context.Context, trigger build.Trigger) {
	defer d.wg.Done()
	for {
		d.runOnce(ctx, trigger)

		d.mu.Lock()
		if !d.pending || ctx.Err() != nil {
			d.running = false
			d.pending = false
			d.mu.Unlock()
			return
		}
		d.pending = false
		trigger = d.pendingTrigger
		d.mu.Unlock()
	}
}

func (d *Daemon) runOnce(ctx context.Context, trigger build.Trigger) {
	result, err := d.svc.Run(ctx, build.Request{Input: d.opts.Input, Trigger: trigger})
	if err != nil {
		d.logger.Error("Rebuild failed", slog.String("trigger", string(trigger)), logfields.Error(err))
	}

	d.mu.Lock()
	d.last = result
	d.runs++
	d.mu.Unlock()

	if d.opts.History != nil {
		if err := d.opts.History.Rebuild(context.WithoutCancel(ctx)); err != nil {
			d.logger.Warn("Failed to refresh run history", logfields.Error(err))
		}
	}
}

// Status is the daemon state served on /status.
type Status struct {
	Running bool          `json:"running"`
	Pending bool          `json:"pending"`
	Runs    int           `json:"runs"`
	Last    *build.Result `json:"last,omitempty"`
}

// Status returns a snapshot of the daemon state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{Running: d.running, Pending: d.pending, Runs: d.runs, Last: d.last}
}

// Handler returns the daemon HTTP endpoints.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, d.Status())
	})
	if d.opts.History != nil {
		mux.HandleFunc("GET /history", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, d.opts.History.History())
		})
	}
	if d.opts.Registry != nil {
		mux.Handle("GET /metrics", metrics.HTTPHandler(d.opts.Registry))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
