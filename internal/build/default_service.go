package build

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/scampish/internal/config"
	"git.home.luguber.info/inful/scampish/internal/eventstore"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/logfields"
	"git.home.luguber.info/inful/scampish/internal/metrics"
	"git.home.luguber.info/inful/scampish/internal/notify"
	"git.home.luguber.info/inful/scampish/internal/observability"
	"git.home.luguber.info/inful/scampish/internal/pipeline"
	"git.home.luguber.info/inful/scampish/internal/retry"
	"git.home.luguber.info/inful/scampish/internal/site"
	"git.home.luguber.info/inful/scampish/internal/store"
	"git.home.luguber.info/inful/scampish/internal/templates"
)

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	cfg      *config.Config
	backend  store.Backend
	ledger   eventstore.Store
	recorder metrics.Recorder
	notifier RunNotifier
	logger   *slog.Logger
	newRunID func() string
}

// RunNotifier is told about every finished run.
type RunNotifier interface {
	RunFinished(ev notify.RunEvent) error
}

// ServiceOption configures a DefaultService.
type ServiceOption func(*DefaultService)

// WithLedger records run events into ledger.
func WithLedger(ledger eventstore.Store) ServiceOption {
	return func(s *DefaultService) { s.ledger = ledger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) ServiceOption {
	return func(s *DefaultService) { s.recorder = rec }
}

// WithNotifier announces finished runs through n.
func WithNotifier(n RunNotifier) ServiceOption {
	return func(s *DefaultService) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *DefaultService) { s.logger = logger }
}

// WithRunIDFunc overrides run ID generation (for testing).
func WithRunIDFunc(fn func() string) ServiceOption {
	return func(s *DefaultService) { s.newRunID = fn }
}

// NewService creates a DefaultService publishing through backend.
func NewService(cfg *config.Config, backend store.Backend, opts ...ServiceOption) *DefaultService {
	s := &DefaultService{
		cfg:      cfg,
		backend:  backend,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run holds the state of one Run call.
type run struct {
	*DefaultService
	ctx    context.Context
	input  config.RunInput
	result *Result
	logger *slog.Logger

	mu      sync.Mutex
	outputs []pipeline.Output
}

// Run executes one publishing run.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result := &Result{StartTime: start}

	if err := req.Input.Validate(); err != nil {
		s.finish(result, StatusFailed)
		s.logger.Error("Run rejected", logfields.Error(err))
		return result, err
	}

	result.RunID = s.newRunID()
	ctx = observability.WithRunID(ctx, result.RunID)
	ctx = observability.WithTarget(ctx, req.Input.TargetKind)
	r := &run{
		DefaultService: s,
		ctx:            ctx,
		input:          req.Input,
		result:         result,
		logger:         observability.Logger(ctx, s.logger),
	}
	r.logger.Info("Run started",
		logfields.Bucket(req.Input.SourceBucket),
		slog.String("trigger", string(req.Trigger)))

	err := r.execute()
	switch {
	case err == nil:
		s.finish(result, StatusSuccess)
		r.record(eventstore.TypeRunCompleted, eventstore.NewRunCompleted(result.Pages, result.Assets, result.Duration))
		r.logger.Info("Run completed",
			logfields.Bucket(result.DestBucket),
			slog.Int("pages", result.Pages),
			slog.Int("assets", result.Assets),
			logfields.DurationMS(float64(result.Duration.Milliseconds())))
		r.notify(req.Trigger, nil)
		return result, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.finish(result, StatusCanceled)
	default:
		s.finish(result, StatusFailed)
	}
	r.record(eventstore.TypeRunFailed, eventstore.NewRunFailed(result.FailedStage, err, result.Duration))
	r.logger.Error("Run failed", logfields.Stage(result.FailedStage), logfields.Error(err))
	r.notify(req.Trigger, err)
	return result, err
}

func (s *DefaultService) finish(result *Result, status Status) {
	result.Status = status
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	s.recorder.ObserveRunDuration(result.Duration)
	switch status {
	case StatusSuccess:
		s.recorder.IncRunOutcome(metrics.OutcomeSuccess)
	case StatusCanceled:
		s.recorder.IncRunOutcome(metrics.OutcomeCanceled)
	default:
		s.recorder.IncRunOutcome(metrics.OutcomeFailed)
	}
}

func (r *run) execute() error {
	source := store.NewRetrying(
		store.NewAdapter(r.backend, r.input.SourceBucket, "", store.WithLogger(r.logger)),
		retry.FromConfig(r.cfg.Retry), r.logger)

	var (
		siteCfg *config.SiteConfig
		root    *site.DirectoryState
	)
	err := r.stage(metrics.StageBuildTree, func(ctx context.Context) error {
		var err error
		if siteCfg, err = loadSiteConfig(ctx, source); err != nil {
			return err
		}
		opts := site.OptionsFromConfig(r.cfg)
		if siteCfg.BaseURL != "" {
			opts.BaseURL = siteCfg.BaseURL
		}
		opts.Params = siteCfg.Params
		root, err = site.NewBuilder(source, opts, r.logger).Build(ctx, r.cfg.Site.SourceDir)
		return err
	})
	if err != nil {
		return err
	}

	dest, err := config.ResolveBucket(siteCfg, root.Params, r.input.TargetKind)
	if err != nil {
		r.result.FailedStage = metrics.StageBuildTree
		return err
	}
	r.result.DestBucket = dest
	atomic := r.cfg.Publish.IsAtomic()
	r.record(eventstore.TypeRunStarted, eventstore.RunStarted{
		SourceBucket: r.input.SourceBucket,
		Target:       r.input.TargetKind,
		DestBucket:   dest,
		Atomic:       atomic,
	})

	publisher := store.NewRetrying(
		store.NewAdapter(r.backend, r.input.SourceBucket, dest,
			store.WithStorageClass(r.cfg.Publish.StorageClass),
			store.WithLogger(r.logger)),
		retry.FromConfig(r.cfg.Retry), r.logger)
	var (
		target  store.ContentStore = publisher
		staging *store.Staging
	)
	if atomic {
		staging = store.NewStaging(publisher)
		target = staging
	}

	resolver := templates.NewResolver(source,
		templates.WithPrefix(r.cfg.Site.TemplatesDir),
		templates.WithLogger(r.logger),
		templates.WithRecorder(r.recorder),
		templates.WithConcurrency(r.cfg.Publish.Concurrency))
	opts := pipeline.OptionsFromConfig(r.cfg)
	if siteCfg.BaseURL != "" {
		opts.BaseURL = siteCfg.BaseURL
	}
	opts.OnOutput = r.collect
	err = r.stage(metrics.StageRender, func(ctx context.Context) error {
		return pipeline.New(target, resolver, opts, r.logger).Render(ctx, root)
	})
	if err != nil {
		if staging != nil {
			r.logger.Warn("Discarding staged output", logfields.Count(staging.Len()))
			staging.Discard()
		}
		return err
	}

	if staging != nil {
		err = r.stage(metrics.StageCommit, func(ctx context.Context) error {
			return staging.Commit(ctx, r.cfg.Publish.Concurrency)
		})
		if err != nil {
			return err
		}
	}
	r.published()
	return nil
}

// stage runs fn as a named stage, recording its duration and result.
func (r *run) stage(name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx := observability.WithStage(r.ctx, name)
	observability.DebugContext(ctx, "Stage started")

	err := fn(ctx)
	r.recorder.ObserveStageDuration(name, time.Since(start))
	switch {
	case err == nil:
		r.recorder.IncStageResult(name, metrics.ResultSuccess)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.recorder.IncStageResult(name, metrics.ResultCanceled)
		r.result.FailedStage = name
	default:
		r.recorder.IncStageResult(name, metrics.ResultFatal)
		r.result.FailedStage = name
	}
	return err
}

func (r *run) collect(out pipeline.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, out)
}

// published accounts for every written object once the output is final.
func (r *run) published() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, out := range r.outputs {
		r.recorder.IncPublished(out.Kind)
		if out.Kind == metrics.KindPage {
			r.result.Pages++
			r.record(eventstore.TypePagePublished, eventstore.PagePublished{
				SourceKey:   out.SourceKey,
				DestKey:     out.DestKey,
				URL:         out.URL,
				Layout:      out.Layout,
				Fingerprint: out.Fingerprint,
				Bytes:       out.Bytes,
			})
			continue
		}
		r.result.Assets++
		r.record(eventstore.TypeAssetCopied, eventstore.AssetCopied{SourceKey: out.SourceKey, DestKey: out.DestKey})
	}
}

// record appends one ledger event. Ledger failures are logged and never
// change the outcome of the run.
func (r *run) record(eventType string, payload any) {
	if r.ledger == nil {
		return
	}
	if err := eventstore.Record(context.WithoutCancel(r.ctx), r.ledger, r.result.RunID, eventType, payload); err != nil {
		r.logger.Warn("Failed to record run event", slog.String("type", eventType), logfields.Error(err))
	}
}

// notify announces the finished run. Failures are logged only.
func (r *run) notify(trigger Trigger, runErr error) {
	if r.notifier == nil {
		return
	}
	ev := notify.RunEvent{
		RunID:        r.result.RunID,
		Status:       string(r.result.Status),
		Trigger:      string(trigger),
		SourceBucket: r.input.SourceBucket,
		Target:       r.input.TargetKind,
		DestBucket:   r.result.DestBucket,
		Pages:        r.result.Pages,
		Assets:       r.result.Assets,
		DurationMS:   r.result.Duration.Milliseconds(),
		FailedStage:  r.result.FailedStage,
		FinishedAt:   r.result.EndTime,
	}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	if err := r.notifier.RunFinished(ev); err != nil {
		r.logger.Warn("Failed to announce run", logfields.Error(err))
	}
}

// loadSiteConfig reads the site configuration from the bucket root.
// A missing file yields an empty configuration.
func loadSiteConfig(ctx context.Context, cs store.ContentStore) (*config.SiteConfig, error) {
	data, err := cs.Get(ctx, config.DefaultSiteConfig)
	if store.IsNotFound(err) {
		return &config.SiteConfig{Buckets: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	sc, err := config.ParseSiteConfig(data)
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok {
			return nil, c.WithContext("key", config.DefaultSiteConfig)
		}
		return nil, err
	}
	return sc, nil
}
