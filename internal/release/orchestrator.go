package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/dataset"
	"github.com/ironsheep/image-release-tools/internal/export"
	"github.com/ironsheep/image-release-tools/internal/logging"
	"github.com/ironsheep/image-release-tools/internal/notify"
	"github.com/ironsheep/image-release-tools/internal/pack"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/store"
	"github.com/ironsheep/image-release-tools/internal/telemetry"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// Deps are the collaborators of an Orchestrator. Catalog, Source and Store
// are required; the rest default to no-op or built-in implementations.
type Deps struct {
	Catalog  *transform.Catalog
	Source   dataset.Source
	Store    store.Store
	Notifier notify.Notifier
	Metrics  *telemetry.Metrics
	Encoders *export.Registry
}

// Options tune where and how releases run.
type Options struct {
	// WorkDir holds per-release staging trees under WorkDir/staging/<id>.
	WorkDir string
	// OutputDir receives the finished archives.
	OutputDir string
	// Workers bounds concurrent units; zero means GOMAXPROCS.
	Workers     int
	JPEGQuality int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides release id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// WithLogger replaces the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator runs releases. It is safe for concurrent use; each release
// has its own staging directory, image cache and worker pool.
type Orchestrator struct {
	deps    Deps
	opts    Options
	planner *planner.Planner
	tracker *Tracker
	builder *pack.Builder

	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// New returns an orchestrator.
func New(deps Deps, opts Options, options ...Option) (*Orchestrator, error) {
	if deps.Catalog == nil || deps.Source == nil || deps.Store == nil {
		return nil, errors.New("release: catalog, source and store are required")
	}
	if deps.Encoders == nil {
		deps.Encoders = export.NewRegistry()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(os.TempDir(), "image-release")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "releases"
	}

	o := &Orchestrator{
		deps:    deps,
		opts:    opts,
		planner: planner.New(deps.Catalog),
		tracker: NewTracker(),
		builder: pack.NewBuilder(opts.OutputDir),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.log == nil {
		o.log = logging.L()
	}
	o.tracker.now = o.now
	return o, nil
}

// Tracker exposes live progress.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// Catalog returns the transformation catalog.
func (o *Orchestrator) Catalog() *transform.Catalog { return o.deps.Catalog }

// Planner returns the planner over the orchestrator's catalog.
func (o *Orchestrator) Planner() *planner.Planner { return o.planner }

// Store returns the persistence collaborator.
func (o *Orchestrator) Store() store.Store { return o.deps.Store }

// Job is a release running in the background.
type Job struct {
	id   string
	done chan struct{}
	rec  *store.ReleaseRecord
	err  error
}

// ID returns the release id.
func (j *Job) ID() string { return j.id }

// Done is closed when the release reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the release finishes and returns its record. A FAILED
// release returns the record together with the cause.
func (j *Job) Wait() (*store.ReleaseRecord, error) {
	<-j.done
	return j.rec, j.err
}

// Run starts a release and waits for it.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*store.ReleaseRecord, error) {
	job, err := o.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return job.Wait()
}

// Start validates req, loads the transformations, prepares the plan and
// collects the source images before returning. Configuration and data errors
// surface here and leave a FAILED record behind. Image processing and
// packaging continue on the returned Job, bound to ctx.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	r := &run{
		o:       o,
		id:      o.newID(),
		req:     req,
		started: o.now(),
		log:     o.log,
	}
	r.log = o.log.With("release_id", r.id)
	o.tracker.create(r.id, req.Name)
	o.deps.Metrics.ReleaseStarted()

	if err := r.prepare(ctx); err != nil {
		r.fail(ctx, err)
		return nil, err
	}

	job := &Job{id: r.id, done: make(chan struct{})}
	go func() {
		defer close(job.done)
		job.rec, job.err = r.execute(ctx)
	}()
	return job, nil
}

// Progress returns the live progress of id, or a view derived from the
// persisted record once the tracker no longer holds it.
func (o *Orchestrator) Progress(ctx context.Context, id string) (Progress, error) {
	if p, ok := o.tracker.Get(id); ok {
		return p, nil
	}
	rec, err := o.deps.Store.Release(ctx, id)
	if err != nil {
		return Progress{}, err
	}
	return progressFromRecord(rec), nil
}

func progressFromRecord(rec *store.ReleaseRecord) Progress {
	status := Status(rec.Status)
	p := Progress{
		ReleaseID:       rec.ID,
		Name:            rec.Name,
		Status:          status,
		CurrentStep:     status.Step(),
		TotalImages:     rec.Stats.TotalImages + rec.FailedCount,
		ProcessedImages: rec.Stats.TotalImages + rec.FailedCount,
		GeneratedImages: rec.Stats.TotalImages,
		FailedImages:    rec.FailedCount,
		ErrorMessage:    rec.ErrorMessage,
		UpdatedAt:       rec.CreatedAt,
	}
	if rec.CompletedAt != nil {
		p.UpdatedAt = *rec.CompletedAt
	}
	if status == StatusCompleted {
		p.Percentage = 100
	}
	return p
}

// Release returns the persisted record of id.
func (o *Orchestrator) Release(ctx context.Context, id string) (*store.ReleaseRecord, error) {
	return o.deps.Store.Release(ctx, id)
}

// StagingDir returns the staging directory of release id.
func (o *Orchestrator) StagingDir(id string) string {
	return filepath.Join(o.opts.WorkDir, "staging", id)
}

// Reap removes staging directories older than maxAge that do not belong to a
// running release, and returns how many were removed. Staging trees are
// normally removed when a run ends; this cleans up after crashed processes.
func (o *Orchestrator) Reap(maxAge time.Duration) (int, error) {
	root := filepath.Join(o.opts.WorkDir, "staging")
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.IO("release.Reap", err)
	}

	cutoff := o.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || o.tracker.Active(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		o.log.Info("removed orphaned staging directory", "release_id", e.Name(), "age", o.now().Sub(info.ModTime()).Round(time.Second))
		removed++
	}
	if len(errs) > 0 {
		return removed, apperr.IO("release.Reap", fmt.Errorf("%d staging directories not removed: %w", len(errs), errors.Join(errs...)))
	}
	return removed, nil
}
