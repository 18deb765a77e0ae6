package release

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/augment"
	"github.com/ironsheep/image-release-tools/internal/dataset"
	"github.com/ironsheep/image-release-tools/internal/export"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
	"github.com/ironsheep/image-release-tools/internal/notify"
	"github.com/ironsheep/image-release-tools/internal/pack"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/store"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// unit is one image to write: a source record with one config, or the
// unmodified original.
type unit struct {
	rec      *dataset.Record
	cfg      planner.Config
	original bool
	// name is the output file name under images/{split}/.
	name string
}

type outcome struct {
	unit unit
	res  *augment.Result
	item export.Item
	err  error
}

// run is the state of one release. Fields written during processing are
// owned by the aggregator goroutine.
type run struct {
	o       *Orchestrator
	id      string
	req     Request
	started time.Time
	log     *slog.Logger

	format    pix.Format
	instances []transform.Instance
	plan      *planner.Plan
	data      *dataset.Result

	tree   string
	codec  *pix.Codec
	engine *augment.Engine
	units  []unit

	items     []export.Item
	entries   []LogEntry
	generated int
	originals int
	failed    int
	dropped   int

	exportFormat string
	stats        store.Stats
	archive      *pack.Archive
}

func (r *run) transition(to Status) error {
	if err := r.o.tracker.transition(r.id, to, ""); err != nil {
		return err
	}
	r.log.Info("release status changed", "status", to)
	return nil
}

// prepare does the synchronous part of Start.
func (r *run) prepare(ctx context.Context) error {
	var err error
	if r.format, err = pix.ParseFormat(r.req.ImageFormat); err != nil {
		return apperr.Configuration("release.Start", "%v", err)
	}
	if r.req.ExportFormat != "" {
		if _, err := r.o.deps.Encoders.Lookup(r.req.ExportFormat); err != nil {
			return err
		}
	}
	if err := r.transition(StatusLoadingData); err != nil {
		return err
	}

	if err := r.loadTransformations(ctx); err != nil {
		return err
	}
	if r.plan, err = r.o.planner.Prepare(r.instances, r.req.Policy); err != nil {
		return err
	}
	if len(r.plan.Resolved()) == 0 && !r.req.IncludeOriginal {
		return apperr.Configuration("release.Start",
			"no enabled transformations and include_original is false: nothing to generate")
	}

	collector := dataset.NewCollector(r.o.deps.Source)
	if r.data, err = collector.Collect(ctx, r.req.Collections, r.req.Splits); err != nil {
		return err
	}
	return nil
}

func (r *run) loadTransformations(ctx context.Context) error {
	if len(r.req.Transformations) == 0 {
		if r.req.VersionTag == "" {
			return apperr.Configuration("release.Start", "either transformations or version_tag is required")
		}
		var err error
		r.instances, err = r.o.pendingTransformations(ctx, r.req.VersionTag)
		return err
	}

	if r.req.VersionTag == "" {
		r.req.VersionTag = r.req.Name
	}
	tag := r.req.VersionTag
	for _, in := range r.req.Transformations {
		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		if in.VersionTag == "" {
			in.VersionTag = tag
		}
		if in.Status == "" {
			in.Status = transform.StatusPending
		}
		r.instances = append(r.instances, in)
	}
	if err := r.o.deps.Store.SaveTransformations(ctx, r.instances); err != nil {
		return apperr.IO("release.Start", err)
	}
	return nil
}

// execute runs everything after Start on the job goroutine.
func (r *run) execute(ctx context.Context) (*store.ReleaseRecord, error) {
	staging := r.o.StagingDir(r.id)
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			r.log.Warn("failed to remove staging directory", "path", staging, "error", err)
		}
	}()

	if err := r.stages(ctx, staging); err != nil {
		return r.fail(ctx, err), err
	}
	return r.complete(ctx)
}

func (r *run) stages(ctx context.Context, staging string) error {
	if err := r.transition(StatusGeneratingConfigurations); err != nil {
		return err
	}
	r.tree = filepath.Join(staging, "tree")
	if err := os.MkdirAll(r.tree, 0o755); err != nil {
		return apperr.IO("release.stage", err)
	}
	r.codec = pix.NewCodec(pix.NewImageCache(), r.o.opts.JPEGQuality)
	r.engine = augment.New(r.o.deps.Catalog, r.codec, augment.WithLogger(r.log))
	r.buildUnits()

	if err := r.transition(StatusProcessingImages); err != nil {
		return err
	}
	if err := r.process(ctx); err != nil {
		return err
	}
	if r.generated+r.originals == 0 {
		return apperr.Transform("release.process", "all %d units failed", r.failed)
	}

	if err := r.transition(StatusFinalizing); err != nil {
		return err
	}
	meta, err := r.finalize()
	if err != nil {
		return err
	}

	if err := r.transition(StatusCreatingPackage); err != nil {
		return err
	}
	if r.archive, err = r.o.builder.Build(ctx, r.tree, r.req.Name, r.id, meta); err != nil {
		return err
	}
	return nil
}

// buildUnits expands records × configs. Identity configs add nothing on
// their own; originals come from IncludeOriginal.
func (r *run) buildUnits() {
	taken := make(map[string]bool)
	// Label files are named after the stem, so stems must be unique per split.
	claim := func(split dataset.Split, stem, ext string) string {
		key := func(s string) string { return string(split) + "/" + strings.ToLower(s) }
		base := stem
		for n := 1; taken[key(stem)]; n++ {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
		taken[key(stem)] = true
		return stem + ext
	}

	for i := range r.data.Records {
		rec := &r.data.Records[i]
		ext := r.format.Extension(rec.Filename)
		stem := strings.TrimSuffix(rec.Filename, filepath.Ext(rec.Filename))

		if r.req.IncludeOriginal {
			r.units = append(r.units, unit{rec: rec, original: true, name: claim(rec.Split, stem, ext)})
		}
		n := 0
		for _, cfg := range r.plan.ConfigsFor(rec.ID) {
			if cfg.IsIdentity() {
				continue
			}
			n++
			r.units = append(r.units, unit{
				rec:  rec,
				cfg:  cfg,
				name: claim(rec.Split, fmt.Sprintf("%s_aug%d", stem, n), ext),
			})
		}
	}
	r.log.Info("planned units", "images", len(r.data.Records), "units", len(r.units))
}

// process runs every unit on a bounded pool. Outcomes flow to one aggregator,
// which owns progress, results and cache eviction.
func (r *run) process(ctx context.Context) error {
	total := len(r.units)
	r.o.tracker.counts(r.id, total, 0, 0, 0)

	pending := make(map[string]int)
	for _, u := range r.units {
		pending[u.rec.Path]++
	}

	outcomes := make(chan outcome, r.o.opts.Workers)
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		processed := 0
		for out := range outcomes {
			processed++
			r.collect(out)
			r.o.tracker.counts(r.id, total, processed, r.generated+r.originals, r.failed)
			path := out.unit.rec.Path
			if pending[path]--; pending[path] == 0 {
				r.codec.Cache().Evict(path)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.opts.Workers)
	for _, u := range r.units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := r.work(u)
			select {
			case outcomes <- out:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(outcomes)
	<-aggDone

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("processing interrupted: %w", err)
	}
	return nil
}

func (r *run) work(u unit) outcome {
	cfg := u.cfg
	if u.original {
		cfg = planner.Config{ID: "original"}
	}
	res, err := r.engine.ApplyFile(u.rec.ID, u.rec.Path, cfg, u.rec.Annotations, unitSeed(r.req.Policy.Seed, u.rec.ID, cfg.ID))
	if err != nil {
		return outcome{unit: u, err: err}
	}
	dst := filepath.Join(r.tree, "images", string(u.rec.Split), u.name)
	written, err := r.codec.Save(res.Image, dst, r.format)
	if err != nil {
		return outcome{unit: u, err: err}
	}
	return outcome{
		unit: u,
		res:  res,
		item: export.Item{
			Filename:    filepath.Base(written),
			Split:       string(u.rec.Split),
			Width:       res.Width,
			Height:      res.Height,
			Annotations: res.Annotations,
		},
	}
}

// collect runs on the aggregator goroutine only.
func (r *run) collect(out outcome) {
	if out.err != nil {
		r.failed++
		r.o.deps.Metrics.Unit("failed")
		r.log.Warn("unit failed",
			"image", out.unit.rec.ID, "config", out.unit.cfg.ID, "kind", apperr.KindOf(out.err), "error", out.err)
		return
	}
	if out.unit.original {
		r.originals++
		r.o.deps.Metrics.Unit("original")
	} else {
		r.generated++
		r.o.deps.Metrics.Unit("generated")
	}
	r.dropped += out.res.Dropped
	r.o.deps.Metrics.Dropped(out.res.Dropped)
	r.items = append(r.items, out.item)
	r.entries = append(r.entries, newLogEntry(out))
}

func unitSeed(seed int64, imageID, configID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(imageID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(configID))
	return seed ^ int64(h.Sum64())
}

// complete marks the consumed transformations, persists the record and
// publishes the outcome. The tracker turns terminal last, so a poller that
// sees COMPLETED can rely on the record and the event.
func (r *run) complete(ctx context.Context) (*store.ReleaseRecord, error) {
	var ids []string
	for _, res := range r.plan.Resolved() {
		ids = append(ids, res.Instance.ID)
	}
	if len(ids) > 0 {
		if err := r.o.deps.Store.MarkTransformationsCompleted(ctx, ids, r.id); err != nil {
			r.removeArchive()
			err = apperr.IO("release.complete", err)
			return r.fail(ctx, err), err
		}
	}

	rec := r.record(StatusCompleted, "")
	if err := r.o.deps.Store.SaveRelease(ctx, rec); err != nil {
		r.removeArchive()
		err = apperr.IO("release.complete", err)
		return r.fail(ctx, err), err
	}
	r.finish(ctx, rec)
	if err := r.transition(StatusCompleted); err != nil {
		return rec, err
	}
	return rec, nil
}

// removeArchive drops an archive whose release could not be recorded.
func (r *run) removeArchive() {
	if r.archive == nil {
		return
	}
	if err := os.Remove(r.archive.Path); err != nil && !os.IsNotExist(err) {
		r.log.Warn("failed to remove archive", "path", r.archive.Path, "error", err)
	}
}

// fail moves the release to FAILED, persists the record and publishes it.
// Persistence and notification use a context detached from cancellation.
func (r *run) fail(ctx context.Context, cause error) *store.ReleaseRecord {
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()
	r.log.Error("release failed", "error", cause)

	rec := r.record(StatusFailed, msg)
	if err := r.o.deps.Store.SaveRelease(ctx, rec); err != nil {
		r.log.Error("failed to persist release record", "error", err)
	}
	r.finish(ctx, rec)
	if err := r.o.tracker.transition(r.id, StatusFailed, msg); err != nil {
		r.log.Error("failed to mark release failed", "error", err)
	}
	return rec
}

func (r *run) finish(ctx context.Context, rec *store.ReleaseRecord) {
	r.o.deps.Metrics.ReleaseFinished(rec.Status, r.o.now().Sub(r.started))
	ev := notify.Event{
		ReleaseID:       rec.ID,
		Name:            rec.Name,
		Status:          rec.Status,
		GeneratedImages: rec.Stats.TotalImages,
		FailedCount:     rec.FailedCount,
		ArchivePath:     rec.ArchivePath,
		ErrorMessage:    rec.ErrorMessage,
		Timestamp:       r.o.now(),
	}
	if err := r.o.deps.Notifier.Notify(context.WithoutCancel(ctx), ev); err != nil {
		r.log.Warn("failed to publish release event", "error", err)
	}
	if rec.Status == string(StatusCompleted) {
		r.log.Info("release completed",
			"archive", rec.ArchivePath, "images", rec.Stats.TotalImages, "failed", rec.FailedCount,
			"elapsed", r.o.now().Sub(r.started).Round(time.Millisecond))
	}
}

func (r *run) record(status Status, errMsg string) *store.ReleaseRecord {
	done := r.o.now()
	rec := &store.ReleaseRecord{
		ID:           r.id,
		Name:         r.req.Name,
		VersionTag:   r.req.VersionTag,
		Status:       string(status),
		DatasetsUsed: append([]string(nil), r.req.Collections...),
		ExportFormat: r.exportFormat,
		TaskType:     r.req.taskType(),
		Stats:        r.stats,
		FailedCount:  r.failed,
		ErrorMessage: errMsg,
		CreatedAt:    r.started,
		CompletedAt:  &done,
	}
	if r.archive != nil && status == StatusCompleted {
		rec.ArchivePath = r.archive.Path
	}
	return rec
}
