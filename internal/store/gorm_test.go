package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ironsheep/image-release-tools/internal/transform"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewGormStore(db)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return s
}

func TestGormStore_Transformations(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	if err := s.SaveTransformations(ctx, sampleInstances()); err != nil {
		t.Fatal(err)
	}

	got, err := s.Transformations(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Fatalf("got %+v", got)
	}
	if got[0].Params["percent"] != 10.0 {
		t.Errorf("params = %v", got[0].Params)
	}
	if got[1].UserValue == nil || *got[1].UserValue != 30 || !got[1].IsDualValue {
		t.Errorf("dual value lost: %+v", got[1])
	}

	// same id again updates in place
	changed := sampleInstances()[1]
	changed.Order = 5
	changed.Params = map[string]interface{}{"percent": 20.0}
	if err := s.SaveTransformations(ctx, []transform.Instance{changed}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Transformations(ctx, "v1")
	if len(got) != 2 || got[0].ID != "t2" || got[1].ID != "t1" {
		t.Fatalf("after upsert got %+v", got)
	}
	if got[1].Order != 5 || got[1].Params["percent"] != 20.0 {
		t.Errorf("upsert not applied: %+v", got[1])
	}

	other, _ := s.Transformations(ctx, "v2")
	if len(other) != 1 || other[0].ID != "t3" || other[0].Enabled {
		t.Errorf("v2 = %+v", other)
	}

	if err := s.SaveTransformations(ctx, []transform.Instance{{Kind: transform.Blur}}); err == nil {
		t.Error("expected error for instance without id")
	}
}

func TestGormStore_TransformationsTieOnOrderUsesID(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	in := []transform.Instance{
		{ID: "b", Kind: transform.FlipHorizontal, Enabled: true, VersionTag: "v1"},
		{ID: "a", Kind: transform.Blur, Enabled: true, VersionTag: "v1"},
		{ID: "c", Kind: transform.Noise, Enabled: true, Order: -1, VersionTag: "v1"},
	}
	if err := s.SaveTransformations(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, err := s.Transformations(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, g := range got {
		ids = append(ids, g.ID)
		if g.Status != transform.StatusPending {
			t.Errorf("%s: status %q, want pending default", g.ID, g.Status)
		}
	}
	if !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
		t.Errorf("order = %v", ids)
	}
}

func TestGormStore_MarkCompleted(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	_ = s.SaveTransformations(ctx, sampleInstances())

	if err := s.MarkTransformationsCompleted(ctx, []string{"t1", "nope"}, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.Transformations(ctx, "v1")
	for _, in := range got {
		if in.Status != transform.StatusPending || in.ReleaseID != "" {
			t.Errorf("%s changed by a failed mark: %+v", in.ID, in)
		}
	}

	if err := s.MarkTransformationsCompleted(ctx, []string{"t1", "t2"}, "r1"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Transformations(ctx, "v1")
	for _, in := range got {
		if in.Status != transform.StatusCompleted || in.ReleaseID != "r1" {
			t.Errorf("%s: status %s release %q", in.ID, in.Status, in.ReleaseID)
		}
	}
	rest, _ := s.Transformations(ctx, "v2")
	if rest[0].Status != transform.StatusPending {
		t.Errorf("t3 marked without being named")
	}

	if err := s.MarkTransformationsCompleted(ctx, nil, "r2"); err != nil {
		t.Errorf("empty mark: %v", err)
	}
}

func TestGormStore_Releases(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.Release(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec := sampleRecord("r1", base)
	if err := s.SaveRelease(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.Release(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) || got.CompletedAt == nil || !got.CompletedAt.Equal(*rec.CompletedAt) {
		t.Errorf("times = %v / %v", got.CreatedAt, got.CompletedAt)
	}
	if !reflect.DeepEqual(got.Stats, rec.Stats) || !reflect.DeepEqual(got.DatasetsUsed, rec.DatasetsUsed) {
		t.Errorf("stats or datasets changed:\n got %+v\nwant %+v", got, rec)
	}
	if got.ArchivePath != rec.ArchivePath || got.FailedCount != 1 {
		t.Errorf("got %+v", got)
	}

	// saving again replaces the row
	rec.Status = "FAILED"
	rec.ErrorMessage = "packaging failed"
	if err := s.SaveRelease(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Release(ctx, "r1")
	if got.Status != "FAILED" || got.ErrorMessage != "packaging failed" {
		t.Errorf("update not applied: %+v", got)
	}

	_ = s.SaveRelease(ctx, sampleRecord("r3", base.Add(time.Hour)))
	_ = s.SaveRelease(ctx, sampleRecord("r2", base.Add(time.Hour)))
	list, err := s.Releases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"r2", "r3", "r1"}) {
		t.Errorf("Releases() order = %v", ids)
	}
}
