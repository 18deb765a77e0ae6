package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ironsheep/image-release-tools/internal/transform"
)

func f64(v float64) *float64 { return &v }

func sampleInstances() []transform.Instance {
	return []transform.Instance{
		{ID: "t2", Kind: transform.Rotate, Enabled: true, Order: 1, IsDualValue: true, UserValue: f64(30), VersionTag: "v1", Status: transform.StatusPending},
		{ID: "t1", Kind: transform.Brightness, Params: map[string]interface{}{"percent": 10.0}, Enabled: true, VersionTag: "v1", Status: transform.StatusPending},
		{ID: "t3", Kind: transform.Blur, Enabled: false, VersionTag: "v2", Status: transform.StatusPending},
	}
}

func sampleRecord(id string, created time.Time) *ReleaseRecord {
	done := created.Add(time.Minute)
	return &ReleaseRecord{
		ID:           id,
		Name:         "birds",
		VersionTag:   "v1",
		Status:       "COMPLETED",
		DatasetsUsed: []string{"c1", "c2"},
		ExportFormat: "yolo",
		TaskType:     "detection",
		Stats: Stats{
			TotalImages: 6, OriginalImages: 2, AugmentedImages: 4,
			PerSplit:      map[string]int{"train": 6},
			PerClass:      map[string]int{"dog": 9},
			PerCollection: map[string]int{"c1": 1, "c2": 1},
		},
		FailedCount: 1,
		ArchivePath: "/out/birds_" + id + ".zip",
		CreatedAt:   created,
		CompletedAt: &done,
	}
}

func TestMemoryStore_Transformations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
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

	// returned values are copies
	got[0].Params["percent"] = 99.0
	again, _ := s.Transformations(ctx, "v1")
	if again[0].Params["percent"] != 10.0 {
		t.Error("caller mutation leaked into the store")
	}

	if err := s.SaveTransformations(ctx, []transform.Instance{{Kind: transform.Blur}}); err == nil {
		t.Error("expected error for instance without id")
	}
}

func TestMemoryStore_MarkCompleted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.SaveTransformations(ctx, sampleInstances())

	if err := s.MarkTransformationsCompleted(ctx, []string{"t1", "nope"}, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.Transformations(ctx, "v1")
	for _, in := range got {
		if in.Status != transform.StatusPending {
			t.Errorf("%s changed by a failed mark", in.ID)
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
}

func TestMemoryStore_Releases(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.Release(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec := sampleRecord("r1", base)
	if err := s.SaveRelease(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Stats.PerSplit["train"] = 0

	got, err := s.Release(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.PerSplit["train"] != 6 {
		t.Error("stored record shares maps with the caller")
	}

	_ = s.SaveRelease(ctx, sampleRecord("r2", base.Add(time.Hour)))
	list, err := s.Releases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "r2" {
		t.Errorf("Releases() order = %v", list)
	}
}

func TestTransformationRowRoundTrip(t *testing.T) {
	for _, in := range sampleInstances() {
		row, err := transformationRow(in)
		if err != nil {
			t.Fatal(err)
		}
		out, err := row.instance()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip changed instance:\n got %+v\nwant %+v", out, in)
		}
	}
	if _, err := transformationRow(transform.Instance{}); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestReleaseRowRoundTrip(t *testing.T) {
	rec := sampleRecord("r1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	row, err := releaseRow(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := row.record()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip changed record:\n got %+v\nwant %+v", got, rec)
	}
}

func TestMySQLConfig_DSN(t *testing.T) {
	cfg := MySQLConfig{Host: "db", User: "u", Password: "p", DBName: "releases"}
	want := "u:p@tcp(db:3306)/releases?charset=utf8mb4&parseTime=True&loc=UTC"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
