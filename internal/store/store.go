// Package store persists transformation instances and release records.
//
// MemoryStore keeps everything in process and backs tests and single-shot CLI
// runs. GormStore persists to MySQL through gorm.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ironsheep/image-release-tools/internal/transform"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Stats summarizes the images of a release.
type Stats struct {
	TotalImages     int            `json:"total_images" yaml:"total_images"`
	OriginalImages  int            `json:"original_images" yaml:"original_images"`
	AugmentedImages int            `json:"augmented_images" yaml:"augmented_images"`
	PerSplit        map[string]int `json:"per_split" yaml:"per_split"`
	PerClass        map[string]int `json:"per_class" yaml:"per_class"`
	PerCollection   map[string]int `json:"per_collection" yaml:"per_collection"`
}

// ReleaseRecord is the durable outcome of one release run.
type ReleaseRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	VersionTag   string     `json:"version_tag"`
	Status       string     `json:"status"`
	DatasetsUsed []string   `json:"datasets_used"`
	ExportFormat string     `json:"export_format"`
	TaskType     string     `json:"task_type"`
	Stats        Stats      `json:"stats"`
	FailedCount  int        `json:"failed_count"`
	ArchivePath  string     `json:"archive_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Store is the persistence collaborator of the release orchestrator.
type Store interface {
	// Transformations returns the instances authored under versionTag.
	Transformations(ctx context.Context, versionTag string) ([]transform.Instance, error)
	// SaveTransformations inserts or replaces instances by id.
	SaveTransformations(ctx context.Context, instances []transform.Instance) error
	// MarkTransformationsCompleted flips the given instances to COMPLETED and
	// binds them to releaseID.
	MarkTransformationsCompleted(ctx context.Context, ids []string, releaseID string) error
	SaveRelease(ctx context.Context, rec *ReleaseRecord) error
	Release(ctx context.Context, id string) (*ReleaseRecord, error)
	Releases(ctx context.Context) ([]ReleaseRecord, error)
}

// Clone returns a deep copy of the record.
func (r *ReleaseRecord) Clone() *ReleaseRecord {
	cp := *r
	cp.DatasetsUsed = append([]string(nil), r.DatasetsUsed...)
	cp.Stats.PerSplit = cloneCounts(r.Stats.PerSplit)
	cp.Stats.PerClass = cloneCounts(r.Stats.PerClass)
	cp.Stats.PerCollection = cloneCounts(r.Stats.PerCollection)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func cloneCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneInstance(in transform.Instance) transform.Instance {
	out := in
	if in.Params != nil {
		out.Params = make(map[string]interface{}, len(in.Params))
		for k, v := range in.Params {
			out.Params[k] = v
		}
	}
	if in.UserValue != nil {
		v := *in.UserValue
		out.UserValue = &v
	}
	if in.AutoValue != nil {
		v := *in.AutoValue
		out.AutoValue = &v
	}
	return out
}
