package release

import (
	"strings"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/export"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// Request describes one release.
//
// When Transformations is empty the orchestrator loads the pending instances
// stored under VersionTag. Inline transformations are saved to the store
// under VersionTag before the run so they can be marked as consumed.
type Request struct {
	Name        string   `json:"name" yaml:"name"`
	VersionTag  string   `json:"version_tag" yaml:"version_tag"`
	Collections []string `json:"collections" yaml:"collections"`
	// Splits filters source images; empty keeps all splits.
	Splits          []string             `json:"splits,omitempty" yaml:"splits,omitempty"`
	Transformations []transform.Instance `json:"transformations,omitempty" yaml:"transformations,omitempty"`
	Policy          planner.Policy       `json:"policy" yaml:"policy"`
	IncludeOriginal bool                 `json:"include_original" yaml:"include_original"`
	// TaskType drives the export format decision ("detection", "segmentation").
	TaskType string `json:"task_type" yaml:"task_type"`
	// ExportFormat overrides the decision table when set.
	ExportFormat string `json:"export_format,omitempty" yaml:"export_format,omitempty"`
	// ImageFormat is the encoding of written images; empty keeps the source format.
	ImageFormat string `json:"image_format,omitempty" yaml:"image_format,omitempty"`
}

// validate checks the request fields that need no collaborator.
func (r *Request) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperr.Configuration("release.Request", "name is required")
	}
	if len(r.Collections) == 0 {
		return apperr.Configuration("release.Request", "at least one collection is required")
	}
	if _, err := pix.ParseFormat(r.ImageFormat); err != nil {
		return apperr.Configuration("release.Request", "%v", err)
	}
	switch strings.ToLower(r.TaskType) {
	case "", export.TaskDetection, export.TaskSegmentation:
	default:
		return apperr.Configuration("release.Request", "unknown task_type %q", r.TaskType)
	}
	return nil
}

func (r *Request) taskType() string {
	if r.TaskType == "" {
		return export.TaskDetection
	}
	return strings.ToLower(r.TaskType)
}
