package release

import (
	"context"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// PlanRequest asks for the configs a release would generate, without
// touching any image.
type PlanRequest struct {
	VersionTag      string               `json:"version_tag,omitempty" yaml:"version_tag,omitempty"`
	Transformations []transform.Instance `json:"transformations,omitempty" yaml:"transformations,omitempty"`
	Policy          planner.Policy       `json:"policy" yaml:"policy"`
	// ImageID selects the per-image list when the policy varies per image.
	ImageID string `json:"image_id,omitempty" yaml:"image_id,omitempty"`
}

// PlannedTransformation is a resolved transformation as the planner sees it.
type PlannedTransformation struct {
	ID        string         `json:"id"`
	Kind      transform.Kind `json:"kind"`
	Order     int            `json:"order"`
	Dual      bool           `json:"is_dual_value"`
	UserValue *float64       `json:"user_value,omitempty"`
	AutoValue *float64       `json:"auto_value,omitempty"`
}

type PlannedConfig struct {
	ID    string                   `json:"id"`
	Steps []map[string]interface{} `json:"steps"`
}

// PlanSummary is the result of PlanRelease.
type PlanSummary struct {
	Transformations []PlannedTransformation `json:"transformations"`
	Count           int                     `json:"count"`
	Configs         []PlannedConfig         `json:"configs"`
}

// PlanRelease resolves the transformations of req and returns the planned
// configs. Inline transformations are not persisted.
func (o *Orchestrator) PlanRelease(ctx context.Context, req PlanRequest) (*PlanSummary, error) {
	instances := req.Transformations
	if len(instances) == 0 {
		if req.VersionTag == "" {
			return nil, apperr.Configuration("release.Plan", "either transformations or version_tag is required")
		}
		var err error
		if instances, err = o.pendingTransformations(ctx, req.VersionTag); err != nil {
			return nil, err
		}
	}

	plan, err := o.planner.Prepare(instances, req.Policy)
	if err != nil {
		return nil, err
	}

	sum := &PlanSummary{}
	for _, r := range plan.Resolved() {
		sum.Transformations = append(sum.Transformations, PlannedTransformation{
			ID:        r.Instance.ID,
			Kind:      r.Instance.Kind,
			Order:     r.Instance.Order,
			Dual:      r.Dual(),
			UserValue: r.Instance.UserValue,
			AutoValue: r.Instance.AutoValue,
		})
	}
	for _, cfg := range plan.ConfigsFor(req.ImageID) {
		if cfg.IsIdentity() {
			continue
		}
		sum.Configs = append(sum.Configs, PlannedConfig{ID: cfg.ID, Steps: cfg.Describe()})
	}
	sum.Count = len(sum.Configs)
	return sum, nil
}

// pendingTransformations returns the stored instances of tag that no release
// has consumed yet.
func (o *Orchestrator) pendingTransformations(ctx context.Context, tag string) ([]transform.Instance, error) {
	stored, err := o.deps.Store.Transformations(ctx, tag)
	if err != nil {
		return nil, apperr.IO("release.transformations", err)
	}
	var out []transform.Instance
	for _, in := range stored {
		if in.Status != transform.StatusCompleted {
			out = append(out, in)
		}
	}
	return out, nil
}
