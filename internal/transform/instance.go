package transform

import (
	"sort"

	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// Status is the lifecycle state of an authored transformation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// Instance is one authored transformation belonging to a release version tag.
// Params is the authored bag; the catalog turns it into typed Params.
type Instance struct {
	ID          string                 `json:"id" yaml:"id"`
	Kind        Kind                   `json:"kind" yaml:"kind"`
	Params      map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	Enabled     bool                   `json:"enabled" yaml:"enabled"`
	Order       int                    `json:"order" yaml:"order"`
	IsDualValue bool                   `json:"is_dual_value" yaml:"is_dual_value"`
	UserValue   *float64               `json:"user_value,omitempty" yaml:"user_value,omitempty"`
	AutoValue   *float64               `json:"auto_value,omitempty" yaml:"auto_value,omitempty"`
	VersionTag  string                 `json:"version_tag" yaml:"version_tag"`
	Status      Status                 `json:"status" yaml:"status"`
	ReleaseID   string                 `json:"release_id,omitempty" yaml:"release_id,omitempty"`
}

// Resolved is an enabled instance with typed parameters. For dual instances
// User and Auto hold the two planned variants; for single-value instances both
// equal Params.
type Resolved struct {
	Instance Instance
	Params   Params
	User     Params
	Auto     Params
}

// Dual reports whether the instance takes part in dual-value planning.
func (r Resolved) Dual() bool { return r.Instance.IsDualValue }

// Resolve decodes and validates the enabled instances and returns them sorted by
// Order. Instances with equal Order keep the order they were given in, so an
// unordered list plans in list order. Disabled instances are ignored.
//
// Two enabled instances of the same kind, a dual flag on a kind without a
// derivation rule, or invalid parameters are configuration errors. AutoValue is
// filled in on the returned instances.
func Resolve(c *Catalog, instances []Instance) ([]Resolved, error) {
	seen := make(map[Kind]string)
	var out []Resolved
	for _, inst := range instances {
		if !inst.Enabled {
			continue
		}
		if prev, dup := seen[inst.Kind]; dup {
			return nil, apperr.Configuration("transform.Resolve",
				"kind %q enabled twice (instances %q and %q)", inst.Kind, prev, inst.ID)
		}
		seen[inst.Kind] = inst.ID

		p, err := c.Decode(inst.Kind, inst.Params)
		if err != nil {
			return nil, err
		}
		r := Resolved{Instance: inst, Params: p, User: p, Auto: p}
		if inst.IsDualValue {
			spec, _ := c.Lookup(inst.Kind)
			if !spec.Dual {
				return nil, apperr.Configuration("transform.Resolve",
					"kind %q has no auto-value rule and cannot be dual-valued", inst.Kind)
			}
			user := p
			if inst.UserValue != nil {
				if user, err = c.WithValue(inst.Kind, p, *inst.UserValue); err != nil {
					return nil, err
				}
			}
			auto, err := c.Derive(inst.Kind, user)
			if err != nil {
				return nil, err
			}
			uv, _ := c.Value(inst.Kind, user)
			av, _ := c.Value(inst.Kind, auto)
			r.Instance.UserValue = &uv
			r.Instance.AutoValue = &av
			r.User, r.Auto = user, auto
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Instance.Order < out[j].Instance.Order
	})
	return out, nil
}
