package planner

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/ironsheep/image-release-tools/internal/apperr"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// maxSingleValue bounds the 2^n enumeration.
const maxSingleValue = 20

// Planner builds configs from catalog-resolved transformations.
type Planner struct {
	catalog *transform.Catalog
}

// New returns a planner over catalog.
func New(catalog *transform.Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// Plan is a validated planning session for one release.
type Plan struct {
	resolved []transform.Resolved
	policy   Policy
	global   []Config
}

// Prepare validates the policy and the instances. All configuration errors of a
// release surface here, before any image is touched.
func (p *Planner) Prepare(instances []transform.Instance, policy Policy) (*Plan, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	resolved, err := transform.Resolve(p.catalog, instances)
	if err != nil {
		return nil, err
	}
	if len(resolved) > maxSingleValue && !anyDual(resolved) {
		return nil, apperr.Configuration("planner.Prepare",
			"%d enabled transformations exceed the limit of %d", len(resolved), maxSingleValue)
	}
	plan := &Plan{resolved: resolved, policy: policy}
	plan.global = plan.build(policy.Seed)
	return plan, nil
}

// Plan resolves and plans in one call, returning the global config list.
func (p *Planner) Plan(instances []transform.Instance, policy Policy) ([]Config, error) {
	plan, err := p.Prepare(instances, policy)
	if err != nil {
		return nil, err
	}
	return plan.Configs(), nil
}

// Resolved returns the enabled transformations in planning order.
func (pl *Plan) Resolved() []transform.Resolved { return pl.resolved }

// Policy returns the policy the plan was prepared with.
func (pl *Plan) Policy() Policy { return pl.policy }

// Configs returns the shared config list.
func (pl *Plan) Configs() []Config {
	out := make([]Config, len(pl.global))
	copy(out, pl.global)
	return out
}

// ConfigsFor returns the configs for one image. Unless the policy varies per
// image this is the shared list.
func (pl *Plan) ConfigsFor(imageID string) []Config {
	if !pl.policy.VaryPerImage {
		return pl.Configs()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(imageID))
	return pl.build(pl.policy.Seed ^ int64(h.Sum64()))
}

func (pl *Plan) build(seed int64) []Config {
	var cfgs []Config
	switch {
	case len(pl.resolved) == 0:
		cfgs = []Config{{}}
	case anyDual(pl.resolved):
		cfgs = pl.dual(seed)
	default:
		cfgs = sample(pl.singles(), pl.policy, seed)
	}
	assignIDs(cfgs)
	return cfgs
}

// singles enumerates every non-empty subset in bitmask order.
func (pl *Plan) singles() []Config {
	n := len(pl.resolved)
	out := make([]Config, 0, (1<<n)-1)
	for mask := 1; mask < 1<<n; mask++ {
		var c Config
		for i, r := range pl.resolved {
			if mask&(1<<i) != 0 {
				c.Steps = append(c.Steps, Step{Kind: r.Instance.Kind, Params: r.Params})
			}
		}
		out = append(out, c)
	}
	return out
}

func (pl *Plan) dual(seed int64) []Config {
	quota := pl.policy.ImagesPerOriginal
	var duals, singles []transform.Resolved
	for _, r := range pl.resolved {
		if r.Dual() {
			duals = append(duals, r)
		} else {
			singles = append(singles, r)
		}
	}

	var out []Config
	for _, r := range duals {
		out = append(out, Config{Priority: 1, Steps: []Step{{Kind: r.Instance.Kind, Params: r.User, Variant: VariantUser}}})
	}
	for _, r := range duals {
		out = append(out, Config{Priority: 2, Steps: []Step{{Kind: r.Instance.Kind, Params: r.Auto, Variant: VariantAuto}}})
	}
	if len(out) >= quota {
		return out[:quota]
	}

	seen := make(map[string]bool)
	for _, c := range out {
		seen[c.Signature()] = true
	}
	var pool []Config
	add := func(c Config) {
		c.Priority = 3
		sig := c.Signature()
		if len(c.Steps) == 0 || seen[sig] {
			return
		}
		seen[sig] = true
		pool = append(pool, c)
	}

	add(pl.combine(func(r transform.Resolved) (transform.Params, Variant) { return r.User, VariantUser }))
	add(pl.combine(func(r transform.Resolved) (transform.Params, Variant) { return r.Auto, VariantAuto }))
	for i, a := range duals {
		for j, b := range duals {
			if i == j {
				continue
			}
			pair := map[transform.Kind]Step{
				a.Instance.Kind: {Kind: a.Instance.Kind, Params: a.User, Variant: VariantUser},
				b.Instance.Kind: {Kind: b.Instance.Kind, Params: b.Auto, Variant: VariantAuto},
			}
			add(pl.ordered(pair))
		}
	}
	for _, r := range singles {
		add(Config{Steps: []Step{{Kind: r.Instance.Kind, Params: r.Params}}})
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	need := quota - len(out)
	if need > len(pool) {
		need = len(pool)
	}
	return append(out, pool[:need]...)
}

// combine builds a config with every enabled transformation, dual ones taking
// the variant chosen by pick.
func (pl *Plan) combine(pick func(transform.Resolved) (transform.Params, Variant)) Config {
	var c Config
	for _, r := range pl.resolved {
		if r.Dual() {
			p, v := pick(r)
			c.Steps = append(c.Steps, Step{Kind: r.Instance.Kind, Params: p, Variant: v})
			continue
		}
		c.Steps = append(c.Steps, Step{Kind: r.Instance.Kind, Params: r.Params})
	}
	return c
}

// ordered lays out steps in planning order.
func (pl *Plan) ordered(steps map[transform.Kind]Step) Config {
	var c Config
	for _, r := range pl.resolved {
		if s, ok := steps[r.Instance.Kind]; ok {
			c.Steps = append(c.Steps, s)
		}
	}
	return c
}

func anyDual(rs []transform.Resolved) bool {
	for _, r := range rs {
		if r.Dual() {
			return true
		}
	}
	return false
}

// sample reduces candidates to the policy quota.
func sample(cands []Config, policy Policy, seed int64) []Config {
	quota := policy.ImagesPerOriginal
	total := len(cands)
	if total <= quota {
		return cands
	}
	rng := rand.New(rand.NewSource(seed))

	switch policy.strategy() {
	case StrategyRandom:
		return pick(cands, rng.Perm(total)[:quota])
	case StrategyUniform:
		step := total / quota
		idx := make([]int, quota)
		for i := range idx {
			idx[i] = i * step
		}
		return pick(cands, idx)
	default:
		fixed := policy.FixedCount
		out := append([]Config{}, cands[:fixed]...)
		rest := cands[fixed:]
		return append(out, pick(rest, rng.Perm(len(rest))[:quota-fixed])...)
	}
}

func pick(cands []Config, idx []int) []Config {
	sorted := append([]int{}, idx...)
	sort.Ints(sorted)
	out := make([]Config, len(sorted))
	for i, j := range sorted {
		out[i] = cands[j]
	}
	return out
}
