// Package planner turns enabled transformations and a sampling policy into the
// ordered list of configs applied to each source image.
//
// # Single-Value Mode
//
// With n enabled transformations and no dual-value instance, the candidate list
// holds every non-empty subset in bitmask order (mask 1 .. 2^n-1, bit i selecting
// the i-th enabled instance), so exactly 2^n-1 candidates exist. When that
// exceeds the quota the policy's strategy picks the survivors:
//
//   - intelligent: the first FixedCount candidates verbatim, the rest sampled
//     uniformly at random from the remainder
//   - random: a uniform random sample of quota candidates
//   - uniform: every floor(total/quota)-th candidate from index 0
//
// Sampled candidates keep their candidate order.
//
// # Dual-Value Mode
//
// When any enabled instance is dual-valued, configs are emitted by priority:
//
//  1. each dual transformation alone with its user value
//  2. each dual transformation alone with its auto value
//  3. if quota remains: all-user, all-auto, every ordered (user, auto) pair of
//     distinct dual transformations and each single-value transformation alone,
//     shuffled with the seed
//
// # Determinism
//
// Planning is a pure function of the instances, the policy and, when
// VaryPerImage is set, the image id.
package planner
