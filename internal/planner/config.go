package planner

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ironsheep/image-release-tools/internal/transform"
)

// Variant records which value of a dual transformation a step uses.
type Variant string

const (
	VariantSingle Variant = ""
	VariantUser   Variant = "user"
	VariantAuto   Variant = "auto"
)

// Step is one transformation inside a config.
type Step struct {
	Kind    transform.Kind   `json:"kind"`
	Params  transform.Params `json:"params"`
	Variant Variant          `json:"variant,omitempty"`
}

// Config is an ordered kind→params map applied to one image in one pass.
type Config struct {
	ID       string `json:"id"`
	Steps    []Step `json:"steps"`
	Priority int    `json:"priority,omitempty"`
}

// IsIdentity reports whether the config changes nothing.
func (c Config) IsIdentity() bool { return len(c.Steps) == 0 }

// Kinds returns the step kinds in application order.
func (c Config) Kinds() []transform.Kind {
	out := make([]transform.Kind, len(c.Steps))
	for i, s := range c.Steps {
		out[i] = s.Kind
	}
	return out
}

// Params looks up the parameters of kind k.
func (c Config) Params(k transform.Kind) (transform.Params, bool) {
	for _, s := range c.Steps {
		if s.Kind == k {
			return s.Params, true
		}
	}
	return nil, false
}

// Signature is a stable textual identity of the steps, used for dedupe and ids.
func (c Config) Signature() string {
	parts := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		parts[i] = fmt.Sprintf("%s%+v", s.Kind, s.Params)
	}
	return strings.Join(parts, "|")
}

// Describe renders the config for logs and the transformation log.
func (c Config) Describe() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(c.Steps))
	for _, s := range c.Steps {
		entry := map[string]interface{}{
			"kind":   string(s.Kind),
			"params": transform.Encode(s.Params),
		}
		if s.Variant != VariantSingle {
			entry["variant"] = string(s.Variant)
		}
		out = append(out, entry)
	}
	return out
}

func assignIDs(cfgs []Config) {
	for i := range cfgs {
		sum := sha1.Sum([]byte(cfgs[i].Signature()))
		cfgs[i].ID = fmt.Sprintf("cfg-%03d-%s", i, hex.EncodeToString(sum[:4]))
	}
}
