package release

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ironsheep/image-release-tools/internal/export"
	"github.com/ironsheep/image-release-tools/internal/pack"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/store"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// LogEntry is one line of metadata/transformation_log.json.
type LogEntry struct {
	Image              string                   `json:"image"`
	Split              string                   `json:"split"`
	SourceImageID      string                   `json:"source_image_id"`
	SourceFile         string                   `json:"source_file"`
	CollectionID       string                   `json:"collection_id"`
	Collection         string                   `json:"collection"`
	Original           bool                     `json:"original,omitempty"`
	ConfigID           string                   `json:"config_id,omitempty"`
	Steps              []map[string]interface{} `json:"steps,omitempty"`
	Skipped            []transform.Kind         `json:"skipped,omitempty"`
	Width              int                      `json:"width"`
	Height             int                      `json:"height"`
	Annotations        int                      `json:"annotations"`
	DroppedAnnotations int                      `json:"dropped_annotations,omitempty"`
}

func newLogEntry(out outcome) LogEntry {
	e := LogEntry{
		Image:              out.item.Filename,
		Split:              out.item.Split,
		SourceImageID:      out.unit.rec.ID,
		SourceFile:         out.unit.rec.OriginalFilename,
		CollectionID:       out.unit.rec.CollectionID,
		Collection:         out.unit.rec.Collection,
		Original:           out.unit.original,
		Skipped:            out.res.Skipped,
		Width:              out.item.Width,
		Height:             out.item.Height,
		Annotations:        len(out.item.Annotations),
		DroppedAnnotations: out.res.Dropped,
	}
	if !out.unit.original {
		e.ConfigID = out.unit.cfg.ID
		e.Steps = out.unit.cfg.Describe()
	}
	return e
}

// ReleaseConfig is written to metadata/release_config.yaml.
type ReleaseConfig struct {
	ReleaseID       string               `yaml:"release_id"`
	Name            string               `yaml:"name"`
	VersionTag      string               `yaml:"version_tag"`
	CreatedAt       time.Time            `yaml:"created_at"`
	Collections     []string             `yaml:"collections"`
	Splits          []string             `yaml:"splits,omitempty"`
	TaskType        string               `yaml:"task_type"`
	ExportFormat    string               `yaml:"export_format"`
	ImageFormat     string               `yaml:"image_format"`
	IncludeOriginal bool                 `yaml:"include_original"`
	Policy          planner.Policy       `yaml:"policy"`
	Transformations []transform.Instance `yaml:"transformations"`
}

// finalize sorts the results, encodes labels and computes statistics.
func (r *run) finalize() (pack.Metadata, error) {
	sort.SliceStable(r.items, func(i, j int) bool {
		if r.items[i].Split != r.items[j].Split {
			return r.items[i].Split < r.items[j].Split
		}
		return r.items[i].Filename < r.items[j].Filename
	})
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].Split != r.entries[j].Split {
			return r.entries[i].Split < r.entries[j].Split
		}
		return r.entries[i].Image < r.entries[j].Image
	})

	batch := export.Batch{Items: r.items, Classes: export.Classes(r.items)}
	r.exportFormat = r.req.ExportFormat
	if r.exportFormat == "" {
		polygons, boxes := batch.Shapes()
		r.exportFormat = export.ChooseFormat(r.req.taskType(), polygons, boxes)
	}
	enc, err := r.o.deps.Encoders.Lookup(r.exportFormat)
	if err != nil {
		return pack.Metadata{}, err
	}
	r.exportFormat = enc.Name()
	if _, err := enc.Encode(r.tree, batch); err != nil {
		return pack.Metadata{}, err
	}

	r.stats = r.buildStats()

	var used []transform.Instance
	for _, res := range r.plan.Resolved() {
		used = append(used, res.Instance)
	}
	cfg := ReleaseConfig{
		ReleaseID:       r.id,
		Name:            r.req.Name,
		VersionTag:      r.req.VersionTag,
		CreatedAt:       r.started.UTC(),
		Collections:     r.req.Collections,
		Splits:          r.req.Splits,
		TaskType:        r.req.taskType(),
		ExportFormat:    r.exportFormat,
		ImageFormat:     string(r.format),
		IncludeOriginal: r.req.IncludeOriginal,
		Policy:          r.req.Policy,
		Transformations: used,
	}

	return pack.Metadata{
		ReleaseConfig:     cfg,
		DatasetStats:      r.stats,
		TransformationLog: r.entries,
		Readme:            r.readme(batch.Classes),
	}, nil
}

func (r *run) buildStats() store.Stats {
	st := store.Stats{
		TotalImages:     len(r.items),
		OriginalImages:  r.originals,
		AugmentedImages: r.generated,
		PerSplit:        make(map[string]int),
		PerClass:        make(map[string]int),
		PerCollection:   make(map[string]int),
	}
	for _, it := range r.items {
		st.PerSplit[it.Split]++
		for _, a := range it.Annotations {
			st.PerClass[a.Class]++
		}
	}
	// keyed by id like DatasetsUsed and the collector counts; names need not be unique
	for _, e := range r.entries {
		st.PerCollection[e.CollectionID]++
	}
	return st
}

func (r *run) readme(classes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.req.Name)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", len(r.req.Name)))
	fmt.Fprintf(&b, "Release ID:     %s\n", r.id)
	fmt.Fprintf(&b, "Version tag:    %s\n", r.req.VersionTag)
	fmt.Fprintf(&b, "Created:        %s\n", r.started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Task type:      %s\n", r.req.taskType())
	fmt.Fprintf(&b, "Export format:  %s\n", r.exportFormat)
	fmt.Fprintf(&b, "Collections:    %s\n\n", strings.Join(r.req.Collections, ", "))

	fmt.Fprintf(&b, "Images:         %d (%d original, %d augmented)\n",
		r.stats.TotalImages, r.stats.OriginalImages, r.stats.AugmentedImages)
	for _, s := range sortedKeys(r.stats.PerSplit) {
		fmt.Fprintf(&b, "  %-12s  %d\n", s, r.stats.PerSplit[s])
	}
	fmt.Fprintf(&b, "Failed units:   %d\n", r.failed)
	fmt.Fprintf(&b, "Classes:        %d\n", len(classes))
	for _, c := range classes {
		fmt.Fprintf(&b, "  %-12s  %d\n", c, r.stats.PerClass[c])
	}

	b.WriteString("\nLayout\n------\n")
	b.WriteString("images/{split}/                     generated images\n")
	b.WriteString("labels/{split}/                     labels in the export format\n")
	b.WriteString("metadata/release_config.yaml        release settings and transformations\n")
	b.WriteString("metadata/dataset_stats.json         image and class counts\n")
	b.WriteString("metadata/transformation_log.json    per-image transformation record\n")
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
