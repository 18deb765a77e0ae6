package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
	"github.com/ironsheep/image-release-tools/internal/logging"
)

// Record is one source image selected for a release.
type Record struct {
	ID string `json:"id"`
	// Filename is unique across the release; OriginalFilename is the manifest name.
	Filename         string                  `json:"filename"`
	OriginalFilename string                  `json:"original_filename"`
	Path             string                  `json:"path"`
	CollectionID     string                  `json:"collection_id"`
	Collection       string                  `json:"collection"`
	Split            Split                   `json:"split"`
	Width            int                     `json:"width"`
	Height           int                     `json:"height"`
	Annotations      []annotation.Annotation `json:"annotations"`
}

// Result is the output of Collect.
type Result struct {
	Records       []Record       `json:"records"`
	PerCollection map[string]int `json:"per_collection"`
	PerSplit      map[Split]int  `json:"per_split"`
	// Skipped counts images missing on disk.
	Skipped int `json:"skipped"`
}

// Collector merges collections from a Source.
type Collector struct {
	source Source
	log    *slog.Logger
}

// NewCollector returns a collector over source.
func NewCollector(source Source) *Collector {
	return &Collector{source: source, log: logging.L()}
}

// Collect loads the collections named by ids and keeps the images whose split
// is in splits (all splits when splits is empty).
//
// Unknown collections, invalid splits and an empty selection are data errors.
// Files missing on disk are skipped with a warning and counted.
func (c *Collector) Collect(ctx context.Context, ids []string, splits []string) (*Result, error) {
	if len(ids) == 0 {
		return nil, apperr.Data("dataset.Collect", "no collections selected")
	}
	allowed, err := splitFilter(splits)
	if err != nil {
		return nil, err
	}

	// Sorted and de-duplicated so the output does not depend on request order.
	uniq := make(map[string]bool)
	var sorted []string
	for _, id := range ids {
		if !uniq[id] {
			uniq[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Strings(sorted)

	res := &Result{PerCollection: make(map[string]int), PerSplit: make(map[Split]int)}
	for _, id := range sorted {
		col, err := c.source.Collection(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(col.Images) == 0 {
			return nil, apperr.Data("dataset.Collect", "collection %q has no images", id)
		}
		res.PerCollection[col.ID] = 0

		for i, entry := range col.Images {
			split, err := ParseSplit(entry.Split)
			if err != nil {
				return nil, apperr.Data("dataset.Collect", "collection %q image %d: %v", id, i, err)
			}
			if !allowed[split] {
				continue
			}
			if entry.File == "" {
				return nil, apperr.Data("dataset.Collect", "collection %q image %d has no file", id, i)
			}

			path := entry.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(col.Dir, path)
			}
			if _, err := os.Stat(path); err != nil {
				c.log.Warn("skipping missing source image", "collection", id, "file", entry.File, "error", err)
				res.Skipped++
				continue
			}

			width, height := entry.Width, entry.Height
			if width <= 0 || height <= 0 {
				if width, height, err = pix.ReadDimensions(path); err != nil {
					c.log.Debug("image size unknown until decode", "file", entry.File, "error", err)
				}
			}

			for j, a := range entry.Annotations {
				if err := a.Validate(); err != nil {
					return nil, apperr.Data("dataset.Collect",
						"collection %q file %s annotation %d: %v", id, entry.File, j, err)
				}
			}

			imageID := entry.ID
			if imageID == "" {
				imageID = strings.TrimSuffix(filepath.Base(entry.File), filepath.Ext(entry.File))
			}
			res.Records = append(res.Records, Record{
				ID:               col.ID + "/" + imageID,
				Filename:         filepath.Base(entry.File),
				OriginalFilename: filepath.Base(entry.File),
				Path:             path,
				CollectionID:     col.ID,
				Collection:       col.Name,
				Split:            split,
				Width:            width,
				Height:           height,
				Annotations:      entry.Annotations,
			})
			res.PerCollection[col.ID]++
			res.PerSplit[split]++
		}
	}

	if len(res.Records) == 0 {
		return nil, apperr.Data("dataset.Collect", "no images selected from %v (skipped %d missing)", sorted, res.Skipped)
	}
	Disambiguate(res.Records)

	c.log.Info("collected source images",
		"collections", len(sorted), "images", len(res.Records), "skipped", res.Skipped)
	return res, nil
}

func splitFilter(splits []string) (map[Split]bool, error) {
	allowed := make(map[Split]bool)
	if len(splits) == 0 {
		for _, s := range Splits {
			allowed[s] = true
		}
		return allowed, nil
	}
	for _, raw := range splits {
		if strings.TrimSpace(raw) == "" {
			return nil, apperr.Data("dataset.Collect", "empty split in filter")
		}
		s, err := ParseSplit(raw)
		if err != nil {
			return nil, apperr.Data("dataset.Collect", "%v", err)
		}
		allowed[s] = true
	}
	return allowed, nil
}

// Disambiguate makes Filename unique across records, in place. Names are
// compared by lowercased stem because label files drop the extension:
// "cat.jpg" and "cat.png" collide.
//
// When the same stem appears in more than one collection every one of those
// records becomes "{collection}_{name}". Anything still colliding after that
// (for example a stem repeated inside one collection) gets a numeric suffix
// "_{n}" before the extension, assigned in record order.
func Disambiguate(records []Record) {
	owners := make(map[string]map[string]bool)
	for _, r := range records {
		key := stemKey(r.Filename)
		if owners[key] == nil {
			owners[key] = make(map[string]bool)
		}
		owners[key][r.Collection] = true
	}
	for i := range records {
		if len(owners[stemKey(records[i].Filename)]) > 1 {
			records[i].Filename = slug(records[i].Collection) + "_" + records[i].Filename
		}
	}

	taken := make(map[string]bool)
	for _, r := range records {
		taken[stemKey(r.Filename)] = true
	}
	seen := make(map[string]bool)
	for i := range records {
		name := records[i].Filename
		if !seen[stemKey(name)] {
			seen[stemKey(name)] = true
			continue
		}
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
			key := stemKey(candidate)
			if taken[key] || seen[key] {
				continue
			}
			seen[key] = true
			records[i].Filename = candidate
			break
		}
	}
}

func stemKey(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "collection"
	}
	return b.String()
}
