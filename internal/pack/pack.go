// Package pack turns a populated release tree into a zip archive.
//
// The tree handed to Build already holds images/{split}/ and labels/{split}/.
// Build adds the metadata files and README, then zips the tree with sorted
// entries and a fixed timestamp so identical trees produce identical archives.
// The archive is written to a hidden temporary file and renamed into place;
// a failed build leaves nothing at the final path.
package pack

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// Tree locations written by Build.
const (
	ReleaseConfigFile     = "metadata/release_config.yaml"
	DatasetStatsFile      = "metadata/dataset_stats.json"
	TransformationLogFile = "metadata/transformation_log.json"
	ReadmeFile            = "README.txt"
)

// Metadata is the content Build writes next to images and labels.
type Metadata struct {
	// ReleaseConfig is marshaled as YAML.
	ReleaseConfig interface{}
	// DatasetStats and TransformationLog are marshaled as indented JSON.
	DatasetStats      interface{}
	TransformationLog interface{}
	Readme            string
}

// Archive describes a finished package.
type Archive struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Entries int    `json:"entries"`
}

// Builder writes archives into an output directory.
type Builder struct {
	outputDir string
	modTime   time.Time
}

// Option customizes a Builder.
type Option func(*Builder)

// WithModTime overrides the timestamp stamped on every zip entry.
func WithModTime(t time.Time) Option {
	return func(b *Builder) { b.modTime = t }
}

// NewBuilder returns a builder writing to outputDir.
func NewBuilder(outputDir string, opts ...Option) *Builder {
	b := &Builder{
		outputDir: outputDir,
		modTime:   time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// OutputDir returns the directory archives are written to.
func (b *Builder) OutputDir() string { return b.outputDir }

// ArchiveName returns "<slug(name)>_<releaseID>.zip".
func ArchiveName(name, releaseID string) string {
	return Slug(name) + "_" + releaseID + ".zip"
}

// Slug lowercases s and replaces every run of characters outside [a-z0-9]
// with a single hyphen.
func Slug(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "release"
	}
	return out
}

// Build writes meta into treeDir and zips the tree to
// <output>/<slug(name)>_<releaseID>.zip.
func (b *Builder) Build(ctx context.Context, treeDir, name, releaseID string, meta Metadata) (*Archive, error) {
	if releaseID == "" {
		return nil, apperr.Packaging("pack.Build", fmt.Errorf("empty release id"))
	}
	if err := writeMetadata(treeDir, meta); err != nil {
		return nil, apperr.Packaging("pack.Build", err)
	}

	files, err := listFiles(treeDir)
	if err != nil {
		return nil, apperr.Packaging("pack.Build", err)
	}

	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return nil, apperr.Packaging("pack.Build", err)
	}
	final := filepath.Join(b.outputDir, ArchiveName(name, releaseID))
	tmp := filepath.Join(b.outputDir, "."+ArchiveName(name, releaseID)+".tmp")

	if err := b.writeZip(ctx, tmp, treeDir, files); err != nil {
		os.Remove(tmp)
		return nil, apperr.Packaging("pack.Build", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return nil, apperr.Packaging("pack.Build", err)
	}

	info, err := os.Stat(final)
	if err != nil {
		return nil, apperr.Packaging("pack.Build", err)
	}
	return &Archive{Path: final, Size: info.Size(), Entries: len(files)}, nil
}

func writeMetadata(dir string, meta Metadata) error {
	cfg, err := yaml.Marshal(meta.ReleaseConfig)
	if err != nil {
		return fmt.Errorf("failed to encode release config: %w", err)
	}
	stats, err := json.MarshalIndent(meta.DatasetStats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset stats: %w", err)
	}
	tlog, err := json.MarshalIndent(meta.TransformationLog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transformation log: %w", err)
	}

	for rel, data := range map[string][]byte{
		ReleaseConfigFile:     cfg,
		DatasetStatsFile:      stats,
		TransformationLogFile: tlog,
		ReadmeFile:            []byte(meta.Readme),
	} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// listFiles returns every regular file below dir as sorted slash paths.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (b *Builder) writeZip(ctx context.Context, dst, root string, files []string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			f.Close()
			return err
		}
		if err := b.addFile(zw, root, rel); err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *Builder) addFile(zw *zip.Writer, root, rel string) error {
	src, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer src.Close()

	hdr := &zip.FileHeader{Name: rel, Method: zip.Deflate, Modified: b.modTime}
	hdr.SetMode(0o644)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
