package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// ManifestFile is the manifest name inside a collection directory.
const ManifestFile = "collection.yaml"

// Split is a dataset partition.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Splits lists the valid splits in package order.
var Splits = []Split{SplitTrain, SplitVal, SplitTest}

// ParseSplit validates s. Empty means train.
func ParseSplit(s string) (Split, error) {
	switch Split(strings.ToLower(strings.TrimSpace(s))) {
	case "", SplitTrain:
		return SplitTrain, nil
	case SplitVal, "valid", "validation":
		return SplitVal, nil
	case SplitTest:
		return SplitTest, nil
	}
	return "", fmt.Errorf("invalid split %q (must be train, val or test)", s)
}

// ImageEntry is one image listed in a manifest.
type ImageEntry struct {
	ID          string                  `yaml:"id" json:"id"`
	File        string                  `yaml:"file" json:"file"`
	Split       string                  `yaml:"split" json:"split"`
	Width       int                     `yaml:"width" json:"width"`
	Height      int                     `yaml:"height" json:"height"`
	Annotations []annotation.Annotation `yaml:"annotations" json:"annotations"`
}

// Collection is a named group of annotated images. Dir is the directory that
// relative file paths are resolved against.
type Collection struct {
	ID     string       `yaml:"id" json:"id"`
	Name   string       `yaml:"name" json:"name"`
	Dir    string       `yaml:"-" json:"-"`
	Images []ImageEntry `yaml:"images" json:"images"`
}

// Source resolves collections by id.
type Source interface {
	Collection(ctx context.Context, id string) (*Collection, error)
}

// DirSource reads collections from a directory tree.
type DirSource struct {
	root string
}

// NewDirSource returns a source rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// Root returns the source directory.
func (s *DirSource) Root() string { return s.root }

// Collection loads <root>/<id>/collection.yaml. Unknown ids and malformed
// manifests are data errors.
func (s *DirSource) Collection(ctx context.Context, id string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, apperr.Data("dataset.Collection", "invalid collection id %q", id)
	}

	dir := filepath.Join(s.root, id)
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Data("dataset.Collection", "collection %q not found", id)
		}
		return nil, apperr.IO("dataset.Collection", err)
	}

	var c Collection
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, apperr.Data("dataset.Collection", "collection %q: invalid manifest: %v", id, err)
	}
	c.ID = id
	c.Dir = dir
	if c.Name == "" {
		c.Name = id
	}
	return &c, nil
}

// MemorySource serves collections held in memory. Used by tests and by
// callers that build manifests programmatically.
type MemorySource map[string]*Collection

// Collection returns a copy of the stored collection.
func (m MemorySource) Collection(ctx context.Context, id string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := m[id]
	if !ok {
		return nil, apperr.Data("dataset.Collection", "collection %q not found", id)
	}
	cp := *c
	cp.ID = id
	if cp.Name == "" {
		cp.Name = id
	}
	cp.Images = append([]ImageEntry(nil), c.Images...)
	return &cp, nil
}
