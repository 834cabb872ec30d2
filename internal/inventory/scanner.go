// Package inventory lists the physical entries of a target directory that
// the collector manages, independent of what the fingerprint records say.
package inventory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// Category classifies an entry by where it lives.
type Category string

const (
	CategoryFingerprint Category = "fingerprint"
	CategoryDeps        Category = "deps"
	CategoryBuild       Category = "build"
	// CategoryRoot is a file at the top of an area, usually an uplifted
	// copy of a final artifact.
	CategoryRoot Category = "root"
	// CategoryUnsupported is a whole subtree that is never swept.
	CategoryUnsupported Category = "unsupported"
)

const (
	cargoLock      = ".cargo-lock"
	incrementalDir = "incremental"
	examplesDir    = "examples"
	docDir         = "doc"
)

// Entry is one inventoried path.
type Entry struct {
	Path     string   `json:"path" yaml:"path"`
	Area     string   `json:"area" yaml:"area"`
	Name     string   `json:"-" yaml:"-"`
	Category Category `json:"category" yaml:"category"`
	IsDir    bool     `json:"is_dir,omitempty" yaml:"is_dir,omitempty"`
	Size     int64    `json:"size" yaml:"size"`
}

// Inventory is the frozen listing of one scan.
type Inventory struct {
	Entries []Entry
	// Vanished counts entries that disappeared between listing and sizing.
	Vanished int
}

// Scanner enumerates and sizes managed entries.
type Scanner struct {
	fs     fsops.FS
	logger *zap.Logger
	jobs   int
}

// NewScanner creates a Scanner sizing at most jobs entries at once.
func NewScanner(fs fsops.FS, logger *zap.Logger, jobs int) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs < 1 {
		jobs = 1
	}
	return &Scanner{fs: fs, logger: logger, jobs: jobs}
}

// Scan inventories the given areas of targetDir. Unsupported subtrees are
// reported as single entries and never descended into.
func (s *Scanner) Scan(ctx context.Context, targetDir string, areas []fingerprint.Area) (*Inventory, error) {
	var entries []Entry

	docs := []string{filepath.Join(targetDir, docDir)}
	seenTriple := make(map[string]bool)
	for _, area := range areas {
		if area.Triple != "" && !seenTriple[area.Triple] {
			seenTriple[area.Triple] = true
			docs = append(docs, filepath.Join(targetDir, area.Triple, docDir))
		}
	}
	for _, d := range docs {
		e, ok, err := s.single(d, "", CategoryUnsupported)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}

	for _, area := range areas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := s.scanArea(area)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}

	inv := &Inventory{}
	sized := make([]bool, len(entries))
	var vanished atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)
	for i := range entries {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			size, err := s.fs.Size(entries[i].Path)
			if err != nil {
				if fsops.IsVanished(err) {
					s.logger.Warn("entry vanished while sizing", zap.String("path", entries[i].Path))
					vanished.Add(1)
					return nil
				}
				return fmt.Errorf("failed to size %s: %w", entries[i].Path, err)
			}
			entries[i].Size = size
			sized[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, e := range entries {
		if sized[i] {
			inv.Entries = append(inv.Entries, e)
		}
	}
	sort.Slice(inv.Entries, func(i, j int) bool { return inv.Entries[i].Path < inv.Entries[j].Path })
	inv.Vanished = int(vanished.Load())

	s.logger.Debug("inventory complete",
		zap.Int("areas", len(areas)), zap.Int("entries", len(inv.Entries)), zap.Int("vanished", inv.Vanished))
	return inv, nil
}

func (s *Scanner) scanArea(area fingerprint.Area) ([]Entry, error) {
	var entries []Entry

	for _, sub := range []struct {
		dir string
		cat Category
	}{
		{fingerprint.FingerprintDir, CategoryFingerprint},
		{fingerprint.DepsDir, CategoryDeps},
		{fingerprint.BuildDir, CategoryBuild},
	} {
		found, err := s.list(area, filepath.Join(area.Dir, sub.dir), sub.cat, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}

	for _, name := range []string{incrementalDir, examplesDir} {
		e, ok, err := s.single(filepath.Join(area.Dir, name), area.Name, CategoryUnsupported)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}

	root, err := s.list(area, area.Dir, CategoryRoot, true)
	if err != nil {
		return nil, err
	}
	return append(entries, root...), nil
}

// list returns the children of dir. With filesOnly, directories and the
// build lock are left out.
func (s *Scanner) list(area fingerprint.Area, dir string, cat Category, filesOnly bool) ([]Entry, error) {
	children, err := s.fs.ReadDir(dir)
	if err != nil {
		if fsops.IsVanished(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var entries []Entry
	for _, c := range children {
		if filesOnly && (c.IsDir() || c.Name() == cargoLock) {
			continue
		}
		entries = append(entries, Entry{
			Path:     filepath.Join(dir, c.Name()),
			Area:     area.Name,
			Name:     c.Name(),
			Category: cat,
			IsDir:    c.IsDir(),
		})
	}
	return entries, nil
}

func (s *Scanner) single(path, area string, cat Category) (Entry, bool, error) {
	info, err := s.fs.Lstat(path)
	if err != nil {
		if fsops.IsVanished(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return Entry{
		Path:     path,
		Area:     area,
		Name:     filepath.Base(path),
		Category: cat,
		IsDir:    info.IsDir(),
	}, true, nil
}

// Bytes sums entry sizes.
func Bytes(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
