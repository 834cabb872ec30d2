package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/hash"
)

const (
	// DepsDir holds compiler outputs.
	DepsDir = "deps"
	// BuildDir holds build script directories.
	BuildDir = "build"

	invokedTimestamp = "invoked.timestamp"
	outputPrefix     = "output-"
	companionPrefix  = "dep-"
	metadataExt      = ".json"
)

var errRecordVanished = errors.New("record vanished")

// Reader loads a Store from a target directory.
type Reader struct {
	fs     fsops.FS
	logger *zap.Logger
	jobs   int
}

// NewReader creates a Reader. jobs bounds how many records are read at once.
func NewReader(fs fsops.FS, logger *zap.Logger, jobs int) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs < 1 {
		jobs = 1
	}
	return &Reader{fs: fs, logger: logger, jobs: jobs}
}

type recordJob struct {
	area Area
	name string
}

type makefileJob struct {
	area Area
	path string
	hash string
}

// Read discovers every area of targetDir and loads all their records.
// Malformed records are kept and flagged unparseable; only a layout that is
// not a target directory at all fails with a FormatError.
func (r *Reader) Read(ctx context.Context, targetDir string) (*Store, error) {
	areas, err := DiscoverAreas(r.fs, targetDir)
	if err != nil {
		return nil, err
	}

	var jobs []recordJob
	for _, area := range areas {
		names, err := r.recordNames(area)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			jobs = append(jobs, recordJob{area: area, name: n})
		}
	}

	records := make([]*Record, len(jobs))
	var (
		mu       sync.Mutex
		vanished int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := r.loadRecord(job.area, job.name)
			if errors.Is(err, errRecordVanished) {
				r.logger.Warn("fingerprint record vanished while reading",
					zap.String("area", job.area.Name), zap.String("record", job.name))
				mu.Lock()
				vanished++
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read fingerprint records: %w", err)
	}

	var loaded []*Record
	for _, rec := range records {
		if rec != nil {
			loaded = append(loaded, rec)
		}
	}

	if err := r.attachMakefiles(ctx, targetDir, areas, loaded); err != nil {
		return nil, err
	}

	store := NewStore(targetDir, areas, loaded)
	store.vanished = vanished
	for _, u := range store.Unparseable() {
		r.logger.Warn("unparseable fingerprint record",
			zap.String("key", u.Key), zap.String("reason", u.Reason), zap.Bool("opaque", u.Opaque))
	}
	r.logger.Debug("fingerprint store loaded",
		zap.Int("areas", len(areas)), zap.Int("records", store.Len()),
		zap.Int("unparseable", len(store.Unparseable())), zap.Int("vanished", vanished))
	return store, nil
}

// recordNames lists the record directories of an area. A non-empty
// .fingerprint without a single recognizable record is a format error.
func (r *Reader) recordNames(area Area) ([]string, error) {
	entries, err := r.fs.ReadDir(area.FingerprintPath())
	if err != nil {
		if fsops.IsVanished(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", area.FingerprintPath(), err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := hash.SplitName(e.Name()); ok && n.Ext == "" {
			names = append(names, e.Name())
		}
	}
	if len(entries) > 0 && len(names) == 0 {
		return nil, formatErrorf(area.FingerprintPath(), "no entry is named <package>-<hash>")
	}
	return names, nil
}

// unitFiles groups the files of a record directory by unit.
type unitFiles struct {
	hashFile  bool
	metadata  bool
	companion bool
}

func (r *Reader) loadRecord(area Area, name string) (*Record, error) {
	dir := filepath.Join(area.FingerprintPath(), name)
	n, _ := hash.SplitName(name)
	rec := &Record{
		Key:     Key(area.Name, name),
		Area:    area.Name,
		Name:    name,
		Package: n.Stem,
		Hash:    n.Hash,
		Dir:     dir,
	}

	entries, err := r.fs.ReadDir(dir)
	if err != nil {
		if fsops.IsVanished(err) {
			return nil, errRecordVanished
		}
		return nil, fmt.Errorf("failed to list record %s: %w", dir, err)
	}

	units := make(map[string]*unitFiles)
	unit := func(n string) *unitFiles {
		if units[n] == nil {
			units[n] = &unitFiles{}
		}
		return units[n]
	}
	var unknown []string
	for _, e := range entries {
		fname := e.Name()
		switch {
		case e.IsDir():
			unknown = append(unknown, fname)
		case fname == invokedTimestamp || strings.HasPrefix(fname, outputPrefix):
		case strings.HasPrefix(fname, companionPrefix):
			unit(strings.TrimPrefix(fname, companionPrefix)).companion = true
		case strings.HasSuffix(fname, metadataExt):
			unit(strings.TrimSuffix(fname, metadataExt)).metadata = true
		default:
			unit(fname).hashFile = true
		}
	}

	var reasons []string
	if len(units) == 0 {
		if len(unknown) == 0 {
			rec.markUnparseable("empty record directory", false)
			return rec, nil
		}
		rec.markUnparseable(fmt.Sprintf("unrecognized entries: %s", strings.Join(unknown, ", ")), true)
		return rec, nil
	}
	if len(unknown) > 0 {
		reasons = append(reasons, fmt.Sprintf("unrecognized entries: %s", strings.Join(unknown, ", ")))
	}

	unitNames := make([]string, 0, len(units))
	for u := range units {
		unitNames = append(unitNames, u)
	}
	sort.Strings(unitNames)

	opaque := false
	allUnsupported := true
	for _, uname := range unitNames {
		files := units[uname]
		parsed, ok := ParseUnitName(uname)
		if !ok {
			reasons = append(reasons, fmt.Sprintf("unrecognized unit %q", uname))
			opaque = true
			allUnsupported = false
			continue
		}
		if !parsed.Unsupported() {
			allUnsupported = false
		}

		u := Unit{Name: parsed}
		if files.hashFile {
			if h, err := r.readHashFile(filepath.Join(dir, uname)); err != nil {
				reasons = append(reasons, fmt.Sprintf("%s: %v", uname, err))
			} else {
				u.Hash = h
			}
		} else {
			reasons = append(reasons, fmt.Sprintf("%s: missing unit hash file", uname))
		}

		metaOK := false
		if files.metadata {
			meta, err := r.readMetadata(filepath.Join(dir, uname+metadataExt))
			if err != nil {
				reasons = append(reasons, fmt.Sprintf("%s%s: %v", uname, metadataExt, err))
			} else {
				metaOK = true
				u.Metadata = meta
				for _, d := range meta.Deps {
					rec.UnitRefs = append(rec.UnitRefs, hash.FromU64(d.Fingerprint))
				}
			}
		} else {
			reasons = append(reasons, fmt.Sprintf("%s: missing %s file", uname, metadataExt))
		}

		if files.companion {
			info, err := r.readCompanion(filepath.Join(dir, companionPrefix+uname))
			if err != nil {
				reasons = append(reasons, fmt.Sprintf("%s%s: %v", companionPrefix, uname, err))
			} else {
				for _, f := range info.Files {
					if f.Kind != TargetRelative {
						continue
					}
					if ref, ok := artifactRef(f.Path); ok {
						rec.ArtifactRefs = append(rec.ArtifactRefs, ref)
					}
				}
			}
		}

		// Upstream units are only named in the metadata; without it the
		// record's edges are unknown.
		if !metaOK {
			opaque = true
		}
		rec.Units = append(rec.Units, u)
	}

	rec.Unsupported = allUnsupported
	if len(reasons) > 0 {
		rec.markUnparseable(strings.Join(reasons, "; "), opaque)
	}
	return rec, nil
}

func (rec *Record) markUnparseable(reason string, opaque bool) {
	rec.Unparseable = true
	rec.Reason = reason
	rec.Opaque = opaque
}

func (r *Reader) readHashFile(path string) (string, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return "", readErr(err)
	}
	return hash.ParseHex(string(data))
}

func (r *Reader) readMetadata(path string) (*Metadata, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, readErr(err)
	}
	return ParseMetadata(data)
}

func (r *Reader) readCompanion(path string) (*DepInfo, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, readErr(err)
	}
	return ParseDepInfo(data)
}

func readErr(err error) error {
	if fsops.IsVanished(err) {
		return fmt.Errorf("vanished while reading")
	}
	return err
}

// attachMakefiles reads deps/<crate>-<hash>.d of every area and records
// their rule targets as outputs of the records sharing the hash.
func (r *Reader) attachMakefiles(ctx context.Context, targetDir string, areas []Area, records []*Record) error {
	owners := make(map[string]map[string][]*Record)
	for _, rec := range records {
		if owners[rec.Area] == nil {
			owners[rec.Area] = make(map[string][]*Record)
		}
		owners[rec.Area][rec.Hash] = append(owners[rec.Area][rec.Hash], rec)
	}

	var jobs []makefileJob
	for _, area := range areas {
		depsDir := filepath.Join(area.Dir, DepsDir)
		entries, err := r.fs.ReadDir(depsDir)
		if err != nil {
			if fsops.IsVanished(err) {
				continue
			}
			return fmt.Errorf("failed to list %s: %w", depsDir, err)
		}
		for _, e := range entries {
			n, ok := hash.SplitName(e.Name())
			if !ok || n.Ext != ".d" || e.IsDir() {
				continue
			}
			if len(owners[area.Name][n.Hash]) == 0 {
				continue
			}
			jobs = append(jobs, makefileJob{area: area, path: filepath.Join(depsDir, e.Name()), hash: n.Hash})
		}
	}

	rules := make([][]MakeRule, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := r.fs.ReadFile(job.path)
			if err != nil {
				if fsops.IsVanished(err) {
					return nil
				}
				return fmt.Errorf("failed to read %s: %w", job.path, err)
			}
			rules[i] = ParseMakefileDeps(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, job := range jobs {
		for _, rule := range rules[i] {
			// Source files appear as targets of empty rules; only rules
			// with prerequisites name real outputs.
			if len(rule.Prereqs) == 0 {
				continue
			}
			var outputs []string
			for _, t := range rule.Targets {
				if filepath.IsAbs(t) {
					outputs = append(outputs, filepath.Clean(t))
				}
			}
			var refs []ArtifactRef
			for _, p := range rule.Prereqs {
				if !filepath.IsAbs(p) {
					continue
				}
				if ref, ok := artifactRefFromPath(targetDir, p); ok && ref.Hash != job.hash {
					refs = append(refs, ref)
				}
			}
			for _, rec := range owners[job.area.Name][job.hash] {
				rec.Outputs = append(rec.Outputs, outputs...)
				rec.ArtifactRefs = append(rec.ArtifactRefs, refs...)
			}
		}
	}

	for _, rec := range records {
		sort.Strings(rec.Outputs)
		rec.Outputs = compact(rec.Outputs)
	}
	return nil
}

func artifactRefFromPath(targetDir, path string) (ArtifactRef, bool) {
	rel, err := filepath.Rel(targetDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ArtifactRef{}, false
	}
	return artifactRef(filepath.ToSlash(rel))
}

func compact(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
