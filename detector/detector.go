// Package detector scans compiled JVM artifacts (class directories, jar and
// war archives, and jars nested inside them) and reports which classes
// reference which packages.
package detector

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"go-pkgdeps-neo4j/classfile"
)

// DefaultMaxInMemory is the largest nested archive read into memory; bigger
// ones are copied to a temporary file first.
const DefaultMaxInMemory = 32 << 20

const tempPattern = "pkgdeps-*.jar"

// Detector scans artifacts. A Detector may be used for several scans, also
// concurrently; only the class cache is shared between them.
type Detector struct {
	logger      *log.Logger
	tempDir     string
	maxInMemory int64
	jobs        int
	cache       *classCache

	remove func(string) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for progress and cleanup warnings.
func WithLogger(l *log.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithTempDir sets the directory nested archives are spilled to. The
// default is os.TempDir.
func WithTempDir(dir string) Option {
	return func(d *Detector) { d.tempDir = dir }
}

// WithMaxInMemory sets the size limit for reading nested archives in memory.
// Zero or a negative value sends every nested archive through a temp file.
func WithMaxInMemory(n int64) Option {
	return func(d *Detector) { d.maxInMemory = n }
}

// WithJobs bounds how many top-level inputs ScanAll scans at once.
func WithJobs(n int) Option {
	return func(d *Detector) { d.jobs = n }
}

// WithCacheSize sets how many class results are cached by content digest.
// Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(d *Detector) { d.cache = newClassCache(n) }
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		logger:      log.Default(),
		maxInMemory: DefaultMaxInMemory,
		jobs:        1,
		cache:       newClassCache(DefaultCacheSize),
		remove:      os.Remove,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.jobs < 1 {
		d.jobs = 1
	}
	return d
}

// Scan scans path with a default Detector.
func Scan(path string) (PackageMap, error) {
	return New().Scan(path)
}

// Scan scans a directory, a .jar or .war archive, or any other file (which
// references nothing). All errors are fatal and no partial result is returned.
func (d *Detector) Scan(path string) (PackageMap, error) {
	return d.ScanAll(context.Background(), path)
}

// ScanAll scans every path into one PackageMap, up to WithJobs paths at a
// time. The first failure cancels the remaining scans.
func (d *Detector) ScanAll(ctx context.Context, paths ...string) (PackageMap, error) {
	refs := NewReferences()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs)
	for _, p := range paths {
		g.Go(func() error {
			return d.scanInto(ctx, p, refs)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.logger.Debug("scan finished", "inputs", len(paths), "packages", refs.Len(), "cached", d.cache.len())
	return refs.Snapshot(), nil
}

func (d *Detector) scanInto(ctx context.Context, path string, refs *References) error {
	s := &scan{Detector: d, ctx: ctx, refs: refs, visited: make(map[string]struct{})}
	defer s.retryRemovals()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	switch {
	case info.IsDir():
		return s.dir(path)
	case isArchive(path):
		return s.archiveFile(path)
	default:
		d.logger.Debug("ignoring input", "path", path)
		return nil
	}
}

func isArchive(name string) bool {
	return strings.HasSuffix(name, ".jar") || strings.HasSuffix(name, ".war")
}

// scan is the state of one top-level input.
type scan struct {
	*Detector
	ctx      context.Context
	refs     *References
	leftover []string            // temp files whose removal failed
	visited  map[string]struct{} // resolved directories already walked
}

// dir walks root recursively. Symlinked directories are followed; each
// resolved directory is walked once, so link cycles terminate.
func (s *scan) dir(root string) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	if _, ok := s.visited[resolved]; ok {
		return nil
	}
	s.visited[resolved] = struct{}{}

	// The trailing dot makes WalkDir descend into a symlinked root while
	// reporting paths under root.
	return filepath.WalkDir(root+string(filepath.Separator)+".", func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if err := s.ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("ignoring dangling symlink", "path", path)
				return nil
			}
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				return s.dir(path)
			}
		}
		switch {
		case strings.HasSuffix(path, ".class"):
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return s.class(path, b)
		case isArchive(path):
			return s.archiveFile(path)
		}
		return nil
	})
}

func (s *scan) archiveFile(path string) error {
	s.logger.Debug("scanning archive", "path", path)
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()
	return s.archive(path, &zr.Reader)
}

// archive visits the entries of zr in container order. name identifies the
// archive in errors, using ! to separate nesting levels.
func (s *scan) archive(name string, zr *zip.Reader) error {
	for _, f := range zr.File {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		entry := name + "!/" + f.Name
		var err error
		switch {
		case strings.HasSuffix(f.Name, ".jar"):
			err = s.nested(entry, f)
		case strings.HasSuffix(f.Name, ".class"):
			var b []byte
			if b, err = readEntry(f); err == nil {
				err = s.class(entry, b)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// nested recurses into a jar stored inside another archive, in memory when
// it is small enough and through a temporary file otherwise.
func (s *scan) nested(entry string, f *zip.File) error {
	if f.UncompressedSize64 > uint64(max(s.maxInMemory, 0)) {
		return s.spill(entry, f)
	}
	s.logger.Debug("scanning nested archive", "entry", entry, "size", f.UncompressedSize64)
	b, err := readEntry(f)
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return fmt.Errorf("open nested archive %s: %w", entry, err)
	}
	return s.archive(entry, zr)
}

func (s *scan) spill(entry string, f *zip.File) error {
	tmp, err := os.CreateTemp(s.tempDir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", entry, err)
	}
	defer s.release(tmp)
	s.logger.Debug("spilling nested archive", "entry", entry, "size", f.UncompressedSize64, "file", tmp.Name())

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry, err)
	}
	n, err := io.Copy(tmp, rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", entry, tmp.Name(), err)
	}

	zr, err := zip.NewReader(tmp, n)
	if err != nil {
		return fmt.Errorf("open nested archive %s: %w", entry, err)
	}
	return s.archive(entry, zr)
}

// release closes and removes a temp file. Removal failures are logged and
// retried once the top-level scan is over.
func (s *scan) release(tmp *os.File) {
	tmp.Close()
	if err := s.remove(tmp.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("could not remove temp file, retrying later", "file", tmp.Name(), "err", err)
		s.leftover = append(s.leftover, tmp.Name())
	}
}

func (s *scan) retryRemovals() {
	for _, name := range s.leftover {
		if err := s.remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("temp file left behind", "file", name, "err", err)
		}
	}
	s.leftover = nil
}

// class parses one class file and merges its references. Identical class
// files are parsed once per Detector.
func (s *scan) class(name string, b []byte) error {
	key := digestOf(b)
	if r, ok := s.cache.get(key); ok {
		s.logger.Debug("class cache hit", "entry", name, "class", r.Class)
		s.refs.AddClass(r.Class, r.Packages)
		return nil
	}

	c := newCollector()
	if err := classfile.ParseBytes(b, c.visit); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	r := c.result()
	s.refs.AddClass(r.Class, r.Packages)
	s.cache.add(key, r)
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return b, nil
}
