// Package workspace turns files on disk into documents ready for indexing.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	"github.com/Aman-CERP/codesnip/internal/document"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

// DefaultMaxFileSize is used when Options.MaxFileSize is not positive.
const DefaultMaxFileSize = 1 << 20

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// ErrSkipped is returned by LoadFile for files the loader never indexes:
// excluded, binary, too large or of an unknown language.
var ErrSkipped = errors.New("file skipped")

// Options configures a Loader.
type Options struct {
	// Root is the workspace directory.
	Root string
	// Exclude holds gitignore-style patterns.
	Exclude []string
	// Extensions restricts loading to these extensions. Empty means every
	// extension the language registry knows.
	Extensions []string
	// MaxFileSize skips larger files, in bytes.
	MaxFileSize int64
	// RespectGitignore also applies .gitignore files found while walking.
	RespectGitignore bool
	// Workers bounds concurrent reads. Zero means GOMAXPROCS.
	Workers int
	// Registry detects languages. Nil means chunk.DefaultRegistry().
	Registry *chunk.LanguageRegistry
	Logger   *slog.Logger
}

// Loader reads workspace files into documents.
type Loader struct {
	root       string
	ignore     *Ignore
	extensions map[string]bool
	maxSize    int64
	gitignore  bool
	workers    int
	registry   *chunk.LanguageRegistry
	logger     *slog.Logger

	mu       sync.Mutex
	versions map[string]int

	// ignoreFiles records the nested .gitignore files already added.
	ignoreFiles map[string]bool
}

// NewLoader validates opts and resolves the root directory.
func NewLoader(opts Options) (*Loader, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeInvalidPath, "resolve workspace root", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, cserrors.IOError("workspace root not found", err).WithDetail("path", root)
	}
	if !info.IsDir() {
		return nil, cserrors.New(cserrors.ErrCodeInvalidPath, "workspace root is not a directory", nil).
			WithDetail("path", root)
	}

	l := &Loader{
		root:      root,
		ignore:    NewIgnore(opts.Exclude...),
		maxSize:   opts.MaxFileSize,
		gitignore: opts.RespectGitignore,
		workers:   opts.Workers,
		registry:  opts.Registry,
		logger:    opts.Logger,
		versions:  make(map[string]int),

		ignoreFiles: make(map[string]bool),
	}
	if l.maxSize <= 0 {
		l.maxSize = DefaultMaxFileSize
	}
	if l.workers <= 0 {
		l.workers = runtime.GOMAXPROCS(0)
	}
	if l.registry == nil {
		l.registry = chunk.DefaultRegistry()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("component", "workspace")
	if len(opts.Extensions) > 0 {
		l.extensions = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			l.extensions[ext] = true
		}
	}
	if l.gitignore {
		if err := l.ignore.AddFile(filepath.Join(root, ".gitignore"), ""); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("gitignore_unreadable", slog.String("error", err.Error()))
		}
	}
	return l, nil
}

// Root returns the absolute workspace directory.
func (l *Loader) Root() string {
	return l.root
}

// Load walks the workspace and returns a document for every indexable file,
// ordered by path. Unreadable files are logged and skipped.
func (l *Loader) Load(ctx context.Context) ([]*document.Document, error) {
	paths, err := l.walk(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*document.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := l.read(p)
			if err != nil {
				if !errors.Is(err, ErrSkipped) {
					l.logger.Warn("workspace_file_skipped",
						slog.String("path", p),
						slog.String("error", err.Error()))
				}
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs = slices.DeleteFunc(docs, func(d *document.Document) bool { return d == nil })
	l.logger.Debug("workspace_loaded",
		slog.String("root", l.root),
		slog.Int("candidates", len(paths)),
		slog.Int("documents", len(docs)))
	return docs, nil
}

func (l *Loader) walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		rel, relErr := l.rel(p)
		if relErr != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if l.ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			if l.gitignore {
				l.addNestedIgnore(p, rel)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if l.accepts(rel) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ShouldSkip reports whether a path is excluded or not of a loadable type.
// Paths outside the workspace are always skipped.
func (l *Loader) ShouldSkip(path string, isDir bool) bool {
	rel, err := l.rel(path)
	if err != nil {
		return true
	}
	if rel == "." {
		return false
	}
	if isDir {
		return l.ignore.Match(rel, true)
	}
	return !l.accepts(rel)
}

func (l *Loader) accepts(rel string) bool {
	if l.ignore.Match(rel, false) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if l.extensions != nil {
		return l.extensions[ext]
	}
	_, known := l.registry.GetByExtension(ext)
	return known
}

// LoadFile reads a single workspace file. Each successful load of the same
// path gets the next version number.
func (l *Loader) LoadFile(ctx context.Context, path string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(l.root, path)
	}
	if l.ShouldSkip(abs, false) {
		return nil, ErrSkipped
	}
	return l.read(abs)
}

func (l *Loader) read(path string) (*document.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cserrors.IOError("file not found", err).WithDetail("path", path)
		}
		return nil, cserrors.New(cserrors.ErrCodeFilePermission, "stat file", err).WithDetail("path", path)
	}
	if info.IsDir() {
		return nil, ErrSkipped
	}
	if info.Size() > l.maxSize {
		return nil, ErrSkipped
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeFilePermission, "read file", err).WithDetail("path", path)
	}
	if isBinary(data) {
		return nil, ErrSkipped
	}

	return document.New(URIFromPath(path), l.registry.DetectLanguage(path), l.nextVersion(path), string(data)), nil
}

func (l *Loader) addNestedIgnore(dir, rel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ignoreFiles[rel] {
		return
	}
	l.ignoreFiles[rel] = true
	_ = l.ignore.AddFile(filepath.Join(dir, ".gitignore"), rel)
}

func (l *Loader) nextVersion(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.versions[path]++
	return l.versions[path]
}

func (l *Loader) rel(path string) (string, error) {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("outside workspace")
	}
	return filepath.ToSlash(rel), nil
}

func isBinary(data []byte) bool {
	head := data[:min(len(data), binarySniffLen)]
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(data)
}

// URIFromPath returns the file:// URI of an absolute path.
func URIFromPath(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// PathFromURI returns the filesystem path of a file:// URI.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", cserrors.New(cserrors.ErrCodeInvalidPath, "parse document uri", err).WithDetail("uri", uri)
	}
	if u.Scheme != "file" {
		return "", cserrors.New(cserrors.ErrCodeInvalidPath, "document uri is not a file uri", nil).WithDetail("uri", uri)
	}
	return filepath.FromSlash(u.Path), nil
}
