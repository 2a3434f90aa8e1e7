// Package filesystem reads documents from a local directory tree and
// watches it for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/logger"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers"
)

// Type is the source type identifier.
const Type = "filesystem"

// DefaultMaxFileSize skips files larger than 10 MiB.
const DefaultMaxFileSize = 10 << 20

// Ensure Connector implements the interface.
var _ driven.WatchableSource = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithExtensions restricts the connector to files with these extensions.
func WithExtensions(exts ...string) Option {
	return func(c *Connector) {
		for _, e := range exts {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			c.extensions = append(c.extensions, strings.ToLower(e))
		}
	}
}

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) { c.maxFileSize = n }
}

// Connector reads files under a root directory. Hidden files and
// directories are skipped. Document IDs are slash-separated paths relative
// to the root, so the same tree ingests to the same IDs on any machine.
type Connector struct {
	rootPath    string
	extensions  []string
	maxFileSize int64

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// New creates a connector rooted at rootPath. A single file is also
// accepted as the root.
func New(rootPath string, opts ...Option) *Connector {
	c := &Connector{rootPath: filepath.Clean(rootPath), maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks the root exists and is readable.
func (c *Connector) Validate(_ context.Context) error {
	info, err := os.Stat(c.rootPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("path %s does not exist: %w", c.rootPath, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.rootPath, err)
	}
	if info.IsDir() {
		if _, err := os.ReadDir(c.rootPath); err != nil {
			return fmt.Errorf("read %s: %w", c.rootPath, err)
		}
	}
	return nil
}

// FullSync walks the tree and emits one raw document per eligible file.
// Per-file read errors are sent on the error channel and the walk goes on.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.Validate(ctx); err != nil {
			errs <- err
			return
		}

		walkErr := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				return c.report(ctx, errs, fmt.Errorf("walk %s: %w", path, err))
			}
			if path != c.rootPath && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !c.eligible(path) {
				return nil
			}

			raw, err := c.read(path)
			if err != nil {
				return c.report(ctx, errs, err)
			}
			if raw == nil {
				return nil
			}
			select {
			case docs <- *raw:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil {
			_ = c.report(ctx, errs, walkErr)
		}
	}()

	return docs, errs
}

// report sends err without blocking the walk when nobody is listening.
func (c *Connector) report(ctx context.Context, errs chan<- error, err error) error {
	logger.Warn("filesystem: %v", err)
	select {
	case errs <- err:
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

// Watch emits a change for every create, write, remove or rename of an
// eligible file under the root. New directories are watched as they
// appear. The channel closes when ctx is cancelled or Close is called.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := c.addTree(watcher, c.rootPath); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	c.mu.Lock()
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	c.watcher = watcher
	c.mu.Unlock()

	changes := make(chan domain.RawDocumentChange)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) && !isHidden(filepath.Base(event.Name)) {
					if err := c.addTree(watcher, event.Name); err != nil {
						logger.Warn("filesystem: watch %s: %v", event.Name, err)
					}
					continue
				}
				change := c.handleEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("filesystem: watcher: %v", err)
			}
		}
	}()

	return changes, nil
}

// Close stops any active watch.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

func (c *Connector) addTree(watcher *fsnotify.Watcher, root string) error {
	if !isDir(root) {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// handleEvent converts an fsnotify event to a change, or nil when the
// event is irrelevant.
func (c *Connector) handleEvent(event fsnotify.Event) *domain.RawDocumentChange {
	path := event.Name
	if c.hiddenWithinRoot(path) || !c.eligible(path) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return &domain.RawDocumentChange{
			Type:     domain.ChangeDeleted,
			Document: domain.RawDocument{ID: c.documentID(path), URI: path},
		}
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if isDir(path) {
			return nil
		}
		raw, err := c.read(path)
		if err != nil {
			logger.Warn("filesystem: %v", err)
			return nil
		}
		if raw == nil {
			return nil
		}
		kind := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			kind = domain.ChangeCreated
		}
		return &domain.RawDocumentChange{Type: kind, Document: *raw}
	default:
		return nil
	}
}

// read loads a file. It returns nil without error for files over the size
// limit.
func (c *Connector) read(path string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		logger.Debug("filesystem: skipping %s (%d bytes)", path, info.Size())
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &domain.RawDocument{
		ID:       c.documentID(path),
		URI:      path,
		MIMEType: normalisers.DetectMIMEType(path),
		Content:  content,
		Metadata: map[string]any{
			"source":   Type,
			"size":     info.Size(),
			"modified": info.ModTime().UTC(),
		},
	}, nil
}

func (c *Connector) documentID(path string) string {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil || rel == "." {
		return filepath.ToSlash(filepath.Base(path))
	}
	return filepath.ToSlash(rel)
}

func (c *Connector) eligible(path string) bool {
	if len(c.extensions) == 0 {
		return true
	}
	return slices.Contains(c.extensions, strings.ToLower(filepath.Ext(path)))
}

// hiddenWithinRoot reports whether any element of path below the root is
// hidden.
func (c *Connector) hiddenWithinRoot(path string) bool {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil || rel == "." {
		return false
	}
	return isHidden(rel)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
