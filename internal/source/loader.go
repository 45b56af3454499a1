package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	getter "github.com/hashicorp/go-getter"

	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/fsutil"
)

// ConfigExtension is the file suffix of configuration files collected from
// each source tree.
const ConfigExtension = ".tf"

// VarFile is the raw contents of one user-supplied variable file.
type VarFile struct {
	Path string
	Src  []byte
}

// Loaded is the output of the loader: the merged file set plus the
// variable-file contents, both fully read into memory.
type Loaded struct {
	Files    *FileSet
	VarFiles []VarFile
}

// Loader fetches and merges source locators. One Loader owns one staging
// directory for remote fetches; Close removes it.
type Loader struct {
	// FetchTimeout bounds each remote fetch. Zero means no bound.
	FetchTimeout time.Duration

	stagingRoot string
}

// NewLoader returns a loader with the given remote-fetch timeout.
func NewLoader(fetchTimeout time.Duration) *Loader {
	return &Loader{FetchTimeout: fetchTimeout}
}

// Close removes the staging area of any remote fetches.
func (l *Loader) Close() error {
	if l.stagingRoot == "" {
		return nil
	}
	return os.RemoveAll(l.stagingRoot)
}

// Load materializes every locator and merges their configuration files into
// one set, last locator winning on path collisions. Variable files are read
// as-is. Any failure is a SourceUnavailableError; there are no partial
// results.
func (l *Loader) Load(ctx context.Context, locators []string, varFiles []string) (*Loaded, error) {
	logger := ctxlog.FromContext(ctx)

	merged := NewFileSet()
	for _, locator := range locators {
		dir, err := l.materialize(ctx, locator)
		if err != nil {
			return nil, err
		}
		logger.Debug("source materialized", "locator", locator, "dir", dir)

		files, err := fsutil.FindFilesByExtension(dir, ConfigExtension)
		if err != nil {
			return nil, &diag.SourceUnavailableError{Locator: locator, Err: err}
		}
		for _, f := range files {
			rel, err := filepath.Rel(dir, f)
			if err != nil {
				return nil, &diag.SourceUnavailableError{Locator: locator, Err: err}
			}
			contents, err := os.ReadFile(f)
			if err != nil {
				return nil, &diag.SourceUnavailableError{Locator: locator, Err: err}
			}
			merged.Put(filepath.ToSlash(rel), contents)
		}
	}
	logger.Debug("sources merged", "locators", len(locators), "files", merged.Len())

	loaded := &Loaded{Files: merged}
	for _, vf := range varFiles {
		contents, err := os.ReadFile(vf)
		if err != nil {
			return nil, &diag.SourceUnavailableError{Locator: vf, Err: err}
		}
		loaded.VarFiles = append(loaded.VarFiles, VarFile{Path: vf, Src: contents})
	}

	return loaded, nil
}

// materialize returns a local directory for the locator: the path itself
// when it already exists on disk, otherwise a freshly staged remote fetch.
func (l *Loader) materialize(ctx context.Context, locator string) (string, error) {
	if info, err := os.Stat(locator); err == nil {
		if !info.IsDir() {
			return "", &diag.SourceUnavailableError{
				Locator: locator,
				Err:     fmt.Errorf("not a directory"),
			}
		}
		return locator, nil
	}
	return l.fetch(ctx, locator)
}

// fetch stages a remote locator via go-getter. A timeout is reported as
// SourceUnavailable and is not retried: sources are expected to be stable,
// and a silent retry could mask a misconfigured location.
func (l *Loader) fetch(ctx context.Context, locator string) (string, error) {
	if l.stagingRoot == "" {
		root, err := os.MkdirTemp("", "tfgraph-src-")
		if err != nil {
			return "", &diag.SourceUnavailableError{Locator: locator, Err: err}
		}
		l.stagingRoot = root
	}

	dst, err := os.MkdirTemp(l.stagingRoot, "fetch-")
	if err != nil {
		return "", &diag.SourceUnavailableError{Locator: locator, Err: err}
	}

	fetchCtx := ctx
	if l.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.FetchTimeout)
		defer cancel()
	}

	pwd, err := os.Getwd()
	if err != nil {
		return "", &diag.SourceUnavailableError{Locator: locator, Err: err}
	}

	client := &getter.Client{
		Ctx:  fetchCtx,
		Src:  locator,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return "", &diag.SourceUnavailableError{Locator: locator, Err: err}
	}
	return dst, nil
}
