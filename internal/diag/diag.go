// Package diag captures forensic artifacts when the portal stops looking the
// way the selectors expect. A screenshot plus the rendered markup is usually
// enough to repair the selector set without re-running a live login.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Source is the subset of the browser session diagnostics reads from.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
}

// Capturer writes failure artifacts into a fixed directory. All artifacts of
// one process run share a run id so they sort together.
type Capturer struct {
	dir   string
	runID string
}

// New returns a Capturer writing into dir.
func New(dir string) *Capturer {
	return &Capturer{
		dir:   dir,
		runID: uuid.NewString()[:8],
	}
}

// Capture writes a screenshot and page snapshot labeled with the failure
// stage. It never returns an error: a failure to write diagnostics is logged
// and must not mask the error that triggered the capture. The returned paths
// are the artifacts that were actually written.
func (c *Capturer) Capture(ctx context.Context, src Source, label string) []string {
	if c == nil || src == nil {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		slog.Warn("cannot create diagnostics directory", "dir", c.dir, "error", err)
		return nil
	}

	stamp := time.Now().Format("20060102-150405")
	base := filepath.Join(c.dir, fmt.Sprintf("%s-%s-%s", stamp, c.runID, label))

	var (
		g     errgroup.Group
		paths = make(chan string, 2)
	)

	g.Go(func() error {
		shot, err := src.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		path := base + ".png"
		if err := os.WriteFile(path, shot, 0o600); err != nil {
			return fmt.Errorf("writing screenshot: %w", err)
		}
		paths <- path
		return nil
	})

	g.Go(func() error {
		source, err := src.PageSource(ctx)
		if err != nil {
			return fmt.Errorf("page source: %w", err)
		}
		path := base + ".html"
		if err := os.WriteFile(path, []byte(source), 0o600); err != nil {
			return fmt.Errorf("writing page snapshot: %w", err)
		}
		paths <- path
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Warn("diagnostics capture incomplete", "label", label, "error", err)
	}
	close(paths)

	var written []string
	for p := range paths {
		written = append(written, p)
	}
	if len(written) > 0 {
		slog.Info("diagnostics written", "label", label, "artifacts", written)
	}
	return written
}
