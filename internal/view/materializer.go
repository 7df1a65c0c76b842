package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hardcopy-dev/hardcopy/internal/format"
	"github.com/hardcopy-dev/hardcopy/internal/fsatomic"
	"github.com/hardcopy-dev/hardcopy/internal/query"
	"github.com/hardcopy-dev/hardcopy/internal/store"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// maxParallelRenders bounds concurrent file renders within one refresh to a
// default worker-pool size of 8.
const maxParallelRenders = 8

// Result summarizes one Refresh call, reported by `hc refresh` and folded
// into `hc status`.
type Result struct {
	Loaded     int
	Rendered   int
	Orphaned   int
	Deleted    int
	Warnings   []string
}

// Materializer implements C3 against a Store, a format.Registry for default
// rendering, and the root directory views are rendered relative to.
type Materializer struct {
	Store    *store.Store
	Formats  *format.Registry
	RootDir  string
}

// Refresh evaluates def.Query, renders the view's files, and reconciles
// orphans when clean is true.
func (m *Materializer) Refresh(ctx context.Context, def Definition, params query.Params, clean bool) (*Result, error) {
	q, err := query.Parse(def.Query)
	if err != nil {
		return nil, fmt.Errorf("view: parse query for %s: %w", def.Path, err)
	}

	candidates, err := m.Store.QueryNodes(ctx, q.Label)
	if err != nil {
		return nil, fmt.Errorf("view: load candidates for %s: %w", def.Path, err)
	}
	nodes, err := query.Evaluate(q, candidates, params)
	if err != nil {
		return nil, fmt.Errorf("view: evaluate query for %s: %w", def.Path, err)
	}

	dir := filepath.Join(m.RootDir, def.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("view: create view dir %s: %w", dir, err)
	}

	existing, err := walkMarkdownFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("view: walk view dir %s: %w", dir, err)
	}

	res := &Result{Loaded: len(nodes)}
	expected := make(map[string]bool)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRenders)

	for _, n := range nodes {
		n := n
		g.Go(func() error {
			paths, warnings, err := m.renderNode(gctx, dir, def, n)
			mu.Lock()
			defer mu.Unlock()
			for _, p := range paths {
				expected[p] = true
			}
			res.Warnings = append(res.Warnings, warnings...)
			res.Rendered += len(paths)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	var orphans []string
	for rel := range existing {
		if !expected[rel] {
			orphans = append(orphans, rel)
		}
	}
	res.Orphaned = len(orphans)

	if clean {
		for _, rel := range orphans {
			if warn := m.reconcileOrphan(ctx, dir, rel); warn != "" {
				res.Warnings = append(res.Warnings, warn)
			}
			res.Deleted++
		}
	}

	if err := writeIndex(dir, len(nodes), len(nodes), time.Now(), def.TTL); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("view: write .index for %s: %v", def.Path, err))
	}

	return res, nil
}

// renderNode renders every render entry for n, returning the view-relative
// paths it wrote. A template or render error skips only that entry's file
// (recorded as a warning); the node's other entries and the rest of the
// refresh go on.
func (m *Materializer) renderNode(ctx context.Context, dir string, def Definition, n *types.Node) ([]string, []string, error) {
	var paths []string
	var warnings []string

	for _, entry := range def.Render {
		relPath, err := evalTemplate(entry.PathTemplate, n)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("view: node %s: path template: %v", n.ID, err))
			continue
		}

		content, err := m.renderContent(entry, n)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("view: node %s: render: %v", n.ID, err))
			continue
		}

		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			warnings = append(warnings, fmt.Sprintf("view: node %s: mkdir: %v", n.ID, err))
			continue
		}

		// A rewrite via temp+rename always produces a fresh mtime, even for
		// byte-identical content, which would bump the watermark on every
		// refresh. Skip the write (and the watermark bump below) when the
		// file already holds exactly this content.
		unchanged := false
		if existing, err := os.ReadFile(absPath); err == nil && string(existing) == content {
			unchanged = true
		}

		if !unchanged {
			if err := fsatomic.WriteFile(absPath, []byte(content), 0o644); err != nil {
				warnings = append(warnings, fmt.Sprintf("view: node %s: write %s: %v", n.ID, relPath, err))
				continue
			}
			info, err := os.Stat(absPath)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("view: node %s: stat %s: %v", n.ID, relPath, err))
				continue
			}
			if err := m.Store.SetFileSyncedAt(ctx, n.ID, relPath, info.ModTime()); err != nil {
				warnings = append(warnings, fmt.Sprintf("view: node %s: set watermark: %v", n.ID, err))
				continue
			}
		}
		if err := m.Store.MergeCRDT(ctx, n.ID, n.Body(), n.Attrs); err != nil {
			warnings = append(warnings, fmt.Sprintf("view: node %s: merge crdt: %v", n.ID, err))
			continue
		}

		paths = append(paths, relPath)
	}

	return paths, warnings, nil
}

func (m *Materializer) renderContent(entry RenderEntry, n *types.Node) (string, error) {
	if entry.Template != "" {
		return evalTemplate(entry.Template, n)
	}
	nodeType := entry.Type
	if nodeType == "" {
		nodeType = n.Type
	}
	h, err := m.Formats.For(nodeType)
	if err != nil {
		return "", err
	}
	return h.Render(n)
}

// reconcileOrphan deletes one orphaned file and its watermark/CRDT state,
// warning (but not aborting) if the on-disk body diverges from the last
// known CRDT snapshot — a possible unsaved local edit about to be lost.
func (m *Materializer) reconcileOrphan(ctx context.Context, dir, relPath string) string {
	absPath := filepath.Join(dir, relPath)

	var warning string
	// The node id of an orphan is not known from its path, so it is read
	// from the file's front matter; when no _id can be recovered the file is
	// deleted without any CRDT or watermark cleanup.
	if content, err := os.ReadFile(absPath); err == nil {
		if parsed, perr := tryParseFrontMatterID(content); perr == nil && parsed != "" {
			if doc, derr := m.Store.LoadCRDT(ctx, parsed); derr == nil && doc != nil {
				// Compare only the body below the front matter, trimmed the
				// way the markdown handler's Parse trims it.
				onDisk := string(content)
				if i := strings.Index(onDisk[4:], "\n---\n"); i >= 0 {
					onDisk = onDisk[4+i+len("\n---\n"):]
				}
				onDisk = strings.TrimRight(strings.TrimLeft(onDisk, "\n"), "\n")
				if onDisk != strings.TrimRight(doc.Body, "\n") {
					warning = fmt.Sprintf("view: orphan %s may contain unsaved local changes", relPath)
				}
				_ = m.Store.DeleteCRDT(ctx, parsed)
			}
			_ = m.Store.DeleteFileSyncedAt(ctx, parsed, relPath)
		}
	}

	_ = os.Remove(absPath)
	return warning
}

func tryParseFrontMatterID(content []byte) (string, error) {
	s := string(content)
	if !strings.HasPrefix(s, "---\n") {
		return "", fmt.Errorf("no front matter")
	}
	end := strings.Index(s[4:], "\n---")
	if end < 0 {
		return "", fmt.Errorf("unterminated front matter")
	}
	block := s[4 : 4+end]
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "_id:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "_id:")), nil
		}
	}
	return "", fmt.Errorf("no _id field")
}

// walkMarkdownFiles collects every regular .md file under dir not beginning
// with '.', relative to dir.
func walkMarkdownFiles(dir string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out[rel] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
