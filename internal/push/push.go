// Package push implements the push pipeline that turns file-vs-base
// changes into Provider calls, conflict artifacts, and Store/state
// updates.
package push

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/conflictfile"
	"github.com/hardcopy-dev/hardcopy/internal/diff"
	"github.com/hardcopy-dev/hardcopy/internal/format"
	"github.com/hardcopy-dev/hardcopy/internal/fsatomic"
	"github.com/hardcopy-dev/hardcopy/internal/merge"
	"github.com/hardcopy-dev/hardcopy/internal/nodelock"
	"github.com/hardcopy-dev/hardcopy/internal/provider"
	"github.com/hardcopy-dev/hardcopy/internal/store"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// Stats is the aggregate result of one Pipeline.Run call: pushed, skipped,
// conflicts, errors.
type Stats struct {
	Pushed    int
	Skipped   int
	Conflicts int
	Errors    []string
}

// Options configures one push invocation, matching the `hc push [pattern]
// [--dry-run] [--force]` CLI surface.
type Options struct {
	// Pattern restricts candidates to watermark paths matching a
	// filepath.Match glob; "" means every known file.
	Pattern string
	// DryRun computes and reports decisions without calling Provider.Push or
	// mutating the Store/local files; remote state is still fetched.
	DryRun bool
	// Force bypasses the mtime-vs-watermark skip check in change detection
	// (diff.DetectChanges' unsmart mode), pushing even files that don't
	// look newer than their last sync.
	Force bool
}

// Counters is the subset of internal/telemetry's PushCounters the pipeline
// needs; kept as an interface so tests don't have to stand up a real otel
// meter provider.
type Counters interface {
	IncPushed(ctx context.Context)
	IncSkipped(ctx context.Context)
	IncConflicts(ctx context.Context)
	IncErrors(ctx context.Context)
}

// Pipeline wires together the Store, format handlers, Provider registry,
// and per-node locking needed to run a push.
type Pipeline struct {
	Store     *store.Store
	Formats   *format.Registry
	Providers *provider.Registry
	Locks     *nodelock.Manager
	RootDir   string
	Telemetry Counters
	// Oracle is the optional semantic-merge fallback tried after the
	// line-level body merge still leaves conflict markers. Nil disables it,
	// leaving the field diverged as soon as the line merge fails.
	Oracle diff.SemanticMerger
}

func (p *Pipeline) tick(ctx context.Context, fn func(Counters, context.Context)) {
	if p.Telemetry != nil {
		fn(p.Telemetry, ctx)
	}
}

// Run walks every file the Store has a sync watermark for, re-detects
// changes, and applies the pre-conditions/decision pipeline to each one in
// deterministic (node id, path) order.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	watermarks, err := p.Store.ListFileWatermarks(ctx)
	if err != nil {
		return stats, fmt.Errorf("push: list watermarks: %w", err)
	}

	for _, w := range watermarks {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if opts.Pattern != "" {
			matched, _ := filepath.Match(opts.Pattern, w.Path)
			if !matched {
				continue
			}
		}
		p.processOne(ctx, w, opts, &stats)
	}

	return stats, nil
}

// processOne runs the full pre-conditions→decision pipeline for a single
// (node, file) watermark entry, holding that node's logical lock for the
// whole window.
func (p *Pipeline) processOne(ctx context.Context, w store.FileWatermark, opts Options, stats *Stats) {
	unlock := p.Locks.Lock(w.NodeID)
	defer unlock()

	absPath := filepath.Join(p.RootDir, w.Path)
	content, err := os.ReadFile(absPath)
	if err != nil {
		stats.Skipped++
		p.tick(ctx, Counters.IncSkipped)
		return
	}
	info, err := os.Stat(absPath)
	if err != nil {
		stats.Skipped++
		p.tick(ctx, Counters.IncSkipped)
		return
	}

	base, err := p.Store.GetNode(ctx, w.NodeID)
	if err != nil || base == nil {
		stats.Skipped++
		p.tick(ctx, Counters.IncSkipped)
		return
	}

	handler, err := p.Formats.For(base.Type)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("no format handler for %s: %v", w.NodeID, err))
		p.tick(ctx, Counters.IncErrors)
		return
	}
	parsed, err := handler.Parse(string(content))
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("parse %s: %v", w.Path, err))
		p.tick(ctx, Counters.IncErrors)
		return
	}
	editableFields := handler.EditableFields()

	changes := diff.DetectChanges(parsed, info.ModTime(), base, editableFields, w.SyncedAt, opts.Force)
	if len(changes) == 0 {
		stats.Skipped++
		p.tick(ctx, Counters.IncSkipped)
		return
	}

	// Pre-condition 1: locate the Provider for this node's id scheme.
	prov, err := p.Providers.For(w.NodeID)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", w.NodeID, err))
		stats.Skipped++
		p.tick(ctx, Counters.IncSkipped)
		return
	}

	// Pre-condition 3: fetch current remote state.
	remote, err := prov.FetchNode(ctx, w.NodeID)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("fetch %s: %v", w.NodeID, err))
		p.tick(ctx, Counters.IncErrors)
		return
	}

	// Pre-condition 4: recompute three-way conflicts with the freshly-read
	// file and freshly-fetched remote.
	classification := diff.ClassifyThreeWayWithOracle(ctx, base, parsed, remote, editableFields, p.Oracle)

	if classification.Unresolvable {
		artifact := buildConflictArtifact(w.NodeID, base.Type, absPath, w.Path, classification)
		if !opts.DryRun {
			if err := p.Store.SaveConflict(ctx, artifact); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("save conflict %s: %v", w.NodeID, err))
				p.tick(ctx, Counters.IncErrors)
				return
			}
			if err := p.writeConflictArtifactFile(artifact); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("write conflict artifact %s: %v", w.NodeID, err))
				p.tick(ctx, Counters.IncErrors)
				return
			}
		}
		stats.Conflicts++
		p.tick(ctx, Counters.IncConflicts)
		return
	}

	effective := effectiveChanges(classification)
	if len(effective) == 0 {
		stats.Skipped++
		p.tick(ctx, Counters.IncSkipped)
		return
	}

	if opts.DryRun {
		stats.Pushed++
		return
	}

	result, err := prov.Push(ctx, base, effective)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("Push failed for %s: %v", w.NodeID, err))
		p.tick(ctx, Counters.IncErrors)
		return
	}
	if !result.OK {
		stats.Errors = append(stats.Errors, fmt.Sprintf("Push failed for %s: provider declined", w.NodeID))
		p.tick(ctx, Counters.IncErrors)
		return
	}

	if err := p.applyPushSuccess(ctx, base, handler, absPath, w.Path, effective, result); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("apply push result for %s: %v", w.NodeID, err))
		p.tick(ctx, Counters.IncErrors)
		return
	}

	// A successful push resolves any prior conflict on this node.
	_ = p.Store.RemoveConflict(ctx, w.NodeID)
	p.removeConflictArtifactFile(w.NodeID)

	stats.Pushed++
	p.tick(ctx, Counters.IncPushed)
}

// Side selects which half of a diverged field a resolution keeps.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Resolve applies a user-supplied resolution to an open conflict
// (resolve_conflict(node_id, resolution: field → {local | remote})): every
// diverged field must be covered by resolution, the selected sides are
// pushed to the Provider, and on success the usual post-push state update
// runs before the conflict record is cleared. On failure the artifact is
// left untouched so the user can retry the resolution.
func (p *Pipeline) Resolve(ctx context.Context, nodeID string, resolution map[string]Side) error {
	conflict, err := p.Store.ReadConflict(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("push: resolve %s: %w", nodeID, err)
	}
	if conflict == nil {
		return fmt.Errorf("push: resolve %s: no open conflict", nodeID)
	}

	for field := range resolution {
		if _, ok := conflict.Fields[field]; !ok {
			return fmt.Errorf("push: resolve %s: field %q is not part of this conflict", nodeID, field)
		}
	}
	effective := make(map[string]any, len(conflict.Fields))
	for field, fc := range conflict.Fields {
		side, ok := resolution[field]
		if !ok {
			return fmt.Errorf("push: resolve %s: resolution missing field %q", nodeID, field)
		}
		switch side {
		case SideLocal:
			effective[field] = fc.Local
		case SideRemote:
			effective[field] = fc.Remote
		default:
			return fmt.Errorf("push: resolve %s: field %q: unknown side %q", nodeID, field, side)
		}
	}

	base, err := p.Store.GetNode(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("push: resolve %s: load node: %w", nodeID, err)
	}
	if base == nil {
		return fmt.Errorf("push: resolve %s: node not found", nodeID)
	}

	handler, err := p.Formats.For(conflict.NodeType)
	if err != nil {
		return fmt.Errorf("push: resolve %s: %w", nodeID, err)
	}

	prov, err := p.Providers.For(nodeID)
	if err != nil {
		return fmt.Errorf("push: resolve %s: %w", nodeID, err)
	}

	result, err := prov.Push(ctx, base, effective)
	if err != nil {
		return fmt.Errorf("push: resolve %s: provider push: %w", nodeID, err)
	}
	if !result.OK {
		return fmt.Errorf("push: resolve %s: provider declined", nodeID)
	}

	if err := p.applyPushSuccess(ctx, base, handler, conflict.FilePath, conflict.ViewRelPath, effective, result); err != nil {
		return fmt.Errorf("push: resolve %s: %w", nodeID, err)
	}

	if err := p.Store.RemoveConflict(ctx, nodeID); err != nil {
		return fmt.Errorf("push: resolve %s: %w", nodeID, err)
	}
	p.removeConflictArtifactFile(nodeID)
	return nil
}

// writeConflictArtifactFile renders artifact and writes it to
// .hardcopy/conflicts/<urlencoded-node-id>.md, the file the user edits to
// pick a side for each diverged field.
func (p *Pipeline) writeConflictArtifactFile(artifact *types.ConflictArtifact) error {
	dir := p.Store.ConflictsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create conflicts dir: %w", err)
	}
	rendered, err := conflictfile.Render(artifact)
	if err != nil {
		return fmt.Errorf("render conflict artifact: %w", err)
	}
	path := conflictfile.ArtifactPath(dir, artifact.NodeID)
	if err := fsatomic.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write conflict artifact: %w", err)
	}
	return nil
}

// removeConflictArtifactFile deletes the artifact file for nodeID once its
// conflict has been resolved; a missing file is not an error.
func (p *Pipeline) removeConflictArtifactFile(nodeID string) {
	path := conflictfile.ArtifactPath(p.Store.ConflictsDir(), nodeID)
	_ = os.Remove(path)
}

// applyPushSuccess performs the post-success state update: Node.attrs,
// CRDT, local file, watermark. This window must not itself be cancelled
// mid-update — callers pass a context only for file I/O and Store calls
// that are expected to complete promptly.
func (p *Pipeline) applyPushSuccess(ctx context.Context, base *types.Node, handler format.Handler, absPath, relPath string, effective map[string]any, result provider.PushResult) error {
	updated := base.Clone()
	for field, val := range effective {
		updated.Attrs[field] = val
	}
	updated.SyncedAt = time.Now().UTC()
	if result.VersionToken != nil {
		updated.VersionToken = result.VersionToken
	}

	if err := p.Store.UpsertNode(ctx, updated); err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	if _, bodyChanged := effective["body"]; bodyChanged {
		if err := p.Store.MergeCRDT(ctx, updated.ID, updated.Body(), updated.Attrs); err != nil {
			return fmt.Errorf("merge crdt: %w", err)
		}
	}

	rendered, err := handler.Render(updated)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := fsatomic.WriteFile(absPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if err := p.Store.SetFileSyncedAt(ctx, updated.ID, relPath, info.ModTime()); err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

// effectiveChanges extracts the fields whose resolved value differs from
// base, the set actually worth sending to the Provider.
func effectiveChanges(c diff.Classification) map[string]any {
	out := make(map[string]any)
	for _, fc := range c.Fields {
		if fc.Resolved == nil && fc.Base == nil {
			continue
		}
		if !types.StructuralEqual(fc.Resolved, fc.Base) {
			out[fc.Field] = fc.Resolved
		}
	}
	return out
}

// buildConflictArtifact collects the still-diverged fields (those
// ClassifyThreeWay could not auto-resolve) into a persistable artifact,
// matching the on-disk conflict file shape.
func buildConflictArtifact(nodeID, nodeType, filePath, viewRelPath string, c diff.Classification) *types.ConflictArtifact {
	artifact := &types.ConflictArtifact{
		NodeID:      nodeID,
		NodeType:    nodeType,
		FilePath:    filePath,
		ViewRelPath: viewRelPath,
		DetectedAt:  time.Now().UTC(),
		Fields:      make(map[string]types.ConflictField),
	}

	for _, fc := range c.Fields {
		if fc.Status != diff.StatusDiverged {
			continue
		}
		artifact.Fields[fc.Field] = types.ConflictField{Base: fc.Base, Local: fc.Local, Remote: fc.Remote}

		if fc.Field == "body" {
			base, _ := fc.Base.(string)
			local, _ := fc.Local.(string)
			remote, _ := fc.Remote.(string)
			marked, _ := merge.Merge3(base, local, remote)
			artifact.Body = marked
		}
	}

	return artifact
}
