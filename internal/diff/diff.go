// Package diff implements C4: file-vs-base change detection and three-way
// conflict classification.
package diff

import (
	"context"
	"strings"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/format"
	"github.com/hardcopy-dev/hardcopy/internal/merge"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// SemanticMerger is the optional oracle invoked when the line-level merge
// still leaves residual conflict markers. Implemented by
// internal/mergeoracle.Client; declared here as a narrow interface so this
// package carries no dependency on the Anthropic SDK itself.
type SemanticMerger interface {
	Merge(ctx context.Context, base, local, remote string) (merged string, ok bool, err error)
}

// Change is one field-level divergence found by DetectChanges between a
// file on disk and the node stored as its base.
type Change struct {
	Field    string
	OldValue any
	NewValue any
}

// DetectChanges compares a parsed file against base across editableFields.
// watermark is file_synced_at(id, path) if known, else base.SyncedAt, else
// the zero time. unsmart bypasses the mtime-vs-watermark skip check.
func DetectChanges(parsed *format.Parsed, fileMTime time.Time, base *types.Node, editableFields []types.EditableField, watermark time.Time, unsmart bool) []Change {
	if !unsmart && !fileMTime.After(watermark) {
		return nil
	}

	var changes []Change
	for _, f := range editableFields {
		if f.Name == "body" {
			oldBody := strings.TrimSpace(base.Body())
			newBody := strings.TrimSpace(parsed.Body)
			if oldBody != newBody {
				changes = append(changes, Change{Field: "body", OldValue: oldBody, NewValue: newBody})
			}
			continue
		}

		oldVal, hadOld := base.Attr(f.Name)
		newVal, hadNew := parsed.Attrs[f.Name]
		if !hadOld && !hadNew {
			continue
		}
		if !types.StructuralEqual(oldVal, newVal) {
			changes = append(changes, Change{Field: f.Name, OldValue: oldVal, NewValue: newVal})
		}
	}
	return changes
}

// FieldStatus classifies one field's three-way comparison result.
type FieldStatus int

const (
	StatusClean FieldStatus = iota
	StatusRemoteOnly
	StatusDiverged
)

func (s FieldStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusRemoteOnly:
		return "remote-only"
	case StatusDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// FieldConflict is one field's three-way classification outcome.
type FieldConflict struct {
	Field        string
	Status       FieldStatus
	CanAutoMerge bool
	Base         any
	Local        any
	Remote       any
	// Resolved is the value to push/apply, filled in once the field's
	// status (and any auto-merge or line-merge fallback) is settled.
	Resolved any
}

// Classification is the outcome of ClassifyThreeWay for one node.
type Classification struct {
	Fields       []FieldConflict
	Unresolvable bool
}

// ClassifyThreeWay implements the three-way classification table plus its
// auto-merge and line-level body-merge fallback rules. base is the node as
// stored, local is the parsed file, remote is the result of
// Provider.fetch_node (may be nil if the node was deleted remotely, in
// which case every field compares as if remote were empty).
func ClassifyThreeWay(base *types.Node, local *format.Parsed, remote *types.Node, editableFields []types.EditableField) Classification {
	return classifyThreeWay(context.Background(), base, local, remote, editableFields, nil)
}

// ClassifyThreeWayWithOracle is ClassifyThreeWay plus an optional
// semantic-merge fallback: when the line-level merge still reports
// conflicts for the body field, oracle.Merge is given one more attempt
// before the field is left diverged. oracle may be nil, in which case this
// behaves exactly like ClassifyThreeWay.
func ClassifyThreeWayWithOracle(ctx context.Context, base *types.Node, local *format.Parsed, remote *types.Node, editableFields []types.EditableField, oracle SemanticMerger) Classification {
	return classifyThreeWay(ctx, base, local, remote, editableFields, oracle)
}

func classifyThreeWay(ctx context.Context, base *types.Node, local *format.Parsed, remote *types.Node, editableFields []types.EditableField, oracle SemanticMerger) Classification {
	var out Classification

	for _, f := range editableFields {
		var baseV, localV, remoteV any
		if f.Name == "body" {
			baseV = base.Body()
			localV = local.Body
			if remote != nil {
				remoteV = remote.Body()
			}
		} else {
			baseV, _ = base.Attr(f.Name)
			localV = local.Attrs[f.Name]
			if remote != nil {
				remoteV, _ = remote.Attr(f.Name)
			}
		}

		fc := classifyField(f.Name, baseV, localV, remoteV)

		merged := false
		if fc.Field == "body" && fc.Status == StatusDiverged && !fc.CanAutoMerge {
			fc, merged = attemptBodyMerge(fc)
			if !merged && oracle != nil {
				fc, merged = attemptOracleMerge(ctx, fc, oracle)
			}
		}

		switch {
		case merged:
			// Resolved was already set to the merged text by attemptBodyMerge
			// or attemptOracleMerge.
		case fc.Status == StatusClean:
			// unchanged/unchanged, changed/unchanged (take local), and
			// changed/changed/equal (convergent) all resolve to local,
			// which equals base or remote respectively in the other two
			// cases.
			fc.Resolved = localV
		case fc.Status == StatusRemoteOnly:
			// Resolved feeds effectiveChanges, which decides what to push.
			// A remote-only change is not pushed back to the Provider — it
			// already came from there — so Resolved stays at base here and
			// the field is picked up locally the next time a refresh fetches
			// and upserts the node.
			fc.Resolved = baseV
		case fc.Status == StatusDiverged && fc.CanAutoMerge:
			fc.Resolved = types.UnionListMerge(asList(baseV), asList(localV), asList(remoteV))
		default:
			out.Unresolvable = true
		}

		out.Fields = append(out.Fields, fc)
	}

	return out
}

// classifyField applies the three-way classification table to a single
// field.
func classifyField(name string, baseV, localV, remoteV any) FieldConflict {
	localChanged := !types.StructuralEqual(localV, baseV)
	remoteChanged := !types.StructuralEqual(remoteV, baseV)

	fc := FieldConflict{
		Field:        name,
		Base:         baseV,
		Local:        localV,
		Remote:       remoteV,
		CanAutoMerge: isListValued(baseV) || isListValued(localV) || isListValued(remoteV),
	}

	switch {
	case !localChanged && !remoteChanged:
		fc.Status = StatusClean
	case localChanged && !remoteChanged:
		fc.Status = StatusClean
	case !localChanged && remoteChanged:
		fc.Status = StatusRemoteOnly
	case localChanged && remoteChanged && types.StructuralEqual(localV, remoteV):
		fc.Status = StatusClean
	default:
		fc.Status = StatusDiverged
	}

	return fc
}

func isListValued(v any) bool {
	_, ok := v.([]any)
	return ok
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// attemptBodyMerge runs the diff3-style line merge fallback for a diverged
// body field. If the merge produces no residual conflict markers, the
// field is reclassified as clean and Resolved is set to the merged text.
func attemptBodyMerge(fc FieldConflict) (FieldConflict, bool) {
	base, _ := fc.Base.(string)
	local, _ := fc.Local.(string)
	remote, _ := fc.Remote.(string)

	merged, hasConflicts := merge.Merge3(base, local, remote)
	if hasConflicts {
		return fc, false
	}
	fc.Status = StatusClean
	fc.Resolved = merged
	return fc, true
}

// attemptOracleMerge is the last-resort fallback for a body field the line
// merge could not resolve: the oracle is given (base, local, remote) and
// its answer is only accepted when it contains no residual conflict
// markers itself.
func attemptOracleMerge(ctx context.Context, fc FieldConflict, oracle SemanticMerger) (FieldConflict, bool) {
	base, _ := fc.Base.(string)
	local, _ := fc.Local.(string)
	remote, _ := fc.Remote.(string)

	merged, ok, err := oracle.Merge(ctx, base, local, remote)
	if err != nil || !ok || strings.Contains(merged, "<<<<<<<") {
		return fc, false
	}
	fc.Status = StatusClean
	fc.Resolved = merged
	return fc, true
}
