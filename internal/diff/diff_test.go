package diff

import (
	"context"
	"testing"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/format"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

type fakeOracle struct {
	merged string
	ok     bool
	err    error
}

func (f *fakeOracle) Merge(ctx context.Context, base, local, remote string) (string, bool, error) {
	return f.merged, f.ok, f.err
}

var editableFields = []types.EditableField{
	{Name: "body", Kind: types.KindText},
	{Name: "status", Kind: types.KindScalar},
	{Name: "labels", Kind: types.KindList},
}

func TestDetectChangesSkipsUnchangedBeforeWatermark(t *testing.T) {
	base := &types.Node{ID: "a", Attrs: map[string]any{"status": "open", "body": "hello"}}
	parsed := &format.Parsed{Attrs: map[string]any{"status": "closed"}, Body: "hello"}
	watermark := time.Now()
	changes := DetectChanges(parsed, watermark.Add(-time.Hour), base, editableFields, watermark, false)
	if changes != nil {
		t.Fatalf("expected nil (file older than watermark), got %v", changes)
	}
}

func TestDetectChangesFindsFieldDiff(t *testing.T) {
	base := &types.Node{ID: "a", Attrs: map[string]any{"status": "open", "body": "hello"}}
	parsed := &format.Parsed{Attrs: map[string]any{"status": "closed"}, Body: "hello"}
	watermark := time.Now().Add(-time.Hour)
	changes := DetectChanges(parsed, time.Now(), base, editableFields, watermark, false)
	if len(changes) != 1 || changes[0].Field != "status" {
		t.Fatalf("expected one status change, got %v", changes)
	}
}

func TestDetectChangesUnsmartBypassesWatermark(t *testing.T) {
	base := &types.Node{ID: "a", Attrs: map[string]any{"status": "open", "body": "hello"}}
	parsed := &format.Parsed{Attrs: map[string]any{"status": "closed"}, Body: "hello"}
	watermark := time.Now().Add(time.Hour) // file appears older than watermark
	changes := DetectChanges(parsed, time.Now(), base, editableFields, watermark, true)
	if len(changes) != 1 {
		t.Fatalf("expected unsmart mode to bypass the watermark skip, got %v", changes)
	}
}

func node(attrs map[string]any) *types.Node {
	return &types.Node{ID: "a", Attrs: attrs}
}

func parsed(attrs map[string]any, body string) *format.Parsed {
	return &format.Parsed{Attrs: attrs, Body: body}
}

func TestClassifyCleanUnchanged(t *testing.T) {
	base := node(map[string]any{"status": "open"})
	local := parsed(map[string]any{"status": "open"}, "")
	remote := node(map[string]any{"status": "open"})
	c := ClassifyThreeWay(base, local, remote, []types.EditableField{{Name: "status"}})
	if c.Unresolvable {
		t.Fatalf("expected resolvable")
	}
	if c.Fields[0].Status != StatusClean || c.Fields[0].Resolved != "open" {
		t.Fatalf("unexpected: %+v", c.Fields[0])
	}
}

func TestClassifyLocalChangedTakesLocal(t *testing.T) {
	base := node(map[string]any{"status": "open"})
	local := parsed(map[string]any{"status": "closed"}, "")
	remote := node(map[string]any{"status": "open"})
	c := ClassifyThreeWay(base, local, remote, []types.EditableField{{Name: "status"}})
	if c.Fields[0].Status != StatusClean || c.Fields[0].Resolved != "closed" {
		t.Fatalf("unexpected: %+v", c.Fields[0])
	}
}

func TestClassifyRemoteOnly(t *testing.T) {
	base := node(map[string]any{"status": "open"})
	local := parsed(map[string]any{"status": "open"}, "")
	remote := node(map[string]any{"status": "in-progress"})
	c := ClassifyThreeWay(base, local, remote, []types.EditableField{{Name: "status"}})
	// Resolved stays at base: a remote-only change is never pushed back to
	// the Provider, only adopted locally on the next refresh.
	if c.Fields[0].Status != StatusRemoteOnly || c.Fields[0].Resolved != "open" {
		t.Fatalf("unexpected: %+v", c.Fields[0])
	}
	if c.Unresolvable {
		t.Fatalf("remote-only must not be unresolvable")
	}
}

func TestClassifyConvergent(t *testing.T) {
	base := node(map[string]any{"status": "open"})
	local := parsed(map[string]any{"status": "closed"}, "")
	remote := node(map[string]any{"status": "closed"})
	c := ClassifyThreeWay(base, local, remote, []types.EditableField{{Name: "status"}})
	if c.Fields[0].Status != StatusClean {
		t.Fatalf("expected convergent change to classify clean, got %+v", c.Fields[0])
	}
}

func TestClassifyDivergedScalarUnresolvable(t *testing.T) {
	base := node(map[string]any{"status": "open"})
	local := parsed(map[string]any{"status": "closed"}, "")
	remote := node(map[string]any{"status": "in-progress"})
	c := ClassifyThreeWay(base, local, remote, []types.EditableField{{Name: "status"}})
	if c.Fields[0].Status != StatusDiverged {
		t.Fatalf("expected diverged, got %+v", c.Fields[0])
	}
	if !c.Unresolvable {
		t.Fatalf("expected unresolvable")
	}
}

func TestClassifyDivergedListAutoMerges(t *testing.T) {
	base := node(map[string]any{"labels": []any{"a"}})
	local := parsed(map[string]any{"labels": []any{"a", "b"}}, "")
	remote := node(map[string]any{"labels": []any{"a", "c"}})
	c := ClassifyThreeWay(base, local, remote, []types.EditableField{{Name: "labels"}})
	if c.Unresolvable {
		t.Fatalf("expected list auto-merge to resolve")
	}
	if c.Fields[0].Status != StatusDiverged || !c.Fields[0].CanAutoMerge {
		t.Fatalf("expected diverged+auto-mergeable, got %+v", c.Fields[0])
	}
	merged, _ := c.Fields[0].Resolved.([]any)
	if len(merged) != 3 {
		t.Fatalf("expected union of 3 elements, got %v", merged)
	}
}

func TestClassifyDivergedBodyLineMergeResolvesCleanly(t *testing.T) {
	base := withBody(node(map[string]any{}), "one\ntwo\nthree")
	local := parsed(map[string]any{}, "ONE\ntwo\nthree")
	remote := withBody(node(map[string]any{}), "one\ntwo\nTHREE")
	fields := []types.EditableField{{Name: "body", Kind: types.KindText}}
	c := ClassifyThreeWay(base, local, remote, fields)
	if c.Unresolvable {
		t.Fatalf("expected non-conflicting line merge to resolve: %+v", c.Fields[0])
	}
	if c.Fields[0].Status != StatusClean {
		t.Fatalf("expected reclassified clean after merge, got %+v", c.Fields[0])
	}
}

func TestClassifyDivergedBodyLineMergeLeavesConflictMarkers(t *testing.T) {
	base := withBody(node(map[string]any{}), "line")
	local := parsed(map[string]any{}, "LOCAL")
	remote := withBody(node(map[string]any{}), "REMOTE")
	fields := []types.EditableField{{Name: "body", Kind: types.KindText}}
	c := ClassifyThreeWay(base, local, remote, fields)
	if !c.Unresolvable {
		t.Fatalf("expected truly conflicting body edits to stay unresolvable")
	}
}

func TestClassifyDivergedBodyOracleResolvesAfterLineMergeFails(t *testing.T) {
	base := withBody(node(map[string]any{}), "line")
	local := parsed(map[string]any{}, "LOCAL")
	remote := withBody(node(map[string]any{}), "REMOTE")
	fields := []types.EditableField{{Name: "body", Kind: types.KindText}}

	oracle := &fakeOracle{merged: "LOCAL and REMOTE combined", ok: true}
	c := ClassifyThreeWayWithOracle(context.Background(), base, local, remote, fields, oracle)
	if c.Unresolvable {
		t.Fatalf("expected oracle merge to resolve: %+v", c.Fields[0])
	}
	if c.Fields[0].Resolved != "LOCAL and REMOTE combined" {
		t.Fatalf("expected resolved text from oracle, got %v", c.Fields[0].Resolved)
	}
}

func TestClassifyDivergedBodyOracleAnswerWithMarkersRejected(t *testing.T) {
	base := withBody(node(map[string]any{}), "line")
	local := parsed(map[string]any{}, "LOCAL")
	remote := withBody(node(map[string]any{}), "REMOTE")
	fields := []types.EditableField{{Name: "body", Kind: types.KindText}}

	oracle := &fakeOracle{merged: "<<<<<<< LOCAL\nstill conflicted", ok: true}
	c := ClassifyThreeWayWithOracle(context.Background(), base, local, remote, fields, oracle)
	if !c.Unresolvable {
		t.Fatalf("expected a markers-bearing oracle answer to leave the field diverged")
	}
}

func withBody(n *types.Node, body string) *types.Node {
	n.Attrs["body"] = body
	return n
}
