package format

import (
	"strings"
	"testing"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

func TestMarkdownRenderParseRoundTrip(t *testing.T) {
	h := NewMarkdownHandler([]types.EditableField{
		{Name: "title", Kind: types.KindScalar},
		{Name: "labels", Kind: types.KindList},
	})

	n := &types.Node{
		ID:       "github:acme/repo#42",
		Type:     "github.Issue",
		SyncedAt: time.Now(),
		Attrs: map[string]any{
			"title":  "Fix the thing",
			"labels": []any{"bug", "urgent"},
			"body":   "Hello world",
		},
	}

	content, err := h.Render(n)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(content, "---\n") {
		t.Fatalf("expected front matter delimiter, got:\n%s", content)
	}

	parsed, err := h.Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.ID != n.ID || parsed.Type != n.Type {
		t.Fatalf("expected id/type %s/%s, got %s/%s", n.ID, n.Type, parsed.ID, parsed.Type)
	}
	if parsed.Body != "Hello world" {
		t.Fatalf("expected body %q, got %q", "Hello world", parsed.Body)
	}
	if parsed.Attrs["title"] != "Fix the thing" {
		t.Fatalf("expected title preserved, got %v", parsed.Attrs["title"])
	}
	labels, ok := parsed.Attrs["labels"].([]any)
	if !ok || len(labels) != 2 {
		t.Fatalf("expected labels list of 2, got %v", parsed.Attrs["labels"])
	}
}

func TestMarkdownParseRejectsMissingFrontMatter(t *testing.T) {
	h := NewMarkdownHandler(nil)
	if _, err := h.Parse("just some text\n"); err == nil {
		t.Fatalf("expected error for missing front matter")
	}
}

func TestMarkdownEditableFieldsIncludesBody(t *testing.T) {
	h := NewMarkdownHandler([]types.EditableField{{Name: "title", Kind: types.KindScalar}})
	fields := h.EditableFields()
	if fields[0].Name != "body" {
		t.Fatalf("expected body first, got %v", fields)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
}
