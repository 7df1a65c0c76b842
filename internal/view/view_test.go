package view

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardcopy-dev/hardcopy/internal/format"
	"github.com/hardcopy-dev/hardcopy/internal/store"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

func newTestMaterializer(t *testing.T) (*Materializer, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "hc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := format.NewRegistry(format.NewMarkdownHandler(nil))
	return &Materializer{Store: s, Formats: reg, RootDir: filepath.Join(dir, "work")}, s
}

func TestRefreshRendersExpectedFiles(t *testing.T) {
	m, s := newTestMaterializer(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNodes(ctx, []*types.Node{
		{ID: "a", Type: "Issue", Attrs: map[string]any{"number": 1.0, "title": "fix", "body": "hello"}, SyncedAt: time.Now()},
		{ID: "b", Type: "Issue", Attrs: map[string]any{"number": 2.0, "title": "other", "body": "world"}, SyncedAt: time.Now()},
	}))

	def := Definition{
		Path:  "issues",
		Query: `(x:Issue)`,
		Render: []RenderEntry{
			{PathTemplate: "{{attrs.number}}.md"},
		},
	}

	res, err := m.Refresh(ctx, def, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 2, res.Rendered)
	assert.Empty(t, res.Warnings)

	b, err := os.ReadFile(filepath.Join(m.RootDir, "issues", "1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello")

	_, err = os.Stat(filepath.Join(m.RootDir, "issues", ".index"))
	require.NoError(t, err)
}

func TestRefreshIsIdempotent(t *testing.T) {
	m, s := newTestMaterializer(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, &types.Node{
		ID: "a", Type: "Issue", Attrs: map[string]any{"number": 1.0, "body": "hello"}, SyncedAt: time.Now(),
	}))

	def := Definition{Path: "issues", Query: `(x:Issue)`, Render: []RenderEntry{{PathTemplate: "{{attrs.number}}.md"}}}

	_, err := m.Refresh(ctx, def, nil, false)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(m.RootDir, "issues", "1.md"))
	require.NoError(t, err)
	firstWatermark, ok, err := s.GetFileSyncedAt(ctx, "a", "1.md")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = m.Refresh(ctx, def, nil, false)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(m.RootDir, "issues", "1.md"))
	require.NoError(t, err)
	secondWatermark, ok, err := s.GetFileSyncedAt(ctx, "a", "1.md")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.True(t, firstWatermark.Equal(secondWatermark), "watermark must not change when rendered content is unchanged")
}

func TestRefreshCleanDeletesOrphans(t *testing.T) {
	m, s := newTestMaterializer(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, &types.Node{
		ID: "a", Type: "Issue", Attrs: map[string]any{"number": 1.0, "body": "hello"}, SyncedAt: time.Now(),
	}))
	def := Definition{Path: "issues", Query: `(x:Issue)`, Render: []RenderEntry{{PathTemplate: "{{attrs.number}}.md"}}}
	_, err := m.Refresh(ctx, def, nil, false)
	require.NoError(t, err)

	require.NoError(t, s.DeleteNode(ctx, "a"))

	res, err := m.Refresh(ctx, def, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Orphaned)
	assert.Equal(t, 1, res.Deleted)

	_, err = os.Stat(filepath.Join(m.RootDir, "issues", "1.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestRefreshWithoutCleanKeepsOrphans(t *testing.T) {
	m, s := newTestMaterializer(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, &types.Node{
		ID: "a", Type: "Issue", Attrs: map[string]any{"number": 1.0, "body": "hello"}, SyncedAt: time.Now(),
	}))
	def := Definition{Path: "issues", Query: `(x:Issue)`, Render: []RenderEntry{{PathTemplate: "{{attrs.number}}.md"}}}
	_, err := m.Refresh(ctx, def, nil, false)
	require.NoError(t, err)

	require.NoError(t, s.DeleteNode(ctx, "a"))

	res, err := m.Refresh(ctx, def, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Orphaned)
	assert.Equal(t, 0, res.Deleted)

	_, err = os.Stat(filepath.Join(m.RootDir, "issues", "1.md"))
	require.NoError(t, err)
}
