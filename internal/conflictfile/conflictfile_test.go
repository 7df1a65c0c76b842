package conflictfile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

func TestArtifactPathURLEncodesNodeID(t *testing.T) {
	path := ArtifactPath("/root/.hardcopy/conflicts", "x:1")
	require.Equal(t, "/root/.hardcopy/conflicts/x%3A1.md", path)
}

func TestRoundTripScalarField(t *testing.T) {
	a := &types.ConflictArtifact{
		NodeID:     "x:1",
		NodeType:   "github.Issue",
		DetectedAt: time.Now(),
		Fields: map[string]types.ConflictField{
			"status": {Base: "open", Local: "closed", Remote: "in-progress"},
		},
	}

	rendered, err := Render(a)
	require.NoError(t, err)
	require.Contains(t, rendered, "## status")
	require.Contains(t, rendered, "<<<<<<< LOCAL")

	parsed, err := Parse(rendered)
	require.NoError(t, err)
	fm, ok := parsed["status"]
	require.True(t, ok)
	require.True(t, fm.HasMarkers)
	require.Equal(t, "closed", fm.Local)
	require.Equal(t, "open", fm.Base)
	require.Equal(t, "in-progress", fm.Remote)
}

func TestParseToleratesCRLF(t *testing.T) {
	content := strings.Join([]string{
		"---",
		"node_id: x:1",
		"---",
		"",
		"## status",
		"<<<<<<< LOCAL",
		"closed",
		"||||||| BASE",
		"open",
		"=======",
		"in-progress",
		">>>>>>> REMOTE",
		"",
	}, "\r\n")

	parsed, err := Parse(content)
	require.NoError(t, err)
	fm, ok := parsed["status"]
	require.True(t, ok)
	require.True(t, fm.HasMarkers)
	require.Equal(t, "closed", fm.Local)
	require.Equal(t, "in-progress", fm.Remote)
}

func TestParseDetectsUserResolvedBlock(t *testing.T) {
	content := "---\nnode_id: x:1\n---\n\n## status\nclosed\n"

	parsed, err := Parse(content)
	require.NoError(t, err)
	fm, ok := parsed["status"]
	require.True(t, ok)
	require.False(t, fm.HasMarkers)
	require.Equal(t, "closed", fm.Resolved)
}

func TestRenderReusesMergedBodyMarkers(t *testing.T) {
	a := &types.ConflictArtifact{
		NodeID:   "x:1",
		NodeType: "github.Issue",
		Fields: map[string]types.ConflictField{
			"body": {Base: "line", Local: "LOCAL", Remote: "REMOTE"},
		},
		Body: "<<<<<<< LOCAL\nLOCAL\n||||||| BASE\nline\n=======\nREMOTE\n>>>>>>> REMOTE",
	}

	rendered, err := Render(a)
	require.NoError(t, err)

	parsed, err := Parse(rendered)
	require.NoError(t, err)
	fm, ok := parsed["body"]
	require.True(t, ok)
	require.True(t, fm.HasMarkers)
	require.Equal(t, "LOCAL", fm.Local)
	require.Equal(t, "line", fm.Base)
	require.Equal(t, "REMOTE", fm.Remote)
}
