package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseGitLabIDExtractsProjectAndIID(t *testing.T) {
	project, iid, err := parseGitLabID("gitlab:acme/widgets#7")
	require.NoError(t, err)
	require.Equal(t, "acme/widgets", project)
	require.Equal(t, 7, iid)
}

func TestParseGitLabIDMissingFragmentErrors(t *testing.T) {
	_, _, err := parseGitLabID("gitlab:acme/widgets")
	require.Error(t, err)
}

func TestParseGitLabIDNonNumericIIDErrors(t *testing.T) {
	_, _, err := parseGitLabID("gitlab:acme/widgets#abc")
	require.Error(t, err)
}

func TestGitlabIssueToNodeMapsFields(t *testing.T) {
	updated := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	issue := &gitlabIssue{
		ID:          55,
		IID:         7,
		Title:       "Fix the widget",
		Description: "body text",
		State:       "closed",
		Labels:      []string{"bug", "urgent"},
		WebURL:      "https://gitlab.com/acme/widgets/-/issues/7",
		UpdatedAt:   &updated,
	}

	n := gitlabIssueToNode("gitlab:acme/widgets#7", issue)
	require.Equal(t, "issue", n.Type)
	status, _ := n.Attr("status")
	require.Equal(t, "closed", status)
	labels, _ := n.Attr("labels")
	require.Equal(t, []any{"bug", "urgent"}, labels)
	require.Equal(t, updated, n.SyncedAt)
}

func TestIsGitLabNotFound(t *testing.T) {
	require.True(t, isGitLabNotFound(&gitlabNotFoundError{}))
	require.False(t, isGitLabNotFound(nil))
}
